// Package pongarena 是一個雙人即時 Pong 對戰伺服器。
//
// 玩家透過 WebSocket 連線，建立、加入或自動配對房間，
// 兩人到齊後倒數開局，由伺服器以固定週期推進權威的遊戲狀態並推送給雙方。
//
// # 房間與配對
//
// 房間最多兩人，狀態依序為 waiting、ready、counting_down、playing：
//   - create 建立房間並成為房主
//   - join 依房間代碼加入，滿員時回傳錯誤
//   - search 定期掃描等待中的房間，逾時改為自己建立
//   - 任一方離開時取消所有計時器，房間回到 waiting，無人時關閉
//
// # 遊戲迴圈
//
// 每個 tick 讀取雙方最後一次按鍵，移動球拍與球、處理碰撞與得分，
// 再把 update 廣播給房內兩條連線。
//
// # 周邊服務
//
// 皆為可選：
//   - NATS JetStream 接收房間事件
//   - PostgreSQL 保存對戰歷史
//   - Redis sorted set 維護勝場排行榜
//   - HTTP API 提供健康檢查、統計、房間列表、歷史與排行榜
//
// 啟動方式見 cmd/server。
package pongarena
