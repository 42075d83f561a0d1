package room

import (
	"sync"
	"time"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
)

// 系統設計問題：
//   兩名玩家如何在同一個房間內開局、倒數、同步對戰，並在任一方離開時乾淨收尾？
//
// 核心挑戰：
//   1. 並發控制：兩人同時加入同一個只剩一個位置的房間
//   2. 計時器生命週期：配對、倒數、遊戲迴圈都是背景計時器，離開後不能再觸發
//   3. 實時通信：狀態變更要依序送達房內每一條連線
//
// 設計方案：
//   ✅ 每個房間一把 Mutex，加入時在鎖內檢查人數並寫入
//   ✅ 計時器 handle 存在房間上，回呼在房間鎖內確認自己仍然有效
//   ✅ 有限狀態機規範 startGame 的前置條件

// MaxPlayers 房間人數上限
const MaxPlayers = 2

// Status 房間狀態
//
//	waiting → ready → counting_down → playing
//	   ↑________|___________|____________|   （任一玩家離開）
type Status string

const (
	StatusWaiting      Status = "waiting"       // 只有房主
	StatusReady        Status = "ready"         // 兩人到齊
	StatusCountingDown Status = "counting_down" // 倒數中
	StatusPlaying      Status = "playing"       // 倒數結束
)

// Room 對戰房間
type Room struct {
	Code      string
	CreatedAt time.Time

	mu      sync.Mutex
	members []*Player // 加入順序；members[0] 是 player1
	status  Status
	closed  bool

	geometry  *game.Geometry
	countdown *countdown
	session   *Session
}

func newRoom(code string, host *Player, now time.Time) *Room {
	return &Room{
		Code:      code,
		CreatedAt: now,
		members:   []*Player{host},
		status:    StatusWaiting,
	}
}

// Info 房間快照
type Info struct {
	Code      string                `json:"code"`
	Status    Status                `json:"status"`
	Players   []protocol.PlayerInfo `json:"players"`
	Points    *game.Points          `json:"points,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

func (r *Room) infoLocked() Info {
	info := Info{
		Code:      r.Code,
		Status:    r.status,
		Players:   make([]protocol.PlayerInfo, 0, len(r.members)),
		CreatedAt: r.CreatedAt,
	}
	for _, p := range r.members {
		info.Players = append(info.Players, p.info())
	}
	if r.session != nil {
		points := r.session.state.Points
		info.Points = &points
	}
	return info
}

func (r *Room) indexOf(p *Player) int {
	for i, member := range r.members {
		if member == p {
			return i
		}
	}
	return -1
}

// stopGameLocked 取消倒數與遊戲迴圈；有進行中的對局時回傳結果
func (r *Room) stopGameLocked(now time.Time, reason string) *events.MatchResult {
	if r.countdown != nil {
		r.countdown.timer.Cancel()
		r.countdown = nil
	}

	var result *events.MatchResult
	if s := r.session; s != nil {
		s.loop.Cancel()
		result = &events.MatchResult{
			RoomCode:     r.Code,
			Player1:      s.player1,
			Player2:      s.player2,
			Player1Score: s.state.Points.Player1,
			Player2Score: s.state.Points.Player2,
			StartedAt:    s.startedAt,
			EndedAt:      now,
			Reason:       reason,
		}
		r.session = nil
	}

	r.geometry = nil
	return result
}
