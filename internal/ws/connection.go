package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/system-design/pong-arena/internal/ratelimit"
	"github.com/koopa0/system-design/pong-arena/internal/room"
)

var (
	errConnectionClosed = errors.New("connection closed")
	errSendBufferFull   = errors.New("send buffer full")
)

// Connection 一條 WebSocket 連線
type Connection struct {
	hub     *Hub
	conn    *websocket.Conn
	player  *room.Player
	limiter *ratelimit.TokenBucket

	send   chan []byte
	mu     sync.Mutex // 保護 closed 與 send 的關閉
	closed bool
}

// Send 非阻塞送出；房間在持有鎖時呼叫
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.hub.logger.Warn("連接緩衝區滿", "player_id", c.player.ID())
		return errSendBufferFull
	}
}

// closeSend 關閉送出 channel，writePump 隨後送出 close frame 並結束
func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 讀取並依序處理客戶端訊息
//
// 收到 Pong 時重置 60 秒的讀取期限；任何讀取錯誤都視為斷線，
// 離開時先做房間清理，對手才會收到 otherPlayerLeft。
func (c *Connection) readPump() {
	defer func() {
		c.hub.manager.Disconnect(c.player)
		c.closeSend()
		_ = c.conn.Close()
		c.hub.unregister(c)
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.ReadLimit)

	if err := c.conn.SetReadDeadline(time.Now().Add(opts.PongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"player_id", c.player.ID(),
					"room_code", c.player.RoomCode())
			} else {
				c.hub.logger.Debug("WebSocket 連接關閉",
					"player_id", c.player.ID())
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 獨佔寫入端，並每 PingPeriod 送一次 Ping
func (c *Connection) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("發送消息失敗", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
