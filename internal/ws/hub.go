// Package ws 處理玩家的 WebSocket 連線
package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/system-design/pong-arena/internal/auth"
	"github.com/koopa0/system-design/pong-arena/internal/ratelimit"
	"github.com/koopa0/system-design/pong-arena/internal/room"
)

// 系統設計問題：
//   如何讓每條連線的請求依序處理，同時讓房間能隨時把狀態推送給它？
//
// 核心挑戰：
//   1. 讀寫分離：gorilla/websocket 同一時間只允許一個 reader 與一個 writer
//   2. 心跳機制：偵測死連線，斷線時要跑完整的 leave 清理
//   3. 慢客戶端：房間在鎖內廣播，送出不能阻塞
//
// 設計方案：
//   ✅ readPump 依序解碼並分派請求
//   ✅ writePump 獨佔寫入，負責 Ping（54s/60s）
//   ✅ 緩衝 channel - 非阻塞送出，緩衝滿時丟棄

// Options 連線參數
type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
}

// DefaultOptions 預設連線參數
func DefaultOptions() Options {
	return Options{
		ReadLimit:    8192,
		PingPeriod:   54 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SendBuffer:   256,
		MessageRate:  30,
		MessageBurst: 60,
	}
}

// Hub WebSocket 連接中心
type Hub struct {
	manager  *room.Manager
	verifier *auth.Verifier
	logger   *slog.Logger
	opts     Options
	upgrader websocket.Upgrader

	connections map[*Connection]struct{}
	mu          sync.RWMutex
	stopped     bool
	wg          sync.WaitGroup
}

// NewHub 創建 WebSocket Hub
func NewHub(manager *room.Manager, verifier *auth.Verifier, logger *slog.Logger, opts Options) *Hub {
	hub := &Hub{
		manager:     manager,
		verifier:    verifier,
		logger:      logger,
		opts:        opts,
		connections: make(map[*Connection]struct{}),
	}
	hub.upgrader = websocket.Upgrader{
		CheckOrigin:     hub.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return hub
}

func (hub *Hub) checkOrigin(r *http.Request) bool {
	if len(hub.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range hub.opts.AllowedOrigins {
		if allowed == origin || allowed == u.Host {
			return true
		}
	}
	return false
}

// ServeWS 升級連線並啟動讀寫 goroutine
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	hub.mu.RLock()
	stopped := hub.stopped
	hub.mu.RUnlock()
	if stopped {
		http.Error(w, "伺服器關閉中", http.StatusServiceUnavailable)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &Connection{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.opts.SendBuffer),
		limiter: ratelimit.NewTokenBucket(hub.opts.MessageBurst, hub.opts.MessageRate),
	}
	c.player = room.NewPlayer(c)

	if !hub.register(c) {
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	hub.logger.Debug("WebSocket 連接建立", "remote_addr", r.RemoteAddr)
}

func (hub *Hub) register(c *Connection) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.stopped {
		return false
	}
	hub.connections[c] = struct{}{}
	hub.wg.Add(1)
	return true
}

func (hub *Hub) unregister(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if _, ok := hub.connections[c]; ok {
		delete(hub.connections, c)
		hub.wg.Done()
	}
}

// Count 目前的連線數
func (hub *Hub) Count() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// Stop 關閉所有連線並等待清理完成
func (hub *Hub) Stop() {
	hub.mu.Lock()
	hub.stopped = true
	conns := make([]*Connection, 0, len(hub.connections))
	for c := range hub.connections {
		conns = append(conns, c)
	}
	hub.mu.Unlock()

	// 關閉底層連線讓 readPump 結束，readPump 負責 leave 清理
	for _, c := range conns {
		_ = c.conn.Close()
	}

	hub.wg.Wait()
	hub.logger.Info("WebSocket Hub 已停止", "closed_connections", len(conns))
}
