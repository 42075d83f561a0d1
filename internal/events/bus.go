// Package events 提供房間生命週期事件的非同步分發
//
// 房間操作在持有房間鎖時發佈事件，所以 Publish 絕不阻塞：
// 事件先進入緩衝 channel，由單一 goroutine 依序交給各個 Sink。
// 緩衝滿時丟棄事件並記錄警告，優先保證房間操作不被拖慢。
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// 事件類型
const (
	RoomCreated  = "room.created"
	RoomJoined   = "room.joined"
	RoomLeft     = "room.left"
	RoomClosed   = "room.closed"
	GameStarting = "game.starting"
	GameStarted  = "game.started"
	GameScored   = "game.scored"
	MatchEnded   = "match.ended"
)

// Participant 對局參與者
type Participant struct {
	ID      string `json:"id"`
	IsGuest bool   `json:"is_guest"`
}

// MatchResult 一局結束時的比分
type MatchResult struct {
	RoomCode     string      `json:"room_code"`
	Player1      Participant `json:"player1"`
	Player2      Participant `json:"player2"`
	Player1Score int         `json:"player1_score"`
	Player2Score int         `json:"player2_score"`
	StartedAt    time.Time   `json:"started_at"`
	EndedAt      time.Time   `json:"ended_at"`
	Reason       string      `json:"reason"`
}

// Winner 回傳勝方；平手回傳 false
func (m MatchResult) Winner() (Participant, bool) {
	switch {
	case m.Player1Score > m.Player2Score:
		return m.Player1, true
	case m.Player2Score > m.Player1Score:
		return m.Player2, true
	default:
		return Participant{}, false
	}
}

// Event 房間事件
type Event struct {
	Type      string         `json:"type"`
	RoomCode  string         `json:"room_code"`
	PlayerID  string         `json:"player_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Match     *MatchResult   `json:"match,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher 房間管理器依賴的發佈介面
type Publisher interface {
	Publish(e Event)
}

// Sink 事件的最終接收者
type Sink interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// Nop 丟棄所有事件
type Nop struct{}

func (Nop) Publish(Event) {}

// Bus 緩衝事件匯流排
type Bus struct {
	events  chan Event
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewBus 建立並啟動匯流排
func NewBus(logger *slog.Logger, buffer int, sinks ...Sink) *Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	b := &Bus{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		logger:  logger,
		timeout: 5 * time.Second,
	}

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Publish 非阻塞發佈
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.events <- e:
	default:
		b.logger.Warn("事件緩衝區已滿，丟棄事件",
			"type", e.Type,
			"room_code", e.RoomCode)
	}
}

// Close 停止接收新事件並等待緩衝區處理完畢
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for e := range b.events {
		for _, sink := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			if err := sink.Handle(ctx, e); err != nil {
				b.logger.Error("事件處理失敗",
					"sink", sink.Name(),
					"type", e.Type,
					"room_code", e.RoomCode,
					"error", err)
			}
			cancel()
		}
	}
}
