package room_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/room"
	"github.com/koopa0/system-design/pong-arena/pkg/logger"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type wireMessage struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// fakeSender 記錄送出的訊息
type fakeSender struct {
	mu     sync.Mutex
	msgs   []wireMessage
	closed bool
}

func (s *fakeSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("closed")
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *fakeSender) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (s *fakeSender) count(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

// params 解析最後一則指定類型的訊息
func (s *fakeSender) params(t *testing.T, typ string, v any) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Type == typ {
			require.NoError(t, json.Unmarshal(s.msgs[i].Params, v))
			return
		}
	}
	t.Fatalf("no %q message", typ)
}

func (s *fakeSender) countdowns(t *testing.T) []int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, m := range s.msgs {
		if m.Type != "countdown" {
			continue
		}
		var p struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(m.Params, &p))
		out = append(out, p.Count)
	}
	return out
}

func (s *fakeSender) waitFor(t *testing.T, typ string) {
	t.Helper()
	require.Eventually(t, func() bool { return s.count(typ) > 0 }, waitFor, 5*time.Millisecond,
		"never received %q, got %v", typ, s.types())
}

// recordingPublisher 記錄事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) find(typ string) (events.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Type == typ {
			return e, true
		}
	}
	return events.Event{}, false
}

func testOptions() room.Options {
	return room.Options{
		TickInterval:   10 * time.Millisecond,
		CountdownFrom:  3,
		CountdownStep:  20 * time.Millisecond,
		CountdownPoll:  5 * time.Millisecond,
		SearchDeadline: 100 * time.Millisecond,
		SearchPoll:     10 * time.Millisecond,
	}
}

func newTestManager(t *testing.T, opts room.Options) *room.Manager {
	t.Helper()
	m := room.NewManager(logger.Discard(), opts)
	t.Cleanup(m.Stop)
	return m
}

func newPlayer(t *testing.T, m *room.Manager, id string) (*room.Player, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	p := room.NewPlayer(sender)
	require.NoError(t, m.Init(p, id, false))
	return p, sender
}

// pair 建立房間並讓第二位玩家加入
func pair(t *testing.T, m *room.Manager) (host, guest *room.Player, hostOut, guestOut *fakeSender, code string) {
	t.Helper()
	host, hostOut = newPlayer(t, m, "host")
	guest, guestOut = newPlayer(t, m, "guest")

	code, err := m.Create(host)
	require.NoError(t, err)
	require.NoError(t, m.Join(guest, code))
	return host, guest, hostOut, guestOut, code
}

func testGeometry() game.Geometry {
	return game.Geometry{
		Board:   game.Rect{Top: 0, Bottom: 400, Left: 0, Right: 800, Width: 800, Height: 400},
		Player1: game.Rect{Top: 160, Bottom: 240, Left: 20, Right: 30, Width: 10, Height: 80},
		Player2: game.Rect{Top: 160, Bottom: 240, Left: 770, Right: 780, Width: 10, Height: 80},
		Ball:    game.Rect{Top: 195, Bottom: 205, Left: 395, Right: 405, Width: 10, Height: 10},
	}
}
