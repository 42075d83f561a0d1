package room

import (
	"time"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
)

// Session 一局對戰
//
// 狀態只在房間鎖內讀寫；每個 tick 讀雙方最後一次按鍵，
// 推進一步後把畫面廣播給房內兩條連線。
type Session struct {
	state     game.State
	geometry  game.Geometry
	loop      *timer
	startedAt time.Time
	ticks     uint64

	player1 events.Participant
	player2 events.Participant
}

// startSessionLocked 呼叫者持有 r.mu 且 r.geometry 不為 nil
func (m *Manager) startSessionLocked(r *Room) {
	if len(r.members) < MaxPlayers {
		return
	}

	s := &Session{
		state:     game.NewState(*r.geometry),
		geometry:  *r.geometry,
		loop:      newTimer(),
		startedAt: m.clock.Now(),
		player1:   r.members[0].participant(),
		player2:   r.members[1].participant(),
	}
	r.session = s

	m.run(s.loop, m.opts.TickInterval, func() bool {
		return m.sessionTick(r, s)
	})

	m.publish(events.Event{Type: events.GameStarted, RoomCode: r.Code,
		Data: map[string]any{"player1": s.player1.ID, "player2": s.player2.ID}})

	m.logger.Info("遊戲開始",
		"room_code", r.Code,
		"player1", s.player1.ID,
		"player2", s.player2.ID,
		"tick_interval", m.opts.TickInterval)
}

func (m *Manager) sessionTick(r *Room, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != s || len(r.members) < MaxPlayers {
		return false
	}

	in := game.Input{
		Player1: r.members[0].LastKey(),
		Player2: r.members[1].LastKey(),
	}

	prev := s.state.Points
	s.state = game.Tick(s.state, in, s.geometry)
	s.ticks++

	m.broadcastLocked(r, protocol.Update(s.state.Frame()))

	if s.state.Points != prev {
		m.publish(events.Event{Type: events.GameScored, RoomCode: r.Code,
			Data: map[string]any{
				"player1": s.state.Points.Player1,
				"player2": s.state.Points.Player2,
				"tick":    s.ticks,
			}})
	}
	return true
}
