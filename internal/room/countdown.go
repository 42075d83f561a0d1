package room

import (
	"time"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
)

// countdown 進行中的倒數
type countdown struct {
	timer *timer
	start time.Time
	count int // 已送出的步數
}

// StartGame 開始倒數
//
// 立即廣播 gameStarting 與 countdown{N}，之後每經過 CountdownStep
// 廣播一次 N-1 … 0。只有 ready 狀態的房間可以開始。
func (m *Manager) StartGame(p *Player) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	r, err := m.memberRoom(p)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.indexOf(p) < 0 {
		return apperrors.ErrNotInRoom
	}

	switch r.status {
	case StatusWaiting:
		return apperrors.ErrRoomNotReady
	case StatusCountingDown, StatusPlaying:
		return apperrors.ErrGameInProgress
	}

	r.status = StatusCountingDown
	cd := &countdown{timer: newTimer(), start: m.clock.Now()}
	r.countdown = cd

	m.broadcastLocked(r, protocol.GameStarting())
	m.broadcastLocked(r, protocol.Countdown(m.opts.CountdownFrom))

	m.run(cd.timer, m.opts.CountdownPoll, func() bool {
		return m.countdownTick(r, cd)
	})

	m.publish(events.Event{Type: events.GameStarting, RoomCode: r.Code, PlayerID: p.ID()})

	m.logger.Info("開始倒數",
		"room_code", r.Code,
		"player_id", p.ID(),
		"from", m.opts.CountdownFrom)
	return nil
}

func (m *Manager) countdownTick(r *Room, cd *countdown) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.countdown != cd {
		return false
	}

	elapsed := m.clock.Now().Sub(cd.start)
	if elapsed <= time.Duration(cd.count+1)*m.opts.CountdownStep {
		return true
	}

	cd.count++
	remaining := m.opts.CountdownFrom - cd.count
	m.broadcastLocked(r, protocol.Countdown(remaining))
	if remaining > 0 {
		return true
	}

	r.countdown = nil
	r.status = StatusPlaying
	if r.geometry != nil {
		m.startSessionLocked(r)
	}
	return false
}

// InitOnlineGame 提供畫面幾何
//
// 第一個送達的幾何為準。倒數已結束時立即開始遊戲迴圈，
// 否則等倒數歸零再開始。
func (m *Manager) InitOnlineGame(p *Player, g game.Geometry) error {
	r, err := m.memberRoom(p)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.indexOf(p) < 0 {
		return apperrors.ErrNotInRoom
	}

	if r.geometry == nil {
		r.geometry = &g
	} else {
		m.logger.Debug("忽略重複的幾何",
			"room_code", r.Code,
			"player_id", p.ID())
	}

	if r.status == StatusPlaying && r.session == nil {
		m.startSessionLocked(r)
	}
	return nil
}

// memberRoom 連線目前所在的房間
func (m *Manager) memberRoom(p *Player) (*Room, error) {
	if !p.Initialized() {
		return nil, apperrors.ErrNotInitialized
	}
	code := p.RoomCode()
	if code == "" {
		return nil, apperrors.ErrNotInRoom
	}
	r := m.lookup(code)
	if r == nil {
		return nil, apperrors.ErrNotInRoom
	}
	return r, nil
}
