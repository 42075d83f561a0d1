package room

import "time"

// Search 開始配對
//
// 每隔 SearchPoll 掃描一次只有一人的房間並嘗試加入；
// 超過 SearchDeadline 仍未配對成功就自己建立房間。
// 同一連線只保留一個配對，重複呼叫會取消前一個。
func (m *Manager) Search(p *Player) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := requireIdle(p); err != nil {
		return err
	}
	p.cancelSearch()

	t := newTimer()
	p.setSearch(t)
	start := m.clock.Now()

	m.run(t, m.opts.SearchPoll, func() bool {
		return m.searchTick(p, t, start)
	})

	m.logger.Debug("開始配對", "player_id", p.ID())
	return nil
}

func (m *Manager) searchTick(p *Player, t *timer, start time.Time) bool {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.currentSearch() != t {
		return false
	}

	if m.clock.Now().Sub(start) > m.opts.SearchDeadline {
		p.setSearch(nil)
		code := m.create(p)
		m.logger.Info("配對逾時，改為建立房間",
			"player_id", p.ID(),
			"room_code", code)
		return false
	}

	for _, code := range m.openRoomCodes() {
		if err := m.join(p, code); err == nil {
			p.setSearch(nil)
			return false
		}
	}
	return true
}

// openRoomCodes 只有一人的房間，最早建立的在前
func (m *Manager) openRoomCodes() []string {
	var codes []string
	for _, r := range m.snapshot() {
		r.mu.Lock()
		if !r.closed && len(r.members) < MaxPlayers {
			codes = append(codes, r.Code)
		}
		r.mu.Unlock()
	}
	return codes
}
