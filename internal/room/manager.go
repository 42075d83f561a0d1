package room

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
)

// Options 房間管理器的時間參數
type Options struct {
	TickInterval   time.Duration // 遊戲迴圈週期
	CountdownFrom  int           // 倒數起點
	CountdownStep  time.Duration // 每一步的長度
	CountdownPoll  time.Duration // 倒數輪詢間隔
	SearchDeadline time.Duration // 配對期限，逾時改為建立房間
	SearchPoll     time.Duration // 配對輪詢間隔

	Clock  Clock
	Events events.Publisher
}

// DefaultOptions 預設參數
func DefaultOptions() Options {
	return Options{
		TickInterval:   time.Second,
		CountdownFrom:  5,
		CountdownStep:  time.Second,
		CountdownPoll:  200 * time.Millisecond,
		SearchDeadline: 60 * time.Second,
		SearchPoll:     2 * time.Second,
	}
}

// Manager 房間註冊表
type Manager struct {
	rooms  map[string]*Room // code -> Room
	mu     sync.RWMutex
	opts   Options
	clock  Clock
	events events.Publisher
	logger *slog.Logger

	timerMu sync.Mutex
	timers  map[*timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewManager 創建房間管理器
func NewManager(logger *slog.Logger, opts Options) *Manager {
	defaults := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaults.TickInterval
	}
	if opts.CountdownFrom <= 0 {
		opts.CountdownFrom = defaults.CountdownFrom
	}
	if opts.CountdownStep <= 0 {
		opts.CountdownStep = defaults.CountdownStep
	}
	if opts.CountdownPoll <= 0 {
		opts.CountdownPoll = defaults.CountdownPoll
	}
	if opts.SearchDeadline <= 0 {
		opts.SearchDeadline = defaults.SearchDeadline
	}
	if opts.SearchPoll <= 0 {
		opts.SearchPoll = defaults.SearchPoll
	}

	m := &Manager{
		rooms:  make(map[string]*Room),
		opts:   opts,
		clock:  opts.Clock,
		events: opts.Events,
		logger: logger,
		timers: make(map[*timer]struct{}),
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.events == nil {
		m.events = events.Nop{}
	}
	return m
}

// Init 綁定連線身分
func (m *Manager) Init(p *Player, id string, isGuest bool) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return apperrors.ErrAlreadyInitialized
	}
	p.id = id
	p.isGuest = isGuest
	p.initialized = true
	p.mu.Unlock()

	m.send(p, protocol.Initialized())

	m.logger.Info("玩家已初始化",
		"player_id", id,
		"is_guest", isGuest)
	return nil
}

// requireIdle 已初始化且不在任何房間
func requireIdle(p *Player) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return apperrors.ErrNotInitialized
	}
	if p.roomCode != "" {
		return apperrors.ErrAlreadyInRoom
	}
	return nil
}

// Create 建立房間並成為房主
func (m *Manager) Create(p *Player) (string, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := requireIdle(p); err != nil {
		return "", err
	}
	p.cancelSearch()

	return m.create(p), nil
}

func (m *Manager) create(p *Player) string {
	code := uuid.NewString()
	r := newRoom(code, p, m.clock.Now())

	// 先回覆 created 再註冊，房主不會在 created 之前收到 otherPlayerJoined
	p.setRoom(code)
	m.send(p, protocol.Created(code))

	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()

	m.publish(events.Event{Type: events.RoomCreated, RoomCode: code, PlayerID: p.ID()})

	m.logger.Info("房間已創建",
		"room_code", code,
		"player_id", p.ID())
	return code
}

// Join 加入指定房間
func (m *Manager) Join(p *Player, code string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := requireIdle(p); err != nil {
		return err
	}
	p.cancelSearch()

	return m.join(p, code)
}

// join 在房間鎖內完成人數檢查與加入
func (m *Manager) join(p *Player, code string) error {
	r := m.lookup(code)
	if r == nil {
		return apperrors.RoomNotFound(code)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return apperrors.RoomNotFound(code)
	}
	if len(r.members) >= MaxPlayers {
		r.mu.Unlock()
		return apperrors.RoomFull(code)
	}

	host := r.members[0]
	r.members = append(r.members, p)
	r.status = StatusReady
	p.setRoom(code)

	m.send(host, protocol.OtherPlayerJoined(p.info()))
	m.send(p, protocol.Joined(code, host.info()))
	r.mu.Unlock()

	m.publish(events.Event{Type: events.RoomJoined, RoomCode: code, PlayerID: p.ID()})

	m.logger.Info("玩家加入房間",
		"room_code", code,
		"player_id", p.ID(),
		"host_id", host.ID())
	return nil
}

// Leave 離開房間並取消所有相關計時器；可重複呼叫
func (m *Manager) Leave(p *Player) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	m.leave(p, "left")
}

// Disconnect 連線關閉時的清理
func (m *Manager) Disconnect(p *Player) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	m.leave(p, "disconnected")
}

func (m *Manager) leave(p *Player, reason string) {
	p.cancelSearch()

	code := p.RoomCode()
	if code == "" {
		return
	}
	p.setRoom("")

	r := m.lookup(code)
	if r == nil {
		return
	}

	r.mu.Lock()
	idx := r.indexOf(p)
	if idx < 0 {
		r.mu.Unlock()
		return
	}

	result := r.stopGameLocked(m.clock.Now(), reason)
	r.members = append(r.members[:idx], r.members[idx+1:]...)

	empty := len(r.members) == 0
	if empty {
		r.closed = true
	} else {
		r.status = StatusWaiting
		m.send(r.members[0], protocol.OtherPlayerLeft())
	}
	r.mu.Unlock()

	if empty {
		m.mu.Lock()
		if m.rooms[code] == r {
			delete(m.rooms, code)
		}
		m.mu.Unlock()
	}

	m.publish(events.Event{Type: events.RoomLeft, RoomCode: code, PlayerID: p.ID(),
		Data: map[string]any{"reason": reason}})
	if result != nil {
		m.publish(events.Event{Type: events.MatchEnded, RoomCode: code, Match: result})
	}
	if empty {
		m.publish(events.Event{Type: events.RoomClosed, RoomCode: code})
	}

	m.logger.Info("玩家離開房間",
		"room_code", code,
		"player_id", p.ID(),
		"reason", reason,
		"room_closed", empty)
}

// KeyPress 記錄最後一次按鍵
func (m *Manager) KeyPress(p *Player, key game.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return apperrors.ErrNotInitialized
	}
	p.lastKey = key
	return nil
}

// GetRoom 房間快照
func (m *Manager) GetRoom(code string) (Info, error) {
	r := m.lookup(code)
	if r == nil {
		return Info{}, apperrors.RoomNotFound(code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Info{}, apperrors.RoomNotFound(code)
	}
	return r.infoLocked(), nil
}

// ListRooms 所有房間快照，依建立時間排序
func (m *Manager) ListRooms() []Info {
	rooms := m.snapshot()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			infos = append(infos, r.infoLocked())
		}
		r.mu.Unlock()
	}
	return infos
}

// Stats 統計資訊
type Stats struct {
	TotalRooms     int            `json:"total_rooms"`
	OpenRooms      int            `json:"open_rooms"`
	TotalPlayers   int            `json:"total_players"`
	ActiveSessions int            `json:"active_sessions"`
	ActiveTimers   int            `json:"active_timers"`
	ByStatus       map[Status]int `json:"by_status"`
}

// GetStats 獲取統計資訊
func (m *Manager) GetStats() Stats {
	stats := Stats{
		ByStatus:     make(map[Status]int),
		ActiveTimers: m.ActiveTimers(),
	}

	for _, r := range m.snapshot() {
		r.mu.Lock()
		if !r.closed {
			stats.TotalRooms++
			stats.TotalPlayers += len(r.members)
			stats.ByStatus[r.status]++
			if len(r.members) < MaxPlayers {
				stats.OpenRooms++
			}
			if r.session != nil {
				stats.ActiveSessions++
			}
		}
		r.mu.Unlock()
	}
	return stats
}

// Stop 停止所有計時器並等待結束
func (m *Manager) Stop() {
	m.timerMu.Lock()
	if m.stopped {
		m.timerMu.Unlock()
		return
	}
	m.stopped = true
	m.timerMu.Unlock()

	for _, r := range m.snapshot() {
		r.mu.Lock()
		result := r.stopGameLocked(m.clock.Now(), "shutdown")
		r.mu.Unlock()

		if result != nil {
			m.publish(events.Event{Type: events.MatchEnded, RoomCode: r.Code, Match: result})
		}
	}

	m.timerMu.Lock()
	for t := range m.timers {
		t.Cancel()
	}
	m.timerMu.Unlock()

	m.wg.Wait()
	m.logger.Info("房間管理器已停止")
}

func (m *Manager) lookup(code string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code]
}

// snapshot 依建立時間排序的房間列表
func (m *Manager) snapshot() []*Room {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (m *Manager) publish(e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = m.clock.Now()
	}
	m.events.Publish(e)
}

func (m *Manager) send(p *Player, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Error("序列化訊息失敗", "type", msg.Type, "error", err)
		return
	}
	if err := p.sender.Send(data); err != nil {
		m.logger.Debug("送出訊息失敗",
			"type", msg.Type,
			"player_id", p.ID(),
			"error", err)
	}
}

// broadcastLocked 呼叫者持有 r.mu
func (m *Manager) broadcastLocked(r *Room, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Error("序列化訊息失敗", "type", msg.Type, "error", err)
		return
	}
	for _, p := range r.members {
		if err := p.sender.Send(data); err != nil {
			m.logger.Debug("廣播失敗",
				"type", msg.Type,
				"room_code", r.Code,
				"player_id", p.ID(),
				"error", err)
		}
	}
}
