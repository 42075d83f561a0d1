package room

import (
	"sync"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
)

// Sender 連線的送出端
//
// 實作必須是非阻塞的：房間在持有鎖時廣播。
type Sender interface {
	Send(data []byte) error
}

// Player 一條連線在房間層的狀態
//
// 鎖順序：opMu → Manager.mu / Room.mu → Player.mu
type Player struct {
	sender Sender

	// 序列化同一連線的房間操作（請求處理與配對計時器）
	opMu sync.Mutex

	mu          sync.Mutex
	id          string
	isGuest     bool
	initialized bool
	roomCode    string
	lastKey     game.Key
	search      *timer
}

// NewPlayer 為連線建立玩家狀態
func NewPlayer(sender Sender) *Player {
	return &Player{sender: sender}
}

func (p *Player) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *Player) IsGuest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isGuest
}

func (p *Player) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// RoomCode 目前所在房間；不在房間時為空字串
func (p *Player) RoomCode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomCode
}

// LastKey 最後一次按鍵
func (p *Player) LastKey() game.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKey
}

// Searching 是否有進行中的配對
func (p *Player) Searching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.search != nil
}

func (p *Player) info() protocol.PlayerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.PlayerInfo{ID: p.id, IsGuest: p.isGuest}
}

func (p *Player) participant() events.Participant {
	info := p.info()
	return events.Participant{ID: info.ID, IsGuest: info.IsGuest}
}

func (p *Player) setRoom(code string) {
	p.mu.Lock()
	p.roomCode = code
	p.lastKey = game.KeyNone
	p.mu.Unlock()
}

func (p *Player) setSearch(t *timer) {
	p.mu.Lock()
	p.search = t
	p.mu.Unlock()
}

func (p *Player) currentSearch() *timer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.search
}

// cancelSearch 取消進行中的配對
func (p *Player) cancelSearch() {
	p.mu.Lock()
	t := p.search
	p.search = nil
	p.mu.Unlock()

	t.Cancel()
}
