package room_test

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
	"github.com/koopa0/system-design/pong-arena/internal/room"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
	"github.com/koopa0/system-design/pong-arena/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Init(t *testing.T) {
	m := newTestManager(t, testOptions())
	sender := &fakeSender{}
	p := room.NewPlayer(sender)

	require.NoError(t, m.Init(p, "u1", true))
	assert.Equal(t, "u1", p.ID())
	assert.True(t, p.IsGuest())
	assert.Equal(t, []string{"initialized"}, sender.types())

	err := m.Init(p, "u2", false)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)
	assert.Equal(t, "u1", p.ID())
}

func TestManager_RequiresInit(t *testing.T) {
	m := newTestManager(t, testOptions())
	p := room.NewPlayer(&fakeSender{})

	_, err := m.Create(p)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
	assert.ErrorIs(t, m.Join(p, "x"), apperrors.ErrNotInitialized)
	assert.ErrorIs(t, m.Search(p), apperrors.ErrNotInitialized)
	assert.ErrorIs(t, m.StartGame(p), apperrors.ErrNotInitialized)
	assert.ErrorIs(t, m.KeyPress(p, "w"), apperrors.ErrNotInitialized)

	// leave 在未初始化時什麼都不做
	assert.NotPanics(t, func() { m.Leave(p) })
}

func TestManager_CreateAndJoin(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, hostOut := newPlayer(t, m, "host")
	guestOut := &fakeSender{}
	guest := room.NewPlayer(guestOut)
	require.NoError(t, m.Init(guest, "guest", true))

	code, err := m.Create(host)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, code, host.RoomCode())

	var created struct {
		RoomID string `json:"roomId"`
	}
	hostOut.params(t, "created", &created)
	assert.Equal(t, code, created.RoomID)

	require.NoError(t, m.Join(guest, code))
	assert.Equal(t, code, guest.RoomCode())

	// 加入者拿到的是房主的身分
	var joined struct {
		RoomID      string              `json:"roomId"`
		OtherPlayer protocol.PlayerInfo `json:"otherPlayer"`
	}
	guestOut.params(t, "joined", &joined)
	assert.Equal(t, code, joined.RoomID)
	assert.Equal(t, protocol.PlayerInfo{ID: "host", IsGuest: false}, joined.OtherPlayer)

	var other struct {
		Player protocol.PlayerInfo `json:"player"`
	}
	hostOut.params(t, "otherPlayerJoined", &other)
	assert.Equal(t, protocol.PlayerInfo{ID: "guest", IsGuest: true}, other.Player)

	info, err := m.GetRoom(code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusReady, info.Status)
	require.Len(t, info.Players, 2)
	assert.Equal(t, "host", info.Players[0].ID)
}

func TestManager_JoinErrors(t *testing.T) {
	m := newTestManager(t, testOptions())
	_, _, _, _, code := pair(t, m)

	t.Run("room not found", func(t *testing.T) {
		p, out := newPlayer(t, m, "late")
		err := m.Join(p, "zzz")
		require.Error(t, err)
		assert.True(t, apperrors.IsRoomNotFound(err))
		assert.Equal(t, "Room with code: zzz does not exist", apperrors.MessageOf(err))
		assert.Empty(t, p.RoomCode())
		assert.Equal(t, []string{"initialized"}, out.types())
	})

	t.Run("room full", func(t *testing.T) {
		p, _ := newPlayer(t, m, "third")
		err := m.Join(p, code)
		require.Error(t, err)
		assert.True(t, apperrors.IsRoomFull(err))
		assert.Equal(t, fmt.Sprintf("Room with code: %s is full", code), apperrors.MessageOf(err))
	})

	t.Run("already in room", func(t *testing.T) {
		p, _ := newPlayer(t, m, "owner")
		_, err := m.Create(p)
		require.NoError(t, err)

		assert.ErrorIs(t, m.Join(p, code), apperrors.ErrAlreadyInRoom)
		_, err = m.Create(p)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyInRoom)
		assert.ErrorIs(t, m.Search(p), apperrors.ErrAlreadyInRoom)
	})
}

func TestManager_ConcurrentJoin(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, _ := newPlayer(t, m, "host")
	code, err := m.Create(host)
	require.NoError(t, err)

	const contenders = 50
	var (
		wg      sync.WaitGroup
		success atomic.Int32
		full    atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		p, _ := newPlayer(t, m, fmt.Sprintf("p%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := m.Join(p, code)
			switch {
			case err == nil:
				success.Add(1)
			case apperrors.IsRoomFull(err):
				full.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, success.Load())
	assert.EqualValues(t, contenders-1, full.Load())

	info, err := m.GetRoom(code)
	require.NoError(t, err)
	assert.Len(t, info.Players, 2)
}

func TestManager_Leave(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, guest, hostOut, _, code := pair(t, m)

	m.Leave(guest)
	assert.Empty(t, guest.RoomCode())
	assert.Equal(t, 1, hostOut.count("otherPlayerLeft"))

	info, err := m.GetRoom(code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusWaiting, info.Status)
	assert.Len(t, info.Players, 1)

	// 重複離開沒有任何效果
	m.Leave(guest)
	assert.Equal(t, 1, hostOut.count("otherPlayerLeft"))

	m.Leave(host)
	_, err = m.GetRoom(code)
	assert.True(t, apperrors.IsRoomNotFound(err))
	assert.Zero(t, m.GetStats().TotalRooms)

	// 房間刪除後加入會失敗
	p, _ := newPlayer(t, m, "late")
	assert.True(t, apperrors.IsRoomNotFound(m.Join(p, code)))
}

func TestManager_HostLeavePromotesGuest(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, _, _, guestOut, code := pair(t, m)

	m.Disconnect(host)
	assert.Equal(t, 1, guestOut.count("otherPlayerLeft"))

	// 剩下的玩家成為 player1，新玩家可以加入
	p, out := newPlayer(t, m, "newcomer")
	require.NoError(t, m.Join(p, code))

	var joined struct {
		OtherPlayer protocol.PlayerInfo `json:"otherPlayer"`
	}
	out.params(t, "joined", &joined)
	assert.Equal(t, "guest", joined.OtherPlayer.ID)
}

func TestManager_Events(t *testing.T) {
	pub := &recordingPublisher{}
	opts := testOptions()
	opts.Events = pub
	m := newTestManager(t, opts)

	host, guest, _, _, code := pair(t, m)
	m.Leave(guest)
	m.Leave(host)

	for _, typ := range []string{events.RoomCreated, events.RoomJoined, events.RoomLeft, events.RoomClosed} {
		e, ok := pub.find(typ)
		require.True(t, ok, "missing %s", typ)
		assert.Equal(t, code, e.RoomCode)
		assert.False(t, e.Timestamp.IsZero())
	}

	// 沒有開始遊戲就沒有比賽結果
	_, ok := pub.find(events.MatchEnded)
	assert.False(t, ok)
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(t, testOptions())
	pair(t, m)
	solo, _ := newPlayer(t, m, "solo")
	_, err := m.Create(solo)
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, 2, stats.TotalRooms)
	assert.Equal(t, 1, stats.OpenRooms)
	assert.Equal(t, 3, stats.TotalPlayers)
	assert.Equal(t, 1, stats.ByStatus[room.StatusReady])
	assert.Equal(t, 1, stats.ByStatus[room.StatusWaiting])

	rooms := m.ListRooms()
	require.Len(t, rooms, 2)
	assert.False(t, rooms[1].CreatedAt.Before(rooms[0].CreatedAt))
}

func TestManager_ConcurrentMembershipStress(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	m := newTestManager(t, testOptions())

	const workers = 20
	players := make([]*room.Player, workers)
	for i := range players {
		players[i], _ = newPlayer(t, m, fmt.Sprintf("p%d", i))
	}

	var wg sync.WaitGroup
	for i, p := range players {
		wg.Add(1)
		go func(seed int64, p *room.Player) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for j := 0; j < 200; j++ {
				switch rng.Intn(3) {
				case 0:
					_, _ = m.Create(p)
				case 1:
					for _, info := range m.ListRooms() {
						if m.Join(p, info.Code) == nil {
							break
						}
					}
				default:
					m.Leave(p)
				}
			}
		}(int64(i), p)
	}
	wg.Wait()

	members := 0
	for _, info := range m.ListRooms() {
		assert.LessOrEqual(t, len(info.Players), room.MaxPlayers)
		assert.NotEmpty(t, info.Players)
		members += len(info.Players)
	}

	inRoom := 0
	for _, p := range players {
		if p.RoomCode() != "" {
			inRoom++
		}
	}
	assert.Equal(t, inRoom, members)
}

func BenchmarkManager_CreateJoinLeave(b *testing.B) {
	m := room.NewManager(logger.Discard(), room.DefaultOptions())
	defer m.Stop()

	host := room.NewPlayer(&fakeSender{})
	guest := room.NewPlayer(&fakeSender{})
	if err := m.Init(host, "host", false); err != nil {
		b.Fatal(err)
	}
	if err := m.Init(guest, "guest", true); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		code, err := m.Create(host)
		if err != nil {
			b.Fatal(err)
		}
		if err := m.Join(guest, code); err != nil {
			b.Fatal(err)
		}
		m.Leave(guest)
		m.Leave(host)
	}
}
