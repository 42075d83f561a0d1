package room_test

import (
	"testing"
	"time"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/game"
	"github.com/koopa0/system-design/pong-arena/internal/room"
	"github.com/koopa0/system-design/pong-arena/pkg/logger"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartGameRequiresReadyRoom(t *testing.T) {
	m := newTestManager(t, testOptions())

	idle, _ := newPlayer(t, m, "idle")
	assert.ErrorIs(t, m.StartGame(idle), apperrors.ErrNotInRoom)

	solo, _ := newPlayer(t, m, "solo")
	_, err := m.Create(solo)
	require.NoError(t, err)
	assert.ErrorIs(t, m.StartGame(solo), apperrors.ErrRoomNotReady)

	host, guest, _, _, _ := pair(t, m)
	require.NoError(t, m.StartGame(host))
	assert.ErrorIs(t, m.StartGame(guest), apperrors.ErrGameInProgress)
}

func TestManager_CountdownSequence(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, _, hostOut, guestOut, code := pair(t, m)

	require.NoError(t, m.StartGame(host))

	info, err := m.GetRoom(code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusCountingDown, info.Status)

	for _, out := range []*fakeSender{hostOut, guestOut} {
		require.Eventually(t, func() bool {
			c := out.countdowns(t)
			return len(c) > 0 && c[len(c)-1] == 0
		}, waitFor, 5*time.Millisecond)

		assert.Equal(t, []int{3, 2, 1, 0}, out.countdowns(t))
		assert.Equal(t, 1, out.count("gameStarting"))
	}

	info, err = m.GetRoom(code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusPlaying, info.Status)

	// 還沒有幾何，不會有 update
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, hostOut.count("update"))
	assert.Zero(t, m.GetStats().ActiveSessions)
}

func TestManager_SessionBroadcastsUpdates(t *testing.T) {
	pub := &recordingPublisher{}
	opts := testOptions()
	opts.Events = pub
	m := newTestManager(t, opts)
	host, guest, hostOut, guestOut, code := pair(t, m)

	require.NoError(t, m.StartGame(host))
	require.Eventually(t, func() bool {
		info, err := m.GetRoom(code)
		return err == nil && info.Status == room.StatusPlaying
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, m.KeyPress(host, game.KeyW))
	require.NoError(t, m.KeyPress(guest, game.KeyArrowDown))
	require.NoError(t, m.InitOnlineGame(guest, testGeometry()))

	require.Eventually(t, func() bool {
		return hostOut.count("update") >= 3 && guestOut.count("update") >= 3
	}, waitFor, 5*time.Millisecond)

	var frame game.Frame
	hostOut.params(t, "update", &frame)
	assert.Less(t, frame.Player1Offset, 0.0)
	assert.Greater(t, frame.Player2Offset, 0.0)
	assert.NotZero(t, frame.BallOffset.X)

	_, ok := pub.find(events.GameStarted)
	assert.True(t, ok)
	assert.Equal(t, 1, m.GetStats().ActiveSessions)
}

func TestManager_GeometryBeforeCountdownEnds(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, _, hostOut, _, _ := pair(t, m)

	require.NoError(t, m.InitOnlineGame(host, testGeometry()))
	require.NoError(t, m.StartGame(host))

	hostOut.waitFor(t, "update")

	// 第一則 update 在倒數歸零之後
	types := hostOut.types()
	lastCountdown, firstUpdate := -1, -1
	for i, typ := range types {
		if typ == "countdown" {
			lastCountdown = i
		}
		if typ == "update" && firstUpdate < 0 {
			firstUpdate = i
		}
	}
	assert.Less(t, lastCountdown, firstUpdate)
	assert.Equal(t, []int{3, 2, 1, 0}, hostOut.countdowns(t))
}

func TestManager_LeaveStopsTimers(t *testing.T) {
	pub := &recordingPublisher{}
	opts := testOptions()
	opts.Events = pub
	m := newTestManager(t, opts)
	host, guest, hostOut, guestOut, code := pair(t, m)

	require.NoError(t, m.InitOnlineGame(host, testGeometry()))
	require.NoError(t, m.StartGame(host))
	guestOut.waitFor(t, "update")

	m.Leave(guest)
	assert.Equal(t, 1, hostOut.count("otherPlayerLeft"))

	require.Eventually(t, func() bool { return m.ActiveTimers() == 0 }, waitFor, 5*time.Millisecond)

	updates := hostOut.count("update")
	guestUpdates := guestOut.count("update")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, updates, hostOut.count("update"))
	assert.Equal(t, guestUpdates, guestOut.count("update"))

	e, ok := pub.find(events.MatchEnded)
	require.True(t, ok)
	require.NotNil(t, e.Match)
	assert.Equal(t, code, e.Match.RoomCode)
	assert.Equal(t, "host", e.Match.Player1.ID)
	assert.Equal(t, "guest", e.Match.Player2.ID)
	assert.Equal(t, "left", e.Match.Reason)

	info, err := m.GetRoom(code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusWaiting, info.Status)
	assert.Nil(t, info.Points)
}

func TestManager_LeaveDuringCountdown(t *testing.T) {
	m := newTestManager(t, testOptions())
	host, guest, hostOut, _, _ := pair(t, m)

	require.NoError(t, m.StartGame(host))
	m.Leave(guest)

	require.Eventually(t, func() bool { return m.ActiveTimers() == 0 }, waitFor, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	// 只有開始時的 countdown{3}
	assert.Equal(t, []int{3}, hostOut.countdowns(t))
	assert.Zero(t, hostOut.count("update"))
}

func TestManager_StopCancelsEverything(t *testing.T) {
	pub := &recordingPublisher{}
	opts := testOptions()
	opts.Events = pub
	m := room.NewManager(logger.Discard(), opts)

	host, _, hostOut, _, _ := pair(t, m)
	searcher, _ := newPlayer(t, m, "searcher")
	require.NoError(t, m.InitOnlineGame(host, testGeometry()))
	require.NoError(t, m.StartGame(host))
	hostOut.waitFor(t, "update")

	require.NoError(t, m.Search(searcher))

	m.Stop()
	assert.Zero(t, m.ActiveTimers())

	e, ok := pub.find(events.MatchEnded)
	require.True(t, ok)
	assert.Equal(t, "shutdown", e.Match.Reason)

	// 停止後不再啟動新的計時器
	require.NoError(t, m.Search(searcher))
	assert.Zero(t, m.ActiveTimers())
}
