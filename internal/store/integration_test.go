package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/store"
	"github.com/koopa0/system-design/pong-arena/internal/store/migrations"
	"github.com/koopa0/system-design/pong-arena/internal/testutils"
	"github.com/koopa0/system-design/pong-arena/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	pg := testutils.SetupPostgres(t)
	s := store.NewPostgresStore(pg.Pool, logger.Discard())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	results := []events.MatchResult{
		{RoomCode: "r1", Player1: events.Participant{ID: "alice"}, Player2: events.Participant{ID: "bob"},
			Player1Score: 3, Player2Score: 1, Reason: "left", StartedAt: base, EndedAt: base.Add(time.Minute)},
		{RoomCode: "r2", Player1: events.Participant{ID: "carol"}, Player2: events.Participant{ID: "alice"},
			Player1Score: 0, Player2Score: 2, Reason: "disconnected", StartedAt: base, EndedAt: base.Add(2 * time.Minute)},
		{RoomCode: "r3", Player1: events.Participant{ID: "dave"}, Player2: events.Participant{ID: "g", IsGuest: true},
			Player1Score: 1, Player2Score: 1, Reason: "shutdown", StartedAt: base, EndedAt: base.Add(3 * time.Minute)},
	}
	for _, r := range results {
		id, err := s.SaveMatch(ctx, r)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	t.Run("by player", func(t *testing.T) {
		got, err := s.ListMatches(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)

		// 最新的在前
		assert.Equal(t, "r2", got[0].RoomCode)
		assert.Equal(t, "r1", got[1].RoomCode)
		assert.Equal(t, "disconnected", got[0].Reason)
		assert.True(t, got[1].EndedAt.Equal(base.Add(time.Minute)))
	})

	t.Run("all with limit", func(t *testing.T) {
		got, err := s.ListMatches(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "r3", got[0].RoomCode)
		assert.True(t, got[0].Player2.IsGuest)
	})

	t.Run("unknown player", func(t *testing.T) {
		got, err := s.ListMatches(ctx, "nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		m, err := migrations.New(pg.DSN, logger.Discard())
		require.NoError(t, err)
		defer m.Close()

		require.NoError(t, m.Up())
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
		assert.False(t, dirty)
	})
}

func TestRedisLeaderboard(t *testing.T) {
	client := testutils.SetupRedis(t)
	lb := store.NewRedisLeaderboard(client)
	ctx := context.Background()

	for _, id := range []string{"alice", "bob", "alice", "carol", "alice", "bob"} {
		_, err := lb.RecordWin(ctx, id)
		require.NoError(t, err)
	}

	top, err := lb.Top(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []store.LeaderboardEntry{
		{PlayerID: "alice", Wins: 3},
		{PlayerID: "bob", Wins: 2},
	}, top)

	empty, err := lb.Top(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, lb.Ping(ctx))
}

func TestMatchRecorder_EndToEnd(t *testing.T) {
	pg := testutils.SetupPostgres(t)
	client := testutils.SetupRedis(t)

	matches := store.NewPostgresStore(pg.Pool, logger.Discard())
	lb := store.NewRedisLeaderboard(client)
	bus := events.NewBus(logger.Discard(), 16, store.NewMatchRecorder(matches, lb, logger.Discard()))

	now := time.Now()
	bus.Publish(events.Event{
		Type:     events.MatchEnded,
		RoomCode: "r1",
		Match: &events.MatchResult{
			RoomCode: "r1", Player1: events.Participant{ID: "alice"}, Player2: events.Participant{ID: "bob"},
			Player1Score: 2, Player2Score: 0, Reason: "left", StartedAt: now, EndedAt: now,
		},
	})
	bus.Close()

	got, err := matches.ListMatches(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	top, err := lb.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []store.LeaderboardEntry{{PlayerID: "alice", Wins: 1}}, top)
}
