package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/testutils"
)

func TestNATSSink(t *testing.T) {
	url := testutils.SetupNATS(t)

	sink, err := events.NewNATSSink(events.NATSConfig{
		URL:           url,
		Stream:        "PONG_EVENTS_TEST",
		SubjectPrefix: "pong",
		MaxAge:        time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	e := events.Event{
		Type:      events.RoomCreated,
		RoomCode:  "r1",
		PlayerID:  "alice",
		Timestamp: time.Now(),
	}
	assert.Equal(t, "pong.room.created", sink.Subject(e))
	require.NoError(t, sink.Handle(context.Background(), e))

	conn, err := nats.Connect(url)
	require.NoError(t, err)
	defer conn.Close()
	js, err := conn.JetStream()
	require.NoError(t, err)

	sub, err := js.SubscribeSync("pong.>", nats.DeliverAll())
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong.room.created", msg.Subject)

	var got events.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "r1", got.RoomCode)
	assert.Equal(t, "alice", got.PlayerID)

	// 重新連線時沿用既有的 Stream
	again, err := events.NewNATSSink(events.NATSConfig{
		URL:           url,
		Stream:        "PONG_EVENTS_TEST",
		SubjectPrefix: "pong",
		MaxAge:        time.Hour,
	})
	require.NoError(t, err)
	_ = again.Close()
}
