package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// LogSink 將事件寫入日誌
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(ctx context.Context, e Event) error {
	attrs := []any{
		"type", e.Type,
		"room_code", e.RoomCode,
	}
	if e.PlayerID != "" {
		attrs = append(attrs, "player_id", e.PlayerID)
	}
	for k, v := range e.Data {
		attrs = append(attrs, k, v)
	}
	s.logger.DebugContext(ctx, "房間事件", attrs...)
	return nil
}

// NATSConfig JetStream 設定
type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
	MaxAge        time.Duration
}

// NATSSink 將事件發佈到 NATS JetStream
//
// Subject 為 <prefix>.<event type>，例如 pong.room.created。
// Stream 使用記憶體儲存：事件給下游觀察用，不作為狀態來源。
type NATSSink struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewNATSSink 連接 NATS 並確保 Stream 存在
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("創建 JetStream 上下文失敗: %w", err)
	}

	s := &NATSSink{conn: conn, js: js, prefix: cfg.SubjectPrefix}

	if err := s.initStream(cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("初始化 Stream 失敗: %w", err)
	}

	return s, nil
}

func (s *NATSSink) initStream(cfg NATSConfig) error {
	streamCfg := &nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   cfg.MaxAge,
		Replicas: 1,
	}

	_, err := s.js.StreamInfo(cfg.Stream)
	if err == nats.ErrStreamNotFound {
		if _, err := s.js.AddStream(streamCfg); err != nil {
			return fmt.Errorf("創建 Stream 失敗: %w", err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("查詢 Stream 失敗: %w", err)
	}

	if _, err := s.js.UpdateStream(streamCfg); err != nil {
		return fmt.Errorf("更新 Stream 失敗: %w", err)
	}
	return nil
}

func (s *NATSSink) Name() string { return "nats" }

// Subject 事件對應的 subject
func (s *NATSSink) Subject(e Event) string {
	return s.prefix + "." + e.Type
}

func (s *NATSSink) Handle(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}

	if _, err := s.js.Publish(s.Subject(e), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("發送事件失敗: %w", err)
	}
	return nil
}

// Close 排空並關閉連線
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
