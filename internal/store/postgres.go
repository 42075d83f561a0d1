// Package store 保存對戰結果與排行榜
//
// 只記錄結束的對局；房間與對戰狀態本身不持久化。
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/system-design/pong-arena/internal/events"
)

// MatchRecord 一筆對戰歷史
type MatchRecord struct {
	ID int64 `json:"id"`
	events.MatchResult
}

// PostgresStore 以 PostgreSQL 保存對戰歷史
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres 建立連接池並確認連線
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 PostgreSQL 設定失敗: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("連接 PostgreSQL 失敗: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL ping 失敗: %w", err)
	}
	return pool, nil
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// SaveMatch 寫入一筆結果並回傳 ID
func (s *PostgresStore) SaveMatch(ctx context.Context, m events.MatchResult) (int64, error) {
	const query = `
		INSERT INTO matches (
			room_code, player1_id, player1_guest, player2_id, player2_guest,
			player1_score, player2_score, reason, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		m.RoomCode,
		m.Player1.ID, m.Player1.IsGuest,
		m.Player2.ID, m.Player2.IsGuest,
		m.Player1Score, m.Player2Score,
		m.Reason, m.StartedAt, m.EndedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("寫入對戰結果失敗: %w", err)
	}
	return id, nil
}

// ListMatches 最近的對戰；playerID 為空時列出全部
func (s *PostgresStore) ListMatches(ctx context.Context, playerID string, limit int) ([]MatchRecord, error) {
	const columns = `id, room_code, player1_id, player1_guest, player2_id, player2_guest,
		player1_score, player2_score, reason, started_at, ended_at`

	var (
		rows pgx.Rows
		err  error
	)
	if playerID == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+columns+` FROM matches ORDER BY ended_at DESC, id DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+columns+` FROM matches
			 WHERE player1_id = $1 OR player2_id = $1
			 ORDER BY ended_at DESC, id DESC LIMIT $2`, playerID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("查詢對戰歷史失敗: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchRecord, error) {
		var r MatchRecord
		err := row.Scan(
			&r.ID, &r.RoomCode,
			&r.Player1.ID, &r.Player1.IsGuest,
			&r.Player2.ID, &r.Player2.IsGuest,
			&r.Player1Score, &r.Player2Score,
			&r.Reason, &r.StartedAt, &r.EndedAt,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("讀取對戰歷史失敗: %w", err)
	}
	return records, nil
}

// Ping 健康檢查
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
