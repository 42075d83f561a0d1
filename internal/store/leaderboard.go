package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "pong:leaderboard:wins"

// LeaderboardEntry 排行榜的一列
type LeaderboardEntry struct {
	PlayerID string `json:"player_id"`
	Wins     int64  `json:"wins"`
}

// RedisLeaderboard 以 sorted set 累計勝場
type RedisLeaderboard struct {
	client *redis.Client
	key    string
}

func NewRedisLeaderboard(client *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{client: client, key: leaderboardKey}
}

// RecordWin 勝場加一，回傳累計勝場
func (l *RedisLeaderboard) RecordWin(ctx context.Context, playerID string) (int64, error) {
	wins, err := l.client.ZIncrBy(ctx, l.key, 1, playerID).Result()
	if err != nil {
		return 0, fmt.Errorf("更新排行榜失敗: %w", err)
	}
	return int64(wins), nil
}

// Top 勝場最多的 n 位
func (l *RedisLeaderboard) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		return []LeaderboardEntry{}, nil
	}

	results, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("讀取排行榜失敗: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, LeaderboardEntry{PlayerID: member, Wins: int64(z.Score)})
	}
	return entries, nil
}

// Ping 健康檢查
func (l *RedisLeaderboard) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
