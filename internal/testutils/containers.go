// Package testutils 提供整合測試用的測試容器
//
// 容器在測試結束時自動清理；-short 模式下直接跳過。
package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koopa0/system-design/pong-arena/internal/store"
	"github.com/koopa0/system-design/pong-arena/internal/store/migrations"
	"github.com/koopa0/system-design/pong-arena/pkg/logger"
)

// Postgres 已完成遷移的 PostgreSQL 測試環境
type Postgres struct {
	Pool *pgxpool.Pool
	DSN  string
}

// SetupPostgres 啟動 PostgreSQL 容器並執行遷移
func SetupPostgres(t testing.TB) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("跳過需要 Docker 的整合測試")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pong"),
		tcpostgres.WithUsername("pong"),
		tcpostgres.WithPassword("pong"),
		tcpostgres.WithSQLDriver("pgx"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	if err := migrations.Run(dsn, logger.Discard()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := store.OpenPostgres(ctx, dsn, 5)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	return &Postgres{Pool: pool, DSN: dsn}
}

// SetupRedis 啟動 Redis 容器
func SetupRedis(t testing.TB) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("跳過需要 Docker 的整合測試")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         endpoint,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	t.Cleanup(func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	return client
}

// SetupNATS 啟動開啟 JetStream 的 NATS 容器，回傳連線 URL
func SetupNATS(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("跳過需要 Docker 的整合測試")
	}

	ctx := context.Background()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start nats container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get nats host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4222/tcp")
	if err != nil {
		t.Fatalf("failed to get nats port: %v", err)
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}
