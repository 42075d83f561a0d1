package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/pong-arena/internal/auth"
	"github.com/koopa0/system-design/pong-arena/internal/config"
	"github.com/koopa0/system-design/pong-arena/internal/events"
	"github.com/koopa0/system-design/pong-arena/internal/handler"
	"github.com/koopa0/system-design/pong-arena/internal/room"
	"github.com/koopa0/system-design/pong-arena/internal/store"
	"github.com/koopa0/system-design/pong-arena/internal/store/migrations"
	"github.com/koopa0/system-design/pong-arena/internal/ws"
	"github.com/koopa0/system-design/pong-arena/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置檔路徑")
	flag.Parse()

	// .env 不存在時忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Level == "debug")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("伺服器異常結束", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	sinks := []events.Sink{events.NewLogSink(log)}

	var (
		closers []io.Closer
		opts    []handler.Option

		matchSaver  store.MatchSaver
		winRecorder store.WinRecorder
	)
	defer func() {
		// 反向關閉
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("關閉資源失敗", "error", err)
			}
		}
	}()

	// 事件串流
	if cfg.NATS.URL != "" {
		sink, err := events.NewNATSSink(events.NATSConfig{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxAge:        cfg.NATS.MaxAge,
		})
		if err != nil {
			return err
		}
		closers = append(closers, sink)
		sinks = append(sinks, sink)
		log.Info("NATS 事件串流已啟用", "url", cfg.NATS.URL, "stream", cfg.NATS.Stream)
	}

	// 對戰歷史
	if cfg.Postgres.DSN != "" {
		if err := migrations.Run(cfg.Postgres.DSN, log); err != nil {
			return err
		}
		pool, err := store.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return err
		}
		pg := store.NewPostgresStore(pool, log)
		closers = append(closers, closerFunc(pg.Close))
		matchSaver = pg
		opts = append(opts, handler.WithMatchHistory(pg))
		log.Info("對戰歷史已啟用")
	}

	// 排行榜
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		closers = append(closers, client)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("連接 Redis 失敗: %w", err)
		}

		lb := store.NewRedisLeaderboard(client)
		winRecorder = lb
		opts = append(opts, handler.WithLeaderboard(lb))
		log.Info("排行榜已啟用", "addr", cfg.Redis.Addr)
	}

	if matchSaver != nil || winRecorder != nil {
		sinks = append(sinks, store.NewMatchRecorder(matchSaver, winRecorder, log))
	}

	bus := events.NewBus(log, 1024, sinks...)

	manager := room.NewManager(log, room.Options{
		TickInterval:   cfg.Game.TickInterval,
		CountdownFrom:  cfg.Game.CountdownFrom,
		CountdownStep:  cfg.Game.CountdownStep,
		CountdownPoll:  cfg.Game.CountdownPoll,
		SearchDeadline: cfg.Game.SearchDeadline,
		SearchPoll:     cfg.Game.SearchPoll,
		Events:         bus,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.RequireToken)
	hub := ws.NewHub(manager, verifier, log, ws.Options{
		ReadLimit:      cfg.WebSocket.ReadLimit,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MessageRate:    cfg.WebSocket.MessageRate,
		MessageBurst:   cfg.WebSocket.MessageBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	opts = append(opts, handler.WithWebSocket(http.HandlerFunc(hub.ServeWS), hub))
	h := handler.NewHandler(manager, log, opts...)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動伺服器
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("對戰伺服器啟動",
			"addr", srv.Addr,
			"tick_interval", cfg.Game.TickInterval,
			"auth", verifier.Enabled())
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		log.Info("收到關閉信號，開始優雅關閉", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// 停止接受新連接
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("服務器關閉失敗", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("強制關閉服務器失敗", "error", closeErr)
			}
		}
	}

	// WebSocket 連線被 hijack，不受 Shutdown 管理，需要另外關閉
	hub.Stop()
	manager.Stop()
	bus.Close()

	log.Info("服務器已關閉")
	return runErr
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
