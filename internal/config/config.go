// Package config 載入 pong-arena 的設定
//
// 優先順序：環境變數 > YAML 檔 > 預設值。
// 設定檔不存在時直接使用預設值，方便本機開發。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Game      GameConfig      `yaml:"game"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Auth      AuthConfig      `yaml:"auth"`
	NATS      NATSConfig      `yaml:"nats"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // 空白表示不檢查
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// GameConfig 對戰與配對的時間參數
type GameConfig struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	CountdownFrom  int           `yaml:"countdown_from"`
	CountdownStep  time.Duration `yaml:"countdown_step"`
	CountdownPoll  time.Duration `yaml:"countdown_poll"`
	SearchDeadline time.Duration `yaml:"search_deadline"`
	SearchPoll     time.Duration `yaml:"search_poll"`
}

type WebSocketConfig struct {
	ReadLimit    int64         `yaml:"read_limit"`
	PingPeriod   time.Duration `yaml:"ping_period"`
	PongWait     time.Duration `yaml:"pong_wait"`
	WriteWait    time.Duration `yaml:"write_wait"`
	SendBuffer   int           `yaml:"send_buffer"`
	MessageRate  float64       `yaml:"message_rate"`  // 每秒
	MessageBurst int           `yaml:"message_burst"` // 瞬間上限
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	RequireToken bool   `yaml:"require_token"`
}

// NATSConfig URL 為空時不啟用事件串流
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Stream        string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// PostgresConfig DSN 為空時不記錄對戰歷史
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// RedisConfig Addr 為空時不啟用排行榜
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default 預設配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Game: GameConfig{
			TickInterval:   time.Second,
			CountdownFrom:  5,
			CountdownStep:  time.Second,
			CountdownPoll:  200 * time.Millisecond,
			SearchDeadline: 60 * time.Second,
			SearchPoll:     2 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:    8192,
			PingPeriod:   54 * time.Second,
			PongWait:     60 * time.Second,
			WriteWait:    10 * time.Second,
			SendBuffer:   256,
			MessageRate:  30,
			MessageBurst: 60,
		},
		NATS: NATSConfig{
			Stream:        "PONG_EVENTS",
			SubjectPrefix: "pong",
			MaxAge:        24 * time.Hour,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
		},
	}
}

// Load 讀取設定檔並套用環境變數
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path 來自啟動參數
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PONG_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PONG_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("PONG_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PONG_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	return nil
}

// Validate 檢查設定是否合理
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 必須在 1-65535 之間: %d", c.Server.Port)
	}

	positive := map[string]time.Duration{
		"game.tick_interval":    c.Game.TickInterval,
		"game.countdown_step":   c.Game.CountdownStep,
		"game.countdown_poll":   c.Game.CountdownPoll,
		"game.search_deadline":  c.Game.SearchDeadline,
		"game.search_poll":      c.Game.SearchPoll,
		"websocket.ping_period": c.WebSocket.PingPeriod,
		"websocket.pong_wait":   c.WebSocket.PongWait,
		"websocket.write_wait":  c.WebSocket.WriteWait,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s 必須大於 0", name)
		}
	}

	if c.Game.CountdownFrom <= 0 {
		return fmt.Errorf("game.countdown_from 必須大於 0")
	}
	if c.Game.SearchDeadline <= c.Game.SearchPoll {
		return fmt.Errorf("game.search_deadline 必須大於 game.search_poll")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_period 必須小於 websocket.pong_wait")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket.send_buffer 必須大於 0")
	}
	if c.WebSocket.MessageRate <= 0 || c.WebSocket.MessageBurst <= 0 {
		return fmt.Errorf("websocket.message_rate 與 message_burst 必須大於 0")
	}
	if c.Auth.RequireToken && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.require_token 需要設定 auth.jwt_secret")
	}
	return nil
}

// Addr HTTP 監聽位址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
