// Package handler 提供管理用的 HTTP API
//
// 只讀：房間狀態、統計、對戰歷史與排行榜。對戰操作全部走 WebSocket。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/koopa0/system-design/pong-arena/internal/room"
	"github.com/koopa0/system-design/pong-arena/internal/store"
)

// MatchHistory 對戰歷史的讀取端
type MatchHistory interface {
	ListMatches(ctx context.Context, playerID string, limit int) ([]store.MatchRecord, error)
}

// Leaderboard 排行榜的讀取端
type Leaderboard interface {
	Top(ctx context.Context, n int) ([]store.LeaderboardEntry, error)
}

// ConnectionCounter 目前的 WebSocket 連線數
type ConnectionCounter interface {
	Count() int
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler HTTP 請求處理器
type Handler struct {
	manager     *room.Manager
	connections ConnectionCounter
	ws          http.Handler
	matches     MatchHistory // nil 表示未啟用
	leaderboard Leaderboard  // nil 表示未啟用
	logger      *slog.Logger
}

// Option 設定可選的依賴
type Option func(*Handler)

// WithWebSocket 掛上 /ws 端點
func WithWebSocket(ws http.Handler, connections ConnectionCounter) Option {
	return func(h *Handler) {
		h.ws = ws
		h.connections = connections
	}
}

// WithMatchHistory 啟用 /api/v1/matches
func WithMatchHistory(matches MatchHistory) Option {
	return func(h *Handler) { h.matches = matches }
}

// WithLeaderboard 啟用 /api/v1/leaderboard
func WithLeaderboard(leaderboard Leaderboard) Option {
	return func(h *Handler) { h.leaderboard = leaderboard }
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *room.Manager, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		manager: manager,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()

	// 中間件鏈
	r.Use(h.recoverer, h.loggerMiddleware)

	if h.ws != nil {
		r.Handle("/ws", h.ws)
	}

	// 健康檢查
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rooms", h.listRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}", h.getRoom).Methods(http.MethodGet)
	api.HandleFunc("/matches", h.listMatches).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", h.topPlayers).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.errorResponse(w, "找不到資源", http.StatusNotFound)
	})
	return r
}

// health 健康檢查，會一併檢查已啟用的儲存
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true
	check := func(name string, dep any) {
		p, ok := dep.(pinger)
		if !ok {
			return
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("健康檢查失敗", "dependency", name, "error", err)
			checks[name] = "unhealthy"
			healthy = false
			return
		}
		checks[name] = "healthy"
	}
	check("postgres", h.matches)
	check("redis", h.leaderboard)

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	h.jsonResponse(w, map[string]any{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	}, code)
}

type statsResponse struct {
	room.Stats
	Connections int `json:"connections"`
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Stats: h.manager.GetStats()}
	if h.connections != nil {
		resp.Connections = h.connections.Count()
	}
	h.jsonResponse(w, resp, http.StatusOK)
}

// listRooms 等待第二位玩家的房間，最早建立的在前
func (h *Handler) listRooms(w http.ResponseWriter, _ *http.Request) {
	open := make([]room.Info, 0)
	for _, info := range h.manager.ListRooms() {
		if len(info.Players) < room.MaxPlayers {
			open = append(open, info)
		}
	}

	h.jsonResponse(w, map[string]any{
		"rooms": open,
		"total": len(open),
	}, http.StatusOK)
}

// getRoom 房間詳情
func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	info, err := h.manager.GetRoom(code)
	if err != nil {
		h.errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, info, http.StatusOK)
}

// listMatches 對戰歷史
func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	if h.matches == nil {
		h.errorResponse(w, "對戰歷史未啟用", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	limit := parseLimit(query.Get("limit"), 20)

	matches, err := h.matches.ListMatches(r.Context(), query.Get("player_id"), limit)
	if err != nil {
		h.logger.Error("查詢對戰歷史失敗", "error", err)
		h.errorResponse(w, "查詢對戰歷史失敗", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]any{
		"matches": matches,
		"total":   len(matches),
	}, http.StatusOK)
}

// topPlayers 排行榜
func (h *Handler) topPlayers(w http.ResponseWriter, r *http.Request) {
	if h.leaderboard == nil {
		h.errorResponse(w, "排行榜未啟用", http.StatusServiceUnavailable)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 10)

	entries, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		h.logger.Error("讀取排行榜失敗", "error", err)
		h.errorResponse(w, "讀取排行榜失敗", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]any{
		"players": entries,
	}, http.StatusOK)
}

// parseLimit 解析 limit，範圍 1-100，不合法時用預設值
func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 || val > 100 {
		return def
	}
	return val
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}
