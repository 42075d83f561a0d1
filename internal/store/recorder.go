package store

import (
	"context"
	"log/slog"

	"github.com/koopa0/system-design/pong-arena/internal/events"
)

// MatchSaver 對戰歷史的寫入端
type MatchSaver interface {
	SaveMatch(ctx context.Context, m events.MatchResult) (int64, error)
}

// WinRecorder 排行榜的寫入端
type WinRecorder interface {
	RecordWin(ctx context.Context, playerID string) (int64, error)
}

// MatchRecorder 將 match.ended 事件寫入歷史與排行榜
//
// 任一寫入端可以為 nil。訪客的勝場不計入排行榜，平手也不計。
type MatchRecorder struct {
	matches MatchSaver
	wins    WinRecorder
	logger  *slog.Logger
}

func NewMatchRecorder(matches MatchSaver, wins WinRecorder, logger *slog.Logger) *MatchRecorder {
	return &MatchRecorder{matches: matches, wins: wins, logger: logger}
}

func (r *MatchRecorder) Name() string { return "match_recorder" }

func (r *MatchRecorder) Handle(ctx context.Context, e events.Event) error {
	if e.Type != events.MatchEnded || e.Match == nil {
		return nil
	}
	m := *e.Match

	if r.matches != nil {
		id, err := r.matches.SaveMatch(ctx, m)
		if err != nil {
			return err
		}
		r.logger.Debug("對戰結果已保存", "match_id", id, "room_code", m.RoomCode)
	}

	if r.wins == nil {
		return nil
	}
	winner, ok := m.Winner()
	if !ok || winner.IsGuest {
		return nil
	}
	wins, err := r.wins.RecordWin(ctx, winner.ID)
	if err != nil {
		return err
	}
	r.logger.Debug("排行榜已更新", "player_id", winner.ID, "wins", wins)
	return nil
}
