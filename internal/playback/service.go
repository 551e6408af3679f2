// AngelaMos | 2026
// service.go

package playback

import (
	"context"
	"fmt"

	"github.com/bpa-library/library/internal/core"
)

type History interface {
	Recent(ctx context.Context, userID int64, limit int) ([]RecentPlay, error)
	ClearHistory(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	engine  *Engine
	history History
}

func NewService(engine *Engine, history History) *Service {
	return &Service{engine: engine, history: history}
}

func (s *Service) RecordPlay(
	ctx context.Context,
	userID int64,
	req PlayEventRequest,
) (Outcome, error) {
	if userID == 0 {
		return "", fmt.Errorf("record play: %w", core.ErrUnauthorized)
	}
	return s.engine.RecordPlayEvent(ctx, req.ToEvent(userID))
}

func (s *Service) Recent(
	ctx context.Context,
	userID int64,
	limit int,
) ([]RecentPlay, error) {
	if userID == 0 {
		return nil, fmt.Errorf("recent plays: %w", core.ErrUnauthorized)
	}
	return s.history.Recent(ctx, userID, ClampRecentLimit(limit))
}

func (s *Service) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("clear history: %w", core.ErrInvalidInput)
	}
	return s.history.ClearHistory(ctx, userID)
}
