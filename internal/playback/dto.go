// AngelaMos | 2026
// dto.go

package playback

import (
	"math"
	"time"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

// PlayEventRequest accepts fractional values from players; they are
// rounded before reaching the engine.
type PlayEventRequest struct {
	BookID    int64   `json:"book_id"    validate:"required,gt=0"`
	ChapterID *int64  `json:"chapter_id" validate:"omitempty,gt=0"`
	Duration  float64 `json:"duration"   validate:"gte=0,lte=2147483647"`
	Progress  float64 `json:"progress"   validate:"gte=0,lte=100"`
}

func (r PlayEventRequest) ToEvent(userID int64) Event {
	return Event{
		UserID:    userID,
		BookID:    r.BookID,
		ChapterID: r.ChapterID,
		Duration:  int(math.Round(r.Duration)),
		Progress:  int(math.Round(r.Progress)),
	}
}

type PlayEventResponse struct {
	Outcome Outcome `json:"outcome"`
}

type RecentPlayResponse struct {
	BookID        int64     `json:"book_id"`
	ChapterID     *int64    `json:"chapter_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ChapterTitle  *string   `json:"chapter_title"`
	ChapterNumber *int      `json:"chapter_number"`
	Progress      int       `json:"progress"`
	Duration      int       `json:"duration"`
	LastPlayed    time.Time `json:"last_played"`
}

type ClearHistoryResponse struct {
	Deleted int64 `json:"deleted"`
}

func ClampRecentLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

func ToRecentPlayResponseList(plays []RecentPlay) []RecentPlayResponse {
	out := make([]RecentPlayResponse, 0, len(plays))
	for _, p := range plays {
		out = append(out, RecentPlayResponse(p))
	}
	return out
}
