// AngelaMos | 2026
// entity.go

package playback

import (
	"time"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeMerged  Outcome = "merged"
	OutcomeIgnored Outcome = "ignored"
)

// DefaultWindow is the recency window W.
const DefaultWindow = 5 * time.Minute

// Key identifies one history stream. A nil ChapterID is the book-level
// stream and is distinct from every chapter stream.
type Key struct {
	UserID    int64
	BookID    int64
	ChapterID *int64
}

// Event is one reported listening position. A zero At means "now" on
// the engine clock.
type Event struct {
	UserID    int64
	BookID    int64
	ChapterID *int64
	Duration  int
	Progress  int
	At        time.Time
}

func (e Event) Key() Key {
	return Key{UserID: e.UserID, BookID: e.BookID, ChapterID: e.ChapterID}
}

type Record struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	BookID     int64     `db:"book_id"`
	ChapterID  *int64    `db:"chapter_id"`
	Progress   int       `db:"progress"`
	Duration   int       `db:"duration"`
	AccessedAt time.Time `db:"accessed_at"`
}

// RecentPlay is the latest record of one (book, chapter) stream for a
// user, joined with catalog titles.
type RecentPlay struct {
	BookID        int64     `db:"book_id"`
	ChapterID     *int64    `db:"chapter_id"`
	Title         string    `db:"title"`
	Author        string    `db:"author"`
	ChapterTitle  *string   `db:"chapter_title"`
	ChapterNumber *int      `db:"chapter_number"`
	Progress      int       `db:"progress"`
	Duration      int       `db:"duration"`
	LastPlayed    time.Time `db:"last_played"`
}
