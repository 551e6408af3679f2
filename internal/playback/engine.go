// AngelaMos | 2026
// engine.go

package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bpa-library/library/internal/core"
)

// Store serializes decisions per user. WithinLock must hold an exclusive
// lock for userID for the whole of fn and commit fn's writes atomically.
type Store interface {
	WithinLock(ctx context.Context, userID int64, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of history available while the lock is held.
type Tx interface {
	// Latest returns the most recent record for key, or nil.
	Latest(ctx context.Context, key Key) (*Record, error)
	Create(ctx context.Context, rec Record) (int64, error)
	// Merge raises the record to progress and reports whether it
	// applied. It must not apply when stored progress is already >=
	// progress.
	Merge(ctx context.Context, id int64, progress, duration int, at time.Time) (bool, error)
}

type Engine struct {
	store  Store
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Engine)

func WithWindow(w time.Duration) Option {
	return func(e *Engine) {
		if w > 0 {
			e.window = w
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		window: DefaultWindow,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Window() time.Duration {
	return e.window
}

// Decide is the pure merge-or-create rule. A record exactly W old is
// still live; equal progress is ignored.
func Decide(latest *Record, ev Event, now time.Time, window time.Duration) Outcome {
	if latest == nil || now.Sub(latest.AccessedAt) > window {
		return OutcomeCreated
	}
	if ev.Progress > latest.Progress {
		return OutcomeMerged
	}
	return OutcomeIgnored
}

// RecordPlayEvent is the single entry point for progress reports. The
// read, decision and write happen under the store's per-user lock, so
// concurrent events for one key resolve as if applied one at a time.
func (e *Engine) RecordPlayEvent(ctx context.Context, ev Event) (outcome Outcome, err error) {
	ctx, span := core.StartSpan(ctx, "playback.record",
		core.AttrUserID.Int64(ev.UserID),
		core.AttrBookID.Int64(ev.BookID),
	)
	defer func() { core.EndSpan(span, err) }()

	if ev.ChapterID != nil {
		span.SetAttributes(core.AttrChapterID.Int64(*ev.ChapterID))
	}

	if ev.UserID <= 0 || ev.BookID <= 0 {
		return "", fmt.Errorf("record play: user and book are required: %w", core.ErrInvalidInput)
	}
	if ev.ChapterID != nil && *ev.ChapterID <= 0 {
		return "", fmt.Errorf("record play: invalid chapter: %w", core.ErrInvalidInput)
	}

	now := ev.At
	if now.IsZero() {
		now = e.now()
	}
	now = now.UTC()

	err = e.store.WithinLock(ctx, ev.UserID, func(ctx context.Context, tx Tx) error {
		latest, err := tx.Latest(ctx, ev.Key())
		if err != nil {
			return fmt.Errorf("latest record: %w", err)
		}

		outcome = Decide(latest, ev, now, e.window)

		switch outcome {
		case OutcomeCreated:
			_, err = tx.Create(ctx, Record{
				UserID:     ev.UserID,
				BookID:     ev.BookID,
				ChapterID:  ev.ChapterID,
				Progress:   ev.Progress,
				Duration:   ev.Duration,
				AccessedAt: now,
			})
			if err != nil {
				return fmt.Errorf("create record: %w", err)
			}
		case OutcomeMerged:
			applied, err := tx.Merge(
				ctx,
				latest.ID,
				ev.Progress,
				max(latest.Duration, ev.Duration),
				now,
			)
			if err != nil {
				return fmt.Errorf("merge record: %w", err)
			}
			if !applied {
				outcome = OutcomeIgnored
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("record play: %w", err)
	}

	span.SetAttributes(core.AttrOutcome.String(string(outcome)))
	e.logger.DebugContext(ctx, "play event recorded",
		"user_id", ev.UserID,
		"book_id", ev.BookID,
		"outcome", string(outcome),
	)

	return outcome, nil
}
