// AngelaMos | 2026
// repository.go

package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/bpa-library/library/internal/gateway"
)

const (
	lockUserQuery = `SELECT id FROM users WHERE id = ? FOR UPDATE`

	latestColumns = `
		SELECT id, user_id, book_id, chapter_id, progress, duration, accessed_at
		FROM access_history`

	latestChapterQuery = latestColumns + `
		WHERE user_id = ? AND book_id = ? AND chapter_id = ?
		ORDER BY accessed_at DESC, id DESC
		LIMIT 1`

	latestBookQuery = latestColumns + `
		WHERE user_id = ? AND book_id = ? AND chapter_id IS NULL
		ORDER BY accessed_at DESC, id DESC
		LIMIT 1`

	createRecordQuery = `
		INSERT INTO access_history
			(user_id, book_id, chapter_id, progress, duration, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	mergeRecordQuery = `
		UPDATE access_history
		SET progress = ?, duration = ?, accessed_at = ?
		WHERE id = ? AND progress < ?`

	recentQuery = `
		SELECT ranked.book_id, ranked.chapter_id, b.title, b.author,
		       c.title AS chapter_title, c.chapter_number,
		       ranked.progress, ranked.duration, ranked.accessed_at AS last_played
		FROM (
			SELECT ah.book_id, ah.chapter_id, ah.progress, ah.duration, ah.accessed_at,
			       ROW_NUMBER() OVER (
			           PARTITION BY ah.book_id, ah.chapter_id
			           ORDER BY ah.accessed_at DESC, ah.id DESC
			       ) AS rn
			FROM access_history ah
			WHERE ah.user_id = ?
		) ranked
		JOIN books b ON b.id = ranked.book_id
		LEFT JOIN chapters c ON c.id = ranked.chapter_id
		WHERE ranked.rn = 1
		ORDER BY ranked.accessed_at DESC
		LIMIT ?`

	clearHistoryQuery = `DELETE FROM access_history WHERE user_id = ?`
)

// Repository keeps access history in the relational backend. It
// implements Store by locking the owning users row, which both dialects
// support with SELECT ... FOR UPDATE.
type Repository struct {
	exec *gateway.Executor
}

func NewRepository(exec *gateway.Executor) *Repository {
	return &Repository{exec: exec}
}

func (r *Repository) WithinLock(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, tx Tx) error,
) error {
	return r.exec.InTx(ctx, func(ctx context.Context, tx *gateway.Tx) error {
		var lockedID int64
		if err := tx.Get(ctx, &lockedID, lockUserQuery, userID); err != nil {
			return fmt.Errorf("lock user %d: %w", userID, err)
		}
		return fn(ctx, &sqlTx{tx: tx})
	})
}

func (r *Repository) Recent(
	ctx context.Context,
	userID int64,
	limit int,
) ([]RecentPlay, error) {
	plays := make([]RecentPlay, 0, limit)
	if err := r.exec.SelectInto(ctx, &plays, recentQuery, userID, limit); err != nil {
		return nil, fmt.Errorf("recent plays: %w", err)
	}
	return plays, nil
}

func (r *Repository) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	n, err := r.exec.Update(ctx, clearHistoryQuery, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return n, nil
}

type sqlTx struct {
	tx *gateway.Tx
}

func (t *sqlTx) Latest(ctx context.Context, key Key) (*Record, error) {
	var records []Record
	var err error
	if key.ChapterID == nil {
		err = t.tx.SelectInto(ctx, &records, latestBookQuery, key.UserID, key.BookID)
	} else {
		err = t.tx.SelectInto(ctx, &records, latestChapterQuery,
			key.UserID, key.BookID, *key.ChapterID)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (t *sqlTx) Create(ctx context.Context, rec Record) (int64, error) {
	return t.tx.InsertID(ctx, createRecordQuery,
		rec.UserID,
		rec.BookID,
		rec.ChapterID,
		rec.Progress,
		rec.Duration,
		rec.AccessedAt,
	)
}

func (t *sqlTx) Merge(
	ctx context.Context,
	id int64,
	progress, duration int,
	at time.Time,
) (bool, error) {
	n, err := t.tx.Update(ctx, mergeRecordQuery, progress, duration, at, id, progress)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ Store = (*Repository)(nil)
