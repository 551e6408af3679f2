// AngelaMos | 2026
// repository.go

package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/gateway"
)

type Repository struct {
	db gateway.Querier
}

func NewRepository(db gateway.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BookExists(ctx context.Context, bookID int64) error {
	rows, err := r.db.Select(ctx, `SELECT id FROM books WHERE id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("find book: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("find book %d: %w", bookID, core.ErrNotFound)
	}
	return nil
}

// AddFavorite reports false when the book was already a favorite.
func (r *Repository) AddFavorite(
	ctx context.Context,
	userID, bookID int64,
	at time.Time,
) (bool, error) {
	_, err := r.db.Insert(ctx,
		`INSERT INTO favorites (user_id, book_id, created_at) VALUES (?, ?, ?)`,
		userID, bookID, at)
	if errors.Is(err, core.ErrDuplicateKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

func (r *Repository) RemoveFavorite(ctx context.Context, userID, bookID int64) (bool, error) {
	n, err := r.db.Update(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND book_id = ?`,
		userID, bookID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) IsFavorite(ctx context.Context, userID, bookID int64) (bool, error) {
	rows, err := r.db.Select(ctx,
		`SELECT id FROM favorites WHERE user_id = ? AND book_id = ?`,
		userID, bookID)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return len(rows) > 0, nil
}

func (r *Repository) ListFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	favorites := []Favorite{}
	if err := r.db.SelectInto(ctx, &favorites, `
		SELECT f.book_id, b.title, b.author, f.created_at
		FROM favorites f
		JOIN books b ON b.id = f.book_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.id DESC`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favorites, nil
}

func (r *Repository) RecordDownload(ctx context.Context, d *Download) error {
	id, err := r.db.InsertID(ctx, `
		INSERT INTO downloads (user_id, book_id, chapter_id, file_path, file_size, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.UserID,
		d.BookID,
		d.ChapterID,
		d.FilePath,
		d.FileSize,
		d.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}

	d.ID = id
	return nil
}

func (r *Repository) ListDownloads(ctx context.Context, userID int64, limit int) ([]Download, error) {
	downloads := []Download{}
	if err := r.db.SelectInto(ctx, &downloads, `
		SELECT d.id, d.user_id, d.book_id, d.chapter_id, b.title,
		       c.title AS chapter_title, d.file_path, d.file_size, d.downloaded_at
		FROM downloads d
		JOIN books b ON b.id = d.book_id
		LEFT JOIN chapters c ON c.id = d.chapter_id
		WHERE d.user_id = ?
		ORDER BY d.downloaded_at DESC, d.id DESC
		LIMIT ?`,
		userID, limit,
	); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return downloads, nil
}
