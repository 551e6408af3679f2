// AngelaMos | 2026
// service.go

package library

import (
	"context"
	"fmt"
	"time"

	"github.com/bpa-library/library/internal/core"
)

const maxDownloads = 100

type Service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) AddFavorite(ctx context.Context, userID, bookID int64) (bool, error) {
	if err := requireIDs(userID, bookID); err != nil {
		return false, err
	}
	if err := s.repo.BookExists(ctx, bookID); err != nil {
		return false, err
	}
	return s.repo.AddFavorite(ctx, userID, bookID, s.now().UTC())
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, bookID int64) error {
	if err := requireIDs(userID, bookID); err != nil {
		return err
	}

	removed, err := s.repo.RemoveFavorite(ctx, userID, bookID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("remove favorite: %w", core.ErrNotFound)
	}
	return nil
}

func (s *Service) IsFavorite(ctx context.Context, userID, bookID int64) (bool, error) {
	if err := requireIDs(userID, bookID); err != nil {
		return false, err
	}
	return s.repo.IsFavorite(ctx, userID, bookID)
}

func (s *Service) ListFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	if userID == 0 {
		return nil, fmt.Errorf("list favorites: %w", core.ErrUnauthorized)
	}
	return s.repo.ListFavorites(ctx, userID)
}

func (s *Service) RecordDownload(
	ctx context.Context,
	userID int64,
	req RecordDownloadRequest,
) (int64, error) {
	if err := requireIDs(userID, req.BookID); err != nil {
		return 0, err
	}

	d := &Download{
		UserID:       userID,
		BookID:       req.BookID,
		ChapterID:    req.ChapterID,
		FilePath:     req.FilePath,
		FileSize:     req.FileSize,
		DownloadedAt: s.now().UTC(),
	}
	if err := s.repo.RecordDownload(ctx, d); err != nil {
		return 0, err
	}
	return d.ID, nil
}

func (s *Service) ListDownloads(ctx context.Context, userID int64) ([]Download, error) {
	if userID == 0 {
		return nil, fmt.Errorf("list downloads: %w", core.ErrUnauthorized)
	}
	return s.repo.ListDownloads(ctx, userID, maxDownloads)
}

func requireIDs(userID, bookID int64) error {
	if userID == 0 {
		return core.ErrUnauthorized
	}
	if bookID <= 0 {
		return fmt.Errorf("book id %d: %w", bookID, core.ErrInvalidInput)
	}
	return nil
}
