// AngelaMos | 2026
// service.go

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bpa-library/library/internal/config"
	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/storage"
)

const (
	audioContentType = "audio/mpeg"
	presignTimeout   = 10 * time.Second
	uploadTimeout    = 5 * time.Minute
)

var ErrStorageUnavailable = errors.New("object storage unavailable")

type Service struct {
	repo   *Repository
	store  storage.ObjectStore
	urlTTL time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewService(
	repo *Repository,
	store storage.ObjectStore,
	cfg config.StorageConfig,
	logger *slog.Logger,
) *Service {
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		repo:   repo,
		store:  store,
		urlTTL: ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (s *Service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	c := &Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error) {
	b := req.ToBook()
	b.CreatedAt = s.now().UTC()
	if err := s.repo.CreateBook(ctx, b); err != nil {
		return nil, err
	}
	return s.repo.GetBook(ctx, b.ID)
}

func (s *Service) ListBooks(ctx context.Context, params ListBooksParams) ([]Book, int, error) {
	return s.repo.ListBooks(ctx, params)
}

func (s *Service) GetBook(ctx context.Context, id int64) (*BookDetailResponse, error) {
	b, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	chapters, err := s.repo.ListChapters(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BookDetailResponse{Book: *b, Chapters: chapters}, nil
}

func (s *Service) ListChapters(ctx context.Context, bookID int64) ([]Chapter, error) {
	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.repo.ListChapters(ctx, bookID)
}

func (s *Service) GetChapter(ctx context.Context, id int64) (*Chapter, error) {
	return s.repo.GetChapter(ctx, id)
}

func (s *Service) GetChapterByNumber(ctx context.Context, bookID int64, number int) (*Chapter, error) {
	if number <= 0 {
		return nil, fmt.Errorf("chapter number %d: %w", number, core.ErrInvalidInput)
	}
	return s.repo.GetChapterByNumber(ctx, bookID, number)
}

// RegisterChapters records chapters whose audio already sits in the
// bucket. Numbers must be unique within the request.
func (s *Service) RegisterChapters(
	ctx context.Context,
	bookID int64,
	req RegisterChaptersRequest,
) (int64, error) {
	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return 0, err
	}

	created := s.now().UTC()
	seen := make(map[int]struct{}, len(req.Chapters))
	chapters := make([]Chapter, 0, len(req.Chapters))
	for _, entry := range req.Chapters {
		if _, dup := seen[entry.ChapterNumber]; dup {
			return 0, fmt.Errorf(
				"chapter number %d repeated: %w",
				entry.ChapterNumber,
				core.ErrInvalidInput,
			)
		}
		seen[entry.ChapterNumber] = struct{}{}

		chapters = append(chapters, Chapter{
			BookID:        bookID,
			Title:         strings.TrimSpace(entry.Title),
			ChapterNumber: entry.ChapterNumber,
			CreatedAt:     created,
		})
	}

	return s.repo.CreateChapters(ctx, chapters)
}

// UploadAudio stores one chapter file under the book's folder and
// records it. Files that do not carry a chapter number are neither
// stored nor recorded.
func (s *Service) UploadAudio(
	ctx context.Context,
	bookID int64,
	filename string,
	r io.Reader,
	size int64,
) (*UploadResult, error) {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if filename == "." || filename == "/" {
		return nil, fmt.Errorf("upload: empty file name: %w", core.ErrInvalidInput)
	}

	b, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	number, ok := ChapterNumber(filename)
	if !ok {
		return &UploadResult{
			FilePath: filename,
			Note:     "file name carries no chapter number; not stored",
		}, nil
	}

	key := b.ObjectKey(filename)

	putCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	if err := s.store.Put(putCtx, key, r, size, audioContentType); err != nil {
		s.logger.ErrorContext(ctx, "audio upload failed",
			"book_id", bookID,
			"key", key,
			"error", err,
		)
		return nil, fmt.Errorf("upload %q: %w", filename, ErrStorageUnavailable)
	}

	existing, err := s.repo.GetChapterByNumber(ctx, bookID, number)
	switch {
	case err == nil:
		return &UploadResult{FilePath: key, Chapter: existing, Replaced: true}, nil
	case !errors.Is(err, core.ErrNotFound):
		return nil, err
	}

	ch := &Chapter{
		BookID:        bookID,
		Title:         filename,
		ChapterNumber: number,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateChapter(ctx, ch); err != nil {
		return nil, err
	}

	return &UploadResult{FilePath: key, Chapter: ch, Recorded: true}, nil
}

// AudioURL signs a time-limited GET for one file of the book.
func (s *Service) AudioURL(
	ctx context.Context,
	bookID int64,
	chapterTitle string,
) (*AudioURLResponse, error) {
	chapterTitle = strings.TrimSpace(chapterTitle)
	if chapterTitle == "" || strings.Contains(chapterTitle, "..") {
		return nil, fmt.Errorf("audio url: bad chapter title: %w", core.ErrInvalidInput)
	}

	b, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	signCtx, cancel := context.WithTimeout(ctx, presignTimeout)
	defer cancel()

	issued := s.now()
	url, err := s.store.PresignGet(signCtx, b.ObjectKey(chapterTitle), s.urlTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "presign failed",
			"book_id", bookID,
			"error", err,
		)
		return nil, fmt.Errorf("audio url: %w", ErrStorageUnavailable)
	}

	return &AudioURLResponse{URL: url, ExpiresAt: issued.Add(s.urlTTL).UTC()}, nil
}
