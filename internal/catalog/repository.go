// AngelaMos | 2026
// repository.go

package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/bpa-library/library/internal/gateway"
)

const (
	bookColumns = `
		SELECT b.id, b.title, b.author, b.publisher, b.isbn, b.description,
		       b.category_id, c.name AS category_name, b.created_at
		FROM books b
		LEFT JOIN categories c ON c.id = b.category_id`

	chapterColumns = `
		SELECT id, book_id, title, chapter_number, created_at
		FROM chapters`
)

type Repository struct {
	db gateway.Batcher
}

func NewRepository(db gateway.Batcher) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateCategory(ctx context.Context, c *Category) error {
	id, err := r.db.InsertID(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`,
		c.Name, c.Description)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	c.ID = id
	return nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	categories := []Category{}
	if err := r.db.SelectInto(ctx, &categories,
		`SELECT id, name, description FROM categories ORDER BY name`,
	); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *Repository) CreateBook(ctx context.Context, b *Book) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	id, err := r.db.InsertID(ctx, `
		INSERT INTO books (title, author, publisher, isbn, description, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Title,
		b.Author,
		b.Publisher,
		b.ISBN,
		b.Description,
		b.CategoryID,
		b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	b.ID = id
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	if err := r.db.Get(ctx, &b, bookColumns+` WHERE b.id = ?`, id); err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// ListBooks matches search against title, author and category name.
func (r *Repository) ListBooks(
	ctx context.Context,
	params ListBooksParams,
) ([]Book, int, error) {
	params.Normalize()

	where := ""
	var args []any
	if params.Search != "" {
		like := r.db.Dialect().ILike()
		where = fmt.Sprintf(
			" WHERE b.title %[1]s ? OR b.author %[1]s ? OR c.name %[1]s ?",
			like,
		)
		pattern := "%" + escapeLike(params.Search) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	countQuery := `
		SELECT COUNT(*) FROM books b
		LEFT JOIN categories c ON c.id = b.category_id` + where
	if err := r.db.Get(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	books := []Book{}
	query := bookColumns + where + `
		ORDER BY b.title, b.id
		LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, params.Offset())
	if err := r.db.SelectInto(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	return books, total, nil
}

func (r *Repository) ListChapters(ctx context.Context, bookID int64) ([]Chapter, error) {
	chapters := []Chapter{}
	if err := r.db.SelectInto(ctx, &chapters,
		chapterColumns+` WHERE book_id = ? ORDER BY chapter_number`,
		bookID,
	); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

func (r *Repository) GetChapter(ctx context.Context, id int64) (*Chapter, error) {
	var c Chapter
	if err := r.db.Get(ctx, &c, chapterColumns+` WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return &c, nil
}

func (r *Repository) GetChapterByNumber(
	ctx context.Context,
	bookID int64,
	number int,
) (*Chapter, error) {
	var c Chapter
	if err := r.db.Get(ctx, &c,
		chapterColumns+` WHERE book_id = ? AND chapter_number = ?`,
		bookID, number,
	); err != nil {
		return nil, fmt.Errorf("get chapter by number: %w", err)
	}
	return &c, nil
}

func (r *Repository) CreateChapter(ctx context.Context, c *Chapter) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	id, err := r.db.InsertID(ctx, `
		INSERT INTO chapters (book_id, title, chapter_number, created_at)
		VALUES (?, ?, ?, ?)`,
		c.BookID, c.Title, c.ChapterNumber, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}

	c.ID = id
	return nil
}

// CreateChapters records every chapter of one book or none of them.
func (r *Repository) CreateChapters(ctx context.Context, chapters []Chapter) (int64, error) {
	rows := make([][]any, 0, len(chapters))
	for _, c := range chapters {
		rows = append(rows, []any{c.BookID, c.Title, c.ChapterNumber, c.CreatedAt})
	}

	n, err := r.db.InsertBatch(ctx, `
		INSERT INTO chapters (book_id, title, chapter_number, created_at)
		VALUES (?, ?, ?, ?)`,
		rows)
	if err != nil {
		return 0, fmt.Errorf("create chapters: %w", err)
	}
	return n, nil
}

// Counts totals the catalog for the admin dashboard.
func (r *Repository) Counts(ctx context.Context) (books, chapters int, err error) {
	if err = r.db.Get(ctx, &books, `SELECT COUNT(*) FROM books`); err != nil {
		return 0, 0, fmt.Errorf("count books: %w", err)
	}
	if err = r.db.Get(ctx, &chapters, `SELECT COUNT(*) FROM chapters`); err != nil {
		return 0, 0, fmt.Errorf("count chapters: %w", err)
	}
	return books, chapters, nil
}

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
