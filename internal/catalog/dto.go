// AngelaMos | 2026
// dto.go

package catalog

import (
	"strings"
	"time"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type CreateCategoryRequest struct {
	Name        string  `json:"name"        validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type CreateBookRequest struct {
	Title       string  `json:"title"       validate:"required,min=1,max=255"`
	Author      string  `json:"author"      validate:"required,min=1,max=255"`
	Publisher   *string `json:"publisher"   validate:"omitempty,max=255"`
	ISBN        *string `json:"isbn"        validate:"omitempty,max=20"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	CategoryID  *int64  `json:"category_id" validate:"omitempty,gt=0"`
}

func (r CreateBookRequest) ToBook() *Book {
	return &Book{
		Title:       strings.TrimSpace(r.Title),
		Author:      strings.TrimSpace(r.Author),
		Publisher:   r.Publisher,
		ISBN:        r.ISBN,
		Description: r.Description,
		CategoryID:  r.CategoryID,
	}
}

type ChapterEntry struct {
	Title         string `json:"title"          validate:"required,min=1,max=255"`
	ChapterNumber int    `json:"chapter_number" validate:"required,gt=0"`
}

type RegisterChaptersRequest struct {
	Chapters []ChapterEntry `json:"chapters" validate:"required,min=1,max=500,dive"`
}

type RegisterChaptersResponse struct {
	Created int64 `json:"created"`
}

type ListBooksParams struct {
	Page     int
	PageSize int
	Search   string
}

func (p *ListBooksParams) Normalize() {
	p.Search = strings.TrimSpace(p.Search)
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 50
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListBooksParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type BookDetailResponse struct {
	Book
	Chapters []Chapter `json:"chapters"`
}

type UploadResult struct {
	FilePath string   `json:"file_path"`
	Chapter  *Chapter `json:"chapter,omitempty"`
	Recorded bool     `json:"recorded"`
	Replaced bool     `json:"replaced"`
	Note     string   `json:"note,omitempty"`
}

type AudioURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
