// AngelaMos | 2026
// entity.go

package library

import (
	"time"
)

type Favorite struct {
	BookID    int64     `db:"book_id"    json:"book_id"`
	Title     string    `db:"title"      json:"title"`
	Author    string    `db:"author"     json:"author"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Download struct {
	ID           int64     `db:"id"            json:"id"`
	UserID       int64     `db:"user_id"       json:"-"`
	BookID       int64     `db:"book_id"       json:"book_id"`
	ChapterID    *int64    `db:"chapter_id"    json:"chapter_id,omitempty"`
	Title        string    `db:"title"         json:"title"`
	ChapterTitle *string   `db:"chapter_title" json:"chapter_title,omitempty"`
	FilePath     string    `db:"file_path"     json:"file_path"`
	FileSize     int64     `db:"file_size"     json:"file_size"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
}
