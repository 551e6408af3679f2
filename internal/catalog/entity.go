// AngelaMos | 2026
// entity.go

package catalog

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Category struct {
	ID          int64   `db:"id"          json:"id"`
	Name        string  `db:"name"        json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
}

type Book struct {
	ID           int64     `db:"id"            json:"id"`
	Title        string    `db:"title"         json:"title"`
	Author       string    `db:"author"        json:"author"`
	Publisher    *string   `db:"publisher"     json:"publisher,omitempty"`
	ISBN         *string   `db:"isbn"          json:"isbn,omitempty"`
	Description  *string   `db:"description"   json:"description,omitempty"`
	CategoryID   *int64    `db:"category_id"   json:"category_id,omitempty"`
	CategoryName *string   `db:"category_name" json:"category_name,omitempty"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// Folder is the object store prefix holding the book's audio.
func (b *Book) Folder() string {
	return fmt.Sprintf("%s By %s", b.Title, b.Author)
}

// ObjectKey locates one audio file of the book.
func (b *Book) ObjectKey(filename string) string {
	return b.Folder() + "/" + filename
}

type Chapter struct {
	ID            int64     `db:"id"             json:"id"`
	BookID        int64     `db:"book_id"        json:"book_id"`
	Title         string    `db:"title"          json:"title"`
	ChapterNumber int       `db:"chapter_number" json:"chapter_number"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}

var chapterFilePattern = regexp.MustCompile(`^(?:aud|chapter)?0*(\d+)\.mp3$`)

// ChapterNumber extracts the chapter number from names such as
// aud001.mp3, chapter01.mp3 or 001.mp3. Anything else reports false.
func ChapterNumber(filename string) (int, bool) {
	m := chapterFilePattern.FindStringSubmatch(strings.ToLower(path.Base(filename)))
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
