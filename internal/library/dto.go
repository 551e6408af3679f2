// AngelaMos | 2026
// dto.go

package library

type RecordDownloadRequest struct {
	BookID    int64  `json:"book_id"    validate:"required,gt=0"`
	ChapterID *int64 `json:"chapter_id" validate:"omitempty,gt=0"`
	FilePath  string `json:"file_path"  validate:"required,max=1024"`
	FileSize  int64  `json:"file_size"  validate:"gte=0"`
}

type FavoriteStatusResponse struct {
	BookID   int64 `json:"book_id"`
	Favorite bool  `json:"favorite"`
}

type RecordDownloadResponse struct {
	ID int64 `json:"id"`
}
