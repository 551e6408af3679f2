// AngelaMos | 2026
// handler.go

package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bpa-library/library/internal/core"
)

const (
	defaultMaxUpload = 512 << 20
	multipartMemory  = 32 << 20
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	maxUpload int64
}

// NewHandler caps audio uploads at maxUpload bytes; zero selects 512 MiB.
func NewHandler(service *Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		maxUpload: maxUpload,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/categories", h.ListCategories)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Get("/{bookID}", h.GetBook)
			r.Get("/{bookID}/chapters", h.ListChapters)
			r.Get("/{bookID}/chapters/{number}", h.GetChapterByNumber)
			r.Get("/{bookID}/audio-url", h.AudioURL)
		})

		r.Get("/chapters/{chapterID}", h.GetChapter)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/catalog", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/categories", h.CreateCategory)
		r.Post("/books", h.CreateBook)
		r.Post("/books/{bookID}/chapters", h.RegisterChapters)
		r.Post("/books/{bookID}/audio", h.UploadAudio)
	})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		writeError(w, err, "category")
		return
	}
	core.OK(w, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("category name"))
			return
		}
		writeError(w, err, "category")
		return
	}
	core.Created(w, c)
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.service.CreateBook(r.Context(), req)
	if err != nil {
		writeError(w, err, "book")
		return
	}
	core.Created(w, b)
}

func (h *Handler) RegisterChapters(w http.ResponseWriter, r *http.Request) {
	bookID, ok := idParam(w, r, "bookID")
	if !ok {
		return
	}

	var req RegisterChaptersRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.service.RegisterChapters(r.Context(), bookID, req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("chapter number"))
			return
		}
		writeError(w, err, "book")
		return
	}
	core.Created(w, RegisterChaptersResponse{Created: n})
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	params := ListBooksParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 50),
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	books, total, err := h.service.ListBooks(r.Context(), params)
	if err != nil {
		writeError(w, err, "book")
		return
	}
	core.Paginated(w, books, params.Page, params.PageSize, total)
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookID")
	if !ok {
		return
	}

	b, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, err, "book")
		return
	}
	core.OK(w, b)
}

func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookID")
	if !ok {
		return
	}

	chapters, err := h.service.ListChapters(r.Context(), id)
	if err != nil {
		writeError(w, err, "book")
		return
	}
	core.OK(w, chapters)
}

func (h *Handler) GetChapterByNumber(w http.ResponseWriter, r *http.Request) {
	bookID, ok := idParam(w, r, "bookID")
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		core.BadRequest(w, "invalid chapter number")
		return
	}

	ch, err := h.service.GetChapterByNumber(r.Context(), bookID, number)
	if err != nil {
		writeError(w, err, "chapter")
		return
	}
	core.OK(w, ch)
}

func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "chapterID")
	if !ok {
		return
	}

	ch, err := h.service.GetChapter(r.Context(), id)
	if err != nil {
		writeError(w, err, "chapter")
		return
	}
	core.OK(w, ch)
}

func (h *Handler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	bookID, ok := idParam(w, r, "bookID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		core.BadRequest(w, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		core.BadRequest(w, "missing file")
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.service.UploadAudio(r.Context(), bookID, header.Filename, file, header.Size)
	if err != nil {
		writeError(w, err, "book")
		return
	}

	if res.Recorded {
		core.Created(w, res)
		return
	}
	core.OK(w, res)
}

// AudioURL takes the file name in the "chapter" query parameter.
func (h *Handler) AudioURL(w http.ResponseWriter, r *http.Request) {
	bookID, ok := idParam(w, r, "bookID")
	if !ok {
		return
	}

	res, err := h.service.AudioURL(r.Context(), bookID, r.URL.Query().Get("chapter"))
	if err != nil {
		writeError(w, err, "book")
		return
	}
	core.OK(w, res)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid input")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, ErrStorageUnavailable):
		core.StorageUnavailable(w, "audio storage is unavailable")
	default:
		core.StorageError(w, err)
	}
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
