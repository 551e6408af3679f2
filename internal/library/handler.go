// AngelaMos | 2026
// handler.go

package library

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/library", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/favorites", h.ListFavorites)
		r.Get("/favorites/{bookID}", h.IsFavorite)
		r.Put("/favorites/{bookID}", h.AddFavorite)
		r.Delete("/favorites/{bookID}", h.RemoveFavorite)

		r.Get("/downloads", h.ListDownloads)
		r.Post("/downloads", h.RecordDownload)
	})
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.service.ListFavorites(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, favorites)
}

func (h *Handler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	fav, err := h.service.IsFavorite(r.Context(), middleware.GetUserID(r.Context()), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, FavoriteStatusResponse{BookID: bookID, Favorite: fav})
}

// AddFavorite answers 201 on first add and 200 when already present.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	added, err := h.service.AddFavorite(r.Context(), middleware.GetUserID(r.Context()), bookID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := FavoriteStatusResponse{BookID: bookID, Favorite: true}
	if added {
		core.Created(w, resp)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveFavorite(r.Context(), middleware.GetUserID(r.Context()), bookID); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	downloads, err := h.service.ListDownloads(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, downloads)
}

func (h *Handler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	var req RecordDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	id, err := h.service.RecordDownload(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	core.Created(w, RecordDownloadResponse{ID: id})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid input")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "book")
	default:
		core.StorageError(w, err)
	}
}

func bookIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid book id")
		return 0, false
	}
	return id, true
}
