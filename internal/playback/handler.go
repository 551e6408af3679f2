// AngelaMos | 2026
// handler.go

package playback

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
	r.Route("/playback", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/events", h.RecordPlay)
		r.Post("/progress", h.RecordPlay)
		r.Get("/recent", h.Recent)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Delete("/admin/users/{userID}/history", h.ClearHistory)
	})
}

// RecordPlay feeds one listening report into the consolidation engine.
func (h *Handler) RecordPlay(w http.ResponseWriter, r *http.Request) {
	var req PlayEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	outcome, err := h.service.RecordPlay(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "invalid play event")
		case errors.Is(err, core.ErrUnauthorized):
			core.Unauthorized(w, "authentication required")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		default:
			core.StorageError(w, err)
		}
		return
	}

	resp := PlayEventResponse{Outcome: outcome}
	if outcome == OutcomeCreated {
		core.Created(w, resp)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			core.BadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	plays, err := h.service.Recent(
		r.Context(),
		middleware.GetUserID(r.Context()),
		limit,
	)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			core.Unauthorized(w, "authentication required")
			return
		}
		core.StorageError(w, err)
		return
	}

	core.OK(w, ToRecentPlayResponseList(plays))
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		core.BadRequest(w, "invalid user id")
		return
	}

	n, err := h.service.ClearHistory(r.Context(), userID)
	if err != nil {
		core.StorageError(w, err)
		return
	}

	core.OK(w, ClearHistoryResponse{Deleted: n})
}
