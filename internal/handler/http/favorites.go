package http

import (
	"log/slog"
	"net/http"

	"github.com/dyagdi/PriceLess/internal/service"
	"github.com/dyagdi/PriceLess/pkg/httputil"
)

// FavoritesHandler serves the /api/v1/favorites endpoints and session reset.
type FavoritesHandler struct {
	service *service.StorefrontService
	logger  *slog.Logger
}

// NewFavoritesHandler creates a favorites HTTP handler.
func NewFavoritesHandler(svc *service.StorefrontService, logger *slog.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		service: svc,
		logger:  logger,
	}
}

// ListFavorites handles GET /api/v1/favorites
func (h *FavoritesHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListFavorites(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, FavoritesResponse{Entries: entries, Count: len(entries)})
}

// Toggle handles POST /api/v1/favorites/toggle
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(w, r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.ToggleFavorite(r.Context(), sessionIDFromContext(r.Context()), p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// Check handles POST /api/v1/favorites/check
func (h *FavoritesHandler) Check(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(w, r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	fav, err := h.service.IsFavorite(r.Context(), sessionIDFromContext(r.Context()), p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, CheckResponse{Favorite: fav})
}

// ClearFavorites handles DELETE /api/v1/favorites
func (h *FavoritesHandler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearFavorites(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, statusResponse{Status: "cleared"})
}

// ResetSession handles DELETE /api/v1/session
func (h *FavoritesHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	existed, err := h.service.ResetSession(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, SessionResetResponse{Existed: existed})
}
