package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dyagdi/PriceLess/internal/basket"
	"github.com/dyagdi/PriceLess/internal/service"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
	"github.com/dyagdi/PriceLess/pkg/httputil"
)

// BasketHandler serves the /api/v1/basket endpoints.
type BasketHandler struct {
	service *service.StorefrontService
	logger  *slog.Logger
}

// NewBasketHandler creates a basket HTTP handler.
func NewBasketHandler(svc *service.StorefrontService, logger *slog.Logger) *BasketHandler {
	return &BasketHandler{
		service: svc,
		logger:  logger,
	}
}

// GetBasket handles GET /api/v1/basket
func (h *BasketHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetBasket(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// GetSummary handles GET /api/v1/basket/summary
func (h *BasketHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetBasketSummary(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// AddItem handles POST /api/v1/basket/items. The body is a product record;
// a JSON null adds nothing.
func (h *BasketHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(w, r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.AddToBasket(r.Context(), sessionIDFromContext(r.Context()), p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// Remove handles POST /api/v1/basket/remove
func (h *BasketHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req RemoveRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ref, err := basket.ParseRef(req.Identifier)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	res, err := h.service.RemoveFromBasket(r.Context(), sessionIDFromContext(r.Context()), ref)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// RemoveByKey handles DELETE /api/v1/basket/items/{key}
func (h *BasketHandler) RemoveByKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pathKey(w, r)
	if !ok {
		return
	}

	res, err := h.service.RemoveFromBasketByKey(r.Context(), sessionIDFromContext(r.Context()), key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// RemoveAt handles DELETE /api/v1/basket/positions/{index}
func (h *BasketHandler) RemoveAt(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("index must be an integer"), h.logger)
		return
	}

	res, err := h.service.RemoveFromBasketAt(r.Context(), sessionIDFromContext(r.Context()), index)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// UpdateQuantity handles PUT /api/v1/basket/items/{key}/quantity
func (h *BasketHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pathKey(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.UpdateQuantity(r.Context(), sessionIDFromContext(r.Context()), key, *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// ClearBasket handles DELETE /api/v1/basket
func (h *BasketHandler) ClearBasket(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearBasket(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, statusResponse{Status: "cleared"})
}

func (h *BasketHandler) pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("key is malformed"), h.logger)
		return "", false
	}
	return key, true
}
