package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"card-optimiser/internal/models"
	"card-optimiser/internal/service"
	"card-optimiser/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// Routes mounts all API routes on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cards", h.ListCards)

	r.Route("/users/{user_id}", func(r chi.Router) {
		r.Get("/cards", h.GetHeldCards)
		r.Put("/cards", h.PutHeldCards)
		r.Post("/context", h.PostContext)
		r.Get("/recommendations", h.GetRecommendations)
		r.Post("/recommendations", h.CalculateManual)
	})

	r.Post("/admin/catalog/refresh", h.RefreshCatalog)
}

// ListCards handles GET /cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Cards())
}

// GetHeldCards handles GET /users/{user_id}/cards
func (h *Handler) GetHeldCards(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	response, err := h.service.HeldCards(userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// PutHeldCards handles PUT /users/{user_id}/cards
func (h *Handler) PutHeldCards(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	var req models.HeldCardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	for i := range req.CardIDs {
		req.CardIDs[i] = validation.SanitizeString(req.CardIDs[i])
	}

	response, err := h.service.ReplaceHeldCards(r.Context(), userID, req.CardIDs)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// PostContext handles POST /users/{user_id}/context
func (h *Handler) PostContext(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	var req models.ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.MerchantSlug = validation.SanitizeString(req.MerchantSlug)
	req.Category = validation.SanitizeString(req.Category)
	req.Host = validation.SanitizeString(req.Host)
	req.AmountText = validation.SanitizeString(req.AmountText)

	txnCtx, err := h.service.StoreContext(r.Context(), userID, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, txnCtx)
}

// GetRecommendations handles GET /users/{user_id}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	now, ok := h.parseNow(w, r)
	if !ok {
		return
	}

	response, err := h.service.GetRecommendations(r.Context(), userID, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// CalculateManual handles POST /users/{user_id}/recommendations
func (h *Handler) CalculateManual(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	now, ok := h.parseNow(w, r)
	if !ok {
		return
	}

	var txnCtx models.TransactionContext
	if err := json.NewDecoder(r.Body).Decode(&txnCtx); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	txnCtx.MerchantSlug = validation.SanitizeString(txnCtx.MerchantSlug)
	txnCtx.Category = validation.SanitizeString(txnCtx.Category)

	response, err := h.service.CalculateManual(r.Context(), userID, txnCtx, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// RefreshCatalog handles POST /admin/catalog/refresh
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.RefreshCatalog(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// parseNow reads the optional 'now' query parameter used to pin the
// evaluation time of offer windows. Defaults to the current time.
func (h *Handler) parseNow(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	now := time.Now().UTC()
	if nowParam := r.URL.Query().Get("now"); nowParam != "" {
		nowParam = validation.SanitizeString(nowParam)
		parsed, err := validation.ValidateTimeString(nowParam)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'now' parameter, must be RFC3339 format")
			return time.Time{}, false
		}
		now = parsed.UTC()
	}
	return now, true
}

// respondServiceError maps service errors to HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var vErr *validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFeatureDisabled):
		h.respondError(w, http.StatusForbidden, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
