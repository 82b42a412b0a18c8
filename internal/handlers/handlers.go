package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/geocoding"
	"delivery-zoner/internal/plan"
)

const maxBodyBytes = 1 << 20

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB       database.DataStore
	Geocoder geocoding.OrderGeocoder
	Plans    *plan.Store
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("handlers: encode response", zap.Error(err))
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleConflict handles 409 errors for edits the plan's state does not allow
func (h *Handler) handleConflict(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusConflict, "CONFLICT", message, nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(w http.ResponseWriter, err error, details interface{}) {
	var nf *geocoding.ErrNotFound
	if errors.As(err, &nf) {
		h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", nf.Error(), details)
		return
	}
	h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), details)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	zap.L().Error("handlers: internal error", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handlePlanError maps plan edit failures to responses
func (h *Handler) handlePlanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plan.ErrPlanNotFound):
		h.handleNotFound(w, "Plan not found")
	case errors.Is(err, plan.ErrIndexOutOfRange),
		errors.Is(err, plan.ErrVariantOutOfRange),
		errors.Is(err, plan.ErrZoneOutOfRange):
		h.handleValidationError(w, err.Error())
	case errors.Is(err, plan.ErrNoVariantSelected),
		errors.Is(err, plan.ErrOrderNotResolved),
		errors.Is(err, plan.ErrOrderChanged):
		h.handleConflict(w, err.Error())
	default:
		h.handleInternalError(w, err)
	}
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// decodeJSON reads a size-limited JSON body into v, writing a validation
// error and returning false when it cannot.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return false
	}
	return true
}

// orderIndex parses the {index} path parameter
func (h *Handler) orderIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.handleValidationError(w, "Invalid order index")
		return 0, false
	}
	return i, true
}

// HandleHealthCheck reports whether the data store is reachable
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("handlers: health check failed", zap.Error(err))
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
		"plans":    h.Plans.Len(),
	})
}
