package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

// RouteListResponse lists stored driver routes
type RouteListResponse struct {
	Routes []models.RouteRecord `json:"routes"`
	Total  int                  `json:"total"`
}

// HandleListRoutes lists the routes stored for ?date=YYYY-MM-DD, today by default
func (h *Handler) HandleListRoutes(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(database.RouteDateLayout, raw)
		if err != nil {
			h.handleValidationError(w, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	routes, err := h.DB.Routes().ListByDate(r.Context(), date)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RouteListResponse{Routes: routes, Total: len(routes)})
}

// HandleGetRoute returns one stored route
func (h *Handler) HandleGetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.DB.Routes().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Route not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, route)
}

// HandleDeleteRoute removes one stored route
func (h *Handler) HandleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Routes().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Route not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearGeocodeCache drops every cached geocoding result
func (h *Handler) HandleClearGeocodeCache(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.GeocodeCache().Clear(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
