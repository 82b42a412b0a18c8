package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"delivery-zoner/internal/mapview"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/plan"
)

// ReassignRequest moves an order to a zone; -1 unassigns it
type ReassignRequest struct {
	Zone *int `json:"zone"`
}

// PlaceRequest pins an order to a point chosen on the map. The body may
// also be a GeoJSON Point geometry.
type PlaceRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// RegeocodeRequest retries geocoding, optionally with a corrected address
type RegeocodeRequest struct {
	Address string `json:"address"`
}

// HandleReassignOrder moves one order between drivers
func (h *Handler) HandleReassignOrder(w http.ResponseWriter, r *http.Request) {
	i, ok := h.orderIndex(w, r)
	if !ok {
		return
	}
	var req ReassignRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Zone == nil {
		h.handleValidationError(w, "zone is required")
		return
	}

	p, err := h.Plans.Update(chi.URLParam(r, "id"), func(p *plan.Plan) error {
		return p.Reassign(i, *req.Zone)
	})
	if err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}

// HandlePlaceOrder resolves an order at a manually chosen point
func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	i, ok := h.orderIndex(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}
	coords, err := decodePlacement(body)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	p, err := h.Plans.Update(chi.URLParam(r, "id"), func(p *plan.Plan) error {
		return p.PlaceManually(i, coords)
	})
	if err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}

func decodePlacement(body []byte) (models.Coordinates, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return models.Coordinates{}, eris.New("Invalid request body")
	}
	if probe.Type != "" {
		c, err := mapview.ParsePoint(body)
		if err != nil {
			return models.Coordinates{}, eris.New("Invalid GeoJSON point")
		}
		return c, nil
	}

	var req PlaceRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Lat == nil || req.Lng == nil {
		return models.Coordinates{}, eris.New("lat and lng are required")
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
		return models.Coordinates{}, eris.New("Coordinates out of range")
	}
	return models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}, nil
}

// HandleRegeocodeOrder geocodes one order again. A failed lookup still
// updates the plan and is reported as 422 with the plan in the details.
func (h *Handler) HandleRegeocodeOrder(w http.ResponseWriter, r *http.Request) {
	i, ok := h.orderIndex(w, r)
	if !ok {
		return
	}
	var req RegeocodeRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}

	p, err := h.Plans.Regeocode(r.Context(), chi.URLParam(r, "id"), h.Geocoder, i, req.Address)
	if p == nil {
		h.handlePlanError(w, err)
		return
	}
	if err != nil {
		h.handleGeocodingError(w, err, newPlanResponse(p))
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}

// HandleDeleteOrder removes an order from the plan
func (h *Handler) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	i, ok := h.orderIndex(w, r)
	if !ok {
		return
	}

	p, err := h.Plans.Update(chi.URLParam(r, "id"), func(p *plan.Plan) error {
		return p.DeleteOrder(i)
	})
	if err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}
