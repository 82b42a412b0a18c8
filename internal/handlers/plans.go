package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/geocoding"
	"delivery-zoner/internal/mapview"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/parser"
	"delivery-zoner/internal/plan"
)

// ParseRequest carries the raw pasted order text
type ParseRequest struct {
	Text string `json:"text"`
}

// ParseResponse lists the orders recognised in the text
type ParseResponse struct {
	Orders []models.Order `json:"orders"`
	Total  int            `json:"total"`
}

// CreatePlanRequest starts a new distribution
type CreatePlanRequest struct {
	Text        string `json:"text"`
	DriverCount int    `json:"driver_count"`
}

// DistributeRequest re-runs the engine with a new driver count
type DistributeRequest struct {
	DriverCount int `json:"driver_count"`
}

// SelectVariantRequest picks one of the computed variants
type SelectVariantRequest struct {
	Variant int `json:"variant"`
}

// CommitRequest persists the current assignment for a day
type CommitRequest struct {
	RouteDate string `json:"route_date"`
}

// PlanResponse is a plan together with its current summary
type PlanResponse struct {
	*plan.Plan
	Summary   plan.Summary           `json:"summary"`
	Geocoding *geocoding.BatchResult `json:"geocoding,omitempty"`
}

func newPlanResponse(p *plan.Plan) PlanResponse {
	return PlanResponse{Plan: p, Summary: p.Summary()}
}

// HandleParseOrders parses pasted text without geocoding it
func (h *Handler) HandleParseOrders(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	orders := parser.ParseOrders(req.Text)
	h.writeJSON(w, http.StatusOK, ParseResponse{Orders: orders, Total: len(orders)})
}

// HandleCreatePlan parses, geocodes and distributes a batch of orders
func (h *Handler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.handleValidationError(w, "Order text is required")
		return
	}
	if req.DriverCount < 1 {
		h.handleValidationError(w, "driver_count must be at least 1")
		return
	}

	orders := parser.ParseOrders(req.Text)
	if len(orders) == 0 {
		h.handleValidationError(w, "No orders found in text")
		return
	}

	start := time.Now()
	batch, err := h.Geocoder.GeocodeOrders(r.Context(), orders, func(done, total int) {
		zap.L().Debug("handlers: geocoding progress", zap.Int("done", done), zap.Int("total", total))
	})
	if err != nil {
		zap.L().Info("handlers: plan creation aborted", zap.Error(err), zap.Int("found", batch.Found))
		h.writeError(w, http.StatusServiceUnavailable, "CANCELLED", "Geocoding was interrupted", batch)
		return
	}
	zap.L().Debug("handlers: geocoded batch",
		zap.Int("orders", len(orders)),
		zap.Duration("elapsed", time.Since(start)),
	)

	p := h.Plans.Create(orders, req.DriverCount)
	resp := newPlanResponse(p)
	resp.Geocoding = &batch
	h.writeJSON(w, http.StatusCreated, resp)
}

// HandleGetPlan returns a plan by id
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}

// HandleDeletePlan discards a plan
func (h *Handler) HandleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Plans.Get(id); err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.Plans.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDistribute recomputes the variants for a new driver count
func (h *Handler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.DriverCount < 1 {
		h.handleValidationError(w, "driver_count must be at least 1")
		return
	}

	p, err := h.Plans.Update(chi.URLParam(r, "id"), func(p *plan.Plan) error {
		p.Distribute(req.DriverCount)
		return nil
	})
	if err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}

// HandleSelectVariant makes a variant the editable assignment
func (h *Handler) HandleSelectVariant(w http.ResponseWriter, r *http.Request) {
	var req SelectVariantRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	p, err := h.Plans.Update(chi.URLParam(r, "id"), func(p *plan.Plan) error {
		return p.SelectVariant(req.Variant)
	})
	if err != nil {
		h.handlePlanError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPlanResponse(p))
}

// HandlePlanGeoJSON renders the plan for the map surface
func (h *Handler) HandlePlanGeoJSON(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handlePlanError(w, err)
		return
	}

	data, err := mapview.FromPlan(p).MarshalJSON()
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleCells renders the reference cells
func (h *Handler) HandleCells(w http.ResponseWriter, r *http.Request) {
	data, err := mapview.Cells().MarshalJSON()
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleCommitPlan stores the current assignment as driver routes
func (h *Handler) HandleCommitPlan(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	date := time.Now()
	if req.RouteDate != "" {
		parsed, err := time.Parse(database.RouteDateLayout, req.RouteDate)
		if err != nil {
			h.handleValidationError(w, "route_date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	p, err := h.Plans.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handlePlanError(w, err)
		return
	}

	records, err := p.RouteRecords(date)
	if err != nil {
		h.handlePlanError(w, err)
		return
	}

	saved, err := h.DB.Routes().Save(r.Context(), records)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	zap.L().Info("handlers: plan committed",
		zap.String("plan", p.ID),
		zap.Int("routes", len(saved)),
		zap.Time("date", database.NormalizeRouteDate(date)),
	)
	h.writeJSON(w, http.StatusCreated, RouteListResponse{Routes: saved, Total: len(saved)})
}
