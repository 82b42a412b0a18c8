// Package plan holds one distribution session: the parsed orders, the
// variants computed for them and the assignment the operator is editing.
//
// A Plan is not safe for concurrent use; Store serialises access.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/geo"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/parser"
	"delivery-zoner/internal/zoning"
)

var (
	ErrPlanNotFound      = eris.New("plan not found")
	ErrIndexOutOfRange   = eris.New("order index out of range")
	ErrVariantOutOfRange = eris.New("variant index out of range")
	ErrZoneOutOfRange    = eris.New("zone out of range")
	ErrNoVariantSelected = eris.New("no variant selected")
	ErrOrderNotResolved  = eris.New("order is not geocoded")
	ErrOrderChanged      = eris.New("order changed during geocoding")
)

// OrderGeocoder resolves a single order in place
type OrderGeocoder interface {
	GeocodeOrder(ctx context.Context, o *models.Order) error
}

// Plan is one in-progress distribution
type Plan struct {
	ID          string           `json:"id"`
	DriverCount int              `json:"driver_count"`
	Orders      []models.Order   `json:"orders"`
	Variants    []models.Variant `json:"variants"`
	// Selected is the index of the chosen variant, or -1
	Selected    int       `json:"selected"`
	Assignments []int     `json:"assignments"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	params zoning.Params
}

// New creates a plan over orders and computes its variants
func New(orders []models.Order, driverCount int, params zoning.Params) *Plan {
	now := time.Now().UTC()
	p := &Plan{
		ID:        uuid.NewString(),
		Orders:    orders,
		Selected:  -1,
		CreatedAt: now,
		UpdatedAt: now,
		params:    params,
	}
	if p.Orders == nil {
		p.Orders = []models.Order{}
	}
	p.Distribute(driverCount)
	return p
}

// Distribute recomputes every variant for driverCount drivers and clears
// the current selection.
func (p *Plan) Distribute(driverCount int) {
	if driverCount < 1 {
		driverCount = 1
	}
	p.DriverCount = driverCount
	p.Variants = zoning.GenerateVariants(p.Orders, driverCount, p.params)
	p.Selected = -1
	p.Assignments = unassigned(len(p.Orders))
	for i := range p.Orders {
		p.Orders[i].Zone = models.Unassigned
	}
	p.touch()
}

// SelectVariant makes variant v the editable assignment
func (p *Plan) SelectVariant(v int) error {
	if v < 0 || v >= len(p.Variants) {
		return ErrVariantOutOfRange
	}
	p.Selected = v
	p.Assignments = append([]int(nil), p.Variants[v].Assignments...)
	for i := range p.Orders {
		if !p.Orders[i].IsResolved() {
			p.Assignments[i] = models.Unassigned
		}
		p.Orders[i].Zone = p.Assignments[i]
	}
	p.touch()
	return nil
}

// Reassign moves order i to zone, or unassigns it when zone is -1
func (p *Plan) Reassign(i, zone int) error {
	if p.Selected < 0 {
		return ErrNoVariantSelected
	}
	if err := p.checkIndex(i); err != nil {
		return err
	}
	if zone != models.Unassigned && (zone < 0 || zone >= p.DriverCount) {
		return ErrZoneOutOfRange
	}
	if !p.Orders[i].IsResolved() {
		return ErrOrderNotResolved
	}
	p.setZone(i, zone)
	return nil
}

// PlaceManually resolves order i at coords without a geocoder. The order is
// left unassigned until reassigned.
func (p *Plan) PlaceManually(i int, coords models.Coordinates) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	coords = models.Coordinates{
		Lat: models.RoundCoordinate(coords.Lat),
		Lng: models.RoundCoordinate(coords.Lng),
	}
	o := &p.Orders[i]
	o.Resolve(coords, fmt.Sprintf("Manual point (%.5f, %.5f)", coords.Lat, coords.Lng))
	o.Manual = true
	p.setZone(i, models.Unassigned)
	p.detachFromVariants(i)
	return nil
}

// DeleteOrder removes order i from the plan and from every variant
func (p *Plan) DeleteOrder(i int) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}

	p.Orders = append(p.Orders[:i:i], p.Orders[i+1:]...)
	p.Assignments = append(p.Assignments[:i:i], p.Assignments[i+1:]...)

	for v := range p.Variants {
		old := p.Variants[v]
		p.rebuildVariant(v, append(old.Assignments[:i:i], old.Assignments[i+1:]...))
	}
	p.touch()
	return nil
}

// detachFromVariants unassigns order i in every variant and recomputes their
// routes and stats.
func (p *Plan) detachFromVariants(i int) {
	for v := range p.Variants {
		assignments := append([]int(nil), p.Variants[v].Assignments...)
		assignments[i] = models.Unassigned
		p.rebuildVariant(v, assignments)
	}
}

func (p *Plan) rebuildVariant(v int, assignments []int) {
	old := p.Variants[v]
	routes, stats := zoning.Stats(p.Orders, assignments, len(old.Stats), p.params.Anchor)
	p.Variants[v] = models.Variant{
		Strategy:    old.Strategy,
		Label:       old.Label,
		Description: old.Description,
		Assignments: assignments,
		Routes:      routes,
		Stats:       stats,
	}
}

// Regeocode replaces the address of order i and geocodes it again. The
// order ends up unassigned whether or not it resolves.
func (p *Plan) Regeocode(ctx context.Context, g OrderGeocoder, i int, address string) error {
	o, err := p.prepareRegeocode(i, address)
	if err != nil {
		return err
	}
	gerr := g.GeocodeOrder(ctx, &o)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err := p.applyRegeocode(i, o); err != nil {
		return err
	}
	return gerr
}

func (p *Plan) prepareRegeocode(i int, address string) (models.Order, error) {
	if err := p.checkIndex(i); err != nil {
		return models.Order{}, err
	}
	o := p.Orders[i]
	if address != "" {
		o.Address = address
		o.GeocodeAddress = parser.CleanAddress(address)
	}
	o.State = models.GeocodePending
	o.Coords = nil
	o.Manual = false
	return o, nil
}

func (p *Plan) applyRegeocode(i int, o models.Order) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	if p.Orders[i].ID != o.ID {
		return ErrOrderChanged
	}
	p.Orders[i] = o
	p.setZone(i, models.Unassigned)
	p.detachFromVariants(i)
	zap.L().Info("plan: order re-geocoded",
		zap.String("plan", p.ID),
		zap.Int("index", i),
		zap.String("state", string(o.State)),
	)
	return nil
}

// Summary describes the plan in the terms the operator sees
type Summary struct {
	Total      int                  `json:"total"`
	Found      int                  `json:"found"`
	Failed     int                  `json:"failed"`
	Pending    int                  `json:"pending"`
	Manual     int                  `json:"manual"`
	Unassigned int                  `json:"unassigned"`
	Drivers    []models.DriverStats `json:"drivers"`
}

// Summary counts orders by state and reports per-driver load for the
// current assignment.
func (p *Plan) Summary() Summary {
	s := Summary{Total: len(p.Orders)}
	for i, o := range p.Orders {
		switch o.State {
		case models.GeocodeResolved:
			s.Found++
			if p.Assignments[i] == models.Unassigned {
				s.Unassigned++
			}
		case models.GeocodeFailed:
			s.Failed++
		default:
			s.Pending++
		}
		if o.Manual {
			s.Manual++
		}
	}
	_, s.Drivers = zoning.Stats(p.Orders, p.Assignments, p.DriverCount, p.params.Anchor)
	return s
}

// Routes returns each driver's orders for the current assignment in
// visiting order.
func (p *Plan) Routes() [][]models.Order {
	routes, _ := zoning.Stats(p.Orders, p.Assignments, p.DriverCount, p.params.Anchor)
	return routes
}

// RouteRecords builds the persistence shape for the current assignment.
// Drivers are numbered from 1; drivers without stops produce no record.
func (p *Plan) RouteRecords(date time.Time) ([]models.RouteRecord, error) {
	if p.Selected < 0 {
		return nil, ErrNoVariantSelected
	}

	routes, stats := zoning.Stats(p.Orders, p.Assignments, p.DriverCount, p.params.Anchor)
	day := database.NormalizeRouteDate(date)

	records := make([]models.RouteRecord, 0, len(routes))
	for d, route := range routes {
		if len(route) == 0 {
			continue
		}
		points := make([]models.RoutePoint, len(route))
		for seq, o := range route {
			points[seq] = models.RoutePoint{
				Seq:        seq + 1,
				OrderID:    o.ID,
				Address:    o.Address,
				Phone:      o.Phone,
				TimeWindow: o.TimeWindow,
				Lat:        o.Coords.Lat,
				Lng:        o.Coords.Lng,
			}
		}
		records = append(records, models.RouteRecord{
			DriverID:  d + 1,
			RouteDate: day,
			Points:    points,
			Km:        stats[d].Km,
		})
	}
	return records, nil
}

// Clone returns a deep copy safe to hand outside the store
func (p *Plan) Clone() *Plan {
	c := *p
	c.Orders = cloneOrders(p.Orders)
	c.Assignments = append([]int(nil), p.Assignments...)
	c.Variants = make([]models.Variant, len(p.Variants))
	for v, variant := range p.Variants {
		routes := make([][]models.Order, len(variant.Routes))
		for d := range variant.Routes {
			routes[d] = cloneOrders(variant.Routes[d])
		}
		c.Variants[v] = models.Variant{
			Strategy:    variant.Strategy,
			Label:       variant.Label,
			Description: variant.Description,
			Assignments: append([]int(nil), variant.Assignments...),
			Routes:      routes,
			Stats:       append([]models.DriverStats(nil), variant.Stats...),
		}
	}
	return &c
}

// Anchor is the point every route of this plan starts from
func (p *Plan) Anchor() models.Coordinates {
	if p.params.Anchor == (models.Coordinates{}) {
		return geo.CityCenter
	}
	return p.params.Anchor
}

func (p *Plan) checkIndex(i int) error {
	if i < 0 || i >= len(p.Orders) {
		return ErrIndexOutOfRange
	}
	return nil
}

func (p *Plan) setZone(i, zone int) {
	p.Orders[i].Zone = zone
	p.Assignments[i] = zone
	p.touch()
}

func (p *Plan) touch() {
	p.UpdatedAt = time.Now().UTC()
}

func unassigned(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = models.Unassigned
	}
	return a
}

func cloneOrders(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		if o.Coords != nil {
			c := *o.Coords
			o.Coords = &c
		}
		out[i] = o
	}
	return out
}
