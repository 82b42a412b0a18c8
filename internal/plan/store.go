package plan

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"delivery-zoner/internal/models"
	"delivery-zoner/internal/zoning"
)

// Store keeps plans in memory
type Store struct {
	plans    map[string]*Plan
	params   zoning.Params
	maxPlans int
	mu       sync.RWMutex
}

// NewStore creates a store whose plans use params. Once more than maxPlans
// plans exist the least recently updated one is dropped; zero means no limit.
func NewStore(params zoning.Params, maxPlans int) *Store {
	return &Store{
		plans:    make(map[string]*Plan),
		params:   params,
		maxPlans: maxPlans,
	}
}

// Create distributes orders among driverCount drivers and stores the plan
func (s *Store) Create(orders []models.Order, driverCount int) *Plan {
	p := New(orders, driverCount, s.params)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	s.evictLocked()

	zap.L().Info("plan: created",
		zap.String("plan", p.ID),
		zap.Int("orders", len(p.Orders)),
		zap.Int("drivers", p.DriverCount),
		zap.Int("variants", len(p.Variants)),
	)
	return p.Clone()
}

// Get returns a copy of the plan
func (s *Store) Get(id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return p.Clone(), nil
}

// Update runs fn on the plan while holding the write lock and returns a copy
// of the result. fn's error is returned unchanged.
func (s *Store) Update(id string, fn func(*Plan) error) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Regeocode re-geocodes one order of a stored plan. The network call runs
// without holding the lock.
func (s *Store) Regeocode(ctx context.Context, id string, g OrderGeocoder, i int, address string) (*Plan, error) {
	s.mu.RLock()
	p, ok := s.plans[id]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrPlanNotFound
	}
	o, err := p.prepareRegeocode(i, address)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	gerr := g.GeocodeOrder(ctx, &o)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	updated, err := s.Update(id, func(p *Plan) error {
		return p.applyRegeocode(i, o)
	})
	if err != nil {
		return nil, err
	}
	return updated, gerr
}

// Delete removes a plan
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
	zap.L().Info("plan: deleted", zap.String("plan", id))
}

// Len returns the number of stored plans
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans)
}

func (s *Store) evictLocked() {
	if s.maxPlans <= 0 || len(s.plans) <= s.maxPlans {
		return
	}

	type entry struct {
		id      string
		updated time.Time
	}
	entries := make([]entry, 0, len(s.plans))
	for id, p := range s.plans {
		entries = append(entries, entry{id, p.UpdatedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].updated.Before(entries[j].updated) })

	for _, e := range entries[:len(entries)-s.maxPlans] {
		delete(s.plans, e.id)
		zap.L().Debug("plan: evicted", zap.String("plan", e.id))
	}
}
