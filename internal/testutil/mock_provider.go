package testutil

import (
	"context"
	"sync"

	"delivery-zoner/internal/geocoding"
	"delivery-zoner/internal/models"
)

// MockProvider is a scripted geocoding.Provider. Queries without a scripted
// response are treated as no match.
type MockProvider struct {
	ProviderName string
	Responses    map[string]*geocoding.Result
	Errors       map[string]error

	mu    sync.Mutex
	Calls []string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProviderName: name,
		Responses:    make(map[string]*geocoding.Result),
		Errors:       make(map[string]error),
	}
}

// SetResult scripts a street-level match for query
func (m *MockProvider) SetResult(query string, coords models.Coordinates, formatted string) {
	m.Responses[query] = &geocoding.Result{
		Coords:           coords,
		FormattedAddress: formatted,
		Precision:        geocoding.PrecisionExact,
		Provider:         m.ProviderName,
	}
}

// SetCoarse scripts a match that is too imprecise to accept
func (m *MockProvider) SetCoarse(query string, coords models.Coordinates) {
	m.Responses[query] = &geocoding.Result{
		Coords:    coords,
		Precision: geocoding.PrecisionLocality,
		Provider:  m.ProviderName,
	}
}

// SetError scripts a provider failure for query
func (m *MockProvider) SetError(query string, err error) {
	m.Errors[query] = err
}

// Name implements geocoding.Provider.
func (m *MockProvider) Name() string { return m.ProviderName }

// Geocode implements geocoding.Provider.
func (m *MockProvider) Geocode(ctx context.Context, query string) (*geocoding.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, query)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[query]; ok {
		return nil, err
	}
	if res, ok := m.Responses[query]; ok {
		copied := *res
		return &copied, nil
	}
	return nil, nil
}

// CallCount returns the number of Geocode calls so far
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// ResetCalls clears the recorded calls
func (m *MockProvider) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}
