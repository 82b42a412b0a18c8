package geocoding

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/models"
)

// DefaultRequestDelay is the pause between consecutive orders in a batch
const DefaultRequestDelay = 300 * time.Millisecond

// ProgressFunc is called after each order of a batch with the number of
// orders processed so far and the batch size.
type ProgressFunc func(done, total int)

// Geocoder runs the provider cascade for single addresses and whole batches
type Geocoder struct {
	primary   Provider
	secondary Provider
	cache     database.GeocodeCacheRepository
	delay     time.Duration
}

// GeocoderOption configures a Geocoder.
type GeocoderOption func(*Geocoder)

// WithCache makes the geocoder consult and fill cache
func WithCache(cache database.GeocodeCacheRepository) GeocoderOption {
	return func(g *Geocoder) {
		g.cache = cache
	}
}

// WithRequestDelay overrides the inter-order batch delay
func WithRequestDelay(d time.Duration) GeocoderOption {
	return func(g *Geocoder) {
		if d >= 0 {
			g.delay = d
		}
	}
}

// NewGeocoder creates a Geocoder. secondary may be nil.
func NewGeocoder(primary, secondary Provider, opts ...GeocoderOption) *Geocoder {
	g := &Geocoder{
		primary:   primary,
		secondary: secondary,
		delay:     DefaultRequestDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type attempt struct {
	provider Provider
	queries  []string
}

// Geocode resolves one cleaned address. It fails with *ErrNotFound once
// every provider and candidate has been tried, or with the context error if
// ctx ends first.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &ErrNotFound{Address: address}
	}

	start := time.Now()
	key := database.CacheKey(address)
	if g.cache != nil {
		entry, err := g.cache.Get(ctx, key)
		if err != nil {
			zap.L().Warn("geocoding: cache lookup failed", zap.String("address", address), zap.Error(err))
		} else if entry != nil {
			zap.L().Debug("geocoding: cache hit", zap.String("address", address), zap.String("provider", entry.Provider))
			return &Result{
				Coords:           entry.Coords,
				FormattedAddress: entry.FormattedAddress,
				Precision:        PrecisionExact,
				Provider:         entry.Provider,
			}, nil
		}
	}

	candidates := BuildCandidates(address)
	attempts := []attempt{
		{g.primary, candidates},
		{g.secondary, candidates},
	}
	if q, ok := StreetNameQuery(address); ok {
		attempts = append(attempts, attempt{g.primary, []string{q}})
	}

	for _, a := range attempts {
		if a.provider == nil {
			continue
		}
		res, err := g.tryProvider(ctx, a.provider, a.queries)
		if err != nil {
			return nil, err
		}
		if res != nil {
			res.Coords = models.Coordinates{
				Lat: models.RoundCoordinate(res.Coords.Lat),
				Lng: models.RoundCoordinate(res.Coords.Lng),
			}
			g.store(ctx, key, res)
			zap.L().Info("geocoding: resolved",
				zap.String("address", address),
				zap.String("provider", res.Provider),
				zap.String("precision", string(res.Precision)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return res, nil
		}
	}

	zap.L().Info("geocoding: not found", zap.String("address", address), zap.Duration("elapsed", time.Since(start)))
	return nil, &ErrNotFound{Address: address}
}

// tryProvider returns the first street-level match among queries. Provider
// failures count as a miss for that query; only context errors are returned.
func (g *Geocoder) tryProvider(ctx context.Context, p Provider, queries []string) (*Result, error) {
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.Geocode(ctx, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var unavailable *ErrProviderUnavailable
			if !errors.As(err, &unavailable) {
				err = &ErrProviderUnavailable{Provider: p.Name(), Err: err}
			}
			zap.L().Debug("geocoding: provider error, trying next", zap.String("provider", p.Name()), zap.String("query", q), zap.Error(err))
			continue
		}
		if res == nil {
			continue
		}
		if !res.StreetLevel() {
			zap.L().Debug("geocoding: rejected coarse result",
				zap.String("provider", p.Name()),
				zap.String("query", q),
				zap.String("precision", string(res.Precision)),
			)
			continue
		}
		if res.Provider == "" {
			res.Provider = p.Name()
		}
		return res, nil
	}
	return nil, nil
}

func (g *Geocoder) store(ctx context.Context, key string, res *Result) {
	if g.cache == nil {
		return
	}
	err := g.cache.Set(ctx, &models.GeocodeCacheEntry{
		Query:            key,
		Coords:           res.Coords,
		FormattedAddress: res.FormattedAddress,
		Provider:         res.Provider,
	})
	if err != nil {
		zap.L().Warn("geocoding: cache store failed", zap.String("query", key), zap.Error(err))
	}
}

// GeocodeOrder resolves a single order in place. On failure the order is
// marked failed and the error is returned; a context error leaves the order
// untouched.
func (g *Geocoder) GeocodeOrder(ctx context.Context, o *models.Order) error {
	query := o.GeocodeAddress
	if query == "" {
		query = o.Address
	}

	res, err := g.Geocode(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		o.Fail(err.Error())
		return err
	}

	o.Resolve(res.Coords, res.FormattedAddress)
	o.Manual = false
	return nil
}

// BatchResult summarises a GeocodeOrders run
type BatchResult struct {
	Found  int `json:"found"`
	Failed int `json:"failed"`
}

// OrderGeocoder resolves orders in place, singly or as a batch
type OrderGeocoder interface {
	GeocodeOrder(ctx context.Context, o *models.Order) error
	GeocodeOrders(ctx context.Context, orders []models.Order, onProgress ProgressFunc) (BatchResult, error)
}

var _ OrderGeocoder = (*Geocoder)(nil)

// GeocodeOrders resolves orders one at a time, in order, pausing between
// network lookups. Failures are recorded on the order and the batch goes on.
// Orders that are already resolved are skipped but still reported to
// onProgress. Cancellation is checked between orders; the context error is
// returned together with the counts so far.
func (g *Geocoder) GeocodeOrders(ctx context.Context, orders []models.Order, onProgress ProgressFunc) (BatchResult, error) {
	var result BatchResult
	total := len(orders)
	start := time.Now()
	looked := false

	for i := range orders {
		if err := ctx.Err(); err != nil {
			zap.L().Info("geocoding: batch cancelled", zap.Int("done", i), zap.Int("total", total))
			return result, err
		}

		if orders[i].IsResolved() {
			result.Found++
			if onProgress != nil {
				onProgress(i+1, total)
			}
			continue
		}

		if looked && g.delay > 0 {
			timer := time.NewTimer(g.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				zap.L().Info("geocoding: batch cancelled", zap.Int("done", i), zap.Int("total", total))
				return result, ctx.Err()
			case <-timer.C:
			}
		}
		looked = true

		if err := g.GeocodeOrder(ctx, &orders[i]); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
		} else {
			result.Found++
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	zap.L().Info("geocoding: batch complete",
		zap.Int("total", total),
		zap.Int("found", result.Found),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
