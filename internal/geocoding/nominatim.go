package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"delivery-zoner/internal/models"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "DeliveryZoner/1.0"
)

// NominatimProvider geocodes against an OpenStreetMap Nominatim instance.
// The public instance allows one request per second.
type NominatimProvider struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	PlaceRank   int    `json:"place_rank"`
}

// NewNominatimProvider creates a Nominatim provider limited to ratePerSec
// requests per second. Empty baseURL and userAgent fall back to defaults.
func NewNominatimProvider(baseURL, userAgent string, ratePerSec float64) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &NominatimProvider{
		baseURL:     baseURL,
		userAgent:   userAgent,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), 1),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params := url.Values{
		"q":            {query},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {"by"},
	}
	queryURL := p.baseURL + "/search?" + params.Encode()
	zap.L().Debug("geocoding: nominatim request", zap.String("query", query))

	resp, err := doWithRetry(ctx, p.httpClient, p.maxAttempts, p.backoff, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Accept-Language", "ru")
		return req, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("geocoding: nominatim request failed", zap.String("query", query), zap.Error(err))
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: eris.Wrap(err, "decode response")}
	}

	if len(results) == 0 {
		zap.L().Debug("geocoding: nominatim no results", zap.String("query", query))
		return nil, nil
	}

	result := results[0]
	lat, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: eris.Wrapf(err, "invalid latitude %q", result.Lat)}
	}
	lng, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: eris.Wrapf(err, "invalid longitude %q", result.Lon)}
	}

	precision := nominatimPrecision(result.PlaceRank)
	zap.L().Debug("geocoding: nominatim response",
		zap.String("query", query),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("precision", string(precision)),
		zap.String("display_name", result.DisplayName),
	)

	return &Result{
		Coords:           models.Coordinates{Lat: lat, Lng: lng},
		FormattedAddress: result.DisplayName,
		Precision:        precision,
		Provider:         p.Name(),
	}, nil
}

// nominatimPrecision maps an OSM place_rank to a Precision
func nominatimPrecision(placeRank int) Precision {
	switch {
	case placeRank >= 28:
		return PrecisionExact
	case placeRank >= 26:
		return PrecisionStreet
	case placeRank >= 17:
		return PrecisionDistrict
	case placeRank >= 13:
		return PrecisionLocality
	case placeRank >= 5:
		return PrecisionRegion
	default:
		return PrecisionOther
	}
}
