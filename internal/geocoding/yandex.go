package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"delivery-zoner/internal/models"
)

const DefaultYandexURL = "https://geocode-maps.yandex.ru/1.x/"

// YandexProvider geocodes through the Yandex Geocoder HTTP API
type YandexProvider struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

type yandexResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject yandexGeoObject `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type yandexGeoObject struct {
	MetaDataProperty struct {
		GeocoderMetaData struct {
			Precision string `json:"precision"`
			Kind      string `json:"kind"`
			Text      string `json:"text"`
		} `json:"GeocoderMetaData"`
	} `json:"metaDataProperty"`
	Point struct {
		Pos string `json:"pos"`
	} `json:"Point"`
}

// NewYandexProvider creates a Yandex provider limited to ratePerSec requests
// per second. An empty baseURL falls back to the public endpoint.
func NewYandexProvider(apiKey, baseURL string, ratePerSec float64) *YandexProvider {
	if baseURL == "" {
		baseURL = DefaultYandexURL
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &YandexProvider{
		apiKey:      apiKey,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), 1),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// Name implements Provider.
func (p *YandexProvider) Name() string { return "yandex" }

// Geocode implements Provider.
func (p *YandexProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if p.apiKey == "" {
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: eris.New("api key not configured")}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "yandex: rate limit")
	}

	params := url.Values{
		"apikey":  {p.apiKey},
		"geocode": {query},
		"format":  {"json"},
		"results": {"1"},
		"lang":    {"ru_RU"},
	}
	queryURL := p.baseURL + "?" + params.Encode()
	zap.L().Debug("geocoding: yandex request", zap.String("query", query))

	resp, err := doWithRetry(ctx, p.httpClient, p.maxAttempts, p.backoff, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("geocoding: yandex request failed", zap.String("query", query), zap.Error(err))
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	var decoded yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: eris.Wrap(err, "decode response")}
	}

	members := decoded.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		zap.L().Debug("geocoding: yandex no results", zap.String("query", query))
		return nil, nil
	}

	obj := members[0].GeoObject
	coords, err := parseYandexPos(obj.Point.Pos)
	if err != nil {
		return nil, &ErrProviderUnavailable{Provider: p.Name(), Err: err}
	}

	meta := obj.MetaDataProperty.GeocoderMetaData
	precision := yandexPrecision(meta.Precision, meta.Kind)
	zap.L().Debug("geocoding: yandex response",
		zap.String("query", query),
		zap.Float64("lat", coords.Lat),
		zap.Float64("lng", coords.Lng),
		zap.String("precision", string(precision)),
		zap.String("text", meta.Text),
	)

	return &Result{
		Coords:           coords,
		FormattedAddress: meta.Text,
		Precision:        precision,
		Provider:         p.Name(),
	}, nil
}

// parseYandexPos parses the "lng lat" point format
func parseYandexPos(pos string) (models.Coordinates, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return models.Coordinates{}, eris.Errorf("invalid point %q", pos)
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return models.Coordinates{}, eris.Wrapf(err, "invalid longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return models.Coordinates{}, eris.Wrapf(err, "invalid latitude %q", parts[1])
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}

// yandexPrecision maps GeocoderMetaData precision and kind to a Precision.
// Precision "other" means the match is coarser than a street, so the kind
// decides how coarse.
func yandexPrecision(precision, kind string) Precision {
	switch precision {
	case "exact", "number", "near", "range":
		return PrecisionExact
	case "street":
		return PrecisionStreet
	}

	switch kind {
	case "house":
		return PrecisionExact
	case "street", "metro", "route":
		return PrecisionStreet
	case "district":
		return PrecisionDistrict
	case "locality":
		return PrecisionLocality
	case "province", "area", "country":
		return PrecisionRegion
	default:
		return PrecisionOther
	}
}
