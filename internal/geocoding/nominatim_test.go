package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestNominatim(baseURL string) *NominatimProvider {
	p := NewNominatimProvider(baseURL, "DeliveryZonerTest/1.0", 1)
	p.limiter = rate.NewLimiter(rate.Inf, 1) // no rate limit for testing
	p.backoff = time.Millisecond
	return p
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "by", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "Минск, ул. Немига 12", r.URL.Query().Get("q"))
		assert.Equal(t, "DeliveryZonerTest/1.0", r.Header.Get("User-Agent"))

		response := []nominatimResponse{
			{
				Lat:         "53.9045215",
				Lon:         "27.5538112",
				DisplayName: "12, улица Немига, Минск, Беларусь",
				PlaceRank:   30,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	p := newTestNominatim(server.URL)
	result, err := p.Geocode(context.Background(), "Минск, ул. Немига 12")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 53.9045215, result.Coords.Lat)
	assert.Equal(t, 27.5538112, result.Coords.Lng)
	assert.Equal(t, "12, улица Немига, Минск, Беларусь", result.FormattedAddress)
	assert.Equal(t, PrecisionExact, result.Precision)
	assert.Equal(t, "nominatim", result.Provider)
}

func TestNominatimGeocodeNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	p := newTestNominatim(server.URL)
	result, err := p.Geocode(context.Background(), "Nonexistent Location")

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestNominatimGeocodeCityOnlyIsCoarse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]nominatimResponse{{Lat: "53.9", Lon: "27.56", DisplayName: "Минск", PlaceRank: 16}})
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "Минск")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, PrecisionLocality, result.Precision)
	assert.False(t, result.StreetLevel())
}

func TestNominatimRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]nominatimResponse{{Lat: "53.9", Lon: "27.5", DisplayName: "ok", PlaceRank: 26}})
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "ул. Немига")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, PrecisionStreet, result.Precision)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNominatimGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	result, err := newTestNominatim(server.URL).Geocode(context.Background(), "ул. Немига 12")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(1), calls.Load())

	var unavailable *ErrProviderUnavailable
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "nominatim", unavailable.Provider)

	var status *httpStatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusBadRequest, status.Code)
}

func TestNominatimInvalidCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]nominatimResponse{{Lat: "north", Lon: "27.5", PlaceRank: 30}})
	}))
	defer server.Close()

	_, err := newTestNominatim(server.URL).Geocode(context.Background(), "ул. Немига 12")

	var unavailable *ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestNominatimContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newTestNominatim(server.URL).Geocode(ctx, "ул. Немига 12")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNominatimPrecision(t *testing.T) {
	tests := []struct {
		rank int
		want Precision
	}{
		{30, PrecisionExact},
		{28, PrecisionExact},
		{26, PrecisionStreet},
		{20, PrecisionDistrict},
		{16, PrecisionLocality},
		{8, PrecisionRegion},
		{4, PrecisionOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nominatimPrecision(tt.rank), "rank %d", tt.rank)
	}
}

func TestNominatimPrecision_SettlementIsNotStreetLevel(t *testing.T) {
	for rank := 17; rank <= 25; rank++ {
		res := &Result{Precision: nominatimPrecision(rank)}
		assert.False(t, res.StreetLevel(), "rank %d", rank)
	}
	assert.True(t, (&Result{Precision: nominatimPrecision(26)}).StreetLevel())
	assert.True(t, (&Result{Precision: nominatimPrecision(30)}).StreetLevel())
}
