package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-zoner/internal/config"
)

const orderText = "ул. Немига 12, с 10-14\nул. Притыцкого 28\t+375291112233"

// fakeNominatim answers the two test streets and nothing else
func fakeNominatim(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(q, "Немига"):
			w.Write([]byte(`[{"lat":"53.9045","lon":"27.5538","display_name":"12, улица Немига, Минск","place_rank":30}]`))
		case strings.Contains(q, "Притыцкого"):
			w.Write([]byte(`[{"lat":"53.9070","lon":"27.4370","display_name":"28, улица Притыцкого, Минск","place_rank":30}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(t *testing.T, nominatimURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0", CORSOrigins: []string{"*"}},
		Store: config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "zoner.db"),
		},
		Geocoding: config.GeocodingConfig{
			NominatimBaseURL: nominatimURL,
			RatePerSec:       1000,
			CacheEnabled:     true,
		},
		Plans: config.PlansConfig{MaxPlans: 10},
		Log:   config.LogConfig{Level: "info", Format: "json"},
	}
}

func newTestServer(t *testing.T) (*Server, *int32) {
	t.Helper()
	nominatim, calls := fakeNominatim(t)
	srv, err := New(context.Background(), testConfig(t, nominatim.URL))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, calls
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/api/v1/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.NotEmpty(t, w.Header().Get("Content-Type"))
}

func TestPlanLifecycle(t *testing.T) {
	srv, calls := newTestServer(t)
	h := srv.Handler()

	createBody, _ := json.Marshal(map[string]interface{}{"text": orderText, "driver_count": 1})
	w := do(t, h, "POST", "/api/v1/plans", string(createBody))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	assert.Equal(t, float64(2), created["summary"].(map[string]interface{})["found"])
	firstCalls := atomic.LoadInt32(calls)
	assert.Positive(t, firstCalls)

	w = do(t, h, "POST", "/api/v1/plans/"+id+"/select", `{"variant":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(0), decode(t, w)["selected"])

	w = do(t, h, "GET", "/api/v1/plans/"+id+"/geojson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "FeatureCollection", decode(t, w)["type"])

	w = do(t, h, "POST", "/api/v1/plans/"+id+"/orders/1/zone", `{"zone":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, "POST", "/api/v1/plans/"+id+"/commit", `{"route_date":"2026-10-19"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = do(t, h, "GET", "/api/v1/routes?date=2026-10-19", "")
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)
	require.Equal(t, float64(1), listed["total"])
	route := listed["routes"].([]interface{})[0].(map[string]interface{})
	assert.Len(t, route["points"], 2)

	w = do(t, h, "GET", "/api/v1/routes/"+route["id"].(string), "")
	assert.Equal(t, http.StatusOK, w.Code)

	// second batch with the same addresses is served from the sqlite cache
	w = do(t, h, "POST", "/api/v1/plans", string(createBody))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, firstCalls, atomic.LoadInt32(calls))

	w = do(t, h, "DELETE", "/api/v1/plans/"+id+"/", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, "GET", "/api/v1/plans/"+id+"/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseEndpoint(t *testing.T) {
	srv, calls := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"text": orderText})
	w := do(t, srv.Handler(), "POST", "/api/v1/orders/parse", string(body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total"])
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestCellsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/api/v1/cells", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, decode(t, w)["features"])
}

func TestStaticFiles(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Delivery Zoner")

	w = do(t, srv.Handler(), "GET", "/js/app.js", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/plans", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t)

	addr, err := srv.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenStore_PostgresBadURL(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://%zz"

	db, err := OpenStore(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestNewGeocoder(t *testing.T) {
	cfg := testConfig(t, "")
	assert.NotNil(t, NewGeocoder(cfg, nil))

	cfg.Geocoding.YandexAPIKey = "key"
	assert.NotNil(t, NewGeocoder(cfg, nil))
}
