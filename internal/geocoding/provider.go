// Package geocoding resolves delivery addresses to coordinates.
//
// A Geocoder runs a fixed cascade over two providers: every candidate query
// against the primary, then every candidate against the secondary, then the
// bare street name against the primary. Results coarser than a district are
// rejected, so a city-centre fallback never masquerades as a delivery point.
package geocoding

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"delivery-zoner/internal/models"
)

// Precision classifies how specific a provider result is
type Precision string

const (
	PrecisionExact    Precision = "exact"
	PrecisionStreet   Precision = "street"
	PrecisionDistrict Precision = "district"
	PrecisionLocality Precision = "locality"
	PrecisionRegion   Precision = "region"
	PrecisionOther    Precision = "other"
)

// Result is a single provider match
type Result struct {
	Coords           models.Coordinates
	FormattedAddress string
	Precision        Precision
	Provider         string
}

// StreetLevel reports whether the result is precise enough to deliver to
func (r *Result) StreetLevel() bool {
	switch r.Precision {
	case PrecisionExact, PrecisionStreet:
		return true
	default:
		return false
	}
}

// Provider is a single geocoding backend. Geocode returns nil, nil when the
// backend has no match for query; errors are reserved for transport and
// protocol failures.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
}

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 250 * time.Millisecond
	defaultTimeout     = 10 * time.Second
)

// doWithRetry retries transient failures (network errors, 429 and 5xx
// responses) with exponential backoff while respecting context cancellation.
// A non-nil response always has status 200.
func doWithRetry(
	ctx context.Context,
	client *http.Client,
	maxAttempts int,
	backoff time.Duration,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, eris.Wrap(err, "make request")
		}

		resp, err := do(client, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
				http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		zap.L().Debug("geocoding: retrying request",
			zap.String("host", req.URL.Host),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}

func do(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}
