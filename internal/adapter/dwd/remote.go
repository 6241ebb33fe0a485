// Package dwd loads HX reflectivity composites from the DWD open-data server
// or from a local file.
package dwd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

const (
	// DefaultURL is the latest HX composite on the DWD open-data server.
	DefaultURL = "https://opendata.dwd.de/weather/radar/composite/hx/composite_hx_LATEST-hd5"

	// DefaultDownloadTimeout bounds a full composite download.
	DefaultDownloadTimeout = 60 * time.Second
	// CheckTimeout bounds a freshness check.
	CheckTimeout = 30 * time.Second

	maxPayloadBytes = 256 << 20
)

var (
	// ErrEmptyPayload is returned when the file or response body is empty.
	ErrEmptyPayload = errors.New("empty composite payload")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("composite server error")
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("composite server circuit open")
)

// Remote implements domain.CompositeSource over HTTP.
type Remote struct {
	url        string
	checker    *http.Client
	downloader *http.Client
	breaker    *gobreaker.CircuitBreaker
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewRemote creates a remote source. A non-positive timeout selects
// DefaultDownloadTimeout.
func NewRemote(url string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Remote {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Remote{
		url:        url,
		checker:    &http.Client{Timeout: CheckTimeout},
		downloader: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dwd-composite",
			MaxRequests: 1,
			Interval:    10 * time.Minute,
			Timeout:     2 * time.Minute,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("composite circuit state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		clock:  clock,
		logger: logger,
	}
}

// Check issues a HEAD request and compares Last-Modified with since. A missing
// header counts as changed; any request error is returned and means no new data.
func (r *Remote) Check(ctx context.Context, since time.Time) (domain.Freshness, error) {
	resp, err := r.do(ctx, r.checker, http.MethodHead)
	if err != nil {
		return domain.Freshness{}, fmt.Errorf("check composite: %w", err)
	}
	resp.Body.Close() //nolint:errcheck

	lm, ok := lastModified(resp.Header)
	if !ok {
		r.logger.Info("composite server sent no Last-Modified, assuming new data", "url", r.url)
		return domain.Freshness{Changed: true}, nil
	}

	f := domain.Freshness{
		Changed:      since.IsZero() || lm.After(since),
		LastModified: lm,
	}
	r.logger.Debug("composite freshness checked",
		"last_modified", lm,
		"age", r.clock.Since(lm).Round(time.Second),
		"changed", f.Changed,
	)
	return f, nil
}

// Fetch downloads the composite.
func (r *Remote) Fetch(ctx context.Context) (domain.Payload, error) {
	resp, err := r.do(ctx, r.downloader, http.MethodGet)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("download composite: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return domain.Payload{}, fmt.Errorf("read composite: %w", err)
	}
	if len(data) == 0 {
		return domain.Payload{}, ErrEmptyPayload
	}

	lm, _ := lastModified(resp.Header)
	r.logger.Info("composite downloaded", "bytes", len(data), "last_modified", lm)
	return domain.Payload{Data: data, LastModified: lm, Origin: r.url}, nil
}

func (r *Remote) do(ctx context.Context, client *http.Client, method string) (*http.Response, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, r.url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close() //nolint:errcheck
			return nil, fmt.Errorf("%w: status %d: %s", ErrStatus, resp.StatusCode, body)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

// lastModified parses the Last-Modified header. http.ParseTime accepts the
// RFC 1123 form and its obsolete variants.
func lastModified(h http.Header) (time.Time, bool) {
	v := h.Get("Last-Modified")
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		if t, err = time.Parse(time.RFC1123Z, v); err != nil {
			return time.Time{}, false
		}
	}
	return t.UTC(), true
}
