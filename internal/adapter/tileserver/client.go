// Package tileserver fetches background map tiles over HTTP.
package tileserver

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Esri imagery is served as JPEG.
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

const (
	// DefaultTimeout bounds a single tile request.
	DefaultTimeout = 15 * time.Second
	// DefaultUserAgent identifies the service to tile servers.
	DefaultUserAgent = "storm-radar-overlay/1.0"

	maxTileBytes    = 8 << 20
	breakerFailures = 5
)

var (
	// ErrCircuitOpen is returned while a style's breaker rejects requests.
	ErrCircuitOpen = errors.New("tile server circuit open")
	// ErrStatus is returned for non-200 responses.
	ErrStatus = errors.New("tile server error")
)

// Client implements tiles.Source against the public tile servers.
type Client struct {
	httpClient *http.Client
	userAgent  string
	resolve    func(tiles.Key) (string, error)
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a tile client. Zero values select DefaultTimeout and
// DefaultUserAgent.
func NewClient(timeout time.Duration, userAgent string, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		resolve:    styleURL,
		logger:     logger,
		metrics:    metrics,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

func styleURL(k tiles.Key) (string, error) {
	s, err := tiles.LookupStyle(k.Style)
	if err != nil {
		return "", err
	}
	if !s.Remote() {
		return "", fmt.Errorf("style %s has no tile server", k.Style)
	}
	return s.URL(k.Z, k.X, k.Y), nil
}

// Tile downloads and decodes one tile.
func (c *Client) Tile(ctx context.Context, key tiles.Key) (image.Image, error) {
	u, err := c.resolve(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		c.metrics.TileFetchDuration.WithLabelValues(key.Style).Observe(time.Since(start).Seconds())
	}()

	result, err := c.breaker(key.Style).Execute(func() (interface{}, error) {
		return c.fetch(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, key.Style, err)
		}
		return nil, fmt.Errorf("tile %s: %w", key, err)
	}
	return result.(image.Image), nil
}

func (c *Client) fetch(ctx context.Context, u string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrStatus, resp.StatusCode, body)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	c.logger.Debug("tile fetched", "url", u, "format", format)
	return img, nil
}

// breaker returns the circuit breaker for a style, so an outage of one
// provider does not block the others.
func (c *Client) breaker(style string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[style]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tiles-" + style,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("tile circuit state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[style] = cb
	return cb
}
