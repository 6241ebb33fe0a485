// Package tilecache keeps background tiles in memory and on disk in front of
// a slower tiles.Source.
package tilecache

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/tiles"
)

// Cache wraps a tiles.Source with an in-memory LRU and a PNG directory.
type Cache struct {
	inner   tiles.Source
	dir     string
	mem     *lru[tiles.Key, image.Image]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates the cache directory if needed. memEntries <= 0 disables the
// memory layer.
func New(inner tiles.Source, dir string, memEntries int, logger *slog.Logger, metrics *observability.Metrics) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tile cache dir: %w", err)
	}
	c := &Cache{
		inner:   inner,
		dir:     dir,
		logger:  logger,
		metrics: metrics,
	}
	c.mem = newLRU(memEntries, func(tiles.Key, image.Image) {
		metrics.TileCache.WithLabelValues("memory", "evict").Inc()
	})
	return c, nil
}

// Path is the file a tile is stored under.
func (c *Cache) Path(key tiles.Key) string {
	return filepath.Join(c.dir, key.Filename())
}

// Tile returns the cached tile or fetches and stores it. An unreadable cache
// file is removed and the tile fetched once from the inner source.
func (c *Cache) Tile(ctx context.Context, key tiles.Key) (image.Image, error) {
	if img, ok := c.mem.get(key); ok {
		c.metrics.TileCache.WithLabelValues("memory", "hit").Inc()
		return img, nil
	}
	c.metrics.TileCache.WithLabelValues("memory", "miss").Inc()

	img, err := c.load(key)
	switch {
	case err == nil:
		c.metrics.TileCache.WithLabelValues("disk", "hit").Inc()
		c.mem.add(key, img)
		return img, nil
	case os.IsNotExist(err):
		c.metrics.TileCache.WithLabelValues("disk", "miss").Inc()
	default:
		c.metrics.TileCache.WithLabelValues("disk", "corrupt").Inc()
		c.logger.Warn("removing unreadable cached tile", "path", c.Path(key), "error", err)
		if rmErr := os.Remove(c.Path(key)); rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Warn("remove cached tile", "path", c.Path(key), "error", rmErr)
		}
	}

	img, err = c.inner.Tile(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.store(key, img); err != nil {
		c.logger.Warn("cache tile", "tile", key.String(), "error", err)
	}
	c.mem.add(key, img)
	return img, nil
}

// Invalidate drops a tile from both layers so the next lookup refetches it.
func (c *Cache) Invalidate(key tiles.Key) error {
	c.mem.remove(key)
	if err := os.Remove(c.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cached tile: %w", err)
	}
	return nil
}

func (c *Cache) load(key tiles.Key) (image.Image, error) {
	f, err := os.Open(c.Path(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode cached tile: %w", err)
	}
	return img, nil
}

// store writes the tile through a temp file so readers never see a partial PNG.
func (c *Cache) store(key tiles.Key, img image.Image) error {
	tmp, err := os.CreateTemp(c.dir, ".tile-*.png")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("encode tile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(key)); err != nil {
		return fmt.Errorf("rename tile: %w", err)
	}
	return nil
}
