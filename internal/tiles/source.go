package tiles

import (
	"context"
	"fmt"
	"image"
)

// Key identifies one background tile.
type Key struct {
	Style string
	Z     int
	X     int
	Y     int
}

// Filename is the deterministic cache file name for the key.
func (k Key) Filename() string {
	return fmt.Sprintf("%s_%d_%d_%d.png", k.Style, k.Z, k.X, k.Y)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Style, k.Z, k.X, k.Y)
}

// Source provides tile images.
type Source interface {
	Tile(ctx context.Context, key Key) (image.Image, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key Key) (image.Image, error)

func (f SourceFunc) Tile(ctx context.Context, key Key) (image.Image, error) { return f(ctx, key) }
