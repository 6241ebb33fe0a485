package domain

import (
	"context"
	"time"
)

// Freshness is the outcome of asking a composite source whether it holds
// data newer than what is already loaded.
type Freshness struct {
	Changed      bool
	LastModified time.Time // zero when the source does not report one
}

// Payload is one raw composite file.
type Payload struct {
	Data         []byte
	LastModified time.Time
	Origin       string
}

// CompositeSource provides raw radar composite files.
type CompositeSource interface {
	// Check reports whether data newer than since is available. A zero since
	// always counts as changed.
	Check(ctx context.Context, since time.Time) (Freshness, error)
	Fetch(ctx context.Context) (Payload, error)
}
