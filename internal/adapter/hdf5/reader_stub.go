//go:build !hdf5

package hdf5

import "github.com/couchcryptid/storm-radar-overlay/internal/composite"

// Available reports whether this build can read HDF5 composites.
const Available = false

// Opener reports ErrUnavailable in builds without the hdf5 tag.
type Opener struct {
	TempDir string
}

func (Opener) Open([]byte) (composite.Container, error) {
	return nil, ErrUnavailable
}
