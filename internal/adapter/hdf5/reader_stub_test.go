//go:build !hdf5

package hdf5

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenWithoutHDF5Support(t *testing.T) {
	_, err := Opener{}.Open([]byte("\x89HDF\r\n\x1a\n"))
	require.ErrorIs(t, err, ErrUnavailable)
	require.False(t, Available)
}
