package hdf5

import "errors"

// ErrUnavailable is returned when the binary was built without HDF5 support.
var ErrUnavailable = errors.New("hdf5 support not compiled in (build with -tags hdf5)")
