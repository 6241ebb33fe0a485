// Package hdf5 opens ODIM HDF5 composites for the composite decoder.
//
// The reader links against libhdf5 through cgo and is only compiled with the
// "hdf5" build tag. Without the tag, Available is false and Open returns
// ErrUnavailable; the service refuses to start in a mode that needs it.
package hdf5
