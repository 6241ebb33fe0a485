//go:build hdf5

package hdf5

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
	gohdf5 "gonum.org/v1/hdf5"
)

// Available reports whether this build can read HDF5 composites.
const Available = true

// libhdf5 is not thread-safe unless built with --enable-threadsafe.
var libMu sync.Mutex

// Opener opens composite bytes with libhdf5.
type Opener struct {
	// TempDir holds the spill file libhdf5 reads from. Empty means os.TempDir.
	TempDir string
}

// Open writes data to a temporary file and opens it read-only. The file is
// removed when the container is closed.
func (o Opener) Open(data []byte) (composite.Container, error) {
	tmp, err := os.CreateTemp(o.TempDir, "composite-*.hd5")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	libMu.Lock()
	f, err := gohdf5.OpenFile(path, gohdf5.F_ACC_RDONLY)
	libMu.Unlock()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("open hdf5: %w", err)
	}
	return &Container{file: f, path: path}, nil
}

// Container reads attributes and hyperslabs from an open HDF5 file.
type Container struct {
	file *gohdf5.File
	path string
}

func (c *Container) openAttr(group, name string) (*gohdf5.Attribute, func(), error) {
	g, err := c.file.OpenGroup(strings.TrimPrefix(group, "/"))
	if err != nil {
		return nil, nil, fmt.Errorf("group %s: %w", group, composite.ErrNotFound)
	}
	a, err := g.OpenAttribute(name)
	if err != nil {
		g.Close()
		return nil, nil, fmt.Errorf("attribute %s/%s: %w: %v", group, name, composite.ErrNotFound, err)
	}
	return a, func() { a.Close(); g.Close() }, nil
}

func (c *Container) FloatAttr(group, name string) (float64, error) {
	libMu.Lock()
	defer libMu.Unlock()

	a, done, err := c.openAttr(group, name)
	if err != nil {
		return 0, err
	}
	defer done()

	var v float64
	if err := a.Read(&v, gohdf5.T_NATIVE_DOUBLE); err != nil {
		return 0, fmt.Errorf("read %s/%s: %w", group, name, err)
	}
	return v, nil
}

func (c *Container) StringAttr(group, name string) (string, error) {
	libMu.Lock()
	defer libMu.Unlock()

	a, done, err := c.openAttr(group, name)
	if err != nil {
		return "", err
	}
	defer done()

	var s string
	if err := a.Read(&s, gohdf5.T_GO_STRING); err != nil {
		return "", fmt.Errorf("read %s/%s: %w", group, name, err)
	}
	return strings.TrimRight(s, "\x00 "), nil
}

func (c *Container) Shape(dataset string) (int, int, error) {
	libMu.Lock()
	defer libMu.Unlock()

	ds, err := c.file.OpenDataset(strings.TrimPrefix(dataset, "/"))
	if err != nil {
		return 0, 0, fmt.Errorf("dataset %s: %w", dataset, composite.ErrNotFound)
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return 0, 0, fmt.Errorf("dataset %s dims: %w", dataset, err)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("dataset %s has rank %d, want 2", dataset, len(dims))
	}
	return int(dims[0]), int(dims[1]), nil
}

func (c *Container) ReadWindow(dataset string, w projection.Window) ([]int64, error) {
	if w.Empty() || w.RowStart < 0 || w.ColStart < 0 {
		return nil, errors.New("empty or negative window")
	}

	libMu.Lock()
	defer libMu.Unlock()

	ds, err := c.file.OpenDataset(strings.TrimPrefix(dataset, "/"))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset, composite.ErrNotFound)
	}
	defer ds.Close()

	fileSpace := ds.Space()
	defer fileSpace.Close()

	offset := []uint{uint(w.RowStart), uint(w.ColStart)}
	count := []uint{uint(w.Rows()), uint(w.Cols())}
	if err := fileSpace.SelectHyperslab(offset, nil, count, nil); err != nil {
		return nil, fmt.Errorf("select hyperslab: %w", err)
	}

	memSpace, err := gohdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return nil, fmt.Errorf("create memory space: %w", err)
	}
	defer memSpace.Close()

	buf := make([]int64, w.Size())
	if err := ds.ReadSubset(&buf, memSpace, fileSpace); err != nil {
		return nil, fmt.Errorf("read hyperslab: %w", err)
	}
	return buf, nil
}

// Close closes the file and removes its spill file.
func (c *Container) Close() error {
	libMu.Lock()
	err := c.file.Close()
	libMu.Unlock()
	if rmErr := os.Remove(c.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
