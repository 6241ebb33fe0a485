package composite

import (
	"fmt"

	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
)

// MemDataset is a 2-D integer dataset held in memory, row-major.
type MemDataset struct {
	Rows int
	Cols int
	Data []int64
}

// MemContainer is an in-memory Container. Attribute values must be float64
// or string.
type MemContainer struct {
	Attrs    map[string]map[string]any
	Datasets map[string]MemDataset
	closed   bool
}

// NewMemContainer returns an empty container.
func NewMemContainer() *MemContainer {
	return &MemContainer{
		Attrs:    make(map[string]map[string]any),
		Datasets: make(map[string]MemDataset),
	}
}

// SetAttr stores an attribute value.
func (m *MemContainer) SetAttr(group, name string, v any) *MemContainer {
	if m.Attrs[group] == nil {
		m.Attrs[group] = make(map[string]any)
	}
	m.Attrs[group][name] = v
	return m
}

func (m *MemContainer) attr(group, name string) (any, error) {
	v, ok := m.Attrs[group][name]
	if !ok {
		return nil, fmt.Errorf("attribute %s/%s: %w", group, name, ErrNotFound)
	}
	return v, nil
}

func (m *MemContainer) FloatAttr(group, name string) (float64, error) {
	v, err := m.attr(group, name)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	}
	return 0, fmt.Errorf("attribute %s/%s is %T, not numeric", group, name, v)
}

func (m *MemContainer) StringAttr(group, name string) (string, error) {
	v, err := m.attr(group, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attribute %s/%s is %T, not string", group, name, v)
	}
	return s, nil
}

func (m *MemContainer) Shape(dataset string) (int, int, error) {
	d, ok := m.Datasets[dataset]
	if !ok {
		return 0, 0, fmt.Errorf("dataset %s: %w", dataset, ErrNotFound)
	}
	return d.Rows, d.Cols, nil
}

func (m *MemContainer) ReadWindow(dataset string, w projection.Window) ([]int64, error) {
	d, ok := m.Datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", dataset, ErrNotFound)
	}
	if w.Empty() || w.RowStart < 0 || w.ColStart < 0 || w.RowEnd > d.Rows || w.ColEnd > d.Cols {
		return nil, fmt.Errorf("window %+v outside %dx%d dataset", w, d.Rows, d.Cols)
	}
	out := make([]int64, 0, w.Size())
	for r := w.RowStart; r < w.RowEnd; r++ {
		start := r*d.Cols + w.ColStart
		end := r*d.Cols + w.ColEnd
		if end > len(d.Data) {
			// Truncated payload: return what exists so the caller can detect it.
			if start < len(d.Data) {
				out = append(out, d.Data[start:]...)
			}
			break
		}
		out = append(out, d.Data[start:end]...)
	}
	return out, nil
}

func (m *MemContainer) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemContainer) Closed() bool { return m.closed }

// MemOpener always returns the same container, ignoring the payload.
type MemOpener struct {
	Container Container
	Err       error
}

func (o MemOpener) Open([]byte) (Container, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Container, nil
}

// NewGridContainer builds a container holding one data grid with the given
// georeference and calibration, laid out like the HX composite.
func NewGridContainer(g projection.Grid, projDef string, cal Calibration, data []int64) *MemContainer {
	m := NewMemContainer()
	m.SetAttr(WhereGroup, "LL_lon", g.LLLon).
		SetAttr(WhereGroup, "LL_lat", g.LLLat).
		SetAttr(WhereGroup, "projdef", projDef).
		SetAttr(WhereGroup, "xscale", g.XScale).
		SetAttr(WhereGroup, "yscale", g.YScale).
		SetAttr(WhatGroup, "gain", cal.Gain).
		SetAttr(WhatGroup, "offset", cal.Offset).
		SetAttr(WhatGroup, "nodata", cal.Nodata).
		SetAttr(WhatGroup, "undetect", cal.Undetect)
	m.Datasets[DataPath] = MemDataset{Rows: g.Rows, Cols: g.Cols, Data: data}
	return m
}
