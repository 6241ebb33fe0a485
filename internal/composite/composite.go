// Package composite decodes ODIM radar composites into calibrated grids
// cropped to an area of interest.
package composite

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
)

// ODIM paths used by the HX composite.
const (
	WhereGroup = "/where"
	WhatGroup  = "/dataset1/data1/what"
	DataPath   = "/dataset1/data1/data"
)

const (
	// DefaultScale is the pixel size in meters when xscale/yscale are absent.
	DefaultScale = 250.0
	// UndetectSentinel replaces cells below the radar's detection threshold.
	// It sits below the render floor so those cells are never colored.
	UndetectSentinel = -32.0
)

var (
	// ErrEmptyPayload is returned for a zero-length composite.
	ErrEmptyPayload = errors.New("empty composite payload")
	// ErrMalformed is returned when the container lacks required structure.
	ErrMalformed = errors.New("malformed composite")
	// ErrNotFound is returned by containers for missing attributes or datasets.
	ErrNotFound = errors.New("not found")
)

// Container is read access to a hierarchical composite file.
type Container interface {
	FloatAttr(group, name string) (float64, error)
	StringAttr(group, name string) (string, error)
	Shape(dataset string) (rows, cols int, err error)
	// ReadWindow returns the window's cells row-major.
	ReadWindow(dataset string, w projection.Window) ([]int64, error)
	Close() error
}

// Opener turns raw composite bytes into a Container.
type Opener interface {
	Open(data []byte) (Container, error)
}

// Calibration converts raw counts to reflectivity.
type Calibration struct {
	Gain     float64 `json:"gain"`
	Offset   float64 `json:"offset"`
	Nodata   float64 `json:"nodata"`
	Undetect float64 `json:"undetect"`
}

// Header is the georeference and calibration of a composite.
type Header struct {
	Grid        projection.Grid
	ProjDef     string
	Calibration Calibration
}

// Composite is a decoded, cropped, calibrated grid. Raw and Scaled are
// row-major over Window and never modified after Decode returns.
type Composite struct {
	Header Header
	Window projection.Window
	Raw    []int64
	Scaled []float64

	// Projection is nil when ProjDef could not be parsed; ProjectionErr says why.
	Projection    projection.Projection
	ProjectionErr error
}

// At returns the scaled value of window-relative cell (r, c).
func (c *Composite) At(r, col int) float64 {
	return c.Scaled[r*c.Window.Cols()+col]
}

// ReadHeader reads the georeference and calibration attributes.
func ReadHeader(c Container) (Header, error) {
	var h Header
	var err error

	if h.Grid.LLLon, err = requiredFloat(c, WhereGroup, "LL_lon"); err != nil {
		return Header{}, err
	}
	if h.Grid.LLLat, err = requiredFloat(c, WhereGroup, "LL_lat"); err != nil {
		return Header{}, err
	}
	if h.ProjDef, err = c.StringAttr(WhereGroup, "projdef"); err != nil {
		return Header{}, fmt.Errorf("%w: %s/projdef: %w", ErrMalformed, WhereGroup, err)
	}

	// Scale is optional and applied to both axes together, as DWD writes them.
	xs, xerr := c.FloatAttr(WhereGroup, "xscale")
	ys, yerr := c.FloatAttr(WhereGroup, "yscale")
	if xerr != nil || yerr != nil || xs <= 0 || ys <= 0 {
		xs, ys = DefaultScale, DefaultScale
	}
	h.Grid.XScale, h.Grid.YScale = xs, ys

	if h.Grid.Rows, h.Grid.Cols, err = c.Shape(DataPath); err != nil {
		return Header{}, fmt.Errorf("%w: %s: %w", ErrMalformed, DataPath, err)
	}
	if h.Grid.Rows <= 0 || h.Grid.Cols <= 0 {
		return Header{}, fmt.Errorf("%w: empty grid %dx%d", ErrMalformed, h.Grid.Rows, h.Grid.Cols)
	}

	cal := &h.Calibration
	for name, dst := range map[string]*float64{
		"gain": &cal.Gain, "offset": &cal.Offset, "nodata": &cal.Nodata, "undetect": &cal.Undetect,
	} {
		if *dst, err = requiredFloat(c, WhatGroup, name); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

func requiredFloat(c Container, group, name string) (float64, error) {
	v, err := c.FloatAttr(group, name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s/%s: %w", ErrMalformed, group, name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s/%s is not finite", ErrMalformed, group, name)
	}
	return v, nil
}

// Decode reads the header, crops the grid to aoi, and calibrates only the
// cropped cells. An unparseable projection falls back to the full grid and is
// reported through Composite.ProjectionErr.
func Decode(ctx context.Context, c Container, aoi domain.Bounds) (*Composite, error) {
	h, err := ReadHeader(c)
	if err != nil {
		return nil, err
	}

	out := &Composite{Header: h}
	stereo, projErr := projection.New(h.ProjDef)
	if projErr != nil {
		out.ProjectionErr = projErr
		out.Window = projection.FullWindow(h.Grid)
	} else {
		out.Projection = stereo
		out.Window = projection.CropWindow(stereo, h.Grid, aoi)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := c.ReadWindow(DataPath, out.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrMalformed, DataPath, err)
	}
	if len(raw) != out.Window.Size() {
		return nil, fmt.Errorf("%w: truncated data: got %d cells, want %d", ErrMalformed, len(raw), out.Window.Size())
	}
	out.Raw = raw
	out.Scaled = Calibrate(raw, h.Calibration)
	return out, nil
}

// DecodeBytes opens data with o and decodes it.
func DecodeBytes(ctx context.Context, o Opener, data []byte, aoi domain.Bounds) (*Composite, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	c, err := o.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrMalformed, err)
	}
	defer c.Close()

	return Decode(ctx, c, aoi)
}

// Calibrate converts raw counts to reflectivity: raw*gain+offset, with
// undetect cells set to UndetectSentinel and nodata cells set to NaN.
func Calibrate(raw []int64, cal Calibration) []float64 {
	out := make([]float64, len(raw))
	for i, r := range raw {
		v := float64(r)
		switch v {
		case cal.Nodata:
			out[i] = math.NaN()
		case cal.Undetect:
			out[i] = UndetectSentinel
		default:
			out[i] = v*cal.Gain + cal.Offset
		}
	}
	return out
}

// IsMissing reports whether a scaled value is the nodata marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
