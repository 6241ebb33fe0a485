package composite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
)

// Fixture is a composite stored as JSON. It carries the same georeference,
// calibration, and raw counts as an HX file, without the HDF5 container.
type Fixture struct {
	LLLon       float64     `json:"ll_lon"`
	LLLat       float64     `json:"ll_lat"`
	XScale      float64     `json:"xscale,omitempty"`
	YScale      float64     `json:"yscale,omitempty"`
	ProjDef     string      `json:"projdef"`
	Calibration Calibration `json:"calibration"`
	Rows        int         `json:"rows"`
	Cols        int         `json:"cols"`
	Data        []int64     `json:"data"`
}

// LoadFixture decodes a JSON fixture into an in-memory container. Missing
// scale fields are left unset so Decode applies DefaultScale.
func LoadFixture(r io.Reader) (*MemContainer, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if f.Rows <= 0 || f.Cols <= 0 {
		return nil, fmt.Errorf("fixture grid %dx%d is empty", f.Rows, f.Cols)
	}
	if f.ProjDef == "" {
		return nil, fmt.Errorf("fixture has no projdef")
	}

	g := projection.Grid{LLLon: f.LLLon, LLLat: f.LLLat, XScale: f.XScale, YScale: f.YScale, Rows: f.Rows, Cols: f.Cols}
	c := NewGridContainer(g, f.ProjDef, f.Calibration, f.Data)
	if f.XScale == 0 {
		delete(c.Attrs[WhereGroup], "xscale")
	}
	if f.YScale == 0 {
		delete(c.Attrs[WhereGroup], "yscale")
	}
	return c, nil
}

// FixtureOpener opens JSON fixture payloads.
type FixtureOpener struct{}

func (FixtureOpener) Open(data []byte) (Container, error) {
	return LoadFixture(bytes.NewReader(data))
}
