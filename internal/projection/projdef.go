// Package projection converts between the radar composite's polar
// stereographic grid and geographic WGS84 coordinates.
package projection

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnsupported is returned for projection definitions other than polar stereographic.
	ErrUnsupported = errors.New("unsupported projection")
	// ErrInvalidDefinition is returned when a projection string cannot be parsed.
	ErrInvalidDefinition = errors.New("invalid projection definition")
	// ErrOutOfDomain is returned when a point cannot be transformed.
	ErrOutOfDomain = errors.New("coordinate outside projection domain")
)

// Params holds the parsed parameters of a PROJ.4 style definition.
type Params struct {
	Proj   string
	Lat0   float64 // degrees
	LatTS  float64 // degrees, latitude of true scale
	Lon0   float64 // degrees
	K0     float64
	A      float64 // semi-major axis, meters
	B      float64 // semi-minor axis, meters
	X0, Y0 float64 // false easting/northing, meters
}

type ellipsoidDef struct {
	a  float64
	rf float64 // inverse flattening, 0 for a sphere
}

var ellipsoids = map[string]ellipsoidDef{
	"WGS84":  {a: 6378137.0, rf: 298.257223563},
	"GRS80":  {a: 6378137.0, rf: 298.257222101},
	"bessel": {a: 6377397.155, rf: 299.1528128},
	"sphere": {a: 6370997.0},
}

// ParseProjDef parses a definition such as
// "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142 +x_0=0 +y_0=0".
// Unknown keys and flags (e.g. +no_defs) are ignored.
func ParseProjDef(def string) (Params, error) {
	p := Params{K0: 1}
	hasLatTS := false
	south := false
	ellps := ""
	rf := 0.0

	fields := strings.Fields(def)
	if len(fields) == 0 {
		return Params{}, fmt.Errorf("%w: empty", ErrInvalidDefinition)
	}

	for _, tok := range fields {
		tok = strings.TrimPrefix(tok, "+")
		key, val, hasVal := strings.Cut(tok, "=")
		if !hasVal {
			if key == "south" {
				south = true
			}
			continue
		}
		if key == "proj" {
			p.Proj = val
			continue
		}
		if key == "ellps" || key == "datum" {
			ellps = val
			continue
		}
		if key == "units" {
			if val != "m" {
				return Params{}, fmt.Errorf("%w: units %q", ErrUnsupported, val)
			}
			continue
		}

		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			// Non-numeric values for keys we don't use are harmless.
			if isNumericKey(key) {
				return Params{}, fmt.Errorf("%w: %s=%q", ErrInvalidDefinition, key, val)
			}
			continue
		}
		switch key {
		case "lat_0":
			p.Lat0 = f
		case "lat_ts":
			p.LatTS = f
			hasLatTS = true
		case "lon_0":
			p.Lon0 = f
		case "k", "k_0":
			p.K0 = f
		case "a", "R":
			p.A = f
		case "b":
			p.B = f
		case "rf":
			rf = f
		case "x_0":
			p.X0 = f
		case "y_0":
			p.Y0 = f
		}
	}

	if p.Proj == "" {
		return Params{}, fmt.Errorf("%w: missing +proj", ErrInvalidDefinition)
	}
	// sterea is the oblique double stereographic and does not share these formulas.
	if p.Proj != "stere" && p.Proj != "ups" {
		return Params{}, fmt.Errorf("%w: %s", ErrUnsupported, p.Proj)
	}
	if p.Proj == "ups" {
		p.Lat0 = 90
		if south {
			p.Lat0 = -90
		}
		p.LatTS = p.Lat0
		p.Lon0 = 0
		p.K0 = 0.994
		p.X0, p.Y0 = 2000000, 2000000
		hasLatTS = true
	}
	if math.Abs(math.Abs(p.Lat0)-90) > 1e-9 {
		return Params{}, fmt.Errorf("%w: only polar aspect supported, lat_0=%g", ErrUnsupported, p.Lat0)
	}
	if !hasLatTS {
		p.LatTS = p.Lat0
	}

	if p.A == 0 {
		e, ok := ellipsoids[ellps]
		if !ok {
			e = ellipsoids["WGS84"]
		}
		p.A = e.a
		if rf == 0 {
			rf = e.rf
		}
	}
	if p.B == 0 {
		p.B = p.A
		if rf > 0 {
			p.B = p.A * (1 - 1/rf)
		}
	}
	if p.A <= 0 || p.B <= 0 || p.B > p.A {
		return Params{}, fmt.Errorf("%w: axes a=%g b=%g", ErrInvalidDefinition, p.A, p.B)
	}
	return p, nil
}

func isNumericKey(key string) bool {
	switch key {
	case "lat_0", "lat_ts", "lon_0", "k", "k_0", "a", "b", "R", "rf", "x_0", "y_0":
		return true
	}
	return false
}
