// Command genfixture writes a synthetic HX-style composite as a JSON fixture.
// The grid uses the DWD stereographic projection and is centered on the
// viewport, with Gaussian storm cells placed at geographic positions.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -out testdata/storm.json \
//	  -cells "8.862:48.806:55:6;8.95:48.86:40:10"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/projection"
)

const dwdProjDef = "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142451802 +no_defs +x_0=543196.83521776402 +y_0=3622588.8619310018"

var hxCalibration = composite.Calibration{Gain: 0.5, Offset: -32, Nodata: 255, Undetect: 0}

// cell is a Gaussian reflectivity peak.
type cell struct {
	lon, lat float64
	peak     float64 // dBZ
	radiusKm float64 // one standard deviation
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON fixture")
	centerLon := flag.Float64("center-lon", 8.862, "grid center longitude")
	centerLat := flag.Float64("center-lat", 48.806, "grid center latitude")
	size := flag.Int("size", 200, "grid rows and columns")
	scale := flag.Float64("scale", 250, "cell size in meters")
	cellSpec := flag.String("cells", "8.862:48.806:55:6;8.95:48.86:40:10", "storm cells as lon:lat:dBZ:radius_km;...")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *size <= 0 || *scale <= 0 {
		return fmt.Errorf("size and scale must be positive")
	}
	cells, err := parseCells(*cellSpec)
	if err != nil {
		return err
	}

	f, err := generate(*centerLon, *centerLat, *size, *scale, cells)
	if err != nil {
		return err
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("wrote %s (%dx%d cells, %d storm cells, LL %.4f,%.4f)\n", *out, f.Rows, f.Cols, len(cells), f.LLLon, f.LLLat)
	return nil
}

func parseCells(s string) ([]cell, error) {
	var cells []cell
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("cell %q: want lon:lat:dBZ:radius_km", entry)
		}
		var v [4]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("cell %q: %w", entry, err)
			}
			v[i] = f
		}
		if v[3] <= 0 {
			return nil, fmt.Errorf("cell %q: radius must be positive", entry)
		}
		cells = append(cells, cell{lon: v[0], lat: v[1], peak: v[2], radiusKm: v[3]})
	}
	return cells, nil
}

func generate(centerLon, centerLat float64, size int, scale float64, cells []cell) (composite.Fixture, error) {
	proj, err := projection.New(dwdProjDef)
	if err != nil {
		return composite.Fixture{}, err
	}
	cx, cy, err := proj.Forward(centerLon, centerLat)
	if err != nil {
		return composite.Fixture{}, fmt.Errorf("project center: %w", err)
	}
	half := float64(size) / 2 * scale
	llLon, llLat, err := proj.Inverse(cx-half, cy-half)
	if err != nil {
		return composite.Fixture{}, fmt.Errorf("lower-left anchor: %w", err)
	}

	type point struct{ x, y float64 }
	centers := make([]point, len(cells))
	for i, c := range cells {
		x, y, err := proj.Forward(c.lon, c.lat)
		if err != nil {
			return composite.Fixture{}, fmt.Errorf("project cell %d: %w", i, err)
		}
		centers[i] = point{x, y}
	}

	g := projection.Grid{LLLon: llLon, LLLat: llLat, XScale: scale, YScale: scale, Rows: size, Cols: size}
	ox, oy, err := g.Origin(proj)
	if err != nil {
		return composite.Fixture{}, err
	}

	data := make([]int64, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			x, y := g.PixelCenter(ox, oy, row, col)
			dbz := math.Inf(-1)
			for i, c := range cells {
				d2 := (x-centers[i].x)*(x-centers[i].x) + (y-centers[i].y)*(y-centers[i].y)
				sigma := c.radiusKm * 1000
				dbz = math.Max(dbz, c.peak*math.Exp(-d2/(2*sigma*sigma)))
			}
			data[row*size+col] = rawCount(dbz)
		}
	}

	return composite.Fixture{
		LLLon: llLon, LLLat: llLat, XScale: scale, YScale: scale,
		ProjDef: dwdProjDef, Calibration: hxCalibration,
		Rows: size, Cols: size, Data: data,
	}, nil
}

// rawCount inverts the HX calibration. Weak echoes become undetect.
func rawCount(dbz float64) int64 {
	if dbz < 1 {
		return int64(hxCalibration.Undetect)
	}
	raw := math.Round((dbz - hxCalibration.Offset) / hxCalibration.Gain)
	return int64(math.Max(1, math.Min(254, raw)))
}
