package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMarkerColor is used for markers configured without a color.
const DefaultMarkerColor = "red"

// markerBuffer is how far outside the viewport, in degrees, a marker may sit
// and still be drawn.
const markerBuffer = 0.5

// ErrInvalidMarker is returned when a marker entry cannot be parsed.
var ErrInvalidMarker = errors.New("invalid marker")

// Marker is a named point drawn on top of the radar overlay.
type Marker struct {
	Name  string  `json:"name" yaml:"name"`
	Lon   float64 `json:"lon" yaml:"lon"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Color string  `json:"color" yaml:"color"`
}

// NewMarker builds a Marker, defaulting an empty color to DefaultMarkerColor.
func NewMarker(name string, lon, lat float64, color string) Marker {
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultMarkerColor
	}
	return Marker{Name: name, Lon: lon, Lat: lat, Color: color}
}

// Normalize returns m with its color defaulted.
func (m Marker) Normalize() Marker {
	return NewMarker(m.Name, m.Lon, m.Lat, m.Color)
}

// ParseMarkers parses a semicolon-separated list of "name:lon:lat[:color]"
// entries. Two-field coordinate entries ("name:lon:lat") get the default color.
// Blank entries are skipped.
func ParseMarkers(s string) ([]Marker, error) {
	var markers []Marker
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 && len(parts) != 4 {
			return nil, fmt.Errorf("%w %q: expected name:lon:lat[:color]", ErrInvalidMarker, entry)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("%w %q: empty name", ErrInvalidMarker, entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("%w %q: bad longitude", ErrInvalidMarker, entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("%w %q: bad latitude", ErrInvalidMarker, entry)
		}
		color := ""
		if len(parts) == 4 {
			color = parts[3]
		}
		markers = append(markers, NewMarker(name, lon, lat, color))
	}
	return markers, nil
}

// VisibleMarkers returns the markers inside b (edges inclusive), followed by
// markers within the 0.5° buffer around b that were not already included.
// Input order is preserved within each pass and names are deduplicated.
func VisibleMarkers(b Bounds, markers []Marker) []Marker {
	seen := make(map[string]bool, len(markers))
	visible := make([]Marker, 0, len(markers))

	for _, m := range markers {
		if b.Contains(m.Lon, m.Lat) && !seen[m.Name] {
			seen[m.Name] = true
			visible = append(visible, m.Normalize())
		}
	}

	buffered := b.Expand(markerBuffer)
	for _, m := range markers {
		if seen[m.Name] {
			continue
		}
		if buffered.Contains(m.Lon, m.Lat) {
			seen[m.Name] = true
			visible = append(visible, m.Normalize())
		}
	}
	return visible
}

// DefaultMarkers is the marker set used when none is configured: towns around
// the default viewport center, with the center itself highlighted in red.
func DefaultMarkers() []Marker {
	return []Marker{
		NewMarker("Heimsheim", 8.862, 48.806, "red"),
		NewMarker("Leonberg", 9.014, 48.798, "green"),
		NewMarker("Rutesheim", 8.947, 48.808, "green"),
		NewMarker("Renningen", 8.934, 48.765, "green"),
		NewMarker("Weissach", 8.929, 48.847, "green"),
		NewMarker("Friolzheim", 8.835, 48.836, "green"),
		NewMarker("Wiernsheim", 8.851, 48.891, "green"),
		NewMarker("Liebenzell", 8.732, 48.771, "green"),
		NewMarker("Calw", 8.739, 48.715, "green"),
		NewMarker("Weil der Stadt", 8.871, 48.750, "green"),
		NewMarker("Böblingen", 9.011, 48.686, "green"),
		NewMarker("Hochdorf", 9.002, 48.886, "green"),
		NewMarker("Pforzheim", 8.704, 48.891, "green"),
		NewMarker("Sindelfingen", 9.005, 48.709, "green"),
	}
}
