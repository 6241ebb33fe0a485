// Package render turns calibrated reflectivity into the overlay image: it
// smooths the grid, classifies dBZ into the weather-radar palette, and
// composites it with a background and place markers.
package render
