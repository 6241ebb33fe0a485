// Package domain models the geographic viewport, point markers, and frame
// events shared by the radar overlay pipeline.
//
// # Data Source
//
// Reflectivity data comes from the Deutscher Wetterdienst (DWD) HX composite,
// published every five minutes at
// https://opendata.dwd.de/weather/radar/composite/hx/. Each file is an ODIM
// HDF5 container holding one 2-D integer grid in a polar stereographic
// projection. Decoding lives in the composite package; this package only
// carries the geographic types the rest of the service agrees on.
//
// # Viewport Conventions
//
// The output image covers a rectangle derived from a center point, a zoom
// level, and the output size in pixels:
//
//	km per 256 px tile at zoom 10:  39 km × cos(lat)
//	scale factor:                   2^(10 - zoom)
//	km per pixel:                   km_per_tile × scale / 256
//	half width (deg):               width × km_per_px / 2 / (111 × cos(lat))
//	half height (deg):              height × km_per_px / 2 / 111
//
// Zoom is clamped to [8, 12]. Below 8 the HX composite is coarser than the
// output and above 12 a single radar pixel spans most of the image.
//
// # Markers
//
// Markers are named points drawn over the overlay. Entries without a color
// default to red at construction time, so consumers never see an empty color.
// Visibility is computed in two passes: markers inside the viewport (edges
// inclusive) first, then markers within a 0.5° buffer outside it.
//
// # Frame Events
//
// Every rendered image produces a [FrameEvent] carrying a random ID, the
// viewport, and the composite's server timestamp. Timestamps are taken from
// the package clock so tests can freeze them via [SetClock].
package domain
