package domain

import (
	"time"

	"github.com/google/uuid"
)

// FrameEvent describes one rendered overlay image. It is published to the
// frame topic and served as the image metadata document.
type FrameEvent struct {
	ID            string    `json:"id"`
	Bounds        Bounds    `json:"bounds"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Zoom          int       `json:"zoom"`
	Style         string    `json:"style"`
	HasRadar      bool      `json:"has_radar"`
	DataTimestamp time.Time `json:"data_timestamp,omitzero"`
	TilesFetched  int       `json:"tiles_fetched"`
	TilesFailed   int       `json:"tiles_failed"`
	Markers       []string  `json:"markers"`
	RenderedAt    time.Time `json:"rendered_at"`
}

// NewFrameEvent stamps a frame with a fresh ID and the current time.
func NewFrameEvent(b Bounds, width, height, zoom int, style string) FrameEvent {
	return FrameEvent{
		ID:         uuid.NewString(),
		Bounds:     b,
		Width:      width,
		Height:     height,
		Zoom:       zoom,
		Style:      style,
		Markers:    []string{},
		RenderedAt: Now(),
	}
}
