package processor

import (
	"time"

	"github.com/couchcryptid/storm-radar-overlay/internal/composite"
	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

// Status is a snapshot of what the processor holds.
type Status struct {
	State        string                 `json:"state"`
	Bounds       domain.Bounds          `json:"bounds"`
	Style        string                 `json:"style"`
	Width        int                    `json:"width"`
	Height       int                    `json:"height"`
	LastModified time.Time              `json:"last_modified,omitzero"`
	LoadedAt     time.Time              `json:"loaded_at,omitzero"`
	Origin       string                 `json:"origin,omitempty"`
	GridCells    int                    `json:"grid_cells"`
	Calibration  *composite.Calibration `json:"calibration,omitempty"`
	Frame        *domain.FrameEvent     `json:"frame,omitempty"`
}

// Status reports the processor's current state without blocking refreshes.
func (p *Processor) Status() Status {
	st := Status{
		State:  p.State().String(),
		Bounds: p.opts.Bounds,
		Style:  p.opts.Style,
		Width:  p.opts.Width,
		Height: p.opts.Height,
	}
	if s := p.session.Load(); s != nil {
		st.LastModified = s.lastModified
		st.LoadedAt = s.loadedAt
		st.Origin = s.origin
		st.GridCells = s.composite.Window.Size()
		cal := s.composite.Header.Calibration
		st.Calibration = &cal
	}
	if f := p.frame.Load(); f != nil {
		ev := f.Event
		st.Frame = &ev
	}
	return st
}
