package processor

// State is the lifecycle stage of a Processor.
type State int32

const (
	// StateIdle means no composite has been loaded yet.
	StateIdle State = iota
	// StateLoaded means a composite is held but not yet rendered.
	StateLoaded
	// StateRendered means the latest composite has been rendered.
	StateRendered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// Outcome is the result of one refresh attempt.
type Outcome string

const (
	OutcomeLoaded    Outcome = "loaded"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)
