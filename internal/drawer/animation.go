package drawer

import "time"

// Stage animates one property between two normalized values. All stages of
// a plan run in parallel.
type Stage struct {
	Property string        `json:"property"`
	From     float64       `json:"from"`
	To       float64       `json:"to"`
	Duration time.Duration `json:"duration"`
}

const (
	// collapsedHeight is the collapsed drawer's share of the screen.
	collapsedHeight = 0.35

	slideDuration  = 250 * time.Millisecond
	resizeDuration = 300 * time.Millisecond
)

// Plan returns the animation for tr. A nil plan means the renderer jumps
// straight to the new state.
func Plan(tr Transition) []Stage {
	switch {
	case tr.To == Closed && tr.Smooth:
		from := collapsedHeight
		if tr.From == Expanded {
			from = 1
		}
		return []Stage{
			{Property: "translate_y", From: 0, To: 1, Duration: slideDuration},
			{Property: "opacity", From: 1, To: 0, Duration: slideDuration},
			{Property: "height", From: from, To: 0, Duration: slideDuration},
		}
	case tr.From == Closed && tr.To == Collapsed:
		return []Stage{
			{Property: "translate_y", From: 1, To: 0, Duration: slideDuration},
			{Property: "opacity", From: 0, To: 1, Duration: slideDuration},
		}
	case tr.From == Closed && tr.To == Expanded:
		return []Stage{
			{Property: "translate_y", From: 1, To: 0, Duration: slideDuration},
			{Property: "height", From: collapsedHeight, To: 1, Duration: resizeDuration},
		}
	case tr.From == Collapsed && tr.To == Expanded:
		return []Stage{{Property: "height", From: collapsedHeight, To: 1, Duration: resizeDuration}}
	case tr.From == Expanded && tr.To == Collapsed:
		return []Stage{{Property: "height", From: 1, To: collapsedHeight, Duration: resizeDuration}}
	default:
		return nil
	}
}
