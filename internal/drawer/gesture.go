package drawer

import "math"

const (
	// velocityThreshold is in units per millisecond.
	velocityThreshold = 0.5
	// displacementThreshold is in pixels.
	displacementThreshold = 100
)

// Gesture is a drag at release. DY is positive downward.
type Gesture struct {
	DY          float64 `json:"dy"`
	Velocity    float64 `json:"velocity"`
	ScrollAtTop bool    `json:"scroll_at_top"`
}

type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeSnapBack Outcome = "snap_back"
	OutcomeClose    Outcome = "close"
	OutcomeExpand   Outcome = "expand"
)

// Decide maps a released gesture to an outcome. A gesture is decisive when
// its velocity exceeds 0.5 units/ms or its displacement exceeds 100px: down
// closes, up expands from Collapsed. While Expanded only downward drags are
// accepted, and only with the inner content scrolled to the top.
func Decide(phase Phase, g Gesture) Outcome {
	switch phase {
	case Closed:
		return OutcomeIgnored
	case Expanded:
		if g.DY <= 0 || !g.ScrollAtTop {
			return OutcomeIgnored
		}
	}

	decisive := math.Abs(g.Velocity) > velocityThreshold || math.Abs(g.DY) > displacementThreshold
	switch {
	case !decisive:
		return OutcomeSnapBack
	case g.DY > 0:
		return OutcomeClose
	case g.DY < 0 && phase == Collapsed:
		return OutcomeExpand
	default:
		return OutcomeSnapBack
	}
}
