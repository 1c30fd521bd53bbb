// Public domain.

// Package scanner resolves frame coordinate solutions over an
// adaptively widening scan region.
package scanner

import (
	"fmt"

	"github.com/soniakeys/unit"

	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/sky"
)

// Region is the sky area currently being resolved.  It is mutated only
// by a scan session and discarded when the session ends.
type Region struct {
	Center     sky.Pos
	Radius     unit.Angle
	Expansions int
	MaxRadius  unit.Angle
}

// ResolutionFailure is the recoverable failure returned by Resolve.
// It drives the scan session's radius expansion.
type ResolutionFailure struct {
	FrameID string
	Reason  string
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("resolution failed for frame %s: %s", e.FrameID, e.Reason)
}

// Resolver validates a frame's coordinate solution restricted to a
// scan region.  Side-effect-free and deterministic.
type Resolver struct {
	// MinRefStars is the number of reference stars that must fall
	// inside the region for the solution to count as resolved there.
	MinRefStars int
}

// Resolve returns the frame's plate solution if it is usable within rg,
// or a *ResolutionFailure describing why it is not.
func (r Resolver) Resolve(f *frame.Frame, rg Region) (*frame.PlateSolution, error) {
	sol := f.Solution
	if sol == nil {
		return nil, &ResolutionFailure{f.ID, "no coordinate solution"}
	}
	if sol.Malformed() {
		return nil, &ResolutionFailure{f.ID, "malformed coordinate metadata"}
	}
	if f.Pix == nil || f.Pix.W == 0 || f.Pix.H == 0 {
		return nil, &ResolutionFailure{f.ID, "empty pixel grid"}
	}

	// the region center must land on the frame
	x, y := sol.SkyToPix(rg.Center)
	if x < 0 || y < 0 || x >= float64(f.Pix.W) || y >= float64(f.Pix.H) {
		return nil, &ResolutionFailure{f.ID, "region outside frame bounds"}
	}

	n := 0
	for _, s := range sol.RefStars {
		if s.Within(rg.Center, rg.Radius) {
			n++
		}
	}
	if n < r.MinRefStars {
		return nil, &ResolutionFailure{f.ID, fmt.Sprintf(
			"insufficient reference stars in region: %d of %d required",
			n, r.MinRefStars)}
	}
	return sol, nil
}
