// Public domain.

package scanner

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"
	"go.uber.org/zap"

	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/sky"
)

// ErrScanExhausted marks a scan session that hit its radius or
// expansion bound without resolving.  Terminal for the region; the run
// continues with remaining regions.
var ErrScanExhausted = errors.New("scan exhausted")

// State of a scan session.
type State int

const (
	Seeking State = iota
	Resolved
	Exhausted
)

func (s State) String() string {
	switch s {
	case Seeking:
		return "seeking"
	case Resolved:
		return "resolved"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Scanner runs scan sessions.  Independent sessions may run
// concurrently; a single session is sequential, each retry depending on
// the previous failure.
type Scanner struct {
	Resolver  Resolver
	Nominal   unit.Angle
	Growth    float64 // radius multiplier per expansion, > 1
	MaxRadius unit.Angle
	MaxExpand int
	Log       *zap.Logger
}

// Result is the outcome of a scan session.
type Result struct {
	State  State
	Region Region
	// Mappings holds the resolved plate solution per frame ID.  Only
	// frames that resolved at the final radius appear.
	Mappings map[string]*frame.PlateSolution
}

// Scan resolves a usable coordinate mapping for the region's frame set,
// expanding the radius geometrically on each failure.  The session
// resolves once at least minResolved frames produce a mapping at the
// current radius.  When the next radius would exceed MaxRadius or the
// expansion count would exceed MaxExpand, whichever triggers first, the
// session settles with whatever frames resolved at the final radius, or
// exhausts if none did.  The loop is strictly bounded.
func (s *Scanner) Scan(ctx context.Context, center sky.Pos, frames []*frame.Frame, minResolved int) (Result, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	rg := Region{Center: center, Radius: s.Nominal, MaxRadius: s.MaxRadius}
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return Result{State: Seeking, Region: rg}, err
		}

		mappings := make(map[string]*frame.PlateSolution, len(frames))
		for _, f := range frames {
			sol, err := s.Resolver.Resolve(f, rg)
			if err != nil {
				lastErr = err
				continue
			}
			mappings[f.ID] = sol
		}
		if len(mappings) >= minResolved {
			return Result{State: Resolved, Region: rg, Mappings: mappings}, nil
		}

		next := unit.Angle(float64(rg.Radius) * s.Growth)
		if float64(next) > float64(rg.MaxRadius) || rg.Expansions+1 > s.MaxExpand {
			if len(mappings) > 0 {
				// short of the target but not empty-handed; later
				// stages decide whether this subset is enough
				log.Debug("scan settled below target",
					zap.Int("resolved", len(mappings)),
					zap.Int("target", minResolved))
				return Result{State: Resolved, Region: rg, Mappings: mappings}, nil
			}
			err := ErrScanExhausted
			if lastErr != nil {
				err = errors.Mark(errors.Wrapf(lastErr,
					"scan exhausted after %d expansions at radius %.4g rad",
					rg.Expansions, float64(rg.Radius)), ErrScanExhausted)
			}
			return Result{State: Exhausted, Region: rg}, err
		}
		rg.Radius = next
		rg.Expansions++
		log.Debug("scan region expanded",
			zap.Float64("radius_rad", float64(rg.Radius)),
			zap.Int("expansions", rg.Expansions),
			zap.NamedError("cause", lastErr))
	}
}
