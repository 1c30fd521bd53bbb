// Public domain.

package catalog

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"

	"github.com/skysift/vacuumscan/frame"
)

// ErrProfileMismatch marks a point-spread profile that cannot be
// rasterized onto a particular frame grid.  The entry is excluded from
// that frame's subtraction; the frame is still processed.
var ErrProfileMismatch = errors.New("profile mismatch")

// Rasterization limits.  A profile narrower than minSigmaPx cannot be
// sampled meaningfully on the grid; a sampled profile whose pixel scale
// differs from the frame's by more than maxScaleRatio in either
// direction cannot be resampled without distorting the subtraction.
const (
	minSigmaPx    = .1
	maxScaleRatio = 4
	truncSigma    = 4
)

// PSF is a point-spread profile: the expected brightness distribution
// of a point source, modeled as a circular gaussian.
type PSF struct {
	// Sigma is the gaussian width on the sky.
	Sigma unit.Angle

	// SampleScale, when non-zero, is the pixel scale the profile was
	// measured at.  Zero means the profile is analytic and valid at
	// any compatible scale.
	SampleScale unit.Angle
}

// Rasterize adds the profile of a source with the given total flux onto
// g, centered at the fractional pixel position (cx, cy), for a frame
// with pixel scale pxScale.  Returns ErrProfileMismatch when the
// profile cannot be expressed on this grid.
func (p PSF) Rasterize(g *frame.Grid, cx, cy, flux float64, pxScale unit.Angle) error {
	sc := float64(pxScale)
	if sc <= 0 || math.IsNaN(sc) {
		return errors.Wrap(ErrProfileMismatch, "invalid frame pixel scale")
	}
	if s := float64(p.SampleScale); s > 0 {
		if r := s / sc; r > maxScaleRatio || r < 1/maxScaleRatio {
			return errors.Wrapf(ErrProfileMismatch,
				"sample scale %.3g vs frame scale %.3g", s, sc)
		}
	}
	sigmaPx := float64(p.Sigma) / sc
	if sigmaPx < minSigmaPx || math.IsNaN(sigmaPx) {
		return errors.Wrapf(ErrProfileMismatch, "sigma %.3g px", sigmaPx)
	}

	// amplitude of a normalized 2d gaussian carrying the full flux
	amp := flux / (2 * math.Pi * sigmaPx * sigmaPx)
	inv2ss := 1 / (2 * sigmaPx * sigmaPx)
	r := int(math.Ceil(truncSigma * sigmaPx))

	x0 := int(math.Floor(cx)) - r
	x1 := int(math.Ceil(cx)) + r
	y0 := int(math.Floor(cy)) - r
	y1 := int(math.Ceil(cy)) + r
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !g.In(x, y) {
				continue
			}
			dx := float64(x) - cx
			dy := float64(y) - cy
			g.AddAt(x, y, amp*math.Exp(-(dx*dx+dy*dy)*inv2ss))
		}
	}
	return nil
}
