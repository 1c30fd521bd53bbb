// Public domain.

// Package vacuum subtracts the predicted brightness of cataloged
// sources from a frame, leaving a residual map dominated by noise plus
// any unmodeled signal.
package vacuum

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/skysift/vacuumscan/catalog"
	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/scanner"
)

// Map is the residual intensity grid for one frame after known-source
// subtraction, aligned to the frame's resolved coordinate mapping.
// Negative residuals are preserved; they may indicate over-subtraction
// or catalog error.
type Map struct {
	FrameID string
	Time    time.Time
	MJD     float64

	// Basis is the resolved scan region the map was built under.  Two
	// maps may be differenced only when their bases match.
	Basis scanner.Region

	Sol *frame.PlateSolution
	Res *frame.Grid

	// Residual background statistics over the whole map.
	Mean, Sigma float64

	// Excluded lists catalog designations dropped from the subtraction
	// with a profile mismatch.
	Excluded []string
}

// Clipped returns a copy of the residual grid with negative residuals
// clipped to zero.  Display only; the map itself keeps signed values.
func (m *Map) Clipped() *frame.Grid {
	c := m.Res.Clone()
	for i, v := range c.Pix {
		if v < 0 {
			c.Pix[i] = 0
		}
	}
	return c
}

// Filter computes vacuum maps.  A Filter is read-only during a run and
// safe for concurrent use across frames.
type Filter struct {
	// BackgroundSigma, in pixels, enables flattening: a
	// gaussian-smoothed copy of the frame is subtracted before catalog
	// subtraction.  Zero disables the step.
	BackgroundSigma float64

	Log *zap.Logger
}

// Build computes the vacuum map for f from the resolved mapping and the
// catalog entries in view.  Deterministic: identical inputs yield a
// bit-identical map.  Entries whose profile cannot be rasterized are
// excluded and logged; the frame is still processed.
func (fl Filter) Build(f *frame.Frame, rg scanner.Region, sol *frame.PlateSolution, entries []catalog.Entry) (*Map, error) {
	if sol == nil || sol.Malformed() {
		return nil, errors.AssertionFailedf(
			"vacuum map requested for unresolved frame %s", f.ID)
	}
	log := fl.Log
	if log == nil {
		log = zap.NewNop()
	}

	res := f.Pix.Clone()
	if fl.BackgroundSigma > 0 {
		bg := f.Pix.Smooth(fl.BackgroundSigma)
		for i := range res.Pix {
			res.Pix[i] -= bg.Pix[i]
		}
	}

	pred := frame.NewGrid(res.W, res.H)
	var excluded []string
	for _, e := range entries {
		x, y := sol.SkyToPix(e.Pos)
		err := e.PSF.Rasterize(pred, x, y, e.Flux(), sol.Scale)
		if err == nil {
			continue
		}
		if errors.Is(err, catalog.ErrProfileMismatch) {
			excluded = append(excluded, e.Desig)
			log.Warn("catalog entry excluded from subtraction",
				zap.String("frame", f.ID),
				zap.String("entry", e.Desig),
				zap.Error(err))
			continue
		}
		return nil, errors.Wrapf(err, "vacuum: frame %s entry %s", f.ID, e.Desig)
	}
	for i := range res.Pix {
		res.Pix[i] -= pred.Pix[i]
	}

	return &Map{
		FrameID:  f.ID,
		Time:     f.Time,
		MJD:      f.MJD(),
		Basis:    rg,
		Sol:      sol,
		Res:      res,
		Mean:     stat.Mean(res.Pix, nil),
		Sigma:    stat.StdDev(res.Pix, nil),
		Excluded: excluded,
	}, nil
}
