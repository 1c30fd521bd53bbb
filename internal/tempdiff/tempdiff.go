// Public domain.

// Package tempdiff aligns vacuum maps for one sky region across epochs
// and computes per-pixel differences between epoch pairs.
package tempdiff

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/vacuum"
)

// ErrInsufficientEpochs marks a region with fewer than the required
// number of valid vacuum maps.  The region is skipped for differencing.
var ErrInsufficientEpochs = errors.New("insufficient epochs")

// Record pairs two vacuum maps of the same sky region at distinct
// epochs with their residual-delta grid.  A is the earlier epoch.
type Record struct {
	A, B *vacuum.Map

	// Delta is B − A on A's pixel grid, B resampled if the grids
	// differ in scale.
	Delta *frame.Grid

	// Sigma is the background noise of the delta grid, pooled from the
	// two maps' residual statistics.
	Sigma float64

	// Displacement is the pixel offset, B relative to A, of the
	// centroid of significant residual intensity — non-zero offsets
	// support a moving-source hypothesis.  Zero when either epoch has
	// no significant residual.
	Displacement [2]float64
}

// Differ computes difference records over a region's vacuum map set.
type Differ struct {
	// MinEpochs is the minimum number of valid maps required,
	// at least two.
	MinEpochs int

	// Sensitivity is the sigma multiplier used when selecting
	// significant residual pixels for the displacement estimate.
	Sensitivity float64

	Log *zap.Logger
}

// Diff orders maps by epoch and emits one record per consecutive epoch
// pair.  All maps must share the same alignment basis.
func (d Differ) Diff(maps []*vacuum.Map) ([]*Record, error) {
	if len(maps) < d.MinEpochs || len(maps) < 2 {
		return nil, errors.Wrapf(ErrInsufficientEpochs,
			"%d of %d valid epochs", len(maps), d.MinEpochs)
	}
	ordered := append([]*vacuum.Map{}, maps...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].MJD < ordered[j].MJD
	})
	basis := ordered[0].Basis
	for _, m := range ordered[1:] {
		if m.Basis != basis {
			return nil, errors.AssertionFailedf(
				"vacuum maps differ in alignment basis: frame %s", m.FrameID)
		}
	}

	recs := make([]*Record, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		recs = append(recs, d.Pair(ordered[i-1], ordered[i]))
	}
	return recs, nil
}

// Pair computes the difference record for a single epoch pair.
// Pair(a, b) and Pair(b, a) yield sign-inverse deltas at every aligned
// position.
func (d Differ) Pair(a, b *vacuum.Map) *Record {
	dd := subtract(a, b)
	r := &Record{
		A:     a,
		B:     b,
		Delta: dd,
		Sigma: math.Sqrt(a.Sigma*a.Sigma + b.Sigma*b.Sigma),
	}
	r.Displacement = displacement(a, b, d.Sensitivity)
	return r
}

// displacement estimates the pixel offset of significant residual
// intensity from a to b.  Each map's own background sigma selects its
// significant pixels; both epochs must show signal for an offset to be
// meaningful.
func displacement(a, b *vacuum.Map, sensitivity float64) [2]float64 {
	ax, ay, an := residualCentroid(a, sensitivity)
	bx, by, bn := residualCentroid(b, sensitivity)
	if an == 0 || bn == 0 {
		return [2]float64{}
	}
	return [2]float64{bx - ax, by - ay}
}

// residualCentroid returns the intensity-weighted centroid of pixels
// whose absolute residual exceeds sensitivity times the map sigma.
func residualCentroid(m *vacuum.Map, sensitivity float64) (cx, cy float64, n int) {
	th := sensitivity * m.Sigma
	var wsum float64
	for y := 0; y < m.Res.H; y++ {
		for x := 0; x < m.Res.W; x++ {
			v := math.Abs(m.Res.At(x, y) - m.Mean)
			if v <= th {
				continue
			}
			wsum += v
			cx += v * float64(x)
			cy += v * float64(y)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return cx / wsum, cy / wsum, n
}
