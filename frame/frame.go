// Public domain.

// Package frame defines imaging frames as supplied by the frame store:
// an intensity grid with a timestamp and a best-effort plate solution.
package frame

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"

	"github.com/skysift/vacuumscan/sky"
)

// Frame is one imaging exposure.  It is owned by the frame store and
// read-only to the pipeline; no stage mutates a frame in place.
type Frame struct {
	ID       string
	Region   string // sky-region grouping key assigned by the frame store
	Time     time.Time
	Exposure time.Duration
	Pix      *Grid

	// Solution is the upstream coordinate solution.  It may be nil or
	// degraded; resolution is the scanner's job.
	Solution *PlateSolution
}

// MJD returns the frame epoch as a modified Julian date.
func (f *Frame) MJD() float64 {
	return julian.TimeToJD(f.Time.UTC()) - 2400000.5
}

// PlateSolution maps between sky positions and pixel positions by a
// tangent-plane gnomonic approximation about a reference pixel.  Fields
// are filled by upstream astrometric tooling and may be degraded or
// malformed.
type PlateSolution struct {
	// Center is the sky position of the reference pixel (RefX, RefY).
	Center     sky.Pos
	RefX, RefY float64

	// Scale is the angular size of one pixel.
	Scale unit.Angle

	// RefStars are the reference stars the upstream solve locked onto.
	// Resolution quality within a scan region is judged by how many of
	// them fall inside it.
	RefStars []sky.Pos
}

// Malformed reports whether the solution carries unusable numbers.
func (s *PlateSolution) Malformed() bool {
	if s == nil {
		return true
	}
	if math.IsNaN(s.Center.RA) || math.IsNaN(s.Center.Dec) {
		return true
	}
	sc := float64(s.Scale)
	return math.IsNaN(sc) || sc <= 0
}

// SkyToPix projects a sky position onto the pixel grid.
// East on the sky maps to +x, north to +y.
func (s *PlateSolution) SkyToPix(p sky.Pos) (x, y float64) {
	east, north := sky.Offset(s.Center, p)
	sc := float64(s.Scale)
	return s.RefX + east/sc, s.RefY + north/sc
}

// PixToSky is the inverse of SkyToPix.
func (s *PlateSolution) PixToSky(x, y float64) sky.Pos {
	sc := float64(s.Scale)
	return s.Center.Add((x-s.RefX)*sc, (y-s.RefY)*sc)
}
