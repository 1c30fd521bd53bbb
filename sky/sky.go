// Public domain.

// Package sky, small-angle geometry on the celestial sphere.
package sky

import (
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

var twoPi = 2 * math.Pi

// Pos is an equatorial position.  Both components are in radians.
type Pos struct {
	RA, Dec float64
}

// FromDeg constructs a position from right ascension and declination
// in degrees.
func FromDeg(raDeg, decDeg float64) Pos {
	return Pos{
		RA:  float64(unit.AngleFromDeg(raDeg)),
		Dec: float64(unit.AngleFromDeg(decDeg)),
	}
}

// RADeg returns right ascension in degrees, normalized to [0, 360).
func (p Pos) RADeg() float64 {
	d := math.Mod(p.RA*180/math.Pi, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// DecDeg returns declination in degrees.
func (p Pos) DecDeg() float64 { return p.Dec * 180 / math.Pi }

// Cart returns the unit vector for p in equatorial Cartesian coordinates.
func (p Pos) Cart() coord.Cart {
	sdec, cdec := math.Sincos(p.Dec)
	sra, cra := math.Sincos(p.RA)
	return coord.Cart{X: cra * cdec, Y: sra * cdec, Z: sdec}
}

// Sep returns the angular separation between two positions.
// Computed from the chord length, stable for small separations.
func Sep(a, b Pos) unit.Angle {
	ca := a.Cart()
	cb := b.Cart()
	var d coord.Cart
	d.Sub(&ca, &cb)
	return unit.Angle(2 * math.Asin(.5*math.Sqrt(d.Square())))
}

// Within reports whether p falls within radius of center.
func (p Pos) Within(center Pos, radius unit.Angle) bool {
	return float64(Sep(p, center)) <= float64(radius)
}

// Offset returns the tangent-plane offset from a to b in radians:
// the east component (ΔRA·cos δ) and the north component (Δδ).
func Offset(a, b Pos) (east, north float64) {
	dra := math.Remainder(b.RA-a.RA, twoPi)
	return dra * math.Cos(a.Dec), b.Dec - a.Dec
}

// Add applies a tangent-plane offset in radians to p.
func (p Pos) Add(east, north float64) Pos {
	dec := p.Dec + north
	ra := p.RA
	if c := math.Cos(p.Dec); c > 1e-12 {
		ra = math.Mod(ra+east/c, twoPi)
		if ra < 0 {
			ra += twoPi
		}
	}
	return Pos{RA: ra, Dec: dec}
}

// Centroid returns the spherical centroid of positions, which are
// expected to lie close together on the sky.  The zero Pos is returned
// for an empty slice.
func Centroid(ps []Pos) Pos {
	if len(ps) == 0 {
		return Pos{}
	}
	var sum coord.Cart
	for _, p := range ps {
		c := p.Cart()
		sum.Add(&sum, &c)
	}
	m := math.Sqrt(sum.Square())
	if m == 0 {
		return ps[0]
	}
	dec := math.Asin(sum.Z / m)
	ra := math.Atan2(sum.Y, sum.X)
	if ra < 0 {
		ra += twoPi
	}
	return Pos{RA: ra, Dec: dec}
}
