// Public domain.

package frame

import "math"

// Grid is a W×H intensity raster stored row-major.
type Grid struct {
	W, H int
	Pix  []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the intensity at pixel (x, y).
func (g *Grid) At(x, y int) float64 { return g.Pix[y*g.W+x] }

// Set stores v at pixel (x, y).
func (g *Grid) Set(x, y int, v float64) { g.Pix[y*g.W+x] = v }

// AddAt accumulates v at pixel (x, y).
func (g *Grid) AddAt(x, y int, v float64) { g.Pix[y*g.W+x] += v }

// In reports whether (x, y) is a valid pixel index.
func (g *Grid) In(x, y int) bool {
	return x >= 0 && x < g.W && y >= 0 && y < g.H
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := &Grid{W: g.W, H: g.H, Pix: make([]float64, len(g.Pix))}
	copy(c.Pix, g.Pix)
	return c
}

// Sample returns the bilinearly interpolated intensity at the fractional
// pixel position (x, y).  Positions outside the grid clamp to the edge.
func (g *Grid) Sample(x, y float64) float64 {
	x = math.Min(math.Max(x, 0), float64(g.W-1))
	y = math.Min(math.Max(y, 0), float64(g.H-1))
	x0 := int(x)
	y0 := int(y)
	x1 := x0
	if x0 < g.W-1 {
		x1++
	}
	y1 := y0
	if y0 < g.H-1 {
		y1++
	}
	fx := x - float64(x0)
	fy := y - float64(y0)
	top := g.At(x0, y0)*(1-fx) + g.At(x1, y0)*fx
	bot := g.At(x0, y1)*(1-fx) + g.At(x1, y1)*fx
	return top*(1-fy) + bot*fy
}

// Smooth returns a gaussian-smoothed copy of g using a separable kernel
// truncated at three sigma, with edge clamping.  sigma <= 0 returns a
// plain copy.
func (g *Grid) Smooth(sigma float64) *Grid {
	if sigma <= 0 {
		return g.Clone()
	}
	r := int(math.Ceil(3 * sigma))
	k := make([]float64, 2*r+1)
	var sum float64
	for i := range k {
		d := float64(i - r)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v >= hi {
			return hi - 1
		}
		return v
	}

	// horizontal pass
	tmp := NewGrid(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var acc float64
			for i, kv := range k {
				acc += kv * g.At(clamp(x+i-r, g.W), y)
			}
			tmp.Set(x, y, acc)
		}
	}
	// vertical pass
	out := NewGrid(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var acc float64
			for i, kv := range k {
				acc += kv * tmp.At(x, clamp(y+i-r, g.H))
			}
			out.Set(x, y, acc)
		}
	}
	return out
}
