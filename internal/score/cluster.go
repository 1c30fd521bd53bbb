// Public domain.

package score

import (
	"math"

	"github.com/skysift/vacuumscan/internal/tempdiff"
	"github.com/skysift/vacuumscan/sky"
)

// cluster is a connected group of significant delta pixels in one
// difference record.
type cluster struct {
	rec    *tempdiff.Record
	pixels int
	peak   float64 // max |delta|
	sum    float64 // Σ |delta|
	sumPos float64 // Σ delta over positive pixels
	sumNeg float64 // Σ |delta| over negative pixels
	cx, cy float64 // |delta|-weighted centroid, A-grid pixels
	pos    sky.Pos
}

// positive reports whether the cluster is dominated by brightening.
func (c *cluster) positive() bool { return c.sumPos >= c.sumNeg }

func pxDist(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}

// findClusters extracts 8-connected clusters of pixels whose absolute
// delta exceeds threshold.  Scan order is fixed, so identical records
// always yield identical clusters.
func findClusters(rec *tempdiff.Record, threshold float64) []*cluster {
	d := rec.Delta
	visited := make([]bool, len(d.Pix))
	var out []*cluster

	for start, v := range d.Pix {
		if visited[start] || math.Abs(v) <= threshold {
			continue
		}
		c := &cluster{rec: rec}
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			dv := d.Pix[i]
			adv := math.Abs(dv)

			c.pixels++
			c.sum += adv
			if dv > 0 {
				c.sumPos += dv
			} else {
				c.sumNeg += adv
			}
			if adv > c.peak {
				c.peak = adv
			}
			x := i % d.W
			y := i / d.W
			c.cx += adv * float64(x)
			c.cy += adv * float64(y)

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if !d.In(nx, ny) {
						continue
					}
					n := ny*d.W + nx
					if visited[n] || math.Abs(d.Pix[n]) <= threshold {
						continue
					}
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		c.cx /= c.sum
		c.cy /= c.sum
		c.pos = rec.A.Sol.PixToSky(c.cx, c.cy)
		out = append(out, c)
	}
	return out
}
