// Public domain.

package tempdiff

import (
	"math"

	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/vacuum"
)

// scaleTol is the relative pixel-scale difference below which two maps
// are treated as sharing a grid and differenced directly.
const scaleTol = 1e-9

// subtract computes b − a on a's pixel grid.  When the grids match in
// shape and scale the subtraction is direct; otherwise b is resampled
// onto a's grid through the shared sky basis.
func subtract(a, b *vacuum.Map) *frame.Grid {
	if sameGrid(a, b) {
		d := frame.NewGrid(a.Res.W, a.Res.H)
		for i := range d.Pix {
			d.Pix[i] = b.Res.Pix[i] - a.Res.Pix[i]
		}
		return d
	}
	return resampleSubtract(a, b)
}

func sameGrid(a, b *vacuum.Map) bool {
	if a.Res.W != b.Res.W || a.Res.H != b.Res.H {
		return false
	}
	sa := float64(a.Sol.Scale)
	sb := float64(b.Sol.Scale)
	if math.Abs(sa-sb) > scaleTol*sa {
		return false
	}
	// identical mapping of the reference pixel
	ax, ay := a.Sol.SkyToPix(a.Basis.Center)
	bx, by := b.Sol.SkyToPix(a.Basis.Center)
	return math.Abs(ax-bx) < 1e-6 && math.Abs(ay-by) < 1e-6
}

// resampleSubtract maps each of a's pixels through the sky to b's grid
// and interpolates bilinearly.
func resampleSubtract(a, b *vacuum.Map) *frame.Grid {
	d := frame.NewGrid(a.Res.W, a.Res.H)
	for y := 0; y < a.Res.H; y++ {
		for x := 0; x < a.Res.W; x++ {
			p := a.Sol.PixToSky(float64(x), float64(y))
			bx, by := b.Sol.SkyToPix(p)
			d.Set(x, y, b.Res.Sample(bx, by)-a.Res.At(x, y))
		}
	}
	return d
}
