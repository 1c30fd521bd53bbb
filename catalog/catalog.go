// Public domain.

// Package catalog holds the in-memory model of known light sources
// overlapping a field of view, and its gob file representation.
package catalog

import (
	"encoding/gob"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"

	"github.com/skysift/vacuumscan/sky"
)

// ZeroPoint is the magnitude zero point used when converting catalog
// magnitudes to pixel flux.  Frames from the store are assumed to be
// calibrated to the same zero point.
const ZeroPoint = 25

// Entry is one known light source.  Entries are immutable once loaded
// and shared read-only across all frames covering their position.
type Entry struct {
	Desig string
	Pos   sky.Pos
	VMag  float64
	PSF   PSF
}

// Flux returns the total flux of the entry in grid intensity units.
func (e Entry) Flux() float64 {
	return math.Pow(10, -.4*(e.VMag-ZeroPoint))
}

// Catalog is a read-only set of entries.
type Catalog struct {
	Entries []Entry
}

// InRegion returns the entries within radius+margin of center.  The
// margin avoids edge-subtraction artifacts from sources just outside
// the region whose profiles still spill into it.
func (c *Catalog) InRegion(center sky.Pos, radius, margin unit.Angle) []Entry {
	limit := unit.Angle(float64(radius) + float64(margin))
	var in []Entry
	for _, e := range c.Entries {
		if e.Pos.Within(center, limit) {
			in = append(in, e)
		}
	}
	return in
}

// WriteFile stores the catalog as a gob file.
func (c *Catalog) WriteFile(fn string) error {
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrap(err, "catalog")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(c); err != nil {
		return errors.Wrap(err, "catalog: encode")
	}
	return nil
}

// ReadFile loads a catalog written by WriteFile.
func ReadFile(fn string) (*Catalog, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "catalog")
	}
	defer f.Close()
	var c Catalog
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "catalog: decode %s", fn)
	}
	return &c, nil
}
