// Public domain.

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"

	"github.com/skysift/vacuumscan/catalog"
	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/pipeline"
	"github.com/skysift/vacuumscan/sky"
)

// The manifest is this command's stand-in for the frame store adapter:
// a JSON description of regions and frames with inline pixel data.
// The pipeline itself never sees this format.

type manifest struct {
	Regions []manifestRegion `json:"regions"`
}

type manifestRegion struct {
	ID           string          `json:"id"`
	CenterRADeg  float64         `json:"center_ra_deg"`
	CenterDecDeg float64         `json:"center_dec_deg"`
	Frames       []manifestFrame `json:"frames"`
}

type manifestFrame struct {
	ID          string            `json:"id"`
	Time        time.Time         `json:"time"`
	ExposureSec float64           `json:"exposure_sec"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Pixels      []float64         `json:"pixels"`
	Solution    *manifestSolution `json:"solution"`
}

type manifestSolution struct {
	RADeg         float64        `json:"ra_deg"`
	DecDeg        float64        `json:"dec_deg"`
	RefX          float64        `json:"ref_x"`
	RefY          float64        `json:"ref_y"`
	ScaleArcsecPx float64        `json:"scale_arcsec_px"`
	RefStars      []manifestStar `json:"ref_stars"`
}

type manifestStar struct {
	RADeg  float64 `json:"ra_deg"`
	DecDeg float64 `json:"dec_deg"`
}

func readManifest(fn string) ([]pipeline.RegionSet, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "manifest")
	}
	defer f.Close()
	var m manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "manifest: decode %s", fn)
	}

	regions := make([]pipeline.RegionSet, 0, len(m.Regions))
	for _, r := range m.Regions {
		rs := pipeline.RegionSet{
			ID:     r.ID,
			Center: sky.FromDeg(r.CenterRADeg, r.CenterDecDeg),
		}
		for _, mf := range r.Frames {
			if len(mf.Pixels) != mf.Width*mf.Height {
				return nil, errors.Newf(
					"manifest: frame %s: %d pixels for %dx%d grid",
					mf.ID, len(mf.Pixels), mf.Width, mf.Height)
			}
			f := &frame.Frame{
				ID:       mf.ID,
				Region:   r.ID,
				Time:     mf.Time,
				Exposure: time.Duration(mf.ExposureSec * float64(time.Second)),
				Pix:      &frame.Grid{W: mf.Width, H: mf.Height, Pix: mf.Pixels},
			}
			if s := mf.Solution; s != nil {
				sol := &frame.PlateSolution{
					Center: sky.FromDeg(s.RADeg, s.DecDeg),
					RefX:   s.RefX,
					RefY:   s.RefY,
					Scale:  unit.AngleFromSec(s.ScaleArcsecPx),
				}
				for _, st := range s.RefStars {
					sol.RefStars = append(sol.RefStars,
						sky.FromDeg(st.RADeg, st.DecDeg))
				}
				f.Solution = sol
			}
			rs.Frames = append(rs.Frames, f)
		}
		regions = append(regions, rs)
	}
	return regions, nil
}

type catalogJSON struct {
	Entries []catalogEntryJSON `json:"entries"`
}

type catalogEntryJSON struct {
	Desig               string  `json:"desig"`
	RADeg               float64 `json:"ra_deg"`
	DecDeg              float64 `json:"dec_deg"`
	VMag                float64 `json:"vmag"`
	PSFSigmaArcsec      float64 `json:"psf_sigma_arcsec"`
	SampleScaleArcsecPx float64 `json:"sample_scale_arcsec_px"`
}

func readCatalogJSON(fn string) (*catalog.Catalog, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "catalog entries")
	}
	defer f.Close()
	var cj catalogJSON
	if err := json.NewDecoder(f).Decode(&cj); err != nil {
		return nil, errors.Wrapf(err, "catalog entries: decode %s", fn)
	}
	cat := &catalog.Catalog{}
	for _, e := range cj.Entries {
		cat.Entries = append(cat.Entries, catalog.Entry{
			Desig: e.Desig,
			Pos:   sky.FromDeg(e.RADeg, e.DecDeg),
			VMag:  e.VMag,
			PSF: catalog.PSF{
				Sigma:       unit.AngleFromSec(e.PSFSigmaArcsec),
				SampleScale: unit.AngleFromSec(e.SampleScaleArcsecPx),
			},
		})
	}
	return cat, nil
}
