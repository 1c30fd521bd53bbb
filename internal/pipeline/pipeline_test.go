// Public domain.

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skysift/vacuumscan/catalog"
	"github.com/skysift/vacuumscan/config"
	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/pipeline"
	"github.com/skysift/vacuumscan/internal/score"
	"github.com/skysift/vacuumscan/sky"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var baseEpoch = time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	c := config.Default()
	c.BackgroundSigmaPx = 0 // keep known-source subtraction exact
	c.Workers = 4
	c.Attribution = "observatory X"
	return c
}

func solutionAt(center sky.Pos) *frame.PlateSolution {
	arcmin := float64(unit.AngleFromMin(1))
	return &frame.PlateSolution{
		Center: center,
		RefX:   50,
		RefY:   50,
		Scale:  unit.AngleFromSec(1),
		RefStars: []sky.Pos{
			center.Add(arcmin, 0),
			center.Add(-arcmin, 0),
			center.Add(0, arcmin),
		},
	}
}

type spike struct {
	x, y int
	v    float64
}

// testFrame renders a 100x100 frame at the given epoch day: the catalog
// entries plus any uncataloged spikes.
func testFrame(t *testing.T, id string, center sky.Pos, day int, entries []catalog.Entry, spikes ...spike) *frame.Frame {
	t.Helper()
	sol := solutionAt(center)
	g := frame.NewGrid(100, 100)
	for _, e := range entries {
		x, y := sol.SkyToPix(e.Pos)
		require.NoError(t, e.PSF.Rasterize(g, x, y, e.Flux(), sol.Scale))
	}
	for _, s := range spikes {
		g.AddAt(s.x, s.y, s.v)
	}
	return &frame.Frame{
		ID:       id,
		Time:     baseEpoch.AddDate(0, 0, day),
		Pix:      g,
		Solution: sol,
	}
}

// testFixture builds the catalog and four regions: one hosting a
// residual that appears at the second epoch and holds, one hosting a
// source moving between epochs, one whose frames all carry corrupt
// coordinate metadata, and one with a single usable epoch.
func testFixture(t *testing.T) (*catalog.Catalog, []pipeline.RegionSet) {
	t.Helper()
	staticCenter := sky.FromDeg(150, -20)
	movingCenter := sky.FromDeg(151, -20)

	star := catalog.Entry{
		Desig: "SRC-1",
		Pos:   staticCenter,
		VMag:  20,
		PSF:   catalog.PSF{Sigma: unit.AngleFromSec(2)},
	}
	cat := &catalog.Catalog{Entries: []catalog.Entry{star}}
	stars := []catalog.Entry{star}

	appeared := spike{52, 51, 50}
	return cat, []pipeline.RegionSet{
		{
			ID:     "RA",
			Center: staticCenter,
			Frames: []*frame.Frame{
				testFrame(t, "a0", staticCenter, 0, stars),
				testFrame(t, "a1", staticCenter, 1, stars, appeared),
				testFrame(t, "a2", staticCenter, 2, stars, appeared),
			},
		},
		{
			ID:     "RB",
			Center: movingCenter,
			Frames: []*frame.Frame{
				testFrame(t, "b0", movingCenter, 0, nil, spike{52, 51, 50}),
				testFrame(t, "b1", movingCenter, 1, nil, spike{58, 54, 50}),
				testFrame(t, "b2", movingCenter, 2, nil, spike{58, 54, 50}),
			},
		},
		{
			ID:     "RC",
			Center: sky.FromDeg(152, -20),
			Frames: []*frame.Frame{
				{ID: "c0", Time: baseEpoch, Pix: frame.NewGrid(100, 100)},
				{ID: "c1", Time: baseEpoch.AddDate(0, 0, 1), Pix: frame.NewGrid(100, 100)},
			},
		},
		{
			ID:     "RD",
			Center: sky.FromDeg(153, -20),
			Frames: []*frame.Frame{
				testFrame(t, "d0", sky.FromDeg(153, -20), 0, nil),
				{ID: "d1", Time: baseEpoch.AddDate(0, 0, 1), Pix: frame.NewGrid(100, 100)},
			},
		},
	}
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	cat, _ := testFixture(t)
	p, err := pipeline.New(testConfig(), cat, nil)
	require.NoError(t, err)
	return p
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.GrowthFactor = 1
	_, err := pipeline.New(cfg, &catalog.Catalog{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}

func TestRun(t *testing.T) {
	p := newPipeline(t)
	_, regions := testFixture(t)

	rep, err := p.Run(context.Background(), regions)
	require.NoError(t, err)

	require.Len(t, rep.Candidates, 2)
	first, second := rep.Candidates[0], rep.Candidates[1]

	// the held residual scores higher: its detection pair pools less
	// background noise
	assert.Equal(t, "RA-01", first.ID)
	assert.Equal(t, score.StaticResidual, first.Class)
	assert.Equal(t, [2]float64{}, first.Displacement)
	assert.True(t, first.Promising)
	staticCenter := sky.FromDeg(150, -20)
	assert.Less(t, float64(sky.Sep(first.Pos, staticCenter)),
		float64(unit.AngleFromSec(10)))

	assert.Equal(t, "RB-01", second.ID)
	assert.Equal(t, score.Moving, second.Class)
	assert.InDelta(t, 6, second.Displacement[0], 1e-9)
	assert.InDelta(t, 3, second.Displacement[1], 1e-9)
	assert.GreaterOrEqual(t, first.Confidence, second.Confidence)

	// failed regions are diagnosed, never dropped silently
	require.Len(t, rep.Skipped, 2)
	assert.Equal(t, "RC", rep.Skipped[0].Region)
	assert.Equal(t, pipeline.KindScanExhausted, rep.Skipped[0].Kind)
	assert.NotEmpty(t, rep.Skipped[0].Reason)
	assert.Equal(t, "RD", rep.Skipped[1].Region)
	assert.Equal(t, pipeline.KindInsufficientEpochs, rep.Skipped[1].Kind)

	assert.Equal(t, "observatory X", rep.Stamp.Attribution)
	assert.NotEmpty(t, rep.Stamp.RunID)
	assert.False(t, rep.Stamp.Generated.IsZero())
}

func TestRunLeavesFramesIntact(t *testing.T) {
	p := newPipeline(t)
	_, regions := testFixture(t)
	before := regions[0].Frames[1].Pix.Clone()

	_, err := p.Run(context.Background(), regions)
	require.NoError(t, err)
	for _, f := range regions[0].Frames {
		require.NotNil(t, f.Pix)
	}
	assert.Equal(t, before.Pix, regions[0].Frames[1].Pix.Pix)
}

func TestRunRepeatable(t *testing.T) {
	p := newPipeline(t)
	_, regions := testFixture(t)

	// same regions slice both times: frames are inputs, not fuel
	rep1, err := p.Run(context.Background(), regions)
	require.NoError(t, err)
	rep2, err := p.Run(context.Background(), regions)
	require.NoError(t, err)

	require.Equal(t, len(rep1.Candidates), len(rep2.Candidates))
	for i := range rep1.Candidates {
		assert.Equal(t, rep1.Candidates[i].ID, rep2.Candidates[i].ID)
		assert.Equal(t, rep1.Candidates[i].Class, rep2.Candidates[i].Class)
		assert.Equal(t, rep1.Candidates[i].Confidence, rep2.Candidates[i].Confidence)
		assert.Equal(t, rep1.Candidates[i].Key(), rep2.Candidates[i].Key())
	}
	assert.Equal(t, rep1.Skipped, rep2.Skipped)
	// each run gets its own stamp
	assert.NotEqual(t, rep1.Stamp.RunID, rep2.Stamp.RunID)
}

func TestRunDedupsOverlappingRegions(t *testing.T) {
	p := newPipeline(t)
	_, regions := testFixture(t)
	_, again := testFixture(t)
	// the same sky patch scanned under a second region ID
	overlap := again[0]
	overlap.ID = "RX"
	regions = append(regions[:1], overlap)

	rep, err := p.Run(context.Background(), regions)
	require.NoError(t, err)
	require.Len(t, rep.Candidates, 1)
	assert.Equal(t, score.StaticResidual, rep.Candidates[0].Class)
}

func TestRunCancelled(t *testing.T) {
	p := newPipeline(t)
	_, regions := testFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, regions)
	assert.ErrorIs(t, err, context.Canceled)
}
