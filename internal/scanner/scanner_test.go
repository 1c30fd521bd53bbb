// Public domain.

package scanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/scanner"
	"github.com/skysift/vacuumscan/sky"
)

var testCenter = sky.FromDeg(150, -20)

// testFrame returns a 100x100 frame solved about testCenter with the
// given reference stars.
func testFrame(id string, stars ...sky.Pos) *frame.Frame {
	return &frame.Frame{
		ID:   id,
		Time: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Pix:  frame.NewGrid(100, 100),
		Solution: &frame.PlateSolution{
			Center:   testCenter,
			RefX:     50,
			RefY:     50,
			Scale:    unit.AngleFromSec(1),
			RefStars: stars,
		},
	}
}

// starsAt returns n reference stars offset east of testCenter by
// arcmin.
func starsAt(n int, arcmin float64) []sky.Pos {
	var ss []sky.Pos
	for i := 0; i < n; i++ {
		ss = append(ss, testCenter.Add(float64(unit.AngleFromMin(arcmin)), 0))
	}
	return ss
}

func newScanner(nominalArcmin, growth, maxArcmin float64, maxExpand int) *scanner.Scanner {
	return &scanner.Scanner{
		Resolver:  scanner.Resolver{MinRefStars: 3},
		Nominal:   unit.AngleFromMin(nominalArcmin),
		Growth:    growth,
		MaxRadius: unit.AngleFromMin(maxArcmin),
		MaxExpand: maxExpand,
	}
}

func TestResolveFailureReasons(t *testing.T) {
	r := scanner.Resolver{MinRefStars: 3}
	rg := scanner.Region{Center: testCenter, Radius: unit.AngleFromMin(4)}

	for _, tc := range []struct {
		name   string
		frame  *frame.Frame
		reason string
	}{
		{"no solution", &frame.Frame{ID: "f", Pix: frame.NewGrid(10, 10)},
			"no coordinate solution"},
		{"malformed", func() *frame.Frame {
			f := testFrame("f", starsAt(3, 1)...)
			f.Solution.Scale = 0
			return f
		}(), "malformed coordinate metadata"},
		{"out of bounds", func() *frame.Frame {
			f := testFrame("f", starsAt(3, 1)...)
			f.Solution.RefX = -500
			return f
		}(), "region outside frame bounds"},
		{"too few stars", testFrame("f", starsAt(2, 1)...),
			"insufficient reference stars"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.frame, rg)
			require.Error(t, err)
			var rf *scanner.ResolutionFailure
			require.True(t, errors.As(err, &rf))
			assert.Contains(t, rf.Reason, tc.reason)
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := scanner.Resolver{MinRefStars: 3}
	rg := scanner.Region{Center: testCenter, Radius: unit.AngleFromMin(4)}
	f := testFrame("f", starsAt(3, 1)...)
	s1, err1 := r.Resolve(f, rg)
	s2, err2 := r.Resolve(f, rg)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Same(t, s1, s2)
}

func TestScanResolvesAtNominal(t *testing.T) {
	s := newScanner(4, 2, 32, 8)
	frames := []*frame.Frame{
		testFrame("f1", starsAt(3, 1)...),
		testFrame("f2", starsAt(3, 1)...),
	}
	res, err := s.Scan(context.Background(), testCenter, frames, 2)
	require.NoError(t, err)
	assert.Equal(t, scanner.Resolved, res.State)
	assert.Equal(t, 0, res.Region.Expansions)
	assert.Len(t, res.Mappings, 2)
}

func TestScanExpandsUntilResolved(t *testing.T) {
	// reference stars sit six arcmin out: invisible at the nominal
	// four arcmin radius, resolved after one expansion to eight
	s := newScanner(4, 2, 32, 8)
	frames := []*frame.Frame{
		testFrame("f1", starsAt(3, 6)...),
		testFrame("f2", starsAt(3, 6)...),
	}
	res, err := s.Scan(context.Background(), testCenter, frames, 2)
	require.NoError(t, err)
	assert.Equal(t, scanner.Resolved, res.State)
	assert.Equal(t, 1, res.Region.Expansions)
}

func TestScanSettlesBelowTarget(t *testing.T) {
	// one good frame, one with corrupt metadata: the session expands
	// to its bound chasing a second mapping, then settles with the one
	// it has
	s := newScanner(4, 2, 32, 8)
	frames := []*frame.Frame{
		testFrame("good", starsAt(3, 1)...),
		{ID: "bad", Pix: frame.NewGrid(10, 10)},
	}
	res, err := s.Scan(context.Background(), testCenter, frames, 2)
	require.NoError(t, err)
	assert.Equal(t, scanner.Resolved, res.State)
	require.Len(t, res.Mappings, 1)
	assert.Contains(t, res.Mappings, "good")
	assert.Equal(t, 3, res.Region.Expansions)
}

func TestScanExhausted(t *testing.T) {
	// every frame has corrupt coordinate metadata; radius expands
	// 1 -> 2 -> 4 -> 8 and the session exhausts
	s := newScanner(1, 2, 8, 8)
	frames := []*frame.Frame{
		{ID: "c1", Pix: frame.NewGrid(10, 10)},
		{ID: "c2", Pix: frame.NewGrid(10, 10)},
	}
	res, err := s.Scan(context.Background(), testCenter, frames, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scanner.ErrScanExhausted))
	assert.Equal(t, scanner.Exhausted, res.State)
	assert.Equal(t, 3, res.Region.Expansions)
	assert.InDelta(t, float64(unit.AngleFromMin(8)), float64(res.Region.Radius), 1e-12)
}

func TestScanTermination(t *testing.T) {
	// never resolves, generous radius bound: the expansion cap alone
	// must terminate the session
	s := newScanner(1, 1.5, 1e9, 10)
	frames := []*frame.Frame{{ID: "c", Pix: frame.NewGrid(10, 10)}}
	res, err := s.Scan(context.Background(), testCenter, frames, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scanner.ErrScanExhausted))
	assert.LessOrEqual(t, res.Region.Expansions, 10)
}

func TestScanCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newScanner(4, 2, 32, 8)
	_, err := s.Scan(ctx, testCenter, []*frame.Frame{testFrame("f")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
