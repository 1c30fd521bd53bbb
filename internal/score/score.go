// Public domain.

// Package score clusters difference records into discrete anomaly
// candidates with confidence and motion/variability classification.
package score

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/skysift/vacuumscan/internal/tempdiff"
	"github.com/skysift/vacuumscan/sky"
)

// Class tags the residual pattern of a candidate.
type Class int

const (
	StaticResidual Class = iota
	Moving
	Variable
)

func (c Class) String() string {
	switch c {
	case StaticResidual:
		return "static-residual"
	case Moving:
		return "moving"
	case Variable:
		return "variable"
	}
	return "unknown"
}

// Candidate is a scored, classified residual signal not attributable to
// cataloged sources.  Immutable once emitted.
type Candidate struct {
	ID     string
	Region string
	Pos    sky.Pos

	FirstEpoch, LastEpoch time.Time

	Confidence float64
	Class      Class

	// Displacement is the pixel offset over the epoch span.
	// Zero unless Class is Moving.
	Displacement [2]float64

	PeakDelta  float64 // peak |delta| among supporting clusters
	Noise      float64 // pooled background sigma at peak detection
	EpochPairs int     // corroborating difference records
	Promising  bool    // peak exceeded the promote threshold

	// Records are the supporting difference records, evidence for the
	// report exporter.
	Records []*tempdiff.Record
}

// Span is the observed epoch span.
func (c Candidate) Span() time.Duration {
	return c.LastEpoch.Sub(c.FirstEpoch)
}

// Key identifies a candidate by approximate sky position and epoch
// span.  Candidates sharing a key are duplicates across overlapping
// scans and must not be emitted twice in one run.
func (c Candidate) Key() string {
	// quantize to about ten arc seconds
	const q = 4.85e-5
	return fmt.Sprintf("%d:%d:%d:%d",
		int64(math.Round(c.Pos.RA/q)), int64(math.Round(c.Pos.Dec/q)),
		c.FirstEpoch.Unix(), c.LastEpoch.Unix())
}

// grouping limits, in pixels on the shared region grid
const (
	matchRadiusPx  = 6  // same-source association across epoch pairs
	maxDipoleSepPx = 32 // positive/negative pairing within one record
)

// Scorer ranks difference records into candidates.
type Scorer struct {
	// Sensitivity scales each record's background sigma into its
	// cluster threshold.
	Sensitivity float64

	// PromoteFactor flags clusters whose peak exceeds PromoteFactor
	// times the threshold as promising.
	PromoteFactor float64

	// MinDisplacementPx separates the moving classification from the
	// zero-offset classes.
	MinDisplacementPx float64

	Log *zap.Logger
}

// track is a group of clusters attributed to one source: either a
// dipole within a single record (a source that moved between the two
// epochs) or same-position clusters across records.
type track struct {
	members []*cluster
	moving  bool
	disp    [2]float64 // pixel offset over the track's span
	cx, cy  float64    // latest centroid
}

// Score clusters the records' significant deltas, groups them across
// epoch pairs, and emits the ranked candidate list for one region,
// highest confidence first.  Deterministic for identical input.
func (s Scorer) Score(region string, recs []*tempdiff.Record) []Candidate {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	var clusters []*cluster
	for _, rec := range recs {
		th := s.Sensitivity * rec.Sigma
		clusters = append(clusters, findClusters(rec, th)...)
	}
	if len(clusters) == 0 {
		return nil
	}

	tracks := s.pairDipoles(clusters)
	tracks = s.groupAcrossRecords(tracks)

	seen := make(map[string]bool)
	var out []Candidate
	for _, t := range tracks {
		c := s.candidate(region, t)
		if seen[c.Key()] {
			log.Debug("duplicate candidate suppressed",
				zap.String("region", region), zap.String("key", c.Key()))
			continue
		}
		seen[c.Key()] = true
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Span() != b.Span() {
			return a.Span() > b.Span()
		}
		if !a.FirstEpoch.Equal(b.FirstEpoch) {
			return a.FirstEpoch.Before(b.FirstEpoch)
		}
		return a.Key() < b.Key()
	})
	for i := range out {
		out[i].ID = fmt.Sprintf("%s-%02d", region, i+1)
	}
	return out
}

// pairDipoles turns each record's clusters into single-record tracks.
// A positive cluster paired with a nearby negative cluster is one
// source that moved between the record's two epochs.
func (s Scorer) pairDipoles(clusters []*cluster) []*track {
	used := make(map[*cluster]bool)
	var tracks []*track

	for _, pc := range clusters {
		if !pc.positive() || used[pc] {
			continue
		}
		// nearest unused negative cluster from the same record
		var best *cluster
		bestD := math.Inf(1)
		for _, nc := range clusters {
			if nc.positive() || used[nc] || nc.rec != pc.rec {
				continue
			}
			if d := pxDist(pc.cx, pc.cy, nc.cx, nc.cy); d < bestD {
				best, bestD = nc, d
			}
		}
		if best != nil && bestD >= s.MinDisplacementPx && bestD <= maxDipoleSepPx {
			used[pc] = true
			used[best] = true
			tracks = append(tracks, &track{
				members: []*cluster{best, pc},
				moving:  true,
				disp:    [2]float64{pc.cx - best.cx, pc.cy - best.cy},
				cx:      pc.cx,
				cy:      pc.cy,
			})
		}
	}
	for _, c := range clusters {
		if !used[c] {
			tracks = append(tracks, &track{
				members: []*cluster{c},
				cx:      c.cx,
				cy:      c.cy,
			})
		}
	}
	return tracks
}

// groupAcrossRecords merges tracks from different records that refer to
// the same source position.  Moving tracks tolerate a gap up to their
// own displacement, stationary ones the fixed match radius.
func (s Scorer) groupAcrossRecords(tracks []*track) []*track {
	var groups []*track
	for _, t := range tracks {
		merged := false
		for _, g := range groups {
			limit := float64(matchRadiusPx)
			if g.moving || t.moving {
				limit = math.Max(limit, 2*math.Hypot(g.disp[0], g.disp[1]))
				limit = math.Max(limit, 2*math.Hypot(t.disp[0], t.disp[1]))
			}
			if pxDist(g.cx, g.cy, t.cx, t.cy) <= limit {
				g.members = append(g.members, t.members...)
				g.moving = g.moving || t.moving
				g.disp[0] += t.disp[0]
				g.disp[1] += t.disp[1]
				g.cx, g.cy = t.cx, t.cy
				merged = true
				break
			}
		}
		if !merged {
			cp := *t
			groups = append(groups, &cp)
		}
	}
	return groups
}

// candidate builds the scored candidate for one track.
func (s Scorer) candidate(region string, t *track) Candidate {
	recs := make(map[*tempdiff.Record]bool)
	var first, last time.Time
	var peak, noise float64
	var poss []sky.Pos
	for _, m := range t.members {
		recs[m.rec] = true
		a, b := m.rec.A.Time, m.rec.B.Time
		if first.IsZero() || a.Before(first) {
			first = a
		}
		if b.After(last) {
			last = b
		}
		if m.peak > peak {
			peak = m.peak
			noise = m.rec.Sigma
		}
		poss = append(poss, m.pos)
	}
	pairs := len(recs)

	cls, disp := s.classify(t, pairs)

	// a flat-background record pools zero sigma; score on the raw
	// peak rather than emitting an infinite confidence
	snr := peak
	if noise > 0 {
		snr /= noise
	}
	consistency := 1.0
	if cls != Moving && len(t.members) > 1 {
		consistency = 1 / (1 + centroidScatter(t.members))
	}
	conf := snr / s.Sensitivity * (1 + .5*float64(pairs-1)) * consistency

	var evidence []*tempdiff.Record
	for r := range recs {
		evidence = append(evidence, r)
	}
	sort.Slice(evidence, func(i, j int) bool {
		return evidence[i].A.MJD < evidence[j].A.MJD
	})

	return Candidate{
		Region:       region,
		Pos:          sky.Centroid(poss),
		FirstEpoch:   first,
		LastEpoch:    last,
		Confidence:   conf,
		Class:        cls,
		Displacement: disp,
		PeakDelta:    peak,
		Noise:        noise,
		EpochPairs:   pairs,
		Promising:    snr > s.PromoteFactor*s.Sensitivity,
		Records:      evidence,
	}
}

// classify decides moving / variable / static-residual for a track.
func (s Scorer) classify(t *track, pairs int) (Class, [2]float64) {
	if t.moving {
		return Moving, t.disp
	}
	if pairs >= 2 {
		// multiple epoch pairs at one position: fit centroid drift
		// against epoch; a significant slope still means motion,
		// otherwise the source is varying in place.
		if dx, dy, ok := fitDrift(t.members); ok &&
			math.Hypot(dx, dy) >= s.MinDisplacementPx {
			return Moving, [2]float64{dx, dy}
		}
		return Variable, [2]float64{}
	}
	return StaticResidual, [2]float64{}
}

// fitDrift regresses member centroids against epoch and returns the
// fitted pixel offset over the track's span.  Needs at least three
// distinct epochs.
func fitDrift(members []*cluster) (dx, dy float64, ok bool) {
	var ts, xs, ys []float64
	for _, m := range members {
		ts = append(ts, m.rec.B.MJD)
		xs = append(xs, m.cx)
		ys = append(ys, m.cy)
	}
	if len(ts) < 3 {
		return 0, 0, false
	}
	span := floats.Max(ts) - floats.Min(ts)
	if span == 0 {
		return 0, 0, false
	}
	_, bx := stat.LinearRegression(ts, xs, nil, false)
	_, by := stat.LinearRegression(ts, ys, nil, false)
	return bx * span, by * span, true
}

// centroidScatter is the rms distance of member centroids from their
// mean position, in pixels.
func centroidScatter(members []*cluster) float64 {
	var mx, my float64
	for _, m := range members {
		mx += m.cx
		my += m.cy
	}
	n := float64(len(members))
	mx /= n
	my /= n
	var ss float64
	for _, m := range members {
		d := pxDist(mx, my, m.cx, m.cy)
		ss += d * d
	}
	return math.Sqrt(ss / n)
}
