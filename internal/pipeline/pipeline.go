// Public domain.

// Package pipeline wires the anomaly-detection stages into a run:
// scan sessions per region, parallel vacuum filtering per frame, a join
// before differencing and scoring, and a ranked report with diagnostics
// for every region that had to be skipped.
package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skysift/vacuumscan/catalog"
	"github.com/skysift/vacuumscan/config"
	"github.com/skysift/vacuumscan/frame"
	"github.com/skysift/vacuumscan/internal/scanner"
	"github.com/skysift/vacuumscan/internal/score"
	"github.com/skysift/vacuumscan/internal/tempdiff"
	"github.com/skysift/vacuumscan/internal/vacuum"
	"github.com/skysift/vacuumscan/sky"
)

// RegionSet is the frame group for one sky region, as supplied by the
// frame store adapter.  Frames are ordered by epoch.
type RegionSet struct {
	ID     string
	Center sky.Pos
	Frames []*frame.Frame
}

// Pipeline runs the full anomaly-detection flow.  Construct with New;
// a Pipeline is immutable and safe for concurrent runs.
type Pipeline struct {
	cfg *config.Config
	cat *catalog.Catalog
	log *zap.Logger

	scan   *scanner.Scanner
	filter vacuum.Filter
	differ tempdiff.Differ
	scorer score.Scorer
}

// New validates cfg and builds a pipeline over the given catalog.
func New(cfg *config.Config, cat *catalog.Catalog, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg: cfg,
		cat: cat,
		log: log,
		scan: &scanner.Scanner{
			Resolver:  scanner.Resolver{MinRefStars: cfg.MinRefStars},
			Nominal:   cfg.NominalRadius(),
			Growth:    cfg.GrowthFactor,
			MaxRadius: cfg.MaxRadius(),
			MaxExpand: cfg.MaxExpansions,
			Log:       log,
		},
		filter: vacuum.Filter{
			BackgroundSigma: cfg.BackgroundSigmaPx,
			Log:             log,
		},
		differ: tempdiff.Differ{
			MinEpochs:   cfg.MinEpochs,
			Sensitivity: cfg.NoiseSensitivity,
			Log:         log,
		},
		scorer: score.Scorer{
			Sensitivity:       cfg.NoiseSensitivity,
			PromoteFactor:     cfg.PromoteFactor,
			MinDisplacementPx: cfg.MinDisplacementPx,
			Log:               log,
		},
	}, nil
}

// Run processes all regions and returns the ranked report.  A failure
// confined to one region becomes a Skip diagnostic; anomalies found
// elsewhere are never suppressed by it.  Run returns an error only for
// cancellation or a failure that is not local to a region.
func (p *Pipeline) Run(ctx context.Context, regions []RegionSet) (*Report, error) {
	var (
		mu         sync.Mutex
		candidates []score.Candidate
		skipped    []Skip
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, rs := range regions {
		rs := rs
		g.Go(func() error {
			cands, skip, err := p.runRegion(ctx, rs)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			candidates = append(candidates, cands...)
			if skip != nil {
				skipped = append(skipped, *skip)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// rank before dedup so overlapping scans always keep the
	// higher-confidence duplicate, independent of region order
	rank(candidates)
	candidates = dedup(candidates, p.log)
	sort.Slice(skipped, func(i, j int) bool {
		return skipped[i].Region < skipped[j].Region
	})

	p.log.Info("run complete",
		zap.Int("regions", len(regions)),
		zap.Int("candidates", len(candidates)),
		zap.Int("skipped", len(skipped)))
	return newReport(p.cfg.Attribution, candidates, skipped), nil
}

// runRegion takes one region through scan, filter, difference, and
// score.  Recoverable failures are returned as a Skip, not an error.
func (p *Pipeline) runRegion(ctx context.Context, rs RegionSet) ([]score.Candidate, *Skip, error) {
	log := p.log.With(zap.String("region", rs.ID))

	res, err := p.scan.Scan(ctx, rs.Center, rs.Frames, p.cfg.MinEpochs)
	if err != nil {
		if errors.Is(err, scanner.ErrScanExhausted) {
			log.Warn("region skipped", zap.String("kind", KindScanExhausted),
				zap.Error(err))
			return nil, &Skip{rs.ID, KindScanExhausted, err.Error()}, nil
		}
		return nil, nil, err
	}
	log.Debug("region resolved",
		zap.Int("expansions", res.Region.Expansions),
		zap.Int("frames", len(res.Mappings)))

	// vacuum maps, one frame at a time across the worker pool.
	// frames are independent given the read-only catalog; the join
	// below waits for all of them.  frames stay caller-owned and
	// untouched; past Build the pipeline holds no reference to the
	// raw pixels, only the residual maps.
	entries := p.cat.InRegion(res.Region.Center, res.Region.Radius,
		p.cfg.CatalogMargin())
	maps := make([]*vacuum.Map, len(rs.Frames))
	fg, fctx := errgroup.WithContext(ctx)
	fg.SetLimit(p.cfg.Workers)
	for i, f := range rs.Frames {
		sol, ok := res.Mappings[f.ID]
		if !ok {
			continue // frame never resolved at the final radius
		}
		i, f := i, f
		fg.Go(func() error {
			if err := fctx.Err(); err != nil {
				return err
			}
			m, err := p.filter.Build(f, res.Region, sol, entries)
			if err != nil {
				return errors.Wrapf(err, "region %s", rs.ID)
			}
			maps[i] = m
			return nil
		})
	}
	if err := fg.Wait(); err != nil {
		return nil, nil, err
	}

	valid := maps[:0]
	for _, m := range maps {
		if m != nil {
			valid = append(valid, m)
		}
	}

	recs, err := p.differ.Diff(valid)
	if err != nil {
		if errors.Is(err, tempdiff.ErrInsufficientEpochs) {
			log.Warn("region skipped", zap.String("kind", KindInsufficientEpochs),
				zap.Error(err))
			return nil, &Skip{rs.ID, KindInsufficientEpochs, err.Error()}, nil
		}
		return nil, nil, err
	}

	return p.scorer.Score(rs.ID, recs), nil, nil
}

// dedup drops candidates whose position and epoch span duplicate an
// already kept candidate from an overlapping region scan.
func dedup(cands []score.Candidate, log *zap.Logger) []score.Candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		k := c.Key()
		if seen[k] {
			log.Debug("cross-region duplicate suppressed",
				zap.String("id", c.ID), zap.String("key", k))
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// rank orders candidates highest confidence first; ties break to the
// larger epoch span, then the earlier first epoch.
func rank(cands []score.Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Span() != b.Span() {
			return a.Span() > b.Span()
		}
		if !a.FirstEpoch.Equal(b.FirstEpoch) {
			return a.FirstEpoch.Before(b.FirstEpoch)
		}
		return a.ID < b.ID
	})
}
