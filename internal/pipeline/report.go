// Public domain.

package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/skysift/vacuumscan/internal/score"
)

// Skip kinds reported in run diagnostics.
const (
	KindScanExhausted      = "ScanExhausted"
	KindInsufficientEpochs = "InsufficientEpochs"
)

// Skip records a region the run had to leave out, and why.
type Skip struct {
	Region string
	Kind   string
	Reason string
}

// Stamp is the immutable authorship/priority metadata attached to a
// report batch.  A value carried on the batch, never process-wide
// state.
type Stamp struct {
	Attribution string
	RunID       string
	Generated   time.Time
}

// Report is the batch handed to the report exporter: the ranked
// candidate list plus the parallel skipped-region diagnostics.
type Report struct {
	Stamp      Stamp
	Candidates []score.Candidate
	Skipped    []Skip
}

func newReport(attribution string, cands []score.Candidate, skipped []Skip) *Report {
	return &Report{
		Stamp: Stamp{
			Attribution: attribution,
			RunID:       uuid.NewString(),
			Generated:   time.Now().UTC(),
		},
		Candidates: cands,
		Skipped:    skipped,
	}
}
