// Package screening wires extraction, matching, and the advisory
// annotators into the single pipeline both the CLI and the HTTP API run.
package screening

import (
	"context"

	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/eligibility"
	"github.com/oncomatch/trial-screener/internal/extract"
	"github.com/oncomatch/trial-screener/internal/geo"
	"github.com/oncomatch/trial-screener/internal/matcher"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/store"
	"github.com/oncomatch/trial-screener/internal/trials"
)

// Screener runs the extract-then-match pipeline against a loaded trial
// table. Safe for concurrent use.
type Screener struct {
	extractor *extract.Extractor
	matcher   *matcher.Matcher
	table     *trials.Table

	// Optional collaborators.
	store         store.Store // run history; nil disables persistence
	maxDistanceKm float64     // 0 disables the distance filter
}

// Option configures a Screener.
type Option func(*Screener)

// WithStore enables match-run persistence.
func WithStore(st store.Store) Option {
	return func(s *Screener) { s.store = st }
}

// WithMaxDistance drops matches whose nearest resolvable site is farther
// than km from the patient's location. Matches with no resolvable site
// are kept; distance is advisory when no filter is set.
func WithMaxDistance(km float64) Option {
	return func(s *Screener) { s.maxDistanceKm = km }
}

// New creates a Screener over the given table.
func New(extractor *extract.Extractor, m *matcher.Matcher, table *trials.Table, opts ...Option) *Screener {
	s := &Screener{extractor: extractor, matcher: m, table: table}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the trial table the screener matches against.
func (s *Screener) Table() *trials.Table { return s.table }

// Request is one screening invocation.
type Request struct {
	Text     string
	Location string // optional patient location for site distance
	TopK     int    // 0 uses the configured default
}

// Screen runs the full pipeline for one patient description and returns
// the recorded run. Matching itself cannot fail; only run persistence
// can, and that failure is logged rather than surfaced so a history
// outage never blocks screening.
func (s *Screener) Screen(ctx context.Context, req Request) *model.MatchRun {
	query := s.extractor.BuildQuery(ctx, req.Text)
	if req.Location != "" {
		query.Location = req.Location
	}
	results := s.matcher.Match(query, s.table, req.TopK)
	results = s.annotate(query, results)

	run := &model.MatchRun{
		Query:         *query,
		Results:       results,
		TrialsScanned: s.table.Len(),
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			zap.L().Warn("screening: save run failed", zap.Error(err))
		}
	}
	return run
}

// annotate attaches the advisory eligibility analysis and site distance
// to each result, applying the optional distance filter.
func (s *Screener) annotate(query *model.PatientQuery, results []model.MatchResult) []model.MatchResult {
	patientPlace, haveLocation := geo.Resolve(query.Location)

	out := results[:0]
	for i := range results {
		r := results[i]
		t := r.Trial

		if t.EligibilityText != "" {
			r.Eligibility = eligibility.Evaluate(query, eligibility.Parse(t.EligibilityText))
		}

		if haveLocation {
			if km, ok := geo.NearestSiteKm(patientPlace, t.Locations); ok {
				r.DistanceKm = km
				if s.maxDistanceKm > 0 && km > s.maxDistanceKm {
					continue
				}
			}
		}

		out = append(out, r)
	}
	return out
}
