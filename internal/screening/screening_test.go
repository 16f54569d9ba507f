package screening

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/trial-screener/internal/extract"
	"github.com/oncomatch/trial-screener/internal/matcher"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/store"
	"github.com/oncomatch/trial-screener/internal/trials"
)

// stubStrategy feeds a fixed entity set into the extractor.
type stubStrategy struct {
	set *model.EntitySet
}

func (s *stubStrategy) Extract(context.Context, string) (*model.EntitySet, error) {
	return s.set, nil
}

// recordingStore captures SaveRun calls; everything else is unused here.
type recordingStore struct {
	store.Store
	saved   []*model.MatchRun
	saveErr error
}

func (r *recordingStore) SaveRun(_ context.Context, run *model.MatchRun) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, run)
	return nil
}

func testTable() *trials.Table {
	return trials.New([]model.Trial{
		{
			NCTID:           "NCT00000001",
			Title:           "HER2-Positive Breast Cancer Study",
			Status:          model.StatusRecruiting,
			Conditions:      []string{"Breast Cancer"},
			Sex:             model.SexFemale,
			MinAge:          18,
			MaxAge:          75,
			Locations:       []string{"Boston, MA"},
			EligibilityText: "Inclusion Criteria: HER2 positive. Exclusion Criteria: current smoker.",
		},
		{
			NCTID:      "NCT00000002",
			Title:      "Breast Cancer Imaging Study",
			Status:     model.StatusRecruiting,
			Conditions: []string{"Breast Cancer"},
			Sex:        model.SexFemale,
			MinAge:     18,
			MaxAge:     75,
			Locations:  []string{"Seattle, WA"},
		},
	})
}

func newTestScreener(t *testing.T, opts ...Option) *Screener {
	t.Helper()
	e := extract.NewWithStrategy(&stubStrategy{set: &model.EntitySet{
		Conditions:   []string{"breast cancer"},
		Demographics: []string{"female", "45 years old"},
		LabValues:    []string{"her2 positive"},
	}})
	return New(e, matcher.New(matcher.DefaultConfig()), testTable(), opts...)
}

const description = "Female, 45 years old, breast cancer, HER2 positive, non-smoker"

func TestScreen_EndToEnd(t *testing.T) {
	s := newTestScreener(t)

	run := s.Screen(context.Background(), Request{Text: description, TopK: 10})
	require.NotNil(t, run)
	assert.Equal(t, 2, run.TrialsScanned)
	require.Len(t, run.Results, 2)

	top := run.Results[0]
	assert.Equal(t, "NCT00000001", top.Trial.NCTID)
	assert.Greater(t, top.Confidence, 0.0)

	// Demographics come from the rule parsers regardless of strategy.
	assert.Equal(t, 45, run.Query.Age)
	assert.Equal(t, model.SexFemale, run.Query.Sex)
}

func TestScreen_AnnotatesEligibility(t *testing.T) {
	s := newTestScreener(t)

	run := s.Screen(context.Background(), Request{Text: description, TopK: 10})
	require.Len(t, run.Results, 2)

	withText := run.Results[0]
	require.NotNil(t, withText.Eligibility)
	assert.NotEmpty(t, withText.Eligibility.OverallAssessment)

	// No eligibility text means no analysis.
	assert.Nil(t, run.Results[1].Eligibility)
}

func TestScreen_AnnotatesDistance(t *testing.T) {
	s := newTestScreener(t)

	run := s.Screen(context.Background(), Request{Text: description, Location: "New York, NY", TopK: 10})
	require.Len(t, run.Results, 2)

	for _, r := range run.Results {
		assert.Greater(t, r.DistanceKm, 0.0, "trial %s", r.Trial.NCTID)
	}
}

func TestScreen_DistanceFilterDropsFarSites(t *testing.T) {
	// Boston is ~300 km from New York; Seattle is ~3,870 km.
	s := newTestScreener(t, WithMaxDistance(1000))

	run := s.Screen(context.Background(), Request{Text: description, Location: "New York, NY", TopK: 10})
	require.Len(t, run.Results, 1)
	assert.Equal(t, "NCT00000001", run.Results[0].Trial.NCTID)
}

func TestScreen_UnknownLocationKeepsAllResults(t *testing.T) {
	s := newTestScreener(t, WithMaxDistance(1))

	run := s.Screen(context.Background(), Request{Text: description, Location: "Atlantis", TopK: 10})
	assert.Len(t, run.Results, 2)
	for _, r := range run.Results {
		assert.Zero(t, r.DistanceKm)
	}
}

func TestScreen_PersistsRun(t *testing.T) {
	st := &recordingStore{}
	s := newTestScreener(t, WithStore(st))

	run := s.Screen(context.Background(), Request{Text: description, TopK: 5})
	require.Len(t, st.saved, 1)
	assert.Same(t, run, st.saved[0])
}

func TestScreen_StoreFailureDoesNotBlock(t *testing.T) {
	st := &recordingStore{saveErr: errors.New("history down")}
	s := newTestScreener(t, WithStore(st))

	run := s.Screen(context.Background(), Request{Text: description, TopK: 5})
	require.NotNil(t, run)
	assert.NotEmpty(t, run.Results)
}
