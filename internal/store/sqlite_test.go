package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/trial-screener/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testTrial(nctID, title string) model.Trial {
	return model.Trial{
		NCTID:           nctID,
		Title:           title,
		Status:          model.StatusRecruiting,
		Conditions:      []string{"Breast Cancer"},
		Sex:             model.SexFemale,
		MinAge:          18,
		MaxAge:          75,
		Phases:          []string{"Phase 2"},
		StudyType:       "Interventional",
		Locations:       []string{"Boston, MA"},
		EligibilityText: "Inclusion Criteria: HER2 positive. Exclusion Criteria: pregnant.",
	}
}

func TestSQLite_UpsertAndGetTrial(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertTrials(ctx, []model.Trial{testTrial("NCT00000001", "Trial One")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetTrial(ctx, "NCT00000001")
	require.NoError(t, err)
	assert.Equal(t, "Trial One", got.Title)
	assert.Equal(t, model.SexFemale, got.Sex)
	assert.Equal(t, []string{"Breast Cancer"}, got.Conditions)
	assert.Equal(t, 18, got.MinAge)
	assert.Equal(t, 75, got.MaxAge)
}

func TestSQLite_UpsertTrials_OverwritesExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertTrials(ctx, []model.Trial{testTrial("NCT00000001", "Original")})
	require.NoError(t, err)

	updated := testTrial("NCT00000001", "Refreshed")
	updated.Status = model.StatusCompleted
	_, err = st.UpsertTrials(ctx, []model.Trial{updated})
	require.NoError(t, err)

	got, err := st.GetTrial(ctx, "NCT00000001")
	require.NoError(t, err)
	assert.Equal(t, "Refreshed", got.Title)
	assert.Equal(t, model.StatusCompleted, got.Status)

	count, err := st.CountTrials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLite_GetTrial_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetTrial(context.Background(), "NCT99999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListTrials_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lung := testTrial("NCT00000002", "Lung Trial")
	lung.Conditions = []string{"Lung Cancer"}
	lung.Status = model.StatusCompleted

	_, err := st.UpsertTrials(ctx, []model.Trial{
		testTrial("NCT00000001", "Breast Trial"),
		lung,
	})
	require.NoError(t, err)

	byCondition, err := st.ListTrials(ctx, TrialFilter{Condition: "breast"})
	require.NoError(t, err)
	require.Len(t, byCondition, 1)
	assert.Equal(t, "NCT00000001", byCondition[0].NCTID)

	byStatus, err := st.ListTrials(ctx, TrialFilter{Status: model.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "NCT00000002", byStatus[0].NCTID)

	limited, err := st.ListTrials(ctx, TrialFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_AllTrials_OrderedByNCTID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertTrials(ctx, []model.Trial{
		testTrial("NCT00000003", "Third"),
		testTrial("NCT00000001", "First"),
	})
	require.NoError(t, err)

	all, err := st.AllTrials(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "NCT00000001", all[0].NCTID)
	assert.Equal(t, "NCT00000003", all[1].NCTID)
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	trial := testTrial("NCT00000001", "Trial One")
	run := &model.MatchRun{
		Query: model.PatientQuery{
			RawText: "45 year old female with breast cancer",
			Age:     45,
			Sex:     model.SexFemale,
		},
		Results: []model.MatchResult{
			{Trial: &trial, RawScore: 7, Confidence: 82.35},
		},
		TrialsScanned: 10,
	}

	require.NoError(t, st.SaveRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TrialsScanned)
	assert.Equal(t, model.SexFemale, got.Query.Sex)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 82.35, got.Results[0].Confidence)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, text := range []string{"first query", "second query"} {
		require.NoError(t, st.SaveRun(ctx, &model.MatchRun{
			Query:   model.PatientQuery{RawText: text},
			Results: []model.MatchResult{},
		}))
	}

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
