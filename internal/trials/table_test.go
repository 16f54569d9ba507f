package trials

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/trial-screener/internal/model"
)

const v2StyleCSV = `NCT Number,Study Title,Study URL,Study Status,Conditions,Sex,Age,Phases,Study Type,Locations,Eligibility Criteria
NCT00000001,HER2 Breast Study,https://example.org/1,RECRUITING,Breast Cancer|HER2-Positive Breast Cancer,FEMALE,18 Years to 75 Years (Adult),Phase 2,Interventional,"Boston, MA|New York, NY",Inclusion Criteria: HER2 positive.
NCT00000002,Lung Study,https://example.org/2,COMPLETED,Lung Cancer,ALL,18 Years and older,Phase 3,Interventional,"Houston, TX",Exclusion Criteria: pregnant.
`

func TestLoadCSV_PortalHeaders(t *testing.T) {
	table, err := LoadCSV(context.Background(), strings.NewReader(v2StyleCSV))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	first, ok := table.Get("NCT00000001")
	require.True(t, ok)
	assert.Equal(t, "HER2 Breast Study", first.Title)
	assert.Equal(t, model.StatusRecruiting, first.Status)
	assert.Equal(t, []string{"Breast Cancer", "HER2-Positive Breast Cancer"}, first.Conditions)
	assert.Equal(t, model.SexFemale, first.Sex)
	assert.Equal(t, 18, first.MinAge)
	assert.Equal(t, 75, first.MaxAge)
	assert.Equal(t, []string{"Boston, MA", "New York, NY"}, first.Locations)

	second, ok := table.Get("NCT00000002")
	require.True(t, ok)
	assert.Equal(t, model.SexAll, second.Sex)
	assert.Equal(t, 18, second.MinAge)
	assert.Zero(t, second.MaxAge)
}

func TestLoadCSV_APIHeaders(t *testing.T) {
	csv := "nctId,briefTitle,overallStatus,condition,sex,minimumAge,maximumAge,phase\n" +
		"NCT00000003,Melanoma Study,RECRUITING,Melanoma,MALE,21 Years,80 Years,Phase 1\n"

	table, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	tr, ok := table.Get("nct00000003") // lookup is case-insensitive
	require.True(t, ok)
	assert.Equal(t, model.SexMale, tr.Sex)
	assert.Equal(t, 21, tr.MinAge)
	assert.Equal(t, 80, tr.MaxAge)
	assert.Equal(t, []string{"Phase 1"}, tr.Phases)
}

func TestLoadCSV_DuplicateNCTIDFirstWins(t *testing.T) {
	csv := "NCT Number,Study Title\nNCT00000001,First\nNCT00000001,Second\n"

	table, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	tr, _ := table.Get("NCT00000001")
	assert.Equal(t, "First", tr.Title)
}

func TestLoadCSV_SkipsRowsWithoutID(t *testing.T) {
	csv := "NCT Number,Study Title\n,No ID Here\nNCT00000001,Valid\n"

	table, err := LoadCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestLoadCSV_EmptyInput(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadCSV_UnrecognizedHeader(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognized columns")
}

func TestParseAgeRangeCell(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi int
	}{
		{"18 Years to 75 Years (Adult, Older Adult)", 18, 75},
		{"18 Years and older", 18, 0},
		{"17 Years and younger", 0, 17},
		{"", 0, 0},
		{"Child", 0, 0},
	}
	for _, tt := range tests {
		lo, hi := parseAgeRangeCell(tt.in)
		assert.Equal(t, tt.lo, lo, "min for %q", tt.in)
		assert.Equal(t, tt.hi, hi, "max for %q", tt.in)
	}
}

func TestSampleTable(t *testing.T) {
	table := SampleTable()
	require.NotZero(t, table.Len())

	for _, tr := range table.Rows() {
		assert.True(t, strings.HasPrefix(tr.NCTID, "NCT"), "id %q", tr.NCTID)
		assert.NotEmpty(t, tr.Title)
	}
}
