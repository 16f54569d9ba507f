package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/trial-screener/internal/model"
)

func TestRuleExtractor_CanonicalDescription(t *testing.T) {
	r := NewRuleExtractor()

	set, err := r.Extract(context.Background(),
		"Female, 45 years old, breast cancer, HER2 positive, non-smoker")
	require.NoError(t, err)

	assert.Equal(t, []string{"breast cancer"}, set.Conditions)
	assert.Contains(t, set.Demographics, "female")
	assert.Contains(t, set.Demographics, "45 years old")
	assert.Contains(t, set.LabValues, "her2 positive")
	assert.Contains(t, set.Treatments, "non-smoker")
}

func TestRuleExtractor_GenericCancerOnlyWithoutSite(t *testing.T) {
	r := NewRuleExtractor()

	generic, err := r.Extract(context.Background(), "patient with cancer")
	require.NoError(t, err)
	assert.Equal(t, []string{"cancer"}, generic.Conditions)

	// A site-specific match suppresses the bare term.
	specific, err := r.Extract(context.Background(), "patient with lung cancer")
	require.NoError(t, err)
	assert.Equal(t, []string{"lung cancer"}, specific.Conditions)
}

func TestRuleExtractor_StageAndMetastatic(t *testing.T) {
	r := NewRuleExtractor()

	set, err := r.Extract(context.Background(),
		"Stage III metastatic colon cancer, prior chemotherapy")
	require.NoError(t, err)

	assert.Contains(t, set.Conditions, "colon cancer")
	assert.Contains(t, set.Conditions, "stage iii")
	assert.Contains(t, set.Conditions, "metastatic")
	assert.Contains(t, set.Treatments, "prior chemotherapy")
}

func TestRuleExtractor_DedupesCaseInsensitively(t *testing.T) {
	r := NewRuleExtractor()

	set, err := r.Extract(context.Background(),
		"Breast cancer. Confirmed breast CANCER diagnosis.")
	require.NoError(t, err)
	assert.Equal(t, []string{"breast cancer"}, set.Conditions)
}

func TestRuleExtractor_EmptyInput(t *testing.T) {
	r := NewRuleExtractor()

	for _, text := range []string{"", "   ", "\n\t"} {
		set, err := r.Extract(context.Background(), text)
		require.NoError(t, err)
		assert.True(t, set.Empty())
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"45 years old", 45},
		{"45-year-old woman", 45},
		{"patient is 62 yo", 62},
		{"aged 30", 30},
		{"age: 71", 71},
		{"8 years of age", 8},
		{"no age stated", model.AgeUnknown},
		{"999 years old", model.AgeUnknown},
		{"", model.AgeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAge(tt.text), "text: %q", tt.text)
	}
}

func TestParseSex(t *testing.T) {
	tests := []struct {
		text string
		want model.Sex
	}{
		{"Female, 45 years old", model.SexFemale},
		{"a 60 year old man", model.SexMale},
		{"woman with lung cancer", model.SexFemale},
		{"the patient", model.SexUnknown},
		{"", model.SexUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSex(tt.text), "text: %q", tt.text)
	}
}

func TestParseSmoking(t *testing.T) {
	tests := []struct {
		text string
		want model.SmokingStatus
	}{
		{"non-smoker", model.SmokingNever},
		{"never smoked", model.SmokingNever},
		{"former smoker", model.SmokingFormer},
		{"ex-smoker", model.SmokingFormer},
		{"current smoker", model.SmokingCurrent},
		{"heavy smoker", model.SmokingCurrent},
		{"no mention", model.SmokingUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSmoking(tt.text), "text: %q", tt.text)
	}
}

func TestNormalize_StripsDiacriticsAndCase(t *testing.T) {
	assert.Equal(t, "metastases in the seance", Normalize("Métastases   in the Séance"))
}
