package model

import (
	"strings"
	"time"
)

// MatchResult is the outcome of scoring one trial against one query.
// Ephemeral: held only for the current request/response cycle and for
// on-demand export.
type MatchResult struct {
	Trial       *Trial   `json:"trial"`
	RawScore    float64  `json:"raw_score"`
	Confidence  float64  `json:"confidence"` // always in [0,100]
	Explanation []string `json:"explanation"`

	// Advisory extras; never feed back into Confidence.
	Eligibility *EligibilityAnalysis `json:"eligibility,omitempty"`
	DistanceKm  float64              `json:"distance_km,omitempty"`
}

// ExplanationText joins the explanation fragments for display.
func (m *MatchResult) ExplanationText() string {
	return strings.Join(m.Explanation, "; ")
}

// EligibilityAnalysis summarizes how the patient fares against the
// trial's parsed inclusion/exclusion criteria.
type EligibilityAnalysis struct {
	InclusionMet      int      `json:"inclusion_met"`
	InclusionTotal    int      `json:"inclusion_total"`
	ExclusionHits     int      `json:"exclusion_hits"`
	ExclusionTotal    int      `json:"exclusion_total"`
	Notes             []string `json:"notes,omitempty"`
	OverallAssessment string   `json:"overall_assessment"`
}

// MatchRun records one extract-then-match invocation for history views.
type MatchRun struct {
	ID            string        `json:"id"`
	Query         PatientQuery  `json:"query"`
	Results       []MatchResult `json:"results"`
	TrialsScanned int           `json:"trials_scanned"`
	CreatedAt     time.Time     `json:"created_at"`
}
