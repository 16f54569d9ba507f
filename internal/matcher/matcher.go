// Package matcher ranks trials against an extracted patient query using a
// fixed weighted-overlap policy: condition terms weigh most, demographics
// next, phase and remaining fields least. Scores normalize to a 0-100
// confidence against the maximum achievable for each trial's available
// fields, so sparse rows are not penalized for missing data.
package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/oncomatch/trial-screener/internal/config"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/trials"
)

// Matcher scores trials against patient queries. Stateless and safe for
// concurrent use; the trial table is read-only.
type Matcher struct {
	cfg config.MatcherConfig
}

// DefaultConfig returns the reference weighting policy.
func DefaultConfig() config.MatcherConfig {
	return config.MatcherConfig{
		ConditionWeight:   3.0,
		DemographicWeight: 2.0,
		PhaseWeight:       1.5,
		SecondaryWeight:   1.0,
		TopK:              20,
	}
}

// New creates a Matcher. Zero-valued weights fall back to the defaults.
func New(cfg config.MatcherConfig) *Matcher {
	def := DefaultConfig()
	if cfg.ConditionWeight <= 0 {
		cfg.ConditionWeight = def.ConditionWeight
	}
	if cfg.DemographicWeight <= 0 {
		cfg.DemographicWeight = def.DemographicWeight
	}
	if cfg.PhaseWeight <= 0 {
		cfg.PhaseWeight = def.PhaseWeight
	}
	if cfg.SecondaryWeight <= 0 {
		cfg.SecondaryWeight = def.SecondaryWeight
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	return &Matcher{cfg: cfg}
}

// Match scores every trial in the table and returns at most topK results
// sorted by confidence descending, ties broken by original table order.
// Trials with raw score zero are excluded unless needed to fill topK.
// Deterministic: identical inputs produce identical output.
func (m *Matcher) Match(query *model.PatientQuery, table *trials.Table, topK int) []model.MatchResult {
	if topK <= 0 {
		topK = m.cfg.TopK
	}

	rows := table.Rows()
	scored := make([]model.MatchResult, 0, len(rows))
	var zeros []model.MatchResult

	for i := range rows {
		res := m.scoreTrial(query, &rows[i])
		if res.RawScore > 0 {
			scored = append(scored, res)
		} else {
			zeros = append(zeros, res)
		}
	}

	// Stable: equal confidences keep table order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	if len(scored) >= topK {
		return scored[:topK]
	}

	// Fewer than topK nonzero trials: fill with zero-score rows in table
	// order. An empty table yields an empty result.
	for _, z := range zeros {
		if len(scored) == topK {
			break
		}
		scored = append(scored, z)
	}
	return scored
}

// scoreTrial computes the weighted overlap for one (query, trial) pair.
func (m *Matcher) scoreTrial(q *model.PatientQuery, t *model.Trial) model.MatchResult {
	res := model.MatchResult{Trial: t}

	var raw, maxRaw float64

	// Condition overlap: each query condition term credits once, exact or
	// fuzzy-substring in either direction.
	condField := t.ConditionText()
	if len(q.Entities.Conditions) > 0 && condField != "" {
		matched := 0
		for _, term := range q.Entities.Conditions {
			if fuzzyContains(condField, term) {
				matched++
				res.Explanation = append(res.Explanation,
					fmt.Sprintf("Condition: %s matched", term))
			}
		}
		if matched > len(q.Entities.Conditions) {
			matched = len(q.Entities.Conditions)
		}
		raw += float64(matched) * m.cfg.ConditionWeight
		maxRaw += float64(len(q.Entities.Conditions)) * m.cfg.ConditionWeight
	}

	// Demographics: sex and age-range sub-checks credit independently.
	// Unrestricted trials earn the credit; both sub-checks are always
	// checkable, so both always count toward the maximum.
	if t.SexEligible(q.Sex) {
		raw += m.cfg.DemographicWeight
		if q.Sex != model.SexUnknown {
			res.Explanation = append(res.Explanation,
				fmt.Sprintf("Sex: %s matched", q.Sex))
		} else {
			res.Explanation = append(res.Explanation, "Sex: no restriction")
		}
	}
	maxRaw += m.cfg.DemographicWeight

	if ageCreditable(q.Age, t) {
		raw += m.cfg.DemographicWeight
		res.Explanation = append(res.Explanation, ageExplanation(q.Age, t))
	}
	maxRaw += m.cfg.DemographicWeight

	// Phase overlap: one credit when any query term names the trial phase.
	phaseField := t.PhaseText()
	if phaseField != "" {
		if term, ok := anyTermIn(q.Entities.All(), phaseField); ok {
			raw += m.cfg.PhaseWeight
			res.Explanation = append(res.Explanation,
				fmt.Sprintf("Phase: %s matched", term))
		}
		maxRaw += m.cfg.PhaseWeight
	}

	// Secondary fields (treatment, biomarker, smoking) scan the
	// eligibility blob; each distinct term credits once.
	secondary := secondaryTerms(q)
	elig := strings.ToLower(t.EligibilityText)
	if len(secondary) > 0 && elig != "" {
		for _, term := range secondary {
			if strings.Contains(elig, term) {
				raw += m.cfg.SecondaryWeight
				res.Explanation = append(res.Explanation,
					fmt.Sprintf("Eligibility: %s matched", term))
			}
		}
		maxRaw += float64(len(secondary)) * m.cfg.SecondaryWeight
	}

	res.RawScore = raw
	if raw <= 0 {
		// Zero-score rows carry no explanation; they only appear as
		// fill-ins below topK.
		res.RawScore = 0
		res.Explanation = nil
		res.Confidence = 0
		return res
	}

	if maxRaw > 0 {
		res.Confidence = math.Min(100, math.Max(0, raw/maxRaw*100))
		res.Confidence = math.Round(res.Confidence*100) / 100
	}
	return res
}

// ageCreditable applies the inclusive-boundary age check. Unknown patient
// age only credits unrestricted trials.
func ageCreditable(age int, t *model.Trial) bool {
	if age == model.AgeUnknown {
		return !t.HasAgeRestriction()
	}
	return t.AgeEligible(age)
}

func ageExplanation(age int, t *model.Trial) string {
	if age == model.AgeUnknown || !t.HasAgeRestriction() {
		return "Age: no restriction"
	}
	switch {
	case t.MinAge > 0 && t.MaxAge > 0:
		return fmt.Sprintf("Age: %d within %d-%d", age, t.MinAge, t.MaxAge)
	case t.MinAge > 0:
		return fmt.Sprintf("Age: %d meets minimum %d", age, t.MinAge)
	default:
		return fmt.Sprintf("Age: %d meets maximum %d", age, t.MaxAge)
	}
}

// fuzzyContains reports a case-insensitive substring containment in
// either direction. No edit-distance matching.
func fuzzyContains(field, term string) bool {
	if term == "" || field == "" {
		return false
	}
	return strings.Contains(field, term) || strings.Contains(term, field)
}

// anyTermIn returns the first query term contained in the field.
func anyTermIn(terms []string, field string) (string, bool) {
	for _, term := range terms {
		if term != "" && strings.Contains(field, term) {
			return term, true
		}
	}
	return "", false
}

// secondaryTerms collects the treatment, biomarker/lab, and smoking terms
// for the eligibility scan, deduplicated.
func secondaryTerms(q *model.PatientQuery) []string {
	terms := make([]string, 0, len(q.Entities.Treatments)+len(q.Entities.LabValues)+1)
	seen := map[string]struct{}{}
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	for _, t := range q.Entities.Treatments {
		add(t)
	}
	for _, t := range q.Entities.LabValues {
		add(t)
	}
	if q.Smoking != model.SmokingUnknown {
		add(string(q.Smoking))
	}
	return terms
}
