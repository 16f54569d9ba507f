// Package eligibility parses free-text trial eligibility criteria into
// structured inclusion/exclusion lists and evaluates a patient against
// them. The analysis is advisory: it annotates match results and never
// feeds back into the ranking confidence.
package eligibility

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/oncomatch/trial-screener/internal/model"
)

// CriterionType distinguishes inclusion from exclusion criteria.
type CriterionType string

const (
	Inclusion CriterionType = "inclusion"
	Exclusion CriterionType = "exclusion"
)

// Criterion is one structured eligibility requirement.
type Criterion struct {
	Text     string        `json:"text"`
	Type     CriterionType `json:"type"`
	Category string        `json:"category"`
	Value    string        `json:"value,omitempty"`
	Operator string        `json:"operator,omitempty"`
}

// Parsed holds the structured criteria for one trial.
type Parsed struct {
	Inclusion []Criterion `json:"inclusion"`
	Exclusion []Criterion `json:"exclusion"`
}

// categoryPatterns mirror the criterion categories the registry's
// free-text blobs actually use.
var categoryPatterns = []struct {
	category string
	patterns []*regexp.Regexp
}{
	{"age", []*regexp.Regexp{
		regexp.MustCompile(`age\s*(?:>=?|<=?|=)\s*(\d{1,3})`),
		regexp.MustCompile(`(\d{1,3})\s*(?:to|-)\s*(\d{1,3})\s*years?`),
		regexp.MustCompile(`(\d{1,3})\s*years?\s*old`),
	}},
	{"condition", []*regexp.Regexp{
		regexp.MustCompile(`(breast|lung|prostate|colon|pancreatic|ovarian|brain|liver|kidney|bladder|cervical|endometrial|thyroid)\s+cancer`),
		regexp.MustCompile(`\b(cancer|carcinoma|tumou?r|neoplasm|malignancy|leukemia|lymphoma|melanoma|sarcoma)\b`),
		regexp.MustCompile(`stage\s*[ivx0-9]+`),
	}},
	{"biomarker", []*regexp.Regexp{
		regexp.MustCompile(`(her2|her-2|egfr|kras|braf|alk|ros1|pd-?l1|msi|tmb|brca1|brca2)\s*(positive|negative|high|low|mutated|wild[\s-]*type)?`),
		regexp.MustCompile(`(estrogen|progesterone)\s*(positive|negative)`),
		regexp.MustCompile(`triple[\s-]*negative`),
	}},
	{"medication", []*regexp.Regexp{
		regexp.MustCompile(`(prior|previous|history\s+of|no\s+prior|concurrent)\s+(chemotherapy|chemo|radiation|radiotherapy|surgery|immunotherapy|targeted\s+therapy|transplant)`),
		regexp.MustCompile(`\b(chemotherapy|chemo|radiation|radiotherapy|surgery|immunotherapy|targeted\s+therapy|hormone\s+therapy|transplant)\b`),
	}},
	{"laboratory", []*regexp.Regexp{
		regexp.MustCompile(`(hemoglobin|hgb|hematocrit|wbc|platelets?|creatinine|alt|ast|bilirubin)\s*(?:>=?|<=?|=)\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`ecog\s*performance\s*status\s*(?:>=?|<=?|=)?\s*([0-4])`),
		regexp.MustCompile(`karnofsky\s*performance\s*status\s*(?:>=?|<=?|=)?\s*(\d+)`),
	}},
	{"lifestyle", []*regexp.Regexp{
		regexp.MustCompile(`(non[\s-]*smoker|never\s+smoked|former\s+smoker|current\s+smoker|smoker)`),
		regexp.MustCompile(`(pregnant|pregnancy|breastfeeding|lactating)`),
	}},
	{"comorbidity", []*regexp.Regexp{
		regexp.MustCompile(`(diabetes|hypertension|heart\s+disease|kidney\s+disease|liver\s+disease|autoimmune)`),
		regexp.MustCompile(`\b(hiv|aids|hepatitis|tuberculosis|active\s+infection)\b`),
	}},
}

var (
	exclusionHeader = regexp.MustCompile(`exclusion\s+criteria\s*:?`)
	inclusionHeader = regexp.MustCompile(`inclusion\s+criteria\s*:?`)
	negativeWords   = regexp.MustCompile(`\b(no|not|without|cannot|unable|prohibited|contraindicated|must\s+not)\b`)
	splitPattern    = regexp.MustCompile(`[.;\n]\s*|\s+[-•*]\s+`)
	operatorValue   = regexp.MustCompile(`(>=?|<=?|=)\s*(\d+(?:\.\d+)?)`)
)

// Parse structures a raw eligibility blob. Text under an "Exclusion
// Criteria" header is exclusion; elsewhere, negative phrasing decides.
func Parse(raw string) *Parsed {
	p := &Parsed{}
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return p
	}

	// Split the blob into the inclusion and exclusion sections when the
	// registry headers are present.
	inclText, exclText := text, ""
	if loc := exclusionHeader.FindStringIndex(text); loc != nil {
		inclText, exclText = text[:loc[0]], text[loc[1]:]
	}
	inclText = inclusionHeader.ReplaceAllString(inclText, "")

	for _, sentence := range splitPattern.Split(inclText, -1) {
		if c, ok := parseSentence(sentence, Inclusion); ok {
			if c.Type == Exclusion {
				p.Exclusion = append(p.Exclusion, c)
			} else {
				p.Inclusion = append(p.Inclusion, c)
			}
		}
	}
	for _, sentence := range splitPattern.Split(exclText, -1) {
		if c, ok := parseSentence(sentence, Exclusion); ok {
			c.Type = Exclusion
			p.Exclusion = append(p.Exclusion, c)
		}
	}

	return p
}

// parseSentence categorizes one criterion sentence. Very short fragments
// and sentences matching no category are dropped.
func parseSentence(sentence string, defaultType CriterionType) (Criterion, bool) {
	sentence = strings.TrimSpace(sentence)
	if len(sentence) < 5 {
		return Criterion{}, false
	}

	for _, group := range categoryPatterns {
		for _, pat := range group.patterns {
			m := pat.FindString(sentence)
			if m == "" {
				continue
			}
			c := Criterion{
				Text:     sentence,
				Type:     defaultType,
				Category: group.category,
				Value:    m,
			}
			if ov := operatorValue.FindStringSubmatch(sentence); ov != nil {
				c.Operator = ov[1]
				c.Value = ov[2]
			}
			if defaultType == Inclusion && negativeWords.MatchString(sentence) {
				c.Type = Exclusion
			}
			return c, true
		}
	}
	return Criterion{}, false
}

// Evaluate checks the patient against parsed criteria and summarizes the
// result. Inclusion criteria count as met when the patient's extracted
// terms or demographics satisfy them; exclusion criteria count as hits
// when the patient matches a disqualifier.
func Evaluate(q *model.PatientQuery, p *Parsed) *model.EligibilityAnalysis {
	a := &model.EligibilityAnalysis{
		InclusionTotal: len(p.Inclusion),
		ExclusionTotal: len(p.Exclusion),
	}

	for _, c := range p.Inclusion {
		if criterionApplies(q, c) {
			a.InclusionMet++
		}
	}
	for _, c := range p.Exclusion {
		if criterionApplies(q, c) {
			a.ExclusionHits++
			a.Notes = append(a.Notes, "exclusion: "+c.Value)
		}
	}

	switch {
	case a.ExclusionHits > 0:
		a.OverallAssessment = "possible exclusion criteria hit; manual review required"
	case a.InclusionTotal > 0 && a.InclusionMet >= (a.InclusionTotal+1)/2:
		a.OverallAssessment = "meets most stated inclusion criteria"
	case a.InclusionTotal > 0 && a.InclusionMet > 0:
		a.OverallAssessment = "meets some stated inclusion criteria"
	default:
		a.OverallAssessment = "insufficient information"
	}
	return a
}

// criterionApplies reports whether the patient's data satisfies (or, for
// exclusions, triggers) one criterion.
func criterionApplies(q *model.PatientQuery, c Criterion) bool {
	switch c.Category {
	case "age":
		return ageApplies(q.Age, c)
	case "lifestyle":
		return lifestyleApplies(q, c)
	default:
		return termApplies(q, c)
	}
}

func ageApplies(age int, c Criterion) bool {
	if age == model.AgeUnknown || c.Operator == "" {
		return false
	}
	bound, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return false
	}
	switch c.Operator {
	case ">", ">=":
		return float64(age) >= bound
	case "<", "<=":
		return float64(age) <= bound
	case "=":
		return float64(age) == bound
	default:
		return false
	}
}

func lifestyleApplies(q *model.PatientQuery, c Criterion) bool {
	v := c.Value
	switch q.Smoking {
	case model.SmokingNever:
		if strings.Contains(v, "non") || strings.Contains(v, "never") {
			return true
		}
	case model.SmokingFormer:
		if strings.Contains(v, "former") {
			return true
		}
	case model.SmokingCurrent:
		if strings.Contains(v, "smoker") && !strings.Contains(v, "non") && !strings.Contains(v, "never") {
			return true
		}
	}
	return termApplies(q, c)
}

func termApplies(q *model.PatientQuery, c Criterion) bool {
	for _, term := range q.Entities.All() {
		if term == "" {
			continue
		}
		if strings.Contains(c.Value, term) || strings.Contains(term, c.Value) {
			return true
		}
	}
	return false
}
