package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/oncomatch/trial-screener/internal/model"
)

// RuleExtractor is the deterministic fallback strategy: fixed keyword
// lists and regexes scanned over the normalized text. It never fails.
type RuleExtractor struct{}

// NewRuleExtractor creates the rule-based strategy.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

var (
	conditionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(breast|lung|prostate|colon|colorectal|pancreatic|ovarian|brain|liver|kidney|bladder|cervical|endometrial|thyroid|gastric|skin)\s+cancer\b`),
		regexp.MustCompile(`\b(leukemia|lymphoma|melanoma|sarcoma|myeloma|glioblastoma|carcinoma|neoplasm|malignancy)\b`),
		regexp.MustCompile(`\bstage\s+[ivx0-9]+\b`),
		regexp.MustCompile(`\b(metastatic|metastasis|locally\s+advanced|recurrent|relapsed?)\b`),
		regexp.MustCompile(`\b(diabetes|hypertension|asthma|copd|heart\s+disease|kidney\s+disease|liver\s+disease)\b`),
	}

	// Bare "cancer"/"tumor" only count when no site-specific condition
	// already matched, so "breast cancer" yields one term, not two.
	genericConditionPattern = regexp.MustCompile(`\b(cancer|carcinoma|tumou?r)\b`)

	biomarkerPattern = regexp.MustCompile(`\b(her2|her-2|egfr|kras|braf|alk|ros1|pd-?l1|msi|tmb|brca1|brca2|estrogen|progesterone)[\s-]*(positive|negative|high|low|mutated|mutation|wild[\s-]*type)\b`)

	tripleNegativePattern = regexp.MustCompile(`\btriple[\s-]*negative\b`)

	labValuePattern = regexp.MustCompile(`\b(hemoglobin|hgb|hematocrit|wbc|platelets?|creatinine|alt|ast|bilirubin|ecog|karnofsky)\b`)

	treatmentPattern = regexp.MustCompile(`\b(chemotherapy|chemo|radiation|radiotherapy|surgery|surgical\s+resection|immunotherapy|targeted\s+therapy|hormone\s+therapy|transplant)\b`)

	treatmentHistoryPattern = regexp.MustCompile(`\b(prior|previous|history\s+of|no\s+prior)\s+(chemotherapy|chemo|radiation|radiotherapy|surgery|immunotherapy)\b`)

	sexPattern = regexp.MustCompile(`\b(male|female|man|woman|men|women)\b`)

	agePattern = regexp.MustCompile(`\b(\d{1,3})\s*[-\s]*(?:years?[-\s]*old|years?\s+of\s+age|y\.?o\.?\b|yrs?\b)`)

	agePrefixPattern = regexp.MustCompile(`\bage[d:\s]+(\d{1,3})\b`)

	smokingPattern = regexp.MustCompile(`\b(non[\s-]*smoker|never\s+smoked|former\s+smoker|ex[\s-]*smoker|current\s+smoker|smoker|smoking)\b`)
)

// Extract scans the fixed term lists. The error is always nil; the
// Strategy signature keeps it for the model-backed peer.
func (r *RuleExtractor) Extract(_ context.Context, text string) (*model.EntitySet, error) {
	set := &model.EntitySet{}
	t := Normalize(text)
	if t == "" {
		return set, nil
	}

	for _, p := range conditionPatterns {
		set.Conditions = append(set.Conditions, p.FindAllString(t, -1)...)
	}
	if len(set.Conditions) == 0 {
		set.Conditions = append(set.Conditions, genericConditionPattern.FindAllString(t, -1)...)
	}

	set.LabValues = append(set.LabValues, biomarkerPattern.FindAllString(t, -1)...)
	set.LabValues = append(set.LabValues, tripleNegativePattern.FindAllString(t, -1)...)
	set.LabValues = append(set.LabValues, labValuePattern.FindAllString(t, -1)...)

	set.Treatments = append(set.Treatments, treatmentHistoryPattern.FindAllString(t, -1)...)
	set.Treatments = append(set.Treatments, treatmentPattern.FindAllString(t, -1)...)
	set.Treatments = append(set.Treatments, smokingPattern.FindAllString(t, -1)...)

	set.Demographics = append(set.Demographics, sexPattern.FindAllString(t, -1)...)
	set.Demographics = append(set.Demographics, agePattern.FindAllString(t, -1)...)

	set.Conditions = dedupe(set.Conditions)
	set.Demographics = dedupe(set.Demographics)
	set.Treatments = dedupe(set.Treatments)
	set.LabValues = dedupe(set.LabValues)

	return set, nil
}

// ParseAge extracts a 1-3 digit age adjacent to an age-indicating word.
// Returns model.AgeUnknown when the text states no age.
func ParseAge(text string) int {
	t := Normalize(text)
	m := agePattern.FindStringSubmatch(t)
	if m == nil {
		m = agePrefixPattern.FindStringSubmatch(t)
	}
	if m == nil {
		return model.AgeUnknown
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || age <= 0 || age > 130 {
		return model.AgeUnknown
	}
	return age
}

// ParseSex extracts the patient's sex from the text.
func ParseSex(text string) model.Sex {
	switch sexPattern.FindString(Normalize(text)) {
	case "male", "man", "men":
		return model.SexMale
	case "female", "woman", "women":
		return model.SexFemale
	default:
		return model.SexUnknown
	}
}

// ParseSmoking extracts smoking status from the text. Negated forms are
// checked first so "non-smoker" never reads as "smoker".
func ParseSmoking(text string) model.SmokingStatus {
	t := Normalize(text)
	m := smokingPattern.FindString(t)
	switch {
	case m == "":
		return model.SmokingUnknown
	case strings.Contains(m, "non") || strings.Contains(m, "never"):
		return model.SmokingNever
	case strings.Contains(m, "former") || strings.Contains(m, "ex"):
		return model.SmokingFormer
	default:
		return model.SmokingCurrent
	}
}
