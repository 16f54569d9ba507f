package trials

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed sample_trials.csv
var sampleCSV string

// SampleTable loads the embedded demo dataset. It backs the sample-case
// flow and the test fixtures; real deployments import a registry export.
func SampleTable() *Table {
	t, err := LoadCSV(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		// The embedded CSV is fixed at build time; a parse failure here
		// is a programming error.
		panic(err)
	}
	return t
}

// SampleCase is a canned patient description for the demo UI.
type SampleCase struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// SampleCases mirror the demo's sample-case buttons.
var SampleCases = []SampleCase{
	{
		Name: "Breast cancer, HER2+",
		Text: "Female, 45 years old, breast cancer, HER2 positive, non-smoker. No prior chemotherapy.",
	},
	{
		Name: "Lung cancer, smoker",
		Text: "62 year old male with stage III lung cancer, current smoker, prior radiation therapy, EGFR positive.",
	},
	{
		Name: "Prostate cancer",
		Text: "Male, 68 years old, metastatic prostate cancer, history of surgery, non-smoker.",
	},
	{
		Name: "Pediatric leukemia",
		Text: "Female, 9 years old, leukemia, no prior treatment.",
	},
}
