// Package trials loads the registry CSV export into an immutable,
// ordered, id-indexed table shared read-only across matches.
package trials

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/fetcher"
	"github.com/oncomatch/trial-screener/internal/model"
)

// Table is the loaded trial dataset. Never mutated after load; safe for
// concurrent readers.
type Table struct {
	rows  []model.Trial
	byID  map[string]int
}

// Len returns the number of trials.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the trials in original file order. Callers must not mutate.
func (t *Table) Rows() []model.Trial { return t.rows }

// Get looks up a trial by NCT ID.
func (t *Table) Get(nctID string) (*model.Trial, bool) {
	i, ok := t.byID[strings.ToUpper(strings.TrimSpace(nctID))]
	if !ok {
		return nil, false
	}
	return &t.rows[i], true
}

// New builds a Table from rows, enforcing unique NCT IDs: the first
// occurrence wins and later duplicates are dropped, which keeps the
// original ordering deterministic.
func New(rows []model.Trial) *Table {
	t := &Table{byID: make(map[string]int, len(rows))}
	for _, r := range rows {
		id := strings.ToUpper(strings.TrimSpace(r.NCTID))
		if id == "" {
			continue
		}
		if _, dup := t.byID[id]; dup {
			zap.L().Warn("trials: duplicate NCT id dropped", zap.String("nct_id", id))
			continue
		}
		r.NCTID = id
		t.byID[id] = len(t.rows)
		t.rows = append(t.rows, r)
	}
	return t
}

// columnAliases maps normalized header names to canonical fields. Both the
// classic portal export ("NCT Number") and the v2 API export ("NCT Id")
// headers are accepted.
var columnAliases = map[string]string{
	"nct number":           "nct_id",
	"nctid":                "nct_id",
	"nct id":               "nct_id",
	"study title":          "title",
	"brief title":          "title",
	"brieftitle":           "title",
	"study url":            "url",
	"study status":         "status",
	"overall status":       "status",
	"overallstatus":        "status",
	"conditions":           "conditions",
	"condition":            "conditions",
	"sex":                  "sex",
	"gender":               "sex",
	"age":                  "age",
	"minimum age":          "min_age",
	"minimumage":           "min_age",
	"maximum age":          "max_age",
	"maximumage":           "max_age",
	"phases":               "phases",
	"phase":                "phases",
	"study type":           "study_type",
	"studytype":            "study_type",
	"locations":            "locations",
	"locationcity":         "locations",
	"eligibility criteria": "eligibility",
	"eligibilitycriteria":  "eligibility",
}

// LoadCSV reads a registry CSV export into a Table using the streaming
// parser. Unknown columns are ignored; missing columns leave zero values.
func LoadCSV(ctx context.Context, r io.Reader) (*Table, error) {
	headerCh := make(chan []string)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	// The header arrives before any row; resolve columns first so row
	// conversion never races the header.
	cols := map[string]int{}
	select {
	case header := <-headerCh:
		for i, name := range header {
			key := strings.ToLower(strings.TrimSpace(name))
			if canon, known := columnAliases[key]; known {
				if _, taken := cols[canon]; !taken {
					cols[canon] = i
				}
			}
		}
	case _, ok := <-rowCh:
		// rowCh closing before the header means empty or broken input;
		// a data row cannot arrive first because the producer sends the
		// header synchronously.
		if !ok {
			if err := <-errCh; err != nil {
				return nil, err
			}
			return nil, eris.New("trials: empty dataset")
		}
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "trials: load cancelled")
	}
	if len(cols) == 0 {
		return nil, eris.New("trials: no recognized columns in header")
	}

	var rows []model.Trial
	for row := range rowCh {
		if tr, ok := rowToTrial(row, cols); ok {
			rows = append(rows, tr)
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	zap.L().Info("trials: dataset loaded", zap.Int("rows", len(rows)))
	return New(rows), nil
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func rowToTrial(row []string, cols map[string]int) (model.Trial, bool) {
	id := cell(row, cols, "nct_id")
	if id == "" {
		return model.Trial{}, false
	}

	tr := model.Trial{
		NCTID:           id,
		Title:           cell(row, cols, "title"),
		URL:             cell(row, cols, "url"),
		Status:          model.ParseRecruitmentStatus(cell(row, cols, "status")),
		Conditions:      splitList(cell(row, cols, "conditions")),
		Sex:             parseSexCell(cell(row, cols, "sex")),
		Phases:          splitList(cell(row, cols, "phases")),
		StudyType:       cell(row, cols, "study_type"),
		Locations:       splitList(cell(row, cols, "locations")),
		EligibilityText: cell(row, cols, "eligibility"),
	}

	tr.MinAge = parseAgeCell(cell(row, cols, "min_age"))
	tr.MaxAge = parseAgeCell(cell(row, cols, "max_age"))
	if tr.MinAge == 0 && tr.MaxAge == 0 {
		// Portal exports carry a single "Age" column like
		// "18 Years to 75 Years (Adult, Older Adult)".
		tr.MinAge, tr.MaxAge = parseAgeRangeCell(cell(row, cols, "age"))
	}

	return tr, true
}

// splitList splits multi-valued registry cells on the separators the
// export uses ("|" in v2, ";" in the portal).
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSexCell(s string) model.Sex {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return model.SexMale
	case "female", "f":
		return model.SexFemale
	case "", "all", "both":
		return model.SexAll
	default:
		return model.SexAll
	}
}

var ageCellPattern = regexp.MustCompile(`(\d{1,3})\s*years?`)

// parseAgeCell reads cells like "18 Years". Months/weeks round down to 0,
// which the matcher treats as unrestricted; pediatric bounds below one
// year are out of scope for this dataset.
func parseAgeCell(s string) int {
	m := ageCellPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

var ageRangePattern = regexp.MustCompile(`(\d{1,3})\s*years?\s*to\s*(\d{1,3})\s*years?`)

func parseAgeRangeCell(s string) (int, int) {
	t := strings.ToLower(s)
	if m := ageRangePattern.FindStringSubmatch(t); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return lo, hi
	}
	// "18 Years and older" style: single bound.
	if strings.Contains(t, "older") || strings.Contains(t, "and over") {
		return parseAgeCell(t), 0
	}
	if strings.Contains(t, "younger") || strings.Contains(t, "and under") {
		return 0, parseAgeCell(t)
	}
	return 0, 0
}
