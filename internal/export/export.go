// Package export writes match results to CSV and XLSX files for sharing
// with clinical coordinators.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/oncomatch/trial-screener/internal/model"
)

var resultHeader = []string{
	"Rank", "NCT ID", "Title", "Status", "Conditions", "Phases",
	"Confidence", "Explanation", "Eligibility Assessment", "Distance (km)",
}

// resultRow flattens one match result for tabular output.
func resultRow(rank int, r *model.MatchResult) []string {
	t := r.Trial

	assessment := ""
	if r.Eligibility != nil {
		assessment = r.Eligibility.OverallAssessment
	}
	distance := ""
	if r.DistanceKm > 0 {
		distance = fmt.Sprintf("%.1f", r.DistanceKm)
	}

	return []string{
		fmt.Sprintf("%d", rank),
		t.NCTID,
		t.Title,
		string(t.Status),
		strings.Join(t.Conditions, "; "),
		strings.Join(t.Phases, "; "),
		fmt.Sprintf("%.2f", r.Confidence),
		r.ExplanationText(),
		assessment,
		distance,
	}
}

// WriteCSV writes results to w in rank order.
func WriteCSV(w io.Writer, results []model.MatchResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(resultHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range results {
		if err := cw.Write(resultRow(i+1, &results[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i+1)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteCSVFile writes results to a CSV file at path.
func WriteCSVFile(path string, results []model.MatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close()

	return WriteCSV(f, results)
}

// WriteXLSX writes results to w as a single-sheet workbook.
func WriteXLSX(w io.Writer, results []model.MatchResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Matches")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, resultHeader)
	for i := range results {
		addRow(sheet, resultRow(i+1, &results[i]))
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// WriteXLSXFile writes results to an XLSX file at path.
func WriteXLSXFile(path string, results []model.MatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create xlsx file")
	}
	defer f.Close()

	return WriteXLSX(f, results)
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
