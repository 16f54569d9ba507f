package trials

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean_DropsBadRows(t *testing.T) {
	in := strings.Join([]string{
		"NCT Number,Study Title,Conditions",
		"NCT00000001,Good Study,Breast Cancer",
		"NCT00000002,Short Row",
		`NCT00000003,<html>Service Unavailable</html>,Lung Cancer`,
		"NCT00000004,Another Good Study,Melanoma",
		"",
	}, "\n")

	var out bytes.Buffer
	stats, err := Clean(strings.NewReader(in), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 2, stats.Dropped)

	got := out.String()
	assert.Contains(t, got, "NCT Number,Study Title,Conditions")
	assert.Contains(t, got, "NCT00000001")
	assert.Contains(t, got, "NCT00000004")
	assert.NotContains(t, got, "NCT00000002")
	assert.NotContains(t, got, "<html>")
}

func TestClean_CleanOutputLoads(t *testing.T) {
	in := strings.Join([]string{
		"NCT Number,Study Title,Conditions",
		"NCT00000001,Good Study,Breast Cancer",
		"NCT00000002,Short Row",
	}, "\n")

	var out bytes.Buffer
	_, err := Clean(strings.NewReader(in), &out)
	require.NoError(t, err)

	table, err := LoadCSV(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestClean_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	_, err := Clean(strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}
