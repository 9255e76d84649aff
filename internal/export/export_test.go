package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func sampleResult() *models.RunResult {
	drill := models.ProductRecord{
		Name:          "M18 FUEL Drill, 1/2 in.",
		CurrentPrice:  price("149"),
		OriginalPrice: price("199.5"),
		Link:          "https://www.homedepot.com/p/drill/1",
		ImageURL:      "https://images.example.com/1_400.jpg",
		Page:          1,
	}
	tape := models.ProductRecord{
		Name:     "Tape Measure",
		Link:     "#",
		ImageURL: models.PlaceholderImageURL,
		Page:     1,
	}
	dup := drill
	dup.Page = 2

	return &models.RunResult{
		Keyword:      "milwaukee",
		StartURL:     "https://www.homedepot.com/s/milwaukee",
		PagesFetched: 2,
		Unique:       []models.ProductRecord{drill, tape},
		Duplicates:   []models.ProductRecord{dup},
		Outcome:      models.OutcomeDone,
		StopReason:   models.StopMaxPages,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		expected Format
		wantErr  bool
	}{
		{"table", FormatTable, false},
		{"CSV", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"", FormatTable, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expected, got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult().Unique))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"name", "current_price", "original_price", "link", "image_url", "page"}, rows[0])
	assert.Equal(t, []string{"M18 FUEL Drill, 1/2 in.", "149.00", "199.50", "https://www.homedepot.com/p/drill/1", "https://images.example.com/1_400.jpg", "1"}, rows[1])
	assert.Equal(t, []string{"Tape Measure", "", "", "#", models.PlaceholderImageURL, "1"}, rows[2])
}

func TestWrite_CSVWithDuplicates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleResult(), Options{ShowDuplicates: true}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2", rows[3][5])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "milwaukee", out["keyword"])
	assert.Equal(t, "max_pages", out["stop_reason"])
	assert.Equal(t, float64(2), out["unique_count"])
	assert.Equal(t, float64(1), out["duplicate_count"])

	unique := out["unique"].([]interface{})
	first := unique[0].(map[string]interface{})
	assert.Equal(t, "149", first["current_price"])
	second := unique[1].(map[string]interface{})
	assert.Nil(t, second["current_price"])
}

func TestWriteJSON_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &models.RunResult{Outcome: models.OutcomeFailed, Error: "timeout"}))

	assert.Contains(t, buf.String(), `"unique": []`)
	assert.Contains(t, buf.String(), `"duplicates": []`)
	assert.Contains(t, buf.String(), `"error": "timeout"`)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResult(), Options{}))
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "M18 FUEL Drill, 1/2 in.")
	assert.Contains(t, lines[1], "$149.00")
	assert.Contains(t, lines[1], "$199.50")
	assert.Contains(t, lines[2], "N/A")
	assert.NotContains(t, out, "DUPLICATES")
	assert.Contains(t, out, "2 unique, 1 duplicates, 2 page(s) fetched, stopped: max_pages")
}

func TestWriteTable_ShowDuplicates(t *testing.T) {
	result := sampleResult()
	result.Error = "fetch failed"

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, result, Options{ShowDuplicates: true}))

	assert.Contains(t, buf.String(), "DUPLICATES")
	assert.Contains(t, buf.String(), "error: fetch failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "äääääáá...", truncate("äääääááááá ü", 10))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "results.csv")

	require.NoError(t, WriteFile(path, FormatCSV, sampleResult(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "name,current_price"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestWriteFile_UnknownFormatLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.xml")

	err := WriteFile(path, Format("xml"), sampleResult(), Options{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
