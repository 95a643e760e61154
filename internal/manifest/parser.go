package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/technostationary/mediabulk/pkg/models"
)

// ManifestError reports a malformed or unusable manifest. It aborts the
// run before matching starts.
type ManifestError struct {
	Msg string
}

func (e *ManifestError) Error() string {
	return "manifest: " + e.Msg
}

// Logical identifies a recognized manifest column.
type Logical string

const (
	ColSKU   Logical = "sku"
	ColImage Logical = "image"
	ColRef   Logical = "ref"
	ColName  Logical = "name"
)

// synonyms maps each logical column to the header names that select it.
// Listed order is priority order: an earlier logical column claims a
// conflicting header first.
var synonyms = []struct {
	col      Logical
	required bool
	names    []string
}{
	{ColSKU, true, []string{"sku", "reference", "ref_code"}},
	{ColImage, true, []string{"image", "image name", "image_name", "filename", "file", "picture", "photo"}},
	{ColRef, false, []string{"ref"}},
	{ColName, false, []string{"name", "title", "product_name"}},
}

// Manifest is the parsed product/image listing.
type Manifest struct {
	Rows    []models.ManifestRow
	Skipped int                // data rows dropped for empty required fields
	Columns map[Logical]string // detected header cell per logical column
}

// Parse reads a comma-delimited manifest. The first non-empty line is
// the header; columns are detected by case-insensitive synonym match.
func Parse(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true // tolerate operator-produced spreadsheets
	reader.FieldsPerRecord = -1

	// Records are read one at a time to capture the raw file line of
	// each: the csv reader silently drops fully blank lines, so record
	// position alone misstates source line numbers.
	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ManifestError{fmt.Sprintf("failed to read delimited input: %v", err)}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return build(records, lines)
}

// ParseFile reads a manifest from disk, dispatching on extension:
// .xlsx manifests go through the spreadsheet reader, everything else is
// treated as CSV.
func ParseFile(path string) (*Manifest, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ParseXLSX(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// build runs header detection and row extraction over raw records. The
// same path serves CSV and XLSX input; lines carries the 1-based source
// line of each record.
func build(records [][]string, lines []int) (*Manifest, error) {
	// Skip leading empty records; the first non-empty one is the header.
	start := 0
	for start < len(records) && isEmptyRecord(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, &ManifestError{"missing required column: sku"}
	}

	header := records[start]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	indexes, names, err := detectColumns(header)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{Columns: names}
	skuIdx := indexes[ColSKU]
	imageIdx := indexes[ColImage]
	refIdx, hasRef := indexes[ColRef]
	nameIdx, hasName := indexes[ColName]

	for i, record := range records[start+1:] {
		if isEmptyRecord(record) {
			continue
		}

		row := models.ManifestRow{
			SKU:            cell(record, skuIdx),
			Image:          cell(record, imageIdx),
			SourceRowIndex: lines[start+1+i],
		}
		if row.SKU == "" || row.Image == "" {
			manifest.Skipped++
			continue
		}
		if hasRef {
			row.Ref = cell(record, refIdx)
		}
		if hasName {
			row.Name = cell(record, nameIdx)
		}
		manifest.Rows = append(manifest.Rows, row)
	}

	return manifest, nil
}

// detectColumns resolves each logical column to a header index. First
// synonym match wins per logical column; a header cell claimed by an
// earlier logical column is not offered to later ones.
func detectColumns(header []string) (map[Logical]int, map[Logical]string, error) {
	indexes := make(map[Logical]int)
	names := make(map[Logical]string)
	claimed := make(map[int]bool)

	for _, entry := range synonyms {
		idx := -1
	scan:
		for _, name := range entry.names {
			for i, col := range header {
				if claimed[i] {
					continue
				}
				if strings.EqualFold(strings.TrimSpace(col), name) {
					idx = i
					break scan
				}
			}
		}
		if idx < 0 {
			if entry.required {
				return nil, nil, &ManifestError{fmt.Sprintf("missing required column: %s", entry.col)}
			}
			continue
		}
		claimed[idx] = true
		indexes[entry.col] = idx
		names[entry.col] = strings.TrimSpace(header[idx])
	}

	return indexes, names, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isEmptyRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// HasRef reports whether the manifest carries a detected ref column.
func (m *Manifest) HasRef() bool {
	_, ok := m.Columns[ColRef]
	return ok
}
