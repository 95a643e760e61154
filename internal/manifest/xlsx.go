package manifest

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads a manifest from the first sheet of an xlsx workbook.
// Header detection and row rules are identical to the CSV path.
func ParseXLSX(path string) (*Manifest, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ManifestError{"workbook has no sheets"}
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	// GetRows keeps blank rows in place, so sheet position is the
	// source line.
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return build(rows, lines)
}
