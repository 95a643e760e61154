package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/technostationary/mediabulk/internal/orchestrator"
	"github.com/technostationary/mediabulk/pkg/models"
)

// Report is the persisted record of one run.
type Report struct {
	Summary        models.Summary        `json:"summary"`
	Results        []models.UploadResult `json:"results"`
	UnmatchedRows  []models.ManifestRow  `json:"unmatched_rows,omitempty"`
	UnmatchedFiles []string              `json:"unmatched_files,omitempty"`
	RejectedFiles  []RejectedFile        `json:"rejected_files,omitempty"`
	Cancelled      bool                  `json:"cancelled,omitempty"`
}

// RejectedFile names an image that never entered matching and why.
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FromRun flattens a run result into its report form.
func FromRun(run *orchestrator.RunResult) *Report {
	rep := &Report{
		Summary:   run.Summary,
		Results:   run.Results,
		Cancelled: run.Cancelled,
	}
	if run.Match != nil {
		rep.UnmatchedRows = run.Match.UnmatchedRows
		for _, f := range run.Match.UnmatchedFiles {
			rep.UnmatchedFiles = append(rep.UnmatchedFiles, f.OriginalName)
		}
	}
	for _, r := range run.RejectedFiles {
		rep.RejectedFiles = append(rep.RejectedFiles, RejectedFile{Name: r.Name, Reason: r.Err.Error()})
	}
	return rep
}

// Write persists the report; the extension picks the format (.json or
// .csv).
func Write(path string, rep *Report) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return writeJSON(path, rep)
	case ".csv":
		return writeCSV(path, rep)
	default:
		return fmt.Errorf("unsupported report format %q: use .json or .csv", filepath.Ext(path))
	}
}

// DefaultPath returns a timestamped report filename inside dir.
func DefaultPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_150405")
	return filepath.Join(dir, fmt.Sprintf("report_%s.json", timestamp))
}

func writeJSON(path string, rep *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"sku", "file", "final_name", "strategy", "similarity",
	"image_index", "main_image", "status", "remote_id",
	"attempts", "failure_kind", "message",
}

func writeCSV(path string, rep *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	for _, r := range rep.Results {
		record := []string{
			r.Match.SKU,
			r.Match.File.OriginalName,
			r.Match.FinalName,
			string(r.Match.Strategy),
			strconv.FormatFloat(r.Match.Similarity, 'f', 2, 64),
			strconv.Itoa(r.Match.ImageIndex),
			strconv.FormatBool(r.Match.IsMainImage),
			string(r.Status),
			r.RemoteID,
			strconv.Itoa(r.Attempts),
			string(r.Kind),
			r.Message,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
