package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technostationary/mediabulk/internal/config"
	"github.com/technostationary/mediabulk/internal/intake"
	"github.com/technostationary/mediabulk/internal/manifest"
	"github.com/technostationary/mediabulk/internal/matcher"
	"github.com/technostationary/mediabulk/internal/normalize"
	"github.com/technostationary/mediabulk/internal/processor"
	"github.com/technostationary/mediabulk/internal/transport"
	"github.com/technostationary/mediabulk/pkg/models"
)

// Orchestrator drives a full run: manifest parse, intake, matching,
// processing and the bulk upload.
type Orchestrator struct {
	settings *config.Settings
	uploader transport.Uploader
}

// New creates an orchestrator. The uploader is the single outbound
// dependency; tests and dry runs substitute their own.
func New(settings *config.Settings, uploader transport.Uploader) *Orchestrator {
	return &Orchestrator{settings: settings, uploader: uploader}
}

// RunOptions configures one run.
type RunOptions struct {
	ManifestPath string
	ImagesDir    string
	DryRun       bool
	OnProgress   models.ProgressSink
}

// RunResult is everything a run produced.
type RunResult struct {
	RunID         string
	Manifest      *manifest.Manifest
	RejectedFiles []intake.Rejected
	Match         *matcher.Result
	Results       []models.UploadResult
	Summary       models.Summary
	Cancelled     bool
}

// Prepare parses the manifest, validates the image directory and runs
// the matcher. No network is touched. Used by dry runs and as the
// first half of Run.
func (o *Orchestrator) Prepare(manifestPath, imagesDir string) (*manifest.Manifest, []intake.Rejected, *matcher.Result, error) {
	if err := o.settings.Validate(); err != nil {
		return nil, nil, nil, err
	}

	man, err := manifest.ParseFile(manifestPath)
	if err != nil {
		return nil, nil, nil, err
	}

	files, rejected, err := intake.ScanDir(imagesDir, intake.Options{
		AllowedTypes:  o.settings.Upload.AllowedTypes,
		MaxFileBytes:  o.settings.Upload.MaxFileBytes,
		AllowOversize: o.settings.Upload.ProcessImages,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return man, rejected, matcher.Match(man, files, o.settings), nil
}

// Run executes the whole pipeline. Fatal errors (manifest, config,
// image directory I/O) abort with an error; per-item failures land in
// the results instead.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	startedAt := time.Now()

	man, rejected, matchResult, err := o.Prepare(opts.ManifestPath, opts.ImagesDir)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:         uuid.NewString(),
		Manifest:      man,
		RejectedFiles: rejected,
		Match:         matchResult,
	}

	uploader := o.uploader
	if opts.DryRun {
		uploader = transport.Nop{}
	}

	progress := &tracker{sink: opts.OnProgress, total: len(matchResult.Matches)}
	progress.emit(models.StageMatching, models.EventRunning, "", "", false)

	result.Results, result.Cancelled = o.uploadAll(ctx, matchResult.Matches, uploader, progress)

	status := models.EventSuccess
	for _, r := range result.Results {
		if r.Status == models.UploadError {
			status = models.EventError
			break
		}
	}
	progress.emit(models.StageDone, status, "", "", false)

	result.Summary = buildSummary(result, startedAt)
	return result, nil
}

// uploadAll runs per-item processing and upload with up to BatchSize
// workers. The returned results preserve match order regardless of
// completion order; on cancellation only started items are included.
func (o *Orchestrator) uploadAll(ctx context.Context, matches []models.Match,
	uploader transport.Uploader, progress *tracker) ([]models.UploadResult, bool) {

	if len(matches) == 0 {
		return nil, progress.isCancelled()
	}

	workers := o.settings.Upload.BatchSize
	if workers > len(matches) {
		workers = len(matches)
	}

	type job struct {
		idx   int
		match models.Match
	}

	pacer := transport.NewPacer(time.Duration(o.settings.Upload.InterItemDelayMs) * time.Millisecond)
	results := make([]models.UploadResult, len(matches))
	recorded := make([]bool, len(matches))
	jobs := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				// A send can already be in flight when the cancel flag
				// flips; drop jobs that have not started yet.
				if progress.isCancelled() {
					continue
				}
				res, ok := o.uploadOne(ctx, j.match, uploader, pacer, progress)
				results[j.idx] = res
				recorded[j.idx] = ok
			}
		}()
	}

dispatch:
	for i, m := range matches {
		if progress.isCancelled() {
			break
		}
		select {
		case jobs <- job{idx: i, match: m}:
		case <-ctx.Done():
			progress.cancel()
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	ordered := make([]models.UploadResult, 0, len(matches))
	for i := range results {
		if recorded[i] {
			ordered = append(ordered, results[i])
		}
	}
	return ordered, progress.isCancelled()
}

// uploadOne processes and uploads a single match. The bool is false
// only when the surrounding context died before the item produced a
// meaningful result.
func (o *Orchestrator) uploadOne(ctx context.Context, m models.Match,
	uploader transport.Uploader, pacer *transport.Pacer, progress *tracker) (models.UploadResult, bool) {

	result := models.UploadResult{Match: m, AttemptedAt: time.Now()}

	if o.settings.Upload.ProcessImages {
		progress.emit(models.StageCompressing, models.EventRunning, m.SKU, m.File.OriginalName, false)
	}
	payload, err := processor.Process(m.File, m.FinalName, o.settings.Upload)
	if err != nil {
		result.Status = models.UploadError
		result.Kind = failureKind(err)
		result.Message = err.Error()
		result.Attempts = 0
		progress.advanceDone(models.EventError, m.SKU, m.File.OriginalName)
		return result, true
	}

	progress.emit(models.StageUploading, models.EventRunning, m.SKU, m.File.OriginalName, false)

	entry := buildEntry(m, payload, o.settings.Upload.MainImageRoles)
	backoff := time.Duration(o.settings.Upload.Retry.BackoffBaseMs) * time.Millisecond

	var remoteID string
	attempts := 0
	for {
		if err = pacer.Wait(ctx); err != nil {
			return models.UploadResult{}, false
		}
		attempts++
		remoteID, err = uploader.UploadProductMedia(ctx, m.SKU, entry)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return models.UploadResult{}, false
		}
		if attempts >= o.settings.Upload.Retry.MaxAttempts || !transport.Retryable(failureKind(err)) {
			break
		}
		select {
		case <-time.After(backoff << (attempts - 1)):
		case <-ctx.Done():
			return models.UploadResult{}, false
		}
	}

	result.Attempts = attempts
	if err != nil {
		result.Status = models.UploadError
		result.Kind = failureKind(err)
		result.Message = err.Error()
		progress.advanceDone(models.EventError, m.SKU, m.File.OriginalName)
		return result, true
	}

	result.Status = models.UploadSuccess
	result.RemoteID = remoteID
	progress.advanceDone(models.EventSuccess, m.SKU, m.File.OriginalName)
	return result, true
}

// buildEntry shapes the wire record for one image. The main image
// carries the configured role set; every other image is a plain
// gallery entry.
func buildEntry(m models.Match, payload *models.TransportPayload, mainRoles []string) transport.MediaEntry {
	roles := []string{"image"}
	if m.IsMainImage {
		roles = mainRoles
	}
	return transport.MediaEntry{
		MediaType: "image",
		Label:     normalize.StripExt(payload.DeclaredName),
		Position:  m.ImageIndex,
		Disabled:  false,
		Types:     roles,
		Content: transport.MediaContent{
			Base64EncodedData: base64.StdEncoding.EncodeToString(payload.Bytes),
			Type:              payload.DeclaredType,
			Name:              payload.DeclaredName,
		},
	}
}

func failureKind(err error) models.FailureKind {
	var pe *processor.Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var te *transport.Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return models.FailureUnknown
}

func buildSummary(result *RunResult, startedAt time.Time) models.Summary {
	summary := models.Summary{
		RunID:             result.RunID,
		Matched:           len(result.Match.Matches),
		Skipped:           result.Manifest.Skipped + len(result.RejectedFiles),
		Strategies:        result.Match.Stats.ByStrategy,
		AverageSimilarity: result.Match.Stats.AverageSimilarity,
		StartedAt:         startedAt,
		CompletedAt:       time.Now(),
	}
	for _, r := range result.Results {
		if r.Status == models.UploadSuccess {
			summary.Uploaded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// tracker serializes progress emission. Current is monotonically
// non-decreasing; a sink returning true flips the cancel flag.
type tracker struct {
	mu        sync.Mutex
	sink      models.ProgressSink
	current   int
	total     int
	cancelled bool
}

func (t *tracker) emit(stage models.Stage, status models.EventStatus, sku, file string, advance bool) {
	// The sink runs under the lock so that concurrent workers cannot
	// deliver events with a regressing Current.
	t.mu.Lock()
	defer t.mu.Unlock()
	if advance {
		t.current++
	}
	ev := models.ProgressEvent{
		Current:  t.current,
		Total:    t.total,
		SKU:      sku,
		FileName: file,
		Stage:    stage,
		Status:   status,
	}
	if t.sink != nil && t.sink(ev) {
		t.cancelled = true
	}
}

// advanceDone reports one finished item: Current advances exactly once
// per match, on its terminal per-item event.
func (t *tracker) advanceDone(status models.EventStatus, sku, file string) {
	t.emit(models.StageDone, status, sku, file, true)
}

func (t *tracker) cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

func (t *tracker) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
