package models

import "time"

// ManifestRow is one product line from the import manifest.
type ManifestRow struct {
	SKU            string `json:"sku"`
	Image          string `json:"image"`
	Ref            string `json:"ref,omitempty"`
	Name           string `json:"name,omitempty"`
	SourceRowIndex int    `json:"source_row_index"`
}

// ImageFile is a validated candidate image. Immutable after intake.
type ImageFile struct {
	OriginalName string `json:"original_name"`
	Bytes        []byte `json:"-"`
	DeclaredType string `json:"declared_type"`
	SizeBytes    int64  `json:"size_bytes"`
}

// Strategy identifies which matching strategy claimed an image.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategyNormalized Strategy = "normalized"
	StrategyPartial    Strategy = "partial"
	StrategyFuzzy      Strategy = "fuzzy"
	StrategyRef        Strategy = "ref"
)

// Match is one (product, image) assignment produced by the matcher.
type Match struct {
	SKU               string     `json:"sku"`
	Ref               string     `json:"ref,omitempty"`
	File              *ImageFile `json:"file"`
	Strategy          Strategy   `json:"strategy"`
	Similarity        float64    `json:"similarity"`
	ImageIndex        int        `json:"image_index"`
	TotalImagesForSKU int        `json:"total_images_for_sku"`
	IsMainImage       bool       `json:"is_main_image"`
	FinalName         string     `json:"final_name"`
}

// TransportPayload is the upload-ready form of a matched image. It is
// derived from the ImageFile, never a mutation of it.
type TransportPayload struct {
	DeclaredName string
	DeclaredType string
	Bytes        []byte
}

// FailureKind classifies why an item could not be uploaded.
type FailureKind string

const (
	FailureAuth            FailureKind = "auth"
	FailureNotFoundSKU     FailureKind = "not_found_sku"
	FailurePayloadTooLarge FailureKind = "payload_too_large"
	FailureRateLimited     FailureKind = "rate_limited"
	FailureServer          FailureKind = "server"
	FailureNetwork         FailureKind = "network"
	FailureProcessing      FailureKind = "processing_failed"
	FailureUnknown         FailureKind = "unknown"
)

// UploadStatus is the terminal state of one uploaded item.
type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadError   UploadStatus = "error"
)

// UploadResult is the terminal record for one Match.
type UploadResult struct {
	Match       Match        `json:"match"`
	Status      UploadStatus `json:"status"`
	RemoteID    string       `json:"remote_id,omitempty"`
	Kind        FailureKind  `json:"kind,omitempty"`
	Message     string       `json:"message,omitempty"`
	Attempts    int          `json:"attempts"`
	AttemptedAt time.Time    `json:"attempted_at"`
}

// Stage identifies which phase of the run a progress event belongs to.
type Stage string

const (
	StageMatching    Stage = "matching"
	StageCompressing Stage = "compressing"
	StageUploading   Stage = "uploading"
	StageDone        Stage = "done"
)

// EventStatus is the state reported by a progress event.
type EventStatus string

const (
	EventRunning EventStatus = "running"
	EventSuccess EventStatus = "success"
	EventError   EventStatus = "error"
)

// ProgressEvent is one observation of run progress. Current is
// monotonically non-decreasing across a run.
type ProgressEvent struct {
	Current  int         `json:"current"`
	Total    int         `json:"total"`
	SKU      string      `json:"sku,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	Stage    Stage       `json:"stage"`
	Status   EventStatus `json:"status"`
}

// ProgressSink receives progress events. Returning true requests
// cooperative cancellation: no further items are scheduled.
type ProgressSink func(ProgressEvent) bool

// Stats summarizes one matching pass.
type Stats struct {
	ByStrategy             map[Strategy]int `json:"by_strategy"`
	UniqueProducts         int              `json:"unique_products"`
	MultipleImagesProducts int              `json:"multiple_images_products"`
	AverageSimilarity      float64          `json:"average_similarity"`
}

// Summary is the terminal report of a full run.
type Summary struct {
	RunID             string           `json:"run_id"`
	Matched           int              `json:"matched"`
	Uploaded          int              `json:"uploaded"`
	Failed            int              `json:"failed"`
	Skipped           int              `json:"skipped"`
	Strategies        map[Strategy]int `json:"strategies"`
	AverageSimilarity float64          `json:"average_similarity"`
	StartedAt         time.Time        `json:"started_at"`
	CompletedAt       time.Time        `json:"completed_at"`
}
