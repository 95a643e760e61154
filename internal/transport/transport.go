package transport

import (
	"context"
	"fmt"

	"github.com/technostationary/mediabulk/pkg/models"
)

// MediaContent is the inline image payload of a media entry.
type MediaContent struct {
	Base64EncodedData string `json:"base64_encoded_data"`
	Type              string `json:"type"`
	Name              string `json:"name"`
}

// MediaEntry is the wire record submitted per image. Field shape
// follows the remote media endpoint contract.
type MediaEntry struct {
	MediaType string       `json:"media_type"`
	Label     string       `json:"label"`
	Position  int          `json:"position"`
	Disabled  bool         `json:"disabled"`
	Types     []string     `json:"types"`
	Content   MediaContent `json:"content"`
}

// Error is a typed transport failure. Kind drives the retry decision.
type Error struct {
	Kind    models.FailureKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %s", e.Kind, e.Message)
}

// Retryable reports whether a failure kind is safe to retry. Auth,
// unknown-sku and oversize failures never change on retry.
func Retryable(kind models.FailureKind) bool {
	switch kind {
	case models.FailureRateLimited, models.FailureNetwork, models.FailureServer:
		return true
	}
	return false
}

// Uploader submits one media entry for a product and returns the
// remote identifier assigned to it.
type Uploader interface {
	UploadProductMedia(ctx context.Context, sku string, entry MediaEntry) (string, error)
}

// Nop is an uploader that accepts everything without a network. Used
// for dry runs.
type Nop struct{}

func (Nop) UploadProductMedia(ctx context.Context, sku string, entry MediaEntry) (string, error) {
	return "", nil
}
