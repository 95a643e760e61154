package magento

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/technostationary/mediabulk/internal/transport"
	"github.com/technostationary/mediabulk/pkg/models"
)

func testEntry() transport.MediaEntry {
	return transport.MediaEntry{
		MediaType: "image",
		Label:     "front",
		Position:  0,
		Types:     []string{"image", "small_image", "thumbnail"},
		Content: transport.MediaContent{
			Base64EncodedData: "aGVsbG8=",
			Type:              "image/jpeg",
			Name:              "front.jpg",
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, Token: "secret"})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return client, server
}

func TestUploadProductMediaSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]transport.MediaEntry

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("4711"))
	})

	id, err := client.UploadProductMedia(context.Background(), "A/100", testEntry())
	if err != nil {
		t.Fatalf("UploadProductMedia: %v", err)
	}
	if id != "4711" {
		t.Errorf("remote id = %q", id)
	}
	if gotPath != "/rest/all/V1/products/A%2F100/media" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}

	entry := gotBody["entry"]
	if entry.MediaType != "image" || entry.Content.Name != "front.jpg" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Content.Base64EncodedData != "aGVsbG8=" {
		t.Errorf("content data = %q", entry.Content.Base64EncodedData)
	}
	if entry.Disabled {
		t.Error("disabled must be false")
	}
}

func TestUploadProductMediaStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   models.FailureKind
	}{
		{http.StatusUnauthorized, models.FailureAuth},
		{http.StatusForbidden, models.FailureAuth},
		{http.StatusNotFound, models.FailureNotFoundSKU},
		{http.StatusRequestEntityTooLarge, models.FailurePayloadTooLarge},
		{http.StatusTooManyRequests, models.FailureRateLimited},
		{http.StatusInternalServerError, models.FailureServer},
		{http.StatusBadGateway, models.FailureServer},
		{http.StatusBadRequest, models.FailureUnknown},
	}
	for _, tc := range cases {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"message":"nope"}`))
		})

		_, err := client.UploadProductMedia(context.Background(), "A-1", testEntry())
		var te *transport.Error
		if !errors.As(err, &te) {
			t.Fatalf("status %d: expected transport.Error, got %v", tc.status, err)
		}
		if te.Kind != tc.want {
			t.Errorf("status %d: kind = %s, want %s", tc.status, te.Kind, tc.want)
		}
	}
}

func TestUploadProductMediaNetworkFailure(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.UploadProductMedia(context.Background(), "A-1", testEntry())
	var te *transport.Error
	if !errors.As(err, &te) {
		t.Fatalf("expected transport.Error, got %v", err)
	}
	if te.Kind != models.FailureNetwork {
		t.Errorf("kind = %s", te.Kind)
	}
}

func TestConnectRequiresToken(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://shop.example.com", TokenEnv: "MEDIABULK_TEST_NO_SUCH_TOKEN"})
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestRetryable(t *testing.T) {
	retryable := []models.FailureKind{models.FailureRateLimited, models.FailureNetwork, models.FailureServer}
	for _, kind := range retryable {
		if !transport.Retryable(kind) {
			t.Errorf("%s should be retryable", kind)
		}
	}
	terminal := []models.FailureKind{
		models.FailureAuth, models.FailureNotFoundSKU,
		models.FailurePayloadTooLarge, models.FailureUnknown, models.FailureProcessing,
	}
	for _, kind := range terminal {
		if transport.Retryable(kind) {
			t.Errorf("%s should not be retryable", kind)
		}
	}
}
