package magento

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/technostationary/mediabulk/internal/transport"
	"github.com/technostationary/mediabulk/pkg/models"
)

// Config holds Magento REST connection settings.
type Config struct {
	BaseURL   string // e.g. "https://shop.example.com"
	Token     string // bearer token; resolved from TokenEnv when empty
	TokenEnv  string // environment variable holding the token
	StoreCode string // REST store scope, default "all"
	Timeout   time.Duration
}

// Client uploads product media through the Magento 2 REST API.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates a Magento media client.
func NewClient(cfg Config) *Client {
	if cfg.StoreCode == "" {
		cfg.StoreCode = "all"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Connect resolves credentials and validates the configuration.
func (c *Client) Connect(ctx context.Context) error {
	token := c.config.Token
	if token == "" && c.config.TokenEnv != "" {
		token = os.Getenv(c.config.TokenEnv)
	}
	if token == "" {
		return fmt.Errorf("magento access token not configured")
	}
	c.config.Token = token

	if c.config.BaseURL == "" {
		return fmt.Errorf("magento base URL not configured")
	}
	c.config.BaseURL = strings.TrimRight(c.config.BaseURL, "/")
	return nil
}

// UploadProductMedia submits one media entry for the given sku and
// returns the remote entry id.
func (c *Client) UploadProductMedia(ctx context.Context, sku string, entry transport.MediaEntry) (string, error) {
	endpoint := fmt.Sprintf("%s/rest/%s/V1/products/%s/media",
		c.config.BaseURL, c.config.StoreCode, url.PathEscape(sku))

	body, err := json.Marshal(map[string]interface{}{"entry": entry})
	if err != nil {
		return "", &transport.Error{Kind: models.FailureUnknown, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &transport.Error{Kind: models.FailureUnknown, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &transport.Error{Kind: models.FailureNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &transport.Error{
			Kind:    kindForStatus(resp.StatusCode),
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, responseMessage(data)),
		}
	}

	// The media endpoint answers with the bare entry id.
	return strings.Trim(strings.TrimSpace(string(data)), `"`), nil
}

// kindForStatus maps HTTP status codes onto the failure taxonomy.
func kindForStatus(status int) models.FailureKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.FailureAuth
	case status == http.StatusNotFound:
		return models.FailureNotFoundSKU
	case status == http.StatusRequestEntityTooLarge:
		return models.FailurePayloadTooLarge
	case status == http.StatusTooManyRequests:
		return models.FailureRateLimited
	case status >= 500:
		return models.FailureServer
	default:
		return models.FailureUnknown
	}
}

// responseMessage extracts Magento's error message when the body is
// its usual {"message": "..."} envelope.
func responseMessage(data []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
