package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".mediabulk"
	DefaultConfigFile = "config.yaml"
)

// ConfigError reports an invalid settings value at construction time.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Msg)
}

// Strategies toggles the matching strategies. Priority order is fixed:
// exact, normalized, partial, fuzzy, ref.
type Strategies struct {
	Exact      bool `yaml:"exact"`
	Normalized bool `yaml:"normalized"`
	Partial    bool `yaml:"partial"`
	Fuzzy      bool `yaml:"fuzzy"`
	Ref        bool `yaml:"ref"`
}

// Thresholds holds matching tunables.
type Thresholds struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"` // accepted range [0.5, 1.0]
	PartialLength  int     `yaml:"partial_length"`  // prefix length for the partial strategy
}

// FileHandling holds filename treatment options.
type FileHandling struct {
	MultipleImages bool `yaml:"multiple_images"`
	CaseSensitive  bool `yaml:"case_sensitive"`
}

// Retry bounds transport retries for retryable failures.
type Retry struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
}

// Upload holds processing and upload policy.
type Upload struct {
	ProcessImages    bool     `yaml:"process_images"`
	TargetLongEdgePx int      `yaml:"target_long_edge_px"`
	ImageQuality     float64  `yaml:"image_quality"` // accepted range [0.5, 1.0]
	BatchSize        int      `yaml:"batch_size"`
	InterItemDelayMs int      `yaml:"inter_item_delay_ms"`
	MaxFileBytes     int64    `yaml:"max_file_bytes"`
	AllowedTypes     []string `yaml:"allowed_types"`
	MainImageRoles   []string `yaml:"main_image_roles"`
	Retry            Retry    `yaml:"retry"`
}

// Endpoint holds remote media endpoint settings.
type Endpoint struct {
	BaseURL        string `yaml:"base_url"`
	TokenEnv       string `yaml:"token_env"` // environment variable holding the access token
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	StoreCode      string `yaml:"store_code"`
}

// Settings is the immutable per-run configuration consumed by the
// matcher, processor and orchestrator.
type Settings struct {
	Strategies   Strategies   `yaml:"strategies"`
	Thresholds   Thresholds   `yaml:"thresholds"`
	FileHandling FileHandling `yaml:"file_handling"`
	Upload       Upload       `yaml:"upload"`
	Endpoint     Endpoint     `yaml:"endpoint"`
}

// DefaultSettings returns settings with all documented defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Strategies: Strategies{
			Exact:      true,
			Normalized: true,
			Partial:    true,
			Fuzzy:      true,
			Ref:        true,
		},
		Thresholds: Thresholds{
			FuzzyThreshold: 0.7,
			PartialLength:  16,
		},
		FileHandling: FileHandling{
			MultipleImages: true,
			CaseSensitive:  false,
		},
		Upload: Upload{
			ProcessImages:    true,
			TargetLongEdgePx: 1920,
			ImageQuality:     0.8,
			BatchSize:        1,
			InterItemDelayMs: 500,
			MaxFileBytes:     8 << 20,
			AllowedTypes: []string{
				"image/jpeg", "image/png", "image/gif", "image/webp",
			},
			MainImageRoles: []string{"image", "small_image", "thumbnail"},
			Retry: Retry{
				MaxAttempts:   3,
				BackoffBaseMs: 500,
			},
		},
		Endpoint: Endpoint{
			TokenEnv:       "MAGENTO_ACCESS_TOKEN",
			TimeoutSeconds: 30,
			StoreCode:      "all",
		},
	}
}

var validRoles = map[string]bool{
	"image":       true,
	"small_image": true,
	"thumbnail":   true,
}

// Validate rejects out-of-range leaves. Called at construction; a run
// never starts with an invalid Settings value.
func (s *Settings) Validate() error {
	if s.Thresholds.FuzzyThreshold < 0.5 || s.Thresholds.FuzzyThreshold > 1.0 {
		return &ConfigError{"thresholds.fuzzy_threshold", "must be within [0.5, 1.0]"}
	}
	if s.Thresholds.PartialLength < 1 {
		return &ConfigError{"thresholds.partial_length", "must be at least 1"}
	}
	if s.Upload.ImageQuality < 0.5 || s.Upload.ImageQuality > 1.0 {
		return &ConfigError{"upload.image_quality", "must be within [0.5, 1.0]"}
	}
	if s.Upload.TargetLongEdgePx < 1 {
		return &ConfigError{"upload.target_long_edge_px", "must be positive"}
	}
	if s.Upload.BatchSize < 1 {
		return &ConfigError{"upload.batch_size", "must be at least 1"}
	}
	if s.Upload.InterItemDelayMs < 0 {
		return &ConfigError{"upload.inter_item_delay_ms", "must not be negative"}
	}
	if s.Upload.MaxFileBytes < 1 {
		return &ConfigError{"upload.max_file_bytes", "must be positive"}
	}
	if len(s.Upload.AllowedTypes) == 0 {
		return &ConfigError{"upload.allowed_types", "must not be empty"}
	}
	if len(s.Upload.MainImageRoles) == 0 || s.Upload.MainImageRoles[0] != "image" {
		return &ConfigError{"upload.main_image_roles", "must start with \"image\""}
	}
	for _, role := range s.Upload.MainImageRoles {
		if !validRoles[role] {
			return &ConfigError{"upload.main_image_roles", fmt.Sprintf("unknown role %q", role)}
		}
	}
	if s.Upload.Retry.MaxAttempts < 1 {
		return &ConfigError{"upload.retry.max_attempts", "must be at least 1"}
	}
	if s.Upload.Retry.BackoffBaseMs < 0 {
		return &ConfigError{"upload.retry.backoff_base_ms", "must not be negative"}
	}
	return nil
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Exists reports whether a config file is present at the default path.
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads settings from the default config file.
func Load() (*Settings, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from a specific path. A missing file yields
// the defaults; present keys override defaults leaf by leaf.
func LoadFrom(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshalling over the defaults keeps absent keys (including
	// booleans that default to true) at their default values.
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// applyDefaults fills in zero-valued leaves that an explicit empty key
// would otherwise blank out.
func applyDefaults(s *Settings) {
	defaults := DefaultSettings()

	if s.Thresholds.FuzzyThreshold == 0 {
		s.Thresholds.FuzzyThreshold = defaults.Thresholds.FuzzyThreshold
	}
	if s.Thresholds.PartialLength == 0 {
		s.Thresholds.PartialLength = defaults.Thresholds.PartialLength
	}
	if s.Upload.TargetLongEdgePx == 0 {
		s.Upload.TargetLongEdgePx = defaults.Upload.TargetLongEdgePx
	}
	if s.Upload.ImageQuality == 0 {
		s.Upload.ImageQuality = defaults.Upload.ImageQuality
	}
	if s.Upload.BatchSize == 0 {
		s.Upload.BatchSize = defaults.Upload.BatchSize
	}
	if s.Upload.MaxFileBytes == 0 {
		s.Upload.MaxFileBytes = defaults.Upload.MaxFileBytes
	}
	if len(s.Upload.AllowedTypes) == 0 {
		s.Upload.AllowedTypes = defaults.Upload.AllowedTypes
	}
	if len(s.Upload.MainImageRoles) == 0 {
		s.Upload.MainImageRoles = defaults.Upload.MainImageRoles
	}
	if s.Upload.Retry.MaxAttempts == 0 {
		s.Upload.Retry.MaxAttempts = defaults.Upload.Retry.MaxAttempts
	}
	if s.Endpoint.TokenEnv == "" {
		s.Endpoint.TokenEnv = defaults.Endpoint.TokenEnv
	}
	if s.Endpoint.TimeoutSeconds == 0 {
		s.Endpoint.TimeoutSeconds = defaults.Endpoint.TimeoutSeconds
	}
	if s.Endpoint.StoreCode == "" {
		s.Endpoint.StoreCode = defaults.Endpoint.StoreCode
	}
}

// Save writes settings to the default config file.
func Save(s *Settings) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(s, path)
}

// SaveTo writes settings to a specific path.
func SaveTo(s *Settings, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Init creates a new config file with defaults.
func Init() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	return Save(DefaultSettings())
}

// Set updates a specific config value in the config file.
func Set(key, value string) error {
	settings, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "strategies.exact":
		settings.Strategies.Exact = value == "true"
	case "strategies.normalized":
		settings.Strategies.Normalized = value == "true"
	case "strategies.partial":
		settings.Strategies.Partial = value == "true"
	case "strategies.fuzzy":
		settings.Strategies.Fuzzy = value == "true"
	case "strategies.ref":
		settings.Strategies.Ref = value == "true"
	case "thresholds.fuzzy_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		settings.Thresholds.FuzzyThreshold = f
	case "thresholds.partial_length":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Thresholds.PartialLength = n
	case "file_handling.multiple_images":
		settings.FileHandling.MultipleImages = value == "true"
	case "file_handling.case_sensitive":
		settings.FileHandling.CaseSensitive = value == "true"
	case "upload.process_images":
		settings.Upload.ProcessImages = value == "true"
	case "upload.batch_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Upload.BatchSize = n
	case "upload.inter_item_delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Upload.InterItemDelayMs = n
	case "upload.image_quality":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		settings.Upload.ImageQuality = f
	case "upload.target_long_edge_px":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Upload.TargetLongEdgePx = n
	case "upload.max_file_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Upload.MaxFileBytes = n
	case "upload.allowed_types":
		settings.Upload.AllowedTypes = splitList(value)
	case "upload.main_image_roles":
		settings.Upload.MainImageRoles = splitList(value)
	case "upload.retry.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Upload.Retry.MaxAttempts = n
	case "upload.retry.backoff_base_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Upload.Retry.BackoffBaseMs = n
	case "endpoint.base_url":
		settings.Endpoint.BaseURL = value
	case "endpoint.token_env":
		settings.Endpoint.TokenEnv = value
	case "endpoint.store_code":
		settings.Endpoint.StoreCode = value
	case "endpoint.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		settings.Endpoint.TimeoutSeconds = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	if err := settings.Validate(); err != nil {
		return err
	}
	return Save(settings)
}

// Get retrieves a specific config value from the config file.
func Get(key string) (string, error) {
	settings, err := Load()
	if err != nil {
		return "", err
	}

	switch key {
	case "strategies.exact":
		return strconv.FormatBool(settings.Strategies.Exact), nil
	case "strategies.normalized":
		return strconv.FormatBool(settings.Strategies.Normalized), nil
	case "strategies.partial":
		return strconv.FormatBool(settings.Strategies.Partial), nil
	case "strategies.fuzzy":
		return strconv.FormatBool(settings.Strategies.Fuzzy), nil
	case "strategies.ref":
		return strconv.FormatBool(settings.Strategies.Ref), nil
	case "thresholds.fuzzy_threshold":
		return strconv.FormatFloat(settings.Thresholds.FuzzyThreshold, 'f', -1, 64), nil
	case "thresholds.partial_length":
		return strconv.Itoa(settings.Thresholds.PartialLength), nil
	case "file_handling.multiple_images":
		return strconv.FormatBool(settings.FileHandling.MultipleImages), nil
	case "file_handling.case_sensitive":
		return strconv.FormatBool(settings.FileHandling.CaseSensitive), nil
	case "upload.process_images":
		return strconv.FormatBool(settings.Upload.ProcessImages), nil
	case "upload.batch_size":
		return strconv.Itoa(settings.Upload.BatchSize), nil
	case "upload.inter_item_delay_ms":
		return strconv.Itoa(settings.Upload.InterItemDelayMs), nil
	case "upload.image_quality":
		return strconv.FormatFloat(settings.Upload.ImageQuality, 'f', -1, 64), nil
	case "upload.target_long_edge_px":
		return strconv.Itoa(settings.Upload.TargetLongEdgePx), nil
	case "upload.max_file_bytes":
		return strconv.FormatInt(settings.Upload.MaxFileBytes, 10), nil
	case "upload.allowed_types":
		return strings.Join(settings.Upload.AllowedTypes, ","), nil
	case "upload.main_image_roles":
		return strings.Join(settings.Upload.MainImageRoles, ","), nil
	case "upload.retry.max_attempts":
		return strconv.Itoa(settings.Upload.Retry.MaxAttempts), nil
	case "upload.retry.backoff_base_ms":
		return strconv.Itoa(settings.Upload.Retry.BackoffBaseMs), nil
	case "endpoint.base_url":
		return settings.Endpoint.BaseURL, nil
	case "endpoint.token_env":
		return settings.Endpoint.TokenEnv, nil
	case "endpoint.store_code":
		return settings.Endpoint.StoreCode, nil
	case "endpoint.timeout_seconds":
		return strconv.Itoa(settings.Endpoint.TimeoutSeconds), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// splitList parses a comma-separated flag or config value.
func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
