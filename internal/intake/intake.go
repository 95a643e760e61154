package intake

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/technostationary/mediabulk/pkg/models"
)

// ValidationKind classifies why a candidate image was rejected.
type ValidationKind string

const (
	KindDisallowedType ValidationKind = "disallowed_type"
	KindTooLarge       ValidationKind = "too_large"
	KindEmpty          ValidationKind = "empty"
)

// ValidationError reports a rejected candidate image. Rejections skip
// the file and the run continues.
type ValidationError struct {
	Kind ValidationKind
	Name string
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Name, e.Msg, e.Kind)
}

// Options configures intake validation.
type Options struct {
	AllowedTypes []string
	MaxFileBytes int64
	// AllowOversize admits files over MaxFileBytes; set when image
	// processing is enabled, so the size cap is enforced after
	// compression instead.
	AllowOversize bool
}

// Rejected pairs a candidate name with the reason it was excluded.
type Rejected struct {
	Name string
	Err  *ValidationError
}

// DetectType resolves the declared MIME type of a candidate image from
// its extension, sniffing the content when the extension is unknown.
func DetectType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	if len(data) == 0 {
		return ""
	}
	t := http.DetectContentType(data)
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return t
}

// Validate checks one candidate and returns its normalized descriptor.
func Validate(name string, data []byte, opts Options) (*models.ImageFile, error) {
	if len(data) == 0 {
		return nil, &ValidationError{KindEmpty, name, "file is empty"}
	}

	declaredType := DetectType(name, data)
	allowed := false
	for _, t := range opts.AllowedTypes {
		if strings.EqualFold(t, declaredType) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &ValidationError{KindDisallowedType, name, fmt.Sprintf("type %q is not accepted", declaredType)}
	}

	size := int64(len(data))
	if size > opts.MaxFileBytes && !opts.AllowOversize {
		return nil, &ValidationError{KindTooLarge, name,
			fmt.Sprintf("%d bytes exceeds limit of %d", size, opts.MaxFileBytes)}
	}

	return &models.ImageFile{
		OriginalName: filepath.Base(name),
		Bytes:        data,
		DeclaredType: declaredType,
		SizeBytes:    size,
	}, nil
}

// ScanDir reads and validates every regular file under dir. Accepted
// files come back sorted by original name for deterministic matching;
// rejected ones are reported, not fatal.
func ScanDir(dir string, opts Options) ([]*models.ImageFile, []Rejected, error) {
	var accepted []*models.ImageFile
	var rejected []Rejected

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		file, verr := Validate(info.Name(), data, opts)
		if verr != nil {
			var ve *ValidationError
			if errors.As(verr, &ve) {
				rejected = append(rejected, Rejected{Name: info.Name(), Err: ve})
				return nil
			}
			return verr
		}
		accepted = append(accepted, file)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].OriginalName < accepted[j].OriginalName
	})
	return accepted, rejected, nil
}
