package intake

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func defaultOptions() Options {
	return Options{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		MaxFileBytes: 8 << 20,
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateAccepts(t *testing.T) {
	data := jpegBytes(t, 10, 10)
	file, err := Validate("front.jpg", data, defaultOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if file.OriginalName != "front.jpg" {
		t.Errorf("OriginalName = %q", file.OriginalName)
	}
	if file.DeclaredType != "image/jpeg" {
		t.Errorf("DeclaredType = %q", file.DeclaredType)
	}
	if file.SizeBytes != int64(len(data)) {
		t.Errorf("SizeBytes = %d", file.SizeBytes)
	}
}

func TestValidateKinds(t *testing.T) {
	opts := defaultOptions()
	opts.MaxFileBytes = 10

	cases := []struct {
		name string
		file string
		data []byte
		want ValidationKind
	}{
		{"empty", "a.jpg", nil, KindEmpty},
		{"disallowed", "notes.txt", []byte("plain text here"), KindDisallowedType},
		{"too large", "big.jpg", make([]byte, 11), KindTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.file, tc.data, opts)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Kind != tc.want {
				t.Errorf("kind = %s, want %s", ve.Kind, tc.want)
			}
		})
	}
}

func TestValidateOversizePassesWhenProcessing(t *testing.T) {
	opts := defaultOptions()
	opts.MaxFileBytes = 10
	opts.AllowOversize = true

	file, err := Validate("big.jpg", make([]byte, 11), opts)
	if err != nil {
		t.Fatalf("oversize file should pass intake with processing on: %v", err)
	}
	if file.SizeBytes != 11 {
		t.Errorf("SizeBytes = %d", file.SizeBytes)
	}
}

func TestDetectTypeSniffsUnknownExtension(t *testing.T) {
	data := jpegBytes(t, 4, 4)
	if got := DetectType("upload.bin", data); got != "image/jpeg" {
		t.Errorf("DetectType = %q", got)
	}
	if got := DetectType("photo.png", nil); got != "image/png" {
		t.Errorf("extension detection = %q", got)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name string, data []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("b.jpg", jpegBytes(t, 8, 8))
	writeFile("a.jpg", jpegBytes(t, 8, 8))
	writeFile("skip.txt", []byte("not an image"))
	writeFile(".hidden", []byte("ignored"))

	accepted, rejected, err := ScanDir(dir, defaultOptions())
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(accepted) != 2 {
		t.Fatalf("accepted %d files, want 2", len(accepted))
	}
	if accepted[0].OriginalName != "a.jpg" || accepted[1].OriginalName != "b.jpg" {
		t.Errorf("accepted order = %q, %q", accepted[0].OriginalName, accepted[1].OriginalName)
	}
	if len(rejected) != 1 || rejected[0].Name != "skip.txt" || rejected[0].Err.Kind != KindDisallowedType {
		t.Errorf("rejected = %+v", rejected)
	}
}
