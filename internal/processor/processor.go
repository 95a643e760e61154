package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/technostationary/mediabulk/internal/config"
	"github.com/technostationary/mediabulk/pkg/models"
)

// Error reports a per-item processing failure. The item becomes an
// error UploadResult; the run continues.
type Error struct {
	Kind models.FailureKind
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("process %s: %s", e.Name, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// jpeg quality floor when stepping down to honor MaxFileBytes;
// corresponds to the 0.5 bound on the image_quality setting.
const minJPEGQuality = 50

// Process turns a matched image into a transport-ready payload. With
// processing disabled it is a pure passthrough of the original bytes.
// The ImageFile itself is never modified.
func Process(file *models.ImageFile, declaredName string, upload config.Upload) (*models.TransportPayload, error) {
	if !upload.ProcessImages {
		return &models.TransportPayload{
			DeclaredName: declaredName,
			DeclaredType: file.DeclaredType,
			Bytes:        file.Bytes,
		}, nil
	}

	switch file.DeclaredType {
	case "image/jpeg", "image/png":
		return reencode(file, declaredName, upload)
	default:
		// gif keeps animation frames and webp has no encoder here;
		// both pass through unchanged, subject to the size cap.
		if int64(len(file.Bytes)) > upload.MaxFileBytes {
			return nil, &Error{models.FailurePayloadTooLarge, file.OriginalName,
				fmt.Errorf("%s payload of %d bytes exceeds limit of %d and cannot be recompressed",
					file.DeclaredType, len(file.Bytes), upload.MaxFileBytes)}
		}
		return &models.TransportPayload{
			DeclaredName: declaredName,
			DeclaredType: file.DeclaredType,
			Bytes:        file.Bytes,
		}, nil
	}
}

// reencode resamples to the bounded box and re-encodes in the original
// format. When the result still exceeds the byte cap it steps jpeg
// quality down to the floor, then shrinks the box, before giving up.
func reencode(file *models.ImageFile, declaredName string, upload config.Upload) (*models.TransportPayload, error) {
	src, err := imaging.Decode(bytes.NewReader(file.Bytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{models.FailureProcessing, file.OriginalName, err}
	}

	quality := int(upload.ImageQuality*100 + 0.5)
	edge := upload.TargetLongEdgePx

	// Up to four shrink passes at 80% a side.
	for pass := 0; pass < 4; pass++ {
		img := fit(src, edge)
		data, err := encode(img, file.DeclaredType, quality)
		if err != nil {
			return nil, &Error{models.FailureProcessing, file.OriginalName, err}
		}
		if int64(len(data)) <= upload.MaxFileBytes {
			return &models.TransportPayload{
				DeclaredName: declaredName,
				DeclaredType: file.DeclaredType,
				Bytes:        data,
			}, nil
		}

		if file.DeclaredType == "image/jpeg" && quality > minJPEGQuality {
			quality -= 10
			if quality < minJPEGQuality {
				quality = minJPEGQuality
			}
			pass-- // retry the same box at lower quality first
			continue
		}
		edge = edge * 4 / 5
	}

	return nil, &Error{models.FailurePayloadTooLarge, file.OriginalName,
		fmt.Errorf("could not compress under %d bytes", upload.MaxFileBytes)}
}

// fit bounds the longer edge to edge px, preserving aspect ratio.
// Images already inside the box are returned as-is.
func fit(src image.Image, edge int) image.Image {
	b := src.Bounds()
	if b.Dx() <= edge && b.Dy() <= edge {
		return src
	}
	return imaging.Fit(src, edge, edge, imaging.Lanczos)
}

func encode(img image.Image, declaredType string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch declaredType {
	case "image/jpeg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
	case "image/png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no encoder for %s", declaredType)
	}
	return buf.Bytes(), nil
}
