package validate

import (
	"errors"
	"fmt"
	"strings"
)

// File validation errors.
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
)

// Image MIME types accepted by POST /media/upload.
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
	MIMEImageHEIC = "image/heic"
)

// MaxImageBytes is the largest accepted image upload.
const MaxImageBytes = 10 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	MIMEImageJPEG: true,
	MIMEImagePNG:  true,
	MIMEImageWebP: true,
	MIMEImageHEIC: true,
}

// ImageUpload validates an image's MIME type and size before upload.
// Parameters after ';' in the MIME type are ignored.
func ImageUpload(mimeType string, sizeBytes int64) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" {
		return "", ErrEmpty
	}
	if !allowedImageTypes[mt] {
		return "", fmt.Errorf("%w: %q", ErrInvalidMIMEType, mt)
	}
	if sizeBytes <= 0 {
		return "", ErrEmptyFile
	}
	if sizeBytes > MaxImageBytes {
		return "", fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, MaxImageBytes)
	}
	return mt, nil
}
