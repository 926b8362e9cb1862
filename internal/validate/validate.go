// Package validate checks uploads before a job record is created.
package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrTooLarge rejects files above the configured size cap.
	ErrTooLarge = errors.New("file size exceeds limit")
	// ErrInvalidType rejects MIME types and extensions outside the allow list.
	ErrInvalidType = errors.New("invalid file type")
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
}

// Validator holds the upload constraints from configuration.
type Validator struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// File checks the declared size, MIME type and extension of an upload.
func (v *Validator) File(fileName, mimeType string, sizeBytes int64) error {
	if sizeBytes > v.MaxFileSize {
		return fmt.Errorf("%w: %dMB maximum", ErrTooLarge, v.MaxFileSize/(1<<20))
	}
	if !v.typeAllowed(mimeType) {
		return fmt.Errorf("%w: allowed types are PDF, DOCX, DOC, TXT", ErrInvalidType)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: allowed extensions are .pdf, .docx, .doc, .txt", ErrInvalidType)
	}
	return nil
}

func (v *Validator) typeAllowed(mimeType string) bool {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(mimeType)
	for _, t := range v.AllowedTypes {
		if strings.EqualFold(t, mimeType) {
			return true
		}
	}
	return false
}

// ScanClean is a stub security scan that always passes; it keeps the hook in
// the upload path until a real scanner is wired in.
func ScanClean(_ []byte) bool {
	return true
}
