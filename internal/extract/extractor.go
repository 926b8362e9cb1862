// Package extract turns uploaded contract files into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// MIME types accepted for upload.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
	MimeTXT  = "text/plain"
)

// ErrUnsupportedType is returned for a MIME type no extractor handles.
var ErrUnsupportedType = errors.New("unsupported file type")

// Text extracts plain text from the file contents based on its MIME type.
func Text(data []byte, mimeType string) (string, error) {
	switch normalizeMime(mimeType) {
	case MimePDF:
		return fromPDF(data)
	case MimeDOCX, MimeDOC:
		return fromDOCX(data)
	case MimeTXT:
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

func normalizeMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.TrimSpace(strings.ToLower(mimeType))
}

func fromPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func fromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("open document part: %w", err)
			}
			defer rc.Close()
			return documentText(rc)
		}
	}
	return "", errors.New("docx archive has no word/document.xml")
}
