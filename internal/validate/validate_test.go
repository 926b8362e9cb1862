package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *Validator {
	return &Validator{
		MaxFileSize: 10 << 20,
		AllowedTypes: []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/msword",
			"text/plain",
		},
	}
}

func TestFileAcceptsAllowedTypes(t *testing.T) {
	v := newValidator()
	cases := []struct {
		name string
		mime string
	}{
		{"contract.pdf", "application/pdf"},
		{"contract.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"contract.doc", "application/msword"},
		{"contract.txt", "text/plain"},
	}
	for _, tc := range cases {
		assert.NoError(t, v.File(tc.name, tc.mime, 1024), tc.name)
	}
}

func TestFileRejectsOversize(t *testing.T) {
	v := newValidator()
	err := v.File("contract.pdf", "application/pdf", (10<<20)+1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFileRejectsDisallowedMime(t *testing.T) {
	v := newValidator()
	err := v.File("image.png", "image/png", 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestFileRejectsMismatchedExtension(t *testing.T) {
	v := newValidator()
	err := v.File("contract.exe", "application/pdf", 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestFileIgnoresMimeParameters(t *testing.T) {
	v := newValidator()
	assert.NoError(t, v.File("contract.txt", "text/plain; charset=utf-8", 1024))
}

func TestFileExtensionCaseInsensitive(t *testing.T) {
	v := newValidator()
	assert.NoError(t, v.File("CONTRACT.PDF", "application/pdf", 1024))
}
