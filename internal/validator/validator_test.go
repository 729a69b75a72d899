package validator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"arkstore/internal/config"
	"arkstore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func testLimits() config.UploadConfig {
	return config.UploadConfig{
		MaxSizeBytes:         100 << 20,
		MaxImageSizeBytes:    2 << 20,
		MaxVideoSizeBytes:    50 << 20,
		MaxAudioSizeBytes:    20 << 20,
		MaxDocumentSizeBytes: 10 << 20,
	}
}

func TestFileValidator_Validate(t *testing.T) {
	v := New(testLimits())

	tests := []struct {
		name     string
		file     string
		size     int
		wantErr  error
		wantCat  model.Category
		wantMIME string
	}{
		{name: "png image", file: "logo.png", size: 1024, wantCat: model.CategoryImage, wantMIME: "image/png"},
		{name: "uppercase extension", file: "photo.JPG", size: 1024, wantCat: model.CategoryImage, wantMIME: "image/jpeg"},
		{name: "pdf document", file: "paper.pdf", size: 2048, wantCat: model.CategoryDocument, wantMIME: "application/pdf"},
		{name: "json document", file: "meta.json", size: 64, wantCat: model.CategoryDocument, wantMIME: "application/json"},
		{name: "unknown extension fails closed", file: "binary.xyz", size: 10, wantErr: ErrUnsupportedType},
		{name: "no extension", file: "README", size: 10, wantErr: ErrUnsupportedType},
		{name: "empty file", file: "empty.png", size: 0, wantErr: ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.file, tt.size)
			info, err := v.Validate(path)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, info)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(tt.size), info.Size)
			assert.Equal(t, tt.wantCat, info.Category)
			assert.Equal(t, tt.wantMIME, info.MIMEType)
		})
	}
}

func TestFileValidator_NotFound(t *testing.T) {
	v := New(testLimits())

	info, err := v.Validate(filepath.Join(t.TempDir(), "missing.png"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, info)
}

func TestFileValidator_SizeBoundary(t *testing.T) {
	limits := testLimits()
	limits.MaxImageSizeBytes = 4096
	v := New(limits)

	t.Run("just under limit passes", func(t *testing.T) {
		info, err := v.Validate(writeTemp(t, "under.png", 4095))
		require.NoError(t, err)
		assert.Equal(t, int64(4096), info.MaxAllowed)
	})

	t.Run("at limit fails", func(t *testing.T) {
		_, err := v.Validate(writeTemp(t, "exact.png", 4096))
		var tooLarge *TooLargeError
		require.True(t, errors.As(err, &tooLarge))
		assert.Equal(t, int64(4096), tooLarge.Size)
		assert.Equal(t, int64(4096), tooLarge.Limit)
	})

	t.Run("above limit fails", func(t *testing.T) {
		_, err := v.Validate(writeTemp(t, "over.png", 4097))
		var tooLarge *TooLargeError
		require.True(t, errors.As(err, &tooLarge))
	})
}

// A 3 MB image against a 2 MB image ceiling must report the 2 MB limit.
func TestFileValidator_ImageCeilingScenario(t *testing.T) {
	v := New(testLimits())

	_, err := v.Validate(writeTemp(t, "big.png", 3<<20))

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(3<<20), tooLarge.Size)
	assert.Equal(t, int64(2<<20), tooLarge.Limit)
}

// The global maximum caps a per-category ceiling that exceeds it.
func TestFileValidator_GlobalCap(t *testing.T) {
	limits := testLimits()
	limits.MaxSizeBytes = 1024
	v := New(limits)

	_, err := v.Validate(writeTemp(t, "capped.pdf", 2048))

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(1024), tooLarge.Limit)
}

func TestLookup(t *testing.T) {
	mime, cat, ok := Lookup(".json")
	assert.True(t, ok)
	assert.Equal(t, "application/json", mime)
	assert.Equal(t, model.CategoryDocument, cat)

	_, _, ok = Lookup(".exe")
	assert.False(t, ok)
}
