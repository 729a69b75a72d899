package validator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arkstore/internal/config"
	"arkstore/internal/model"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
)

// TooLargeError reports a file that meets or exceeds the effective size
// limit for its category.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes, limit %d bytes", e.Size, e.Limit)
}

// fileType is one entry of the static extension registry.
type fileType struct {
	MIMEType string
	Category model.Category
}

// registry maps lowercase file extensions to their declared MIME type and
// category. Unknown extensions fail closed.
var registry = map[string]fileType{
	".png":  {"image/png", model.CategoryImage},
	".jpg":  {"image/jpeg", model.CategoryImage},
	".jpeg": {"image/jpeg", model.CategoryImage},
	".gif":  {"image/gif", model.CategoryImage},
	".webp": {"image/webp", model.CategoryImage},
	".svg":  {"image/svg+xml", model.CategoryImage},
	".mp4":  {"video/mp4", model.CategoryVideo},
	".webm": {"video/webm", model.CategoryVideo},
	".mov":  {"video/quicktime", model.CategoryVideo},
	".mp3":  {"audio/mpeg", model.CategoryAudio},
	".wav":  {"audio/wav", model.CategoryAudio},
	".ogg":  {"audio/ogg", model.CategoryAudio},
	".flac": {"audio/flac", model.CategoryAudio},
	".pdf":  {"application/pdf", model.CategoryDocument},
	".txt":  {"text/plain", model.CategoryDocument},
	".json": {"application/json", model.CategoryDocument},
	".csv":  {"text/csv", model.CategoryDocument},
	".md":   {"text/markdown", model.CategoryDocument},
}

// Info is the result of a successful validation.
type Info struct {
	Size       int64
	Category   model.Category
	MIMEType   string
	MaxAllowed int64
}

// FileValidator inspects candidate files and enforces the size policy.
// It is stateless apart from its configured limits and safe for
// concurrent use.
type FileValidator struct {
	limits config.UploadConfig
}

// New constructs a FileValidator with the given size limits.
func New(limits config.UploadConfig) *FileValidator {
	return &FileValidator{limits: limits}
}

// Validate stats the file at path, resolves its type from the extension
// registry, and enforces the effective size limit (the smaller of the
// per-category ceiling and the global maximum). A size at or above the
// limit is rejected.
func (v *FileValidator) Validate(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	ft, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	size := st.Size()
	if size == 0 {
		return nil, ErrEmptyFile
	}

	limit := v.categoryLimit(ft.Category)
	if v.limits.MaxSizeBytes > 0 && v.limits.MaxSizeBytes < limit {
		limit = v.limits.MaxSizeBytes
	}
	if limit > 0 && size >= limit {
		return nil, &TooLargeError{Size: size, Limit: limit}
	}

	return &Info{
		Size:       size,
		Category:   ft.Category,
		MIMEType:   ft.MIMEType,
		MaxAllowed: limit,
	}, nil
}

func (v *FileValidator) categoryLimit(cat model.Category) int64 {
	switch cat {
	case model.CategoryImage:
		return v.limits.MaxImageSizeBytes
	case model.CategoryVideo:
		return v.limits.MaxVideoSizeBytes
	case model.CategoryAudio:
		return v.limits.MaxAudioSizeBytes
	default:
		return v.limits.MaxDocumentSizeBytes
	}
}

// Lookup resolves an extension without touching the filesystem. It is used
// where the caller already holds the bytes (e.g. metadata documents).
func Lookup(ext string) (mimeType string, category model.Category, ok bool) {
	ft, found := registry[strings.ToLower(ext)]
	if !found {
		return "", "", false
	}
	return ft.MIMEType, ft.Category, true
}
