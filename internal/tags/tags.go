package tags

import (
	"strconv"
	"sync"
	"time"

	"arkstore/internal/model"
	"arkstore/internal/validator"
)

// Standard tag names attached to every upload, in order of emission.
const (
	TagContentType = "Content-Type"
	TagFileName    = "File-Name"
	TagFileSize    = "File-Size"
	TagCategory    = "Category"
	TagUploader    = "Uploader"
	TagTimestamp   = "Upload-Timestamp"
)

// Builder assembles the descriptive tag list attached to an upload.
// Timestamps it issues are strictly increasing within the process, so two
// uploads never share an Upload-Timestamp even inside the same nanosecond.
type Builder struct {
	mu   sync.Mutex
	last int64
}

// NewBuilder constructs a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the ordered tag list for one upload: the six standard tags
// followed by the caller's custom tags appended verbatim. Duplicates are
// preserved; the remote network treats tags as an append-only list and no
// last-write-wins collapsing is applied.
func (b *Builder) Build(info *validator.Info, fileName, identity string, custom []model.Tag) []model.Tag {
	out := make([]model.Tag, 0, 6+len(custom))
	out = append(out,
		model.Tag{Name: TagContentType, Value: info.MIMEType},
		model.Tag{Name: TagFileName, Value: fileName},
		model.Tag{Name: TagFileSize, Value: strconv.FormatInt(info.Size, 10)},
		model.Tag{Name: TagCategory, Value: string(info.Category)},
		model.Tag{Name: TagUploader, Value: identity},
		model.Tag{Name: TagTimestamp, Value: strconv.FormatInt(b.nextTimestamp(), 10)},
	)
	out = append(out, custom...)
	return out
}

// nextTimestamp returns the current time in nanoseconds, bumped past the
// previously issued value when the clock has not advanced.
func (b *Builder) nextTimestamp() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := time.Now().UnixNano()
	if ts <= b.last {
		ts = b.last + 1
	}
	b.last = ts
	return ts
}
