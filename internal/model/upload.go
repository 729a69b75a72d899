package model

import "time"

// Category classifies an upload by its broad media kind.
// The set is closed; unknown file types are rejected before a
// category is ever assigned.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
)

// Tag is a single name/value pair attached to a remote upload.
// The remote network treats tags as an append-only list, so order
// matters and duplicates are legal.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Upload is the durable record of one completed remote upload.
// It is immutable once written: rows are only ever inserted, keyed
// by the transaction id issued by the remote network.
type Upload struct {
	TxID        string            `json:"tx_id"`
	Identity    string            `json:"identity"`
	FileName    string            `json:"file_name"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	Category    Category          `json:"category"`
	URL         string            `json:"url"`
	Duration    time.Duration     `json:"duration_ms"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Tags        []Tag             `json:"tags,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
