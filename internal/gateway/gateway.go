package gateway

import (
	"context"

	"arkstore/internal/model"
)

// Package gateway contains the client side of the remote content-addressed
// storage network. The network is opaque from the orchestrator's point of
// view: one call, possibly slow, returning a transaction id.

// Receipt is what the remote network hands back for a completed upload.
type Receipt struct {
	TxID string
}

// Uploader is a single upload-capable connection. A connection performs one
// upload at a time and is never shared between concurrent requests; the
// Pool enforces exclusive lending.
type Uploader interface {
	Upload(ctx context.Context, data []byte, tagList []model.Tag) (Receipt, error)
}

// Factory constructs a new connection. Construction may fail (network or
// credential problems); the pool counts the error and keeps the slot
// retryable.
type Factory func() (Uploader, error)
