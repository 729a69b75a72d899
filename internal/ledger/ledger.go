package ledger

import (
	"context"
	"errors"

	"arkstore/internal/model"
	"arkstore/internal/ratelimit"
)

var (
	// ErrDuplicateTransaction means an upload row with the same remote
	// transaction id already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	// ErrDanglingReference means a token asset references an upload the
	// ledger does not hold.
	ErrDanglingReference = errors.New("referenced upload does not exist")
	// ErrUploadNotFound is returned by reads for unknown transaction ids.
	ErrUploadNotFound = errors.New("upload not found")
)

// Ledger is the durable store of identities, upload records, token-asset
// pairs, and rate-limit events. All operations are atomic with respect to
// concurrent callers on the same identity: a reader never observes an
// upload row without its counter increment, or vice versa.
//
// The embedded ratelimit.Store lets persistent backends keep the admission
// window consistent with the ledger's view across process restarts.
type Ledger interface {
	// UpsertIdentity creates the identity on first sight, otherwise
	// touches its last-activity timestamp. Idempotent.
	UpsertIdentity(ctx context.Context, identity string) error

	// RecordUpload inserts an immutable upload row and increments the
	// identity's upload count and byte total in the same logical
	// transaction. Fails with ErrDuplicateTransaction on tx-id reuse.
	RecordUpload(ctx context.Context, up *model.Upload) error

	// RecordTokenAsset inserts a token-asset pair. Fails with
	// ErrDanglingReference when either referenced upload is missing.
	RecordTokenAsset(ctx context.Context, asset *model.TokenAsset) error

	// GetUpload returns one upload by its transaction id.
	GetUpload(ctx context.Context, txID string) (*model.Upload, error)

	// Dashboard returns a consistent read-only aggregate for the identity,
	// with at most recent uploads included. Implementations treat a
	// non-positive recent as the default of 10; the HTTP layer rejects
	// such values before they get here.
	Dashboard(ctx context.Context, identity string, recent int) (*model.Dashboard, error)

	ratelimit.Store
}
