package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnection marks pool or connection-construction failures.
	// Transient: the caller may retry.
	ErrConnection = errors.New("connection unavailable")
	// ErrRemote marks an explicit rejection by the remote network.
	ErrRemote = errors.New("remote upload rejected")
)

// RateLimitedError tells the caller to back off until ResetAt.
type RateLimitedError struct {
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// TimeoutError means the remote call exceeded its bound. Remote state is
// unknown: the upload may still complete in the background, so the outcome
// is ambiguous rather than failed.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upload timed out after %s", e.Timeout)
}

// LedgerError means the local durable write failed after the remote upload
// succeeded: the remote artifact exists but is unrecorded. It is surfaced
// distinctly so operators can reconcile instead of silently orphaning
// billed storage.
type LedgerError struct {
	TxID string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger write failed for recorded remote upload %s: %v", e.TxID, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// PartialUploadError means the token pipeline's second upload failed after
// the first succeeded. The first upload record stays valid and orphaned; a
// retry of the whole pipeline creates a fresh primary-asset upload.
type PartialUploadError struct {
	LogoTxID string
	Err      error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("metadata upload failed after logo %s succeeded: %v", e.LogoTxID, e.Err)
}

func (e *PartialUploadError) Unwrap() error { return e.Err }
