package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arkstore/internal/gateway"
	"arkstore/internal/ledger"
	"arkstore/internal/model"
	"arkstore/internal/ratelimit"
	"arkstore/internal/tags"
	"arkstore/internal/validator"
)

// Request describes one upload job handed to the orchestrator.
type Request struct {
	// Path is the file on local disk to upload.
	Path string
	// FileName is the name reported in tags and the ledger; defaults to
	// the base of Path.
	FileName string
	// Identity is the caller's stable key (wallet address or session id).
	Identity string
	// SourceAddr is the caller's network address, recorded with the
	// rate-limit entry.
	SourceAddr string
	// CustomTags are appended verbatim after the standard tags.
	CustomTags []model.Tag
	// Metadata is an optional blob stored with the ledger record.
	Metadata map[string]string
	// RemoveFile marks Path as a per-request temporary artifact: the
	// orchestrator deletes it on every exit path, success or failure.
	RemoveFile bool
}

// Result is the outcome of a successful upload.
type Result struct {
	TxID        string         `json:"tx_id"`
	URL         string         `json:"url"`
	Size        int64          `json:"size"`
	ContentType string         `json:"content_type"`
	Category    model.Category `json:"category"`
	Duration    time.Duration  `json:"duration"`
}

// UploadService is the use-case interface the HTTP layer depends on.
type UploadService interface {
	Upload(ctx context.Context, req Request) (*Result, error)
}

// Orchestrator coordinates one upload end to end: validation, admission,
// connection acquisition, the timed remote call, and the ledger write.
// A failed upload leaves the ledger and the pool as they were, aside from
// the consumed rate-limit slot, which is intentionally non-refundable.
type Orchestrator struct {
	validator *validator.FileValidator
	limiter   *ratelimit.Limiter
	pool      *gateway.Pool
	tags      *tags.Builder
	ledger    ledger.Ledger
	baseURL   string
	timeout   time.Duration
}

// NewOrchestrator constructs an Orchestrator. All collaborators are
// explicit instances built once at process start and shared by reference;
// the pool's capacity and the timeout are therefore testable parameters.
func NewOrchestrator(
	v *validator.FileValidator,
	limiter *ratelimit.Limiter,
	pool *gateway.Pool,
	tagBuilder *tags.Builder,
	led ledger.Ledger,
	baseURL string,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		validator: v,
		limiter:   limiter,
		pool:      pool,
		tags:      tagBuilder,
		ledger:    led,
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
	}
}

var _ UploadService = (*Orchestrator)(nil)

type uploadOutcome struct {
	receipt gateway.Receipt
	err     error
}

// Upload runs the full pipeline for one file.
func (o *Orchestrator) Upload(ctx context.Context, req Request) (*Result, error) {
	if req.RemoveFile {
		defer os.Remove(req.Path)
	}
	if req.FileName == "" {
		req.FileName = filepath.Base(req.Path)
	}

	// Validation failures have no side effects at all.
	info, err := o.validator.Validate(req.Path)
	if err != nil {
		return nil, err
	}

	// Admission consumes one budget unit; a later failure does not refund
	// it. Denials are resolved here with no connection acquired.
	admission, err := o.limiter.Check(ctx, req.Identity, req.SourceAddr)
	if err != nil {
		return nil, fmt.Errorf("rate check: %w", err)
	}
	if !admission.Allowed {
		return nil, &RateLimitedError{Remaining: admission.Remaining, ResetAt: admission.ResetAt}
	}

	conn, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		o.pool.Release(conn)
		return nil, fmt.Errorf("read file: %w", err)
	}
	tagList := o.tags.Build(info, req.FileName, req.Identity, req.CustomTags)

	// The remote call races the timeout. The losing branch is not stopped:
	// the goroutine keeps the connection until the call actually returns
	// (so the handle is never double-lent) and a late success simply lands
	// in the buffered channel, never recorded. The detached context keeps
	// the in-flight call alive after the caller is unblocked.
	start := time.Now()
	outcome := make(chan uploadOutcome, 1)
	go func() {
		defer o.pool.Release(conn)
		rcpt, uerr := conn.Upload(context.WithoutCancel(ctx), data, tagList)
		outcome <- uploadOutcome{receipt: rcpt, err: uerr}
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	var receipt gateway.Receipt
	select {
	case out := <-outcome:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRemote, out.err)
		}
		receipt = out.receipt
	case <-timer.C:
		return nil, &TimeoutError{Timeout: o.timeout}
	}
	elapsed := time.Since(start)

	up := &model.Upload{
		TxID:        receipt.TxID,
		Identity:    req.Identity,
		FileName:    req.FileName,
		Size:        info.Size,
		ContentType: info.MIMEType,
		Category:    info.Category,
		URL:         o.baseURL + "/" + receipt.TxID,
		Duration:    elapsed,
		Metadata:    req.Metadata,
		Tags:        tagList,
		CreatedAt:   time.Now().UTC(),
	}

	// From here the remote artifact exists; a local failure must surface
	// as the distinct high-severity ledger kind.
	if err := o.ledger.UpsertIdentity(ctx, req.Identity); err != nil {
		return nil, &LedgerError{TxID: receipt.TxID, Err: err}
	}
	if err := o.ledger.RecordUpload(ctx, up); err != nil {
		return nil, &LedgerError{TxID: receipt.TxID, Err: err}
	}

	return &Result{
		TxID:        up.TxID,
		URL:         up.URL,
		Size:        up.Size,
		ContentType: up.ContentType,
		Category:    up.Category,
		Duration:    elapsed,
	}, nil
}
