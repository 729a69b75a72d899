package ratelimit

import (
	"context"
	"time"
)

// Store records and counts rate-window entries for identities. The ledger's
// Postgres backend, the in-memory store, and the Redis store all satisfy it.
type Store interface {
	// Admit atomically counts the identity's entries at or after since
	// and, only when that count is below ceiling, records a new entry at
	// ts. Count and conditional insert must be a single serialized step
	// per identity: two concurrent calls must never both observe the same
	// pre-admission count and both insert past the ceiling. Returns the
	// pre-admission count and whether the entry was recorded.
	Admit(ctx context.Context, identity, sourceAddr string, since, ts time.Time, ceiling int) (count int, admitted bool, err error)
	// CountSince returns how many entries exist for identity with a
	// timestamp at or after since.
	CountSince(ctx context.Context, identity string, since time.Time) (int, error)
	// PruneBefore drops entries older than before across all identities.
	PruneBefore(ctx context.Context, before time.Time) error
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter applies sliding-window admission control per identity.
// Denied attempts are not recorded, so a denial never consumes budget:
// count-then-conditionally-store is the canonical ordering.
type Limiter struct {
	store   Store
	ceiling int
	window  time.Duration
	nowFunc func() time.Time // injectable clock for testing
}

// New constructs a Limiter over the given store.
func New(store Store, ceiling int, window time.Duration) *Limiter {
	return &Limiter{
		store:   store,
		ceiling: ceiling,
		window:  window,
		nowFunc: time.Now,
	}
}

// Check admits or denies one request for identity. On admission the request
// is recorded and Remaining reflects the budget left in the current window.
// The count and the conditional record are one atomic store operation, so
// concurrent checks for the same identity can never admit past the ceiling.
func (l *Limiter) Check(ctx context.Context, identity, sourceAddr string) (Result, error) {
	now := l.nowFunc()
	since := now.Add(-l.window)

	count, admitted, err := l.store.Admit(ctx, identity, sourceAddr, since, now, l.ceiling)
	if err != nil {
		return Result{}, err
	}
	if !admitted {
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(l.window)}, nil
	}
	return Result{
		Allowed:   true,
		Remaining: l.ceiling - count - 1,
		ResetAt:   now.Add(l.window),
	}, nil
}

// Sweep prunes entries that fell out of the current window. Lazy pruning in
// the stores keeps Check correct on its own; Sweep just bounds storage
// growth for persistent backends.
func (l *Limiter) Sweep(ctx context.Context) error {
	return l.store.PruneBefore(ctx, l.nowFunc().Add(-l.window))
}
