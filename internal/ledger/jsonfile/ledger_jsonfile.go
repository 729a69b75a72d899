package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"arkstore/internal/ledger"
	"arkstore/internal/model"
)

// rateEvent is one admitted request in the persisted sliding window.
type rateEvent struct {
	Identity string    `json:"identity"`
	Source   string    `json:"source"`
	At       time.Time `json:"at"`
}

// state is the whole ledger document as written to disk.
type state struct {
	Identities  map[string]*model.Identity `json:"identities"`
	Uploads     map[string]model.Upload    `json:"uploads"`
	TokenAssets []model.TokenAsset         `json:"token_assets"`
	RateEvents  []rateEvent                `json:"rate_events"`
}

// LedgerFile is the flat-file implementation of ledger.Ledger. One mutex
// guards the whole document; every mutation rewrites the file through a
// temp-file rename so readers never see a torn write. The global lock
// over-serializes distinct identities, which is the accepted trade-off for
// this backend.
type LedgerFile struct {
	mu   sync.Mutex
	path string
	st   state
}

// Open loads the ledger document at path, creating an empty one (and its
// directory) when absent.
func Open(path string) (*LedgerFile, error) {
	l := &LedgerFile{
		path: path,
		st: state{
			Identities: make(map[string]*model.Identity),
			Uploads:    make(map[string]model.Upload),
		},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	if err := json.Unmarshal(raw, &l.st); err != nil {
		return nil, fmt.Errorf("parse ledger file: %w", err)
	}
	if l.st.Identities == nil {
		l.st.Identities = make(map[string]*model.Identity)
	}
	if l.st.Uploads == nil {
		l.st.Uploads = make(map[string]model.Upload)
	}
	return l, nil
}

var _ ledger.Ledger = (*LedgerFile)(nil)

// persistLocked writes the document atomically. Callers must hold l.mu.
func (l *LedgerFile) persistLocked() error {
	raw, err := json.MarshalIndent(&l.st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (l *LedgerFile) UpsertIdentity(ctx context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if id, ok := l.st.Identities[identity]; ok {
		id.LastActivityAt = now
	} else {
		l.st.Identities[identity] = &model.Identity{
			Address:        identity,
			CreatedAt:      now,
			LastActivityAt: now,
		}
	}
	return l.persistLocked()
}

func (l *LedgerFile) RecordUpload(ctx context.Context, up *model.Upload) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.st.Uploads[up.TxID]; exists {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransaction, up.TxID)
	}

	now := time.Now().UTC()
	id, ok := l.st.Identities[up.Identity]
	if !ok {
		id = &model.Identity{Address: up.Identity, CreatedAt: now}
		l.st.Identities[up.Identity] = id
	}

	// Row insert and counter bump land in the same persisted snapshot.
	l.st.Uploads[up.TxID] = *up
	id.UploadCount++
	id.TotalSizeBytes += up.Size
	id.LastActivityAt = now

	if err := l.persistLocked(); err != nil {
		// Roll the in-memory mutation back so memory matches disk.
		delete(l.st.Uploads, up.TxID)
		id.UploadCount--
		id.TotalSizeBytes -= up.Size
		return err
	}
	return nil
}

func (l *LedgerFile) RecordTokenAsset(ctx context.Context, asset *model.TokenAsset) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.st.Uploads[asset.LogoTxID]; !ok {
		return fmt.Errorf("%w: logo %s", ledger.ErrDanglingReference, asset.LogoTxID)
	}
	if _, ok := l.st.Uploads[asset.MetadataTxID]; !ok {
		return fmt.Errorf("%w: metadata %s", ledger.ErrDanglingReference, asset.MetadataTxID)
	}

	l.st.TokenAssets = append(l.st.TokenAssets, *asset)
	if err := l.persistLocked(); err != nil {
		l.st.TokenAssets = l.st.TokenAssets[:len(l.st.TokenAssets)-1]
		return err
	}
	return nil
}

func (l *LedgerFile) GetUpload(ctx context.Context, txID string) (*model.Upload, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	up, ok := l.st.Uploads[txID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUploadNotFound, txID)
	}
	return &up, nil
}

func (l *LedgerFile) Dashboard(ctx context.Context, identity string, recent int) (*model.Dashboard, error) {
	if recent <= 0 {
		recent = 10
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dash := &model.Dashboard{Identity: identity, RecentUploads: []model.Upload{}}
	id, ok := l.st.Identities[identity]
	if !ok {
		return dash, nil
	}
	dash.TotalUploads = id.UploadCount
	dash.TotalSizeBytes = id.TotalSizeBytes

	for _, up := range l.st.Uploads {
		if up.Identity == identity {
			dash.RecentUploads = append(dash.RecentUploads, up)
		}
	}
	sort.Slice(dash.RecentUploads, func(i, j int) bool {
		a, b := dash.RecentUploads[i], dash.RecentUploads[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.TxID > b.TxID
	})
	if len(dash.RecentUploads) > recent {
		dash.RecentUploads = dash.RecentUploads[:recent]
	}

	for _, asset := range l.st.TokenAssets {
		if asset.Identity == identity {
			dash.TokenCount++
		}
	}
	return dash, nil
}

func (l *LedgerFile) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ev := range l.st.RateEvents {
		if ev.Identity == identity && !ev.At.Before(since) {
			n++
		}
	}
	return n, nil
}

// Admit counts and conditionally records under the single ledger mutex, so
// the count and the insert are one step and the ceiling cannot be overrun
// by concurrent admissions.
func (l *LedgerFile) Admit(ctx context.Context, identity, sourceAddr string, since, ts time.Time, ceiling int) (int, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ev := range l.st.RateEvents {
		if ev.Identity == identity && !ev.At.Before(since) {
			n++
		}
	}
	if n >= ceiling {
		return n, false, nil
	}

	l.st.RateEvents = append(l.st.RateEvents, rateEvent{Identity: identity, Source: sourceAddr, At: ts})
	if err := l.persistLocked(); err != nil {
		l.st.RateEvents = l.st.RateEvents[:len(l.st.RateEvents)-1]
		return 0, false, err
	}
	return n, true, nil
}

func (l *LedgerFile) PruneBefore(ctx context.Context, before time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.st.RateEvents[:0]
	for _, ev := range l.st.RateEvents {
		if !ev.At.Before(before) {
			live = append(live, ev)
		}
	}
	if len(live) == len(l.st.RateEvents) {
		return nil
	}
	l.st.RateEvents = live
	return l.persistLocked()
}
