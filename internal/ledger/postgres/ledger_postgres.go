package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"arkstore/internal/ledger"
	"arkstore/internal/model"
)

const pgUniqueViolation = "23505"

// LedgerPostgres is the PostgreSQL implementation of ledger.Ledger.
// It uses database/sql with parameterized queries; per-identity counter
// updates are serialized by the transaction's row lock on identities.
type LedgerPostgres struct {
	db *sql.DB
}

// NewLedgerPostgres creates a new LedgerPostgres.
func NewLedgerPostgres(db *sql.DB) *LedgerPostgres {
	return &LedgerPostgres{db: db}
}

var _ ledger.Ledger = (*LedgerPostgres)(nil)

// UpsertIdentity creates the identity row or touches its last activity.
func (l *LedgerPostgres) UpsertIdentity(ctx context.Context, identity string) error {
	const q = `
		INSERT INTO identities (address, created_at, last_activity_at)
		VALUES ($1, now(), now())
		ON CONFLICT (address) DO UPDATE SET last_activity_at = now()
	`
	_, err := l.db.ExecContext(ctx, q, identity)
	return err
}

// RecordUpload inserts the upload row and bumps the identity counters in
// one transaction. The unique primary key on tx_id maps to
// ledger.ErrDuplicateTransaction.
func (l *LedgerPostgres) RecordUpload(ctx context.Context, up *model.Upload) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO identities (address, created_at, last_activity_at)
		VALUES ($1, now(), now())
		ON CONFLICT (address) DO UPDATE SET last_activity_at = now()
	`
	if _, err := tx.ExecContext(ctx, upsert, up.Identity); err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	metadata, err := json.Marshal(up.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tagList, err := json.Marshal(up.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	const insert = `
		INSERT INTO uploads (tx_id, identity, file_name, size_bytes, content_type, category, url, duration_ms, metadata, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, insert,
		up.TxID,
		up.Identity,
		up.FileName,
		up.Size,
		up.ContentType,
		string(up.Category),
		up.URL,
		up.Duration.Milliseconds(),
		metadata,
		tagList,
		up.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransaction, up.TxID)
		}
		return fmt.Errorf("insert upload: %w", err)
	}

	const bump = `
		UPDATE identities
		SET upload_count = upload_count + 1,
		    total_size_bytes = total_size_bytes + $2,
		    last_activity_at = now()
		WHERE address = $1
	`
	if _, err := tx.ExecContext(ctx, bump, up.Identity, up.Size); err != nil {
		return fmt.Errorf("bump identity counters: %w", err)
	}

	return tx.Commit()
}

// RecordTokenAsset inserts the pair after verifying both referenced upload
// rows exist inside the same transaction.
func (l *LedgerPostgres) RecordTokenAsset(ctx context.Context, asset *model.TokenAsset) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const refs = `SELECT COUNT(*) FROM uploads WHERE tx_id IN ($1, $2)`
	var n int
	if err := tx.QueryRowContext(ctx, refs, asset.LogoTxID, asset.MetadataTxID).Scan(&n); err != nil {
		return fmt.Errorf("check references: %w", err)
	}
	if n != 2 {
		return fmt.Errorf("%w: logo=%s metadata=%s", ledger.ErrDanglingReference, asset.LogoTxID, asset.MetadataTxID)
	}

	const insert = `
		INSERT INTO token_assets (id, identity, name, symbol, logo_tx_id, metadata_tx_id, metadata_doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, insert,
		asset.ID,
		asset.Identity,
		asset.Name,
		asset.Symbol,
		asset.LogoTxID,
		asset.MetadataTxID,
		asset.MetadataDoc,
		asset.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert token asset: %w", err)
	}

	return tx.Commit()
}

// GetUpload fetches a single upload by transaction id.
func (l *LedgerPostgres) GetUpload(ctx context.Context, txID string) (*model.Upload, error) {
	const q = `
		SELECT tx_id, identity, file_name, size_bytes, content_type, category, url, duration_ms, metadata, tags, created_at
		FROM uploads
		WHERE tx_id = $1
	`
	up, err := scanUpload(l.db.QueryRowContext(ctx, q, txID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrUploadNotFound, txID)
		}
		return nil, err
	}
	return up, nil
}

// Dashboard reads the identity aggregate under a repeatable-read
// transaction so counters and rows come from one snapshot.
func (l *LedgerPostgres) Dashboard(ctx context.Context, identity string, recent int) (*model.Dashboard, error) {
	if recent <= 0 {
		recent = 10
	}

	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	dash := &model.Dashboard{Identity: identity, RecentUploads: []model.Upload{}}

	const counters = `SELECT upload_count, total_size_bytes FROM identities WHERE address = $1`
	if err := tx.QueryRowContext(ctx, counters, identity).Scan(&dash.TotalUploads, &dash.TotalSizeBytes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown identity: an empty dashboard, not an error.
			return dash, nil
		}
		return nil, fmt.Errorf("read identity: %w", err)
	}

	const recentQ = `
		SELECT tx_id, identity, file_name, size_bytes, content_type, category, url, duration_ms, metadata, tags, created_at
		FROM uploads
		WHERE identity = $1
		ORDER BY created_at DESC, tx_id DESC
		LIMIT $2
	`
	rows, err := tx.QueryContext(ctx, recentQ, identity, recent)
	if err != nil {
		return nil, fmt.Errorf("read recent uploads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		up, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		dash.RecentUploads = append(dash.RecentUploads, *up)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const tokens = `SELECT COUNT(*) FROM token_assets WHERE identity = $1`
	if err := tx.QueryRowContext(ctx, tokens, identity).Scan(&dash.TokenCount); err != nil {
		return nil, fmt.Errorf("count token assets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return dash, nil
}

// Admit counts the identity's live rate events and records a new one only
// when the count is below ceiling. The transaction takes a per-identity
// advisory lock first, so concurrent admissions for the same identity are
// serialized across every replica sharing the database.
func (l *LedgerPostgres) Admit(ctx context.Context, identity, sourceAddr string, since, ts time.Time, ceiling int) (int, bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin admit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identity); err != nil {
		return 0, false, fmt.Errorf("lock rate window: %w", err)
	}

	var n int
	const count = `SELECT COUNT(*) FROM rate_events WHERE identity = $1 AND created_at >= $2`
	if err := tx.QueryRowContext(ctx, count, identity, since).Scan(&n); err != nil {
		return 0, false, fmt.Errorf("count rate window: %w", err)
	}
	if n >= ceiling {
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("commit admit: %w", err)
		}
		return n, false, nil
	}

	const insert = `INSERT INTO rate_events (identity, source_addr, created_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insert, identity, sourceAddr, ts); err != nil {
		return 0, false, fmt.Errorf("record rate event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit admit: %w", err)
	}
	return n, true, nil
}

// CountSince counts rate events for identity at or after since.
func (l *LedgerPostgres) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM rate_events WHERE identity = $1 AND created_at >= $2`
	var n int
	if err := l.db.QueryRowContext(ctx, q, identity, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// PruneBefore drops rate events that fell out of every window.
func (l *LedgerPostgres) PruneBefore(ctx context.Context, before time.Time) error {
	const q = `DELETE FROM rate_events WHERE created_at < $1`
	_, err := l.db.ExecContext(ctx, q, before)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*model.Upload, error) {
	var (
		up         model.Upload
		category   string
		durationMs int64
		metadata   []byte
		tagList    []byte
	)
	if err := row.Scan(
		&up.TxID,
		&up.Identity,
		&up.FileName,
		&up.Size,
		&up.ContentType,
		&category,
		&up.URL,
		&durationMs,
		&metadata,
		&tagList,
		&up.CreatedAt,
	); err != nil {
		return nil, err
	}
	up.Category = model.Category(category)
	up.Duration = time.Duration(durationMs) * time.Millisecond
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &up.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(tagList) > 0 {
		if err := json.Unmarshal(tagList, &up.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &up, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
