package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_identities",
		SQL: `CREATE TABLE IF NOT EXISTS identities (
  address          TEXT        PRIMARY KEY,
  upload_count     BIGINT      NOT NULL DEFAULT 0 CHECK (upload_count >= 0),
  total_size_bytes BIGINT      NOT NULL DEFAULT 0 CHECK (total_size_bytes >= 0),
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_uploads",
		SQL: `CREATE TABLE IF NOT EXISTS uploads (
  tx_id        TEXT        PRIMARY KEY,
  identity     TEXT        NOT NULL REFERENCES identities (address),
  file_name    TEXT        NOT NULL,
  size_bytes   BIGINT      NOT NULL CHECK (size_bytes >= 0),
  content_type TEXT        NOT NULL,
  category     TEXT        NOT NULL,
  url          TEXT        NOT NULL,
  duration_ms  BIGINT      NOT NULL DEFAULT 0,
  metadata     JSONB,
  tags         JSONB,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_uploads_identity_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_uploads_identity_created_at ON uploads (identity, created_at DESC);`,
	},
	{
		Name: "create_index_uploads_category",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_uploads_category ON uploads (category);`,
	},
	{
		Name: "create_table_token_assets",
		SQL: `CREATE TABLE IF NOT EXISTS token_assets (
  id             UUID        PRIMARY KEY,
  identity       TEXT        NOT NULL REFERENCES identities (address),
  name           TEXT        NOT NULL,
  symbol         TEXT        NOT NULL,
  logo_tx_id     TEXT        NOT NULL REFERENCES uploads (tx_id),
  metadata_tx_id TEXT        NOT NULL REFERENCES uploads (tx_id),
  metadata_doc   TEXT        NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_token_assets_identity",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_token_assets_identity ON token_assets (identity);`,
	},
	{
		Name: "create_table_rate_events",
		SQL: `CREATE TABLE IF NOT EXISTS rate_events (
  id          BIGSERIAL   PRIMARY KEY,
  identity    TEXT        NOT NULL,
  source_addr TEXT        NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL
);`,
	},
	{
		Name: "create_index_rate_events_identity_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_rate_events_identity_created_at ON rate_events (identity, created_at);`,
	},
}

// EnsureMigrated checks if the 'uploads' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.uploads') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
