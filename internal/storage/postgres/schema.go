package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversion_sessions (
	id                UUID PRIMARY KEY,
	status            TEXT        NOT NULL,
	source_format     TEXT        NOT NULL,
	target_format     TEXT        NOT NULL,
	file_blob_id      UUID,
	file_name         TEXT,
	file_type         TEXT,
	file_size         BIGINT,
	file_selected_at  TIMESTAMPTZ,
	artifact_blob_id  UUID,
	artifact_format   TEXT,
	artifact_type     TEXT,
	artifact_size     BIGINT,
	artifact_created_at TIMESTAMPTZ,
	error_message     TEXT        NOT NULL DEFAULT '',
	generation        BIGINT      NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS conversion_sessions_updated_at_idx ON conversion_sessions (updated_at);

CREATE TABLE IF NOT EXISTS outbox (
	id            BIGSERIAL PRIMARY KEY,
	event_id      UUID        NOT NULL UNIQUE,
	event_type    TEXT        NOT NULL,
	aggregate_id  UUID        NOT NULL,
	payload       JSONB       NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	processed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE processed_at IS NULL;
`

// EnsureSchema creates the tables the repositories need if they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
