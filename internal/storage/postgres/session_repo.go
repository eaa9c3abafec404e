package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

// SessionRepo stores session metadata. File contents never reach the
// database.
type SessionRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

func NewSessionRepo(db *sqlx.DB, outbox *OutboxRepo) *SessionRepo {
	return &SessionRepo{db: db, outbox: outbox}
}

type sessionRow struct {
	ID                uuid.UUID      `db:"id"`
	Status            string         `db:"status"`
	SourceFormat      string         `db:"source_format"`
	TargetFormat      string         `db:"target_format"`
	FileBlobID        uuid.NullUUID  `db:"file_blob_id"`
	FileName          sql.NullString `db:"file_name"`
	FileType          sql.NullString `db:"file_type"`
	FileSize          sql.NullInt64  `db:"file_size"`
	FileSelectedAt    sql.NullTime   `db:"file_selected_at"`
	ArtifactBlobID    uuid.NullUUID  `db:"artifact_blob_id"`
	ArtifactFormat    sql.NullString `db:"artifact_format"`
	ArtifactType      sql.NullString `db:"artifact_type"`
	ArtifactSize      sql.NullInt64  `db:"artifact_size"`
	ArtifactCreatedAt sql.NullTime   `db:"artifact_created_at"`
	ErrorMessage      string         `db:"error_message"`
	Generation        int64          `db:"generation"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func toRow(s *models.Session) sessionRow {
	row := sessionRow{
		ID:           s.ID,
		Status:       string(s.Status),
		SourceFormat: s.SourceFormat,
		TargetFormat: s.TargetFormat,
		ErrorMessage: s.ErrorMessage,
		Generation:   s.Generation,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if f := s.File; f != nil {
		row.FileBlobID = uuid.NullUUID{UUID: f.BlobID, Valid: true}
		row.FileName = sql.NullString{String: f.Name, Valid: true}
		row.FileType = sql.NullString{String: f.DeclaredType, Valid: true}
		row.FileSize = sql.NullInt64{Int64: f.Size, Valid: true}
		row.FileSelectedAt = sql.NullTime{Time: f.SelectedAt, Valid: true}
	}
	if a := s.Artifact; a != nil {
		row.ArtifactBlobID = uuid.NullUUID{UUID: a.BlobID, Valid: true}
		row.ArtifactFormat = sql.NullString{String: a.Format, Valid: true}
		row.ArtifactType = sql.NullString{String: a.MediaType, Valid: true}
		row.ArtifactSize = sql.NullInt64{Int64: a.Size, Valid: true}
		row.ArtifactCreatedAt = sql.NullTime{Time: a.CreatedAt, Valid: true}
	}
	return row
}

func (r sessionRow) toModel() *models.Session {
	s := &models.Session{
		ID:           r.ID,
		Status:       models.Status(r.Status),
		SourceFormat: r.SourceFormat,
		TargetFormat: r.TargetFormat,
		ErrorMessage: r.ErrorMessage,
		Generation:   r.Generation,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.FileBlobID.Valid {
		s.File = &models.SelectedFile{
			BlobID:       r.FileBlobID.UUID,
			Name:         r.FileName.String,
			DeclaredType: r.FileType.String,
			Size:         r.FileSize.Int64,
			SelectedAt:   r.FileSelectedAt.Time,
		}
	}
	if r.ArtifactBlobID.Valid {
		s.Artifact = &models.Artifact{
			BlobID:    r.ArtifactBlobID.UUID,
			Format:    r.ArtifactFormat.String,
			MediaType: r.ArtifactType.String,
			Size:      r.ArtifactSize.Int64,
			CreatedAt: r.ArtifactCreatedAt.Time,
		}
	}
	return s
}

const sessionColumns = `id, status, source_format, target_format,
	file_blob_id, file_name, file_type, file_size, file_selected_at,
	artifact_blob_id, artifact_format, artifact_type, artifact_size, artifact_created_at,
	error_message, generation, created_at, updated_at`

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	const q = `
		INSERT INTO conversion_sessions (` + sessionColumns + `)
		VALUES (:id, :status, :source_format, :target_format,
			:file_blob_id, :file_name, :file_type, :file_size, :file_selected_at,
			:artifact_blob_id, :artifact_format, :artifact_type, :artifact_size, :artifact_created_at,
			:error_message, :generation, :created_at, :updated_at)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.NamedExecContext(ctx, q, toRow(s))
	if err != nil {
		return fmt.Errorf("session create: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM conversion_sessions WHERE id = $1`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("session get by id: %w", err)
	}
	return row.toModel(), nil
}

// Update writes the session and its events in one transaction.
func (r *SessionRepo) Update(ctx context.Context, s *models.Session, events ...models.DomainEvent) error {
	const q = `
		UPDATE conversion_sessions SET
			status = :status,
			source_format = :source_format,
			target_format = :target_format,
			file_blob_id = :file_blob_id,
			file_name = :file_name,
			file_type = :file_type,
			file_size = :file_size,
			file_selected_at = :file_selected_at,
			artifact_blob_id = :artifact_blob_id,
			artifact_format = :artifact_format,
			artifact_type = :artifact_type,
			artifact_size = :artifact_size,
			artifact_created_at = :artifact_created_at,
			error_message = :error_message,
			generation = :generation,
			updated_at = :updated_at
		WHERE id = :id
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, q, toRow(s))
	if err != nil {
		return fmt.Errorf("session update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}

	for _, e := range events {
		if err := r.outbox.Add(ctx, tx, e); err != nil {
			return fmt.Errorf("add outbox: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversion_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) ListIdleSince(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	const q = `SELECT id FROM conversion_sessions WHERE updated_at < $1`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, q, before); err != nil {
		return nil, fmt.Errorf("session list idle: %w", err)
	}
	return ids, nil
}
