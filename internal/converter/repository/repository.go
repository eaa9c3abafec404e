package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// Update stores s and appends events to the outbox in one atomic write.
	Update(ctx context.Context, s *models.Session, events ...models.DomainEvent) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListIdleSince(ctx context.Context, before time.Time) ([]uuid.UUID, error)
}

type OutboxStore interface {
	GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// BlobStore keeps file contents for the lifetime of a session.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
