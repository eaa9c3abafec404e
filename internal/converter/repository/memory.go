package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

// MemoryRepository keeps sessions and their pending outbox events in process.
type MemoryRepository struct {
	mu     sync.RWMutex
	data   map[uuid.UUID]*models.Session
	outbox []models.OutboxRecord
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data: make(map[uuid.UUID]*models.Session),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *models.Session) error {
	if s == nil || s.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[s.ID]; exists {
		return models.ErrConflict
	}
	r.data[s.ID] = s.Clone()

	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, s *models.Session, events ...models.DomainEvent) error {
	if s == nil || s.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]models.OutboxRecord, 0, len(events))
	for _, e := range events {
		rec, err := models.NewOutboxRecord(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		records = append(records, rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[s.ID]; !ok {
		return models.ErrNotFound
	}
	r.data[s.ID] = s.Clone()

	for _, rec := range records {
		r.nextID++
		rec.ID = r.nextID
		r.outbox = append(r.outbox, rec)
	}

	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func (r *MemoryRepository) ListIdleSince(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, s := range r.data {
		if s.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *MemoryRepository) GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(limit, len(r.outbox))
	out := make([]models.OutboxRecord, n)
	copy(out, r.outbox[:n])
	return out, nil
}

// MarkProcessed drops the record; processed events are not kept in memory.
func (r *MemoryRepository) MarkProcessed(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.outbox {
		if rec.ID == id {
			r.outbox = append(r.outbox[:i], r.outbox[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}
