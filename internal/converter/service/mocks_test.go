package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
	"github.com/romariotrain/ebook-converter/internal/converter/repository"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Create(ctx context.Context, s *models.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *StoreMock) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) Update(ctx context.Context, s *models.Session, events ...models.DomainEvent) error {
	args := m.Called(ctx, s, events)
	return args.Error(0)
}

func (m *StoreMock) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *StoreMock) ListIdleSince(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, before)
	if v := args.Get(0); v != nil {
		return v.([]uuid.UUID), args.Error(1)
	}
	return nil, args.Error(1)
}

// failingBlobs fails reads while getErr is set.
type failingBlobs struct {
	*repository.MemoryBlobStore
	getErr error
}

func (f *failingBlobs) Get(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryBlobStore.Get(ctx, id)
}

// flakyRepo fails the next `failures` updates that match fail.
type flakyRepo struct {
	*repository.MemoryRepository

	mu       sync.Mutex
	fail     func(*models.Session) bool
	failures int
}

func (r *flakyRepo) Update(ctx context.Context, s *models.Session, events ...models.DomainEvent) error {
	r.mu.Lock()
	if r.failures > 0 && r.fail(s) {
		r.failures--
		r.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	r.mu.Unlock()
	return r.MemoryRepository.Update(ctx, s, events...)
}

func statusIs(statuses ...models.Status) func(*models.Session) bool {
	return func(s *models.Session) bool {
		for _, st := range statuses {
			if s.Status == st {
				return true
			}
		}
		return false
	}
}
