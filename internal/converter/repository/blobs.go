package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID][]byte
	idGen func() uuid.UUID
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[uuid.UUID][]byte),
		idGen: uuid.New,
	}
}

// Put stores the slice as given; callers hand over ownership.
func (s *MemoryBlobStore) Put(ctx context.Context, data []byte) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	id := s.idGen()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[id]; exists {
		return uuid.Nil, models.ErrConflict
	}
	s.blobs[id] = data
	return id, nil
}

// Get returns the stored bytes. The slice must be treated as read-only.
func (s *MemoryBlobStore) Get(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return data, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, id)
	return nil
}

func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
