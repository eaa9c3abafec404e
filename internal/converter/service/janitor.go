package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

// PurgeIdle deletes sessions untouched since before, together with their
// blobs. Sessions with a conversion running in this process are kept; a
// session stuck in converting without one is purged like any other.
func (s *Service) PurgeIdle(ctx context.Context, before time.Time) (int, error) {
	ids, err := s.repo.ListIdleSince(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	purged := 0
	for _, id := range ids {
		ok, err := s.purge(ctx, id, before)
		if err != nil {
			return purged, fmt.Errorf("purge session %s: %w", id, err)
		}
		if ok {
			purged++
		}
	}
	return purged, nil
}

func (s *Service) purge(ctx context.Context, id uuid.UUID, before time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Touched after listing, or still converting.
	if _, running := s.running[id]; running || !sess.UpdatedAt.Before(before) {
		return false, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, err
	}
	s.dropBlobs(ctx, blobsOf(sess))
	return true, nil
}

// RunJanitor purges sessions idle for longer than ttl every interval until ctx
// is canceled.
func (s *Service) RunJanitor(ctx context.Context, interval, ttl time.Duration) error {
	if interval <= 0 || ttl <= 0 {
		return fmt.Errorf("janitor interval and ttl must be positive, got: %v, %v", interval, ttl)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := s.logger.With().Str("component", "session_janitor").Logger()
	log.Info().Dur("interval", interval).Dur("ttl", ttl).Msg("session janitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session janitor stopped")
			return nil
		case <-ticker.C:
			n, err := s.PurgeIdle(ctx, s.clock().Add(-ttl))
			if err != nil {
				log.Error().Err(err).Msg("failed to purge idle sessions")
				continue
			}
			if n > 0 {
				log.Info().Int("purged", n).Msg("idle sessions purged")
			}
		}
	}
}
