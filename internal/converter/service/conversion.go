package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/domain"
	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

// ProcessFailedMessage prefixes the error detail shown when the selected
// file could not be processed.
const ProcessFailedMessage = "Failed to process file"

// StartConversion moves the session to converting and runs the conversion in
// the background. Without a selected file, or while a conversion is already
// running, nothing changes and the current session is returned together with
// models.ErrNoFile or models.ErrConversionInProgress. A session left in
// converting with no conversion running (process restart, lost result write)
// can be started again.
func (s *Service) StartConversion(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.File == nil {
		return sess, models.ErrNoFile
	}
	if _, ok := s.running[sess.ID]; ok && sess.Status == models.ConvertingStatus {
		return sess, models.ErrConversionInProgress
	}

	previous := sess.Artifact
	sess.Artifact = nil
	sess.ErrorMessage = ""

	event, err := s.transition(sess, models.ConvertingStatus)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, sess, eventsOf(event)...); err != nil {
		return nil, err
	}
	s.dropArtifact(ctx, previous)

	job := conversionJob{
		sessionID:  sess.ID,
		generation: sess.Generation,
		file:       *sess.File,
		from:       sess.SourceFormat,
		to:         sess.TargetFormat,
	}

	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("from", job.from).
		Str("to", job.to).
		Msg("conversion started")

	// The conversion outlives the request that triggered it.
	s.running[sess.ID] = sess.Generation
	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), job)

	return sess, nil
}

type conversionJob struct {
	sessionID  uuid.UUID
	generation int64
	file       models.SelectedFile
	from       string
	to         string
}

func (s *Service) run(ctx context.Context, job conversionJob) {
	defer s.wg.Done()

	started := s.clock()
	s.sleep(ctx, s.delay)

	artifact, err := s.convert(ctx, job)
	s.finish(ctx, job, artifact, err)

	s.logger.Debug().
		Str("session_id", job.sessionID.String()).
		Dur("elapsed", s.clock().Sub(started)).
		Msg("conversion finished")
}

func (s *Service) convert(ctx context.Context, job conversionJob) (*models.Artifact, error) {
	data, err := s.blobs.Get(ctx, job.file.BlobID)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	out, err := s.converter.Convert(ctx, data, job.from, job.to)
	if err != nil {
		return nil, fmt.Errorf("convert %s to %s: %w", job.from, job.to, err)
	}

	blobID, err := s.blobs.Put(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	return &models.Artifact{
		BlobID:    blobID,
		Format:    job.to,
		MediaType: formats.ArtifactMediaType(job.to),
		Size:      int64(len(out)),
		CreatedAt: s.clock(),
	}, nil
}

// finish records the outcome unless the session moved on (file replaced or
// cleared, or session purged) while the conversion ran. When the success
// cannot be stored the session is moved to error instead, so it never stays
// in converting.
func (s *Service) finish(ctx context.Context, job conversionJob, artifact *models.Artifact, convErr error) {
	log := s.logger.With().Str("session_id", job.sessionID.String()).Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen, ok := s.running[job.sessionID]; ok && gen == job.generation {
		delete(s.running, job.sessionID)
	}

	sess, err := s.repo.GetByID(ctx, job.sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("session gone before conversion finished")
		s.dropArtifact(ctx, artifact)
		return
	}
	if sess.Generation != job.generation || sess.Status != models.ConvertingStatus {
		log.Info().Msg("discarding stale conversion result")
		s.dropArtifact(ctx, artifact)
		return
	}

	if convErr == nil {
		err := s.record(ctx, sess.Clone(), models.SuccessStatus, artifact, "")
		if err == nil {
			log.Info().
				Str("format", artifact.Format).
				Int64("size", artifact.Size).
				Msg("conversion succeeded")
			return
		}
		log.Error().Err(err).Msg("failed to record conversion result")
		s.dropArtifact(ctx, artifact)
		convErr = fmt.Errorf("record result: %w", err)
	}

	if err := s.record(ctx, sess, models.ErrorStatus, nil, ProcessFailedMessage+": "+convErr.Error()); err != nil {
		log.Error().Err(err).AnErr("cause", convErr).Msg("failed to record conversion failure")
		return
	}
	log.Error().Err(convErr).Msg("conversion failed")
}

// record moves sess to a terminal status and stores it. Caller holds s.mu.
func (s *Service) record(ctx context.Context, sess *models.Session, to models.Status, artifact *models.Artifact, message string) error {
	sess.Artifact = artifact
	sess.ErrorMessage = message

	event, err := s.transition(sess, to)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, sess, eventsOf(event)...)
}

func toDomainStatus(s models.Status) (domain.Status, error) {
	switch s {
	case models.IdleStatus:
		return domain.Idle, nil
	case models.ConvertingStatus:
		return domain.Converting, nil
	case models.SuccessStatus:
		return domain.Success, nil
	case models.ErrorStatus:
		return domain.Failed, nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

// transition validates and applies a status change. It returns nil when the
// status does not change.
func (s *Service) transition(sess *models.Session, to models.Status) (models.DomainEvent, error) {
	fromDom, err := toDomainStatus(sess.Status)
	if err != nil {
		return nil, err
	}
	toDom, err := toDomainStatus(to)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateTransition(fromDom, toDom); err != nil {
		return nil, err
	}

	now := s.clock()
	sess.UpdatedAt = now
	if sess.Status == to {
		return nil, nil
	}

	from := sess.Status
	sess.Status = to
	return models.NewSessionStatusChanged(sess, from, now), nil
}

func eventsOf(e models.DomainEvent) []models.DomainEvent {
	if e == nil {
		return nil
	}
	return []models.DomainEvent{e}
}

// blobsOf lists the blobs a session references.
func blobsOf(sess *models.Session) []uuid.UUID {
	var ids []uuid.UUID
	if sess.Artifact != nil {
		ids = append(ids, sess.Artifact.BlobID)
	}
	if sess.File != nil {
		ids = append(ids, sess.File.BlobID)
	}
	return ids
}

func (s *Service) dropArtifact(ctx context.Context, a *models.Artifact) {
	if a != nil {
		s.dropBlob(ctx, a.BlobID)
	}
}

func (s *Service) dropBlobs(ctx context.Context, ids []uuid.UUID) {
	for _, id := range ids {
		s.dropBlob(ctx, id)
	}
}

func (s *Service) dropBlob(ctx context.Context, id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	if err := s.blobs.Delete(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("blob_id", id.String()).Msg("failed to delete blob")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
