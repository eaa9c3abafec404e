package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/ebook-converter/internal/converter/codec"
	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
	"github.com/romariotrain/ebook-converter/internal/converter/repository"
)

const (
	DefaultSourceFormat = formats.EPUB
	DefaultTargetFormat = formats.FB2
	DefaultDelay        = 2 * time.Second
)

type Config struct {
	Repo      repository.SessionRepository
	Blobs     repository.BlobStore
	Converter codec.Converter
	// Delay is the minimum time a conversion takes before it completes.
	Delay  time.Duration
	Logger zerolog.Logger
}

// Service drives the conversion workflow of every session:
// idle -> converting -> success | error.
type Service struct {
	repo      repository.SessionRepository
	blobs     repository.BlobStore
	converter codec.Converter
	delay     time.Duration
	logger    zerolog.Logger

	clock func() time.Time
	idGen func() uuid.UUID
	sleep func(ctx context.Context, d time.Duration)

	// mu serializes read-modify-write cycles on sessions.
	mu sync.Mutex
	wg sync.WaitGroup
	// running maps sessions with a conversion goroutine in this process to
	// the generation it converts. Guarded by mu.
	running map[uuid.UUID]int64
}

func New(cfg Config) (*Service, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("delay cannot be negative, got: %v", cfg.Delay)
	}
	if cfg.Converter == nil {
		cfg.Converter = codec.Passthrough{}
	}

	return &Service{
		repo:      cfg.Repo,
		blobs:     cfg.Blobs,
		converter: cfg.Converter,
		delay:     cfg.Delay,
		logger:    cfg.Logger.With().Str("component", "conversion_service").Logger(),
		clock:     time.Now,
		idGen:     uuid.New,
		sleep:     sleepCtx,
		running:   make(map[uuid.UUID]int64),
	}, nil
}

// CreateSession starts a fresh workflow in the idle state with the default
// format pair.
func (s *Service) CreateSession(ctx context.Context) (*models.Session, error) {
	now := s.clock()
	sess := &models.Session{
		ID:           s.idGen(),
		Status:       models.IdleStatus,
		SourceFormat: DefaultSourceFormat,
		TargetFormat: DefaultTargetFormat,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession passes through domain errors (e.g. models.ErrNotFound) so the
// transport layer can map them.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.GetByID(ctx, id)
}

// SelectFile replaces the session's file with the contents of r. The workflow
// returns to idle, any artifact or error is dropped, and the source format
// follows the detected extension when it is known.
func (s *Service) SelectFile(ctx context.Context, id uuid.UUID, name, mediaType string, r io.Reader) (*models.Session, error) {
	if id == uuid.Nil || name == "" || r == nil {
		return nil, models.ErrInvalidArgument
	}
	if !formats.Accepts(name, mediaType) {
		return nil, fmt.Errorf("%w: %s (%s)", models.ErrUnsupportedFile, name, mediaType)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	blobID, err := s.blobs.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.dropBlob(ctx, blobID)
		return nil, err
	}
	stale := blobsOf(sess)

	now := s.clock()
	sess.File = &models.SelectedFile{
		BlobID:       blobID,
		Name:         name,
		DeclaredType: mediaType,
		Size:         int64(len(data)),
		SelectedAt:   now,
	}
	if detected := formats.Detect(name); detected != "" {
		sess.SourceFormat = detected
	}

	if err := s.reset(ctx, sess); err != nil {
		s.dropBlob(ctx, blobID)
		return nil, err
	}
	s.dropBlobs(ctx, stale)

	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("file", name).
		Int64("size", sess.File.Size).
		Str("source_format", sess.SourceFormat).
		Msg("file selected")

	return sess, nil
}

// ClearFile removes the selected file and returns the workflow to idle.
func (s *Service) ClearFile(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stale := blobsOf(sess)

	sess.File = nil
	if err := s.reset(ctx, sess); err != nil {
		return nil, err
	}
	s.dropBlobs(ctx, stale)

	return sess, nil
}

func (s *Service) SetSourceFormat(ctx context.Context, id uuid.UUID, format string) (*models.Session, error) {
	return s.setFormat(ctx, id, format, func(sess *models.Session) { sess.SourceFormat = format })
}

func (s *Service) SetTargetFormat(ctx context.Context, id uuid.UUID, format string) (*models.Session, error) {
	return s.setFormat(ctx, id, format, func(sess *models.Session) { sess.TargetFormat = format })
}

// setFormat does not cross-check source against target; equal formats are
// allowed.
func (s *Service) setFormat(ctx context.Context, id uuid.UUID, format string, apply func(*models.Session)) (*models.Session, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if !formats.IsKnown(format) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFormat, format)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	apply(sess)
	sess.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Download is a converted artifact ready to be handed to the user.
type Download struct {
	FileName  string
	MediaType string
	Data      []byte
}

// Download returns the artifact of a successful conversion, named after the
// selected file with the destination extension.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Download, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SuccessStatus || sess.Artifact == nil || sess.File == nil {
		return nil, models.ErrNoArtifact
	}

	data, err := s.blobs.Get(ctx, sess.Artifact.BlobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoArtifact
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	return &Download{
		FileName:  formats.OutputFileName(sess.File.Name, sess.Artifact.Format),
		MediaType: sess.Artifact.MediaType,
		Data:      data,
	}, nil
}

// Wait blocks until every conversion started so far has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// reset returns sess to idle with no artifact and no error, invalidating any
// conversion in flight. Caller holds s.mu.
func (s *Service) reset(ctx context.Context, sess *models.Session) error {
	sess.Artifact = nil
	sess.ErrorMessage = ""
	sess.Generation++

	event, err := s.transition(sess, models.IdleStatus)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, sess, eventsOf(event)...)
}
