package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	IdleStatus       Status = "idle"
	ConvertingStatus Status = "converting"
	SuccessStatus    Status = "success"
	ErrorStatus      Status = "error"
)

// SelectedFile points at uploaded bytes held in a blob store.
type SelectedFile struct {
	BlobID       uuid.UUID `json:"blob_id"`
	Name         string    `json:"name"`
	DeclaredType string    `json:"declared_type"`
	Size         int64     `json:"size"`
	SelectedAt   time.Time `json:"selected_at"`
}

// Artifact is the result of a finished conversion. Format is the destination
// format the conversion ran with.
type Artifact struct {
	BlobID    uuid.UUID `json:"blob_id"`
	Format    string    `json:"format"`
	MediaType string    `json:"media_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID           uuid.UUID
	Status       Status
	SourceFormat string
	TargetFormat string
	File         *SelectedFile
	Artifact     *Artifact
	ErrorMessage string
	// Generation changes whenever the selected file is replaced or cleared.
	// A conversion only lands if the generation it started with still holds.
	Generation int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	cp := *s
	if s.File != nil {
		f := *s.File
		cp.File = &f
	}
	if s.Artifact != nil {
		a := *s.Artifact
		cp.Artifact = &a
	}
	return &cp
}

// Validate checks the workflow invariants: an artifact exists exactly when the
// status is success, and an error message only accompanies the error status.
func (s *Session) Validate() error {
	switch s.Status {
	case IdleStatus, ConvertingStatus, SuccessStatus, ErrorStatus:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidArgument, s.Status)
	}
	if s.Status == SuccessStatus && s.Artifact == nil {
		return fmt.Errorf("%w: success without artifact", ErrInvalidArgument)
	}
	if s.Status != SuccessStatus && s.Artifact != nil {
		return fmt.Errorf("%w: artifact present in %s", ErrInvalidArgument, s.Status)
	}
	if s.Status != ErrorStatus && s.ErrorMessage != "" {
		return fmt.Errorf("%w: error message present in %s", ErrInvalidArgument, s.Status)
	}
	if s.Status == ConvertingStatus && s.File == nil {
		return fmt.Errorf("%w: converting without file", ErrInvalidArgument)
	}
	return nil
}
