package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

type FormatsRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type FileResponse struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	SizeHuman    string `json:"size_human"`
	DeclaredType string `json:"declared_type,omitempty"`
	DetectedAs   string `json:"detected_as,omitempty"`
	OutputName   string `json:"output_name"`
}

type ArtifactResponse struct {
	Format    string `json:"format"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

type SessionResponse struct {
	ID           uuid.UUID         `json:"id"`
	Status       models.Status     `json:"status"`
	SourceFormat string            `json:"source_format"`
	TargetFormat string            `json:"target_format"`
	File         *FileResponse     `json:"file,omitempty"`
	Artifact     *ArtifactResponse `json:"artifact,omitempty"`
	Error        string            `json:"error,omitempty"`
	CanStart     bool              `json:"can_start"`
	View         StatusView        `json:"view"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toSessionResponse(s *models.Session) SessionResponse {
	resp := SessionResponse{
		ID:           s.ID,
		Status:       s.Status,
		SourceFormat: s.SourceFormat,
		TargetFormat: s.TargetFormat,
		Error:        s.ErrorMessage,
		CanStart:     canStart(s),
		View:         Present(s),
		UpdatedAt:    s.UpdatedAt,
	}
	if f := s.File; f != nil {
		resp.File = &FileResponse{
			Name:         f.Name,
			Size:         f.Size,
			SizeHuman:    formats.FormatFileSize(f.Size),
			DeclaredType: f.DeclaredType,
			DetectedAs:   formats.Detect(f.Name),
			OutputName:   formats.OutputFileName(f.Name, s.TargetFormat),
		}
	}
	if a := s.Artifact; a != nil {
		resp.Artifact = &ArtifactResponse{
			Format:    a.Format,
			MediaType: a.MediaType,
			Size:      a.Size,
		}
	}
	return resp
}
