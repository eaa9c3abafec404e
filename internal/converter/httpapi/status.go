package httpapi

import "github.com/romariotrain/ebook-converter/internal/converter/models"

const (
	convertingText   = "Converting your file..."
	successText      = "Conversion completed successfully!"
	genericErrorText = "An error occurred during conversion"
)

// StatusView is what the status strip shows for a workflow state.
type StatusView struct {
	State       models.Status `json:"state"`
	Visible     bool          `json:"visible"`
	Message     string        `json:"message,omitempty"`
	CanDownload bool          `json:"can_download"`
}

// Present renders the status strip for s. Idle renders nothing.
func Present(s *models.Session) StatusView {
	v := StatusView{State: s.Status}

	switch s.Status {
	case models.ConvertingStatus:
		v.Visible = true
		v.Message = convertingText
	case models.SuccessStatus:
		v.Visible = true
		v.Message = successText
		v.CanDownload = s.Artifact != nil && s.File != nil
	case models.ErrorStatus:
		v.Visible = true
		v.Message = s.ErrorMessage
		if v.Message == "" {
			v.Message = genericErrorText
		}
	}
	return v
}

// canStart mirrors the start button: enabled with a file and no conversion
// running.
func canStart(s *models.Session) bool {
	return s.File != nil && s.Status != models.ConvertingStatus
}
