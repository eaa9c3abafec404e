package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/romariotrain/ebook-converter/internal/converter/domain"
	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
	"github.com/romariotrain/ebook-converter/internal/converter/service"
)

// multipartOverhead is allowed on top of the file limit for form boundaries
// and headers.
const multipartOverhead = 1 << 20

type Handler struct {
	svc       *service.Service
	logger    zerolog.Logger
	maxUpload int64
}

func New(svc *service.Service, maxUpload int64, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		maxUpload: maxUpload,
		logger:    logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Formats lists the catalog on GET and updates the session's format choices
// on POST.
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, formats.Catalog())
	case http.MethodPost:
		h.withSession(h.setFormats)(w, r)
	default:
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) setFormats(w http.ResponseWriter, r *http.Request, sess *models.Session) {
	var req FormatsRequest
	if isJSONBody(r) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.fail(w, r, models.ErrInvalidArgument)
			return
		}
	} else {
		req.Source = r.FormValue("source")
		req.Target = r.FormValue("target")
	}

	known := lo.ToAnySlice(formats.IDs())
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Source, validation.In(known...)),
		validation.Field(&req.Target, validation.In(known...)),
	)
	if err != nil || (req.Source == "" && req.Target == "") {
		h.fail(w, r, models.ErrUnknownFormat)
		return
	}

	if req.Source != "" {
		if sess, err = h.svc.SetSourceFormat(r.Context(), sess.ID, req.Source); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if req.Target != "" {
		if sess, err = h.svc.SetTargetFormat(r.Context(), sess.ID, req.Target); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.respond(w, r, http.StatusOK, sess)
}

func (h *Handler) SelectFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.withSession(h.selectFile)(w, r)
}

func (h *Handler) selectFile(w http.ResponseWriter, r *http.Request, sess *models.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = models.ErrInvalidArgument
		}
		h.fail(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, models.ErrInvalidArgument)
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		h.fail(w, r, &http.MaxBytesError{Limit: h.maxUpload})
		return
	}

	updated, err := h.svc.SelectFile(r.Context(), sess.ID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, updated)
}

func (h *Handler) ClearFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.withSession(func(w http.ResponseWriter, r *http.Request, sess *models.Session) {
		updated, err := h.svc.ClearFile(r.Context(), sess.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.respond(w, r, http.StatusOK, updated)
	})(w, r)
}

// Convert starts a conversion. Starting without a file or while one is
// running leaves the session untouched.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.withSession(func(w http.ResponseWriter, r *http.Request, sess *models.Session) {
		updated, err := h.svc.StartConversion(r.Context(), sess.ID)
		switch {
		case err == nil:
			h.respond(w, r, http.StatusAccepted, updated)
		case errors.Is(err, models.ErrNoFile), errors.Is(err, models.ErrConversionInProgress):
			if wantsJSON(r) {
				h.fail(w, r, err)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
		default:
			h.fail(w, r, err)
		}
	})(w, r)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.withSession(func(w http.ResponseWriter, r *http.Request, sess *models.Session) {
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	})(w, r)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.withSession(func(w http.ResponseWriter, r *http.Request, sess *models.Session) {
		dl, err := h.svc.Download(r.Context(), sess.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		w.Header().Set("Content-Type", dl.MediaType)
		w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName}))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(dl.Data)
	})(w, r)
}

// respond answers JSON clients with the session and sends browsers back to
// the page.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, sess *models.Session) {
	if wantsJSON(r) {
		writeJSON(w, status, toSessionResponse(sess))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	if wantsJSON(r) {
		writeErrorJSON(w, status, msg)
		return
	}
	http.Redirect(w, r, "/?notice="+url.QueryEscape(msg), http.StatusSeeOther)
}

func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, models.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType, "unsupported file type; supported formats: EPUB, MOBI, PDF, TXT, FB2"
	case errors.Is(err, models.ErrUnknownFormat):
		return http.StatusBadRequest, "unknown format"
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid argument"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrNoArtifact):
		return http.StatusNotFound, "no converted file available"
	case errors.Is(err, models.ErrNoFile):
		return http.StatusConflict, "no file selected"
	case errors.Is(err, models.ErrConversionInProgress):
		return http.StatusConflict, "conversion already in progress"
	case errors.Is(err, models.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONBody(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
