package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

const sessionCookie = "converter_session"

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *models.Session)

// withSession resolves the caller's session from its cookie, starting a new
// one when the cookie is missing, malformed or points at a purged session.
func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.lookupSession(r)
		if err != nil && !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrInvalidArgument) {
			h.fail(w, r, err)
			return
		}

		if sess == nil {
			sess, err = h.svc.CreateSession(r.Context())
			if err != nil {
				h.fail(w, r, err)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID.String(),
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			h.logger.Debug().Str("session_id", sess.ID.String()).Msg("session created")
		}

		next(w, r, sess)
	}
}

func (h *Handler) lookupSession(r *http.Request) (*models.Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, models.ErrNotFound
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return nil, models.ErrInvalidArgument
	}
	return h.svc.GetSession(r.Context(), id)
}
