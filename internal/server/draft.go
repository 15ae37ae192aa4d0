package server

import (
	"net/http"

	"estimator/internal/utils"
	"estimator/pkg/types"
)

type draftResponse struct {
	Handle  types.DraftHandle `json:"handle"`
	Resumed bool              `json:"resumed"`
}

// draftHandle reads the draft handle stored in the session cookie
func (s *Service) draftHandle(r *http.Request) (types.DraftHandle, bool) {
	cookie, err := r.Cookie(s.config.DraftCookieName)
	if err != nil {
		return types.DraftHandle{}, false
	}

	var handle types.DraftHandle
	if err := s.cookie.Decode(s.config.DraftCookieName, cookie.Value, &handle); err != nil {
		s.logger.WithError(err).Debug("discarding undecodable draft cookie")
		return types.DraftHandle{}, false
	}

	if !utils.IsTemporaryID(handle.TempID) {
		return types.DraftHandle{}, false
	}

	return handle, true
}

// setDraftHandle stores handle in a session cookie, one draft per browser
// session.
func (s *Service) setDraftHandle(w http.ResponseWriter, handle types.DraftHandle) error {
	encoded, err := s.cookie.Encode(s.config.DraftCookieName, handle)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.DraftCookieName,
		Value:    encoded,
		HttpOnly: true,
		Secure:   s.config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	return nil
}

func (s *Service) clearDraftHandle(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.DraftCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func (s *Service) handleGetCurrentDraft(w http.ResponseWriter, r *http.Request) {
	if handle, ok := s.draftHandle(r); ok {
		s.writeJSON(w, http.StatusOK, draftResponse{Handle: handle, Resumed: true})
		return
	}

	handle := types.DraftHandle{TempID: utils.TempID(s.now())}
	if err := s.setDraftHandle(w, handle); err != nil {
		s.logger.WithError(err).Error("failed to encode draft cookie")
		s.internalServerError(w)
		return
	}

	s.logger.WithField("temp_id", handle.TempID).Debug("started new draft")
	s.writeJSON(w, http.StatusOK, draftResponse{Handle: handle})
}

func (s *Service) handleDeleteCurrentDraft(w http.ResponseWriter, r *http.Request) {
	s.clearDraftHandle(w)
	w.WriteHeader(http.StatusNoContent)
}
