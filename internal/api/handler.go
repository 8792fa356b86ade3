// Package api exposes flow sessions over HTTP. Each request runs one session
// command and answers with the session view.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	commonerrors "certflow/internal/common/errors"
	"certflow/internal/common/logger"
	"certflow/internal/session"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type SessionHandler struct {
	manager *session.Manager
	logger  logger.Logger
}

func NewSessionHandler(manager *session.Manager, log logger.Logger) *SessionHandler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SessionHandler{manager: manager, logger: log}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Start(r.Context())
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

type fieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

func (h *SessionHandler) SetFields(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if err := readJSON(r, &req); err != nil {
		h.writeError(w, commonerrors.NewInputParsingFailedError(err), nil)
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	view := s.SetFields(req.Fields)
	h.persist(w, r, s, view, nil)
}

func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	view, err := s.Advance(r.Context())
	h.persist(w, r, s, view, err)
}

func (h *SessionHandler) AdvanceTo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	view, err := s.AdvanceTo(r.Context(), chi.URLParam(r, "target"))
	h.persist(w, r, s, view, err)
}

func (h *SessionHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	h.persist(w, r, s, s.Retreat(), nil)
}

func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	_, err := s.Submit(r.Context())
	h.persist(w, r, s, s.View(), err)
}

func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": s.Preview()})
}

func (h *SessionHandler) Payment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	target, err := s.Payment()
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (h *SessionHandler) load(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionId")
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			err = commonerrors.NewSessionNotFoundError(id, err)
		}
		h.writeError(w, err, nil)
		return nil, false
	}
	return s, true
}

// persist saves the session and answers with view, or with cmdErr plus view
// when the command was refused.
func (h *SessionHandler) persist(w http.ResponseWriter, r *http.Request, s *session.Session, view session.View, cmdErr error) {
	if err := h.manager.Save(r.Context(), s); err != nil {
		h.writeError(w, err, &view)
		return
	}
	if cmdErr != nil {
		h.writeError(w, cmdErr, &view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type errorBody struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (h *SessionHandler) writeError(w http.ResponseWriter, err error, view *session.View) {
	stdErr := commonerrors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"code":  string(stdErr.Code),
			"error": err,
		})
	}
	payload := map[string]any{
		"error": errorBody{
			Code:     string(stdErr.Code),
			Message:  stdErr.Message,
			Details:  stdErr.Details,
			Metadata: stdErr.Metadata,
		},
	}
	if view != nil {
		payload["state"] = view
	}
	writeJSON(w, status, payload)
}

func statusFor(code commonerrors.ErrorCode) int {
	switch code {
	case commonerrors.ErrCodeRequiredFieldsMissing, commonerrors.ErrCodeDateRangeInvalid:
		return http.StatusUnprocessableEntity
	case commonerrors.ErrCodeTransitionNotAllowed, commonerrors.ErrCodePaymentNotReady, commonerrors.ErrCodeSubmissionInFlight:
		return http.StatusConflict
	case commonerrors.ErrCodeSubmissionTimeout:
		return http.StatusGatewayTimeout
	case commonerrors.ErrCodeSubmissionFailed, commonerrors.ErrCodeSubmissionRejected:
		return http.StatusBadGateway
	case commonerrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case commonerrors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case commonerrors.ErrCodeSessionStoreFailed, commonerrors.ErrCodeExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
