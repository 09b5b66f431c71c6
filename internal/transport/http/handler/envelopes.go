package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/phone-verification-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// SessionView is the public projection of a verification session.
// The code never leaves the store boundary.
type SessionView struct {
	SessionID  string            `json:"session_id"`
	Status     string            `json:"status"`
	Phone      string            `json:"phone"`
	Channel    string            `json:"channel"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	VerifiedAt *time.Time        `json:"verified_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IssueEnvelope wraps session-creation responses.
type IssueEnvelope struct {
	SessionID       string    `json:"session_id"`
	DeliveryPayload string    `json:"delivery_payload"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// VerifyEnvelope wraps code-submission responses.
type VerifyEnvelope struct {
	Verified   bool       `json:"verified"`
	Status     string     `json:"status"`
	Phone      string     `json:"phone"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

func toSessionView(s *domain.VerificationSession) *SessionView {
	return &SessionView{
		SessionID:  s.SessionID,
		Status:     s.Status,
		Phone:      s.Phone,
		Channel:    s.Channel,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  time.Unix(s.ExpiresAt, 0).UTC(),
		VerifiedAt: s.VerifiedAt,
		Metadata:   s.Metadata,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinels to HTTP status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrCodeMismatch):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
