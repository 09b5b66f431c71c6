package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phone-verification-api/internal/application/verification"
	"github.com/phone-verification-api/internal/pkg/validate"
)

// VerificationHandler handles the verification-session endpoints.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

// Issue creates a session and returns its id plus the out-of-band delivery
// payload. The code itself is only ever inside that payload.
func (h *VerificationHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req verification.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	result, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IssueEnvelope{
		SessionID:       result.SessionID,
		DeliveryPayload: result.DeliveryPayload,
		ExpiresAt:       result.ExpiresAt,
	})
}

// Status returns the public view of a session with lazy expiry applied.
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(sess))
}

// Submit checks a candidate code against the session.
func (h *VerificationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	result, err := h.svc.Verify(r.Context(), chi.URLParam(r, "id"), body.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Verified:   result.Verified,
		Status:     result.Session.Status,
		Phone:      result.Session.Phone,
		VerifiedAt: result.Session.VerifiedAt,
	})
}

// Attach merges auxiliary channel metadata into a session.
func (h *VerificationHandler) Attach(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.Attach(r.Context(), chi.URLParam(r, "id"), body.Fields)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(sess))
}
