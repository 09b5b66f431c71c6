package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phone-verification-api/internal/application/verification"
	"github.com/phone-verification-api/internal/domain"
	"github.com/phone-verification-api/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	return newTestRouterWithStore(t, memstore.New())
}

func newTestRouterWithStore(t *testing.T, store *memstore.Store) chi.Router {
	t.Helper()
	svc := verification.NewService(verification.ServiceDeps{
		Store:            store,
		DefaultTTL:       5 * time.Minute,
		WhatsAppLinkBase: "https://wa.me",
		QRLinkBase:       "https://verify.moroccomadereal.com/v",
	})
	h := NewVerificationHandler(svc)

	r := chi.NewRouter()
	r.Post("/v1/verifications", h.Issue)
	r.Get("/v1/verifications/{id}", h.Status)
	r.Post("/v1/verifications/{id}/verify", h.Submit)
	r.Put("/v1/verifications/{id}", h.Attach)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// issueQR creates a QR-channel session and extracts the code from the
// delivery payload, the only place it is exposed.
func issueQR(t *testing.T, r chi.Router) (sessionID, code string) {
	t.Helper()
	rec, body := doJSON(t, r, http.MethodPost, "/v1/verifications", map[string]interface{}{
		"phone":   "+212612345678",
		"channel": "qr",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	link, err := url.Parse(body["delivery_payload"].(string))
	require.NoError(t, err)
	return body["session_id"].(string), link.Query().Get("code")
}

func TestIssue_ReturnsSessionAndPayload(t *testing.T) {
	r := newTestRouter(t)

	rec, body := doJSON(t, r, http.MethodPost, "/v1/verifications", map[string]interface{}{
		"phone":   "+212612345678",
		"channel": "whatsapp",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, body["session_id"])
	assert.Contains(t, body["delivery_payload"], "https://wa.me/212612345678")
	assert.NotEmpty(t, body["expires_at"])
}

func TestIssue_RejectsInvalidPhone(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/v1/verifications", map[string]interface{}{
		"phone":   "not-a-phone",
		"channel": "sms",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestIssue_RejectsUnknownChannel(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/v1/verifications", map[string]interface{}{
		"phone":   "+212612345678",
		"channel": "carrier-pigeon",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStatus_PendingSessionWithoutCode(t *testing.T) {
	r := newTestRouter(t)
	id, code := issueQR(t, r)

	rec, body := doJSON(t, r, http.MethodGet, "/v1/verifications/"+id, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "+212612345678", body["phone"])
	// The raw code must never appear anywhere in the status view, not even
	// inside a metadata value such as a stored delivery link.
	assert.NotContains(t, rec.Body.String(), code)
	assert.Nil(t, body["verified_at"])
}

func TestStatus_UnknownSession(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodGet, "/v1/verifications/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmit_WrongThenCorrectCode(t *testing.T) {
	r := newTestRouter(t)
	id, code := issueQR(t, r)

	rec, _ := doJSON(t, r, http.MethodPost, "/v1/verifications/"+id+"/verify", map[string]string{"code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := doJSON(t, r, http.MethodPost, "/v1/verifications/"+id+"/verify", map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["verified"])
	assert.Equal(t, "verified", body["status"])
	assert.NotEmpty(t, body["verified_at"])
}

func TestSubmit_IdempotentRepeat(t *testing.T) {
	r := newTestRouter(t)
	id, code := issueQR(t, r)

	_, first := doJSON(t, r, http.MethodPost, "/v1/verifications/"+id+"/verify", map[string]string{"code": code})
	rec, second := doJSON(t, r, http.MethodPost, "/v1/verifications/"+id+"/verify", map[string]string{"code": code})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, second["verified"])
	assert.Equal(t, first["verified_at"], second["verified_at"])
}

func TestSubmit_ExpiredSessionIsGone(t *testing.T) {
	store := memstore.New()
	r := newTestRouterWithStore(t, store)
	sess := &domain.VerificationSession{
		SessionID: "sess-expired",
		Phone:     "+212612345678",
		Code:      "123456",
		Channel:   domain.ChannelQR,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC().Add(-10 * time.Minute),
		ExpiresAt: time.Now().UTC().Add(-5 * time.Minute).Unix(),
	}
	require.NoError(t, store.Put(context.Background(), sess))

	rec, _ := doJSON(t, r, http.MethodPost, "/v1/verifications/"+sess.SessionID+"/verify", map[string]string{"code": "123456"})

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestSubmit_MissingCode(t *testing.T) {
	r := newTestRouter(t)
	id, _ := issueQR(t, r)

	rec, _ := doJSON(t, r, http.MethodPost, "/v1/verifications/"+id+"/verify", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttach_MergesMetadataIntoView(t *testing.T) {
	r := newTestRouter(t)
	id, _ := issueQR(t, r)

	rec, body := doJSON(t, r, http.MethodPut, "/v1/verifications/"+id, map[string]interface{}{
		"fields": map[string]string{"requested_by": "admin-7"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	meta := body["metadata"].(map[string]interface{})
	assert.Equal(t, "admin-7", meta["requested_by"])
}

func TestAttach_UnknownSession(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPut, "/v1/verifications/missing", map[string]interface{}{
		"fields": map[string]string{"k": "v"},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
