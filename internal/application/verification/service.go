package verification

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/phone-verification-api/internal/domain"
	"github.com/phone-verification-api/internal/infrastructure/sns"
	"github.com/phone-verification-api/internal/pkg/code"
	"github.com/phone-verification-api/internal/pkg/id"
)

type CreateRequest struct {
	Phone      string            `json:"phone" validate:"required,e164"`
	Channel    string            `json:"channel" validate:"required,oneof=sms whatsapp qr"`
	TTLSeconds int               `json:"ttl_seconds" validate:"omitempty,min=30,max=86400"`
	Metadata   map[string]string `json:"metadata"`
}

type CreateResult struct {
	SessionID       string    `json:"session_id"`
	DeliveryPayload string    `json:"delivery_payload"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type VerifyResult struct {
	Verified bool
	Session  *domain.VerificationSession
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
	Verify(ctx context.Context, sessionID, submittedCode string) (*VerifyResult, error)
	Attach(ctx context.Context, sessionID string, fields map[string]string) (*domain.VerificationSession, error)
	Sweep(ctx context.Context) (int, error)
}

type ServiceDeps struct {
	Store            Store
	SMSSender        sns.SMSSender      // optional; nil means no outbound SMS
	Simulator        *DeliverySimulator // optional
	DefaultTTL       time.Duration
	WhatsAppLinkBase string
	QRLinkBase       string
}

type service struct {
	store     Store
	smsSender sns.SMSSender
	simulator *DeliverySimulator
	ttl       time.Duration
	waBase    string
	qrBase    string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:     deps.Store,
		smsSender: deps.SMSSender,
		simulator: deps.Simulator,
		ttl:       deps.DefaultTTL,
		waBase:    deps.WhatsAppLinkBase,
		qrBase:    deps.QRLinkBase,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Phone == "" {
		return nil, fmt.Errorf("phone required: %w", domain.ErrBadRequest)
	}
	ttl := s.ttl
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	otp, err := code.Numeric()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.VerificationSession{
		SessionID: id.New(),
		Phone:     req.Phone,
		Code:      otp,
		Channel:   req.Channel,
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl).Unix(),
		Metadata:  copyMetadata(req.Metadata),
	}
	// The code-bearing payload goes back in the creation response only.
	// Session metadata is readable by anyone holding the id, so the
	// payload must never be stored there.
	payload := s.deliveryPayload(sess, ttl)
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}

	// Delivery is out of band: the payload goes back to the caller either
	// way, so a failed SMS publish degrades rather than fails the request.
	if sess.Channel == domain.ChannelSMS && s.smsSender != nil {
		if err := s.smsSender.SendSMS(ctx, sess.Phone, payload); err != nil {
			slog.Warn("failed to send verification SMS", "session_id", sess.SessionID, "err", err)
		}
	} else if s.simulator != nil {
		s.simulator.Schedule(sess.SessionID, sess.Code)
	}

	return &CreateResult{
		SessionID:       sess.SessionID,
		DeliveryPayload: payload,
		ExpiresAt:       time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	return s.store.Get(ctx, sessionID)
}

func (s *service) Verify(ctx context.Context, sessionID, submittedCode string) (*VerifyResult, error) {
	sess, err := s.store.Verify(ctx, sessionID, submittedCode)
	if err != nil {
		return nil, err
	}
	if s.simulator != nil {
		// A real verification makes the scheduled simulated flip pointless.
		s.simulator.Cancel(sessionID)
	}
	return &VerifyResult{Verified: true, Session: sess}, nil
}

func (s *service) Attach(ctx context.Context, sessionID string, fields map[string]string) (*domain.VerificationSession, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("fields required: %w", domain.ErrBadRequest)
	}
	return s.store.Update(ctx, sessionID, map[string]interface{}{"metadata": fields})
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	return s.store.SweepExpired(ctx, time.Now().UTC())
}

// copyMetadata detaches the stored map from the caller-owned request map.
func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// deliveryPayload renders the channel-specific out-of-band payload: the SMS
// text, a wa.me deep link, or the link a QR code is rendered from.
func (s *service) deliveryPayload(sess *domain.VerificationSession, ttl time.Duration) string {
	switch sess.Channel {
	case domain.ChannelWhatsApp:
		text := fmt.Sprintf("Your Morocco Made Real verification code is %s", sess.Code)
		return fmt.Sprintf("%s/%s?text=%s", s.waBase, strings.TrimPrefix(sess.Phone, "+"), url.QueryEscape(text))
	case domain.ChannelQR:
		return fmt.Sprintf("%s?session=%s&code=%s", s.qrBase, sess.SessionID, sess.Code)
	default:
		return fmt.Sprintf("Your Morocco Made Real verification code is %s. It expires in %d minutes.", sess.Code, int(ttl.Minutes()))
	}
}
