package domain

import "time"

// Session status values. Transitions are one-directional:
// pending -> verified (code match before expiry) or pending -> expired.
// verified and expired are terminal.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusExpired  = "expired"
)

// Delivery channels a verification session can be issued over.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelQR       = "qr"
)

// VerificationSession ties a phone number to a one-time code and its
// lifecycle state. PK: session_id. ExpiresAt doubles as the DynamoDB TTL
// attribute (Unix seconds).
type VerificationSession struct {
	SessionID  string            `json:"session_id" dynamodbav:"session_id"`
	Phone      string            `json:"phone" dynamodbav:"phone"`
	Code       string            `json:"-" dynamodbav:"code"` // never serialized to callers
	Channel    string            `json:"channel" dynamodbav:"channel"`
	Status     string            `json:"status" dynamodbav:"status"`
	CreatedAt  time.Time         `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt  int64             `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	VerifiedAt *time.Time        `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// EffectiveStatus derives the status a caller must observe at the given
// instant. A pending session whose deadline has passed is expired even if
// no write has recorded that yet; stores persist the flip opportunistically,
// this derivation is what decides it.
func (s *VerificationSession) EffectiveStatus(now time.Time) string {
	if s.Status == StatusPending && now.Unix() > s.ExpiresAt {
		return StatusExpired
	}
	return s.Status
}

// PastExpiry reports whether the session's deadline has passed at the given
// instant, irrespective of stored status. The sweep uses this, so verified
// sessions past their TTL are removed too.
func (s *VerificationSession) PastExpiry(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}
