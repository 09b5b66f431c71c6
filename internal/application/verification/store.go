package verification

import (
	"context"
	"time"

	"github.com/phone-verification-api/internal/domain"
)

// Store is the authoritative keyed storage for verification sessions.
// Implementations must apply lazy expiry on every read path: a pending
// session past its deadline is reported (and persisted) as expired before
// anything else happens, so an expired-but-correct code never verifies.
//
// Backed in-memory (memstore) by default, or by DynamoDB with native TTL
// and conditional writes (dynamo), selected through dependency injection.
type Store interface {
	// Put inserts a new session. Returns ErrConflict if the id is already live.
	Put(ctx context.Context, s *domain.VerificationSession) error
	// Get returns the session by id with lazy expiry applied and persisted.
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
	// Verify transitions a pending session to verified when the submitted
	// code matches. Check order: ErrNotFound, ErrExpired (before any code
	// comparison), ErrCodeMismatch (session stays pending, retryable).
	// Verifying an already-verified session succeeds without touching
	// verified_at.
	Verify(ctx context.Context, sessionID, submittedCode string) (*domain.VerificationSession, error)
	// Update mutates the mutable subset of a session: status, verified_at
	// and metadata (merged). All other fields are immutable and silently
	// ignored. Returns the updated session or ErrNotFound.
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) (*domain.VerificationSession, error)
	// SweepExpired removes every session past its deadline irrespective of
	// status and returns the number removed. Pure housekeeping; lazy
	// expiry stays authoritative regardless of sweep timing.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
