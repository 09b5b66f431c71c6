// Package memstore is the default process-local session store. State lives
// only for the process lifetime; deployments needing persistence or
// horizontal scaling use the dynamo backend instead.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phone-verification-api/internal/domain"
)

// Store is an in-memory verification-session store. Every operation runs
// as one atomic unit under the mutex, so two concurrent Verify calls on
// the same id cannot lose an update.
type Store struct {
	mu   sync.Mutex
	m    map[string]*domain.VerificationSession
	nowF func() time.Time
}

func New() *Store {
	return &Store{
		m:    make(map[string]*domain.VerificationSession),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Put(ctx context.Context, sess *domain.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[sess.SessionID]; ok {
		return fmt.Errorf("session %s already exists: %w", sess.SessionID, domain.ErrConflict)
	}
	s.m[sess.SessionID] = clone(sess)
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	s.applyLazyExpiry(sess)
	return clone(sess), nil
}

func (s *Store) Verify(ctx context.Context, sessionID, submittedCode string) (*domain.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	s.applyLazyExpiry(sess)

	switch sess.Status {
	case domain.StatusExpired:
		// Checked before the code comparison: an expired-but-correct code
		// must still be rejected.
		return nil, fmt.Errorf("session expired: %w", domain.ErrExpired)
	case domain.StatusVerified:
		// Idempotent success; verified_at keeps its original value.
		return clone(sess), nil
	}

	if submittedCode != sess.Code {
		// Session stays pending; every mismatch is independently retryable
		// until expiry.
		return nil, fmt.Errorf("wrong code for session %s: %w", sessionID, domain.ErrCodeMismatch)
	}

	now := s.nowF()
	sess.Status = domain.StatusVerified
	sess.VerifiedAt = &now
	return clone(sess), nil
}

func (s *Store) Update(ctx context.Context, sessionID string, updates map[string]interface{}) (*domain.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "status":
			if st, ok := v.(string); ok {
				sess.Status = st
			}
		case "verified_at":
			if t, ok := v.(time.Time); ok {
				sess.VerifiedAt = &t
			}
		case "metadata":
			if fields, ok := v.(map[string]string); ok {
				if sess.Metadata == nil {
					sess.Metadata = make(map[string]string, len(fields))
				}
				for fk, fv := range fields {
					sess.Metadata[fk] = fv
				}
			}
		}
		// session_id, code, phone, channel, created_at and expires_at are
		// immutable; anything else is dropped.
	}
	return clone(sess), nil
}

func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.m {
		if sess.PastExpiry(now) {
			delete(s.m, id)
			removed++
		}
	}
	return removed, nil
}

// applyLazyExpiry persists the pending->expired flip in place.
// Caller must hold the lock.
func (s *Store) applyLazyExpiry(sess *domain.VerificationSession) {
	if sess.EffectiveStatus(s.nowF()) == domain.StatusExpired {
		sess.Status = domain.StatusExpired
	}
}

// clone copies a session so callers never hold a reference into the map.
func clone(sess *domain.VerificationSession) *domain.VerificationSession {
	out := *sess
	if sess.VerifiedAt != nil {
		t := *sess.VerifiedAt
		out.VerifiedAt = &t
	}
	if sess.Metadata != nil {
		out.Metadata = make(map[string]string, len(sess.Metadata))
		for k, v := range sess.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
