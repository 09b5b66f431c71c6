package verification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DeliverySimulator emulates an external messaging channel in environments
// without a real sender: after a fixed delay it submits the session's own
// code, driving the same pending->verified transition a user would.
// Tasks are keyed by session id and cancelled when a real verification
// lands first, so the flip never races a genuine submission.
type DeliverySimulator struct {
	store Store
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewDeliverySimulator(store Store, delay time.Duration) *DeliverySimulator {
	return &DeliverySimulator{
		store:  store,
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule queues a simulated delivery for the session. Rescheduling an id
// replaces its pending task.
func (d *DeliverySimulator) Schedule(sessionID, code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[sessionID]; ok {
		t.Stop()
	}
	d.timers[sessionID] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, sessionID)
		d.mu.Unlock()
		// Best effort: the session may have expired, been verified for
		// real, or been swept in the meantime.
		if _, err := d.store.Verify(context.Background(), sessionID, code); err != nil {
			slog.Debug("simulated delivery skipped", "session_id", sessionID, "err", err)
		}
	})
}

// Cancel drops the pending simulated delivery for the session, if any.
func (d *DeliverySimulator) Cancel(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[sessionID]; ok {
		t.Stop()
		delete(d.timers, sessionID)
	}
}
