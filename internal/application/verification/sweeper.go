package verification

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper deletes sessions past their deadline on a fixed interval until
// the context is cancelled. Housekeeping only; lazy expiry on the read
// path stays authoritative no matter how late the sweep runs.
func RunSweeper(ctx context.Context, store Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.SweepExpired(ctx, now.UTC())
			if err != nil {
				slog.Warn("sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				slog.Info("swept expired verification sessions", "removed", removed)
			}
		}
	}
}
