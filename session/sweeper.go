package session

import (
	"context"
	"time"

	"github.com/dpup/gatehouse/logging"
)

// StartSweeper deletes expired records from store every interval until ctx is
// done. Expired records never resolve, sweeping only reclaims space. A
// non-positive interval disables sweeping.
func StartSweeper(ctx context.Context, store Store, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, store)
			}
		}
	}()
}

func sweep(ctx context.Context, store Store) {
	n, err := store.DeleteExpired(ctx)
	if err != nil {
		logging.Warnw(ctx, "session: sweep failed", "error", err)
		return
	}
	if n > 0 {
		logging.Debugw(ctx, "session: swept expired sessions", "count", n)
	}
}
