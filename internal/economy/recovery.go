package economy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/meshmush/internal/metrics"
	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/world"
)

// Recover replays ledger entries left pending by a crash, oldest first, and
// marks them committed. Replay is idempotent: a party whose watermark
// already covers an entry is skipped, so an intent interrupted between its
// record writes finishes exactly once. An entry that cannot replay is
// parked rather than retried forever; parked entries stay visible through
// the admin API until an operator resolves them. Recover must run before
// the engine serves traffic.
func (e *Engine) Recover(ctx context.Context) (replayed, parked int, err error) {
	pending, err := e.store.PendingEntries(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending entries: %w", err)
	}

	for _, entry := range pending {
		if applyErr := e.applyEntry(ctx, entry); applyErr != nil {
			entry.Status = world.TxnParked
			if err := e.store.UpdateEntry(ctx, entry); err != nil {
				return replayed, parked, fmt.Errorf("park entry %s: %w", entry.ID, err)
			}
			parked++
			metrics.ParkedIntentsTotal.Inc()
			_ = e.emitter.Record(ctx, telemetry.KindRecovery, "pending transaction parked", map[string]string{
				"id":    entry.ID,
				"error": applyErr.Error(),
			})
			continue
		}
		entry.Status = world.TxnCommitted
		if err := e.store.UpdateEntry(ctx, entry); err != nil {
			return replayed, parked, fmt.Errorf("commit replayed entry %s: %w", entry.ID, err)
		}
		replayed++
		metrics.RecoveredIntentsTotal.Inc()
	}

	if replayed > 0 {
		_ = e.emitter.Record(ctx, telemetry.KindRecovery, "pending transactions replayed", map[string]string{
			"count": strconv.Itoa(replayed),
		})
	}
	return replayed, parked, nil
}
