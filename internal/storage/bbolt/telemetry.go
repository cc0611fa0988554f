package bbolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/meshmush/internal/storage"
)

// AppendTelemetryEvent records an operational telemetry event under the next
// telemetry sequence.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock().UTC()
	}

	payload, err := marshal(event)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTelemetry)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(seqKey(seq), payload)
	})
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
