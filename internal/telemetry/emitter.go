package telemetry

import (
	"context"
	"time"

	"github.com/louisbranch/meshmush/internal/storage"
)

// Event kinds recorded by the world service.
const (
	KindMigration = "migration"
	KindRollback  = "rollback"
	KindRecovery  = "recovery"
	KindTrade     = "trade"
	KindConvert   = "convert"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the emitter or its
// store is nil, so callers never need to guard their emit sites.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}

// Record is a convenience wrapper for the common kind/message/fields case.
func (e *Emitter) Record(ctx context.Context, kind, message string, fields map[string]string) error {
	return e.Emit(ctx, storage.TelemetryEvent{Kind: kind, Message: message, Fields: fields})
}
