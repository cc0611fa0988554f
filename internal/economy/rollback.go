package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/world"
)

// RollbackTransaction undoes a committed ledger entry by appending a
// reversal entry with the parties swapped. The original is never deleted;
// it is flagged reversed and keeps its place in history. Rolling an entry
// back twice fails with ErrAlreadyReversed.
func (e *Engine) RollbackTransaction(ctx context.Context, id string) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.RollbackTransaction")
	defer span.End()
	done := track("rollback")
	defer func() { done(world.ReasonRollback, err) }()

	original, err := e.store.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return world.TransactionRecord{}, ErrTransactionNotFound
		}
		return world.TransactionRecord{}, fmt.Errorf("load entry %s: %w", id, err)
	}

	unlock := e.locks.acquire(lockKeysFor(original)...)
	defer unlock()

	// Re-fetch under the party locks; a concurrent rollback may have won.
	original, err = e.store.GetEntry(ctx, id)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("load entry %s: %w", id, err)
	}
	if original.Status != world.TxnCommitted {
		return world.TransactionRecord{}, ErrNotCommitted
	}
	if original.Reversed {
		return world.TransactionRecord{}, ErrAlreadyReversed
	}

	reversal, err := e.newEntry(world.ReasonRollback)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	reversal.From, reversal.To = original.To, original.From
	reversal.Amount = original.Amount
	reversal.ObjectID, reversal.Quantity = original.ObjectID, original.Quantity
	reversal.Reverses = original.ID
	reversal.TradeID = original.TradeID

	// The world has moved since the original committed; the reversal must
	// fail with zero mutations if its debits no longer clear.
	if err := e.validateEntry(ctx, reversal); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("reverse %s: %w", id, err)
	}

	stored, err := e.runEntry(ctx, reversal)
	if err != nil {
		return stored, err
	}

	original.Reversed = true
	if err := e.store.UpdateEntry(ctx, original); err != nil {
		return stored, fmt.Errorf("flag entry %s reversed: %w", id, err)
	}

	_ = e.emitter.Record(ctx, telemetry.KindRollback, "transaction reversed", map[string]string{
		"original": original.ID,
		"reversal": stored.ID,
	})
	return stored, nil
}
