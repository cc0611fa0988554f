package economy

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/louisbranch/meshmush/internal/metrics"
	"github.com/louisbranch/meshmush/internal/world"
)

// newEntry builds a ledger entry shell with a fresh id and timestamp.
func (e *Engine) newEntry(reason world.TransactionReason) (world.TransactionRecord, error) {
	id, err := e.idGenerator()
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("generate transaction id: %w", err)
	}
	return world.TransactionRecord{
		ID:            id,
		Timestamp:     e.clock().UTC(),
		Reason:        reason,
		Status:        world.TxnPending,
		SchemaVersion: world.LedgerSchemaVersion,
	}, nil
}

// runEntry executes the ledger-first protocol for one entry: append pending,
// apply every party's mutation, mark committed. Callers hold the party locks
// and have already validated that the mutations cannot fail.
func (e *Engine) runEntry(ctx context.Context, entry world.TransactionRecord) (world.TransactionRecord, error) {
	entry.Status = world.TxnPending
	entry.SchemaVersion = world.LedgerSchemaVersion
	stored, err := e.store.AppendEntry(ctx, entry)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("append ledger entry: %w", err)
	}
	if err := e.applyEntry(ctx, stored); err != nil {
		// The entry stays pending; startup recovery replays it.
		return stored, err
	}
	stored.Status = world.TxnCommitted
	if err := e.store.UpdateEntry(ctx, stored); err != nil {
		return stored, fmt.Errorf("commit ledger entry: %w", err)
	}
	return stored, nil
}

// entryParties returns the distinct base identities an entry touches, debit
// side first. Bank vault parties collapse onto their player.
func entryParties(entry world.TransactionRecord) []string {
	var parties []string
	add := func(raw string) {
		if raw == "" {
			return
		}
		base := strings.TrimSuffix(raw, world.BankVaultSuffix)
		for _, p := range parties {
			if p == base {
				return
			}
		}
		parties = append(parties, base)
	}
	add(entry.From)
	add(entry.To)
	return parties
}

// lockKeysFor maps an entry's parties to their lock keys.
func lockKeysFor(entry world.TransactionRecord) []string {
	parties := entryParties(entry)
	keys := make([]string, 0, len(parties))
	for _, party := range parties {
		if strings.HasPrefix(party, shopPartyPrefix) {
			keys = append(keys, shopLockKey(strings.TrimPrefix(party, shopPartyPrefix)))
		} else {
			keys = append(keys, playerLockKey(party))
		}
	}
	return keys
}

// itemDirection reports whether the identity gains or loses the entry's
// goods. Goods follow the From to To direction on pure item entries; when
// the entry also carries a currency leg (shop purchases, sales, and their
// rollbacks) the goods flow opposite the money, to the payer.
func itemDirection(entry world.TransactionRecord, identity string) (gains, loses bool) {
	receiver, giver := entry.To, entry.From
	if entry.Amount.IsPositive() {
		receiver, giver = entry.From, entry.To
	}
	return identity == receiver, identity == giver
}

// applyEntry applies an entry's net effect to every party, debit side first.
// Each party mutation is one durable record write guarded by the applied
// sequence watermark, so re-applying an entry is a no-op.
func (e *Engine) applyEntry(ctx context.Context, entry world.TransactionRecord) error {
	for _, party := range entryParties(entry) {
		var err error
		if strings.HasPrefix(party, shopPartyPrefix) {
			err = e.applyToShop(ctx, strings.TrimPrefix(party, shopPartyPrefix), entry)
		} else {
			err = e.applyToPlayer(ctx, party, entry)
		}
		if err != nil {
			return fmt.Errorf("apply entry %s to %s: %w", entry.ID, party, err)
		}
	}
	return nil
}

// missedPendingSeqs lists still-pending entries involving the identity
// whose sequence falls strictly between low and high. A record's watermark
// advancing past them must remember them, or their eventual replay would be
// mistaken for already applied.
func (e *Engine) missedPendingSeqs(ctx context.Context, identity string, low, high uint64) ([]uint64, error) {
	pending, err := e.store.PendingEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	var seqs []uint64
	for _, p := range pending {
		if p.Seq <= low || p.Seq >= high || !p.Involves(identity) {
			continue
		}
		seqs = append(seqs, p.Seq)
	}
	return seqs, nil
}

func (e *Engine) applyToPlayer(ctx context.Context, username string, entry world.TransactionRecord) error {
	player, err := e.store.GetPlayer(ctx, username)
	if err != nil {
		return err
	}
	if player.SeqApplied(entry.Seq) {
		return nil
	}

	if entry.Amount.IsPositive() {
		switch entry.From {
		case username:
			player.OnHand, err = player.OnHand.Subtract(entry.Amount)
		case username + world.BankVaultSuffix:
			player.Banked, err = player.Banked.Subtract(entry.Amount)
		}
		if err != nil {
			return err
		}
		switch entry.To {
		case username:
			player.OnHand, err = player.OnHand.Add(entry.Amount)
		case username + world.BankVaultSuffix:
			player.Banked, err = player.Banked.Add(entry.Amount)
		}
		if err != nil {
			return err
		}
	}

	if entry.IsItem() {
		gains, loses := itemDirection(entry, username)
		if loses && !player.RemoveItem(entry.ObjectID, entry.Quantity) {
			return fmt.Errorf("%s holds fewer than %d of %s: %w",
				username, entry.Quantity, entry.ObjectID, ErrInsufficientItems)
		}
		if gains {
			player.AddItem(entry.ObjectID, entry.Quantity)
		}
	}

	var missed []uint64
	if entry.Seq > player.AppliedSeq {
		missed, err = e.missedPendingSeqs(ctx, username, player.AppliedSeq, entry.Seq)
		if err != nil {
			return err
		}
	}
	player.MarkApplied(entry.Seq, missed)
	player.Touch(e.clock())
	return e.store.PutPlayer(ctx, player)
}

func (e *Engine) applyToShop(ctx context.Context, shopID string, entry world.TransactionRecord) error {
	shop, err := e.store.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	if shop.SeqApplied(entry.Seq) {
		return nil
	}

	identity := shopParty(shopID)
	if entry.Amount.IsPositive() {
		if entry.From == identity {
			shop.Reserve, err = shop.Reserve.Subtract(entry.Amount)
			if err != nil {
				return err
			}
		}
		if entry.To == identity {
			shop.Reserve, err = shop.Reserve.Add(entry.Amount)
			if err != nil {
				return err
			}
		}
	}

	if entry.IsItem() {
		gains, loses := itemDirection(entry, identity)
		item, ok := shop.Inventory[entry.ObjectID]
		if !ok {
			if loses {
				return fmt.Errorf("%s: %w", entry.ObjectID, ErrNotStocked)
			}
			// A rollback can return goods on a line the shop dropped.
			item = world.LimitedStock(entry.ObjectID, 0)
		}
		if loses {
			if !item.InStock(entry.Quantity) {
				return fmt.Errorf("%s short of %d: %w", entry.ObjectID, entry.Quantity, ErrInsufficientStock)
			}
			item.ReduceStock(entry.Quantity)
		}
		if gains {
			item.IncreaseStock(entry.Quantity)
		}
		shop.Inventory[entry.ObjectID] = item
	}

	var missed []uint64
	if entry.Seq > shop.AppliedSeq {
		missed, err = e.missedPendingSeqs(ctx, identity, shop.AppliedSeq, entry.Seq)
		if err != nil {
			return err
		}
	}
	shop.MarkApplied(entry.Seq, missed)
	shop.UpdatedAt = e.clock().UTC()
	return e.store.PutShop(ctx, shop)
}

// validateEntry checks that an entry could apply cleanly: every currency
// debit is affordable and every goods giver still holds the goods. It is
// used where the entry is built from stored state rather than caller input,
// so failures must surface before the ledger append.
func (e *Engine) validateEntry(ctx context.Context, entry world.TransactionRecord) error {
	for _, party := range entryParties(entry) {
		if strings.HasPrefix(party, shopPartyPrefix) {
			shop, err := e.store.GetShop(ctx, strings.TrimPrefix(party, shopPartyPrefix))
			if err != nil {
				return fmt.Errorf("shop %s: %w", party, err)
			}
			if entry.Amount.IsPositive() && entry.From == party && !shop.Reserve.CanAfford(entry.Amount) {
				return affordErr(shop.Reserve, entry.Amount)
			}
			if entry.IsItem() {
				if _, loses := itemDirection(entry, party); loses {
					item, ok := shop.Inventory[entry.ObjectID]
					if !ok {
						return fmt.Errorf("%s: %w", entry.ObjectID, ErrNotStocked)
					}
					if !item.InStock(entry.Quantity) {
						return fmt.Errorf("%s short of %d: %w", entry.ObjectID, entry.Quantity, ErrInsufficientStock)
					}
				}
			}
			continue
		}

		player, err := e.store.GetPlayer(ctx, party)
		if err != nil {
			return fmt.Errorf("player %s: %w", party, err)
		}
		if entry.Amount.IsPositive() {
			if entry.From == party && !player.OnHand.CanAfford(entry.Amount) {
				return affordErr(player.OnHand, entry.Amount)
			}
			if entry.From == party+world.BankVaultSuffix && !player.Banked.CanAfford(entry.Amount) {
				return affordErr(player.Banked, entry.Amount)
			}
		}
		if entry.IsItem() {
			if _, loses := itemDirection(entry, party); loses && !player.HasItem(entry.ObjectID, entry.Quantity) {
				return fmt.Errorf("%s holds fewer than %d of %s: %w",
					party, entry.Quantity, entry.ObjectID, ErrInsufficientItems)
			}
		}
	}
	return nil
}

// affordErr distinguishes a wrong-currency failure from a plain shortfall.
func affordErr(balance, cost world.CurrencyAmount) error {
	if !balance.SameKind(cost) {
		return world.ErrCurrencyMismatch
	}
	return world.ErrInsufficientFunds
}

// track times an operation and counts its outcome.
func track(op string) func(reason world.TransactionReason, err error) {
	timer := prometheus.NewTimer(metrics.TransactionDuration.WithLabelValues(op))
	return func(reason world.TransactionReason, err error) {
		timer.ObserveDuration()
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.TransactionsTotal.WithLabelValues(string(reason), outcome).Inc()
	}
}
