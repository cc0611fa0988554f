package economy

import (
	"context"
	"fmt"

	"github.com/louisbranch/meshmush/internal/world"
)

// TradeValidationError names the side whose offer no longer holds at commit
// time. The trade aborts with zero mutations when this is returned.
type TradeValidationError struct {
	Player string
	Err    error
}

func (e *TradeValidationError) Error() string {
	return fmt.Sprintf("offer by %s no longer valid: %v", e.Player, e.Err)
}

func (e *TradeValidationError) Unwrap() error { return e.Err }

// CommitTrade executes a ready trade session: both players' offers are
// revalidated against live records under the party locks, and only then do
// the transfers run, one ledger entry per currency leg or item line, all
// tagged with the session id. Revalidation failure aborts before anything
// is written.
func (e *Engine) CommitTrade(ctx context.Context, session world.TradeSession) (recs []world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.CommitTrade")
	defer span.End()
	done := track("commit_trade")
	defer func() { done(world.ReasonTrade, err) }()

	if session.State != world.TradeReady {
		return nil, fmt.Errorf("trade %s is %s, not ready", session.ID, session.State)
	}

	initiator := normalizeName(session.Initiator)
	recipient := normalizeName(session.Recipient)

	unlock := e.locks.acquire(playerLockKey(initiator), playerLockKey(recipient))
	defer unlock()

	// Sessions may carry an offer whose items are split across duplicate
	// stacks; fold them first so every holdings check sees totals.
	sides := []string{initiator, recipient}
	offers := make(map[string]world.TradeOffer, len(sides))
	for _, side := range sides {
		offer := session.Offers[side]
		offer.Normalize()
		offers[side] = offer
	}

	// Revalidate both sides against live records before any entry exists.
	for _, side := range sides {
		player, err := e.store.GetPlayer(ctx, side)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", side, err)
		}
		offer := offers[side]
		if offer.Currency.IsPositive() && !player.OnHand.CanAfford(offer.Currency) {
			return nil, &TradeValidationError{Player: side, Err: affordErr(player.OnHand, offer.Currency)}
		}
		for _, stack := range offer.Items {
			if !player.HasItem(stack.ObjectID, stack.Quantity) {
				return nil, &TradeValidationError{Player: side, Err: fmt.Errorf(
					"%s holds fewer than %d of %s: %w", side, stack.Quantity, stack.ObjectID, ErrInsufficientItems)}
			}
		}
	}

	// Build every leg up front so an id generation failure aborts cleanly.
	var legs []world.TransactionRecord
	for _, side := range sides {
		offer := offers[side]
		other := session.Counterparty(side)
		if offer.Currency.IsPositive() {
			entry, err := e.newEntry(world.ReasonTrade)
			if err != nil {
				return nil, err
			}
			entry.From, entry.To = side, normalizeName(other)
			entry.Amount = offer.Currency
			entry.TradeID = session.ID
			legs = append(legs, entry)
		}
		for _, stack := range offer.Items {
			entry, err := e.newEntry(world.ReasonTrade)
			if err != nil {
				return nil, err
			}
			entry.From, entry.To = side, normalizeName(other)
			entry.ObjectID, entry.Quantity = stack.ObjectID, stack.Quantity
			entry.TradeID = session.ID
			legs = append(legs, entry)
		}
	}

	for _, leg := range legs {
		stored, err := e.runEntry(ctx, leg)
		if err != nil {
			// Already-applied legs are committed and any in-flight one is
			// pending; recovery finishes it. The caller decides what to do
			// with the session.
			return recs, fmt.Errorf("trade %s leg: %w", session.ID, err)
		}
		recs = append(recs, stored)
	}
	return recs, nil
}
