package economy

import (
	"context"
	"fmt"

	"github.com/louisbranch/meshmush/internal/world"
)

// TransferCurrency moves an amount from one player's on-hand balance to
// another's. The whole transfer applies or none of it does.
func (e *Engine) TransferCurrency(ctx context.Context, from, to string, amount world.CurrencyAmount, reason world.TransactionReason) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.TransferCurrency")
	defer span.End()
	done := track("transfer_currency")
	defer func() { done(reason, err) }()

	if !amount.IsPositive() {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	from, to = normalizeName(from), normalizeName(to)
	if from == to {
		return world.TransactionRecord{}, ErrSameParty
	}

	unlock := e.locks.acquire(playerLockKey(from), playerLockKey(to))
	defer unlock()

	payer, err := e.store.GetPlayer(ctx, from)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("payer %s: %w", from, err)
	}
	if _, err := e.store.GetPlayer(ctx, to); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("payee %s: %w", to, err)
	}
	if !payer.OnHand.CanAfford(amount) {
		return world.TransactionRecord{}, affordErr(payer.OnHand, amount)
	}

	entry, err := e.newEntry(reason)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.To, entry.Amount = from, to, amount
	return e.runEntry(ctx, entry)
}

// GrantCurrency creates currency on a player's on-hand balance. The debit
// side is the system, so the entry carries no From party.
func (e *Engine) GrantCurrency(ctx context.Context, to string, amount world.CurrencyAmount, reason world.TransactionReason) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.GrantCurrency")
	defer span.End()
	done := track("grant_currency")
	defer func() { done(reason, err) }()

	if !amount.IsPositive() {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	to = normalizeName(to)

	unlock := e.locks.acquire(playerLockKey(to))
	defer unlock()

	if _, err := e.store.GetPlayer(ctx, to); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("payee %s: %w", to, err)
	}

	entry, err := e.newEntry(reason)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.To, entry.Amount = to, amount
	return e.runEntry(ctx, entry)
}

// DeductCurrency destroys currency from a player's on-hand balance.
func (e *Engine) DeductCurrency(ctx context.Context, from string, amount world.CurrencyAmount, reason world.TransactionReason) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.DeductCurrency")
	defer span.End()
	done := track("deduct_currency")
	defer func() { done(reason, err) }()

	if !amount.IsPositive() {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	from = normalizeName(from)

	unlock := e.locks.acquire(playerLockKey(from))
	defer unlock()

	payer, err := e.store.GetPlayer(ctx, from)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("payer %s: %w", from, err)
	}
	if !payer.OnHand.CanAfford(amount) {
		return world.TransactionRecord{}, affordErr(payer.OnHand, amount)
	}

	entry, err := e.newEntry(reason)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.Amount = from, amount
	return e.runEntry(ctx, entry)
}

// BankDeposit moves an amount from a player's on-hand balance into the bank
// vault on the same record. The mutation is a single record write, so it is
// atomic even on a store that only guarantees single-key durability.
func (e *Engine) BankDeposit(ctx context.Context, username string, amount world.CurrencyAmount) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.BankDeposit")
	defer span.End()
	done := track("bank_deposit")
	defer func() { done(world.ReasonDeposit, err) }()

	if !amount.IsPositive() {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	username = normalizeName(username)

	unlock := e.locks.acquire(playerLockKey(username))
	defer unlock()

	player, err := e.store.GetPlayer(ctx, username)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("player %s: %w", username, err)
	}
	if !player.OnHand.CanAfford(amount) {
		return world.TransactionRecord{}, affordErr(player.OnHand, amount)
	}

	entry, err := e.newEntry(world.ReasonDeposit)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.To, entry.Amount = username, username+world.BankVaultSuffix, amount
	return e.runEntry(ctx, entry)
}

// BankWithdraw moves an amount from a player's bank vault back on hand.
func (e *Engine) BankWithdraw(ctx context.Context, username string, amount world.CurrencyAmount) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.BankWithdraw")
	defer span.End()
	done := track("bank_withdraw")
	defer func() { done(world.ReasonWithdraw, err) }()

	if !amount.IsPositive() {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	username = normalizeName(username)

	unlock := e.locks.acquire(playerLockKey(username))
	defer unlock()

	player, err := e.store.GetPlayer(ctx, username)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("player %s: %w", username, err)
	}
	if !player.Banked.CanAfford(amount) {
		return world.TransactionRecord{}, affordErr(player.Banked, amount)
	}

	entry, err := e.newEntry(world.ReasonWithdraw)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.To, entry.Amount = username+world.BankVaultSuffix, username, amount
	return e.runEntry(ctx, entry)
}

// TransferItem moves a quantity of an object between two players.
func (e *Engine) TransferItem(ctx context.Context, from, to, objectID string, quantity uint32, reason world.TransactionReason) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.TransferItem")
	defer span.End()
	done := track("transfer_item")
	defer func() { done(reason, err) }()

	if quantity == 0 {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	from, to = normalizeName(from), normalizeName(to)
	if from == to {
		return world.TransactionRecord{}, ErrSameParty
	}

	object, err := e.store.GetObject(ctx, objectID)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("object %s: %w", objectID, err)
	}
	if !object.Takeable {
		return world.TransactionRecord{}, fmt.Errorf("%s: %w", objectID, ErrNotTakeable)
	}

	unlock := e.locks.acquire(playerLockKey(from), playerLockKey(to))
	defer unlock()

	giver, err := e.store.GetPlayer(ctx, from)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("giver %s: %w", from, err)
	}
	if _, err := e.store.GetPlayer(ctx, to); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("receiver %s: %w", to, err)
	}
	if !giver.HasItem(objectID, quantity) {
		return world.TransactionRecord{}, fmt.Errorf("%s holds fewer than %d of %s: %w",
			from, quantity, objectID, ErrInsufficientItems)
	}

	entry, err := e.newEntry(reason)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.To = from, to
	entry.ObjectID, entry.Quantity = objectID, quantity
	return e.runEntry(ctx, entry)
}

// GrantItem creates a quantity of an object in a player's inventory.
func (e *Engine) GrantItem(ctx context.Context, to, objectID string, quantity uint32, reason world.TransactionReason) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.GrantItem")
	defer span.End()
	done := track("grant_item")
	defer func() { done(reason, err) }()

	if quantity == 0 {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	to = normalizeName(to)

	if _, err := e.store.GetObject(ctx, objectID); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("object %s: %w", objectID, err)
	}

	unlock := e.locks.acquire(playerLockKey(to))
	defer unlock()

	if _, err := e.store.GetPlayer(ctx, to); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("receiver %s: %w", to, err)
	}

	entry, err := e.newEntry(reason)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.To = to
	entry.ObjectID, entry.Quantity = objectID, quantity
	return e.runEntry(ctx, entry)
}

// TakeItem removes a quantity of an object from a player's inventory.
func (e *Engine) TakeItem(ctx context.Context, from, objectID string, quantity uint32, reason world.TransactionReason) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.TakeItem")
	defer span.End()
	done := track("take_item")
	defer func() { done(reason, err) }()

	if quantity == 0 {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	from = normalizeName(from)

	unlock := e.locks.acquire(playerLockKey(from))
	defer unlock()

	player, err := e.store.GetPlayer(ctx, from)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("player %s: %w", from, err)
	}
	if !player.HasItem(objectID, quantity) {
		return world.TransactionRecord{}, fmt.Errorf("%s holds fewer than %d of %s: %w",
			from, quantity, objectID, ErrInsufficientItems)
	}

	entry, err := e.newEntry(reason)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From = from
	entry.ObjectID, entry.Quantity = objectID, quantity
	return e.runEntry(ctx, entry)
}

// PlayerTransactions returns a page of the player's ledger history, newest
// first. Page numbering starts at zero.
func (e *Engine) PlayerTransactions(ctx context.Context, username string, page, pageSize int) ([]world.TransactionRecord, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultTransactionsPageSize
	}
	if pageSize > maxTransactionsPageSize {
		pageSize = maxTransactionsPageSize
	}
	return e.store.PlayerEntries(ctx, normalizeName(username), page, pageSize)
}
