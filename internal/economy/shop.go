package economy

import (
	"context"
	"fmt"

	"github.com/louisbranch/meshmush/internal/world"
)

// Buy sells a quantity of a stocked object to a player at the shop's marked
// up price. One ledger entry records the purchase: the currency leg flows
// player to shop and the goods flow back to the player.
func (e *Engine) Buy(ctx context.Context, username, shopID, objectID string, quantity uint32) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.Buy")
	defer span.End()
	done := track("buy")
	defer func() { done(world.ReasonPurchase, err) }()

	if quantity == 0 {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	username = normalizeName(username)

	unlock := e.locks.acquire(playerLockKey(username), shopLockKey(shopID))
	defer unlock()

	shop, err := e.store.GetShop(ctx, shopID)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("shop %s: %w", shopID, err)
	}
	item, ok := shop.Inventory[objectID]
	if !ok {
		return world.TransactionRecord{}, fmt.Errorf("%s: %w", objectID, ErrNotStocked)
	}
	if !item.InStock(quantity) {
		return world.TransactionRecord{}, fmt.Errorf("%s short of %d: %w", objectID, quantity, ErrInsufficientStock)
	}
	object, err := e.store.GetObject(ctx, objectID)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("object %s: %w", objectID, err)
	}

	price := shop.BuyPrice(object, item, quantity)
	player, err := e.store.GetPlayer(ctx, username)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("player %s: %w", username, err)
	}
	if !player.OnHand.CanAfford(price) {
		return world.TransactionRecord{}, affordErr(player.OnHand, price)
	}

	entry, err := e.newEntry(world.ReasonPurchase)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.To = username, shopParty(shopID)
	entry.Amount = price
	entry.ObjectID, entry.Quantity = objectID, quantity
	return e.runEntry(ctx, entry)
}

// Sell buys a quantity of an object back from a player at the shop's marked
// down price. The shop must trade in the object and its reserve must cover
// the payout.
func (e *Engine) Sell(ctx context.Context, username, shopID, objectID string, quantity uint32) (rec world.TransactionRecord, err error) {
	ctx, span := e.tracer.Start(ctx, "economy.Sell")
	defer span.End()
	done := track("sell")
	defer func() { done(world.ReasonSale, err) }()

	if quantity == 0 {
		return world.TransactionRecord{}, world.ErrNonPositiveAmount
	}
	username = normalizeName(username)

	unlock := e.locks.acquire(playerLockKey(username), shopLockKey(shopID))
	defer unlock()

	shop, err := e.store.GetShop(ctx, shopID)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("shop %s: %w", shopID, err)
	}
	item, ok := shop.Inventory[objectID]
	if !ok {
		return world.TransactionRecord{}, fmt.Errorf("%s: %w", objectID, ErrNotStocked)
	}
	object, err := e.store.GetObject(ctx, objectID)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("object %s: %w", objectID, err)
	}

	payout := shop.SellPrice(object, item, quantity)
	player, err := e.store.GetPlayer(ctx, username)
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("player %s: %w", username, err)
	}
	if !player.HasItem(objectID, quantity) {
		return world.TransactionRecord{}, fmt.Errorf("%s holds fewer than %d of %s: %w",
			username, quantity, objectID, ErrInsufficientItems)
	}
	if !shop.Reserve.CanAfford(payout) {
		return world.TransactionRecord{}, affordErr(shop.Reserve, payout)
	}

	entry, err := e.newEntry(world.ReasonSale)
	if err != nil {
		return world.TransactionRecord{}, err
	}
	entry.From, entry.To = shopParty(shopID), username
	entry.Amount = payout
	entry.ObjectID, entry.Quantity = objectID, quantity
	return e.runEntry(ctx, entry)
}

// RestockShops tops every shop's limited stock back up to its restock
// targets and reports how many shops changed. Restocked goods appear from
// the world, not from a counterparty, so no ledger entries are written.
func (e *Engine) RestockShops(ctx context.Context) (int, error) {
	ids, err := e.store.ListShopIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list shops: %w", err)
	}

	restocked := 0
	for _, id := range ids {
		unlock := e.locks.acquire(shopLockKey(id))
		shop, err := e.store.GetShop(ctx, id)
		if err != nil {
			unlock()
			return restocked, fmt.Errorf("shop %s: %w", id, err)
		}
		if shop.Restock(e.clock()) > 0 {
			if err := e.store.PutShop(ctx, shop); err != nil {
				unlock()
				return restocked, fmt.Errorf("persist shop %s: %w", id, err)
			}
			restocked++
		}
		unlock()
	}
	return restocked, nil
}
