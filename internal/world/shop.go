package world

import "time"

// ShopSchemaVersion is the current on-disk shape of ShopRecord.
//
// v1: inventory only.
// v2: currency reserve and restock configuration.
const ShopSchemaVersion = 2

// Basis-point defaults used when a shop or item does not override pricing.
// 12000bp is a 1.2x buy markup; 5000bp pays half value on sell-back.
const (
	DefaultMarkupBP   int64 = 12000
	DefaultMarkdownBP int64 = 5000
	basisPointScale   int64 = 10000
)

// ShopItem is one stocked line in a shop.
type ShopItem struct {
	ObjectID string `json:"object_id"`
	// Quantity is the remaining stock; nil means infinite.
	Quantity *uint32 `json:"quantity,omitempty"`
	// MarkupBP and MarkdownBP override the shop defaults when non-zero.
	MarkupBP   int64 `json:"markup_bp,omitempty"`
	MarkdownBP int64 `json:"markdown_bp,omitempty"`
	// RestockThreshold and RestockTo drive periodic restocking of limited
	// stock; zero values disable it.
	RestockThreshold uint32     `json:"restock_threshold,omitempty"`
	RestockTo        uint32     `json:"restock_to,omitempty"`
	LastRestock      *time.Time `json:"last_restock,omitempty"`
}

// InfiniteStock returns a shop item that never runs out.
func InfiniteStock(objectID string) ShopItem {
	return ShopItem{ObjectID: objectID}
}

// LimitedStock returns a shop item with a finite quantity.
func LimitedStock(objectID string, quantity uint32) ShopItem {
	q := quantity
	return ShopItem{ObjectID: objectID, Quantity: &q}
}

// InStock reports whether at least quantity units are available.
func (i ShopItem) InStock(quantity uint32) bool {
	return i.Quantity == nil || *i.Quantity >= quantity
}

// ReduceStock removes up to quantity units and reports how many were
// removed. Infinite stock is unaffected.
func (i *ShopItem) ReduceStock(quantity uint32) uint32 {
	if i.Quantity == nil {
		return quantity
	}
	if *i.Quantity < quantity {
		quantity = *i.Quantity
	}
	*i.Quantity -= quantity
	return quantity
}

// IncreaseStock adds quantity units to limited stock.
func (i *ShopItem) IncreaseStock(quantity uint32) {
	if i.Quantity == nil {
		return
	}
	*i.Quantity += quantity
}

// NeedsRestock reports whether limited stock has fallen to its threshold.
func (i ShopItem) NeedsRestock() bool {
	return i.Quantity != nil && i.RestockTo > 0 && *i.Quantity <= i.RestockThreshold
}

// ShopRecord is a persisted vendor with its own currency reserve.
type ShopRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Inventory map[string]ShopItem `json:"inventory"`
	Reserve   CurrencyAmount      `json:"currency_reserve"`

	// LedgerWatermark is the same recovery bookkeeping player records
	// carry.
	LedgerWatermark

	// Shop-wide pricing defaults in basis points; items may override.
	MarkupBP   int64 `json:"markup_bp"`
	MarkdownBP int64 `json:"markdown_bp"`

	SchemaVersion int `json:"schema_version"`
}

// NewShop creates a shop at the current schema version with default pricing.
func NewShop(id, name, location, owner string, now time.Time) ShopRecord {
	return ShopRecord{
		ID:            id,
		Name:          name,
		Location:      location,
		Owner:         owner,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
		Inventory:     make(map[string]ShopItem),
		MarkupBP:      DefaultMarkupBP,
		MarkdownBP:    DefaultMarkdownBP,
		SchemaVersion: ShopSchemaVersion,
	}
}

// BuyPrice computes what a buyer pays for quantity units of an object.
func (s ShopRecord) BuyPrice(object ObjectRecord, item ShopItem, quantity uint32) CurrencyAmount {
	markup := item.MarkupBP
	if markup == 0 {
		markup = s.MarkupBP
	}
	if markup == 0 {
		markup = basisPointScale
	}
	unit := object.CurrencyValue.Scale(markup, basisPointScale)
	return CurrencyAmount{Kind: unit.kindOrDefault(), Units: unit.Units * int64(quantity)}
}

// SellPrice computes what the shop pays when buying quantity units back.
func (s ShopRecord) SellPrice(object ObjectRecord, item ShopItem, quantity uint32) CurrencyAmount {
	markdown := item.MarkdownBP
	if markdown == 0 {
		markdown = s.MarkdownBP
	}
	if markdown == 0 {
		markdown = basisPointScale
	}
	unit := object.CurrencyValue.Scale(markdown, basisPointScale)
	return CurrencyAmount{Kind: unit.kindOrDefault(), Units: unit.Units * int64(quantity)}
}

// Restock tops limited items back up to their restock targets, returning
// how many lines changed.
func (s *ShopRecord) Restock(now time.Time) int {
	changed := 0
	for id, item := range s.Inventory {
		if !item.NeedsRestock() {
			continue
		}
		target := item.RestockTo
		if *item.Quantity < target {
			*item.Quantity = target
			t := now.UTC()
			item.LastRestock = &t
			s.Inventory[id] = item
			changed++
		}
	}
	return changed
}
