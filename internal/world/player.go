package world

import (
	"strings"
	"time"
)

// PlayerSchemaVersion is the current on-disk shape of PlayerRecord.
//
// v1: flat string inventory and an unsigned Credits balance.
// v2: Credits folded into OnHand/Banked currency amounts.
// v3: stacked inventory and the applied-ledger watermark.
const PlayerSchemaVersion = 3

// ItemStack is a quantity of one object held in an inventory.
type ItemStack struct {
	ObjectID string `json:"object_id"`
	Quantity uint32 `json:"quantity"`
}

// PlayerRecord is the persisted state of one player. Balances and inventory
// are mutated only through the economy engine; callers treat a loaded record
// as read-only.
type PlayerRecord struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CurrentRoom string    `json:"current_room"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// OnHand is the immediately spendable balance; Banked is the vault
	// sub-balance on the same record.
	OnHand CurrencyAmount `json:"on_hand_currency"`
	Banked CurrencyAmount `json:"banked_currency"`

	Stacks []ItemStack `json:"inventory_stacks,omitempty"`

	// LedgerWatermark records which ledger entries have mutated this
	// record; recovery consults it so a pending intent applies exactly
	// once.
	LedgerWatermark

	// Deprecated fields kept so v1 records still decode. Migration folds
	// them into OnHand and Stacks.
	Credits   uint32   `json:"credits,omitempty"`
	Inventory []string `json:"inventory,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// NewPlayer creates a player record at the current schema version.
func NewPlayer(username, displayName, startingRoom string, now time.Time) PlayerRecord {
	return PlayerRecord{
		Username:      strings.ToLower(strings.TrimSpace(username)),
		DisplayName:   strings.TrimSpace(displayName),
		CurrentRoom:   startingRoom,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
		SchemaVersion: PlayerSchemaVersion,
	}
}

// Touch updates the record's modification timestamp.
func (p *PlayerRecord) Touch(now time.Time) {
	p.UpdatedAt = now.UTC()
}

// ItemQuantity returns how many of an object the player holds.
func (p PlayerRecord) ItemQuantity(objectID string) uint32 {
	for _, stack := range p.Stacks {
		if stack.ObjectID == objectID {
			return stack.Quantity
		}
	}
	return 0
}

// HasItem reports whether the player holds at least quantity of an object.
func (p PlayerRecord) HasItem(objectID string, quantity uint32) bool {
	return p.ItemQuantity(objectID) >= quantity
}

// AddItem increments the stack for an object, creating it if absent.
func (p *PlayerRecord) AddItem(objectID string, quantity uint32) {
	for i := range p.Stacks {
		if p.Stacks[i].ObjectID == objectID {
			p.Stacks[i].Quantity += quantity
			return
		}
	}
	p.Stacks = append(p.Stacks, ItemStack{ObjectID: objectID, Quantity: quantity})
}

// RemoveItem decrements the stack for an object, deleting the stack when it
// reaches zero. It reports whether the player held enough to remove.
func (p *PlayerRecord) RemoveItem(objectID string, quantity uint32) bool {
	for i := range p.Stacks {
		if p.Stacks[i].ObjectID != objectID {
			continue
		}
		if p.Stacks[i].Quantity < quantity {
			return false
		}
		p.Stacks[i].Quantity -= quantity
		if p.Stacks[i].Quantity == 0 {
			p.Stacks = append(p.Stacks[:i], p.Stacks[i+1:]...)
		}
		return true
	}
	return false
}
