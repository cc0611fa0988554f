package migrate

import (
	"github.com/louisbranch/meshmush/internal/world"
)

// Registry bundles the descriptor for every migratable record type. The
// store wrapper is constructed with an explicit registry so tests can swap
// in their own chains.
type Registry struct {
	Player Descriptor[world.PlayerRecord]
	Object Descriptor[world.ObjectRecord]
	Room   Descriptor[world.RoomRecord]
	Shop   Descriptor[world.ShopRecord]
	Ledger Descriptor[world.TransactionRecord]
}

// DefaultRegistry returns the production migration chains.
func DefaultRegistry() Registry {
	return Registry{
		Player: Descriptor[world.PlayerRecord]{
			Type:    "player",
			Current: world.PlayerSchemaVersion,
			Version: func(p world.PlayerRecord) int { return p.SchemaVersion },
			Steps: map[int]Step[world.PlayerRecord]{
				1: playerV1ToV2,
				2: playerV2ToV3,
			},
		},
		Object: Descriptor[world.ObjectRecord]{
			Type:    "object",
			Current: world.ObjectSchemaVersion,
			Version: func(o world.ObjectRecord) int { return o.SchemaVersion },
			Steps: map[int]Step[world.ObjectRecord]{
				1: objectV1ToV2,
			},
		},
		Room: Descriptor[world.RoomRecord]{
			Type:    "room",
			Current: world.RoomSchemaVersion,
			Version: func(r world.RoomRecord) int { return r.SchemaVersion },
			Steps: map[int]Step[world.RoomRecord]{
				1: roomV1ToV2,
			},
		},
		Shop: Descriptor[world.ShopRecord]{
			Type:    "shop",
			Current: world.ShopSchemaVersion,
			Version: func(s world.ShopRecord) int { return s.SchemaVersion },
			Steps: map[int]Step[world.ShopRecord]{
				1: shopV1ToV2,
			},
		},
		Ledger: Descriptor[world.TransactionRecord]{
			Type:    "transaction",
			Current: world.LedgerSchemaVersion,
			Version: func(t world.TransactionRecord) int { return t.SchemaVersion },
			Steps:   map[int]Step[world.TransactionRecord]{},
		},
	}
}

// playerV1ToV2 folds the legacy unsigned Credits balance into the tagged
// on-hand currency amount. Banked currency defaults to zero.
func playerV1ToV2(p world.PlayerRecord) (world.PlayerRecord, error) {
	if p.OnHand.BaseValue() == 0 && p.Credits > 0 {
		p.OnHand = world.Decimal(int64(p.Credits))
	}
	p.Credits = 0
	p.SchemaVersion = 2
	return p, nil
}

// playerV2ToV3 converts the flat legacy inventory into item stacks and
// introduces the applied-ledger watermark at zero.
func playerV2ToV3(p world.PlayerRecord) (world.PlayerRecord, error) {
	for _, objectID := range p.Inventory {
		p.AddItem(objectID, 1)
	}
	p.Inventory = nil
	p.SchemaVersion = 3
	return p, nil
}

// objectV1ToV2 folds the legacy integer value into the tagged currency
// value, leaving an already-set currency value untouched.
func objectV1ToV2(o world.ObjectRecord) (world.ObjectRecord, error) {
	if o.CurrencyValue.BaseValue() == 0 && o.Value > 0 {
		o.CurrencyValue = world.Decimal(int64(o.Value))
	}
	o.Value = 0
	o.SchemaVersion = 2
	return o, nil
}

// roomV1ToV2 is shape-only: the Locked flag added in v2 defaults to false
// during decoding.
func roomV1ToV2(r world.RoomRecord) (world.RoomRecord, error) {
	r.SchemaVersion = 2
	return r, nil
}

// shopV1ToV2 introduces the currency reserve and restock configuration.
// Pricing fields absent from v1 records take the stock defaults.
func shopV1ToV2(s world.ShopRecord) (world.ShopRecord, error) {
	if s.Inventory == nil {
		s.Inventory = make(map[string]world.ShopItem)
	}
	if s.MarkupBP == 0 {
		s.MarkupBP = world.DefaultMarkupBP
	}
	if s.MarkdownBP == 0 {
		s.MarkdownBP = world.DefaultMarkdownBP
	}
	s.SchemaVersion = 2
	return s, nil
}
