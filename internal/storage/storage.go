package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/meshmush/internal/world"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// TelemetryEvent is one operational event recorded by the service.
type TelemetryEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// PlayerStore persists player records. Get returns records already migrated
// to the current schema version.
type PlayerStore interface {
	PutPlayer(ctx context.Context, player world.PlayerRecord) error
	GetPlayer(ctx context.Context, username string) (world.PlayerRecord, error)
	ListPlayerIDs(ctx context.Context) ([]string, error)
}

// ObjectStore persists world and player-owned objects.
type ObjectStore interface {
	PutObject(ctx context.Context, object world.ObjectRecord) error
	GetObject(ctx context.Context, id string) (world.ObjectRecord, error)
	ListObjectIDs(ctx context.Context) ([]string, error)
}

// RoomStore persists rooms.
type RoomStore interface {
	PutRoom(ctx context.Context, room world.RoomRecord) error
	GetRoom(ctx context.Context, id string) (world.RoomRecord, error)
}

// ShopStore persists shops.
type ShopStore interface {
	PutShop(ctx context.Context, shop world.ShopRecord) error
	GetShop(ctx context.Context, id string) (world.ShopRecord, error)
	ListShopIDs(ctx context.Context) ([]string, error)
}

// LedgerStore is the append-only transaction ledger. Entries are assigned a
// monotonic sequence on append and are never deleted; UpdateEntry exists
// only to flip the status and reversal flags of an existing entry.
type LedgerStore interface {
	AppendEntry(ctx context.Context, entry world.TransactionRecord) (world.TransactionRecord, error)
	UpdateEntry(ctx context.Context, entry world.TransactionRecord) error
	GetEntry(ctx context.Context, id string) (world.TransactionRecord, error)
	// PlayerEntries returns the named player's entries newest-first.
	PlayerEntries(ctx context.Context, username string, page, pageSize int) ([]world.TransactionRecord, error)
	// PendingEntries returns entries still in the pending state, oldest
	// first, for crash recovery.
	PendingEntries(ctx context.Context) ([]world.TransactionRecord, error)
	// ParkedEntries returns entries recovery set aside as unreplayable,
	// oldest first, for operator inspection.
	ParkedEntries(ctx context.Context) ([]world.TransactionRecord, error)
}

// TradeStore persists ephemeral trade sessions with a per-player active
// index.
type TradeStore interface {
	PutTrade(ctx context.Context, session world.TradeSession) error
	GetTrade(ctx context.Context, id string) (world.TradeSession, error)
	// ActiveTradeFor returns the non-terminal session the player is part
	// of, or ErrNotFound.
	ActiveTradeFor(ctx context.Context, username string) (world.TradeSession, error)
	DeleteTrade(ctx context.Context, id string) error
	// ListTrades returns every stored session, for the expiry sweep.
	ListTrades(ctx context.Context) ([]world.TradeSession, error)
}

// TelemetryStore records operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}

// Store aggregates every persistence concern of the world store.
type Store interface {
	PlayerStore
	ObjectStore
	RoomStore
	ShopStore
	LedgerStore
	TradeStore
	TelemetryStore
}
