package seed

import (
	"context"
	"path/filepath"
	"testing"

	bboltstore "github.com/louisbranch/meshmush/internal/storage/bbolt"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

func TestRun(t *testing.T) {
	store, err := bboltstore.Open(filepath.Join(t.TempDir(), "world.db"), migrate.DefaultRegistry())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Extra = 3
	cfg.RandSeed = 42
	if err := Run(ctx, store, cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	alice, err := store.GetPlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if alice.OnHand != world.Decimal(500) || alice.Banked != world.Decimal(1000) {
		t.Fatalf("unexpected balances %+v / %+v", alice.OnHand, alice.Banked)
	}

	shop, err := store.GetShop(ctx, "general-store")
	if err != nil {
		t.Fatalf("get shop: %v", err)
	}
	if len(shop.Inventory) != 3 {
		t.Fatalf("unexpected inventory %+v", shop.Inventory)
	}
	if shop.Inventory["rope-coil"].Quantity != nil {
		t.Fatal("expected infinite rope stock")
	}

	// Extra records pad the world beyond the fixed demo set.
	players, err := store.ListPlayerIDs(ctx)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 5 {
		t.Fatalf("expected 5 players, got %v", players)
	}
	if _, err := store.GetShop(ctx, "gen-shop"); err != nil {
		t.Fatalf("get generated shop: %v", err)
	}
	if _, err := store.GetObject(ctx, "gen-object-03"); err != nil {
		t.Fatalf("get generated object: %v", err)
	}

	// Reseeding is idempotent for the fixed records.
	if err := Run(ctx, store, DefaultConfig()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
}
