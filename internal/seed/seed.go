// Package seed populates a world database with demo data for local
// development: a few connected rooms, takeable objects, a stocked shop, and
// two funded players.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/louisbranch/meshmush/internal/seed/worldbuilder"
	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/world"
)

// Config controls what the seeder creates.
type Config struct {
	// Kind selects the currency system the demo balances use.
	Kind world.CurrencyKind
	// Extra adds that many generated players, objects, and rooms on top of
	// the fixed demo records.
	Extra int
	// RandSeed drives the generated names; zero means a time-based seed.
	RandSeed int64
	// Verbose logs each record as it is written.
	Verbose bool
	Logf    func(format string, args ...any)
}

// DefaultConfig returns the stock demo configuration.
func DefaultConfig() Config {
	return Config{Kind: world.CurrencyDecimal}
}

func (c Config) logf(format string, args ...any) {
	if c.Verbose && c.Logf != nil {
		c.Logf(format, args...)
	}
}

func (c Config) amount(units int64) world.CurrencyAmount {
	if c.Kind == world.CurrencyMultiTier {
		return world.MultiTier(units)
	}
	return world.Decimal(units)
}

// Run writes the demo world. Seeding an already-seeded store overwrites the
// demo records in place.
func Run(ctx context.Context, store storage.Store, cfg Config) error {
	now := time.Now()

	rooms := []world.RoomRecord{
		world.NewWorldRoom("town-square", "Town Square", "The town square",
			"The heart of the settlement, ringed by notice boards.", now),
		world.NewWorldRoom("market-row", "Market Row", "A busy market street",
			"Stalls and shopfronts line the street.", now),
		world.NewWorldRoom("north-gate", "North Gate", "The north gate",
			"The road out of town passes under the old gatehouse.", now),
	}
	for _, room := range rooms {
		if err := store.PutRoom(ctx, room); err != nil {
			return fmt.Errorf("seed room %s: %w", room.ID, err)
		}
		cfg.logf("room %s", room.ID)
	}

	objects := []world.ObjectRecord{
		demoObject("iron-sword", "Iron Sword", "A serviceable blade.", cfg.amount(100), now),
		demoObject("healing-draught", "Healing Draught", "Restores a little vigor.", cfg.amount(25), now),
		demoObject("rope-coil", "Coil of Rope", "Fifty feet of hemp rope.", cfg.amount(10), now),
	}
	for _, object := range objects {
		if err := store.PutObject(ctx, object); err != nil {
			return fmt.Errorf("seed object %s: %w", object.ID, err)
		}
		cfg.logf("object %s", object.ID)
	}

	shop := world.NewShop("general-store", "The General Store", "market-row", "", now)
	shop.Description = "Sundries for the practical adventurer."
	shop.Reserve = cfg.amount(10000)
	shop.Inventory["iron-sword"] = world.LimitedStock("iron-sword", 5)
	shop.Inventory["healing-draught"] = world.ShopItem{
		ObjectID:         "healing-draught",
		Quantity:         stockOf(10),
		RestockThreshold: 2,
		RestockTo:        10,
	}
	shop.Inventory["rope-coil"] = world.InfiniteStock("rope-coil")
	if err := store.PutShop(ctx, shop); err != nil {
		return fmt.Errorf("seed shop %s: %w", shop.ID, err)
	}
	cfg.logf("shop %s", shop.ID)

	players := []world.PlayerRecord{
		demoPlayer("alice", "Alice", cfg.amount(500), cfg.amount(1000), now),
		demoPlayer("bob", "Bob", cfg.amount(300), cfg.amount(0), now),
	}
	players[1].AddItem("rope-coil", 2)
	for _, player := range players {
		if err := store.PutPlayer(ctx, player); err != nil {
			return fmt.Errorf("seed player %s: %w", player.Username, err)
		}
		cfg.logf("player %s", player.Username)
	}

	if cfg.Extra > 0 {
		if err := seedExtra(ctx, store, cfg, now); err != nil {
			return err
		}
	}
	return nil
}

// seedExtra pads the world with generated records so pagination and
// conversion paths have more than a handful of rows to chew on.
func seedExtra(ctx context.Context, store storage.Store, cfg Config, now time.Time) error {
	randSeed := cfg.RandSeed
	if randSeed == 0 {
		randSeed = now.UnixNano()
	}
	rng := rand.New(rand.NewSource(randSeed))
	builder := worldbuilder.New(rng)

	for i := 0; i < cfg.Extra; i++ {
		name := builder.RoomName()
		room := world.NewWorldRoom(
			fmt.Sprintf("gen-room-%02d", i+1),
			name,
			name,
			builder.RoomDescription(),
			now,
		)
		if err := store.PutRoom(ctx, room); err != nil {
			return fmt.Errorf("seed room %s: %w", room.ID, err)
		}
		cfg.logf("room %s (%s)", room.ID, room.Name)

		object := demoObject(
			fmt.Sprintf("gen-object-%02d", i+1),
			builder.ObjectName(),
			builder.ObjectDescription(),
			cfg.amount(int64(5+rng.Intn(200))),
			now,
		)
		if err := store.PutObject(ctx, object); err != nil {
			return fmt.Errorf("seed object %s: %w", object.ID, err)
		}
		cfg.logf("object %s (%s)", object.ID, object.Name)

		username := fmt.Sprintf("%s%02d", builder.Username(), i+1)
		player := demoPlayer(username, builder.DisplayName(),
			cfg.amount(int64(50+rng.Intn(500))), cfg.amount(int64(rng.Intn(1000))), now)
		if rng.Intn(2) == 0 {
			player.AddItem(object.ID, uint32(1+rng.Intn(3)))
		}
		if err := store.PutPlayer(ctx, player); err != nil {
			return fmt.Errorf("seed player %s: %w", player.Username, err)
		}
		cfg.logf("player %s (%s)", player.Username, player.DisplayName)
	}

	shop := world.NewShop("gen-shop", builder.ShopName(), "gen-room-01", "", now)
	shop.Description = "Generated stock rotates with every reseed."
	shop.Reserve = cfg.amount(5000)
	for i := 0; i < cfg.Extra; i++ {
		shop.Inventory[fmt.Sprintf("gen-object-%02d", i+1)] = world.LimitedStock(
			fmt.Sprintf("gen-object-%02d", i+1), uint32(1+rng.Intn(8)))
	}
	if err := store.PutShop(ctx, shop); err != nil {
		return fmt.Errorf("seed shop %s: %w", shop.ID, err)
	}
	cfg.logf("shop %s (%s)", shop.ID, shop.Name)
	return nil
}

func demoObject(id, name, description string, value world.CurrencyAmount, now time.Time) world.ObjectRecord {
	object := world.NewWorldObject(id, name, description, now)
	object.CurrencyValue = value
	return object
}

func demoPlayer(username, display string, onHand, banked world.CurrencyAmount, now time.Time) world.PlayerRecord {
	player := world.NewPlayer(username, display, "town-square", now)
	player.OnHand = onHand
	player.Banked = banked
	return player
}

func stockOf(quantity uint32) *uint32 {
	q := quantity
	return &q
}
