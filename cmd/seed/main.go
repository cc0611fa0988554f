// Package main provides a CLI for seeding a local world database with demo
// data.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/meshmush/internal/seed"
	bboltstore "github.com/louisbranch/meshmush/internal/storage/bbolt"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

func main() {
	var dbPath string
	var currency string
	cfg := seed.DefaultConfig()

	flag.StringVar(&dbPath, "db", "meshmush.db", "path to the world database file")
	flag.StringVar(&currency, "currency", string(world.CurrencyDecimal), "currency system for demo balances (decimal or multitier)")
	flag.IntVar(&cfg.Extra, "extra", 0, "number of extra generated players, objects, and rooms")
	flag.Int64Var(&cfg.RandSeed, "seed", 0, "random seed for generated names (0 uses the clock)")
	flag.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	flag.Parse()

	log.SetPrefix("[SEED] ")
	cfg.Kind = world.CurrencyKind(currency)
	cfg.Logf = log.Printf

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bboltstore.Open(dbPath, migrate.DefaultRegistry())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := seed.Run(ctx, store, cfg); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seeded %s", dbPath)
}
