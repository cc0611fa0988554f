// Package worldd parses world service flags and starts the runtime: the
// store, crash recovery, the admin HTTP surface, and the background sweeps.
package worldd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/meshmush/internal/admin"
	"github.com/louisbranch/meshmush/internal/economy"
	bboltstore "github.com/louisbranch/meshmush/internal/storage/bbolt"
	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/trade"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"

	entrypoint "github.com/louisbranch/meshmush/internal/platform/cmd"
	"github.com/louisbranch/meshmush/internal/platform/timeouts"
)

// Config holds world service configuration.
type Config struct {
	DBPath        string        `env:"MESHMUSH_DB_PATH" envDefault:"meshmush.db"`
	HTTPAddr      string        `env:"MESHMUSH_HTTP_ADDR" envDefault:":8080"`
	Currency      string        `env:"MESHMUSH_CURRENCY_SYSTEM" envDefault:"decimal"`
	TradeTimeout  time.Duration `env:"MESHMUSH_TRADE_TIMEOUT" envDefault:"5m"`
	SweepInterval time.Duration `env:"MESHMUSH_TRADE_SWEEP_INTERVAL" envDefault:"1m"`
	RestockPeriod time.Duration `env:"MESHMUSH_SHOP_RESTOCK_INTERVAL" envDefault:"15m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the world database file")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "Admin HTTP listen address")
	fs.StringVar(&cfg.Currency, "currency", cfg.Currency, "Active currency system (decimal or multitier)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CurrencySystem resolves the configured currency system.
func (c Config) CurrencySystem() (world.CurrencySystem, error) {
	switch world.CurrencyKind(c.Currency) {
	case world.CurrencyDecimal:
		return world.DecimalSystem(world.DefaultDecimalCurrency()), nil
	case world.CurrencyMultiTier:
		return world.MultiTierSystem(world.DefaultMultiTierCurrency()), nil
	default:
		return world.CurrencySystem{}, fmt.Errorf("unknown currency system %q", c.Currency)
	}
}

// Run starts the world service and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	system, err := cfg.CurrencySystem()
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorld, func(ctx context.Context) error {
		store, err := bboltstore.Open(cfg.DBPath, migrate.DefaultRegistry())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		emitter := telemetry.NewEmitter(store)
		engine := economy.NewEngine(store).WithTelemetry(emitter)
		coordinator := trade.NewCoordinator(store, engine).
			WithTimeout(cfg.TradeTimeout).
			WithTelemetry(emitter)

		replayed, parked, err := engine.Recover(ctx)
		if err != nil {
			return fmt.Errorf("recover pending transactions: %w", err)
		}
		if replayed > 0 {
			log.Printf("recovered %d pending transactions", replayed)
		}
		if parked > 0 {
			log.Printf("parked %d unreplayable transactions; see /api/v1/transactions/parked", parked)
		}

		handler := admin.NewHandler(store, engine, system)
		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.Router(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			log.Printf("admin http listening on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		group.Go(func() error {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					expired, err := coordinator.ExpireStale(ctx)
					if err != nil {
						log.Printf("trade sweep: %v", err)
						continue
					}
					if expired > 0 {
						log.Printf("expired %d stale trades", expired)
					}
				}
			}
		})
		group.Go(func() error {
			ticker := time.NewTicker(cfg.RestockPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					restocked, err := engine.RestockShops(ctx)
					if err != nil {
						log.Printf("shop restock: %v", err)
						continue
					}
					if restocked > 0 {
						log.Printf("restocked %d shops", restocked)
					}
				}
			}
		})
		return group.Wait()
	})
}
