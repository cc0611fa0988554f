package economy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/world"
)

// ConversionReport summarizes a world currency conversion.
type ConversionReport struct {
	Target  world.CurrencyKind `json:"target"`
	Players int                `json:"players"`
	Shops   int                `json:"shops"`
	Objects int                `json:"objects"`
	Skipped int                `json:"skipped"`
	DryRun  bool               `json:"dry_run"`
}

// convertAmount converts one amount to the target system at the fixed ratio.
// Amounts already in the target system are left alone.
func convertAmount(a world.CurrencyAmount, target world.CurrencyKind) (world.CurrencyAmount, bool, error) {
	if a.EffectiveKind() == target {
		return a, false, nil
	}
	switch target {
	case world.CurrencyMultiTier:
		converted, err := a.ToMultiTier()
		return converted, err == nil, err
	case world.CurrencyDecimal:
		converted, err := a.ToDecimal()
		return converted, err == nil, err
	default:
		return a, false, fmt.Errorf("unknown currency kind %q", target)
	}
}

// ConvertWorld moves every stored balance, reserve, and object value to the
// target currency system at the fixed conversion ratio. The conversion is
// exact, so running it twice is harmless. With dryRun set, nothing is
// written and the report says what would change.
func (e *Engine) ConvertWorld(ctx context.Context, target world.CurrencyKind, dryRun bool) (ConversionReport, error) {
	ctx, span := e.tracer.Start(ctx, "economy.ConvertWorld")
	defer span.End()

	report := ConversionReport{Target: target, DryRun: dryRun}

	usernames, err := e.store.ListPlayerIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list players: %w", err)
	}
	for _, username := range usernames {
		unlock := e.locks.acquire(playerLockKey(username))
		err := func() error {
			player, err := e.store.GetPlayer(ctx, username)
			if err != nil {
				return fmt.Errorf("player %s: %w", username, err)
			}
			onHand, changedHand, err := convertAmount(player.OnHand, target)
			if err != nil {
				return fmt.Errorf("player %s on hand: %w", username, err)
			}
			banked, changedBank, err := convertAmount(player.Banked, target)
			if err != nil {
				return fmt.Errorf("player %s banked: %w", username, err)
			}
			if !changedHand && !changedBank {
				report.Skipped++
				return nil
			}
			report.Players++
			if dryRun {
				return nil
			}
			player.OnHand, player.Banked = onHand, banked
			player.Touch(e.clock())
			return e.store.PutPlayer(ctx, player)
		}()
		unlock()
		if err != nil {
			return report, err
		}
	}

	shopIDs, err := e.store.ListShopIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list shops: %w", err)
	}
	for _, id := range shopIDs {
		unlock := e.locks.acquire(shopLockKey(id))
		err := func() error {
			shop, err := e.store.GetShop(ctx, id)
			if err != nil {
				return fmt.Errorf("shop %s: %w", id, err)
			}
			reserve, changed, err := convertAmount(shop.Reserve, target)
			if err != nil {
				return fmt.Errorf("shop %s reserve: %w", id, err)
			}
			if !changed {
				report.Skipped++
				return nil
			}
			report.Shops++
			if dryRun {
				return nil
			}
			shop.Reserve = reserve
			shop.UpdatedAt = e.clock().UTC()
			return e.store.PutShop(ctx, shop)
		}()
		unlock()
		if err != nil {
			return report, err
		}
	}

	objectIDs, err := e.store.ListObjectIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list objects: %w", err)
	}
	for _, id := range objectIDs {
		object, err := e.store.GetObject(ctx, id)
		if err != nil {
			return report, fmt.Errorf("object %s: %w", id, err)
		}
		value, changed, err := convertAmount(object.CurrencyValue, target)
		if err != nil {
			return report, fmt.Errorf("object %s value: %w", id, err)
		}
		if !changed {
			report.Skipped++
			continue
		}
		report.Objects++
		if dryRun {
			continue
		}
		object.CurrencyValue = value
		if err := e.store.PutObject(ctx, object); err != nil {
			return report, fmt.Errorf("persist object %s: %w", id, err)
		}
	}

	if !dryRun {
		_ = e.emitter.Record(ctx, telemetry.KindConvert, "world currency converted", map[string]string{
			"target":  string(target),
			"players": strconv.Itoa(report.Players),
			"shops":   strconv.Itoa(report.Shops),
			"objects": strconv.Itoa(report.Objects),
		})
	}
	return report, nil
}
