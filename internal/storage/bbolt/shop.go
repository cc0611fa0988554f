package bbolt

import (
	"context"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

// PutShop persists a shop record at the current schema version.
func (s *Store) PutShop(ctx context.Context, shop world.ShopRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(shop.ID) == "" {
		return fmt.Errorf("shop id is required")
	}
	shop.SchemaVersion = world.ShopSchemaVersion

	payload, err := marshal(shop)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketShops).Put([]byte(shop.ID), payload)
	})
}

// GetShop fetches a shop, migrating it to the current schema version.
func (s *Store) GetShop(ctx context.Context, id string) (world.ShopRecord, error) {
	if err := ctx.Err(); err != nil {
		return world.ShopRecord{}, err
	}

	var raw []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketShops).Get([]byte(id))
		if value != nil {
			raw = append(raw, value...)
		}
		return nil
	}); err != nil {
		return world.ShopRecord{}, fmt.Errorf("read shop: %w", err)
	}
	if raw == nil {
		return world.ShopRecord{}, storage.ErrNotFound
	}

	shop, migrated, err := migrate.LoadAndMigrate(raw, id, s.registry.Shop)
	if err != nil {
		return world.ShopRecord{}, recordLoadFailure("shop", err)
	}
	if migrated {
		if err := s.PutShop(ctx, shop); err != nil {
			return world.ShopRecord{}, fmt.Errorf("persist migrated shop: %w", err)
		}
		s.recordMigrated(ctx, "shop", id)
	}
	return shop, nil
}

// ListShopIDs returns every stored shop id in key order.
func (s *Store) ListShopIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketShops).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return ids, nil
}
