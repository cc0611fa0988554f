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

// ownerScopedKey partitions records by ownership scope so per-owner range
// scans stay contiguous: "world:<id>" or "player:<owner>:<id>".
func ownerScopedKey(owner world.Owner, id string) []byte {
	switch owner.Kind {
	case world.OwnerPlayer:
		return []byte(fmt.Sprintf("player:%s:%s", strings.ToLower(owner.Username), id))
	default:
		return []byte("world:" + id)
	}
}

// PutObject persists an object record and its id index entry.
func (s *Store) PutObject(ctx context.Context, object world.ObjectRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(object.ID) == "" {
		return fmt.Errorf("object id is required")
	}
	object.SchemaVersion = world.ObjectSchemaVersion

	payload, err := marshal(object)
	if err != nil {
		return err
	}
	key := ownerScopedKey(object.Owner, object.ID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		// Drop the old scoped key when ownership changed.
		ids := tx.Bucket(bucketObjectIDs)
		if old := ids.Get([]byte(object.ID)); old != nil && string(old) != string(key) {
			if err := tx.Bucket(bucketObjects).Delete(old); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketObjects).Put(key, payload); err != nil {
			return err
		}
		return ids.Put([]byte(object.ID), key)
	})
}

// GetObject fetches an object by id regardless of ownership scope,
// migrating it to the current schema version.
func (s *Store) GetObject(ctx context.Context, id string) (world.ObjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return world.ObjectRecord{}, err
	}

	var raw []byte
	var key string
	if err := s.db.View(func(tx *bbolt.Tx) error {
		scoped := tx.Bucket(bucketObjectIDs).Get([]byte(id))
		if scoped == nil {
			return nil
		}
		key = string(scoped)
		value := tx.Bucket(bucketObjects).Get(scoped)
		if value != nil {
			raw = append(raw, value...)
		}
		return nil
	}); err != nil {
		return world.ObjectRecord{}, fmt.Errorf("read object: %w", err)
	}
	if raw == nil {
		return world.ObjectRecord{}, storage.ErrNotFound
	}

	object, migrated, err := migrate.LoadAndMigrate(raw, key, s.registry.Object)
	if err != nil {
		return world.ObjectRecord{}, recordLoadFailure("object", err)
	}
	if migrated {
		if err := s.PutObject(ctx, object); err != nil {
			return world.ObjectRecord{}, fmt.Errorf("persist migrated object: %w", err)
		}
		s.recordMigrated(ctx, "object", key)
	}
	return object, nil
}

// ListObjectIDs returns every object id in the store.
func (s *Store) ListObjectIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjectIDs).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return ids, nil
}
