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

// PutRoom persists a room record and its id index entry.
func (s *Store) PutRoom(ctx context.Context, room world.RoomRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(room.ID) == "" {
		return fmt.Errorf("room id is required")
	}
	room.SchemaVersion = world.RoomSchemaVersion

	payload, err := marshal(room)
	if err != nil {
		return err
	}
	key := ownerScopedKey(room.Owner, room.ID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketRoomIDs)
		if old := ids.Get([]byte(room.ID)); old != nil && string(old) != string(key) {
			if err := tx.Bucket(bucketRooms).Delete(old); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketRooms).Put(key, payload); err != nil {
			return err
		}
		return ids.Put([]byte(room.ID), key)
	})
}

// GetRoom fetches a room by id, migrating it to the current schema version.
func (s *Store) GetRoom(ctx context.Context, id string) (world.RoomRecord, error) {
	if err := ctx.Err(); err != nil {
		return world.RoomRecord{}, err
	}

	var raw []byte
	var key string
	if err := s.db.View(func(tx *bbolt.Tx) error {
		scoped := tx.Bucket(bucketRoomIDs).Get([]byte(id))
		if scoped == nil {
			return nil
		}
		key = string(scoped)
		value := tx.Bucket(bucketRooms).Get(scoped)
		if value != nil {
			raw = append(raw, value...)
		}
		return nil
	}); err != nil {
		return world.RoomRecord{}, fmt.Errorf("read room: %w", err)
	}
	if raw == nil {
		return world.RoomRecord{}, storage.ErrNotFound
	}

	room, migrated, err := migrate.LoadAndMigrate(raw, key, s.registry.Room)
	if err != nil {
		return world.RoomRecord{}, recordLoadFailure("room", err)
	}
	if migrated {
		if err := s.PutRoom(ctx, room); err != nil {
			return world.RoomRecord{}, fmt.Errorf("persist migrated room: %w", err)
		}
		s.recordMigrated(ctx, "room", key)
	}
	return room, nil
}
