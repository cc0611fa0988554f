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

func playerKey(username string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(username)))
}

// PutPlayer persists a player record at the current schema version.
func (s *Store) PutPlayer(ctx context.Context, player world.PlayerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(player.Username) == "" {
		return fmt.Errorf("player username is required")
	}
	player.SchemaVersion = world.PlayerSchemaVersion

	payload, err := marshal(player)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPlayers).Put(playerKey(player.Username), payload)
	})
}

// GetPlayer fetches a player record, migrating it to the current schema
// version and persisting the upgraded form when a migration ran.
func (s *Store) GetPlayer(ctx context.Context, username string) (world.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return world.PlayerRecord{}, err
	}

	key := playerKey(username)
	var raw []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketPlayers).Get(key)
		if value != nil {
			raw = append(raw, value...)
		}
		return nil
	}); err != nil {
		return world.PlayerRecord{}, fmt.Errorf("read player: %w", err)
	}
	if raw == nil {
		return world.PlayerRecord{}, storage.ErrNotFound
	}

	player, migrated, err := migrate.LoadAndMigrate(raw, string(key), s.registry.Player)
	if err != nil {
		return world.PlayerRecord{}, recordLoadFailure("player", err)
	}
	if migrated {
		if err := s.PutPlayer(ctx, player); err != nil {
			return world.PlayerRecord{}, fmt.Errorf("persist migrated player: %w", err)
		}
		s.recordMigrated(ctx, "player", string(key))
	}
	return player, nil
}

// ListPlayerIDs returns every stored player username in key order.
func (s *Store) ListPlayerIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPlayers).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return ids, nil
}
