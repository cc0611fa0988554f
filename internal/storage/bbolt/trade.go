package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/world"
)

func tradePlayerKey(username string) []byte {
	return []byte(strings.ToLower(username))
}

// PutTrade persists a trade session and maintains the per-player active
// index. Terminal sessions drop their index entries so a player can open a
// new trade immediately.
func (s *Store) PutTrade(ctx context.Context, session world.TradeSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("trade id is required")
	}

	payload, err := marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketTrades).Put([]byte(session.ID), payload); err != nil {
			return err
		}
		index := tx.Bucket(bucketTradePlayers)
		if session.State.Terminal() {
			if err := index.Delete(tradePlayerKey(session.Initiator)); err != nil {
				return err
			}
			return index.Delete(tradePlayerKey(session.Recipient))
		}
		if err := index.Put(tradePlayerKey(session.Initiator), []byte(session.ID)); err != nil {
			return err
		}
		return index.Put(tradePlayerKey(session.Recipient), []byte(session.ID))
	})
}

// GetTrade fetches a trade session by id.
func (s *Store) GetTrade(ctx context.Context, id string) (world.TradeSession, error) {
	if err := ctx.Err(); err != nil {
		return world.TradeSession{}, err
	}

	var raw []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketTrades).Get([]byte(id))
		if value != nil {
			raw = append(raw, value...)
		}
		return nil
	}); err != nil {
		return world.TradeSession{}, fmt.Errorf("read trade: %w", err)
	}
	if raw == nil {
		return world.TradeSession{}, storage.ErrNotFound
	}

	var session world.TradeSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return world.TradeSession{}, fmt.Errorf("decode trade %s: %w", id, err)
	}
	return session, nil
}

// ActiveTradeFor returns the non-terminal session the player participates
// in, or storage.ErrNotFound. A stale index row pointing at a terminal
// session is cleaned up on the way.
func (s *Store) ActiveTradeFor(ctx context.Context, username string) (world.TradeSession, error) {
	if err := ctx.Err(); err != nil {
		return world.TradeSession{}, err
	}

	var id string
	if err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketTradePlayers).Get(tradePlayerKey(username))
		if value != nil {
			id = string(value)
		}
		return nil
	}); err != nil {
		return world.TradeSession{}, fmt.Errorf("read trade index: %w", err)
	}
	if id == "" {
		return world.TradeSession{}, storage.ErrNotFound
	}

	session, err := s.GetTrade(ctx, id)
	if err != nil {
		return world.TradeSession{}, err
	}
	if session.State.Terminal() {
		_ = s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketTradePlayers).Delete(tradePlayerKey(username))
		})
		return world.TradeSession{}, storage.ErrNotFound
	}
	return session, nil
}

// DeleteTrade removes a session and its index rows.
func (s *Store) DeleteTrade(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		trades := tx.Bucket(bucketTrades)
		raw := trades.Get([]byte(id))
		if raw != nil {
			var session world.TradeSession
			if err := json.Unmarshal(raw, &session); err == nil {
				index := tx.Bucket(bucketTradePlayers)
				_ = index.Delete(tradePlayerKey(session.Initiator))
				_ = index.Delete(tradePlayerKey(session.Recipient))
			}
		}
		return trades.Delete([]byte(id))
	})
}

// ListTrades returns every stored trade session.
func (s *Store) ListTrades(ctx context.Context) ([]world.TradeSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sessions []world.TradeSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTrades).ForEach(func(k, v []byte) error {
			var session world.TradeSession
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("decode trade %s: %w", k, err)
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return sessions, nil
}
