package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

// ledgerParties returns the base usernames an entry should be indexed
// under, with bank-vault suffixes stripped and duplicates folded.
func ledgerParties(entry world.TransactionRecord) []string {
	var parties []string
	add := func(identity string) {
		name := strings.ToLower(strings.TrimSuffix(identity, world.BankVaultSuffix))
		if name == "" {
			return
		}
		for _, existing := range parties {
			if existing == name {
				return
			}
		}
		parties = append(parties, name)
	}
	add(entry.From)
	add(entry.To)
	return parties
}

// AppendEntry assigns the next ledger sequence to the entry and persists it
// together with its id and per-player index rows. Entries appended in the
// pending state are tracked for crash recovery until UpdateEntry marks them
// committed.
func (s *Store) AppendEntry(ctx context.Context, entry world.TransactionRecord) (world.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return world.TransactionRecord{}, err
	}
	if strings.TrimSpace(entry.ID) == "" {
		return world.TransactionRecord{}, fmt.Errorf("transaction id is required")
	}
	entry.SchemaVersion = world.LedgerSchemaVersion

	err := s.db.Update(func(tx *bbolt.Tx) error {
		ledger := tx.Bucket(bucketLedger)
		ids := tx.Bucket(bucketLedgerIDs)

		if existing := ids.Get([]byte(entry.ID)); existing != nil {
			return fmt.Errorf("transaction %s already appended", entry.ID)
		}

		seq, err := ledger.NextSequence()
		if err != nil {
			return fmt.Errorf("next ledger sequence: %w", err)
		}
		entry.Seq = seq

		payload, err := marshal(entry)
		if err != nil {
			return err
		}
		if err := ledger.Put(seqKey(seq), payload); err != nil {
			return err
		}
		if err := ids.Put([]byte(entry.ID), seqKey(seq)); err != nil {
			return err
		}
		players := tx.Bucket(bucketLedgerPlayers)
		for _, party := range ledgerParties(entry) {
			if err := players.Put(playerSeqKey(party, seq), seqKey(seq)); err != nil {
				return err
			}
		}
		if entry.Status == world.TxnPending {
			if err := tx.Bucket(bucketLedgerPending).Put(seqKey(seq), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return world.TransactionRecord{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry rewrites an existing entry in place. Only status and reversal
// flags legitimately change; the sequence and id must already exist.
func (s *Store) UpdateEntry(ctx context.Context, entry world.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Seq == 0 {
		return fmt.Errorf("ledger entry has no sequence")
	}
	entry.SchemaVersion = world.LedgerSchemaVersion

	payload, err := marshal(entry)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		ledger := tx.Bucket(bucketLedger)
		if ledger.Get(seqKey(entry.Seq)) == nil {
			return storage.ErrNotFound
		}
		if err := ledger.Put(seqKey(entry.Seq), payload); err != nil {
			return err
		}
		if err := syncStatusIndex(tx.Bucket(bucketLedgerPending), entry, world.TxnPending); err != nil {
			return err
		}
		return syncStatusIndex(tx.Bucket(bucketLedgerParked), entry, world.TxnParked)
	})
	if err != nil {
		return fmt.Errorf("update ledger entry %s: %w", entry.ID, err)
	}
	return nil
}

// GetEntry fetches a ledger entry by transaction id.
func (s *Store) GetEntry(ctx context.Context, id string) (world.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return world.TransactionRecord{}, err
	}

	var raw []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		seq := tx.Bucket(bucketLedgerIDs).Get([]byte(id))
		if seq == nil {
			return nil
		}
		value := tx.Bucket(bucketLedger).Get(seq)
		if value != nil {
			raw = append(raw, value...)
		}
		return nil
	}); err != nil {
		return world.TransactionRecord{}, fmt.Errorf("read ledger entry: %w", err)
	}
	if raw == nil {
		return world.TransactionRecord{}, storage.ErrNotFound
	}

	entry, _, err := migrate.LoadAndMigrate(raw, id, s.registry.Ledger)
	if err != nil {
		return world.TransactionRecord{}, recordLoadFailure("ledger", err)
	}
	return entry, nil
}

// PlayerEntries returns one page of the named player's ledger entries,
// newest first. Pages are zero-based.
func (s *Store) PlayerEntries(ctx context.Context, username string, page, pageSize int) ([]world.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}
	if page < 0 {
		page = 0
	}

	prefix := playerSeqPrefix(username)
	skip := page * pageSize
	var entries []world.TransactionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		ledger := tx.Bucket(bucketLedger)
		cursor := tx.Bucket(bucketLedgerPlayers).Cursor()

		// Seek just past the player's range, then walk backwards so the
		// big-endian sequence keys come out newest-first.
		upper := append(append([]byte{}, prefix...), 0xff)
		k, v := cursor.Seek(upper)
		if k == nil {
			k, v = cursor.Last()
		} else {
			k, v = cursor.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Prev() {
			if skip > 0 {
				skip--
				continue
			}
			raw := ledger.Get(v)
			if raw == nil {
				continue
			}
			seq := binary.BigEndian.Uint64(v)
			entry, _, err := migrate.LoadAndMigrate(raw, fmt.Sprintf("ledger:%d", seq), s.registry.Ledger)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			if len(entries) >= pageSize {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list player ledger entries: %w", err)
	}
	return entries, nil
}

// syncStatusIndex keeps one per-status sequence index in step with an
// entry's current status.
func syncStatusIndex(index *bbolt.Bucket, entry world.TransactionRecord, status world.TransactionStatus) error {
	if entry.Status == status {
		return index.Put(seqKey(entry.Seq), nil)
	}
	return index.Delete(seqKey(entry.Seq))
}

// PendingEntries returns every entry still in the pending state, oldest
// first, so recovery can replay intents in append order.
func (s *Store) PendingEntries(ctx context.Context) ([]world.TransactionRecord, error) {
	entries, err := s.entriesInIndex(ctx, bucketLedgerPending)
	if err != nil {
		return nil, fmt.Errorf("list pending ledger entries: %w", err)
	}
	return entries, nil
}

// ParkedEntries returns every entry recovery has set aside, oldest first.
func (s *Store) ParkedEntries(ctx context.Context) ([]world.TransactionRecord, error) {
	entries, err := s.entriesInIndex(ctx, bucketLedgerParked)
	if err != nil {
		return nil, fmt.Errorf("list parked ledger entries: %w", err)
	}
	return entries, nil
}

func (s *Store) entriesInIndex(ctx context.Context, bucket []byte) ([]world.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []world.TransactionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		ledger := tx.Bucket(bucketLedger)
		return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
			raw := ledger.Get(k)
			if raw == nil {
				return nil
			}
			seq := binary.BigEndian.Uint64(k)
			entry, _, err := migrate.LoadAndMigrate(raw, fmt.Sprintf("ledger:%d", seq), s.registry.Ledger)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}
