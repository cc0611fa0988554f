package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/meshmush/internal/metrics"
	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

// Bucket names. Record buckets hold JSON payloads; index buckets map
// secondary keys back to primary ones.
var (
	bucketPlayers       = []byte("players")
	bucketRooms         = []byte("rooms")
	bucketRoomIDs       = []byte("room_ids")
	bucketObjects       = []byte("objects")
	bucketObjectIDs     = []byte("object_ids")
	bucketShops         = []byte("shops")
	bucketLedger        = []byte("ledger")
	bucketLedgerIDs     = []byte("ledger_ids")
	bucketLedgerPlayers = []byte("ledger_players")
	bucketLedgerPending = []byte("ledger_pending")
	bucketLedgerParked  = []byte("ledger_parked")
	bucketTrades        = []byte("trades")
	bucketTradePlayers  = []byte("trade_players")
	bucketTelemetry     = []byte("telemetry")
)

// Store provides a BoltDB-backed world store. Every typed Get migrates the
// record to its current schema version and persists the upgraded form, so
// migration cost is paid at most once per record.
type Store struct {
	db       *bbolt.DB
	registry migrate.Registry
	clock    func() time.Time
}

// Open opens a BoltDB-backed store at the provided path using the given
// migration registry.
func Open(path string, registry migrate.Registry) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, registry: registry, clock: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureBuckets() error {
	buckets := [][]byte{
		bucketPlayers,
		bucketRooms,
		bucketRoomIDs,
		bucketObjects,
		bucketObjectIDs,
		bucketShops,
		bucketLedger,
		bucketLedgerIDs,
		bucketLedgerPlayers,
		bucketLedgerPending,
		bucketLedgerParked,
		bucketTrades,
		bucketTradePlayers,
		bucketTelemetry,
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func marshal(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return payload, nil
}

// seqKey encodes a ledger sequence as a big-endian key so byte order matches
// numeric order and reverse cursor scans walk newest-first.
func seqKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

// playerSeqKey builds the per-player ledger index key. The NUL separator
// keeps one player's range from running into a prefix-sharing neighbour.
func playerSeqKey(username string, seq uint64) []byte {
	key := make([]byte, 0, len(username)+9)
	key = append(key, []byte(strings.ToLower(username))...)
	key = append(key, 0x00)
	key = append(key, seqKey(seq)...)
	return key
}

func playerSeqPrefix(username string) []byte {
	key := make([]byte, 0, len(username)+1)
	key = append(key, []byte(strings.ToLower(username))...)
	key = append(key, 0x00)
	return key
}

// recordMigrated counts a record self-healed on read and leaves a telemetry
// trail, so operators can watch a schema rollout upgrade the world lazily.
func (s *Store) recordMigrated(ctx context.Context, recordType, key string) {
	metrics.MigrationsTotal.WithLabelValues(recordType).Inc()
	_ = s.AppendTelemetryEvent(ctx, storage.TelemetryEvent{
		Kind:    telemetry.KindMigration,
		Message: "record upgraded to current schema",
		Fields:  map[string]string{"type": recordType, "key": key},
	})
}

// recordLoadFailure counts corrupt-record rejections by type and hands the
// error back unchanged.
func recordLoadFailure(recordType string, err error) error {
	var corrupt *storage.CorruptRecordError
	if errors.As(err, &corrupt) {
		metrics.CorruptRecordsTotal.WithLabelValues(recordType).Inc()
	}
	return err
}
