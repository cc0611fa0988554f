package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.etcd.io/bbolt"

	"github.com/louisbranch/meshmush/internal/metrics"
	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "world.db"), migrate.DefaultRegistry())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestPlayerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	player := world.NewPlayer("Alice", "Alice", "town-square", testTime())
	player.OnHand = world.Decimal(500)
	if err := store.PutPlayer(ctx, player); err != nil {
		t.Fatalf("put player: %v", err)
	}

	// Lookups are case-insensitive.
	got, err := store.GetPlayer(ctx, "ALICE")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Username != "alice" || got.OnHand != world.Decimal(500) {
		t.Fatalf("unexpected player %+v", got)
	}
}

func TestGetPlayerNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPlayer(context.Background(), "nobody")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetPlayerMigratesAndSelfHeals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Seed a raw v1 record underneath the typed API.
	legacy := []byte(`{"username":"old-timer","credits":140,"inventory":["rope-coil"],"schema_version":1}`)
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPlayers).Put([]byte("old-timer"), legacy)
	})
	if err != nil {
		t.Fatalf("seed legacy player: %v", err)
	}

	migrationsBefore := testutil.ToFloat64(metrics.MigrationsTotal.WithLabelValues("player"))

	got, err := store.GetPlayer(ctx, "old-timer")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.SchemaVersion != world.PlayerSchemaVersion {
		t.Fatalf("expected current version, got %d", got.SchemaVersion)
	}
	if got.OnHand != world.Decimal(140) {
		t.Fatalf("expected folded balance, got %+v", got.OnHand)
	}
	if got.ItemQuantity("rope-coil") != 1 {
		t.Fatalf("expected folded inventory, got %+v", got.Stacks)
	}

	// The migrated form must be persisted: the raw bytes should no longer
	// carry a v1 version tag.
	var raw []byte
	_ = store.db.View(func(tx *bbolt.Tx) error {
		raw = append(raw, tx.Bucket(bucketPlayers).Get([]byte("old-timer"))...)
		return nil
	})
	if string(raw) == string(legacy) {
		t.Fatal("expected migrated record persisted back")
	}

	// The self-heal is counted and leaves a telemetry trail.
	if got := testutil.ToFloat64(metrics.MigrationsTotal.WithLabelValues("player")) - migrationsBefore; got != 1 {
		t.Fatalf("expected one migration counted, got %v", got)
	}
	found := false
	_ = store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTelemetry).ForEach(func(_, v []byte) error {
			var event storage.TelemetryEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			if event.Kind == telemetry.KindMigration && event.Fields["key"] == "old-timer" {
				found = true
			}
			return nil
		})
	})
	if !found {
		t.Fatal("expected a migration telemetry event")
	}
}

func TestGetPlayerCorruptRecord(t *testing.T) {
	store := newTestStore(t)

	garbage := []byte(`{"username": "broken`)
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPlayers).Put([]byte("broken"), garbage)
	})
	if err != nil {
		t.Fatalf("seed corrupt player: %v", err)
	}

	corruptBefore := testutil.ToFloat64(metrics.CorruptRecordsTotal.WithLabelValues("player"))

	_, err = store.GetPlayer(context.Background(), "broken")
	var corrupt *storage.CorruptRecordError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptRecordError, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.CorruptRecordsTotal.WithLabelValues("player")) - corruptBefore; got != 1 {
		t.Fatalf("expected one corrupt record counted, got %v", got)
	}
	if string(corrupt.Raw) != string(garbage) {
		t.Fatalf("expected raw bytes preserved for repair, got %q", corrupt.Raw)
	}

	// The corrupt record must stay on disk untouched.
	var raw []byte
	_ = store.db.View(func(tx *bbolt.Tx) error {
		raw = append(raw, tx.Bucket(bucketPlayers).Get([]byte("broken"))...)
		return nil
	})
	if string(raw) != string(garbage) {
		t.Fatal("expected corrupt record left in place")
	}
}

func TestObjectOwnershipRekeying(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	object := world.NewWorldObject("iron-sword", "Iron Sword", "A blade.", testTime())
	if err := store.PutObject(ctx, object); err != nil {
		t.Fatalf("put object: %v", err)
	}

	object.Owner = world.PlayerOwner("alice")
	if err := store.PutObject(ctx, object); err != nil {
		t.Fatalf("re-own object: %v", err)
	}

	got, err := store.GetObject(ctx, "iron-sword")
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if got.Owner.Kind != world.OwnerPlayer || got.Owner.Username != "alice" {
		t.Fatalf("unexpected owner %+v", got.Owner)
	}

	// The world-scoped key must be gone; only the player-scoped one remains.
	count := 0
	_ = store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).ForEach(func(k, _ []byte) error {
			count++
			return nil
		})
	})
	if count != 1 {
		t.Fatalf("expected exactly one stored copy, got %d", count)
	}
}

func TestLedgerAppendAssignsSequence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-1", From: "alice", To: "bob",
		Amount: world.Decimal(10), Reason: world.ReasonTransfer,
		Status: world.TxnCommitted, Timestamp: testTime(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-2", From: "bob", To: "alice",
		Amount: world.Decimal(5), Reason: world.ReasonTransfer,
		Status: world.TxnCommitted, Timestamp: testTime(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected monotonic sequences, got %d then %d", first.Seq, second.Seq)
	}

	if _, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-1", From: "alice", To: "bob",
		Amount: world.Decimal(10), Reason: world.ReasonTransfer,
		Status: world.TxnCommitted, Timestamp: testTime(),
	}); err == nil {
		t.Fatal("expected duplicate id rejected")
	}
}

func TestPlayerEntriesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := store.AppendEntry(ctx, world.TransactionRecord{
			ID: fmt.Sprintf("txn-%d", i), From: "alice", To: "bob",
			Amount: world.Decimal(int64(i)), Reason: world.ReasonTransfer,
			Status: world.TxnCommitted, Timestamp: testTime(),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// An unrelated entry must not leak into alice's history.
	if _, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-other", From: "carol", To: "dave",
		Amount: world.Decimal(1), Reason: world.ReasonTransfer,
		Status: world.TxnCommitted, Timestamp: testTime(),
	}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	page, err := store.PlayerEntries(ctx, "alice", 0, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "txn-5" || page[1].ID != "txn-4" {
		t.Fatalf("unexpected first page %+v", page)
	}

	page, err = store.PlayerEntries(ctx, "alice", 1, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "txn-3" || page[1].ID != "txn-2" {
		t.Fatalf("unexpected second page %+v", page)
	}

	page, err = store.PlayerEntries(ctx, "alice", 2, 2)
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "txn-1" {
		t.Fatalf("unexpected last page %+v", page)
	}
}

func TestBankEntriesIndexUnderBasePlayer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-dep", From: "alice", To: "alice" + world.BankVaultSuffix,
		Amount: world.Decimal(100), Reason: world.ReasonDeposit,
		Status: world.TxnCommitted, Timestamp: testTime(),
	}); err != nil {
		t.Fatalf("append deposit: %v", err)
	}

	page, err := store.PlayerEntries(ctx, "alice", 0, 10)
	if err != nil {
		t.Fatalf("player entries: %v", err)
	}
	if len(page) != 1 || page[0].ID != "txn-dep" {
		t.Fatalf("expected deposit indexed once under alice, got %+v", page)
	}
}

func TestPendingEntriesTracking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-p", From: "alice", To: "bob",
		Amount: world.Decimal(10), Reason: world.ReasonTransfer,
		Status: world.TxnPending, Timestamp: testTime(),
	})
	if err != nil {
		t.Fatalf("append pending: %v", err)
	}

	pending, err := store.PendingEntries(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "txn-p" {
		t.Fatalf("expected one pending entry, got %+v", pending)
	}

	entry.Status = world.TxnCommitted
	if err := store.UpdateEntry(ctx, entry); err != nil {
		t.Fatalf("commit entry: %v", err)
	}

	pending, err = store.PendingEntries(ctx)
	if err != nil {
		t.Fatalf("pending after commit: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries, got %+v", pending)
	}
}

func TestParkedEntriesTracking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID: "txn-stuck", From: "ghost", To: "alice",
		Amount: world.Decimal(10), Reason: world.ReasonTransfer,
		Status: world.TxnPending, Timestamp: testTime(),
	})
	if err != nil {
		t.Fatalf("append pending: %v", err)
	}

	entry.Status = world.TxnParked
	if err := store.UpdateEntry(ctx, entry); err != nil {
		t.Fatalf("park entry: %v", err)
	}

	// Parking moves the entry from the pending index to the parked one.
	pending, err := store.PendingEntries(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries, got %+v", pending)
	}
	parked, err := store.ParkedEntries(ctx)
	if err != nil {
		t.Fatalf("parked: %v", err)
	}
	if len(parked) != 1 || parked[0].ID != "txn-stuck" {
		t.Fatalf("expected one parked entry, got %+v", parked)
	}

	// Resolving the entry clears the parked index too.
	entry.Status = world.TxnCommitted
	if err := store.UpdateEntry(ctx, entry); err != nil {
		t.Fatalf("commit entry: %v", err)
	}
	parked, err = store.ParkedEntries(ctx)
	if err != nil {
		t.Fatalf("parked after commit: %v", err)
	}
	if len(parked) != 0 {
		t.Fatalf("expected no parked entries, got %+v", parked)
	}
}

func TestTradeActiveIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := world.NewTradeSession("t1", "alice", "bob", testTime(), 5*time.Minute)
	if err := store.PutTrade(ctx, session); err != nil {
		t.Fatalf("put trade: %v", err)
	}

	got, err := store.ActiveTradeFor(ctx, "alice")
	if err != nil {
		t.Fatalf("active trade: %v", err)
	}
	if got.ID != "t1" {
		t.Fatalf("unexpected session %+v", got)
	}

	// Closing the session frees both players for new trades.
	session.State = world.TradeCancelled
	if err := store.PutTrade(ctx, session); err != nil {
		t.Fatalf("close trade: %v", err)
	}
	if _, err := store.ActiveTradeFor(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected index cleared, got %v", err)
	}
	if _, err := store.ActiveTradeFor(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected index cleared for bob, got %v", err)
	}

	// The closed session itself is still readable.
	if _, err := store.GetTrade(ctx, "t1"); err != nil {
		t.Fatalf("get closed trade: %v", err)
	}
}

func TestTelemetryAppendStampsTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendTelemetryEvent(ctx, storage.TelemetryEvent{
		Kind:    "recovery",
		Message: "pending transactions replayed",
	}); err != nil {
		t.Fatalf("append telemetry: %v", err)
	}

	count := 0
	_ = store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTelemetry).ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	})
	if count != 1 {
		t.Fatalf("expected one telemetry row, got %d", count)
	}
}
