package economy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/meshmush/internal/storage"
	bboltstore "github.com/louisbranch/meshmush/internal/storage/bbolt"
	"github.com/louisbranch/meshmush/internal/world"
	"github.com/louisbranch/meshmush/internal/world/migrate"
)

func newTestEngine(t *testing.T) (*Engine, storage.Store) {
	t.Helper()
	store, err := bboltstore.Open(filepath.Join(t.TempDir(), "world.db"), migrate.DefaultRegistry())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	engine := NewEngine(store)
	engine.clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	next := 0
	engine.idGenerator = func() (string, error) {
		next++
		return fmt.Sprintf("txn-%04d", next), nil
	}
	return engine, store
}

func seedPlayer(t *testing.T, store storage.Store, username string, onHand world.CurrencyAmount) world.PlayerRecord {
	t.Helper()
	player := world.NewPlayer(username, username, "town-square", time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))
	player.OnHand = onHand
	if err := store.PutPlayer(context.Background(), player); err != nil {
		t.Fatalf("seed player %s: %v", username, err)
	}
	return player
}

func getPlayer(t *testing.T, store storage.Store, username string) world.PlayerRecord {
	t.Helper()
	player, err := store.GetPlayer(context.Background(), username)
	if err != nil {
		t.Fatalf("get player %s: %v", username, err)
	}
	return player
}

func TestTransferCurrency(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(500))
	seedPlayer(t, store, "bob", world.Decimal(100))

	rec, err := engine.TransferCurrency(ctx, "alice", "bob", world.Decimal(50), world.ReasonTransfer)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if rec.Status != world.TxnCommitted {
		t.Fatalf("expected committed entry, got %s", rec.Status)
	}
	if rec.From != "alice" || rec.To != "bob" || rec.Amount != world.Decimal(50) {
		t.Fatalf("unexpected entry %+v", rec)
	}

	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(450) {
		t.Fatalf("alice balance = %+v", got)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(150) {
		t.Fatalf("bob balance = %+v", got)
	}

	entries, err := engine.PlayerTransactions(ctx, "alice", 0, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != rec.ID {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestTransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(30))
	seedPlayer(t, store, "bob", world.Decimal(0))

	_, err := engine.TransferCurrency(ctx, "alice", "bob", world.Decimal(50), world.ReasonTransfer)
	if !errors.Is(err, world.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// A rejected transfer must not touch balances or the ledger.
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(30) {
		t.Fatalf("alice balance moved: %+v", got)
	}
	entries, err := engine.PlayerTransactions(ctx, "alice", 0, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %+v", entries)
	}
}

func TestTransferRejectsSelfAndNonPositive(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(100))

	if _, err := engine.TransferCurrency(ctx, "alice", "Alice", world.Decimal(10), world.ReasonTransfer); !errors.Is(err, ErrSameParty) {
		t.Fatalf("expected same party error, got %v", err)
	}
	if _, err := engine.TransferCurrency(ctx, "alice", "bob", world.Decimal(0), world.ReasonTransfer); !errors.Is(err, world.ErrNonPositiveAmount) {
		t.Fatalf("expected non-positive error, got %v", err)
	}
}

func TestRollbackTransfer(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(500))
	seedPlayer(t, store, "bob", world.Decimal(100))

	original, err := engine.TransferCurrency(ctx, "alice", "bob", world.Decimal(50), world.ReasonTransfer)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	reversal, err := engine.RollbackTransaction(ctx, original.ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if reversal.From != "bob" || reversal.To != "alice" {
		t.Fatalf("expected swapped parties, got %+v", reversal)
	}
	if reversal.Reverses != original.ID || reversal.Reason != world.ReasonRollback {
		t.Fatalf("unexpected reversal %+v", reversal)
	}

	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(500) {
		t.Fatalf("alice balance not restored: %+v", got)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(100) {
		t.Fatalf("bob balance not restored: %+v", got)
	}

	// The original entry survives, flagged as reversed.
	stored, err := store.GetEntry(ctx, original.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !stored.Reversed {
		t.Fatal("expected original marked reversed")
	}

	if _, err := engine.RollbackTransaction(ctx, original.ID); !errors.Is(err, ErrAlreadyReversed) {
		t.Fatalf("expected already reversed, got %v", err)
	}
	if _, err := engine.RollbackTransaction(ctx, "no-such-txn"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRollbackBlockedByRecipientSpending(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(100))
	seedPlayer(t, store, "bob", world.Decimal(0))

	original, err := engine.TransferCurrency(ctx, "alice", "bob", world.Decimal(100), world.ReasonTransfer)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := engine.DeductCurrency(ctx, "bob", world.Decimal(80), world.ReasonAdmin); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	// Bob no longer holds the full amount, so the reversal cannot apply.
	if _, err := engine.RollbackTransaction(ctx, original.ID); !errors.Is(err, world.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(20) {
		t.Fatalf("bob balance moved: %+v", got)
	}
}

func TestBankDepositAndWithdraw(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(500))

	dep, err := engine.BankDeposit(ctx, "alice", world.Decimal(200))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if dep.To != "alice"+world.BankVaultSuffix || dep.Reason != world.ReasonDeposit {
		t.Fatalf("unexpected deposit entry %+v", dep)
	}

	alice := getPlayer(t, store, "alice")
	if alice.OnHand != world.Decimal(300) || alice.Banked != world.Decimal(200) {
		t.Fatalf("unexpected balances %+v / %+v", alice.OnHand, alice.Banked)
	}

	if _, err := engine.BankWithdraw(ctx, "alice", world.Decimal(50)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	alice = getPlayer(t, store, "alice")
	if alice.OnHand != world.Decimal(350) || alice.Banked != world.Decimal(150) {
		t.Fatalf("unexpected balances %+v / %+v", alice.OnHand, alice.Banked)
	}

	if _, err := engine.BankWithdraw(ctx, "alice", world.Decimal(9999)); !errors.Is(err, world.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestTransferItem(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	alice := seedPlayer(t, store, "alice", world.Decimal(0))
	alice.AddItem("rope-coil", 3)
	if err := store.PutPlayer(ctx, alice); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	seedPlayer(t, store, "bob", world.Decimal(0))

	rope := world.NewWorldObject("rope-coil", "Rope Coil", "Fifty feet of rope.", engine.clock())
	if err := store.PutObject(ctx, rope); err != nil {
		t.Fatalf("seed object: %v", err)
	}
	anvil := world.NewWorldObject("anvil", "Anvil", "Far too heavy.", engine.clock())
	anvil.Takeable = false
	if err := store.PutObject(ctx, anvil); err != nil {
		t.Fatalf("seed anvil: %v", err)
	}

	rec, err := engine.TransferItem(ctx, "alice", "bob", "rope-coil", 2, world.ReasonTransfer)
	if err != nil {
		t.Fatalf("transfer item: %v", err)
	}
	if rec.ObjectID != "rope-coil" || rec.Quantity != 2 {
		t.Fatalf("unexpected entry %+v", rec)
	}
	if got := getPlayer(t, store, "alice").ItemQuantity("rope-coil"); got != 1 {
		t.Fatalf("alice holds %d", got)
	}
	if got := getPlayer(t, store, "bob").ItemQuantity("rope-coil"); got != 2 {
		t.Fatalf("bob holds %d", got)
	}

	if _, err := engine.TransferItem(ctx, "alice", "bob", "rope-coil", 5, world.ReasonTransfer); !errors.Is(err, ErrInsufficientItems) {
		t.Fatalf("expected insufficient items, got %v", err)
	}
	if _, err := engine.TransferItem(ctx, "alice", "bob", "anvil", 1, world.ReasonTransfer); !errors.Is(err, ErrNotTakeable) {
		t.Fatalf("expected not takeable, got %v", err)
	}
}

func TestApplyAction(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(100))
	sword := world.NewWorldObject("iron-sword", "Iron Sword", "A blade.", engine.clock())
	if err := store.PutObject(ctx, sword); err != nil {
		t.Fatalf("seed object: %v", err)
	}

	rec, err := engine.ApplyAction(ctx, "alice", GiveCurrency{Amount: world.Decimal(25)})
	if err != nil {
		t.Fatalf("give currency: %v", err)
	}
	if rec.Reason != world.ReasonQuest {
		t.Fatalf("expected quest reason, got %s", rec.Reason)
	}
	if _, err := engine.ApplyAction(ctx, "alice", GiveItem{ObjectID: "iron-sword", Quantity: 1}); err != nil {
		t.Fatalf("give item: %v", err)
	}
	if _, err := engine.ApplyAction(ctx, "alice", TakeCurrency{Amount: world.Decimal(5)}); err != nil {
		t.Fatalf("take currency: %v", err)
	}

	alice := getPlayer(t, store, "alice")
	if alice.OnHand != world.Decimal(120) {
		t.Fatalf("unexpected balance %+v", alice.OnHand)
	}
	if alice.ItemQuantity("iron-sword") != 1 {
		t.Fatalf("expected sword granted, got %+v", alice.Stacks)
	}
}

func TestRecoverReplaysPendingOnce(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(500))
	seedPlayer(t, store, "bob", world.Decimal(100))

	// Simulate a crash after the intent was appended but before any
	// mutation was applied.
	_, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID:        "txn-crashed",
		Timestamp: engine.clock(),
		From:      "alice",
		To:        "bob",
		Amount:    world.Decimal(40),
		Reason:    world.ReasonTransfer,
		Status:    world.TxnPending,
	})
	if err != nil {
		t.Fatalf("seed pending entry: %v", err)
	}

	replayed, parked, err := engine.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if replayed != 1 || parked != 0 {
		t.Fatalf("expected 1 replayed and 0 parked, got %d and %d", replayed, parked)
	}
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(460) {
		t.Fatalf("alice balance = %+v", got)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(140) {
		t.Fatalf("bob balance = %+v", got)
	}

	// Replaying again must be a no-op: the entry is committed and the
	// watermark guards the balances.
	replayed, _, err = engine.Recover(ctx)
	if err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if replayed != 0 {
		t.Fatalf("expected nothing to replay, got %d", replayed)
	}
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(460) {
		t.Fatalf("alice balance double-applied: %+v", got)
	}
}

func TestRecoverSkipsPartiallyAppliedParty(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	alice := seedPlayer(t, store, "alice", world.Decimal(460))
	seedPlayer(t, store, "bob", world.Decimal(100))

	// Crash happened after alice's debit was written. Her watermark
	// already covers the entry; only bob's credit remains.
	entry, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID:        "txn-half",
		Timestamp: engine.clock(),
		From:      "alice",
		To:        "bob",
		Amount:    world.Decimal(40),
		Reason:    world.ReasonTransfer,
		Status:    world.TxnPending,
	})
	if err != nil {
		t.Fatalf("seed pending entry: %v", err)
	}
	alice.AppliedSeq = entry.Seq
	if err := store.PutPlayer(ctx, alice); err != nil {
		t.Fatalf("set watermark: %v", err)
	}

	if _, _, err := engine.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(460) {
		t.Fatalf("alice debited twice: %+v", got)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(140) {
		t.Fatalf("bob credit missing: %+v", got)
	}
}

// flakyStore fails a limited number of PutPlayer writes for one player,
// standing in for a storage fault in the middle of applying an entry.
type flakyStore struct {
	storage.Store
	username string
	failures int
}

func (s *flakyStore) PutPlayer(ctx context.Context, player world.PlayerRecord) error {
	if player.Username == s.username && s.failures > 0 {
		s.failures--
		return errors.New("write failed")
	}
	return s.Store.PutPlayer(ctx, player)
}

func TestRecoverAppliesCreditOutrunByLaterEntry(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(500))
	seedPlayer(t, store, "bob", world.Decimal(100))

	// A transfer whose credit write fails leaves the entry pending with
	// only alice's debit applied.
	flaky := &flakyStore{Store: store, username: "bob", failures: 1}
	engine.store = flaky
	if _, err := engine.TransferCurrency(ctx, "alice", "bob", world.Decimal(40), world.ReasonTransfer); err == nil {
		t.Fatal("expected transfer to fail on bob's write")
	}
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(460) {
		t.Fatalf("alice debit missing: %+v", got)
	}

	// A later grant lands on bob and advances his watermark past the
	// pending credit. Replay must still deliver it.
	if _, err := engine.GrantCurrency(ctx, "bob", world.Decimal(10), world.ReasonQuest); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(110) {
		t.Fatalf("grant not applied: %+v", got)
	}

	replayed, parked, err := engine.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if replayed != 1 || parked != 0 {
		t.Fatalf("expected 1 replayed and 0 parked, got %d and %d", replayed, parked)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(150) {
		t.Fatalf("bob credit lost: %+v", got)
	}
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(460) {
		t.Fatalf("alice debited twice: %+v", got)
	}

	// The replay cleared the missed sequence; another pass changes nothing.
	if _, _, err := engine.Recover(ctx); err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if got := getPlayer(t, store, "bob").OnHand; got != world.Decimal(150) {
		t.Fatalf("credit double-applied: %+v", got)
	}
	entry, err := store.GetEntry(ctx, "txn-0001")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != world.TxnCommitted {
		t.Fatalf("expected replayed entry committed, got %s", entry.Status)
	}
}

func TestRecoverParksUnreplayableIntent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedPlayer(t, store, "alice", world.Decimal(100))

	// An intent naming a player that no longer exists can never replay.
	if _, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID:        "txn-orphan",
		Timestamp: engine.clock(),
		From:      "ghost",
		To:        "alice",
		Amount:    world.Decimal(25),
		Reason:    world.ReasonTransfer,
		Status:    world.TxnPending,
	}); err != nil {
		t.Fatalf("seed orphan entry: %v", err)
	}
	if _, err := store.AppendEntry(ctx, world.TransactionRecord{
		ID:        "txn-sound",
		Timestamp: engine.clock(),
		To:        "alice",
		Amount:    world.Decimal(40),
		Reason:    world.ReasonSystemGrant,
		Status:    world.TxnPending,
	}); err != nil {
		t.Fatalf("seed sound entry: %v", err)
	}

	replayed, parked, err := engine.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if replayed != 1 || parked != 1 {
		t.Fatalf("expected 1 replayed and 1 parked, got %d and %d", replayed, parked)
	}
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(140) {
		t.Fatalf("sound entry not applied past the parked one: %+v", got)
	}

	parkedEntries, err := store.ParkedEntries(ctx)
	if err != nil {
		t.Fatalf("list parked: %v", err)
	}
	if len(parkedEntries) != 1 || parkedEntries[0].ID != "txn-orphan" {
		t.Fatalf("unexpected parked entries %+v", parkedEntries)
	}
	if parkedEntries[0].Status != world.TxnParked {
		t.Fatalf("expected parked status, got %s", parkedEntries[0].Status)
	}
	pending, err := store.PendingEntries(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries, got %+v", pending)
	}

	// Parked entries are not retried on the next pass.
	replayed, parked, err = engine.Recover(ctx)
	if err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if replayed != 0 || parked != 0 {
		t.Fatalf("expected idle recovery, got %d replayed and %d parked", replayed, parked)
	}
}

func TestConvertWorld(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	alice := seedPlayer(t, store, "alice", world.Decimal(500))
	alice.Banked = world.Decimal(1000)
	if err := store.PutPlayer(ctx, alice); err != nil {
		t.Fatalf("seed banked: %v", err)
	}

	shop := world.NewShop("general-store", "General Store", "town-square", "system", engine.clock())
	shop.Reserve = world.Decimal(10000)
	if err := store.PutShop(ctx, shop); err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	sword := world.NewWorldObject("iron-sword", "Iron Sword", "A blade.", engine.clock())
	sword.CurrencyValue = world.Decimal(100)
	if err := store.PutObject(ctx, sword); err != nil {
		t.Fatalf("seed object: %v", err)
	}

	report, err := engine.ConvertWorld(ctx, world.CurrencyMultiTier, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !report.DryRun || report.Players != 1 || report.Shops != 1 || report.Objects != 1 {
		t.Fatalf("unexpected dry run report %+v", report)
	}
	// Dry run must not write.
	if got := getPlayer(t, store, "alice").OnHand; got != world.Decimal(500) {
		t.Fatalf("dry run mutated balance: %+v", got)
	}

	report, err = engine.ConvertWorld(ctx, world.CurrencyMultiTier, false)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if report.Players != 1 || report.Shops != 1 || report.Objects != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	alice = getPlayer(t, store, "alice")
	if alice.OnHand != world.MultiTier(500) || alice.Banked != world.MultiTier(1000) {
		t.Fatalf("unexpected converted balances %+v / %+v", alice.OnHand, alice.Banked)
	}

	// Converting an already-converted world touches nothing.
	report, err = engine.ConvertWorld(ctx, world.CurrencyMultiTier, false)
	if err != nil {
		t.Fatalf("repeat convert: %v", err)
	}
	if report.Players != 0 || report.Shops != 0 || report.Objects != 0 {
		t.Fatalf("expected idempotent conversion, got %+v", report)
	}
}
