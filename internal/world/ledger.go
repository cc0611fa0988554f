package world

import "time"

// TransactionReason classifies why a ledger entry exists.
type TransactionReason string

const (
	ReasonPurchase    TransactionReason = "purchase"
	ReasonSale        TransactionReason = "sale"
	ReasonQuest       TransactionReason = "quest"
	ReasonTrade       TransactionReason = "trade"
	ReasonDeposit     TransactionReason = "deposit"
	ReasonWithdraw    TransactionReason = "withdraw"
	ReasonTransfer    TransactionReason = "transfer"
	ReasonAdmin       TransactionReason = "admin"
	ReasonSystemGrant TransactionReason = "system_grant"
	ReasonRoomRent    TransactionReason = "room_rent"
	ReasonCombatLoot  TransactionReason = "combat_loot"
	ReasonRollback    TransactionReason = "rollback"
)

// TransactionStatus tracks the ledger-first commit protocol. An entry is
// written pending before any balance moves and marked committed after every
// party's mutation has been applied; recovery replays whatever is still
// pending. An entry recovery cannot replay is parked for operator
// attention instead of blocking startup.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCommitted TransactionStatus = "committed"
	TxnParked    TransactionStatus = "parked"
)

// BankVaultSuffix marks the vault side of a same-record bank movement in a
// ledger entry's party fields ("alice:bank").
const BankVaultSuffix = ":bank"

// TransactionRecord is one immutable ledger entry. Entries are only ever
// appended or flagged Reversed; history is never deleted.
type TransactionRecord struct {
	// Seq is the monotonic store key; newest-first pagination is a reverse
	// scan over it.
	Seq uint64 `json:"seq"`
	// ID is the stable idempotency key for the operation.
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// From and To name the parties. System-originated grants leave From
	// empty; deductions leave To empty. Bank movements use the
	// BankVaultSuffix form for the vault side.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Amount is set for currency movements; ObjectID and Quantity for item
	// movements. Shop purchase and sale entries carry both: the currency leg
	// flows From to To while the goods flow the opposite way, to the payer.
	Amount   CurrencyAmount `json:"amount,omitzero"`
	ObjectID string         `json:"object_id,omitempty"`
	Quantity uint32         `json:"quantity,omitempty"`

	Reason TransactionReason `json:"reason"`
	Status TransactionStatus `json:"status"`

	Reversed bool `json:"reversed"`
	// Reverses holds the ID of the entry this one undoes, when Reason is
	// ReasonRollback.
	Reverses string `json:"reverses,omitempty"`

	// TradeID groups the entries produced by one committed trade.
	TradeID string `json:"trade_id,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// LedgerSchemaVersion is the current on-disk shape of TransactionRecord.
const LedgerSchemaVersion = 1

// IsItem reports whether the entry records an item movement.
func (t TransactionRecord) IsItem() bool {
	return t.ObjectID != ""
}

// Involves reports whether the entry touches the named player, including
// that player's bank vault.
func (t TransactionRecord) Involves(username string) bool {
	return t.From == username || t.To == username ||
		t.From == username+BankVaultSuffix || t.To == username+BankVaultSuffix
}

// LedgerWatermark tracks which ledger entries have been applied to a
// record. AppliedSeq is the high-water mark; MissedSeqs lists sequences at
// or below it whose entries were still pending against this record when the
// mark advanced, so their eventual replay is not mistaken for a duplicate.
type LedgerWatermark struct {
	AppliedSeq uint64   `json:"applied_ledger_seq"`
	MissedSeqs []uint64 `json:"missed_ledger_seqs,omitempty"`
}

// SeqApplied reports whether the entry with the given sequence has already
// mutated this record.
func (w LedgerWatermark) SeqApplied(seq uint64) bool {
	if seq > w.AppliedSeq {
		return false
	}
	for _, missed := range w.MissedSeqs {
		if missed == seq {
			return false
		}
	}
	return true
}

// MarkApplied records that the entry with the given sequence has mutated
// this record. When the mark advances, missed carries the sequences of
// entries still pending against the record that the advance jumps over.
func (w *LedgerWatermark) MarkApplied(seq uint64, missed []uint64) {
	if seq > w.AppliedSeq {
		w.MissedSeqs = append(w.MissedSeqs, missed...)
		w.AppliedSeq = seq
		return
	}
	for i, m := range w.MissedSeqs {
		if m == seq {
			w.MissedSeqs = append(w.MissedSeqs[:i], w.MissedSeqs[i+1:]...)
			return
		}
	}
}
