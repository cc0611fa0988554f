// Package economy implements the atomic transaction engine for the world
// store. Every balance or inventory mutation flows through a ledger-first
// protocol: the engine appends a pending ledger entry, applies each party's
// mutation as a single durable record write, then marks the entry committed.
// A per-record watermark of the highest applied ledger sequence makes the
// protocol idempotent, so crash recovery can replay pending entries without
// double-applying them.
package economy

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/telemetry"
)

var (
	// ErrSameParty indicates a transfer between a party and itself.
	ErrSameParty = errors.New("transfer parties must differ")
	// ErrNotTakeable indicates an object that cannot change hands.
	ErrNotTakeable = errors.New("object cannot change hands")
	// ErrInsufficientItems indicates a party does not hold enough of an item.
	ErrInsufficientItems = errors.New("insufficient items")
	// ErrInsufficientStock indicates a shop cannot cover a purchase quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNotStocked indicates a shop does not trade in the requested object.
	ErrNotStocked = errors.New("shop does not stock this item")
	// ErrTransactionNotFound indicates an unknown ledger entry id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadyReversed indicates a ledger entry that was already rolled
	// back.
	ErrAlreadyReversed = errors.New("transaction already reversed")
	// ErrNotCommitted indicates a rollback attempt on a pending entry.
	ErrNotCommitted = errors.New("transaction is not committed")
)

const (
	defaultTransactionsPageSize = 20
	maxTransactionsPageSize     = 100
)

// shopPartyPrefix marks a shop identity in ledger party fields.
const shopPartyPrefix = "shop:"

// Engine executes economic transactions against the world store.
type Engine struct {
	store       storage.Store
	clock       func() time.Time
	idGenerator func() (string, error)
	emitter     *telemetry.Emitter
	locks       *keyedLocks
	tracer      trace.Tracer
}

// NewEngine creates an engine with default dependencies.
func NewEngine(store storage.Store) *Engine {
	return &Engine{
		store: store,
		clock: time.Now,
		idGenerator: func() (string, error) {
			return uuid.NewString(), nil
		},
		locks:  newKeyedLocks(),
		tracer: otel.Tracer("meshmush/economy"),
	}
}

// WithTelemetry attaches a telemetry emitter and returns the engine.
func (e *Engine) WithTelemetry(emitter *telemetry.Emitter) *Engine {
	e.emitter = emitter
	return e
}

// normalizeName canonicalizes a player name the way the store keys it.
func normalizeName(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// shopParty returns the ledger party identity for a shop.
func shopParty(shopID string) string {
	return shopPartyPrefix + shopID
}

// playerLockKey and shopLockKey namespace lock keys so a player named
// "shop:x" can never alias a shop.
func playerLockKey(username string) string { return "player:" + normalizeName(username) }
func shopLockKey(shopID string) string     { return "shop:" + shopID }
