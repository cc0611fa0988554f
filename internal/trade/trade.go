// Package trade coordinates two-party trade sessions. A session walks
// negotiating to ready to committed; cancellation and expiry are terminal.
// Sessions only describe intent: nothing moves until commit, when the
// economy engine revalidates both offers and executes the transfers.
package trade

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/meshmush/internal/economy"
	"github.com/louisbranch/meshmush/internal/metrics"
	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/telemetry"
	"github.com/louisbranch/meshmush/internal/world"
)

// DefaultSessionTimeout is how long a session may idle before the sweep
// expires it.
const DefaultSessionTimeout = 5 * time.Minute

var (
	// ErrTradeNotFound indicates an unknown session id.
	ErrTradeNotFound = errors.New("trade not found")
	// ErrNotParticipant indicates a player acting on someone else's trade.
	ErrNotParticipant = errors.New("player is not part of this trade")
	// ErrTradeClosed indicates a session in a terminal state.
	ErrTradeClosed = errors.New("trade is closed")
	// ErrTradeNotReady indicates a commit before both parties accepted.
	ErrTradeNotReady = errors.New("both parties must accept before commit")
	// ErrAlreadyTrading indicates a player who is already in a session.
	ErrAlreadyTrading = errors.New("player is already trading")
	// ErrSelfTrade indicates a trade opened against oneself.
	ErrSelfTrade = errors.New("cannot trade with yourself")
)

// Coordinator manages trade session state on top of the store and hands
// ready sessions to the economy engine for execution.
type Coordinator struct {
	store       storage.Store
	engine      *economy.Engine
	clock       func() time.Time
	idGenerator func() (string, error)
	timeout     time.Duration
	emitter     *telemetry.Emitter
	tracer      trace.Tracer
}

// NewCoordinator creates a coordinator with default dependencies.
func NewCoordinator(store storage.Store, engine *economy.Engine) *Coordinator {
	return &Coordinator{
		store:  store,
		engine: engine,
		clock:  time.Now,
		idGenerator: func() (string, error) {
			return uuid.NewString(), nil
		},
		timeout: DefaultSessionTimeout,
		tracer:  otel.Tracer("meshmush/trade"),
	}
}

// WithTimeout overrides the idle timeout and returns the coordinator.
func (c *Coordinator) WithTimeout(timeout time.Duration) *Coordinator {
	c.timeout = timeout
	return c
}

// WithTelemetry attaches a telemetry emitter and returns the coordinator.
func (c *Coordinator) WithTelemetry(emitter *telemetry.Emitter) *Coordinator {
	c.emitter = emitter
	return c
}

func normalizeName(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Open starts a negotiating session between two players. Each player may be
// in at most one live session at a time.
func (c *Coordinator) Open(ctx context.Context, initiator, recipient string) (world.TradeSession, error) {
	ctx, span := c.tracer.Start(ctx, "trade.Open")
	defer span.End()

	initiator, recipient = normalizeName(initiator), normalizeName(recipient)
	if initiator == recipient {
		return world.TradeSession{}, ErrSelfTrade
	}
	if _, err := c.store.GetPlayer(ctx, initiator); err != nil {
		return world.TradeSession{}, fmt.Errorf("initiator %s: %w", initiator, err)
	}
	if _, err := c.store.GetPlayer(ctx, recipient); err != nil {
		return world.TradeSession{}, fmt.Errorf("recipient %s: %w", recipient, err)
	}

	for _, who := range []string{initiator, recipient} {
		if _, err := c.store.ActiveTradeFor(ctx, who); err == nil {
			return world.TradeSession{}, fmt.Errorf("%s: %w", who, ErrAlreadyTrading)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return world.TradeSession{}, fmt.Errorf("check active trade for %s: %w", who, err)
		}
	}

	id, err := c.idGenerator()
	if err != nil {
		return world.TradeSession{}, fmt.Errorf("generate trade id: %w", err)
	}
	session := world.NewTradeSession(id, initiator, recipient, c.clock(), c.timeout)
	if err := c.store.PutTrade(ctx, session); err != nil {
		return world.TradeSession{}, fmt.Errorf("persist trade: %w", err)
	}
	return session, nil
}

// load fetches a session and checks the acting player may touch it.
func (c *Coordinator) load(ctx context.Context, tradeID, username string) (world.TradeSession, error) {
	session, err := c.store.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return world.TradeSession{}, ErrTradeNotFound
		}
		return world.TradeSession{}, fmt.Errorf("load trade %s: %w", tradeID, err)
	}
	if !session.Participant(normalizeName(username)) {
		return world.TradeSession{}, ErrNotParticipant
	}
	if session.State.Terminal() {
		return world.TradeSession{}, fmt.Errorf("trade %s is %s: %w", tradeID, session.State, ErrTradeClosed)
	}
	if session.ExpiredAt(c.clock()) {
		session.State = world.TradeExpired
		if err := c.store.PutTrade(ctx, session); err != nil {
			return world.TradeSession{}, fmt.Errorf("expire trade %s: %w", tradeID, err)
		}
		metrics.TradesTotal.WithLabelValues(string(world.TradeExpired)).Inc()
		return world.TradeSession{}, fmt.Errorf("trade %s expired: %w", tradeID, ErrTradeClosed)
	}
	return session, nil
}

// Offer replaces the player's side of the table. Any change drops both
// accept flags, so the counterparty must look again.
func (c *Coordinator) Offer(ctx context.Context, tradeID, username string, offer world.TradeOffer) (world.TradeSession, error) {
	ctx, span := c.tracer.Start(ctx, "trade.Offer")
	defer span.End()

	username = normalizeName(username)
	session, err := c.load(ctx, tradeID, username)
	if err != nil {
		return world.TradeSession{}, err
	}

	// Sanity-check the offer against current holdings so obviously bogus
	// offers fail fast. Commit revalidates regardless.
	player, err := c.store.GetPlayer(ctx, username)
	if err != nil {
		return world.TradeSession{}, fmt.Errorf("player %s: %w", username, err)
	}
	if offer.Currency.Units < 0 {
		return world.TradeSession{}, world.ErrNonPositiveAmount
	}
	if offer.Currency.IsPositive() && !player.OnHand.CanAfford(offer.Currency) {
		return world.TradeSession{}, world.ErrInsufficientFunds
	}
	for _, stack := range offer.Items {
		if stack.Quantity == 0 {
			return world.TradeSession{}, world.ErrNonPositiveAmount
		}
	}
	// Fold duplicate stacks so the holdings check sees the offered total
	// per object, and store the folded form.
	offer.Normalize()
	for _, stack := range offer.Items {
		if !player.HasItem(stack.ObjectID, stack.Quantity) {
			return world.TradeSession{}, fmt.Errorf("%s holds fewer than %d of %s: %w",
				username, stack.Quantity, stack.ObjectID, economy.ErrInsufficientItems)
		}
	}

	offer.Accepted = false
	session.Offers[username] = offer
	session.ClearAcceptance()
	if err := c.store.PutTrade(ctx, session); err != nil {
		return world.TradeSession{}, fmt.Errorf("persist trade: %w", err)
	}
	return session, nil
}

// WithdrawOffer clears the player's side of the table.
func (c *Coordinator) WithdrawOffer(ctx context.Context, tradeID, username string) (world.TradeSession, error) {
	return c.Offer(ctx, tradeID, username, world.TradeOffer{})
}

// Accept marks the player's approval of both current offers. When both
// parties have accepted, the session moves to ready.
func (c *Coordinator) Accept(ctx context.Context, tradeID, username string) (world.TradeSession, error) {
	ctx, span := c.tracer.Start(ctx, "trade.Accept")
	defer span.End()

	username = normalizeName(username)
	session, err := c.load(ctx, tradeID, username)
	if err != nil {
		return world.TradeSession{}, err
	}

	offer := session.Offers[username]
	offer.Accepted = true
	session.Offers[username] = offer
	if session.BothAccepted() {
		session.State = world.TradeReady
	}
	if err := c.store.PutTrade(ctx, session); err != nil {
		return world.TradeSession{}, fmt.Errorf("persist trade: %w", err)
	}
	return session, nil
}

// Cancel closes the session without moving anything. Either party may
// cancel at any point before commit.
func (c *Coordinator) Cancel(ctx context.Context, tradeID, username string) (world.TradeSession, error) {
	ctx, span := c.tracer.Start(ctx, "trade.Cancel")
	defer span.End()

	session, err := c.load(ctx, tradeID, normalizeName(username))
	if err != nil {
		return world.TradeSession{}, err
	}

	session.State = world.TradeCancelled
	if err := c.store.PutTrade(ctx, session); err != nil {
		return world.TradeSession{}, fmt.Errorf("persist trade: %w", err)
	}
	metrics.TradesTotal.WithLabelValues(string(world.TradeCancelled)).Inc()
	return session, nil
}

// Commit executes a ready session through the economy engine. When a side's
// offer no longer holds, nothing moves: the session falls back to
// negotiating with acceptances cleared and the error names the failing
// player.
func (c *Coordinator) Commit(ctx context.Context, tradeID, username string) (world.TradeSession, []world.TransactionRecord, error) {
	ctx, span := c.tracer.Start(ctx, "trade.Commit")
	defer span.End()

	session, err := c.load(ctx, tradeID, normalizeName(username))
	if err != nil {
		return world.TradeSession{}, nil, err
	}
	if session.State != world.TradeReady {
		return world.TradeSession{}, nil, ErrTradeNotReady
	}

	entries, err := c.engine.CommitTrade(ctx, session)
	if err != nil {
		var invalid *economy.TradeValidationError
		if errors.As(err, &invalid) {
			session.ClearAcceptance()
			if putErr := c.store.PutTrade(ctx, session); putErr != nil {
				return world.TradeSession{}, nil, fmt.Errorf("reopen trade %s: %w", tradeID, putErr)
			}
			return session, nil, err
		}
		return world.TradeSession{}, entries, err
	}

	session.State = world.TradeCommitted
	if err := c.store.PutTrade(ctx, session); err != nil {
		return world.TradeSession{}, entries, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	metrics.TradesTotal.WithLabelValues(string(world.TradeCommitted)).Inc()
	_ = c.emitter.Record(ctx, telemetry.KindTrade, "trade committed", map[string]string{
		"trade_id": session.ID,
		"entries":  strconv.Itoa(len(entries)),
	})
	return session, entries, nil
}

// ExpireStale sweeps every stored session: live sessions whose deadline
// passed are expired, and terminal ones are deleted so the trade bucket
// does not grow without bound. A closed session survives until the next
// sweep, long enough for a participant to see why their trade ended. It is
// meant to run periodically in the background.
func (c *Coordinator) ExpireStale(ctx context.Context) (int, error) {
	sessions, err := c.store.ListTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("list trades: %w", err)
	}

	expired := 0
	now := c.clock()
	for _, session := range sessions {
		if session.State.Terminal() {
			if err := c.store.DeleteTrade(ctx, session.ID); err != nil {
				return expired, fmt.Errorf("delete trade %s: %w", session.ID, err)
			}
			continue
		}
		if !session.ExpiredAt(now) {
			continue
		}
		session.State = world.TradeExpired
		if err := c.store.PutTrade(ctx, session); err != nil {
			return expired, fmt.Errorf("expire trade %s: %w", session.ID, err)
		}
		expired++
		metrics.TradesTotal.WithLabelValues(string(world.TradeExpired)).Inc()
	}
	return expired, nil
}
