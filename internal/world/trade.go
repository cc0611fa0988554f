package world

import "time"

// TradeState is the lifecycle of a two-party trade session.
type TradeState string

const (
	// TradeNegotiating means offers may still change.
	TradeNegotiating TradeState = "negotiating"
	// TradeReady means both parties accepted the current offer sets.
	TradeReady TradeState = "ready"
	// TradeCommitted, TradeCancelled, and TradeExpired are terminal.
	TradeCommitted TradeState = "committed"
	TradeCancelled TradeState = "cancelled"
	TradeExpired   TradeState = "expired"
)

// Terminal reports whether no further transitions are possible.
func (s TradeState) Terminal() bool {
	return s == TradeCommitted || s == TradeCancelled || s == TradeExpired
}

// TradeOffer is what one party has put on the table. Offers are declarative;
// nothing moves until commit.
type TradeOffer struct {
	Items    []ItemStack    `json:"items,omitempty"`
	Currency CurrencyAmount `json:"currency,omitzero"`
	Accepted bool           `json:"accepted"`
}

// Normalize folds duplicate item stacks so each object appears once, in
// first-mention order. Holdings checks must see totals per object, not
// whatever split the caller sent.
func (o *TradeOffer) Normalize() {
	if len(o.Items) < 2 {
		return
	}
	merged := make([]ItemStack, 0, len(o.Items))
	index := make(map[string]int, len(o.Items))
	for _, stack := range o.Items {
		if at, ok := index[stack.ObjectID]; ok {
			merged[at].Quantity += stack.Quantity
			continue
		}
		index[stack.ObjectID] = len(merged)
		merged = append(merged, stack)
	}
	o.Items = merged
}

// TradeSession is the ephemeral coordination state of one trade. It carries
// no schema version: sessions are short-lived and are deleted, never
// migrated.
type TradeSession struct {
	ID        string     `json:"id"`
	Initiator string     `json:"initiator"`
	Recipient string     `json:"recipient"`
	Offers    map[string]TradeOffer `json:"offers"`
	State     TradeState `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// NewTradeSession opens a negotiating session between two players.
func NewTradeSession(id, initiator, recipient string, now time.Time, timeout time.Duration) TradeSession {
	return TradeSession{
		ID:        id,
		Initiator: initiator,
		Recipient: recipient,
		Offers: map[string]TradeOffer{
			initiator: {},
			recipient: {},
		},
		State:     TradeNegotiating,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(timeout),
	}
}

// Participant reports whether the named player is part of the session.
func (s TradeSession) Participant(username string) bool {
	return username == s.Initiator || username == s.Recipient
}

// Counterparty returns the other participant.
func (s TradeSession) Counterparty(username string) string {
	if username == s.Initiator {
		return s.Recipient
	}
	return s.Initiator
}

// ExpiredAt reports whether the session has idled past its deadline.
func (s TradeSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// BothAccepted reports whether both parties accepted the current offers.
func (s TradeSession) BothAccepted() bool {
	for _, offer := range s.Offers {
		if !offer.Accepted {
			return false
		}
	}
	return len(s.Offers) == 2
}

// ClearAcceptance drops both accept flags; any offer change re-arms the
// negotiation.
func (s *TradeSession) ClearAcceptance() {
	for who, offer := range s.Offers {
		offer.Accepted = false
		s.Offers[who] = offer
	}
	if s.State == TradeReady {
		s.State = TradeNegotiating
	}
}
