package economy

import (
	"context"
	"fmt"

	"github.com/louisbranch/meshmush/internal/world"
)

// Action is one economic effect a dialogue node or scripted event can
// request against a player. The set is closed; every action maps onto a
// ledgered engine operation with the quest reason.
type Action interface {
	isAction()
}

// GiveCurrency grants an amount to the player.
type GiveCurrency struct {
	Amount world.CurrencyAmount
}

// TakeCurrency deducts an amount from the player.
type TakeCurrency struct {
	Amount world.CurrencyAmount
}

// GiveItem grants a quantity of an object to the player.
type GiveItem struct {
	ObjectID string
	Quantity uint32
}

// TakeItem removes a quantity of an object from the player.
type TakeItem struct {
	ObjectID string
	Quantity uint32
}

func (GiveCurrency) isAction() {}
func (TakeCurrency) isAction() {}
func (GiveItem) isAction()     {}
func (TakeItem) isAction()     {}

// ApplyAction executes one dialogue action against a player.
func (e *Engine) ApplyAction(ctx context.Context, username string, action Action) (world.TransactionRecord, error) {
	switch a := action.(type) {
	case GiveCurrency:
		return e.GrantCurrency(ctx, username, a.Amount, world.ReasonQuest)
	case TakeCurrency:
		return e.DeductCurrency(ctx, username, a.Amount, world.ReasonQuest)
	case GiveItem:
		return e.GrantItem(ctx, username, a.ObjectID, a.Quantity, world.ReasonQuest)
	case TakeItem:
		return e.TakeItem(ctx, username, a.ObjectID, a.Quantity, world.ReasonQuest)
	default:
		return world.TransactionRecord{}, fmt.Errorf("unknown action type %T", action)
	}
}
