// Package portfolio implements C-PORT: the agent's holdings, cash
// balance, and average-cost-basis accounting (spec.md §4.6).
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
)

// ActionKind discriminates the primitive trading actions C-EXEC can
// instruct C-PORT to record (spec.md §3, TradingAction).
type ActionKind string

const (
	ActionHold          ActionKind = "hold"
	ActionAddPosition   ActionKind = "add_position"
	ActionReducePosition ActionKind = "reduce_position"
	ActionSell          ActionKind = "sell"
	ActionSwitch        ActionKind = "switch"
	ActionRebalance     ActionKind = "rebalance"
)

// TradingAction is the tagged union of primitive portfolio actions the
// strategy layer can request. Only the fields relevant to Kind are set.
type TradingAction struct {
	Kind ActionKind

	Token  dex.TokenAccount // AddPosition, ReducePosition, Sell
	Weight decimal.Decimal  // AddPosition, ReducePosition target weight
	Target decimal.Decimal  // Sell target fraction of holdings to liquidate

	From dex.TokenAccount // Switch
	To   dex.TokenAccount // Switch

	TargetWeights map[dex.TokenAccount]decimal.Decimal // Rebalance
}

// IsValid reports whether the action's required fields are populated for
// its Kind (mirrors the teacher's Trade.Validate() normalize-and-check
// idiom).
func (a TradingAction) IsValid() error {
	switch a.Kind {
	case ActionHold:
		return nil
	case ActionAddPosition, ActionReducePosition:
		if a.Token == "" {
			return fmt.Errorf("%s requires a token", a.Kind)
		}
		if a.Weight.IsNegative() {
			return fmt.Errorf("%s weight must be non-negative", a.Kind)
		}
		return nil
	case ActionSell:
		if a.Token == "" {
			return fmt.Errorf("sell requires a token")
		}
		if a.Target.IsNegative() || a.Target.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("sell target must be in [0, 1]")
		}
		return nil
	case ActionSwitch:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("switch requires from and to tokens")
		}
		if a.From == a.To {
			return fmt.Errorf("switch from and to must differ")
		}
		return nil
	case ActionRebalance:
		if len(a.TargetWeights) == 0 {
			return fmt.Errorf("rebalance requires target weights")
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind: %s", a.Kind)
	}
}

// Holding is one token's smallest-unit balance and average cost basis in
// yoctoNEAR (spec.md §3).
type Holding struct {
	Token         dex.TokenAccount
	Balance       decimal.Decimal // smallest units of Token
	CostBasisYocto decimal.Decimal
}

// TradeRecord is a persisted leg of an executed swap (spec.md §3). One row
// is written per leg: ActionTag names the primitive action the leg
// belongs to ("add_position", "reduce_position", "sell", "harvest", ...),
// Token/Amount describe the token acquired or disposed of in that leg,
// and PriceNear is that leg's value denominated in whole NEAR.
type TradeRecord struct {
	ID            int64
	ActionTag     string
	Token         dex.TokenAccount
	Amount        decimal.Decimal // smallest units of Token
	PriceNear     decimal.Decimal
	RealizedPnL   *decimal.Decimal // yoctoNEAR, set only on a sell-down leg
	TxHash        string
	ExecutedAt    time.Time
}

// Snapshot is a persisted end-of-run portfolio valuation (spec.md §3).
type Snapshot struct {
	Day            string // YYYY-MM-DD
	CashYocto      decimal.Decimal
	TotalValueNear decimal.Decimal
	Holdings       map[dex.TokenAccount]decimal.Decimal
}
