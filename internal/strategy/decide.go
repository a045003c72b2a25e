package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/portfolio"
)

// Decision is the outcome of one strategy run: either Hold or a single
// Rebalance action (spec.md §4.7 steps 2-3).
type Decision struct {
	Action        portfolio.TradingAction
	TargetWeights map[dex.TokenAccount]float64
	L1Distance    float64
}

// Decide blends signals into target weights and compares them against
// the portfolio's current weights. currentWeights and the returned
// TargetWeights never include the quote token, since the executor holds
// its quote-token exposure as cash (spec.md §4.7 step 1, §4.6 Rebalance).
func Decide(signals []TokenSignal, confidence float64, currentWeights map[dex.TokenAccount]float64, rebalanceThreshold float64) Decision {
	target := BlendWeights(signals, confidence)
	dist := L1Distance(currentWeights, target)

	if dist < rebalanceThreshold {
		return Decision{
			Action:        portfolio.TradingAction{Kind: portfolio.ActionHold},
			TargetWeights: target,
			L1Distance:    dist,
		}
	}

	weights := make(map[dex.TokenAccount]decimal.Decimal, len(target))
	for token, w := range target {
		weights[token] = decimal.NewFromFloat(w)
	}

	return Decision{
		Action: portfolio.TradingAction{
			Kind:          portfolio.ActionRebalance,
			TargetWeights: weights,
		},
		TargetWeights: target,
		L1Distance:    dist,
	}
}

// CurrentWeights computes each non-quote holding's share of the summed
// non-quote values in valuesNear (cash is not part of that total), for use
// as Decide's currentWeights input.
func CurrentWeights(state *portfolio.State, valuesNear map[dex.TokenAccount]decimal.Decimal, quoteToken dex.TokenAccount) map[dex.TokenAccount]float64 {
	total := decimal.Zero
	for token, v := range valuesNear {
		if token == quoteToken {
			continue
		}
		total = total.Add(v)
	}

	out := make(map[dex.TokenAccount]float64, len(valuesNear))
	if total.IsZero() {
		return out
	}
	for token, v := range valuesNear {
		if token == quoteToken {
			continue
		}
		w, _ := v.Div(total).Float64()
		out[token] = w
	}
	return out
}
