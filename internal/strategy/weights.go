// Package strategy implements C-EXEC: blending a Sharpe-style optimizer
// with a risk-parity allocation into target portfolio weights, deciding
// whether to rebalance, and executing the resulting swaps (spec.md §4.7).
package strategy

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/pkg/formulas"
)

// TokenSignal is one candidate token's predicted return and recent price
// history, used to derive both the Sharpe-style and risk-parity weights.
type TokenSignal struct {
	Token            dex.TokenAccount
	ExpectedReturn   float64   // predicted fractional price change over the forecast horizon
	RecentRatesNear  []float64 // recent rate_calc_near observations, oldest first
}

// sharpeWeights scores each signal's recent rate history plus its
// predicted next return by formulas.CalculateSharpeRatio (no
// annualization, since C-RATE's sampling interval isn't a fixed trading
// day), floors negative scores at zero so the executor never shorts, and
// normalizes to sum to 1. If every score is zero (non-positive, or too
// short a history), normalize returns an equal-weight split.
func sharpeWeights(signals []TokenSignal) map[dex.TokenAccount]float64 {
	scores := make(map[dex.TokenAccount]float64, len(signals))
	total := 0.0
	for _, s := range signals {
		returns := append(formulas.CalculateReturns(s.RecentRatesNear), s.ExpectedReturn)
		score := 0.0
		if sharpe := formulas.CalculateSharpeRatio(returns, 0, 1); sharpe != nil {
			score = *sharpe
		}
		if score < 0 {
			score = 0
		}
		score *= rsiDamper(s.RecentRatesNear)
		scores[s.Token] = score
		total += score
	}
	return normalize(scores, total)
}

// rsiDamper scales a Sharpe score down when a token's 14-period RSI shows
// it overbought and up when oversold, a standard mean-reversion tilt on
// top of the momentum signal Sharpe alone provides. Returns 1 (no
// adjustment) when the series is too short for an RSI reading.
func rsiDamper(series []float64) float64 {
	const rsiLength = 14
	rsi := formulas.CalculateRSI(series, rsiLength)
	if rsi == nil {
		return 1
	}
	switch {
	case *rsi >= 70:
		return 0.5
	case *rsi <= 30:
		return 1.25
	default:
		return 1
	}
}

// riskParityWeights weights each token inversely to its recent
// volatility, so the lowest-variance tokens receive the largest share —
// the standard inverse-volatility approximation to risk parity.
func riskParityWeights(signals []TokenSignal) map[dex.TokenAccount]float64 {
	inverseVol := make(map[dex.TokenAccount]float64, len(signals))
	total := 0.0
	for _, s := range signals {
		vol := volatility(s.RecentRatesNear)
		if vol < 1e-12 {
			vol = 1e-12
		}
		iv := 1 / vol
		inverseVol[s.Token] = iv
		total += iv
	}
	return normalize(inverseVol, total)
}

// BlendWeights combines sharpeWeights and riskParityWeights using
// confidence as the blend weight (spec.md §4.7 step 1: "Sharpe is
// trusted when the model has been accurate, risk-parity otherwise").
// confidence is expected in [0, 1].
func BlendWeights(signals []TokenSignal, confidence float64) map[dex.TokenAccount]float64 {
	if len(signals) == 0 {
		return map[dex.TokenAccount]float64{}
	}

	sharpe := sharpeWeights(signals)
	riskParity := riskParityWeights(signals)

	blended := make(map[dex.TokenAccount]float64, len(signals))
	total := 0.0
	for _, s := range signals {
		w := confidence*sharpe[s.Token] + (1-confidence)*riskParity[s.Token]
		blended[s.Token] = w
		total += w
	}
	return normalize(blended, total)
}

// volatility returns the sample standard deviation of a rate series'
// fractional returns. Fewer than 3 points (2 returns) yields zero (no
// signal).
func volatility(series []float64) float64 {
	returns := formulas.CalculateReturns(series)
	if len(returns) < 2 {
		return 0
	}
	return formulas.StdDev(returns)
}

// normalize scales weights so they sum to 1. If total is non-positive,
// returns an equal-weight split across every key so a stalled signal set
// still produces a well-formed allocation.
func normalize(weights map[dex.TokenAccount]float64, total float64) map[dex.TokenAccount]float64 {
	out := make(map[dex.TokenAccount]float64, len(weights))
	if total <= 0 {
		if len(weights) == 0 {
			return out
		}
		equal := 1.0 / float64(len(weights))
		for k := range weights {
			out[k] = equal
		}
		return out
	}
	for k, v := range weights {
		out[k] = v / total
	}
	return out
}

// L1Distance is the sum of absolute differences between two weight maps
// over the union of their keys (spec.md §4.7 step 2).
func L1Distance(current, target map[dex.TokenAccount]float64) float64 {
	seen := make(map[dex.TokenAccount]bool, len(current)+len(target))
	diffs := make([]float64, 0, len(current)+len(target))
	for k := range current {
		seen[k] = true
	}
	for k := range target {
		seen[k] = true
	}
	for k := range seen {
		diffs = append(diffs, math.Abs(current[k]-target[k]))
	}
	return floats.Sum(diffs)
}
