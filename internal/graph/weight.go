package graph

import "math"

// weightScale fixes the precision EdgeWeight.NumericCost is scaled to
// before the value is truncated to an integer (spec.md §3).
const weightScale = 1_000_000_000.0

// EdgeWeight is the graph edge weight used by Dijkstra (spec.md §3): a
// pair of (log_cost, numeric_cost). Addition is defined so that the path
// weight of a multi-hop route equals the sum of per-hop weights, which
// corresponds to the -log of the composed rate net of fees. Ordering is
// lexicographic by NumericCost.
type EdgeWeight struct {
	LogCost     float64
	NumericCost uint64
}

// NewEdgeWeight derives an EdgeWeight from a marginal exchange rate
// (quote-per-base, before fees) and a fee expressed as a fraction (the
// pool's total_fee divided by dex.FeeDivisor), via
// -log(rate * (1 - feeFraction)) (spec.md §3, GLOSSARY).
func NewEdgeWeight(rate float64, feeFraction float64) EdgeWeight {
	effective := rate * (1 - feeFraction)
	if effective <= 0 {
		// An unpriceable or worthless edge is given the worst possible
		// finite weight rather than +Inf, so it still participates in
		// Dijkstra without special-casing infinities.
		return EdgeWeight{LogCost: math.MaxFloat64 / 2, NumericCost: math.MaxUint64 / 2}
	}
	logCost := -math.Log(effective)
	if logCost < 0 {
		// A rate better than 1:1 net of fees yields a negative -log;
		// clamp to zero since NumericCost must be non-negative.
		logCost = 0
	}
	return EdgeWeight{
		LogCost:     logCost,
		NumericCost: uint64(math.Round(logCost * weightScale)),
	}
}

// Add combines two edge weights along a path.
func (w EdgeWeight) Add(other EdgeWeight) EdgeWeight {
	return EdgeWeight{
		LogCost:     w.LogCost + other.LogCost,
		NumericCost: w.NumericCost + other.NumericCost,
	}
}

// Less reports whether w sorts before other: lower NumericCost wins.
func (w EdgeWeight) Less(other EdgeWeight) bool {
	return w.NumericCost < other.NumericCost
}
