package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nearswap/agent/internal/dex"
)

func TestBlendWeights_SumsToOne(t *testing.T) {
	signals := []TokenSignal{
		{Token: "a.near", ExpectedReturn: 0.05, RecentRatesNear: []float64{1, 1.01, 1.02, 1.0, 1.03}},
		{Token: "b.near", ExpectedReturn: -0.02, RecentRatesNear: []float64{2, 2.1, 1.9, 2.05, 2.0}},
	}

	w := BlendWeights(signals, 0.5)
	total := 0.0
	for _, v := range w {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestBlendWeights_ZeroSignalsIsEmpty(t *testing.T) {
	w := BlendWeights(nil, 0.5)
	assert.Empty(t, w)
}

func TestL1Distance_IdenticalIsZero(t *testing.T) {
	w := map[dex.TokenAccount]float64{"a.near": 0.3, "b.near": 0.7}
	assert.Equal(t, 0.0, L1Distance(w, w))
}

func TestL1Distance_DisjointSumsBoth(t *testing.T) {
	a := map[dex.TokenAccount]float64{"a.near": 1.0}
	b := map[dex.TokenAccount]float64{"b.near": 1.0}
	assert.InDelta(t, 2.0, L1Distance(a, b), 1e-9)
}

// TestDecide_BelowThresholdHolds reproduces spec.md §4.7 step 2: an L1
// distance below portfolio_rebalance_threshold yields Hold.
func TestDecide_BelowThresholdHolds(t *testing.T) {
	signals := []TokenSignal{
		{Token: "a.near", ExpectedReturn: 0.01, RecentRatesNear: []float64{1, 1, 1, 1}},
	}
	current := map[dex.TokenAccount]float64{"a.near": 1.0}

	d := Decide(signals, 1.0, current, 0.05)
	assert.Equal(t, "hold", string(d.Action.Kind))
}

// TestDecide_AboveThresholdRebalances reproduces spec.md §8 scenario 6's
// setup shape: a large weight mismatch should trigger a Rebalance.
func TestDecide_AboveThresholdRebalances(t *testing.T) {
	signals := []TokenSignal{
		{Token: "a.near", ExpectedReturn: 0.10, RecentRatesNear: []float64{1, 1.05, 1.1}},
		{Token: "b.near", ExpectedReturn: 0.0, RecentRatesNear: []float64{1, 1, 1}},
	}
	current := map[dex.TokenAccount]float64{"a.near": 0.0, "b.near": 1.0}

	d := Decide(signals, 0.8, current, 0.05)
	assert.Equal(t, "rebalance", string(d.Action.Kind))
	assert.NotEmpty(t, d.Action.TargetWeights)
}
