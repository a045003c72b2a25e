package evaluation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

// TestConfidence_SpecScenario7 reproduces spec.md §8 scenario 7: MAPE
// samples [2,2,3,3,2], hit-rate 0.8, excellent=3, poor=15 -> confidence
// 0.84.
func TestConfidence_SpecScenario7(t *testing.T) {
	mapeValues := []float64{2, 2, 3, 3, 2}
	rollingMAPE := stat.Mean(mapeValues, nil)
	hitRate := 0.8

	e := &Evaluator{mapeExcellent: 3, mapePoor: 15}
	m := RollingMetrics{RollingMAPE: rollingMAPE, HitRate: &hitRate}

	got := e.Confidence(m)
	assert.InDelta(t, 0.84, got, 1e-9)
}

func TestMapeToConfidence_BoundaryLaws(t *testing.T) {
	excellent, poor := 3.0, 15.0

	assert.Equal(t, 0.0, mapeToConfidence(poor, excellent, poor))
	assert.Equal(t, 1.0, mapeToConfidence(excellent, excellent, poor))

	prev := mapeToConfidence(excellent, excellent, poor)
	for mape := excellent + 1; mape <= poor; mape++ {
		cur := mapeToConfidence(mape, excellent, poor)
		assert.LessOrEqual(t, cur, prev, "confidence must be non-increasing in mape")
		prev = cur
	}
}

func TestMapeToConfidence_ClampsBeyondBounds(t *testing.T) {
	assert.Equal(t, 1.0, mapeToConfidence(-5, 3, 15))
	assert.Equal(t, 0.0, mapeToConfidence(1000, 3, 15))
}

func TestIsDirectionCorrect_FlatIsCorrect(t *testing.T) {
	p := decimal.NewFromInt(5)
	assert.True(t, isDirectionCorrect(p, p, p))
}

func TestIsDirectionCorrect_UpAndDown(t *testing.T) {
	prior := decimal.NewFromInt(10)
	up := decimal.NewFromInt(12)
	down := decimal.NewFromInt(8)

	assert.True(t, isDirectionCorrect(up, prior, up))
	assert.False(t, isDirectionCorrect(up, prior, down))
	assert.True(t, isDirectionCorrect(down, prior, down))
}

func TestDirectionalHitRate_ComputesAcrossConsecutivePairs(t *testing.T) {
	p10 := decimal.NewFromInt(10)
	p11 := decimal.NewFromInt(11)
	p9 := decimal.NewFromInt(9)

	// Most-recent first. Pairs: (0,1) predicted up from p10 actual p11,
	// realized up from p10 to p11 -> hit. (1,2) predicted flat (p9 against
	// prior actual p9), realized up from p9 to p10 -> miss.
	recs := []PredictionRecord{
		{PredictedPrice: p11, ActualPrice: &p11},
		{PredictedPrice: p9, ActualPrice: &p10},
		{PredictedPrice: p9, ActualPrice: &p9},
	}

	rate, ok := directionalHitRate(recs)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1, 0, 1))
	assert.Equal(t, 1.0, clamp(2, 0, 1))
	assert.Equal(t, 0.5, clamp(0.5, 0, 1))
}
