package rpc

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalcRetryDuration_ZeroAtBoundaries(t *testing.T) {
	limit := 8 * time.Second
	retryLimit := 10

	assert.Equal(t, time.Duration(0), CalcRetryDuration(0, retryLimit, limit))
	assert.Equal(t, time.Duration(0), CalcRetryDuration(1, retryLimit, limit))
	assert.Equal(t, time.Duration(0), CalcRetryDuration(retryLimit+1, retryLimit, limit))
}

func TestCalcRetryDuration_EqualsUpperAtRetryLimit(t *testing.T) {
	limit := 8 * time.Second
	retryLimit := 10

	assert.Equal(t, limit, CalcRetryDuration(retryLimit, retryLimit, limit))
}

func TestCalcRetryDuration_MonotonicallyIncreasing(t *testing.T) {
	limit := 8 * time.Second
	retryLimit := 10

	var prev time.Duration
	for r := 1; r <= retryLimit; r++ {
		d := CalcRetryDuration(r, retryLimit, limit)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, limit)
		prev = d
	}
}

func TestFluctuate_StaysWithinFraction(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	d := 4 * time.Second
	for i := 0; i < 100; i++ {
		out := Fluctuate(d, 0.25, rnd)
		assert.GreaterOrEqual(t, out, 3*time.Second)
		assert.LessOrEqual(t, out, 5*time.Second)
	}
}

func TestFluctuate_ZeroFractionIsIdentity(t *testing.T) {
	rnd := rand.New(rand.NewSource(9))
	d := 2 * time.Second
	assert.Equal(t, d, Fluctuate(d, 0, rnd))
}
