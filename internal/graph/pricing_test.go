package graph

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearswap/agent/internal/dex"
)

func mustBigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return n
}

// TestEstimateOut_SpecScenario4 reproduces spec.md §8 scenario 4: pool
// reserves (49821249287591105626851, 5375219608484426244903787070), fee
// 30, estimate_return(in=0, amount=100, out=1) == 10756643.
func TestEstimateOut_SpecScenario4(t *testing.T) {
	pool := &dex.Pool{
		ID:   1,
		Kind: dex.PoolKindSimple,
		Tokens: []dex.TokenAccount{"token_in.near", "token_out.near"},
		Reserves: []*big.Int{
			mustBigInt("49821249287591105626851"),
			mustBigInt("5375219608484426244903787070"),
		},
		TotalFee: 30,
	}
	pair := TokenPair{Pool: pool, InIndex: 0, OutIndex: 1}

	out, err := pair.EstimateOut(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "10756643", out.String())
}

func TestEstimateOut_SwapSameToken(t *testing.T) {
	pool := &dex.Pool{
		ID:       1,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(100), big.NewInt(100)},
		TotalFee: 30,
	}
	pair := TokenPair{Pool: pool, InIndex: 0, OutIndex: 0}
	_, err := pair.EstimateOut(big.NewInt(10))
	assert.ErrorIs(t, err, ErrSwapSameToken)
}

func TestEstimateOut_ZeroAmount(t *testing.T) {
	pool := &dex.Pool{
		ID:       1,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(100), big.NewInt(100)},
		TotalFee: 30,
	}
	pair := TokenPair{Pool: pool, InIndex: 0, OutIndex: 1}

	_, err := pair.EstimateOut(big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroAmount)

	zeroReservePool := &dex.Pool{
		ID:       2,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(0), big.NewInt(100)},
		TotalFee: 30,
	}
	zeroPair := TokenPair{Pool: zeroReservePool, InIndex: 0, OutIndex: 1}
	_, err = zeroPair.EstimateOut(big.NewInt(10))
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestEstimateOut_Deterministic(t *testing.T) {
	pool := &dex.Pool{
		ID:       1,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(1_000_000), big.NewInt(2_000_000)},
		TotalFee: 30,
	}
	pair := TokenPair{Pool: pool, InIndex: 0, OutIndex: 1}

	first, err := pair.EstimateOut(big.NewInt(1000))
	require.NoError(t, err)
	second, err := pair.EstimateOut(big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 0, first.Cmp(second))
}
