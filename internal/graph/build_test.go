package graph

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearswap/agent/internal/dex"
)

func TestBuild_TopEdgeSelectionAndBidirectionalFilter(t *testing.T) {
	// Two parallel pools serve (wNEAR, usdc): pool 2 offers a better rate
	// in the wNEAR->usdc direction, so only its edge should survive.
	poorPool := &dex.Pool{
		ID:       1,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"wrap.near", "usdc.near"},
		Reserves: []*big.Int{big.NewInt(1_000_000), big.NewInt(900_000)},
		TotalFee: 30,
	}
	richPool := &dex.Pool{
		ID:       2,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"wrap.near", "usdc.near"},
		Reserves: []*big.Int{big.NewInt(1_000_000), big.NewInt(1_200_000)},
		TotalFee: 30,
	}

	list := dex.NewPoolInfoList([]*dex.Pool{poorPool, richPool})
	tg := Build(list)

	goals := tg.UpdatePaths("wrap.near")
	require.Contains(t, goals, dex.TokenAccount("usdc.near"))

	path, ok := tg.Path("wrap.near", "usdc.near")
	require.True(t, ok)
	require.Len(t, path, 1)

	pair, found := tg.TokenPairFor(path[0].PairID)
	require.True(t, found)
	assert.Equal(t, uint32(2), pair.Pool.ID, "the richer pool should win the top-edge selection")
}

func TestBuild_SkipsZeroReservePools(t *testing.T) {
	dead := &dex.Pool{
		ID:       3,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(0), big.NewInt(100)},
		TotalFee: 30,
	}
	list := dex.NewPoolInfoList([]*dex.Pool{dead})
	tg := Build(list)

	goals := tg.UpdatePaths("a.near")
	assert.Empty(t, goals)
}

func TestListValuesWithPath_SortedDescending(t *testing.T) {
	cheap := &dex.Pool{
		ID:       1,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"wrap.near", "tokenA.near"},
		Reserves: []*big.Int{big.NewInt(1_000_000_000), big.NewInt(500_000_000)},
		TotalFee: 30,
	}
	rich := &dex.Pool{
		ID:       2,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"wrap.near", "tokenB.near"},
		Reserves: []*big.Int{big.NewInt(1_000_000_000), big.NewInt(5_000_000_000)},
		TotalFee: 30,
	}
	list := dex.NewPoolInfoList([]*dex.Pool{cheap, rich})
	tg := Build(list)
	goals := tg.UpdatePaths("wrap.near")

	results := tg.ListValuesWithPath(big.NewInt(1_000_000), "wrap.near", goals)
	require.Len(t, results, 2)
	assert.Equal(t, dex.TokenAccount("tokenB.near"), results[0].Goal)
	assert.True(t, results[0].EstimatedOut.Cmp(results[1].EstimatedOut) >= 0)
}
