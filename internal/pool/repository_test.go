package pool

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nearswap/agent/internal/dex"
)

func TestToRowFromRowRoundTrip(t *testing.T) {
	p := &dex.Pool{
		ID:                7,
		Kind:              dex.PoolKindSimple,
		Tokens:            []dex.TokenAccount{"wrap.near", "usdc.near"},
		Reserves:          []*big.Int{big.NewInt(1_000_000), big.NewInt(2_000_000)},
		TotalFee:          30,
		SharesTotalSupply: big.NewInt(500),
		Amp:               0,
		CapturedAt:        time.Unix(1_700_000_000, 0).UTC(),
	}

	row, err := toRow(p)
	require.NoError(t, err)

	back, err := fromRow(*row)
	require.NoError(t, err)

	require.Equal(t, p.ID, back.ID)
	require.Equal(t, p.Kind, back.Kind)
	require.Equal(t, p.Tokens, back.Tokens)
	require.Equal(t, 0, p.Reserves[0].Cmp(back.Reserves[0]))
	require.Equal(t, 0, p.Reserves[1].Cmp(back.Reserves[1]))
	require.Equal(t, p.TotalFee, back.TotalFee)
	require.Equal(t, 0, p.SharesTotalSupply.Cmp(back.SharesTotalSupply))
	require.Equal(t, p.CapturedAt.Unix(), back.CapturedAt.Unix())
}

func TestPoolValidate(t *testing.T) {
	valid := &dex.Pool{
		ID:       1,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(1), big.NewInt(1)},
		TotalFee: 30,
	}
	require.NoError(t, valid.Validate())

	mismatched := &dex.Pool{
		ID:       2,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(1)},
		TotalFee: 30,
	}
	require.Error(t, mismatched.Validate())

	feeTooHigh := &dex.Pool{
		ID:       3,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"a.near", "b.near"},
		Reserves: []*big.Int{big.NewInt(1), big.NewInt(1)},
		TotalFee: dex.FeeDivisor,
	}
	require.Error(t, feeTooHigh.Validate())

	wrongArity := &dex.Pool{
		ID:       4,
		Kind:     dex.PoolKindSimple,
		Tokens:   []dex.TokenAccount{"a.near", "b.near", "c.near"},
		Reserves: []*big.Int{big.NewInt(1), big.NewInt(1), big.NewInt(1)},
		TotalFee: 30,
	}
	require.Error(t, wrongArity.Validate())
}
