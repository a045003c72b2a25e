// Package graph implements C-GRAPH: building a directed weighted graph
// over the live pool set, caching shortest paths from a quote token, and
// evaluating multi-hop swap output under constant-product pricing
// (spec.md §4.3).
package graph

import (
	"errors"
	"math/big"

	"github.com/nearswap/agent/internal/dex"
)

// ErrSwapSameToken is returned when a TokenPair's in and out indices name
// the same token.
var ErrSwapSameToken = errors.New("graph: swap same token")

// ErrZeroAmount is returned when a reserve or the input amount is
// non-positive.
var ErrZeroAmount = errors.New("graph: zero amount")

// ErrOverflow is returned when a pricing result does not fit in u128, the
// on-chain integer width.
var ErrOverflow = errors.New("graph: overflow")

// maxU128 is the largest value representable in the on-chain u128 type.
var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// TokenPair is a view over a Pool selecting a swap direction: (pool,
// in_index, out_index) with in_index != out_index (spec.md §3).
type TokenPair struct {
	Pool     *dex.Pool
	InIndex  int
	OutIndex int
}

// TokenIn returns the token this pair swaps from.
func (p TokenPair) TokenIn() dex.TokenAccount { return p.Pool.Tokens[p.InIndex] }

// TokenOut returns the token this pair swaps to.
func (p TokenPair) TokenOut() dex.TokenAccount { return p.Pool.Tokens[p.OutIndex] }

// EstimateOut computes the constant-product output for amountIn, net of
// the pool's fee (spec.md §4.3):
//
//	amount_with_fee = amount_in * (FEE_DIVISOR - fee)
//	amount_out      = amount_with_fee * R_out / (FEE_DIVISOR * R_in + amount_with_fee)
func (p TokenPair) EstimateOut(amountIn *big.Int) (*big.Int, error) {
	if p.InIndex == p.OutIndex {
		return nil, ErrSwapSameToken
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	rIn := p.Pool.Reserves[p.InIndex]
	rOut := p.Pool.Reserves[p.OutIndex]
	if rIn == nil || rOut == nil || rIn.Sign() <= 0 || rOut.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	feeDivisor := big.NewInt(dex.FeeDivisor)
	fee := big.NewInt(int64(p.Pool.TotalFee))

	amountWithFee := new(big.Int).Mul(amountIn, new(big.Int).Sub(feeDivisor, fee))

	numerator := new(big.Int).Mul(amountWithFee, rOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(feeDivisor, rIn), amountWithFee)
	if denominator.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	amountOut := new(big.Int).Div(numerator, denominator)
	if amountOut.Cmp(maxU128) > 0 {
		return nil, ErrOverflow
	}
	return amountOut, nil
}
