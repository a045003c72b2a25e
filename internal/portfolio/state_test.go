package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearswap/agent/internal/dex"
)

func TestState_AddPositionThenFullSell(t *testing.T) {
	s := NewState(decimal.Zero)
	s.AddPosition("token_a.near", decimal.NewFromInt(1000), decimal.NewFromInt(500))

	pnl, err := s.Sell("token_a.near", decimal.NewFromInt(1000), decimal.NewFromInt(700))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(pnl))
	assert.True(t, s.Holdings["token_a.near"].Balance.IsZero())
	assert.True(t, s.Holdings["token_a.near"].CostBasisYocto.IsZero())
}

// TestState_PartialSellProratesCostBasis reproduces the spec's
// cost_of_sold = round(cost_basis * S / T) formula for a partial exit.
func TestState_PartialSellProratesCostBasis(t *testing.T) {
	s := NewState(decimal.Zero)
	s.AddPosition("token_a.near", decimal.NewFromInt(1000), decimal.NewFromInt(1000)) // cost basis 1000 yocto for 1000 units

	pnl, err := s.Sell("token_a.near", decimal.NewFromInt(400), decimal.NewFromInt(500))
	require.NoError(t, err)

	// cost_of_sold = round(1000 * 400/1000) = 400
	assert.True(t, decimal.NewFromInt(100).Equal(pnl))
	assert.True(t, decimal.NewFromInt(600).Equal(s.Holdings["token_a.near"].Balance))
	assert.True(t, decimal.NewFromInt(600).Equal(s.Holdings["token_a.near"].CostBasisYocto))
}

func TestState_SellExceedingBalanceErrors(t *testing.T) {
	s := NewState(decimal.Zero)
	s.AddPosition("token_a.near", decimal.NewFromInt(100), decimal.NewFromInt(100))

	_, err := s.Sell("token_a.near", decimal.NewFromInt(200), decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestState_SellUnknownTokenErrors(t *testing.T) {
	s := NewState(decimal.Zero)
	_, err := s.Sell("unknown.near", decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestTradingAction_IsValid(t *testing.T) {
	valid := TradingAction{Kind: ActionAddPosition, Token: dex.TokenAccount("a.near"), Weight: decimal.NewFromFloat(0.2)}
	assert.NoError(t, valid.IsValid())

	missingToken := TradingAction{Kind: ActionAddPosition, Weight: decimal.NewFromFloat(0.2)}
	assert.Error(t, missingToken.IsValid())

	sameSwitch := TradingAction{Kind: ActionSwitch, From: "a.near", To: "a.near"}
	assert.Error(t, sameSwitch.IsValid())

	emptyRebalance := TradingAction{Kind: ActionRebalance}
	assert.Error(t, emptyRebalance.IsValid())

	hold := TradingAction{Kind: ActionHold}
	assert.NoError(t, hold.IsValid())
}
