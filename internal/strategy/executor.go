package strategy

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/events"
	"github.com/nearswap/agent/internal/graph"
	"github.com/nearswap/agent/internal/portfolio"
)

// Executor decomposes a Rebalance action into primitive swaps, routes
// each leg through the swap graph, submits them sequentially, and
// records the resulting trades (spec.md §4.7 Execution).
type Executor struct {
	client     dex.Client
	accountID  dex.TokenAccount
	graph      *graph.TokenGraph
	state      *portfolio.State
	repo       *portfolio.Repository
	events     *events.Manager
	log        zerolog.Logger
	quoteToken dex.TokenAccount
}

// NewExecutor creates a new swap executor bound to a freshly built
// TokenGraph. Callers rebuild the graph and construct a new Executor
// each trade tick, matching the immutable-graph-plus-cache design
// (spec.md §9).
func NewExecutor(client dex.Client, accountID dex.TokenAccount, tg *graph.TokenGraph, state *portfolio.State, repo *portfolio.Repository, em *events.Manager, quoteToken dex.TokenAccount, log zerolog.Logger) *Executor {
	return &Executor{
		client:     client,
		accountID:  accountID,
		graph:      tg,
		state:      state,
		repo:       repo,
		events:     em,
		quoteToken: quoteToken,
		log:        log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs one Rebalance: sells overweight tokens first so cash is
// available, then buys underweight tokens (spec.md §4.6 Rebalance, §4.7
// Execution). A leg's failure is logged and skips the remaining legs for
// that token only; other tokens still execute.
func (ex *Executor) Execute(ctx context.Context, targetWeights map[dex.TokenAccount]decimal.Decimal, valuesNear map[dex.TokenAccount]decimal.Decimal, totalValueNear decimal.Decimal) error {
	if totalValueNear.IsZero() {
		return nil
	}

	sells, buys := splitOverUnderWeight(targetWeights, valuesNear, totalValueNear, ex.quoteToken)

	for _, leg := range sells {
		if err := ex.runLeg(ctx, leg.token, ex.quoteToken, leg.deltaNear, "reduce_position"); err != nil {
			ex.log.Warn().Err(err).Str("token", string(leg.token)).Msg("sell leg failed, skipping token")
			ex.events.EmitError("strategy", err, map[string]interface{}{"token": string(leg.token), "leg": "sell"})
		}
	}

	for _, leg := range buys {
		if err := ex.runLeg(ctx, ex.quoteToken, leg.token, leg.deltaNear, "add_position"); err != nil {
			ex.log.Warn().Err(err).Str("token", string(leg.token)).Msg("buy leg failed, skipping token")
			ex.events.EmitError("strategy", err, map[string]interface{}{"token": string(leg.token), "leg": "buy"})
		}
	}

	return nil
}

type weightLeg struct {
	token     dex.TokenAccount
	deltaNear decimal.Decimal
}

// splitOverUnderWeight compares each non-quote token's current value to
// its target value and buckets the difference into sell legs
// (overweight) and buy legs (underweight).
func splitOverUnderWeight(targetWeights, valuesNear map[dex.TokenAccount]decimal.Decimal, totalValueNear decimal.Decimal, quoteToken dex.TokenAccount) (sells, buys []weightLeg) {
	seen := make(map[dex.TokenAccount]bool)
	for token := range targetWeights {
		seen[token] = true
	}
	for token := range valuesNear {
		seen[token] = true
	}

	for token := range seen {
		if token == quoteToken {
			continue
		}
		targetValue := targetWeights[token].Mul(totalValueNear)
		currentValue := valuesNear[token]
		delta := currentValue.Sub(targetValue)
		if delta.IsZero() {
			continue
		}
		if delta.IsPositive() {
			sells = append(sells, weightLeg{token: token, deltaNear: delta})
		} else {
			buys = append(buys, weightLeg{token: token, deltaNear: delta.Neg()})
		}
	}
	return sells, buys
}

// runLeg routes from->to for the given NEAR-denominated amount, verifies
// intermediate-token storage, submits the swap, and records the trade
// (spec.md §4.7 Execution steps 1-3).
func (ex *Executor) runLeg(ctx context.Context, from, to dex.TokenAccount, amountNear decimal.Decimal, actionTag string) error {
	path, ok := ex.graph.Path(from, to)
	if !ok || len(path) == 0 {
		return fmt.Errorf("no swap path from %s to %s", from, to)
	}

	if err := ex.ensureStorage(ctx, path); err != nil {
		return fmt.Errorf("register storage for %s->%s: %w", from, to, err)
	}

	amountInSmallest, err := ex.amountInSmallestUnits(ctx, from, amountNear)
	if err != nil {
		return fmt.Errorf("compute swap amount for %s: %w", from, err)
	}

	actions := make([]dex.SwapAction, len(path))
	for i, hop := range path {
		var amountIn *big.Int
		if i == 0 {
			amountIn = amountInSmallest
		}
		actions[i] = dex.SwapAction{
			PoolID:   uint32(hop.PairID),
			TokenIn:  hop.From,
			TokenOut: hop.To,
			AmountIn: amountIn,
		}
	}

	out, err := ex.client.Swap(ctx, ex.accountID, actions, big.NewInt(0))
	if err != nil {
		return fmt.Errorf("submit swap %s->%s: %w", from, to, err)
	}

	return ex.recordLeg(actionTag, from, to, amountInSmallest, out)
}

// ensureStorage registers every intermediate token along path with the
// exchange contract; a no-op for tokens already registered (spec.md
// §4.7 Execution step 2).
func (ex *Executor) ensureStorage(ctx context.Context, path graph.Path) error {
	tokens := make([]dex.TokenAccount, 0, len(path)+1)
	for i, hop := range path {
		if i == 0 {
			tokens = append(tokens, hop.From)
		}
		tokens = append(tokens, hop.To)
	}
	return ex.client.RegisterTokens(ctx, ex.accountID, tokens)
}

// amountInSmallestUnits converts a NEAR-denominated leg amount into the
// smallest units of the leg's input token. Selling token, already
// expressed in NEAR, is converted via the portfolio's known holding
// balance proportionally; buying from the quote token converts via the
// quote token's own 24-decimal denomination.
func (ex *Executor) amountInSmallestUnits(ctx context.Context, from dex.TokenAccount, amountNear decimal.Decimal) (*big.Int, error) {
	if from == ex.quoteToken {
		yocto := amountNear.Mul(decimal.New(1, 24))
		return yocto.BigInt(), nil
	}

	h, ok := ex.state.Holdings[from]
	if !ok || h.Balance.IsZero() {
		return nil, fmt.Errorf("no holding of %s to sell", from)
	}
	return h.Balance.BigInt(), nil
}

// recordLeg updates in-memory portfolio state for one completed leg and
// persists its trade record.
func (ex *Executor) recordLeg(actionTag string, from, to dex.TokenAccount, amountIn *big.Int, amountOut *big.Int) error {
	now := time.Now().UTC()
	outDecimal := decimal.NewFromBigInt(amountOut, 0)

	var realizedPnL *decimal.Decimal
	if from != ex.quoteToken {
		// Selling a non-quote token for the quote token realizes P&L
		// against the sold token's cost basis. wNEAR shares NEAR's 24
		// decimals, so its smallest-unit output is already yoctoNEAR.
		proceedsYocto := outDecimal
		pnl, err := ex.state.Sell(from, decimal.NewFromBigInt(amountIn, 0), proceedsYocto)
		if err != nil {
			return fmt.Errorf("update portfolio state for sell of %s: %w", from, err)
		}
		realizedPnL = &pnl
		ex.state.CashYocto = ex.state.CashYocto.Add(proceedsYocto)
	} else {
		costYocto := decimal.NewFromBigInt(amountIn, 0)
		ex.state.AddPosition(to, outDecimal, costYocto)
		ex.state.CashYocto = ex.state.CashYocto.Sub(costYocto)
	}

	priceNear := outDecimal
	if from == ex.quoteToken {
		priceNear = decimal.NewFromBigInt(amountIn, 0).Div(decimal.New(1, 24))
	} else {
		priceNear = outDecimal.Div(decimal.New(1, 24))
	}

	record := portfolio.TradeRecord{
		ActionTag:   actionTag,
		Token:       to,
		Amount:      outDecimal,
		PriceNear:   priceNear,
		RealizedPnL: realizedPnL,
		ExecutedAt:  now,
	}
	if from != ex.quoteToken {
		record.Token = from
		record.Amount = decimal.NewFromBigInt(amountIn, 0)
	}

	if err := ex.repo.InsertTrade(record); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}

	ex.events.Emit(events.SwapSubmitted, "strategy", map[string]interface{}{
		"from":   string(from),
		"to":     string(to),
		"action": actionTag,
	})

	return nil
}
