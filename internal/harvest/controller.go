// Package harvest implements C-HARV: skimming realized growth above
// double the initial evaluation-period value into a separate account
// (spec.md §4.8).
package harvest

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/events"
	"github.com/nearswap/agent/internal/portfolio"
	"github.com/nearswap/agent/internal/wallet"
)

// Config holds the harvest controller's tunables (spec.md §6 layered
// configuration).
type Config struct {
	MinAmountNear     decimal.Decimal
	ReserveAmountNear decimal.Decimal
	Interval          time.Duration
	AccountID         string
	QuoteToken        dex.TokenAccount
}

// Controller runs MaybeHarvest once per trade tick, after execution
// (spec.md §4.7 "Harvest interaction").
type Controller struct {
	client        dex.Client
	wallet        wallet.Wallet
	accountID     dex.TokenAccount
	repo          *portfolio.Repository
	events        *events.Manager
	log           zerolog.Logger
	cfg           Config
	lastHarvestAt time.Time
}

// NewController creates a new harvest controller.
func NewController(client dex.Client, w wallet.Wallet, accountID dex.TokenAccount, repo *portfolio.Repository, em *events.Manager, cfg Config, log zerolog.Logger) *Controller {
	return &Controller{
		client:    client,
		wallet:    w,
		accountID: accountID,
		repo:      repo,
		events:    em,
		cfg:       cfg,
		log:       log.With().Str("component", "harvest_controller").Logger(),
	}
}

// yoctoPerNear is the number of yoctoNEAR in one whole NEAR.
var yoctoPerNear = decimal.New(1, 24)

// MaybeHarvest checks the trigger, skim amount, and rate limit, and if
// all pass, runs the withdraw/unwrap/transfer sequence (spec.md §4.8).
// initialValueNear is V_0 from the latest EvaluationPeriod; currentValueNear
// is V. Both are whole-NEAR quantities.
func (c *Controller) MaybeHarvest(ctx context.Context, initialValueNear, currentValueNear decimal.Decimal) error {
	threshold := initialValueNear.Mul(decimal.NewFromInt(2))
	if currentValueNear.LessThanOrEqual(threshold) {
		return nil
	}

	excess := currentValueNear.Sub(threshold)
	skim := excess.Mul(decimal.NewFromFloat(0.10))

	if skim.LessThan(c.cfg.MinAmountNear) {
		c.events.Emit(events.HarvestSkipped, "harvest", map[string]interface{}{
			"reason": "skim_below_minimum",
			"skim":   skim.String(),
		})
		return nil
	}

	if !c.lastHarvestAt.IsZero() && time.Since(c.lastHarvestAt) < c.cfg.Interval {
		c.events.Emit(events.HarvestSkipped, "harvest", map[string]interface{}{
			"reason": "rate_limited",
		})
		return nil
	}

	return c.runSequence(ctx, skim)
}

// runSequence executes the withdraw/unwrap/transfer sequence (spec.md
// §4.8 Sequence). Any step's failure aborts and surfaces the error; on
// an unwrap failure after a successful withdraw, the skimmed wNEAR is
// left in the wallet rather than redeposited or retried automatically
// (DESIGN.md open-question decision 1) — it shows up as ordinary wNEAR
// holdings on the next portfolio snapshot.
func (c *Controller) runSequence(ctx context.Context, skimNear decimal.Decimal) error {
	skimYocto := skimNear.Mul(yoctoPerNear)
	skimYoctoInt := skimYocto.BigInt()

	if err := c.client.Withdraw(ctx, c.accountID, c.cfg.QuoteToken, skimYoctoInt); err != nil {
		return fmt.Errorf("harvest: withdraw skim from dex deposit: %w", err)
	}

	if err := c.wallet.NearWithdraw(ctx, skimYoctoInt); err != nil {
		return fmt.Errorf("harvest: unwrap wnear: %w", err)
	}

	nativeBalance, err := c.wallet.NativeBalance(ctx)
	if err != nil {
		return fmt.Errorf("harvest: read native balance: %w", err)
	}

	reserveYocto := c.cfg.ReserveAmountNear.Mul(yoctoPerNear).BigInt()
	available := new(big.Int).Sub(nativeBalance, reserveYocto)
	if available.Sign() <= 0 {
		return fmt.Errorf("harvest: available balance %s after reserving %s is non-positive, aborting transfer", nativeBalance, reserveYocto)
	}

	transferAmount := skimYoctoInt
	if available.Cmp(skimYoctoInt) < 0 {
		transferAmount = available
	}

	if err := c.wallet.Transfer(ctx, nativeToken, c.cfg.AccountID, transferAmount); err != nil {
		return fmt.Errorf("harvest: transfer skim to %s: %w", c.cfg.AccountID, err)
	}

	c.lastHarvestAt = time.Now().UTC()

	transferNear := decimal.NewFromBigInt(transferAmount, 0).Div(yoctoPerNear)
	if err := c.repo.InsertTrade(portfolio.TradeRecord{
		ActionTag:  "harvest",
		Token:      nativeToken,
		Amount:     decimal.NewFromBigInt(transferAmount, 0),
		PriceNear:  transferNear,
		ExecutedAt: c.lastHarvestAt,
	}); err != nil {
		return fmt.Errorf("harvest: record trade: %w", err)
	}

	c.events.Emit(events.HarvestSkimmed, "harvest", map[string]interface{}{
		"skim_near":     skimNear.String(),
		"transfer_near": transferNear.String(),
	})

	return nil
}

// nativeToken is the pseudo-account used to tag native-NEAR trade
// records; it is never looked up against the token_metadata cache or
// passed to a DEX call.
const nativeToken dex.TokenAccount = "near"
