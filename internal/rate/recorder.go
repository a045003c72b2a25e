package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/events"
	"github.com/nearswap/agent/internal/graph"
	"github.com/nearswap/agent/internal/pool"
	"github.com/nearswap/agent/internal/tokenmeta"
)

// Recorder runs the record_rates tick (spec.md §4.4).
type Recorder struct {
	refresher *pool.Refresher
	repo      *Repository
	meta      *tokenmeta.Cache
	events    *events.Manager
	log       zerolog.Logger

	quoteToken    dex.TokenAccount
	minLiquidity  float64 // TRADE_MIN_POOL_LIQUIDITY, whole NEAR
}

// NewRecorder creates a new rate recorder.
func NewRecorder(refresher *pool.Refresher, repo *Repository, meta *tokenmeta.Cache, em *events.Manager, quoteToken dex.TokenAccount, minLiquidity float64, log zerolog.Logger) *Recorder {
	return &Recorder{
		refresher:    refresher,
		repo:         repo,
		meta:         meta,
		events:       em,
		quoteToken:   quoteToken,
		minLiquidity: minLiquidity,
		log:          log.With().Str("component", "rate_recorder").Logger(),
	}
}

// referenceInput returns the reference input amount for rate sampling:
// max(TRADE_MIN_POOL_LIQUIDITY / 10, 1) whole quote-token units (spec.md
// §4.4 step 3).
func (rec *Recorder) referenceInput() float64 {
	v := rec.minLiquidity / 10
	if v < 1 {
		v = 1
	}
	return v
}

// Tick loads pools, builds a fresh graph, estimates rates to every
// bidirectionally reachable goal, and batch-inserts the results.
func (rec *Recorder) Tick(ctx context.Context) error {
	pools, err := rec.refresher.RefreshAndPersist(ctx)
	if err != nil {
		return fmt.Errorf("refresh pools: %w", err)
	}

	list := dex.NewPoolInfoList(pools)
	tg := graph.Build(list)
	goals := tg.UpdatePaths(rec.quoteToken)

	quoteDecimals, err := rec.meta.Decimals(ctx, rec.quoteToken)
	if err != nil {
		return fmt.Errorf("lookup quote token decimals: %w", err)
	}

	refInputWhole := rec.referenceInput()
	refInputSmallest := decimal.NewFromFloat(refInputWhole).Shift(int32(quoteDecimals)).BigInt()

	estimates := tg.ListValuesWithPath(refInputSmallest, rec.quoteToken, goals)

	now := time.Now().UTC()
	rates := make([]Rate, 0, len(estimates))
	for _, est := range estimates {
		baseDecimals, err := rec.meta.Decimals(ctx, est.Goal)
		if err != nil {
			rec.log.Warn().Err(err).Str("token", string(est.Goal)).Msg("skipping rate, no decimals")
			continue
		}

		rawRate := decimal.NewFromBigInt(est.EstimatedOut, 0)
		rateCalcNear := rawRate.Shift(-int32(baseDecimals))

		rates = append(rates, Rate{
			Base:         est.Goal,
			Quote:        rec.quoteToken,
			RawRate:      rawRate,
			Decimals:     baseDecimals,
			RateCalcNear: rateCalcNear,
			SwapPath:     est.Path,
			RecordedAt:   now,
		})
	}

	if err := rec.repo.InsertBatch(rates); err != nil {
		rec.events.EmitError("rate", err, nil)
		return fmt.Errorf("insert rate batch: %w", err)
	}

	rec.events.Emit(events.RateRecorded, "rate", map[string]interface{}{
		"rate_count": len(rates),
	})

	return nil
}
