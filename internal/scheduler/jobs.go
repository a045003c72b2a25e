package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/evaluation"
	"github.com/nearswap/agent/internal/events"
	"github.com/nearswap/agent/internal/graph"
	"github.com/nearswap/agent/internal/harvest"
	"github.com/nearswap/agent/internal/pool"
	"github.com/nearswap/agent/internal/portfolio"
	"github.com/nearswap/agent/internal/predictor"
	"github.com/nearswap/agent/internal/rate"
	"github.com/nearswap/agent/internal/strategy"
	"github.com/nearswap/agent/internal/tokenmeta"
	"github.com/nearswap/agent/pkg/formulas"
)

// RecordRatesJob runs C-RATE's tick: refresh the pool snapshot and record
// a fresh exchange rate to every reachable token (spec.md §5, task
// run_record_rates).
type RecordRatesJob struct {
	recorder *rate.Recorder
}

// NewRecordRatesJob creates a new record_rates job.
func NewRecordRatesJob(recorder *rate.Recorder) *RecordRatesJob {
	return &RecordRatesJob{recorder: recorder}
}

func (j *RecordRatesJob) Name() string { return "record_rates" }

func (j *RecordRatesJob) Run() error {
	return j.recorder.Tick(context.Background())
}

// TradeJob runs C-EVAL's evaluation pass followed by C-EXEC's strategy
// decision and execution and finally C-HARV (spec.md §5, task run_trade).
// Portfolio state is owned by this job alone, matching the "portfolio
// state is owned by the executor task; no other task reads or writes it"
// ordering guarantee.
type TradeJob struct {
	client     dex.Client
	accountID  dex.TokenAccount
	quoteToken dex.TokenAccount

	pools      *pool.Repository
	meta       *tokenmeta.Cache
	rates      *rate.Repository
	periods    *evaluation.PeriodRepository
	evaluator  *evaluation.Evaluator
	portRepo   *portfolio.Repository
	state      *portfolio.State
	harvestCtl *harvest.Controller
	predictor  predictor.Predictor
	events     *events.Manager
	log        zerolog.Logger

	rebalanceThreshold float64
	historyLength      int
}

// TradeJobConfig bundles TradeJob's collaborators and tunables.
type TradeJobConfig struct {
	Client     dex.Client
	AccountID  dex.TokenAccount
	QuoteToken dex.TokenAccount

	Pools      *pool.Repository
	Meta       *tokenmeta.Cache
	Rates      *rate.Repository
	Periods    *evaluation.PeriodRepository
	Evaluator  *evaluation.Evaluator
	PortRepo   *portfolio.Repository
	State      *portfolio.State
	HarvestCtl *harvest.Controller
	Predictor  predictor.Predictor
	Events     *events.Manager

	RebalanceThreshold float64
	HistoryLength      int
}

// NewTradeJob creates a new trade job.
func NewTradeJob(cfg TradeJobConfig, log zerolog.Logger) *TradeJob {
	historyLength := cfg.HistoryLength
	if historyLength <= 0 {
		historyLength = 30
	}
	return &TradeJob{
		client:             cfg.Client,
		accountID:          cfg.AccountID,
		quoteToken:         cfg.QuoteToken,
		pools:              cfg.Pools,
		meta:               cfg.Meta,
		rates:              cfg.Rates,
		periods:            cfg.Periods,
		evaluator:          cfg.Evaluator,
		portRepo:           cfg.PortRepo,
		state:              cfg.State,
		harvestCtl:         cfg.HarvestCtl,
		predictor:          cfg.Predictor,
		events:             cfg.Events,
		rebalanceThreshold: cfg.RebalanceThreshold,
		historyLength:      historyLength,
		log:                log.With().Str("component", "trade_job").Logger(),
	}
}

func (j *TradeJob) Name() string { return "trade" }

func (j *TradeJob) Run() error {
	ctx := context.Background()

	if _, err := j.evaluator.EvaluatePending(ctx); err != nil {
		j.log.Warn().Err(err).Msg("prediction evaluation failed, proceeding with prior confidence")
	}

	pools, err := j.pools.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("trade: load latest pool snapshot: %w", err)
	}
	tg := graph.Build(pools)
	goals := tg.UpdatePaths(j.quoteToken)

	signals, forecasts, err := j.buildSignals(ctx, goals)
	if err != nil {
		return fmt.Errorf("trade: build signals: %w", err)
	}
	if len(signals) == 0 {
		j.log.Info().Msg("no tradeable signals this tick, holding")
		return nil
	}

	if err := j.evaluator.RecordForecasts(forecasts); err != nil {
		j.log.Warn().Err(err).Msg("failed to record forecasts for future evaluation")
	}

	confidence := j.rollingConfidence(signals)

	valuesNear, _, err := j.valuesPerToken(goals)
	if err != nil {
		return fmt.Errorf("trade: compute per-token values: %w", err)
	}
	totalValueNear, _, err := j.state.ValueNear(j.rates, j.quoteToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("trade: compute total portfolio value: %w", err)
	}

	currentWeights := strategy.CurrentWeights(j.state, valuesNear, j.quoteToken)
	decision := strategy.Decide(signals, confidence, currentWeights, j.rebalanceThreshold)

	j.events.Emit(events.RebalanceDecided, "strategy", map[string]interface{}{
		"action":      string(decision.Action.Kind),
		"l1_distance": decision.L1Distance,
	})

	if decision.Action.Kind == portfolio.ActionRebalance {
		executor := strategy.NewExecutor(j.client, j.accountID, tg, j.state, j.portRepo, j.events, j.quoteToken, j.log)
		if err := executor.Execute(ctx, decision.Action.TargetWeights, valuesNear, totalValueNear); err != nil {
			return fmt.Errorf("trade: execute rebalance: %w", err)
		}
	}

	if err := j.recordSnapshot(); err != nil {
		j.log.Warn().Err(err).Msg("failed to persist portfolio snapshot")
	}

	if err := j.runHarvest(ctx); err != nil {
		j.log.Error().Err(err).Msg("harvest sequence failed")
	}

	return nil
}

// buildSignals calls the predictor for every reachable goal token,
// pairing each prediction with the recent rate series used both as the
// predictor's input history and as the risk-parity volatility proxy.
func (j *TradeJob) buildSignals(ctx context.Context, goals []dex.TokenAccount) ([]strategy.TokenSignal, []evaluation.Forecast, error) {
	var signals []strategy.TokenSignal
	var forecasts []evaluation.Forecast

	for _, token := range goals {
		series, err := j.rates.RecentSeries(token, j.quoteToken, j.historyLength)
		if err != nil {
			return nil, nil, fmt.Errorf("load rate history for %s: %w", token, err)
		}
		if len(series) < 2 {
			continue
		}

		now := time.Now().UTC()
		history := make([]predictor.Sample, len(series))
		for i, pt := range series {
			history[i] = predictor.Sample{Timestamp: pt.RecordedAt, Value: pt.RateNear}
		}

		forecastUntil := now.Add(24 * time.Hour)
		result, err := j.predictor.Predict(ctx, history, forecastUntil)
		if err != nil {
			j.log.Warn().Err(err).Str("token", string(token)).Msg("predictor failed, excluding token from this tick")
			continue
		}
		if len(result.Forecasts) == 0 {
			continue
		}

		last := result.Forecasts[len(result.Forecasts)-1]
		current := series[len(series)-1].RateNear
		expectedReturn := 0.0
		if !current.IsZero() {
			expectedReturn, _ = last.Value.Sub(current).Div(current).Float64()
		}

		rawSeries := make([]float64, len(series))
		for i, pt := range series {
			rawSeries[i], _ = pt.RateNear.Float64()
		}

		signals = append(signals, strategy.TokenSignal{
			Token:           token,
			ExpectedReturn:  expectedReturn,
			RecentRatesNear: rawSeries,
		})
		forecasts = append(forecasts, evaluation.Forecast{
			Token:          token,
			PredictedPrice: last.Value,
			ForecastUntil:  forecastUntil,
		})
	}

	return signals, forecasts, nil
}

// rollingConfidence averages each signalled token's rolling confidence
// (spec.md §4.5 step 4), defaulting to 0 (risk-parity only) for tokens
// with too little evaluation history.
func (j *TradeJob) rollingConfidence(signals []strategy.TokenSignal) float64 {
	if len(signals) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range signals {
		metrics, ok, err := j.evaluator.ComputeRollingMetrics(s.Token)
		if err != nil || !ok {
			continue
		}
		total += j.evaluator.Confidence(metrics)
	}
	return total / float64(len(signals))
}

// valuesPerToken values every held token at its most recently recorded
// rate for use by the executor's rebalance split.
func (j *TradeJob) valuesPerToken(goals []dex.TokenAccount) (map[dex.TokenAccount]decimal.Decimal, []dex.TokenAccount, error) {
	values := make(map[dex.TokenAccount]decimal.Decimal, len(j.state.Holdings))
	var skipped []dex.TokenAccount
	asOf := time.Now().UTC()

	for token, h := range j.state.Holdings {
		if h.Balance.IsZero() {
			continue
		}
		r, ok, err := j.rates.LatestBefore(token, j.quoteToken, asOf)
		if err != nil {
			return nil, nil, fmt.Errorf("look up rate for %s: %w", token, err)
		}
		if !ok {
			skipped = append(skipped, token)
			continue
		}
		values[token] = h.Balance.Mul(r.RateCalcNear)
	}

	return values, skipped, nil
}

// recordSnapshot persists a portfolio snapshot and, when no
// EvaluationPeriod exists yet (first run), establishes one as the V_0
// baseline. A harvest does not start a new period.
func (j *TradeJob) recordSnapshot() error {
	asOf := time.Now().UTC()
	snap, err := j.state.Snapshot(asOf.Format("2006-01-02"), j.rates, j.quoteToken, asOf)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	if err := j.portRepo.InsertSnapshot(snap, j.state.RealizedPnL, asOf); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	payload := map[string]interface{}{
		"total_value_near": snap.TotalValueNear.String(),
	}
	if history, err := j.portRepo.RecentSnapshotValues(90); err != nil {
		j.log.Warn().Err(err).Msg("failed to load snapshot history for drawdown")
	} else if dd := formulas.CalculateMaxDrawdown(history); dd != nil {
		payload["max_drawdown_90"] = *dd
	}
	j.events.Emit(events.PortfolioSnapshot, "portfolio", payload)

	if _, ok, err := j.periods.Latest(); err != nil {
		return fmt.Errorf("load latest evaluation period: %w", err)
	} else if !ok {
		if err := j.periods.StartNew(uuid.NewString(), snap.TotalValueNear, asOf); err != nil {
			return fmt.Errorf("start initial evaluation period: %w", err)
		}
	}

	return nil
}

// runHarvest consults C-HARV after execution (spec.md §4.7 "Harvest
// interaction").
func (j *TradeJob) runHarvest(ctx context.Context) error {
	period, ok, err := j.periods.Latest()
	if err != nil {
		return fmt.Errorf("load latest evaluation period: %w", err)
	}
	if !ok {
		return nil
	}

	currentValueNear, _, err := j.state.ValueNear(j.rates, j.quoteToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("compute current value for harvest trigger: %w", err)
	}

	return j.harvestCtl.MaybeHarvest(ctx, period.InitialValueNear, currentValueNear)
}
