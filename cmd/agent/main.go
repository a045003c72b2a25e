package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nearswap/agent/internal/clients/nearrpc"
	"github.com/nearswap/agent/internal/clients/predictorhttp"
	"github.com/nearswap/agent/internal/config"
	"github.com/nearswap/agent/internal/database"
	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/evaluation"
	"github.com/nearswap/agent/internal/events"
	"github.com/nearswap/agent/internal/harvest"
	"github.com/nearswap/agent/internal/pool"
	"github.com/nearswap/agent/internal/portfolio"
	"github.com/nearswap/agent/internal/rate"
	"github.com/nearswap/agent/internal/rpc"
	"github.com/nearswap/agent/internal/scheduler"
	"github.com/nearswap/agent/internal/tokenmeta"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Pretty: os.Getenv("DEV_MODE") == "true",
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting trading agent")

	cfg, err := config.Load(os.Getenv("AGENT_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	em := events.NewManager(log)

	endpoints := make([]rpc.EndpointConfig, len(cfg.RPCEndpoints))
	for i, e := range cfg.RPCEndpoints {
		endpoints[i] = rpc.EndpointConfig{URL: e.URL, Weight: e.Weight, MaxEndpointRetries: e.MaxEndpointRetries}
	}
	transport := rpc.NewTransport(endpoints, cfg.RPCRetryLimit, time.Duration(cfg.RPCDelayLimit*float64(time.Second)), cfg.RPCFluctuation, log)

	quoteToken := dex.TokenAccount(cfg.QuoteToken)
	accountID := dex.TokenAccount(cfg.AccountID)

	// signer is left nil: transaction signing is delegated to an
	// operator-supplied key-management layer outside this module
	// (spec.md §1). Record-rates ticks need only view calls and run fine
	// without one; trade ticks will surface a clear error from any
	// mutating call until a Signer is wired in.
	nearClient := nearrpc.NewClient(transport, nil, cfg.ExchangeContractID, cfg.AccountID, log)
	wallet := nearrpc.NewWallet(nearClient, quoteToken)
	forecaster := predictorhttp.NewClient(cfg.PredictorBaseURL, log)

	poolRepo := pool.NewRepository(db.Conn(), log)
	refresher := pool.NewRefresher(nearClient, poolRepo, em, log)

	rateRepo := rate.NewRepository(db.Conn(), log)
	meta := tokenmeta.NewCache(db.Conn(), nearClient, log)
	recorder := rate.NewRecorder(refresher, rateRepo, meta, em, quoteToken, cfg.TradeMinPoolLiquidity, log)

	evalRepo := evaluation.NewRepository(db.Conn(), log)
	periodRepo := evaluation.NewPeriodRepository(db.Conn(), log)
	evaluator := evaluation.NewEvaluator(
		evalRepo, rateRepo, em, quoteToken,
		cfg.PredictionEvalToleranceMinutes, cfg.PredictionAccuracyWindow, cfg.PredictionAccuracyMinSamples,
		cfg.PredictionMapeExcellent, cfg.PredictionMapePoor,
		evaluatedRetentionDays, unevaluatedRetentionDays,
		log,
	)

	portRepo := portfolio.NewRepository(db.Conn(), log)
	state := portfolio.NewState(decimal.Zero)

	harvestCtl := harvest.NewController(nearClient, wallet, accountID, portRepo, em, harvest.Config{
		MinAmountNear:     decimal.NewFromFloat(cfg.HarvestMinAmount),
		ReserveAmountNear: decimal.NewFromFloat(cfg.HarvestReserveAmount),
		Interval:          time.Duration(cfg.HarvestIntervalSecs) * time.Second,
		AccountID:         cfg.HarvestAccountID,
		QuoteToken:        quoteToken,
	}, log)

	sched := scheduler.New(log)

	if err := sched.AddJob(cfg.RecordRatesCronSchedule, scheduler.NewRecordRatesJob(recorder)); err != nil {
		log.Fatal().Err(err).Msg("failed to register record_rates job")
	}

	tradeJob := scheduler.NewTradeJob(scheduler.TradeJobConfig{
		Client:             nearClient,
		AccountID:          accountID,
		QuoteToken:         quoteToken,
		Pools:              poolRepo,
		Meta:               meta,
		Rates:              rateRepo,
		Periods:            periodRepo,
		Evaluator:          evaluator,
		PortRepo:           portRepo,
		State:              state,
		HarvestCtl:         harvestCtl,
		Predictor:          forecaster,
		Events:             em,
		RebalanceThreshold: cfg.PortfolioRebalanceThreshold,
	}, log)
	if err := sched.AddJob(cfg.TradeCronSchedule, tradeJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register trade job")
	}

	sched.Start()
	defer sched.Stop()

	log.Info().Str("instance", cfg.InstanceID).Msg("trading agent started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
}

// evaluatedRetentionDays/unevaluatedRetentionDays bound how long
// prediction_records rows survive after they're resolved (spec.md §4.5
// step 5); unevaluated rows are pruned sooner since a prediction that
// never matched a recorded rate carries no useful signal.
const (
	evaluatedRetentionDays   = 90
	unevaluatedRetentionDays = 7
)
