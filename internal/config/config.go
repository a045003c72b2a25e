package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the process-wide static configuration: environment
// variables (loaded from .env if present) with built-in defaults, plus the
// few TOML keys applyTOML applies. Runtime overrides live one layer above
// this, in the DB-backed Store.
type Config struct {
	InstanceID string

	DatabasePath string
	LogLevel     string
	DevMode      bool

	QuoteToken string // token account used to denominate portfolio value (wNEAR by default)

	AccountID          string // this agent's own NEAR account id
	ExchangeContractID string // the AMM contract the agent trades against
	PredictorBaseURL   string // base URL of the external forecasting microservice

	RecordRatesCronSchedule string
	TradeCronSchedule       string

	TradeMinPoolLiquidity float64 // whole NEAR
	HarvestIntervalSecs   int64
	HarvestMinAmount      float64 // whole NEAR
	HarvestReserveAmount  float64 // whole NEAR
	HarvestAccountID      string
	HarvestBalanceMult    float64
	TradeAccountReserve   float64 // whole NEAR

	PredictionEvalToleranceMinutes int
	PredictionAccuracyWindow       int
	PredictionAccuracyMinSamples   int
	PredictionMapeExcellent        float64
	PredictionMapePoor             float64

	PortfolioRebalanceThreshold float64

	RPCEndpoints     []RPCEndpointConfig
	RPCRetryLimit    int
	RPCDelayLimit    float64 // seconds
	RPCFluctuation   float64 // in [0, 1)
}

// RPCEndpointConfig describes one configured DEX RPC endpoint.
type RPCEndpointConfig struct {
	URL               string
	Weight            float64
	MaxEndpointRetries int
}

// tomlDefaults mirrors the subset of Config that may be supplied by a TOML
// file; it exists so Load can unmarshal into it without exposing zero-value
// ambiguity on the main Config struct.
type tomlDefaults struct {
	DatabasePath                   *string  `toml:"database_path"`
	LogLevel                       *string  `toml:"log_level"`
	QuoteToken                     *string  `toml:"quote_token"`
	RecordRatesCronSchedule        *string  `toml:"record_rates_cron_schedule"`
	TradeCronSchedule              *string  `toml:"trade_cron_schedule"`
	TradeMinPoolLiquidity          *float64 `toml:"trade_min_pool_liquidity"`
	HarvestIntervalSeconds         *int64   `toml:"harvest_interval_seconds"`
	HarvestMinAmount               *float64 `toml:"harvest_min_amount"`
	HarvestReserveAmount           *float64 `toml:"harvest_reserve_amount"`
	HarvestAccountID               *string  `toml:"harvest_account_id"`
	HarvestBalanceMultiplier       *float64 `toml:"harvest_balance_multiplier"`
	TradeAccountReserve            *float64 `toml:"trade_account_reserve"`
	PredictionEvalToleranceMinutes *int     `toml:"prediction_eval_tolerance_minutes"`
	PredictionAccuracyWindow       *int     `toml:"prediction_accuracy_window"`
	PredictionAccuracyMinSamples   *int     `toml:"prediction_accuracy_min_samples"`
	PredictionMapeExcellent        *float64 `toml:"prediction_mape_excellent"`
	PredictionMapePoor             *float64 `toml:"prediction_mape_poor"`
	PortfolioRebalanceThreshold    *float64 `toml:"portfolio_rebalance_threshold"`
	RPCEndpoints                   []tomlRPCEndpoint `toml:"rpc_endpoints"`
}

// tomlRPCEndpoint is one [[rpc_endpoints]] TOML array-of-tables entry.
type tomlRPCEndpoint struct {
	URL                string  `toml:"url"`
	Weight             float64 `toml:"weight"`
	MaxEndpointRetries int     `toml:"max_endpoint_retries"`
}

// Load reads the TOML file at tomlPath (if it exists), then applies
// environment-variable overrides (loading .env first), and returns the
// resulting static Config. DB-backed overrides are layered on top later via
// Store.Resolve.
func Load(tomlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		InstanceID:              getEnv("AGENT_INSTANCE_ID", "default"),
		DatabasePath:            getEnv("DATABASE_PATH", "./data/agent.db"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		DevMode:                 getEnvAsBool("DEV_MODE", false),
		QuoteToken:              getEnv("QUOTE_TOKEN", "wrap.near"),
		AccountID:               getEnv("AGENT_ACCOUNT_ID", ""),
		ExchangeContractID:      getEnv("EXCHANGE_CONTRACT_ID", "v2.ref-finance.near"),
		PredictorBaseURL:        getEnv("PREDICTOR_BASE_URL", "http://localhost:9000"),
		RecordRatesCronSchedule: getEnv("RECORD_RATES_CRON_SCHEDULE", "0 */15 * * * *"),
		TradeCronSchedule:       getEnv("TRADE_CRON_SCHEDULE", "0 0 0 * * *"),

		TradeMinPoolLiquidity: getEnvAsFloat("TRADE_MIN_POOL_LIQUIDITY", 100),
		HarvestIntervalSecs:   getEnvAsInt64("HARVEST_INTERVAL_SECONDS", 86400),
		HarvestMinAmount:      getEnvAsFloat("HARVEST_MIN_AMOUNT", 10),
		HarvestReserveAmount:  getEnvAsFloat("HARVEST_RESERVE_AMOUNT", 1),
		HarvestAccountID:      getEnv("HARVEST_ACCOUNT_ID", "harvest.near"),
		HarvestBalanceMult:    getEnvAsFloat("HARVEST_BALANCE_MULTIPLIER", 128),
		TradeAccountReserve:   getEnvAsFloat("TRADE_ACCOUNT_RESERVE", 10),

		PredictionEvalToleranceMinutes: getEnvAsInt("PREDICTION_EVAL_TOLERANCE_MINUTES", 30),
		PredictionAccuracyWindow:       getEnvAsInt("PREDICTION_ACCURACY_WINDOW", 20),
		PredictionAccuracyMinSamples:   getEnvAsInt("PREDICTION_ACCURACY_MIN_SAMPLES", 5),
		PredictionMapeExcellent:        getEnvAsFloat("PREDICTION_MAPE_EXCELLENT", 3.0),
		PredictionMapePoor:             getEnvAsFloat("PREDICTION_MAPE_POOR", 15.0),

		PortfolioRebalanceThreshold: getEnvAsFloat("PORTFOLIO_REBALANCE_THRESHOLD", 0.05),

		RPCRetryLimit:  getEnvAsInt("RPC_RETRY_LIMIT", 10),
		RPCDelayLimit:  getEnvAsFloat("RPC_DELAY_LIMIT_SECONDS", 8.0),
		RPCFluctuation: getEnvAsFloat("RPC_FLUCTUATION", 0.25),
	}

	if tomlPath != "" {
		if err := applyTOML(cfg, tomlPath); err != nil {
			return nil, err
		}
	}

	if len(cfg.RPCEndpoints) == 0 {
		cfg.RPCEndpoints = []RPCEndpointConfig{{
			URL:                getEnv("RPC_ENDPOINT_URL", "https://rpc.mainnet.near.org"),
			Weight:             1,
			MaxEndpointRetries: 3,
		}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyTOML reads tomlPath (a missing file is not an error) and applies a
// subset of its keys. quote_token, database_path and harvest_account_id
// are copied only into a field that is still empty; Load gives all three a
// non-empty built-in default, so these three keys have no effect.
// [[rpc_endpoints]] entries are
// applied whenever the Config has no endpoints yet, filling a missing
// weight with 1 and a missing max_endpoint_retries with 3. The other keys
// of tomlDefaults are parsed but not applied.
func applyTOML(cfg *Config, tomlPath string) error {
	data, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read toml config %s: %w", tomlPath, err)
	}

	var defaults tomlDefaults
	if err := toml.Unmarshal(data, &defaults); err != nil {
		return fmt.Errorf("parse toml config %s: %w", tomlPath, err)
	}

	if defaults.HarvestAccountID != nil && cfg.HarvestAccountID == "" {
		cfg.HarvestAccountID = *defaults.HarvestAccountID
	}
	if defaults.QuoteToken != nil && cfg.QuoteToken == "" {
		cfg.QuoteToken = *defaults.QuoteToken
	}
	if defaults.DatabasePath != nil && cfg.DatabasePath == "" {
		cfg.DatabasePath = *defaults.DatabasePath
	}

	if len(defaults.RPCEndpoints) > 0 && len(cfg.RPCEndpoints) == 0 {
		cfg.RPCEndpoints = make([]RPCEndpointConfig, len(defaults.RPCEndpoints))
		for i, e := range defaults.RPCEndpoints {
			maxRetries := e.MaxEndpointRetries
			if maxRetries <= 0 {
				maxRetries = 3
			}
			weight := e.Weight
			if weight <= 0 {
				weight = 1
			}
			cfg.RPCEndpoints[i] = RPCEndpointConfig{URL: e.URL, Weight: weight, MaxEndpointRetries: maxRetries}
		}
	}

	return nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.QuoteToken == "" {
		return fmt.Errorf("QUOTE_TOKEN is required")
	}
	if c.AccountID == "" {
		return fmt.Errorf("AGENT_ACCOUNT_ID is required")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
