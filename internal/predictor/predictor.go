// Package predictor defines the opaque price-prediction boundary
// (spec.md §1/§6): the agent calls a single async predict method and
// never inspects the model's internals.
package predictor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one (timestamp, value) pair of historical price history fed
// to the predictor.
type Sample struct {
	Timestamp time.Time
	Value     decimal.Decimal
}

// ConfidenceInterval is one named interval band around a forecast value,
// e.g. a 95% interval. Implemented as a strict struct rather than the
// substring-matched string-keyed map the spec's open question flags as
// fragile (spec.md §9): Level is the nominal coverage (0.95 for a 95%
// interval) rather than a free-form key like "lower"/"0.025".
type ConfidenceInterval struct {
	Level decimal.Decimal
	Lower decimal.Decimal
	Upper decimal.Decimal
}

// Forecast is one predicted point plus its optional confidence bands.
type Forecast struct {
	Timestamp           time.Time
	Value               decimal.Decimal
	ConfidenceIntervals []ConfidenceInterval
}

// Result is the opaque predictor's full response to one predict call
// (spec.md §6).
type Result struct {
	Forecasts []Forecast
	Metrics   map[string]decimal.Decimal
}

// Predictor is the external collaborator producing price forecasts. The
// horizon is implied by forecastUntil relative to the last history
// sample; implementations derive their own internal step size from the
// interval between the last two history timestamps (spec.md §6).
type Predictor interface {
	Predict(ctx context.Context, history []Sample, forecastUntil time.Time) (Result, error)
}
