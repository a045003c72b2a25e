package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/events"
	"github.com/nearswap/agent/internal/rate"
)

// Forecast is one opaque-predictor output for a single token (spec.md §6,
// "Prediction interface").
type Forecast struct {
	Token          dex.TokenAccount
	PredictedPrice decimal.Decimal
	ForecastUntil  time.Time
}

// Evaluator runs C-EVAL: recording forecasts, matching them against
// realized rates, and maintaining a rolling confidence scalar per token
// (spec.md §4.5).
type Evaluator struct {
	repo       *Repository
	rates      *rate.Repository
	events     *events.Manager
	log        zerolog.Logger
	quoteToken dex.TokenAccount

	evalTolerance        time.Duration
	accuracyWindow       int
	accuracyMinSamples   int
	mapeExcellent        float64
	mapePoor             float64
	evaluatedRetention   time.Duration
	unevaluatedRetention time.Duration
}

// NewEvaluator creates a new prediction evaluator.
func NewEvaluator(repo *Repository, rates *rate.Repository, em *events.Manager, quoteToken dex.TokenAccount, evalToleranceMinutes, accuracyWindow, accuracyMinSamples int, mapeExcellent, mapePoor float64, evaluatedRetentionDays, unevaluatedRetentionDays int, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		repo:                 repo,
		rates:                rates,
		events:               em,
		quoteToken:           quoteToken,
		evalTolerance:        time.Duration(evalToleranceMinutes) * time.Minute,
		accuracyWindow:       accuracyWindow,
		accuracyMinSamples:   accuracyMinSamples,
		mapeExcellent:        mapeExcellent,
		mapePoor:             mapePoor,
		evaluatedRetention:   time.Duration(evaluatedRetentionDays) * 24 * time.Hour,
		unevaluatedRetention: time.Duration(unevaluatedRetentionDays) * 24 * time.Hour,
		log:                  log.With().Str("component", "prediction_evaluator").Logger(),
	}
}

// RecordForecasts persists a fresh batch of forecasts at the top of a
// strategy run, each carrying a 24h target_time (spec.md §4.5 step 1).
func (e *Evaluator) RecordForecasts(forecasts []Forecast) error {
	periodID := uuid.NewString()
	now := time.Now().UTC()

	for _, f := range forecasts {
		rec := PredictionRecord{
			EvaluationPeriodID: periodID,
			Token:              f.Token,
			QuoteToken:         e.quoteToken,
			PredictedPrice:     f.PredictedPrice,
			PredictionTime:     now,
			TargetTime:         f.ForecastUntil,
		}
		if err := e.repo.InsertPending(rec); err != nil {
			return fmt.Errorf("record forecast for %s: %w", f.Token, err)
		}
	}

	e.events.Emit(events.ForecastRecorded, "evaluation", map[string]interface{}{
		"evaluation_period_id": periodID,
		"forecast_count":       len(forecasts),
	})

	return nil
}

// EvaluatePending matches every pending prediction whose target_time has
// elapsed against the closest recorded rate within tolerance, computing
// MAPE and marking it evaluated. Predictions with no matching rate within
// tolerance are left pending for a future tick to retry (spec.md §4.5
// step 2).
func (e *Evaluator) EvaluatePending(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-e.evalTolerance)
	due, err := e.repo.PendingDueBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("list due predictions: %w", err)
	}

	evaluated := 0
	for _, rec := range due {
		r, ok, err := e.rates.ClosestTo(rec.Token, rec.QuoteToken, rec.TargetTime, e.evalTolerance)
		if err != nil {
			e.log.Warn().Err(err).Str("token", string(rec.Token)).Msg("failed to look up closest rate, leaving prediction pending")
			continue
		}
		if !ok {
			continue
		}

		actual := r.RateCalcNear
		absErr := rec.PredictedPrice.Sub(actual).Abs()
		mape := 0.0
		if !actual.IsZero() {
			mape, _ = absErr.Div(actual).Mul(decimal.NewFromInt(100)).Float64()
		}

		if err := e.repo.MarkEvaluated(rec.ID, actual, mape, absErr, time.Now().UTC()); err != nil {
			return evaluated, fmt.Errorf("mark evaluated for %s: %w", rec.Token, err)
		}
		evaluated++

		e.events.Emit(events.PredictionEvaluated, "evaluation", map[string]interface{}{
			"token": string(rec.Token),
			"mape":  mape,
		})
	}

	if _, err := e.repo.MarkExpired(cutoff.Add(-e.evalTolerance)); err != nil {
		e.log.Warn().Err(err).Msg("failed to mark stale predictions expired")
	}

	return evaluated, nil
}

// RollingMetrics is the rolling accuracy summary computed over a token's
// most recent evaluated predictions (spec.md §4.5 step 3).
type RollingMetrics struct {
	Token       dex.TokenAccount
	SampleCount int
	RollingMAPE float64
	HitRate     *float64
}

// ComputeRollingMetrics takes the accuracy-window most recent evaluated
// rows for token, requires at least accuracyMinSamples of them, and
// computes rolling MAPE via gonum/stat and a directional hit-rate using
// each row's predicted-vs-prior-actual direction.
func (e *Evaluator) ComputeRollingMetrics(token dex.TokenAccount) (RollingMetrics, bool, error) {
	recs, err := e.repo.RecentEvaluated(token, e.accuracyWindow)
	if err != nil {
		return RollingMetrics{}, false, fmt.Errorf("load recent evaluated predictions for %s: %w", token, err)
	}
	if len(recs) < e.accuracyMinSamples {
		return RollingMetrics{}, false, nil
	}

	mapeValues := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.MAPE != nil {
			mapeValues = append(mapeValues, *r.MAPE)
		}
	}
	if len(mapeValues) == 0 {
		return RollingMetrics{}, false, nil
	}

	rollingMAPE := stat.Mean(mapeValues, nil)

	hitRate, hasHitRate := directionalHitRate(recs)

	metrics := RollingMetrics{
		Token:       token,
		SampleCount: len(mapeValues),
		RollingMAPE: rollingMAPE,
	}
	if hasHitRate {
		metrics.HitRate = &hitRate
	}

	return metrics, true, nil
}

// directionalHitRate compares each record's predicted-vs-prior-actual
// direction against the realized direction, recs ordered most-recent
// first. Needs at least 2 consecutive evaluated records to have a prior
// actual to compare against.
func directionalHitRate(recs []PredictionRecord) (float64, bool) {
	hits, total := 0, 0
	for i := 0; i < len(recs)-1; i++ {
		cur, prior := recs[i], recs[i+1]
		if cur.ActualPrice == nil || prior.ActualPrice == nil {
			continue
		}
		if isDirectionCorrect(cur.PredictedPrice, *prior.ActualPrice, *cur.ActualPrice) {
			hits++
		}
		total++
	}
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

// isDirectionCorrect reports whether the predicted move from prior matches
// the realized move from prior to actual (spec.md §8 round-trip law:
// is_direction_correct(p, p, p) is true — a flat prediction against a flat
// realization always counts as correct).
func isDirectionCorrect(predicted, prior, actual decimal.Decimal) bool {
	predictedDelta := predicted.Sub(prior).Sign()
	actualDelta := actual.Sub(prior).Sign()
	return predictedDelta == actualDelta
}

// Confidence converts a RollingMetrics into the [0, 1] confidence scalar
// spec.md §4.5 step 4 defines: when a hit-rate is available, a MAPE-derived
// component weighted 0.6 plus a directional component weighted 0.4;
// otherwise the MAPE-derived component alone.
func (e *Evaluator) Confidence(m RollingMetrics) float64 {
	mapeConf := mapeToConfidence(m.RollingMAPE, e.mapeExcellent, e.mapePoor)
	if m.HitRate == nil {
		return mapeConf
	}
	dirConf := clamp((*m.HitRate-0.5)*2, 0, 1)
	return 0.6*mapeConf + 0.4*dirConf
}

// mapeToConfidence maps a rolling MAPE to [0, 1]: 0 at poor or worse, 1 at
// excellent or better, linear in between.
func mapeToConfidence(mape, excellent, poor float64) float64 {
	if poor == excellent {
		if mape <= excellent {
			return 1
		}
		return 0
	}
	return clamp((poor-mape)/(poor-excellent), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Retire deletes evaluated predictions older than the configured retention
// and unevaluated predictions older than the shorter unevaluated retention
// (spec.md §4.5 step 5).
func (e *Evaluator) Retire() (int64, error) {
	n, err := e.repo.DeleteRetired(e.evaluatedRetention, e.unevaluatedRetention)
	if err != nil {
		return n, fmt.Errorf("retire old predictions: %w", err)
	}
	return n, nil
}
