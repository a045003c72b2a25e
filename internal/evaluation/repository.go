// Package evaluation implements C-EVAL: recording prediction forecasts,
// evaluating them against realized rates, and deriving a rolling
// confidence scalar (spec.md §4.5).
package evaluation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/database/repositories"
	"github.com/nearswap/agent/internal/dex"
)

// Status is a PredictionRecord's lifecycle state (spec.md §3).
type Status string

const (
	StatusPending  Status = "pending"
	StatusEvaluated Status = "evaluated"
	StatusExpired  Status = "expired"
)

// PredictionRecord is a persisted forecast row (spec.md §3).
type PredictionRecord struct {
	ID                 int64
	EvaluationPeriodID string
	Token              dex.TokenAccount
	QuoteToken         dex.TokenAccount
	PredictedPrice     decimal.Decimal
	PredictionTime     time.Time
	TargetTime         time.Time
	ActualPrice        *decimal.Decimal
	MAPE               *float64
	AbsoluteError      *decimal.Decimal
	EvaluatedAt        *time.Time
	Status             Status
}

// Repository persists prediction_records rows.
type Repository struct {
	*repositories.BaseRepository
}

// NewRepository creates a new prediction-record repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "evaluation").Logger()),
	}
}

// InsertPending records a fresh forecast row.
func (r *Repository) InsertPending(rec PredictionRecord) error {
	_, err := r.DB().Exec(`
		INSERT INTO prediction_records
			(evaluation_period_id, token, quote_token, predicted_price, prediction_time, target_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.EvaluationPeriodID, string(rec.Token), string(rec.QuoteToken), rec.PredictedPrice.String(), rec.PredictionTime.Unix(), rec.TargetTime.Unix(), StatusPending)
	if err != nil {
		return fmt.Errorf("insert pending prediction for %s: %w", rec.Token, err)
	}
	return nil
}

// PendingDueBefore returns pending rows whose target_time is at or before
// cutoff (spec.md §4.5: "target_time <= now - tolerance").
func (r *Repository) PendingDueBefore(cutoff time.Time) ([]PredictionRecord, error) {
	rows, err := r.DB().Query(`
		SELECT id, evaluation_period_id, token, quote_token, predicted_price, prediction_time, target_time
		FROM prediction_records
		WHERE status = ? AND target_time <= ?
	`, StatusPending, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("query pending predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		var rec PredictionRecord
		var tokenStr, quoteStr, predictedStr string
		var predictionTime, targetTime int64
		if err := rows.Scan(&rec.ID, &rec.EvaluationPeriodID, &tokenStr, &quoteStr, &predictedStr, &predictionTime, &targetTime); err != nil {
			return nil, fmt.Errorf("scan pending prediction: %w", err)
		}
		predicted, err := decimal.NewFromString(predictedStr)
		if err != nil {
			return nil, fmt.Errorf("parse predicted_price: %w", err)
		}
		rec.Token = dex.TokenAccount(tokenStr)
		rec.QuoteToken = dex.TokenAccount(quoteStr)
		rec.PredictedPrice = predicted
		rec.PredictionTime = time.Unix(predictionTime, 0).UTC()
		rec.TargetTime = time.Unix(targetTime, 0).UTC()
		rec.Status = StatusPending
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkEvaluated fills in actual_price/mape/absolute_error and transitions
// the row to evaluated.
func (r *Repository) MarkEvaluated(id int64, actual decimal.Decimal, mape float64, absErr decimal.Decimal, evaluatedAt time.Time) error {
	_, err := r.DB().Exec(`
		UPDATE prediction_records
		SET actual_price = ?, mape = ?, absolute_error = ?, evaluated_at = ?, status = ?
		WHERE id = ?
	`, actual.String(), mape, absErr.String(), evaluatedAt.Unix(), StatusEvaluated, id)
	if err != nil {
		return fmt.Errorf("mark prediction %d evaluated: %w", id, err)
	}
	return nil
}

// MarkExpired transitions pending rows older than cutoff to expired.
func (r *Repository) MarkExpired(cutoff time.Time) (int64, error) {
	result, err := r.DB().Exec(`
		UPDATE prediction_records SET status = ? WHERE status = ? AND target_time < ?
	`, StatusExpired, StatusPending, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("mark predictions expired: %w", err)
	}
	return result.RowsAffected()
}

// RecentEvaluated returns the most recent `limit` evaluated rows for
// token, most-recent first.
func (r *Repository) RecentEvaluated(token dex.TokenAccount, limit int) ([]PredictionRecord, error) {
	rows, err := r.DB().Query(`
		SELECT id, evaluation_period_id, token, quote_token, predicted_price, prediction_time, target_time, actual_price, mape, absolute_error, evaluated_at
		FROM prediction_records
		WHERE token = ? AND status = ?
		ORDER BY evaluated_at DESC
		LIMIT ?
	`, string(token), StatusEvaluated, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent evaluated predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		rec, err := scanEvaluated(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentEvaluatedAll returns the most recent `limit` evaluated rows across
// every token, most-recent first (used for the rolling-confidence window
// when it is computed portfolio-wide rather than per-token).
func (r *Repository) RecentEvaluatedAll(limit int) ([]PredictionRecord, error) {
	rows, err := r.DB().Query(`
		SELECT id, evaluation_period_id, token, quote_token, predicted_price, prediction_time, target_time, actual_price, mape, absolute_error, evaluated_at
		FROM prediction_records
		WHERE status = ?
		ORDER BY evaluated_at DESC
		LIMIT ?
	`, StatusEvaluated, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent evaluated predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		rec, err := scanEvaluated(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanEvaluated(rows *sql.Rows) (PredictionRecord, error) {
	var rec PredictionRecord
	var tokenStr, quoteStr, predictedStr string
	var predictionTime, targetTime int64
	var actualStr, absErrStr sql.NullString
	var mape sql.NullFloat64
	var evaluatedAt sql.NullInt64

	if err := rows.Scan(&rec.ID, &rec.EvaluationPeriodID, &tokenStr, &quoteStr, &predictedStr, &predictionTime, &targetTime, &actualStr, &mape, &absErrStr, &evaluatedAt); err != nil {
		return rec, fmt.Errorf("scan evaluated prediction: %w", err)
	}

	predicted, err := decimal.NewFromString(predictedStr)
	if err != nil {
		return rec, fmt.Errorf("parse predicted_price: %w", err)
	}

	rec.Token = dex.TokenAccount(tokenStr)
	rec.QuoteToken = dex.TokenAccount(quoteStr)
	rec.PredictedPrice = predicted
	rec.PredictionTime = time.Unix(predictionTime, 0).UTC()
	rec.TargetTime = time.Unix(targetTime, 0).UTC()
	rec.Status = StatusEvaluated

	if actualStr.Valid {
		v, err := decimal.NewFromString(actualStr.String)
		if err == nil {
			rec.ActualPrice = &v
		}
	}
	if mape.Valid {
		v := mape.Float64
		rec.MAPE = &v
	}
	if absErrStr.Valid {
		v, err := decimal.NewFromString(absErrStr.String)
		if err == nil {
			rec.AbsoluteError = &v
		}
	}
	if evaluatedAt.Valid {
		t := time.Unix(evaluatedAt.Int64, 0).UTC()
		rec.EvaluatedAt = &t
	}

	return rec, nil
}

// DeleteRetired deletes evaluated rows older than evaluatedRetention and
// unevaluated (pending/expired) rows whose target_time is older than
// unevaluatedRetention (spec.md §4.5 retention).
func (r *Repository) DeleteRetired(evaluatedRetention, unevaluatedRetention time.Duration) (int64, error) {
	now := time.Now().UTC()

	res1, err := r.DB().Exec(`DELETE FROM prediction_records WHERE status = ? AND evaluated_at < ?`,
		StatusEvaluated, now.Add(-evaluatedRetention).Unix())
	if err != nil {
		return 0, fmt.Errorf("delete retired evaluated predictions: %w", err)
	}
	n1, _ := res1.RowsAffected()

	res2, err := r.DB().Exec(`DELETE FROM prediction_records WHERE status != ? AND target_time < ?`,
		StatusEvaluated, now.Add(-unevaluatedRetention).Unix())
	if err != nil {
		return n1, fmt.Errorf("delete retired unevaluated predictions: %w", err)
	}
	n2, _ := res2.RowsAffected()

	return n1 + n2, nil
}
