// Package rate implements C-RATE: recording exchange rates for every
// reachable token from the quote token, and persisting the swap path used
// to derive each one (spec.md §4.4).
package rate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/database/repositories"
	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/graph"
)

// Repository persists token_rates rows.
type Repository struct {
	*repositories.BaseRepository
}

// NewRepository creates a new rate repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "rate").Logger()),
	}
}

// Rate is a persisted exchange-rate row (spec.md §3). RawRate is the
// output amount in the base token's smallest units for RecordedAt's
// reference input; decimals lets callers recover the human-readable price
// via RawRate / 10^Decimals.
type Rate struct {
	Base         dex.TokenAccount
	Quote        dex.TokenAccount
	RawRate      decimal.Decimal
	Decimals     uint8
	RateCalcNear decimal.Decimal
	SwapPath     graph.Path
	RecordedAt   time.Time
}

// InsertBatch writes every rate under one transaction (spec.md §4.2/§6:
// "inserts are batched under one transaction").
func (r *Repository) InsertBatch(rates []Rate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := r.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin rate batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO token_rates (base, quote, raw_rate, decimals, rate_calc_near, swap_path_json, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare rate insert: %w", err)
	}
	defer stmt.Close()

	for _, rt := range rates {
		pathJSON, err := json.Marshal(rt.SwapPath)
		if err != nil {
			return fmt.Errorf("marshal swap path for %s: %w", rt.Base, err)
		}
		if _, err := stmt.Exec(
			string(rt.Base), string(rt.Quote),
			rt.RawRate.String(), rt.Decimals, rt.RateCalcNear.String(),
			string(pathJSON), rt.RecordedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert rate for %s: %w", rt.Base, err)
		}
	}

	return tx.Commit()
}

// ClosestTo returns the token_rates row for (base, quote) whose
// recorded_at is nearest to target, within the given tolerance window.
// Reports false if none qualifies.
func (r *Repository) ClosestTo(base, quote dex.TokenAccount, target time.Time, tolerance time.Duration) (Rate, bool, error) {
	lower := target.Add(-tolerance).Unix()
	upper := target.Add(tolerance).Unix()

	row := r.DB().QueryRow(`
		SELECT base, quote, raw_rate, decimals, rate_calc_near, swap_path_json, recorded_at
		FROM token_rates
		WHERE base = ? AND quote = ? AND recorded_at BETWEEN ? AND ?
		ORDER BY ABS(recorded_at - ?) ASC
		LIMIT 1
	`, string(base), string(quote), lower, upper, target.Unix())

	var (
		baseStr, quoteStr, rawRateStr, rateCalcStr, pathJSON string
		decimals                                              uint8
		recordedAt                                             int64
	)
	if err := row.Scan(&baseStr, &quoteStr, &rawRateStr, &decimals, &rateCalcStr, &pathJSON, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return Rate{}, false, nil
		}
		return Rate{}, false, fmt.Errorf("query closest rate for %s/%s: %w", base, quote, err)
	}

	rawRate, err := decimal.NewFromString(rawRateStr)
	if err != nil {
		return Rate{}, false, fmt.Errorf("parse raw_rate: %w", err)
	}
	rateCalc, err := decimal.NewFromString(rateCalcStr)
	if err != nil {
		return Rate{}, false, fmt.Errorf("parse rate_calc_near: %w", err)
	}
	var path graph.Path
	if err := json.Unmarshal([]byte(pathJSON), &path); err != nil {
		return Rate{}, false, fmt.Errorf("parse swap_path_json: %w", err)
	}

	return Rate{
		Base:         dex.TokenAccount(baseStr),
		Quote:        dex.TokenAccount(quoteStr),
		RawRate:      rawRate,
		Decimals:     decimals,
		RateCalcNear: rateCalc,
		SwapPath:     path,
		RecordedAt:   time.Unix(recordedAt, 0).UTC(),
	}, true, nil
}

// SeriesPoint is one (timestamp, rate) observation returned by RecentSeries.
type SeriesPoint struct {
	RecordedAt time.Time
	RateNear   decimal.Decimal
}

// RecentSeries returns up to limit of the most recently recorded
// (timestamp, rate_calc_near) observations for (base, quote), oldest
// first, for use as a volatility proxy by the strategy layer's
// risk-parity weighting and as predictor input history.
func (r *Repository) RecentSeries(base, quote dex.TokenAccount, limit int) ([]SeriesPoint, error) {
	rows, err := r.DB().Query(`
		SELECT rate_calc_near, recorded_at FROM (
			SELECT rate_calc_near, recorded_at FROM token_rates
			WHERE base = ? AND quote = ?
			ORDER BY recorded_at DESC
			LIMIT ?
		) ORDER BY recorded_at ASC
	`, string(base), string(quote), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent rate series for %s/%s: %w", base, quote, err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var s string
		var recordedAt int64
		if err := rows.Scan(&s, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan recent rate: %w", err)
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse recent rate: %w", err)
		}
		out = append(out, SeriesPoint{RecordedAt: time.Unix(recordedAt, 0).UTC(), RateNear: v})
	}
	return out, rows.Err()
}

// LatestBefore returns the most recently recorded rate for (base, quote)
// at or before asOf, used by C-PORT's liquidate_all (spec.md §4.6).
func (r *Repository) LatestBefore(base, quote dex.TokenAccount, asOf time.Time) (Rate, bool, error) {
	row := r.DB().QueryRow(`
		SELECT base, quote, raw_rate, decimals, rate_calc_near, swap_path_json, recorded_at
		FROM token_rates
		WHERE base = ? AND quote = ? AND recorded_at <= ?
		ORDER BY recorded_at DESC
		LIMIT 1
	`, string(base), string(quote), asOf.Unix())

	var (
		baseStr, quoteStr, rawRateStr, rateCalcStr, pathJSON string
		decimals                                              uint8
		recordedAt                                             int64
	)
	if err := row.Scan(&baseStr, &quoteStr, &rawRateStr, &decimals, &rateCalcStr, &pathJSON, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return Rate{}, false, nil
		}
		return Rate{}, false, fmt.Errorf("query latest rate for %s/%s: %w", base, quote, err)
	}

	rawRate, err := decimal.NewFromString(rawRateStr)
	if err != nil {
		return Rate{}, false, err
	}
	rateCalc, err := decimal.NewFromString(rateCalcStr)
	if err != nil {
		return Rate{}, false, err
	}

	return Rate{
		Base:         dex.TokenAccount(baseStr),
		Quote:        dex.TokenAccount(quoteStr),
		RawRate:      rawRate,
		Decimals:     decimals,
		RateCalcNear: rateCalc,
		RecordedAt:   time.Unix(recordedAt, 0).UTC(),
	}, true, nil
}
