package evaluation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/database/repositories"
)

// Period is one evaluation_periods row: the V_0 baseline harvest measures
// growth against (spec.md §4.8 Trigger). Exactly one row has IsLatest set
// at any time.
type Period struct {
	ID               int64
	PeriodUUID       string
	InitialValueNear decimal.Decimal
	StartedAt        time.Time
	IsLatest         bool
}

// PeriodRepository persists evaluation_periods rows.
type PeriodRepository struct {
	*repositories.BaseRepository
}

// NewPeriodRepository creates a new evaluation period repository.
func NewPeriodRepository(db *sql.DB, log zerolog.Logger) *PeriodRepository {
	return &PeriodRepository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "evaluation_period").Logger()),
	}
}

// Latest returns the current is_latest row, if any.
func (r *PeriodRepository) Latest() (Period, bool, error) {
	row := r.DB().QueryRow(`
		SELECT id, period_uuid, initial_value_near, started_at, is_latest
		FROM evaluation_periods WHERE is_latest = 1 LIMIT 1
	`)

	var (
		p        Period
		valueStr string
		startedAt int64
		isLatest  int
	)
	if err := row.Scan(&p.ID, &p.PeriodUUID, &valueStr, &startedAt, &isLatest); err != nil {
		if err == sql.ErrNoRows {
			return Period{}, false, nil
		}
		return Period{}, false, fmt.Errorf("query latest evaluation period: %w", err)
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return Period{}, false, fmt.Errorf("parse initial_value_near: %w", err)
	}

	p.InitialValueNear = value
	p.StartedAt = time.Unix(startedAt, 0).UTC()
	p.IsLatest = isLatest != 0
	return p, true, nil
}

// StartNew clears is_latest off every existing row and inserts a fresh
// one carrying it, establishing a new V_0 baseline (spec.md §4.8: a
// period resets whenever the agent begins tracking growth from a new
// starting value). The scheduler calls it only on first run, when no
// period exists yet.
func (r *PeriodRepository) StartNew(periodUUID string, initialValueNear decimal.Decimal, startedAt time.Time) error {
	tx, err := r.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin start new evaluation period: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE evaluation_periods SET is_latest = 0 WHERE is_latest = 1`); err != nil {
		return fmt.Errorf("clear previous latest period: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO evaluation_periods (period_uuid, initial_value_near, started_at, is_latest)
		VALUES (?, ?, ?, 1)
	`, periodUUID, initialValueNear.String(), startedAt.Unix()); err != nil {
		return fmt.Errorf("insert new evaluation period: %w", err)
	}

	return tx.Commit()
}
