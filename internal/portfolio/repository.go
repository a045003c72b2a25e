package portfolio

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/database/repositories"
	"github.com/nearswap/agent/internal/dex"
)

// Repository persists trade_transactions and portfolio_snapshots rows.
type Repository struct {
	*repositories.BaseRepository
}

// NewRepository creates a new portfolio repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "portfolio").Logger()),
	}
}

// InsertTrade records one executed swap leg.
func (r *Repository) InsertTrade(t TradeRecord) error {
	var pnl sql.NullString
	if t.RealizedPnL != nil {
		pnl = sql.NullString{String: t.RealizedPnL.String(), Valid: true}
	}
	var txHash sql.NullString
	if t.TxHash != "" {
		txHash = sql.NullString{String: t.TxHash, Valid: true}
	}

	_, err := r.DB().Exec(`
		INSERT INTO trade_transactions (action_tag, token, amount, price_near, realized_pnl_near, tx_hash, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ActionTag, string(t.Token), t.Amount.String(), t.PriceNear.String(), pnl, txHash, t.ExecutedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert trade for %s: %w", t.Token, err)
	}
	return nil
}

// RecentTrades returns the `limit` most recently recorded trades,
// most-recent first.
func (r *Repository) RecentTrades(limit int) ([]TradeRecord, error) {
	rows, err := r.DB().Query(`
		SELECT id, action_tag, token, amount, price_near, realized_pnl_near, tx_hash, recorded_at
		FROM trade_transactions
		ORDER BY recorded_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var tokenStr, amountStr, priceStr string
		var pnl, txHash sql.NullString
		var recordedAt int64
		if err := rows.Scan(&t.ID, &t.ActionTag, &tokenStr, &amountStr, &priceStr, &pnl, &txHash, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Token = dex.TokenAccount(tokenStr)
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse trade amount: %w", err)
		}
		t.Amount = amount
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse trade price: %w", err)
		}
		t.PriceNear = price
		if pnl.Valid {
			v, err := decimal.NewFromString(pnl.String)
			if err == nil {
				t.RealizedPnL = &v
			}
		}
		if txHash.Valid {
			t.TxHash = txHash.String
		}
		t.ExecutedAt = time.Unix(recordedAt, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentSnapshotValues returns up to limit of the most recently recorded
// portfolio_snapshots total_value_near readings, oldest first, for use as
// a drawdown proxy.
func (r *Repository) RecentSnapshotValues(limit int) ([]float64, error) {
	rows, err := r.DB().Query(`
		SELECT total_value_near FROM (
			SELECT total_value_near, recorded_at FROM portfolio_snapshots
			ORDER BY recorded_at DESC
			LIMIT ?
		) ORDER BY recorded_at ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent snapshot values: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan snapshot value: %w", err)
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot value: %w", err)
		}
		f, _ := v.Float64()
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertSnapshot persists an end-of-run portfolio valuation.
func (r *Repository) InsertSnapshot(snap Snapshot, realizedPnLNear decimal.Decimal, recordedAt time.Time) error {
	holdingsJSON, err := json.Marshal(holdingsAsStrings(snap.Holdings))
	if err != nil {
		return fmt.Errorf("marshal holdings: %w", err)
	}

	_, err = r.DB().Exec(`
		INSERT INTO portfolio_snapshots (total_value_near, holdings_json, cash_balance, realized_pnl_near, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, snap.TotalValueNear.String(), string(holdingsJSON), snap.CashYocto.String(), realizedPnLNear.String(), recordedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

func holdingsAsStrings(h map[dex.TokenAccount]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(h))
	for token, amount := range h {
		out[string(token)] = amount.String()
	}
	return out
}
