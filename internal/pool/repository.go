// Package pool implements C-POOL: pulling the live pool set from the DEX
// and persisting append-only snapshots (spec.md §4.2).
package pool

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/nearswap/agent/internal/database/repositories"
	"github.com/nearswap/agent/internal/dex"
)

// batchSize bounds how many pools are requested from the node per
// GetPools call (spec.md §4.2).
const batchSize = 512

// Repository persists pool snapshots, grounded on the teacher's
// BaseRepository pattern (repositories.NewBase).
type Repository struct {
	*repositories.BaseRepository
}

// NewRepository creates a new pool repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "pool").Logger()),
	}
}

type poolRow struct {
	PoolID             uint32
	Kind               string
	TokensJSON         string
	ReservesJSON       string
	TotalFee           uint32
	SharesTotalSupply  string
	Amp                uint64
	CapturedAt         int64
}

func toRow(p *dex.Pool) (*poolRow, error) {
	tokensJSON, err := json.Marshal(p.Tokens)
	if err != nil {
		return nil, fmt.Errorf("marshal tokens for pool %d: %w", p.ID, err)
	}
	reserveStrs := make([]string, len(p.Reserves))
	for i, r := range p.Reserves {
		reserveStrs[i] = r.String()
	}
	reservesJSON, err := json.Marshal(reserveStrs)
	if err != nil {
		return nil, fmt.Errorf("marshal reserves for pool %d: %w", p.ID, err)
	}
	supply := "0"
	if p.SharesTotalSupply != nil {
		supply = p.SharesTotalSupply.String()
	}
	return &poolRow{
		PoolID:            p.ID,
		Kind:              string(p.Kind),
		TokensJSON:        string(tokensJSON),
		ReservesJSON:      string(reservesJSON),
		TotalFee:          p.TotalFee,
		SharesTotalSupply: supply,
		Amp:               p.Amp,
		CapturedAt:        p.CapturedAt.Unix(),
	}, nil
}

func fromRow(r poolRow) (*dex.Pool, error) {
	var tokens []dex.TokenAccount
	if err := json.Unmarshal([]byte(r.TokensJSON), &tokens); err != nil {
		return nil, fmt.Errorf("unmarshal tokens for pool %d: %w", r.PoolID, err)
	}
	var reserveStrs []string
	if err := json.Unmarshal([]byte(r.ReservesJSON), &reserveStrs); err != nil {
		return nil, fmt.Errorf("unmarshal reserves for pool %d: %w", r.PoolID, err)
	}
	reserves := make([]*big.Int, len(reserveStrs))
	for i, s := range reserveStrs {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid reserve %q for pool %d", s, r.PoolID)
		}
		reserves[i] = n
	}
	supply, ok := new(big.Int).SetString(r.SharesTotalSupply, 10)
	if !ok {
		supply = big.NewInt(0)
	}
	return &dex.Pool{
		ID:                r.PoolID,
		Kind:              dex.PoolKind(r.Kind),
		Tokens:            tokens,
		Reserves:          reserves,
		TotalFee:          r.TotalFee,
		SharesTotalSupply: supply,
		Amp:               r.Amp,
		CapturedAt:        time.Unix(r.CapturedAt, 0).UTC(),
	}, nil
}

// WriteSnapshot appends one row per pool for this refresh cycle.
func (r *Repository) WriteSnapshot(pools []*dex.Pool) error {
	tx, err := r.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin pool snapshot tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pool_info (pool_id, kind, tokens_json, reserves_json, total_fee, shares_total_supply, amp, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare pool insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pools {
		row, err := toRow(p)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(row.PoolID, row.Kind, row.TokensJSON, row.ReservesJSON, row.TotalFee, row.SharesTotalSupply, row.Amp, row.CapturedAt); err != nil {
			return fmt.Errorf("insert pool %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// LatestSnapshot returns the most recent row for every distinct pool id.
func (r *Repository) LatestSnapshot() (*dex.PoolInfoList, error) {
	rows, err := r.DB().Query(`
		SELECT pi.pool_id, pi.kind, pi.tokens_json, pi.reserves_json, pi.total_fee, pi.shares_total_supply, pi.amp, pi.captured_at
		FROM pool_info pi
		INNER JOIN (
			SELECT pool_id, MAX(captured_at) AS max_captured_at
			FROM pool_info
			GROUP BY pool_id
		) latest ON pi.pool_id = latest.pool_id AND pi.captured_at = latest.max_captured_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query latest pool snapshot: %w", err)
	}
	defer rows.Close()

	var pools []*dex.Pool
	for rows.Next() {
		var row poolRow
		if err := rows.Scan(&row.PoolID, &row.Kind, &row.TokensJSON, &row.ReservesJSON, &row.TotalFee, &row.SharesTotalSupply, &row.Amp, &row.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dex.NewPoolInfoList(pools), nil
}

// CleanupOldRecords keeps only the newest keepPerPool rows per pool id,
// deleting the rest (spec.md §4.2 retention policy).
func (r *Repository) CleanupOldRecords(keepPerPool int) (int64, error) {
	result, err := r.DB().Exec(`
		DELETE FROM pool_info
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY pool_id ORDER BY captured_at DESC) AS rn
				FROM pool_info
			) ranked
			WHERE ranked.rn <= ?
		)
	`, keepPerPool)
	if err != nil {
		return 0, fmt.Errorf("cleanup pool_info: %w", err)
	}
	return result.RowsAffected()
}
