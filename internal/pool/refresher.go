package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/events"
)

// Refresher pulls the full pool set from the DEX node in fixed-size
// batches and persists a snapshot (spec.md §4.2).
type Refresher struct {
	client dex.Client
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
}

// NewRefresher creates a new pool refresher.
func NewRefresher(client dex.Client, repo *Repository, em *events.Manager, log zerolog.Logger) *Refresher {
	return &Refresher{
		client: client,
		repo:   repo,
		events: em,
		log:    log.With().Str("component", "pool_refresher").Logger(),
	}
}

// ReadFromNode enumerates every pool on the DEX in batches of batchSize,
// validates each, and returns the full set. A pool that fails validation
// is logged and skipped rather than aborting the whole refresh, since one
// malformed pool should not block pricing for every other pair.
func (ref *Refresher) ReadFromNode(ctx context.Context) ([]*dex.Pool, error) {
	total, err := ref.client.GetNumberOfPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("get number of pools: %w", err)
	}

	pools := make([]*dex.Pool, 0, total)
	for from := uint32(0); from < total; from += batchSize {
		limit := batchSize
		if remaining := total - from; remaining < batchSize {
			limit = remaining
		}

		batch, err := ref.client.GetPools(ctx, from, limit)
		if err != nil {
			return nil, fmt.Errorf("get pools [%d, %d): %w", from, from+limit, err)
		}

		fetchedAt := time.Now().UTC()
		for _, p := range batch {
			p.CapturedAt = fetchedAt
			if err := p.Validate(); err != nil {
				ref.log.Warn().Err(err).Uint32("pool_id", p.ID).Msg("skipping invalid pool")
				continue
			}
			pools = append(pools, p)
		}
	}

	return pools, nil
}

// RefreshAndPersist reads the full pool set and writes a snapshot. It
// emits PoolSnapshotRefreshed on success.
func (ref *Refresher) RefreshAndPersist(ctx context.Context) ([]*dex.Pool, error) {
	pools, err := ref.ReadFromNode(ctx)
	if err != nil {
		ref.events.EmitError("pool", err, nil)
		return nil, err
	}

	if err := ref.repo.WriteSnapshot(pools); err != nil {
		ref.events.EmitError("pool", err, nil)
		return nil, fmt.Errorf("write pool snapshot: %w", err)
	}

	ref.events.Emit(events.PoolSnapshotRefreshed, "pool", map[string]interface{}{
		"pool_count": len(pools),
	})

	return pools, nil
}
