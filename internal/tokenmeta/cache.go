// Package tokenmeta implements the process-local token-decimals cache
// described in spec.md §4.8: a query to ft_metadata is made at most once
// per token per process lifetime, seeded first from persistence.
package tokenmeta

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nearswap/agent/internal/database/repositories"
	"github.com/nearswap/agent/internal/dex"
)

// Cache is the decimals cache: an in-memory map backed by the
// token_metadata table, protected by a standard mutex since writes are
// rare and short (spec.md §5).
type Cache struct {
	*repositories.BaseRepository
	client dex.Client
	log    zerolog.Logger

	mu    sync.Mutex
	known map[dex.TokenAccount]*dex.TokenMetadata
}

// NewCache creates a new token-decimals cache.
func NewCache(db *sql.DB, client dex.Client, log zerolog.Logger) *Cache {
	return &Cache{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "tokenmeta").Logger()),
		client:         client,
		log:            log.With().Str("component", "tokenmeta_cache").Logger(),
		known:          make(map[dex.TokenAccount]*dex.TokenMetadata),
	}
}

// Decimals returns token's decimals, checking the in-memory cache, then
// persistence, then falling back to an ft_metadata call which is cached in
// both places for future lookups.
func (c *Cache) Decimals(ctx context.Context, token dex.TokenAccount) (uint8, error) {
	meta, err := c.get(ctx, token)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

func (c *Cache) get(ctx context.Context, token dex.TokenAccount) (*dex.TokenMetadata, error) {
	c.mu.Lock()
	if meta, ok := c.known[token]; ok {
		c.mu.Unlock()
		return meta, nil
	}
	c.mu.Unlock()

	if meta, ok, err := c.loadFromDB(token); err != nil {
		return nil, err
	} else if ok {
		c.mu.Lock()
		c.known[token] = meta
		c.mu.Unlock()
		return meta, nil
	}

	meta, err := c.client.FtMetadata(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("ft_metadata(%s): %w", token, err)
	}

	if err := c.persist(meta); err != nil {
		c.log.Warn().Err(err).Str("token", string(token)).Msg("failed to persist token metadata, continuing with in-memory value")
	}

	c.mu.Lock()
	c.known[token] = meta
	c.mu.Unlock()

	return meta, nil
}

func (c *Cache) loadFromDB(token dex.TokenAccount) (*dex.TokenMetadata, bool, error) {
	var decimals uint8
	var symbol, name string
	err := c.DB().QueryRow(`SELECT decimals, symbol, name FROM token_metadata WHERE token = ?`, string(token)).Scan(&decimals, &symbol, &name)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load token_metadata for %s: %w", token, err)
	}
	return &dex.TokenMetadata{Token: token, Decimals: decimals, Symbol: symbol, Name: name}, true, nil
}

func (c *Cache) persist(meta *dex.TokenMetadata) error {
	_, err := c.DB().Exec(`
		INSERT INTO token_metadata (token, decimals, symbol, name, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			decimals = excluded.decimals,
			symbol = excluded.symbol,
			name = excluded.name,
			cached_at = excluded.cached_at
	`, string(meta.Token), meta.Decimals, meta.Symbol, meta.Name, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("persist token_metadata for %s: %w", meta.Token, err)
	}
	return nil
}
