package graph

import (
	"sync"

	"github.com/nearswap/agent/internal/dex"
)

// CachedPath is the graph engine's path cache: start_token -> (goal_token
// -> path), guarded by a read/write lock so many concurrent readers (route
// evaluation) never block each other and rebuilds take the write lock only
// briefly (spec.md §3, §5).
type CachedPath struct {
	mu    sync.RWMutex
	paths map[dex.TokenAccount]map[dex.TokenAccount]Path
}

// NewCachedPath returns an empty path cache.
func NewCachedPath() *CachedPath {
	return &CachedPath{paths: make(map[dex.TokenAccount]map[dex.TokenAccount]Path)}
}

// Lookup returns the cached path from start to goal, if any.
func (c *CachedPath) Lookup(start, goal dex.TokenAccount) (Path, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byGoal, ok := c.paths[start]
	if !ok {
		return nil, false
	}
	p, ok := byGoal[goal]
	return p, ok
}

// UpdatePath inserts or replaces the path from start to goal.
func (c *CachedPath) UpdatePath(start, goal dex.TokenAccount, path Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byGoal, ok := c.paths[start]
	if !ok {
		byGoal = make(map[dex.TokenAccount]Path)
		c.paths[start] = byGoal
	}
	byGoal[goal] = path
}

// UpdateAll replaces every goal path from start in one write-lock
// acquisition, used after a full ShortestPaths run.
func (c *CachedPath) UpdateAll(start dex.TokenAccount, paths map[dex.TokenAccount]Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byGoal := make(map[dex.TokenAccount]Path, len(paths))
	for goal, p := range paths {
		byGoal[goal] = p
	}
	c.paths[start] = byGoal
}

// Goals returns every goal token with a cached path from start.
func (c *CachedPath) Goals(start dex.TokenAccount) []dex.TokenAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byGoal, ok := c.paths[start]
	if !ok {
		return nil
	}
	out := make([]dex.TokenAccount, 0, len(byGoal))
	for goal := range byGoal {
		out = append(out, goal)
	}
	return out
}
