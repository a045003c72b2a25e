package graph

import (
	"math/big"
	"sort"

	"github.com/nearswap/agent/internal/dex"
)

// TokenGraph is the swap graph for one pool snapshot (spec.md §4.3): an
// immutable directed graph plus the lock-guarded path cache built over it.
// A fresh TokenGraph replaces the previous one atomically when the pool
// snapshot changes; in-flight readers finish against the old instance.
type TokenGraph struct {
	g     *Graph
	pairs map[uint64]TokenPair
	cache *CachedPath
}

// directionKey identifies one directed token pair for top-edge selection.
type directionKey struct {
	from dex.TokenAccount
	to   dex.TokenAccount
}

// Build constructs a TokenGraph from a pool snapshot. Only SimplePool
// pools with non-zero reserves on both sides participate; for every
// directed token pair served by more than one qualifying pool, only the
// top edge (lowest weight / best net-of-fees rate) is retained, with ties
// broken by which pool was encountered first in the snapshot's order
// (spec.md §4.3).
func Build(pools *dex.PoolInfoList) *TokenGraph {
	type candidate struct {
		pair   TokenPair
		pairID uint64
		weight EdgeWeight
		order  int
	}

	best := make(map[directionKey]candidate)
	order := 0

	for _, p := range pools.All() {
		if p.Kind != dex.PoolKindSimple || len(p.Tokens) != 2 {
			continue
		}
		if p.Reserves[0] == nil || p.Reserves[1] == nil || p.Reserves[0].Sign() <= 0 || p.Reserves[1].Sign() <= 0 {
			continue
		}

		feeFraction := float64(p.TotalFee) / float64(dex.FeeDivisor)

		for _, dir := range [2][2]int{{0, 1}, {1, 0}} {
			inIdx, outIdx := dir[0], dir[1]
			pair := TokenPair{Pool: p, InIndex: inIdx, OutIndex: outIdx}

			rIn := new(big.Float).SetInt(p.Reserves[inIdx])
			rOut := new(big.Float).SetInt(p.Reserves[outIdx])
			rate, _ := new(big.Float).Quo(rOut, rIn).Float64()
			weight := NewEdgeWeight(rate, feeFraction)

			key := directionKey{from: pair.TokenIn(), to: pair.TokenOut()}
			pairID := pairIdentity(p.ID, inIdx)

			existing, ok := best[key]
			if !ok || weight.Less(existing.weight) {
				best[key] = candidate{pair: pair, pairID: pairID, weight: weight, order: order}
			}
			order++
		}
	}

	// Deterministic edge-insertion order: sort candidates by the order they
	// were first encountered so AddEdge's insertion sequence (used for
	// Dijkstra tie-breaking) matches snapshot order, not map iteration order.
	keys := make([]directionKey, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return best[keys[i]].order < best[keys[j]].order
	})

	g := NewGraph()
	pairsByID := make(map[uint64]TokenPair, len(keys))
	for _, k := range keys {
		c := best[k]
		g.AddEdge(k.from, k.to, c.pairID, c.weight)
		pairsByID[c.pairID] = c.pair
	}

	return &TokenGraph{g: g, pairs: pairsByID, cache: NewCachedPath()}
}

// pairIdentity packs a pool id and direction into the pair id carried by
// each graph edge and Hop.
func pairIdentity(poolID uint32, inIndex int) uint64 {
	return uint64(poolID)<<8 | uint64(inIndex)
}

// UpdatePaths runs Dijkstra from start, filters to bidirectionally
// reachable goals (spec.md §4.3), and populates the path cache. It returns
// the set of goals that passed the filter.
func (tg *TokenGraph) UpdatePaths(start dex.TokenAccount) []dex.TokenAccount {
	_, forward := tg.g.ShortestPaths(start)
	reverseByGoal := make(map[dex.TokenAccount]bool)

	// A node is bidirectionally reachable only if a reverse path (goal ->
	// start) also exists; run Dijkstra once from every node encountered as
	// a forward goal and keep those whose run reaches start.
	for goal := range forward {
		if goal == start {
			continue
		}
		_, reverse := tg.g.ShortestPaths(goal)
		if _, ok := reverse[start]; ok {
			reverseByGoal[goal] = true
		}
	}

	goals := make([]dex.TokenAccount, 0, len(reverseByGoal))
	filtered := make(map[dex.TokenAccount]Path, len(reverseByGoal))
	for goal := range reverseByGoal {
		filtered[goal] = forward[goal]
		goals = append(goals, goal)
	}

	tg.cache.UpdateAll(start, filtered)
	return goals
}

// Path returns the cached path from start to goal.
func (tg *TokenGraph) Path(start, goal dex.TokenAccount) (Path, bool) {
	return tg.cache.Lookup(start, goal)
}

// Goals returns every goal reachable (bidirectionally) from start per the
// last UpdatePaths call.
func (tg *TokenGraph) Goals(start dex.TokenAccount) []dex.TokenAccount {
	return tg.cache.Goals(start)
}

// TokenPairFor resolves a cached Hop's pair id back to the TokenPair that
// produced it, used when folding EstimateOut across a path.
func (tg *TokenGraph) TokenPairFor(pairID uint64) (TokenPair, bool) {
	p, ok := tg.pairs[pairID]
	return p, ok
}

// ValueEstimate is one row of ListValuesWithPath's result.
type ValueEstimate struct {
	Goal         dex.TokenAccount
	EstimatedOut *big.Int
	Path         Path
}

// ListValuesWithPath folds EstimateOut across each cached path from start
// for every requested goal, returning estimates sorted by descending
// output (spec.md §4.3). Goals with no cached path, or whose folding hits
// a pricing error partway through, are omitted.
func (tg *TokenGraph) ListValuesWithPath(initial *big.Int, start dex.TokenAccount, goals []dex.TokenAccount) []ValueEstimate {
	var results []ValueEstimate

	for _, goal := range goals {
		path, ok := tg.cache.Lookup(start, goal)
		if !ok {
			continue
		}

		amount := new(big.Int).Set(initial)
		ok = true
		for _, hop := range path {
			pair, found := tg.TokenPairFor(hop.PairID)
			if !found {
				ok = false
				break
			}
			out, err := pair.EstimateOut(amount)
			if err != nil {
				ok = false
				break
			}
			amount = out
		}
		if !ok {
			continue
		}

		results = append(results, ValueEstimate{Goal: goal, EstimatedOut: amount, Path: path})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].EstimatedOut.Cmp(results[j].EstimatedOut) > 0
	})

	return results
}
