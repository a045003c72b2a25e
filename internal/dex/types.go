// Package dex defines the wire types and the view/call surface of the
// constant-product AMM the agent trades against (spec.md §6). The contract
// itself, transaction signing, and fee/gas accounting are out of scope;
// this package only describes the shape of the collaboration.
package dex

import (
	"fmt"
	"math/big"
	"time"
)

// TokenAccount is an opaque account identifier drawn from the chain's
// account-name alphabet (e.g. "wrap.near", "usdc.near").
type TokenAccount string

// TokenIn and TokenOut are phantom-typed wrappers around TokenAccount used
// to make direction confusion a compile-time error at call sites (graph
// edges, swap arguments, rate records), per spec.md §3/§9. They carry no
// behavior of their own; they are tagged variants of the same structural
// alias, not an inheritance hierarchy.
type TokenIn struct{ Account TokenAccount }

type TokenOut struct{ Account TokenAccount }

func In(account TokenAccount) TokenIn   { return TokenIn{Account: account} }
func Out(account TokenAccount) TokenOut { return TokenOut{Account: account} }

// PoolKind distinguishes the pricing model a pool follows. Only SimplePool
// is ever executed against; other kinds are filtered out when the graph is
// built (spec.md §3).
type PoolKind string

const (
	PoolKindSimple PoolKind = "SIMPLE_POOL"
	PoolKindStable PoolKind = "STABLE_SWAP"
	PoolKindRated  PoolKind = "RATED_SWAP"
)

// FeeDivisor is the denominator total_fee is expressed in (spec.md §3):
// a fee of 30 means 30/10_000 = 0.30%.
const FeeDivisor = 10_000

// Pool is an immutable-per-snapshot record of one AMM pool (spec.md §3).
// Pool snapshots are append-only; a retention policy keeps the newest N
// rows per pool id.
type Pool struct {
	ID                 uint32
	Kind               PoolKind
	Tokens             []TokenAccount
	Reserves           []*big.Int
	TotalFee           uint32
	SharesTotalSupply  *big.Int
	Amp                uint64
	CapturedAt         time.Time
}

// Validate checks the invariants from spec.md §3: matching cardinality of
// tokens/reserves, a fee strictly below FeeDivisor, and exactly two tokens
// for SimplePool.
func (p *Pool) Validate() error {
	if len(p.Tokens) != len(p.Reserves) {
		return fmt.Errorf("pool %d: len(tokens)=%d != len(reserves)=%d", p.ID, len(p.Tokens), len(p.Reserves))
	}
	if p.TotalFee >= FeeDivisor {
		return fmt.Errorf("pool %d: total_fee %d >= FEE_DIVISOR %d", p.ID, p.TotalFee, FeeDivisor)
	}
	if p.Kind == PoolKindSimple && len(p.Tokens) != 2 {
		return fmt.Errorf("pool %d: SimplePool must have exactly 2 tokens, got %d", p.ID, len(p.Tokens))
	}
	return nil
}

// IndexOf returns the position of token within the pool's token list, or
// -1 if the pool does not serve that token.
func (p *Pool) IndexOf(token TokenAccount) int {
	for i, t := range p.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

// PoolInfoList is an immutable, indexed snapshot of every live pool.
// It is shared by immutable reference across the graph, route evaluator,
// and any simulation client; a refresh constructs a new instance and
// swaps it in atomically rather than mutating this one (spec.md §3/§5).
type PoolInfoList struct {
	byID []*Pool
	pool map[uint32]*Pool
}

// NewPoolInfoList indexes pools by id. Later entries for the same id
// overwrite earlier ones, so callers should pass one row per pool.
func NewPoolInfoList(pools []*Pool) *PoolInfoList {
	list := &PoolInfoList{
		byID: make([]*Pool, 0, len(pools)),
		pool: make(map[uint32]*Pool, len(pools)),
	}
	for _, p := range pools {
		if _, exists := list.pool[p.ID]; exists {
			for i, q := range list.byID {
				if q.ID == p.ID {
					list.byID[i] = p
					break
				}
			}
		} else {
			list.byID = append(list.byID, p)
		}
		list.pool[p.ID] = p
	}
	return list
}

// All returns every pool in insertion order. The slice must not be mutated
// by callers; PoolInfoList is meant to be immutable once built.
func (l *PoolInfoList) All() []*Pool {
	return l.byID
}

// Get returns the pool with the given id, or nil if unknown.
func (l *PoolInfoList) Get(id uint32) *Pool {
	if l == nil {
		return nil
	}
	return l.pool[id]
}

// Len returns the number of pools in the snapshot.
func (l *PoolInfoList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.byID)
}
