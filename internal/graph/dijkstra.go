package graph

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/nearswap/agent/internal/dex"
)

// edgeRecord is one directed edge in the graph's adjacency list. PairID
// identifies the TokenPair (pool + direction) the edge was derived from;
// Seq records insertion order, used to break Dijkstra ties deterministically
// (spec.md §4.3: "first edge observed in insertion order wins").
type edgeRecord struct {
	To     dex.TokenAccount
	PairID uint64
	Weight EdgeWeight
	Seq    int
}

// Graph is a directed weighted multigraph over token accounts. It is
// immutable once built: AddEdge is only ever called during construction,
// after which the graph is shared by reference across readers (spec.md
// §5).
type Graph struct {
	adjacency map[dex.TokenAccount][]edgeRecord
	nextSeq   int
}

// NewGraph returns an empty graph ready for AddEdge calls.
func NewGraph() *Graph {
	return &Graph{adjacency: make(map[dex.TokenAccount][]edgeRecord)}
}

// AddEdge appends a directed edge from -> to. Edges are kept in insertion
// order per source node, which is what makes tie-breaking during Dijkstra
// deterministic.
func (g *Graph) AddEdge(from, to dex.TokenAccount, pairID uint64, weight EdgeWeight) {
	g.adjacency[from] = append(g.adjacency[from], edgeRecord{To: to, PairID: pairID, Weight: weight, Seq: g.nextSeq})
	g.nextSeq++
	if _, ok := g.adjacency[to]; !ok {
		g.adjacency[to] = nil // register the node even if it has no outgoing edges
	}
}

// Hop is one edge of a reconstructed path.
type Hop struct {
	From   dex.TokenAccount
	To     dex.TokenAccount
	PairID uint64
	Weight EdgeWeight
}

// Path is an ordered, head-to-tail chain of Hops (spec.md §3's TokenPath).
type Path []Hop

// String renders a path as "[A 1-> B, B 4-> D]", matching the format used
// by the original engine's route-inspection helper. The rendered weight is
// the hop's NumericCost.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, h := range p {
		parts[i] = fmt.Sprintf("%s %d-> %s", h.From, h.Weight.NumericCost, h.To)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// heapItem is one entry in Dijkstra's priority queue.
type heapItem struct {
	node     dex.TokenAccount
	dist     EdgeWeight
	arrivalSeq int
}

type priorityQueue []heapItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist.NumericCost != pq[j].dist.NumericCost {
		return pq[i].dist.NumericCost < pq[j].dist.NumericCost
	}
	return pq[i].arrivalSeq < pq[j].arrivalSeq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(heapItem))
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPaths runs Dijkstra from start over g, returning the distance
// and a reconstructed Path for every node reachable from start (spec.md
// §4.3). Ties in cumulative NumericCost are broken by which edge was
// inserted first, which the adjacency list's insertion order plus stable
// relaxation below guarantee.
func (g *Graph) ShortestPaths(start dex.TokenAccount) (map[dex.TokenAccount]EdgeWeight, map[dex.TokenAccount]Path) {
	dist := map[dex.TokenAccount]EdgeWeight{start: {}}
	pred := map[dex.TokenAccount]edgeRecord{}
	predFrom := map[dex.TokenAccount]dex.TokenAccount{}
	visited := map[dex.TokenAccount]bool{}

	pq := &priorityQueue{{node: start, dist: EdgeWeight{}}}
	heap.Init(pq)
	arrival := 0

	for pq.Len() > 0 {
		item := heap.Pop(pq).(heapItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true

		for _, e := range g.adjacency[u] {
			candidate := dist[u].Add(e.Weight)
			existing, ok := dist[e.To]
			if !ok || candidate.Less(existing) {
				dist[e.To] = candidate
				pred[e.To] = e
				predFrom[e.To] = u
				arrival++
				heap.Push(pq, heapItem{node: e.To, dist: candidate, arrivalSeq: arrival})
			}
		}
	}

	paths := make(map[dex.TokenAccount]Path)
	for node := range dist {
		if node == start {
			paths[node] = Path{}
			continue
		}
		paths[node] = reconstructPath(start, node, pred, predFrom)
	}

	return dist, paths
}

func reconstructPath(start, goal dex.TokenAccount, pred map[dex.TokenAccount]edgeRecord, predFrom map[dex.TokenAccount]dex.TokenAccount) Path {
	var hops []Hop
	cur := goal
	for cur != start {
		e, ok := pred[cur]
		if !ok {
			return nil
		}
		from := predFrom[cur]
		hops = append(hops, Hop{From: from, To: cur, PairID: e.PairID, Weight: e.Weight})
		cur = from
	}
	// hops were collected goal-to-start; reverse to start-to-goal.
	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}
	return hops
}
