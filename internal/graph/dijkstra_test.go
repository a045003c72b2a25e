package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearswap/agent/internal/dex"
)

func rawWeight(n uint64) EdgeWeight {
	return EdgeWeight{LogCost: float64(n), NumericCost: n}
}

// buildSixNodeGraph reproduces the six-node A-F graph with two-way edges
// used to validate the Dijkstra/path-reconstruction engine independent of
// AMM pricing (spec.md §8 scenario 3).
func buildSixNodeGraph() *Graph {
	g := NewGraph()
	g.AddEdge("A", "B", 1, rawWeight(1))
	g.AddEdge("B", "A", 2, rawWeight(100))
	g.AddEdge("B", "D", 3, rawWeight(4))
	g.AddEdge("D", "B", 4, rawWeight(100))
	g.AddEdge("D", "F", 5, rawWeight(8))
	g.AddEdge("F", "D", 6, rawWeight(9))
	g.AddEdge("D", "C", 7, rawWeight(3))
	g.AddEdge("C", "D", 8, rawWeight(100))
	g.AddEdge("C", "A", 9, rawWeight(2))
	g.AddEdge("A", "C", 10, rawWeight(100))
	g.AddEdge("A", "E", 11, rawWeight(50))
	g.AddEdge("E", "A", 12, rawWeight(50))
	g.AddEdge("E", "F", 13, rawWeight(50))
	g.AddEdge("F", "E", 14, rawWeight(50))
	return g
}

func TestShortestPaths_SixNodeGraph(t *testing.T) {
	g := buildSixNodeGraph()

	_, forward := g.ShortestPaths("A")
	pathAF, ok := forward["F"]
	require.True(t, ok)
	assert.Equal(t, "[A 1-> B, B 4-> D, D 8-> F]", pathAF.String())

	_, reverse := g.ShortestPaths("F")
	pathFA, ok := reverse["A"]
	require.True(t, ok)
	assert.Equal(t, "[F 9-> D, D 3-> C, C 2-> A]", pathFA.String())
}

func TestShortestPaths_StartHasEmptyPath(t *testing.T) {
	g := buildSixNodeGraph()
	_, forward := g.ShortestPaths("A")
	path, ok := forward["A"]
	require.True(t, ok)
	assert.Empty(t, path)
}

func TestTokenPath_HeadToTailInvariant(t *testing.T) {
	g := buildSixNodeGraph()
	_, forward := g.ShortestPaths("A")
	path := forward["F"]
	for i := 1; i < len(path); i++ {
		assert.Equal(t, path[i-1].To, path[i].From, "path must chain head-to-tail")
	}
}

