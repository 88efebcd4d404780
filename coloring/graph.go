// Package coloring partitions constraints into islands, levels and colors.
//
// Vertices are constraints and an edge links two constraints that share a
// dynamic body. Islands are connected components. Levels are the graph
// distance from an anchored vertex (one touching a static or kinematic body).
// Colors form a proper vertex coloring: two vertices joined by an edge never
// share a color, so vertices with the same color can be solved concurrently.
package coloring

import "slices"

// InvalidIndex marks a vertex attribute that has not been computed.
const InvalidIndex = -1

type vertex struct {
	island int
	level  int
	color  int
	edges  []int
}

// Graph is a rebuildable adjacency-list graph. The zero value is an empty graph.
type Graph struct {
	vertices    []vertex
	numEdges    int
	islandSizes []int
	numColors   int
	maxLevel    int
}

// NewGraph returns an empty graph with room for numVertices vertices.
func NewGraph(numVertices int) *Graph {
	return &Graph{
		vertices: make([]vertex, 0, numVertices),
		maxLevel: InvalidIndex,
	}
}

// Reset removes every vertex and edge, keeping allocated capacity.
func (g *Graph) Reset() {
	g.vertices = g.vertices[:0]
	g.numEdges = 0
	g.islandSizes = g.islandSizes[:0]
	g.numColors = 0
	g.maxLevel = InvalidIndex
}

// AddVertex appends a vertex and returns its index.
func (g *Graph) AddVertex() int {
	g.vertices = append(g.vertices, vertex{
		island: InvalidIndex,
		level:  InvalidIndex,
		color:  InvalidIndex,
	})

	return len(g.vertices) - 1
}

// SetVertexLevel seeds the level of a vertex before Levelize.
func (g *Graph) SetVertexLevel(v int, level int) {
	g.vertices[v].level = level
}

// AddEdge links two distinct vertices. Duplicate edges and self loops are ignored.
func (g *Graph) AddEdge(v0, v1 int) {
	if v0 == v1 || slices.Contains(g.vertices[v0].edges, v1) {
		return
	}

	g.vertices[v0].edges = append(g.vertices[v0].edges, v1)
	g.vertices[v1].edges = append(g.vertices[v1].edges, v0)
	g.numEdges++
}

func (g *Graph) NumVertices() int {
	return len(g.vertices)
}

func (g *Graph) NumEdges() int {
	return g.numEdges
}

func (g *Graph) NumIslands() int {
	return len(g.islandSizes)
}

func (g *Graph) NumColors() int {
	return g.numColors
}

// MaxLevel returns the highest level assigned by Levelize, or InvalidIndex.
func (g *Graph) MaxLevel() int {
	return g.maxLevel
}

// Neighbors returns the adjacency list of v. It must not be modified.
func (g *Graph) Neighbors(v int) []int {
	return g.vertices[v].edges
}

func (g *Graph) VertexIsland(v int) int {
	return g.vertices[v].island
}

// VertexIslandSize returns the number of vertices in the island of v.
func (g *Graph) VertexIslandSize(v int) int {
	island := g.vertices[v].island
	if island == InvalidIndex {
		return 0
	}

	return g.islandSizes[island]
}

func (g *Graph) VertexLevel(v int) int {
	return g.vertices[v].level
}

func (g *Graph) VertexColor(v int) int {
	return g.vertices[v].color
}

// Islandize assigns connected component ids. Islands are numbered in the
// order of their lowest vertex index.
func (g *Graph) Islandize() {
	g.islandSizes = g.islandSizes[:0]
	for i := range g.vertices {
		g.vertices[i].island = InvalidIndex
	}

	stack := make([]int, 0, len(g.vertices))
	for root := range g.vertices {
		if g.vertices[root].island != InvalidIndex {
			continue
		}

		island := len(g.islandSizes)
		size := 0
		g.vertices[root].island = island
		stack = append(stack[:0], root)

		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++

			for _, n := range g.vertices[v].edges {
				if g.vertices[n].island == InvalidIndex {
					g.vertices[n].island = island
					stack = append(stack, n)
				}
			}
		}

		g.islandSizes = append(g.islandSizes, size)
	}
}

// Levelize propagates levels breadth-first from the vertices seeded with
// SetVertexLevel(v, 0). A vertex ends up one level above its lowest-level
// neighbor. An island without any seed has its lowest-index vertex seeded.
// Islandize must run first.
func (g *Graph) Levelize() {
	queue := make([]int, 0, len(g.vertices))
	seeded := make([]bool, len(g.islandSizes))

	for v := range g.vertices {
		if g.vertices[v].level == 0 {
			queue = append(queue, v)
			if island := g.vertices[v].island; island != InvalidIndex {
				seeded[island] = true
			}
		} else {
			g.vertices[v].level = InvalidIndex
		}
	}

	for v := range g.vertices {
		island := g.vertices[v].island
		if island != InvalidIndex && !seeded[island] {
			g.vertices[v].level = 0
			seeded[island] = true
			queue = append(queue, v)
		}
	}

	g.maxLevel = InvalidIndex
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		level := g.vertices[v].level
		g.maxLevel = max(g.maxLevel, level)

		for _, n := range g.vertices[v].edges {
			if g.vertices[n].level == InvalidIndex {
				g.vertices[n].level = level + 1
				queue = append(queue, n)
			}
		}
	}
}

// Colorize assigns greedy colors, visiting vertices by level then index.
// Each vertex takes the lowest color not used by an already colored neighbor.
func (g *Graph) Colorize() {
	order := make([]int, len(g.vertices))
	for v := range g.vertices {
		order[v] = v
		g.vertices[v].color = InvalidIndex
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return g.vertices[a].level - g.vertices[b].level
	})

	g.numColors = 0
	var used []bool
	for _, v := range order {
		used = used[:0]
		for range g.numColors + 1 {
			used = append(used, false)
		}

		for _, n := range g.vertices[v].edges {
			if c := g.vertices[n].color; c != InvalidIndex && c < len(used) {
				used[c] = true
			}
		}

		color := 0
		for used[color] {
			color++
		}

		g.vertices[v].color = color
		g.numColors = max(g.numColors, color+1)
	}
}
