package constraint

import (
	"cmp"
	"slices"

	"github.com/akmonengine/tendon/actor"
)

// ColorConstraints computes the island, level and color of every enabled
// joint touching a dynamic body. Other joints get InvalidIndex.
func (c *JointConstraints) ColorConstraints() {
	c.graph.Reset()

	vertices := make([]int, len(c.constraintSettings))
	var bodies []*actor.RigidBody
	bodyVertices := make(map[*actor.RigidBody][]int)

	for index := range c.constraintSettings {
		state := &c.states[index]
		state.Island, state.IslandSize, state.Level, state.Color = InvalidIndex, 0, InvalidIndex, InvalidIndex
		vertices[index] = InvalidIndex

		if state.Disabled {
			continue
		}

		pair := c.particles[index]
		var dynamic [2]bool
		anchored := false
		for i, body := range pair {
			if body == nil {
				continue
			}
			if body.IsDynamic() {
				dynamic[i] = true
			} else {
				anchored = true
			}
		}
		if !dynamic[0] && !dynamic[1] {
			continue
		}

		v := c.graph.AddVertex()
		vertices[index] = v
		if anchored {
			c.graph.SetVertexLevel(v, 0)
		}

		for i, body := range pair {
			if !dynamic[i] {
				continue
			}
			if _, ok := bodyVertices[body]; !ok {
				bodies = append(bodies, body)
			}
			bodyVertices[body] = append(bodyVertices[body], v)
		}
	}

	// bodies in first use order keep the edge order deterministic
	for _, body := range bodies {
		shared := bodyVertices[body]
		for i := range shared {
			for j := i + 1; j < len(shared); j++ {
				c.graph.AddEdge(shared[i], shared[j])
			}
		}
	}

	c.graph.Islandize()
	c.graph.Levelize()
	c.graph.Colorize()

	for index, v := range vertices {
		if v == InvalidIndex {
			continue
		}

		state := &c.states[index]
		state.Island = c.graph.VertexIsland(v)
		state.IslandSize = c.graph.VertexIslandSize(v)
		state.Level = c.graph.VertexLevel(v)
		state.Color = c.graph.VertexColor(v)
	}

	c.logger.Debug("joints colored",
		"joints", len(c.constraintSettings),
		"vertices", c.graph.NumVertices(),
		"edges", c.graph.NumEdges(),
		"islands", c.graph.NumIslands(),
		"levels", c.graph.MaxLevel()+1,
		"colors", c.graph.NumColors())
}

// SortConstraints orders the joints by island, level then color, keeping
// the current order otherwise. Handles follow their joints.
func (c *JointConstraints) SortConstraints() {
	order := make([]int, len(c.constraintSettings))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		sa, sb := &c.states[a], &c.states[b]
		return cmp.Or(
			cmp.Compare(sa.Island, sb.Island),
			cmp.Compare(sa.Level, sb.Level),
			cmp.Compare(sa.Color, sb.Color),
		)
	})

	c.constraintSettings = permute(c.constraintSettings, order)
	c.particles = permute(c.particles, order)
	c.states = permute(c.states, order)
	c.handles = permute(c.handles, order)
	if len(c.solvers) == len(order) {
		c.solvers = permute(c.solvers, order)
		c.prepared = permute(c.prepared, order)
	}

	for index, h := range c.handles {
		c.pool.setIndex(h, index)
	}
}

func permute[T any](values []T, order []int) []T {
	sorted := make([]T, len(values))
	for i, from := range order {
		sorted[i] = values[from]
	}
	return sorted
}

// ColorBatches groups the handles of the evaluable joints by level then
// color. Joints of one batch share no dynamic body; batches must be solved
// in order.
func (c *JointConstraints) ColorBatches() [][]JointHandle {
	type key struct{ level, color int }

	var keys []key
	groups := make(map[key][]JointHandle)
	for index, state := range c.states {
		if state.Disabled || state.Color == InvalidIndex {
			continue
		}

		k := key{state.Level, state.Color}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], c.handles[index])
	}

	slices.SortFunc(keys, func(a, b key) int {
		return cmp.Or(cmp.Compare(a.level, b.level), cmp.Compare(a.color, b.color))
	})

	batches := make([][]JointHandle, 0, len(keys))
	for _, k := range keys {
		batches = append(batches, groups[k])
	}
	return batches
}
