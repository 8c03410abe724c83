package passgraph

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomNodes declares passCount passes in order. Each pass reads the current
// version of some resources and writes others, so every edge runs forward in
// declaration order the way the builder produces them.
func randomNodes(r *rand.Rand, passCount, resourceCount int) []ResourceNode {
	var nodes []ResourceNode
	current := make([]int, resourceCount)
	for i := range current {
		nodes = append(nodes, ResourceNode{Creator: NullPass, Writer: NullPass})
		current[i] = len(nodes) - 1
	}
	for p := range passCount {
		pass := PassID(p)
		for res := range resourceCount {
			switch r.IntN(4) {
			case 0:
				n := &nodes[current[res]]
				n.Readers = append(n.Readers, pass)
			case 1:
				nodes[current[res]].Writer = pass
				nodes = append(nodes, ResourceNode{Creator: pass, Writer: NullPass})
				current[res] = len(nodes) - 1
			}
		}
	}
	for _, idx := range current {
		nodes[idx].External = r.IntN(3) == 0
	}
	return nodes
}

// activeSubgraph keeps only the active passes and renumbers them densely.
func activeSubgraph(nodes []ResourceNode, active []bool) (int, []ResourceNode) {
	remap := make([]PassID, len(active))
	count := 0
	for p, ok := range active {
		remap[p] = NullPass
		if ok {
			remap[p] = PassID(count)
			count++
		}
	}
	mapPass := func(p PassID) PassID {
		if p.IsNull() {
			return NullPass
		}
		return remap[p]
	}

	out := make([]ResourceNode, 0, len(nodes))
	for _, n := range nodes {
		m := ResourceNode{Creator: mapPass(n.Creator), Writer: mapPass(n.Writer), External: n.External}
		for _, r := range n.Readers {
			if q := mapPass(r); !q.IsNull() {
				m.Readers = append(m.Readers, q)
			}
		}
		out = append(out, m)
	}
	return count, out
}

func TestRandomGraphs(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := range 200 {
		passCount := 1 + r.IntN(12)
		nodes := randomNodes(r, passCount, 1+r.IntN(5))

		t.Run(fmt.Sprintf("graph_%d", i), func(t *testing.T) {
			g, err := Build(testContext(), passCount, nodes)
			require.NoError(t, err)
			active := g.ActivePasses()
			order := g.Order(active)

			again, err := Build(testContext(), passCount, nodes)
			require.NoError(t, err)
			assert.Equal(t, active, again.ActivePasses())
			assert.Equal(t, order, again.Order(again.ActivePasses()))
			for p := range passCount {
				assert.Equal(t, g.Level(PassID(p)), again.Level(PassID(p)))
			}

			position := make(map[PassID]int, len(order))
			for i, p := range order {
				position[p] = i
			}
			for _, n := range nodes {
				if n.Creator.IsNull() || !active[n.Creator] {
					continue
				}
				for _, reader := range n.Readers {
					if active[reader] && reader != n.Creator {
						assert.Less(t, position[n.Creator], position[reader], "reader scheduled before its producer")
					}
				}
				if !n.Writer.IsNull() && active[n.Writer] {
					for _, reader := range n.Readers {
						if active[reader] && reader != n.Writer {
							assert.Less(t, position[reader], position[n.Writer], "overwritten before a read")
						}
					}
				}
			}

			count, pruned := activeSubgraph(nodes, active)
			sub, err := Build(testContext(), count, pruned)
			require.NoError(t, err)
			for p, ok := range sub.ActivePasses() {
				assert.True(t, ok, "pass %d became inactive after pruning", p)
			}
			assert.Len(t, sub.Order(sub.ActivePasses()), len(order))
		})
	}
}
