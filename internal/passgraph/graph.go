package passgraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/rendergraph/internal/ctxlog"
)

// PassID is the dense index of a pass in declaration order.
type PassID int

// NullPass marks "no pass", for example the creator of an imported resource.
const NullPass PassID = -1

func (p PassID) IsNull() bool { return p < 0 }

// DependencyType is one kind of pass-to-pass hazard.
type DependencyType uint8

const (
	ReadAfterWrite DependencyType = iota
	WriteAfterWrite
	WriteAfterRead
)

// DependencyFlags is the set of hazards between two passes.
type DependencyFlags uint8

const OpAfterWrite = DependencyFlags(1<<ReadAfterWrite | 1<<WriteAfterWrite)

func (f DependencyFlags) Has(t DependencyType) bool { return f&(1<<t) != 0 }

func (f DependencyFlags) String() string {
	var parts []string
	for t, n := range []string{"raw", "waw", "war"} {
		if f.Has(DependencyType(t)) {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ErrCycle is returned when the dependency relation is not acyclic.
var ErrCycle = errors.New("dependency cycle")

// ResourceNode is the slice of a resource version this package cares about.
type ResourceNode struct {
	Creator  PassID
	Writer   PassID
	Readers  []PassID
	External bool
}

// Graph is the immutable dependency structure of a compiled render graph.
type Graph struct {
	passCount  int
	flags      []DependencyFlags // passCount*passCount, [src*passCount+dst]
	deps       [][]PassID
	dependants [][]PassID
	levels     []int
	nodes      []ResourceNode
}

// Build derives the dependency matrix and levels for passCount passes.
func Build(ctx context.Context, passCount int, nodes []ResourceNode) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	g := &Graph{
		passCount:  passCount,
		flags:      make([]DependencyFlags, passCount*passCount),
		deps:       make([][]PassID, passCount),
		dependants: make([][]PassID, passCount),
		levels:     make([]int, passCount),
		nodes:      nodes,
	}

	for _, n := range nodes {
		for _, r := range n.Readers {
			g.setDependency(n.Creator, r, ReadAfterWrite)
		}
		if n.Writer.IsNull() {
			continue
		}
		g.setDependency(n.Creator, n.Writer, WriteAfterWrite)
		for _, r := range n.Readers {
			g.setDependency(r, n.Writer, WriteAfterRead)
		}
	}

	if err := g.computeLevels(); err != nil {
		return nil, err
	}
	logger.Debug("Pass dependency graph built.", "passes", passCount, "resource_nodes", len(nodes))
	return g, nil
}

func (g *Graph) setDependency(src, dst PassID, t DependencyType) {
	if src.IsNull() || dst.IsNull() || src == dst {
		return
	}
	i := int(src)*g.passCount + int(dst)
	if g.flags[i] == 0 {
		g.deps[dst] = append(g.deps[dst], src)
		g.dependants[src] = append(g.dependants[src], dst)
	}
	g.flags[i] |= 1 << t
}

// computeLevels assigns every pass 0 if it has no dependencies and one more
// than its deepest dependency otherwise.
func (g *Graph) computeLevels() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, g.passCount)

	var visit func(p PassID) error
	visit = func(p PassID) error {
		switch state[p] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: cycle detected involving pass %d", ErrCycle, p)
		}
		state[p] = visiting
		level := 0
		for _, d := range g.deps[p] {
			if err := visit(d); err != nil {
				return err
			}
			level = max(level, g.levels[d]+1)
		}
		g.levels[p] = level
		state[p] = done
		return nil
	}

	for p := range g.passCount {
		if err := visit(PassID(p)); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) PassCount() int { return g.passCount }

// DependencyFlags returns the hazards that order src before dst.
func (g *Graph) DependencyFlags(src, dst PassID) DependencyFlags {
	return g.flags[int(src)*g.passCount+int(dst)]
}

// Dependencies lists the passes p must wait for, in discovery order.
func (g *Graph) Dependencies(p PassID) []PassID { return g.deps[p] }

// Dependants lists the passes that wait for p, in discovery order.
func (g *Graph) Dependants(p PassID) []PassID { return g.dependants[p] }

func (g *Graph) Level(p PassID) int { return g.levels[p] }

// ActivePasses marks every pass reachable from the creator of an external
// resource node through read-after-write or write-after-write edges.
func (g *Graph) ActivePasses() []bool {
	active := make([]bool, g.passCount)

	var traverse func(p PassID)
	traverse = func(p PassID) {
		if active[p] {
			return
		}
		active[p] = true
		for _, d := range g.deps[p] {
			if g.DependencyFlags(d, p)&OpAfterWrite != 0 {
				traverse(d)
			}
		}
	}

	for _, n := range g.nodes {
		if n.External && !n.Creator.IsNull() {
			traverse(n.Creator)
		}
	}
	return active
}

// Order sorts the active passes by level, then by how many passes depend on
// them, then by declaration order.
func (g *Graph) Order(active []bool) []PassID {
	order := make([]PassID, 0, g.passCount)
	for p, ok := range active {
		if ok {
			order = append(order, PassID(p))
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if g.levels[a] != g.levels[b] {
			return g.levels[a] < g.levels[b]
		}
		return len(g.dependants[a]) < len(g.dependants[b])
	})
	return order
}
