package rendergraph

import (
	"sync/atomic"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/passgraph"
)

var graphCounter atomic.Uint32

// RenderGraph is the declaration of one frame. Build it with the Create,
// Import and Add*Pass functions, then hand it to Execute exactly once.
//
// A RenderGraph is not safe for concurrent use.
type RenderGraph struct {
	id uint32

	nodes      []resourceNode
	buffers    []bufferResource
	textures   []textureResource
	tlases     []tlasResource
	blasGroups []blasGroupResource

	passes   []*pass
	executed bool
}

// New creates an empty graph.
func New() *RenderGraph {
	return &RenderGraph{id: graphCounter.Add(1)}
}

func (g *RenderGraph) newNode(kind resourceKind, resource int, creator passgraph.PassID) nodeID {
	g.nodes = append(g.nodes, resourceNode{
		kind:     kind,
		resource: resource,
		creator:  creator,
		writer:   passgraph.NullPass,
	})
	return nodeID{graph: g.id, index: uint32(len(g.nodes) - 1)}
}

// node resolves id, panicking on null or foreign ids.
func (g *RenderGraph) node(id nodeID, pass string) *resourceNode {
	if id.isNull() {
		panic(&BuildError{Pass: pass, Reason: "null resource node"})
	}
	if id.graph != g.id || int(id.index) >= len(g.nodes) {
		panic(&BuildError{Pass: pass, Reason: "resource node belongs to another graph"})
	}
	return &g.nodes[id.index]
}

func (g *RenderGraph) resourceName(n *resourceNode) string {
	switch n.kind {
	case kindBuffer:
		return g.buffers[n.resource].name
	case kindTexture:
		return g.textures[n.resource].name
	case kindTlas:
		return g.tlases[n.resource].name
	case kindBlasGroup:
		return g.blasGroups[n.resource].name
	}
	return ""
}

func (g *RenderGraph) isImported(n *resourceNode) bool {
	switch n.kind {
	case kindBuffer:
		return !g.buffers[n.resource].external.IsNull()
	case kindTexture:
		return !g.textures[n.resource].external.IsNull()
	}
	return true
}

// CreateBuffer declares a transient buffer. Its usage is inferred from the
// passes that use it.
func (g *RenderGraph) CreateBuffer(name string, desc gpu.BufferDesc) BufferNode {
	if desc.Size == 0 {
		panic(&BuildError{Resource: name, Reason: "buffer size must be positive"})
	}
	desc.Name = name
	g.buffers = append(g.buffers, bufferResource{name: name, desc: desc})
	return BufferNode{g.newNode(kindBuffer, len(g.buffers)-1, passgraph.NullPass)}
}

// CreateTexture declares a transient texture.
func (g *RenderGraph) CreateTexture(name string, desc gpu.TextureDesc) TextureNode {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		panic(&BuildError{Resource: name, Reason: "texture extent must be positive"})
	}
	desc.Name = name
	desc.MipLevels = max(desc.MipLevels, 1)
	desc.LayerCount = max(desc.LayerCount, 1)
	if desc.SampleCount == 0 {
		desc.SampleCount = gpu.SampleCount1
	}
	g.textures = append(g.textures, textureResource{name: name, desc: desc})
	return TextureNode{g.newNode(kindTexture, len(g.textures)-1, passgraph.NullPass)}
}

// ImportBuffer brings a device buffer into the graph.
func (g *RenderGraph) ImportBuffer(name string, id gpu.BufferID) BufferNode {
	if id.IsNull() {
		panic(&BuildError{Resource: name, Reason: "imported buffer id is null"})
	}
	g.buffers = append(g.buffers, bufferResource{name: name, external: id})
	return BufferNode{g.newNode(kindBuffer, len(g.buffers)-1, passgraph.NullPass)}
}

// ImportTexture brings a device texture into the graph.
func (g *RenderGraph) ImportTexture(name string, id gpu.TextureID) TextureNode {
	if id.IsNull() {
		panic(&BuildError{Resource: name, Reason: "imported texture id is null"})
	}
	g.textures = append(g.textures, textureResource{name: name, external: id})
	return TextureNode{g.newNode(kindTexture, len(g.textures)-1, passgraph.NullPass)}
}

// ImportTlas brings a device top-level acceleration structure into the graph.
func (g *RenderGraph) ImportTlas(name string, id gpu.TlasID) TlasNode {
	if id.IsNull() {
		panic(&BuildError{Resource: name, Reason: "imported tlas id is null"})
	}
	g.tlases = append(g.tlases, tlasResource{name: name, external: id})
	return TlasNode{g.newNode(kindTlas, len(g.tlases)-1, passgraph.NullPass)}
}

// ImportBlasGroup brings a device BLAS group into the graph.
func (g *RenderGraph) ImportBlasGroup(name string, id gpu.BlasGroupID) BlasGroupNode {
	if id.IsNull() {
		panic(&BuildError{Resource: name, Reason: "imported blas group id is null"})
	}
	g.blasGroups = append(g.blasGroups, blasGroupResource{name: name, external: id})
	return BlasGroupNode{g.newNode(kindBlasGroup, len(g.blasGroups)-1, passgraph.NullPass)}
}

// SetOutput marks n as a frame output: the pass that produced it, and
// everything that pass depends on, will run.
func (g *RenderGraph) SetOutput(n Node) {
	g.node(n.nodeID(), "").output = true
}

// ExportTexture marks a texture version as a frame output.
func (g *RenderGraph) ExportTexture(n TextureNode) { g.SetOutput(n) }

// ExportBuffer marks a buffer version as a frame output.
func (g *RenderGraph) ExportBuffer(n BufferNode) { g.SetOutput(n) }

// PassState reports the lifecycle state of the named pass.
func (g *RenderGraph) PassState(name string) (PassState, bool) {
	for _, p := range g.passes {
		if p.name == name {
			return p.State(), true
		}
	}
	return PassDeclared, false
}

// PassNames lists passes in declaration order.
func (g *RenderGraph) PassNames() []string {
	names := make([]string, len(g.passes))
	for i, p := range g.passes {
		names[i] = p.name
	}
	return names
}
