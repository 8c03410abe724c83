package rendergraph

import (
	"fmt"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/passgraph"
)

type resourceKind uint8

const (
	kindTlas resourceKind = iota
	kindBlasGroup
	kindBuffer
	kindTexture
)

func (k resourceKind) String() string {
	switch k {
	case kindTlas:
		return "tlas"
	case kindBlasGroup:
		return "blas_group"
	case kindBuffer:
		return "buffer"
	case kindTexture:
		return "texture"
	}
	return "unknown"
}

// nodeID addresses one resource node of one graph. The zero value is null.
type nodeID struct {
	graph uint32
	index uint32
}

func (id nodeID) isNull() bool { return id.graph == 0 }

// Node is any resource node handle returned by the graph or a builder.
type Node interface {
	nodeID() nodeID
}

// BufferNode is one version of a buffer resource.
type BufferNode struct{ id nodeID }

// TextureNode is one version of a texture resource.
type TextureNode struct{ id nodeID }

// TlasNode is one version of a top-level acceleration structure.
type TlasNode struct{ id nodeID }

// BlasGroupNode is one version of a group of bottom-level acceleration
// structures.
type BlasGroupNode struct{ id nodeID }

func (n BufferNode) nodeID() nodeID    { return n.id }
func (n TextureNode) nodeID() nodeID   { return n.id }
func (n TlasNode) nodeID() nodeID      { return n.id }
func (n BlasGroupNode) nodeID() nodeID { return n.id }

func (n BufferNode) IsNull() bool    { return n.id.isNull() }
func (n TextureNode) IsNull() bool   { return n.id.isNull() }
func (n TlasNode) IsNull() bool      { return n.id.isNull() }
func (n BlasGroupNode) IsNull() bool { return n.id.isNull() }

func (n BufferNode) String() string    { return fmt.Sprintf("buffer_node(%d)", n.id.index) }
func (n TextureNode) String() string   { return fmt.Sprintf("texture_node(%d)", n.id.index) }
func (n TlasNode) String() string      { return fmt.Sprintf("tlas_node(%d)", n.id.index) }
func (n BlasGroupNode) String() string { return fmt.Sprintf("blas_group_node(%d)", n.id.index) }

// resourceNode is one version of one resource. Writing it produces the
// next version and makes this one stale.
type resourceNode struct {
	kind     resourceKind
	resource int
	creator  passgraph.PassID
	writer   passgraph.PassID
	readers  []passgraph.PassID
	output   bool
}

type bufferResource struct {
	name     string
	desc     gpu.BufferDesc
	external gpu.BufferID
}

type textureResource struct {
	name     string
	desc     gpu.TextureDesc
	external gpu.TextureID
}

type tlasResource struct {
	name     string
	external gpu.TlasID
}

type blasGroupResource struct {
	name     string
	external gpu.BlasGroupID
}
