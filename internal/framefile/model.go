package framefile

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/rendergraph/internal/gpu"
)

// ResourceKind is the type of a frame resource.
type ResourceKind uint8

const (
	KindBuffer ResourceKind = iota
	KindTexture
)

func (k ResourceKind) String() string {
	if k == KindTexture {
		return "texture"
	}
	return "buffer"
}

// Resource is a buffer or texture named in a frame file.
type Resource struct {
	Name     string
	Kind     ResourceKind
	Imported bool
	Buffer   gpu.BufferDesc
	Texture  gpu.TextureDesc
	// Layout is the layout an imported texture starts in.
	Layout gpu.TextureLayout

	rng hcl.Range
}

// PassKind selects how a pass block is declared.
type PassKind string

const (
	PassRaster     PassKind = "raster"
	PassCompute    PassKind = "compute"
	PassRayTracing PassKind = "ray_tracing"
	PassCopy       PassKind = "copy"
	PassClear      PassKind = "clear"
)

func (k PassKind) valid() bool {
	switch k {
	case PassRaster, PassCompute, PassRayTracing, PassCopy, PassClear:
		return true
	}
	return false
}

// Pass is one validated pass block.
type Pass struct {
	Name  string
	Kind  PassKind
	Queue gpu.QueueType

	Reads  []string
	Writes []string

	Colors     []string
	Resolves   []string
	Depth      string
	DepthWrite bool
	Clear      bool
	ClearValue gpu.ClearValue

	Vertex   []string
	Index    string
	Indirect string

	CopySrc string
	CopyDst string
	Target  string

	Dispatch [3]uint32
	Draw     uint32

	rng hcl.Range
}

// Frame is a loaded frame description.
type Frame struct {
	Path      string
	Resources []*Resource
	Passes    []*Pass
	Output    string

	byName   map[string]*Resource
	imported map[string]uint64
}

// Resource looks up a resource by name.
func (f *Frame) Resource(name string) (*Resource, bool) {
	r, ok := f.byName[name]
	return r, ok
}
