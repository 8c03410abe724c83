package rendergraph

import (
	"sync/atomic"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/passgraph"
)

// PipelineKind is the set of pipelines a pass binds. The zero value is a
// pass that runs no shaders at all (copies, clears, acceleration structure
// builds).
type PipelineKind uint8

const PipelineNonShader PipelineKind = 0

const (
	PipelineRaster PipelineKind = 1 << iota
	PipelineCompute
	PipelineRayTracing
)

// BindPoints lists the descriptor bind points the pass uses.
func (k PipelineKind) BindPoints() []gpu.BindPoint {
	var bps []gpu.BindPoint
	if k&PipelineRaster != 0 {
		bps = append(bps, gpu.BindPointGraphics)
	}
	if k&PipelineCompute != 0 {
		bps = append(bps, gpu.BindPointCompute)
	}
	if k&PipelineRayTracing != 0 {
		bps = append(bps, gpu.BindPointRayTracing)
	}
	return bps
}

func (k PipelineKind) String() string {
	switch k {
	case PipelineNonShader:
		return "non_shader"
	case PipelineRaster:
		return "raster"
	case PipelineCompute:
		return "compute"
	case PipelineRayTracing:
		return "ray_tracing"
	}
	return "mixed"
}

// PassState is the lifecycle of a pass within one Execute call.
type PassState int32

const (
	// PassDeclared is the state of every pass after setup, and stays the
	// state of culled passes.
	PassDeclared PassState = iota
	PassScheduled
	PassBarriersResolved
	PassRecorded
	PassSubmitted
	PassFailed
)

func (s PassState) String() string {
	switch s {
	case PassDeclared:
		return "declared"
	case PassScheduled:
		return "scheduled"
	case PassBarriersResolved:
		return "barriers_resolved"
	case PassRecorded:
		return "recorded"
	case PassSubmitted:
		return "submitted"
	case PassFailed:
		return "failed"
	}
	return "unknown"
}

// RenderTargetDesc is the framebuffer size and sample count of a raster pass.
type RenderTargetDesc struct {
	Width       uint32
	Height      uint32
	SampleCount gpu.SampleCount
}

// RecordFunc records a pass's commands. p is the parameter struct filled in
// by the pass's setup function.
type RecordFunc[P any] func(p *P, reg *Registry, enc CommandEncoder) error

// access is one resource usage declared by a pass.
type access struct {
	kind         resourceKind
	resource     int
	stages       gpu.PipelineStageFlags
	accesses     gpu.AccessFlags
	layout       gpu.TextureLayout
	views        gpu.SubresourceIndexRange
	bufferUsage  gpu.BufferUsageFlags
	textureUsage gpu.TextureUsageFlags
}

type attachment struct {
	resource   int
	view       gpu.SubresourceIndex
	clear      bool
	clearValue gpu.ClearValue
}

type pass struct {
	id     passgraph.PassID
	name   string
	queue  gpu.QueueType
	kind   PipelineKind
	target RenderTargetDesc

	accesses []access
	colors   []attachment
	resolves []attachment
	depth    *attachment

	record func(reg *Registry, enc CommandEncoder) error
	state  atomic.Int32
}

func (p *pass) State() PassState     { return PassState(p.state.Load()) }
func (p *pass) setState(s PassState) { p.state.Store(int32(s)) }

func (g *RenderGraph) addPass(name string, queue gpu.QueueType, kind PipelineKind) *pass {
	if name == "" {
		panic(&BuildError{Reason: "pass name must not be empty"})
	}
	if queue >= gpu.QueueCount {
		panic(&BuildError{Pass: name, Reason: "invalid queue"})
	}
	for _, p := range g.passes {
		if p.name == name {
			panic(&BuildError{Pass: name, Reason: "duplicate pass name"})
		}
	}
	p := &pass{
		id:    passgraph.PassID(len(g.passes)),
		name:  name,
		queue: queue,
		kind:  kind,
	}
	g.passes = append(g.passes, p)
	return p
}

func bindRecord[P any](p *pass, param *P, record RecordFunc[P]) {
	if record == nil {
		return
	}
	p.record = func(reg *Registry, enc CommandEncoder) error {
		return record(param, reg, enc)
	}
}

// AddPass registers a pass of any pipeline kind except raster. setup runs
// immediately and declares the pass's resources; record runs during Execute
// if the pass survives culling.
func AddPass[P any](g *RenderGraph, name string, queue gpu.QueueType, kind PipelineKind, setup func(*P, *Builder), record RecordFunc[P]) *P {
	if kind&PipelineRaster != 0 {
		panic(&BuildError{Pass: name, Reason: "raster passes must be added with AddRasterPass"})
	}
	p := g.addPass(name, queue, kind)
	param := new(P)
	if setup != nil {
		setup(param, &Builder{g: g, pass: p})
	}
	bindRecord(p, param, record)
	return param
}

// AddRasterPass registers a graphics pass that renders into attachments.
func AddRasterPass[P any](g *RenderGraph, name string, target RenderTargetDesc, setup func(*P, *RasterBuilder), record RecordFunc[P]) *P {
	if target.Width == 0 || target.Height == 0 {
		panic(&BuildError{Pass: name, Reason: "render target dimension must be positive"})
	}
	if target.SampleCount == 0 {
		target.SampleCount = gpu.SampleCount1
	}
	p := g.addPass(name, gpu.QueueGraphics, PipelineRaster)
	p.target = target
	param := new(P)
	if setup != nil {
		setup(param, &RasterBuilder{Builder{g: g, pass: p}})
	}
	bindRecord(p, param, record)
	return param
}

// AddComputePass registers a compute shader pass.
func AddComputePass[P any](g *RenderGraph, name string, queue gpu.QueueType, setup func(*P, *Builder), record RecordFunc[P]) *P {
	return AddPass(g, name, queue, PipelineCompute, setup, record)
}

// AddRayTracingPass registers a ray tracing shader pass.
func AddRayTracingPass[P any](g *RenderGraph, name string, queue gpu.QueueType, setup func(*P, *Builder), record RecordFunc[P]) *P {
	return AddPass(g, name, queue, PipelineRayTracing, setup, record)
}

// AddNonShaderPass registers a pass that only records fixed-function
// commands: copies, clears and acceleration structure builds.
func AddNonShaderPass[P any](g *RenderGraph, name string, queue gpu.QueueType, setup func(*P, *Builder), record RecordFunc[P]) *P {
	return AddPass(g, name, queue, PipelineNonShader, setup, record)
}

// ClearTexture adds a pass that clears every view of n to value.
func (g *RenderGraph) ClearTexture(name string, queue gpu.QueueType, n TextureNode, value gpu.ClearValue) TextureNode {
	type clearParams struct {
		dst TextureNode
	}
	p := AddNonShaderPass(g, name, queue,
		func(p *clearParams, b *Builder) {
			p.dst = b.AddDstTexture(n, gpu.SubresourceIndexRange{})
		},
		func(p *clearParams, reg *Registry, enc CommandEncoder) error {
			id := reg.Texture(p.dst)
			reg.TextureDesc(p.dst).FullRange().ForEach(func(s gpu.SubresourceIndex) {
				enc.ClearTexture(gpu.TextureView{Texture: id, Index: s}, value)
			})
			return nil
		})
	return p.dst
}
