package framefile

import (
	"fmt"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// Importer registers the frame's imported resources with a device. The
// recording device in internal/fakegpu satisfies it.
type Importer interface {
	AddBuffer(desc gpu.BufferDesc) gpu.BufferID
	AddTexture(desc gpu.TextureDesc, layout gpu.TextureLayout) gpu.TextureID
	MarkPresentation(id gpu.TextureID)
}

// scope maps each logical resource name to its latest node version.
type scope struct {
	buffers  map[string]rendergraph.BufferNode
	textures map[string]rendergraph.TextureNode
}

// passNodes are the node versions a pass's record callback resolves.
type passNodes struct {
	def      *Pass
	buffers  map[string]rendergraph.BufferNode
	textures map[string]rendergraph.TextureNode
}

func (s *scope) nodes(p *Pass) *passNodes {
	return &passNodes{
		def:      p,
		buffers:  make(map[string]rendergraph.BufferNode),
		textures: make(map[string]rendergraph.TextureNode),
	}
}

// Declare adds the frame's resources and passes to g. Imported resources are
// registered with dev on the first call and reused afterwards, so their
// state carries over from one frame to the next.
func (f *Frame) Declare(g *rendergraph.RenderGraph, dev Importer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			be, ok := r.(*rendergraph.BuildError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("declare frame %s: %w", f.Path, be)
		}
	}()

	s := &scope{
		buffers:  make(map[string]rendergraph.BufferNode),
		textures: make(map[string]rendergraph.TextureNode),
	}
	for _, r := range f.Resources {
		f.declareResource(g, dev, s, r)
	}
	for _, p := range f.Passes {
		declarePass(g, s, f, p)
	}
	if f.Output != "" {
		if n, ok := s.buffers[f.Output]; ok {
			g.ExportBuffer(n)
		} else {
			g.ExportTexture(s.textures[f.Output])
		}
	}
	return nil
}

func (f *Frame) declareResource(g *rendergraph.RenderGraph, dev Importer, s *scope, r *Resource) {
	switch {
	case r.Kind == KindBuffer && r.Imported:
		id, ok := f.imported[r.Name]
		if !ok {
			id = uint64(dev.AddBuffer(r.Buffer))
			f.imported[r.Name] = id
		}
		s.buffers[r.Name] = g.ImportBuffer(r.Name, gpu.BufferID(id))
	case r.Kind == KindBuffer:
		s.buffers[r.Name] = g.CreateBuffer(r.Name, r.Buffer)
	case r.Imported:
		id, ok := f.imported[r.Name]
		if !ok {
			tex := dev.AddTexture(r.Texture, r.Layout)
			if r.Texture.Presentable {
				dev.MarkPresentation(tex)
			}
			id = uint64(tex)
			f.imported[r.Name] = id
		}
		s.textures[r.Name] = g.ImportTexture(r.Name, gpu.TextureID(id))
	default:
		s.textures[r.Name] = g.CreateTexture(r.Name, r.Texture)
	}
}

func shaderStages(k PassKind) gpu.ShaderStageFlags {
	switch k {
	case PassCompute:
		return gpu.ShaderCompute
	case PassRayTracing:
		return gpu.ShaderRayTracing
	}
	return gpu.ShaderVertex | gpu.ShaderFragment
}

// declareShaderAccess handles the reads and writes lists every shader pass
// shares.
func declareShaderAccess(b *rendergraph.Builder, s *scope, n *passNodes) {
	stages := shaderStages(n.def.Kind)
	for _, name := range n.def.Reads {
		if buf, ok := s.buffers[name]; ok {
			n.buffers[name] = b.AddReadSsbo(buf, stages)
			continue
		}
		n.textures[name] = b.AddSrv(s.textures[name], stages)
	}
	for _, name := range n.def.Writes {
		if buf, ok := s.buffers[name]; ok {
			next := b.AddWriteSsbo(buf, stages)
			s.buffers[name], n.buffers[name] = next, next
			continue
		}
		next := b.AddUav(s.textures[name], stages)
		s.textures[name], n.textures[name] = next, next
	}
}

func declarePass(g *rendergraph.RenderGraph, s *scope, f *Frame, p *Pass) {
	switch p.Kind {
	case PassRaster:
		declareRaster(g, s, f, p)
	case PassCompute:
		rendergraph.AddComputePass(g, p.Name, p.Queue,
			func(n *passNodes, b *rendergraph.Builder) {
				*n = *s.nodes(p)
				declareShaderAccess(b, s, n)
			}, recordDispatch)
	case PassRayTracing:
		rendergraph.AddRayTracingPass(g, p.Name, p.Queue,
			func(n *passNodes, b *rendergraph.Builder) {
				*n = *s.nodes(p)
				declareShaderAccess(b, s, n)
			}, recordTraceRays)
	case PassCopy:
		rendergraph.AddNonShaderPass(g, p.Name, p.Queue,
			func(n *passNodes, b *rendergraph.Builder) {
				*n = *s.nodes(p)
				declareCopy(b, s, n)
			}, recordCopy)
	case PassClear:
		s.textures[p.Target] = g.ClearTexture(p.Name, p.Queue, s.textures[p.Target], p.ClearValue)
	}
}

func declareCopy(b *rendergraph.Builder, s *scope, n *passNodes) {
	p := n.def
	if src, ok := s.buffers[p.CopySrc]; ok {
		n.buffers[p.CopySrc] = b.AddSrcBuffer(src)
		next := b.AddDstBuffer(s.buffers[p.CopyDst])
		s.buffers[p.CopyDst], n.buffers[p.CopyDst] = next, next
		return
	}
	view := gpu.SingleView(0, 0)
	n.textures[p.CopySrc] = b.AddSrcTexture(s.textures[p.CopySrc], view)
	next := b.AddDstTexture(s.textures[p.CopyDst], view)
	s.textures[p.CopyDst], n.textures[p.CopyDst] = next, next
}

func declareRaster(g *rendergraph.RenderGraph, s *scope, f *Frame, p *Pass) {
	target := rendergraph.RenderTargetDesc{}
	first := p.Depth
	if len(p.Colors) > 0 {
		first = p.Colors[0]
	}
	if r, ok := f.Resource(first); ok {
		target.Width = r.Texture.Extent.Width
		target.Height = r.Texture.Extent.Height
		target.SampleCount = r.Texture.SampleCount
	}

	rendergraph.AddRasterPass(g, p.Name, target,
		func(n *passNodes, b *rendergraph.RasterBuilder) {
			*n = *s.nodes(p)
			declareShaderAccess(&b.Builder, s, n)
			for _, name := range p.Vertex {
				n.buffers[name] = b.AddVertexBuffer(s.buffers[name])
			}
			if p.Index != "" {
				n.buffers[p.Index] = b.AddIndexBuffer(s.buffers[p.Index])
			}
			if p.Indirect != "" {
				n.buffers[p.Indirect] = b.AddIndirectCommandBuffer(s.buffers[p.Indirect])
			}
			desc := rendergraph.ColorAttachmentDesc{Clear: p.Clear, ClearValue: p.ClearValue}
			for _, name := range p.Colors {
				next := b.AddColorAttachment(s.textures[name], desc)
				s.textures[name], n.textures[name] = next, next
			}
			for _, name := range p.Resolves {
				next := b.AddResolveAttachment(s.textures[name], rendergraph.ColorAttachmentDesc{})
				s.textures[name], n.textures[name] = next, next
			}
			if p.Depth != "" {
				next := b.AddDepthStencilAttachment(s.textures[p.Depth], rendergraph.DepthStencilAttachmentDesc{
					DepthWriteEnable: p.DepthWrite,
					Clear:            p.Clear,
					ClearValue:       p.ClearValue,
				})
				s.textures[p.Depth], n.textures[p.Depth] = next, next
			}
		}, recordDraw)
}
