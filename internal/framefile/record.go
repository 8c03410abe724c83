package framefile

import (
	"fmt"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/rendergraph"
)

func bindPipeline(n *passNodes, reg *rendergraph.Registry, enc rendergraph.CommandEncoder, bp gpu.BindPoint) error {
	id, err := reg.PipelineState(gpu.PipelineStateDesc{
		Name:       n.def.Name,
		BindPoint:  bp,
		RenderPass: reg.RenderPass(),
	})
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", n.def.Name, err)
	}
	enc.BindPipeline(id)
	return nil
}

func recordDispatch(n *passNodes, reg *rendergraph.Registry, enc rendergraph.CommandEncoder) error {
	if err := bindPipeline(n, reg, enc, gpu.BindPointCompute); err != nil {
		return err
	}
	d := n.def.Dispatch
	enc.Dispatch(d[0], d[1], d[2])
	return nil
}

func recordTraceRays(n *passNodes, reg *rendergraph.Registry, enc rendergraph.CommandEncoder) error {
	if err := bindPipeline(n, reg, enc, gpu.BindPointRayTracing); err != nil {
		return err
	}
	d := n.def.Dispatch
	enc.TraceRays(d[0], d[1], d[2])
	return nil
}

func recordDraw(n *passNodes, reg *rendergraph.Registry, enc rendergraph.CommandEncoder) error {
	if err := bindPipeline(n, reg, enc, gpu.BindPointGraphics); err != nil {
		return err
	}
	if n.def.Index != "" {
		enc.DrawIndexed(n.def.Draw, 1)
		return nil
	}
	enc.Draw(n.def.Draw, 1)
	return nil
}

func recordCopy(n *passNodes, reg *rendergraph.Registry, enc rendergraph.CommandEncoder) error {
	p := n.def
	if src, ok := n.buffers[p.CopySrc]; ok {
		dst := n.buffers[p.CopyDst]
		size := min(reg.BufferDesc(src).Size, reg.BufferDesc(dst).Size)
		enc.CopyBuffer(reg.Buffer(src), reg.Buffer(dst), size)
		return nil
	}
	src, dst := n.textures[p.CopySrc], n.textures[p.CopyDst]
	enc.CopyTexture(
		gpu.TextureView{Texture: reg.Texture(src)},
		gpu.TextureView{Texture: reg.Texture(dst)},
	)
	return nil
}
