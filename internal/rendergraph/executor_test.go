package rendergraph_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/fakegpu"
	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/ledger"
	rg "github.com/vk/rendergraph/internal/rendergraph"
)

type harness struct {
	ctx    context.Context
	dev    *fakegpu.Device
	queues *fakegpu.Queues
	rc     rg.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:    ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler)),
		dev:    fakegpu.NewDevice(),
		queues: fakegpu.NewQueues(),
	}
	h.rc = rg.Context{Device: h.dev, Queues: h.queues, Options: rg.DefaultOptions()}
	return h
}

func (h *harness) execute(t *testing.T, g *rg.RenderGraph) (*rg.FrameReport, error) {
	t.Helper()
	return rg.Execute(h.ctx, h.rc, g)
}

func (h *harness) submission(t *testing.T, label string) fakegpu.Submission {
	t.Helper()
	s, ok := h.queues.Find(label)
	require.True(t, ok, "no submission for %q", label)
	return s
}

type bufferPass struct {
	in  rg.BufferNode
	out rg.BufferNode
}

// storagePass reads in (unless null) and writes out with compute shaders.
func storagePass(g *rg.RenderGraph, name string, queue gpu.QueueType, in, out rg.BufferNode) rg.BufferNode {
	p := rg.AddComputePass(g, name, queue,
		func(p *bufferPass, b *rg.Builder) {
			if !in.IsNull() {
				p.in = b.AddReadSsbo(in, gpu.ShaderCompute)
			}
			p.out = b.AddWriteSsbo(out, gpu.ShaderCompute)
		},
		func(p *bufferPass, reg *rg.Registry, enc rg.CommandEncoder) error {
			if reg.Buffer(p.out).IsNull() {
				return errors.New("output buffer not resolved")
			}
			enc.Dispatch(1, 1, 1)
			return nil
		})
	return p.out
}

func bufferDesc() gpu.BufferDesc { return gpu.BufferDesc{Size: 256} }

func TestExecute_ChainWithCulledPass(t *testing.T) {
	h := newHarness(t)
	z := h.dev.AddBuffer(gpu.BufferDesc{Name: "z", Size: 256})

	g := rg.New()
	x := g.CreateBuffer("x", bufferDesc())
	y := g.CreateBuffer("y", bufferDesc())
	w := g.CreateBuffer("w", bufferDesc())

	x = storagePass(g, "A", gpu.QueueGraphics, rg.BufferNode{}, x)
	y = storagePass(g, "B", gpu.QueueGraphics, x, y)
	storagePass(g, "C", gpu.QueueGraphics, y, g.ImportBuffer("z", z))
	storagePass(g, "D", gpu.QueueGraphics, x, w)

	report, err := h.execute(t, g)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, report.PassOrder)
	assert.Equal(t, []string{"D"}, report.Culled)
	assert.Equal(t, 2, report.Barriers.PipelineBarriers)
	assert.Zero(t, report.Barriers.EventWaits)
	assert.Zero(t, report.Barriers.SemaphoreWaits)
	assert.Equal(t, 2, report.TransientBuffers, "w is only used by a culled pass")
	assert.Len(t, report.FrameID, 12)

	assert.Zero(t, h.submission(t, "A").Encoder.Count(fakegpu.OpPipelineBarrier))
	assert.Equal(t, 1, h.submission(t, "B").Encoder.Count(fakegpu.OpPipelineBarrier))
	assert.Equal(t, 1, h.submission(t, "C").Encoder.Count(fakegpu.OpPipelineBarrier))
	_, ok := h.queues.Find("D")
	assert.False(t, ok)

	for _, name := range []string{"A", "B", "C"} {
		st, ok := g.PassState(name)
		require.True(t, ok)
		assert.Equal(t, rg.PassSubmitted, st, name)
	}
	st, _ := g.PassState("D")
	assert.Equal(t, rg.PassDeclared, st)

	barrier := h.submission(t, "B").Encoder.Barriers()[0]
	assert.Equal(t, gpu.Stages(gpu.StageComputeShader), barrier.SrcStages)
	assert.Equal(t, gpu.Stages(gpu.StageComputeShader), barrier.DstStages)
	require.Len(t, barrier.Buffers, 1)
	assert.True(t, barrier.Buffers[0].SrcAccess.Has(gpu.AccessShaderWrite))

	assert.Equal(t, 1, h.dev.LiveBuffers(), "transients are destroyed at the end of the frame")
	assert.Zero(t, h.dev.LiveObjects())
}

func TestExecute_TextureChainWithCulledPass(t *testing.T) {
	h := newHarness(t)
	z := h.dev.AddTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 64, 64), gpu.LayoutGeneral)
	desc := gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 64, 64)

	g := rg.New()
	type params struct{}
	texturePass := func(name string, in, out rg.TextureNode) rg.TextureNode {
		var next rg.TextureNode
		rg.AddComputePass(g, name, gpu.QueueGraphics,
			func(_ *params, b *rg.Builder) {
				if !in.IsNull() {
					b.AddSrv(in, gpu.ShaderCompute)
				}
				next = b.AddUav(out, gpu.ShaderCompute)
			}, nil)
		return next
	}
	x := texturePass("A", rg.TextureNode{}, g.CreateTexture("x", desc))
	y := texturePass("B", x, g.CreateTexture("y", desc))
	texturePass("C", y, g.ImportTexture("z", z))
	texturePass("D", x, g.CreateTexture("w", desc))

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, report.PassOrder)
	assert.Equal(t, []string{"D"}, report.Culled)
	assert.Equal(t, 2, report.TransientTextures, "w is only used by a culled pass")
	assert.Zero(t, report.Barriers.SemaphoreWaits)
	_, ok := h.queues.Find("D")
	assert.False(t, ok)

	barriers := h.submission(t, "C").Encoder.Barriers()
	require.Len(t, barriers, 1)
	require.Len(t, barriers[0].Textures, 1, "only y changes hands before C")
	yb := barriers[0].Textures[0]
	assert.Equal(t, gpu.LayoutGeneral, yb.OldLayout)
	assert.Equal(t, gpu.LayoutShaderReadOnlyOptimal, yb.NewLayout)
	assert.True(t, yb.SrcAccess.Has(gpu.AccessShaderWrite))
	assert.Equal(t, gpu.Stages(gpu.StageComputeShader), barriers[0].SrcStages)

	assert.Equal(t, 1, h.dev.LiveTextures(), "only the imported texture outlives the frame")
}

func TestExecute_ReadOnlyTextureAcrossQueues(t *testing.T) {
	h := newHarness(t)
	tex := h.dev.AddTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 64, 64), gpu.LayoutShaderReadOnlyOptimal)
	o1 := h.dev.AddBuffer(gpu.BufferDesc{Name: "o1", Size: 16})
	o2 := h.dev.AddBuffer(gpu.BufferDesc{Name: "o2", Size: 16})

	g := rg.New()
	t0 := g.ImportTexture("t", tex)
	type params struct{ out rg.BufferNode }
	reader := func(name string, queue gpu.QueueType, out gpu.BufferID) {
		rg.AddComputePass(g, name, queue,
			func(p *params, b *rg.Builder) {
				b.AddSrv(t0, gpu.ShaderCompute)
				p.out = b.AddWriteSsbo(g.ImportBuffer(name+"_out", out), gpu.ShaderCompute)
			}, nil)
	}
	reader("graphics", gpu.QueueGraphics, o1)
	reader("compute", gpu.QueueCompute, o2)

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"graphics", "compute"}, report.PassOrder)
	assert.Zero(t, report.Barriers.SemaphoreWaits)
	assert.Zero(t, report.Barriers.PipelineBarriers)
	assert.Empty(t, h.submission(t, "compute").Waits)

	layout, _ := h.dev.TextureState(tex)
	assert.Equal(t, gpu.LayoutShaderReadOnlyOptimal, layout)
}

func TestExecute_CrossQueueSemaphore(t *testing.T) {
	h := newHarness(t)
	z := h.dev.AddBuffer(gpu.BufferDesc{Name: "z", Size: 256})

	g := rg.New()
	x := storagePass(g, "produce", gpu.QueueGraphics, rg.BufferNode{}, g.CreateBuffer("x", bufferDesc()))
	storagePass(g, "consume", gpu.QueueCompute, x, g.ImportBuffer("z", z))

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Barriers.SemaphoreWaits)
	assert.Zero(t, report.Barriers.EventWaits)

	produce := h.submission(t, "produce")
	consume := h.submission(t, "consume")
	require.Len(t, consume.Waits, 1)
	assert.Equal(t, produce.Signal, consume.Waits[0].Semaphore)
	assert.Equal(t, gpu.Stages(gpu.StageComputeShader), consume.Waits[0].Stages)
	assert.Zero(t, consume.Encoder.Count(fakegpu.OpWaitEvents))

	state := h.dev.BufferState(z)
	assert.Equal(t, gpu.QueueCompute, state.QueueOwner)
	assert.True(t, state.UnavailableAccesses.Has(gpu.AccessShaderWrite))
}

func TestExecute_CrossQueueReaderAfterSameQueueReader(t *testing.T) {
	h := newHarness(t)
	o1 := h.dev.AddBuffer(gpu.BufferDesc{Name: "o1", Size: 256})
	o2 := h.dev.AddBuffer(gpu.BufferDesc{Name: "o2", Size: 256})

	g := rg.New()
	x := storagePass(g, "A", gpu.QueueGraphics, rg.BufferNode{}, g.CreateBuffer("x", bufferDesc()))
	storagePass(g, "B", gpu.QueueGraphics, x, g.ImportBuffer("o1", o1))
	storagePass(g, "C", gpu.QueueCompute, x, g.ImportBuffer("o2", o2))

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, report.PassOrder)
	assert.Equal(t, 1, report.Barriers.SemaphoreWaits)

	b := h.submission(t, "B")
	c := h.submission(t, "C")
	require.Len(t, c.Waits, 1, "C reads what A wrote on another queue")
	assert.Equal(t, b.Signal, c.Waits[0].Semaphore)
	assert.Greater(t, c.Waits[0].Semaphore.Value, h.submission(t, "A").Signal.Value)
}

func TestExecute_WriteAfterReadsOnTwoQueues(t *testing.T) {
	h := newHarness(t)
	xb := h.dev.AddBuffer(gpu.BufferDesc{Name: "x", Size: 256})
	oa := h.dev.AddBuffer(gpu.BufferDesc{Name: "oa", Size: 256})
	ob := h.dev.AddBuffer(gpu.BufferDesc{Name: "ob", Size: 256})

	g := rg.New()
	x := g.ImportBuffer("x", xb)
	storagePass(g, "A", gpu.QueueGraphics, x, g.ImportBuffer("oa", oa))
	storagePass(g, "B", gpu.QueueCompute, x, g.ImportBuffer("ob", ob))
	storagePass(g, "C", gpu.QueueGraphics, rg.BufferNode{}, x)

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, report.PassOrder)
	assert.Equal(t, 2, report.Barriers.SemaphoreWaits)

	a := h.submission(t, "A")
	b := h.submission(t, "B")
	c := h.submission(t, "C")
	require.Len(t, b.Waits, 1)
	assert.Equal(t, a.Signal, b.Waits[0].Semaphore)
	require.Len(t, c.Waits, 1, "C overwrites x after both queues read it")
	assert.Equal(t, b.Signal, c.Waits[0].Semaphore)

	state := h.dev.BufferState(xb)
	assert.Equal(t, gpu.QueueGraphics, state.QueueOwner)
}

func TestExecute_WrittenTextureReadOnTwoQueues(t *testing.T) {
	h := newHarness(t)
	tex := h.dev.AddTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 64, 64), gpu.LayoutShaderReadOnlyOptimal)
	o1 := h.dev.AddBuffer(gpu.BufferDesc{Name: "o1", Size: 16})
	o2 := h.dev.AddBuffer(gpu.BufferDesc{Name: "o2", Size: 16})

	// t was written on graphics in an earlier frame.
	prev := ledger.New()
	prev.CommitAccess(gpu.QueueGraphics, gpu.Stages(gpu.StageComputeShader), gpu.Accesses(gpu.AccessShaderWrite))
	h.dev.SetTextureState(tex, gpu.LayoutShaderReadOnlyOptimal, prev)

	g := rg.New()
	t0 := g.ImportTexture("t", tex)
	type params struct{ out rg.BufferNode }
	reader := func(name string, queue gpu.QueueType, out gpu.BufferID) {
		rg.AddComputePass(g, name, queue,
			func(p *params, b *rg.Builder) {
				b.AddSrv(t0, gpu.ShaderCompute)
				p.out = b.AddWriteSsbo(g.ImportBuffer(name+"_out", out), gpu.ShaderCompute)
			}, nil)
	}
	reader("graphics", gpu.QueueGraphics, o1)
	reader("compute", gpu.QueueCompute, o2)

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"graphics", "compute"}, report.PassOrder)
	assert.Equal(t, 1, report.Barriers.SemaphoreWaits)

	compute := h.submission(t, "compute")
	require.Len(t, compute.Waits, 1)
	assert.Equal(t, h.submission(t, "graphics").Signal, compute.Waits[0].Semaphore)
}

// distantConsumerGraph builds A -> M -> C where C also reads a buffer A
// wrote, leaving one unrelated pass between producer and consumer.
func distantConsumerGraph(z gpu.BufferID) *rg.RenderGraph {
	g := rg.New()
	x := g.CreateBuffer("x", bufferDesc())
	w := g.CreateBuffer("w", bufferDesc())
	v := g.CreateBuffer("v", bufferDesc())

	type producer struct{ x, w rg.BufferNode }
	a := rg.AddComputePass(g, "A", gpu.QueueGraphics,
		func(p *producer, b *rg.Builder) {
			p.x = b.AddWriteSsbo(x, gpu.ShaderCompute)
			p.w = b.AddWriteSsbo(w, gpu.ShaderCompute)
		}, nil)
	v = storagePass(g, "M", gpu.QueueGraphics, a.w, v)
	type consumer struct{ out rg.BufferNode }
	rg.AddComputePass(g, "C", gpu.QueueGraphics,
		func(p *consumer, b *rg.Builder) {
			b.AddReadSsbo(a.x, gpu.ShaderCompute)
			b.AddReadSsbo(v, gpu.ShaderCompute)
			p.out = b.AddWriteSsbo(g.ImportBuffer("z", z), gpu.ShaderCompute)
		}, nil)
	return g
}

func TestExecute_EventForDistantConsumer(t *testing.T) {
	h := newHarness(t)
	report, err := h.execute(t, distantConsumerGraph(h.dev.AddBuffer(bufferDesc())))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "M", "C"}, report.PassOrder)
	assert.Equal(t, 1, report.Barriers.EventWaits)
	assert.Equal(t, 2, report.Barriers.PipelineBarriers)

	assert.Equal(t, 1, h.submission(t, "A").Encoder.Count(fakegpu.OpSetEvent))
	c := h.submission(t, "C").Encoder
	waits := c.EventWaits()
	require.Len(t, waits, 1)
	assert.Len(t, waits[0].Events, 1)
	assert.Len(t, waits[0].Buffers, 1)
	assert.Equal(t, 1, c.Count(fakegpu.OpPipelineBarrier), "v is consumed right after M and uses a barrier")
	assert.Zero(t, h.dev.LiveObjects(), "events are destroyed with the frame")
}

func TestExecute_EventsDisabled(t *testing.T) {
	h := newHarness(t)
	h.rc.Options.EventDistance = -1

	report, err := h.execute(t, distantConsumerGraph(h.dev.AddBuffer(bufferDesc())))
	require.NoError(t, err)
	assert.Zero(t, report.Barriers.EventWaits)
	assert.Equal(t, 2, report.Barriers.PipelineBarriers, "x joins the barrier C already needs for v")
	assert.Zero(t, h.submission(t, "A").Encoder.Count(fakegpu.OpSetEvent))
}

func TestExecute_ExternalEvent(t *testing.T) {
	h := newHarness(t)
	z := h.dev.AddBuffer(gpu.BufferDesc{Name: "z", Size: 256})
	o := h.dev.AddBuffer(gpu.BufferDesc{Name: "o", Size: 256})

	// z was written by a compute shader on graphics in an earlier frame.
	prev := ledger.New()
	prev.CommitAccess(gpu.QueueGraphics, gpu.Stages(gpu.StageComputeShader), gpu.Accesses(gpu.AccessShaderWrite))
	h.dev.SetBufferState(z, prev)

	g := rg.New()
	storagePass(g, "read", gpu.QueueGraphics, g.ImportBuffer("z", z), g.ImportBuffer("o", o))

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Submissions)
	assert.Equal(t, 1, report.Barriers.EventWaits)

	sync := h.submission(t, "external_sync")
	assert.Equal(t, 1, sync.Encoder.Count(fakegpu.OpSetEvent))
	read := h.submission(t, "read")
	assert.Equal(t, 1, read.Encoder.Count(fakegpu.OpWaitEvents))
	assert.Less(t, sync.Signal.Value, read.Signal.Value)
}

func TestExecute_ExternalBarrierOnTransfer(t *testing.T) {
	h := newHarness(t)
	z := h.dev.AddBuffer(gpu.BufferDesc{Name: "z", Size: 256})
	o := h.dev.AddBuffer(gpu.BufferDesc{Name: "o", Size: 256})

	prev := ledger.New()
	prev.CommitAccess(gpu.QueueTransfer, gpu.Stages(gpu.StageTransfer), gpu.Accesses(gpu.AccessTransferWrite))
	h.dev.SetBufferState(z, prev)

	g := rg.New()
	type copyParams struct{ src, dst rg.BufferNode }
	rg.AddNonShaderPass(g, "copy", gpu.QueueTransfer,
		func(p *copyParams, b *rg.Builder) {
			p.src = b.AddSrcBuffer(g.ImportBuffer("z", z))
			p.dst = b.AddDstBuffer(g.ImportBuffer("o", o))
		},
		func(p *copyParams, reg *rg.Registry, enc rg.CommandEncoder) error {
			enc.CopyBuffer(reg.Buffer(p.src), reg.Buffer(p.dst), 256)
			return nil
		})

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submissions, "transfer queues never use events")
	assert.Zero(t, report.Barriers.EventWaits)
	assert.Equal(t, 1, report.Barriers.PipelineBarriers)

	copyEnc := h.submission(t, "copy").Encoder
	barrier := copyEnc.Barriers()[0]
	assert.Equal(t, gpu.Stages(gpu.StageTransfer), barrier.SrcStages)
	assert.Equal(t, 1, copyEnc.Count(fakegpu.OpCopyBuffer))
}

type rasterParams struct {
	color rg.TextureNode
}

func TestExecute_PresentationTarget(t *testing.T) {
	h := newHarness(t)
	swap := h.dev.AddTexture(gpu.Desc2D(gpu.FormatBGRA8Unorm, 1, 32, 32), gpu.LayoutUndefined)
	h.dev.MarkPresentation(swap)

	g := rg.New()
	p := rg.AddRasterPass(g, "draw", rg.RenderTargetDesc{Width: 32, Height: 32},
		func(p *rasterParams, b *rg.RasterBuilder) {
			p.color = b.AddColorAttachment(g.ImportTexture("swapchain", swap), rg.ColorAttachmentDesc{
				Clear:      true,
				ClearValue: gpu.ClearValue{Color: [4]float32{0, 0, 0, 1}},
			})
		},
		func(p *rasterParams, reg *rg.Registry, enc rg.CommandEncoder) error {
			if reg.RenderPass() == 0 {
				return errors.New("raster pass without render pass")
			}
			pso, err := reg.PipelineState(gpu.PipelineStateDesc{Name: "triangle", BindPoint: gpu.BindPointGraphics})
			if err != nil {
				return err
			}
			enc.BindPipeline(pso)
			enc.Draw(3, 1)
			return nil
		})
	g.ExportTexture(p.color)

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Barriers.SemaphoreWaits)
	assert.Equal(t, 1, report.Barriers.LayoutTransitions)

	draw := h.submission(t, "draw")
	require.Len(t, draw.Waits, 1)
	assert.Equal(t, h.dev.ImageAvailableSemaphore(), draw.Waits[0].Semaphore)
	assert.Equal(t, 1, draw.Encoder.Count(fakegpu.OpBeginRenderPass))
	assert.Equal(t, 1, draw.Encoder.Count(fakegpu.OpEndRenderPass))
	assert.Equal(t, 1, draw.Encoder.Count(fakegpu.OpDraw))

	keys := h.dev.RenderPassKeys()
	require.Len(t, keys, 1)
	want := gpu.AttachmentActive | gpu.AttachmentFirstPass | gpu.AttachmentLastPass | gpu.AttachmentClear | gpu.AttachmentExternal
	assert.Equal(t, want, keys[0].Color[0].Flags)
	assert.Equal(t, gpu.FormatBGRA8Unorm, keys[0].Color[0].Format)
	assert.Equal(t, 1, keys[0].ColorCount())

	layout, _ := h.dev.TextureState(swap)
	assert.Equal(t, gpu.LayoutColorAttachmentOptimal, layout)
}

func TestExecute_RenderPassFlagsAcrossPasses(t *testing.T) {
	h := newHarness(t)
	out := h.dev.AddTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 16, 16), gpu.LayoutShaderReadOnlyOptimal)

	g := rg.New()
	color := g.CreateTexture("color", gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 16, 16))
	first := rg.AddRasterPass(g, "first", rg.RenderTargetDesc{Width: 16, Height: 16},
		func(p *rasterParams, b *rg.RasterBuilder) {
			p.color = b.AddColorAttachment(color, rg.ColorAttachmentDesc{Clear: true})
		}, nil)
	second := rg.AddRasterPass(g, "second", rg.RenderTargetDesc{Width: 16, Height: 16},
		func(p *rasterParams, b *rg.RasterBuilder) {
			p.color = b.AddColorAttachment(first.color, rg.ColorAttachmentDesc{})
		}, nil)
	type copyParams struct{}
	rg.AddNonShaderPass(g, "blit", gpu.QueueGraphics,
		func(_ *copyParams, b *rg.Builder) {
			b.AddSrcTexture(second.color, gpu.SubresourceIndexRange{})
			b.AddDstTexture(g.ImportTexture("out", out), gpu.SubresourceIndexRange{})
		}, nil)

	_, err := h.execute(t, g)
	require.NoError(t, err)

	var flags []gpu.AttachmentFlags
	for _, k := range h.dev.RenderPassKeys() {
		flags = append(flags, k.Color[0].Flags)
	}
	assert.ElementsMatch(t, []gpu.AttachmentFlags{
		gpu.AttachmentActive | gpu.AttachmentFirstPass | gpu.AttachmentClear,
		gpu.AttachmentActive,
	}, flags)
}

func TestExecute_MixedLayouts(t *testing.T) {
	h := newHarness(t)
	tex := h.dev.AddTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 2, 64, 64), gpu.LayoutShaderReadOnlyOptimal)

	g := rg.New()
	type params struct{}
	rg.AddNonShaderPass(g, "upload_mip0", gpu.QueueGraphics,
		func(_ *params, b *rg.Builder) {
			b.AddDstTexture(g.ImportTexture("t", tex), gpu.SingleView(0, 0))
		}, nil)

	_, err := h.execute(t, g)
	require.ErrorIs(t, err, rg.ErrMixedLayouts)
	assert.Empty(t, h.queues.Submissions())

	layout, _ := h.dev.TextureState(tex)
	assert.Equal(t, gpu.LayoutShaderReadOnlyOptimal, layout, "device state is untouched on failure")
}

func TestExecute_UninitializedRead(t *testing.T) {
	build := func(z gpu.BufferID) *rg.RenderGraph {
		g := rg.New()
		storagePass(g, "read", gpu.QueueGraphics, g.CreateBuffer("never_written", bufferDesc()), g.ImportBuffer("z", z))
		return g
	}

	t.Run("ignored by default", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.execute(t, build(h.dev.AddBuffer(bufferDesc())))
		require.NoError(t, err)
	})

	t.Run("fails when configured", func(t *testing.T) {
		h := newHarness(t)
		h.rc.Options.UninitializedReads = rg.ReadFail
		_, err := h.execute(t, build(h.dev.AddBuffer(bufferDesc())))
		require.ErrorIs(t, err, rg.ErrUninitializedRead)
		assert.Empty(t, h.queues.Submissions())
	})
}

func TestExecute_AllocationFailure(t *testing.T) {
	h := newHarness(t)
	z := h.dev.AddBuffer(gpu.BufferDesc{Name: "z", Size: 256})
	h.dev.FailCreateAfter(1)

	g := rg.New()
	x := storagePass(g, "A", gpu.QueueGraphics, rg.BufferNode{}, g.CreateBuffer("x", bufferDesc()))
	y := storagePass(g, "B", gpu.QueueGraphics, x, g.CreateBuffer("y", bufferDesc()))
	storagePass(g, "C", gpu.QueueGraphics, y, g.ImportBuffer("z", z))

	_, err := h.execute(t, g)
	require.ErrorIs(t, err, rg.ErrAllocation)
	require.ErrorIs(t, err, fakegpu.ErrInjected)
	assert.Contains(t, []string{
		`buffer "x" (first used by "A")`,
		`buffer "y" (first used by "B")`,
	}, allocationSubject(err.Error()))
	assert.Empty(t, h.queues.Submissions())
	assert.Equal(t, 1, h.dev.LiveBuffers(), "partially created transients are released")
}

// allocationSubject extracts the resource and pass an allocation error names.
func allocationSubject(msg string) string {
	_, rest, _ := strings.Cut(msg, rg.ErrAllocation.Error()+": ")
	subject, _, _ := strings.Cut(rest, ": ")
	return subject
}

func TestExecute_RecordFailure(t *testing.T) {
	cases := map[string]rg.RecordFunc[bufferPass]{
		"error": func(*bufferPass, *rg.Registry, rg.CommandEncoder) error {
			return errors.New("shader missing")
		},
		"panic": func(*bufferPass, *rg.Registry, rg.CommandEncoder) error {
			panic("nil pipeline")
		},
	}
	for name, record := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			z := h.dev.AddBuffer(bufferDesc())

			g := rg.New()
			x := storagePass(g, "ok", gpu.QueueGraphics, rg.BufferNode{}, g.CreateBuffer("x", bufferDesc()))
			rg.AddComputePass(g, "broken", gpu.QueueGraphics,
				func(p *bufferPass, b *rg.Builder) {
					p.in = b.AddReadSsbo(x, gpu.ShaderCompute)
					p.out = b.AddWriteSsbo(g.ImportBuffer("z", z), gpu.ShaderCompute)
				}, record)

			_, err := h.execute(t, g)
			require.ErrorIs(t, err, rg.ErrPassFailed)
			assert.Contains(t, err.Error(), "broken")
			assert.Empty(t, h.queues.Submissions(), "nothing is submitted when a pass fails")

			st, _ := g.PassState("ok")
			assert.Equal(t, rg.PassRecorded, st)
			st, _ = g.PassState("broken")
			assert.Equal(t, rg.PassFailed, st)
			assert.Equal(t, 1, h.dev.LiveBuffers())
			assert.Zero(t, h.dev.LiveObjects())
		})
	}
}

func TestExecute_SubmissionFailure(t *testing.T) {
	h := newHarness(t)
	h.queues.Get(gpu.QueueGraphics).FailSubmit(errors.New("device lost"))
	z := h.dev.AddBuffer(bufferDesc())

	g := rg.New()
	storagePass(g, "A", gpu.QueueGraphics, rg.BufferNode{}, g.ImportBuffer("z", z))

	_, err := h.execute(t, g)
	require.ErrorIs(t, err, rg.ErrSubmission)
}

func TestExecute_ClearTexture(t *testing.T) {
	h := newHarness(t)
	out := h.dev.AddBuffer(bufferDesc())

	g := rg.New()
	tex := g.CreateTexture("scratch", gpu.Desc2DArray(gpu.FormatRGBA16Float, 2, 8, 8, 3))
	tex = g.ClearTexture("clear", gpu.QueueGraphics, tex, gpu.ClearValue{Color: [4]float32{1, 1, 1, 1}})
	type params struct{}
	rg.AddComputePass(g, "sample", gpu.QueueGraphics,
		func(_ *params, b *rg.Builder) {
			b.AddSrv(tex, gpu.ShaderCompute)
			b.AddWriteSsbo(g.ImportBuffer("out", out), gpu.ShaderCompute)
		}, nil)

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TransientTextures)
	assert.Equal(t, 6, h.submission(t, "clear").Encoder.Count(fakegpu.OpClearTexture))

	sample := h.submission(t, "sample").Encoder
	barriers := sample.Barriers()
	require.Len(t, barriers, 1)
	assert.Len(t, barriers[0].Textures, 6, "one barrier entry per view")
	for _, tb := range barriers[0].Textures {
		assert.Equal(t, gpu.LayoutTransferDstOptimal, tb.OldLayout)
		assert.Equal(t, gpu.LayoutShaderReadOnlyOptimal, tb.NewLayout)
	}
	assert.Equal(t, 6+6, report.Barriers.LayoutTransitions, "undefined to transfer, then transfer to sampled")
}

func TestExecute_AccelerationStructures(t *testing.T) {
	h := newHarness(t)
	tlas := h.dev.AddTlas()
	blas := h.dev.AddBlasGroup()
	out := h.dev.AddTexture(gpu.Desc2D(gpu.FormatRGBA8Unorm, 1, 8, 8), gpu.LayoutGeneral)

	g := rg.New()
	instances := g.CreateBuffer("instances", gpu.BufferDesc{Size: 64})
	type upload struct{ dst rg.BufferNode }
	up := rg.AddNonShaderPass(g, "upload", gpu.QueueTransfer,
		func(p *upload, b *rg.Builder) { p.dst = b.AddDstBuffer(instances) }, nil)

	type build struct {
		tlas rg.TlasNode
		in   rg.BufferNode
	}
	bp := rg.AddNonShaderPass(g, "build_tlas", gpu.QueueCompute,
		func(p *build, b *rg.Builder) {
			p.in = b.AddAsBuildInput(up.dst)
			b.AddAsBuildInputBlasGroup(g.ImportBlasGroup("blas", blas))
			p.tlas = b.AddAsBuildDstTlas(g.ImportTlas("tlas", tlas))
		},
		func(p *build, reg *rg.Registry, enc rg.CommandEncoder) error {
			enc.BuildTlas(reg.Tlas(p.tlas), reg.Buffer(p.in))
			return nil
		})

	type trace struct{}
	rg.AddRayTracingPass(g, "trace", gpu.QueueCompute,
		func(_ *trace, b *rg.Builder) {
			b.AddShaderTlas(bp.tlas, gpu.ShaderRayTracing)
			b.AddUav(g.ImportTexture("out", out), gpu.ShaderRaygen)
		},
		func(_ *trace, _ *rg.Registry, enc rg.CommandEncoder) error {
			enc.TraceRays(8, 8, 1)
			return nil
		})

	report, err := h.execute(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"upload", "build_tlas", "trace"}, report.PassOrder)
	assert.Equal(t, 1, report.Barriers.SemaphoreWaits, "transfer to compute")

	traceEnc := h.submission(t, "trace").Encoder
	assert.Equal(t, 1, traceEnc.Count(fakegpu.OpTraceRays))
	barriers := traceEnc.Barriers()
	require.Len(t, barriers, 1)
	assert.Len(t, barriers[0].Memory, 1, "tlas dependencies are global memory barriers")

	assert.Equal(t, gpu.QueueCompute, h.dev.TlasState(tlas).QueueOwner)
}

func TestExecute_Twice(t *testing.T) {
	h := newHarness(t)
	g := rg.New()
	_, err := h.execute(t, g)
	require.NoError(t, err)
	_, err = h.execute(t, g)
	require.ErrorIs(t, err, rg.ErrAlreadyExecuted)
}
