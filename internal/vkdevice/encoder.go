package vkdevice

import (
	"fmt"
	"strings"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// Encoder records into a vk.CommandBuffer that is already in the recording
// state. The first failure is latched and reported by Err; later commands
// are still attempted so the label stack stays balanced.
type Encoder struct {
	cmd    vk.CommandBuffer
	res    Resolver
	labels []string
	err    error
}

var _ rendergraph.CommandEncoder = (*Encoder)(nil)

func NewEncoder(cmd vk.CommandBuffer, res Resolver) *Encoder {
	return &Encoder{cmd: cmd, res: res}
}

func (e *Encoder) CommandBuffer() vk.CommandBuffer { return e.cmd }

func (e *Encoder) Err() error { return e.err }

func (e *Encoder) fail(err error) {
	if e.err != nil {
		return
	}
	if len(e.labels) > 0 {
		err = fmt.Errorf("%s: %w", strings.Join(e.labels, "/"), err)
	}
	e.err = err
}

// BeginLabel only tracks the scope for error messages; vulkan-go does not
// bind VK_EXT_debug_utils.
func (e *Encoder) BeginLabel(name string) { e.labels = append(e.labels, name) }

func (e *Encoder) EndLabel() {
	if len(e.labels) == 0 {
		e.fail(ErrLabelUnderflow)
		return
	}
	e.labels = e.labels[:len(e.labels)-1]
}

type barriers struct {
	memory  []vk.MemoryBarrier
	buffers []vk.BufferMemoryBarrier
	images  []vk.ImageMemoryBarrier
}

func (e *Encoder) convert(mem []rendergraph.MemoryBarrier, bufs []rendergraph.BufferBarrier, texs []rendergraph.TextureBarrier) (barriers, bool) {
	var out barriers
	for _, m := range mem {
		out.memory = append(out.memory, vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: Accesses(m.SrcAccess),
			DstAccessMask: Accesses(m.DstAccess),
		})
	}
	for _, b := range bufs {
		buf, ok := e.res.Buffer(b.Buffer)
		if !ok {
			e.fail(unknown("buffer", uint64(b.Buffer)))
			return barriers{}, false
		}
		out.buffers = append(out.buffers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       Accesses(b.SrcAccess),
			DstAccessMask:       Accesses(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              buf,
			Size:                vk.DeviceSize(vk.WholeSize),
		})
	}
	for _, t := range texs {
		img, ok := e.res.Image(t.Texture)
		if !ok {
			e.fail(unknown("image", uint64(t.Texture)))
			return barriers{}, false
		}
		out.images = append(out.images, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       Accesses(t.SrcAccess),
			DstAccessMask:       Accesses(t.DstAccess),
			OldLayout:           Layout(t.OldLayout),
			NewLayout:           Layout(t.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange:    subresourceRange(img.Format, t.View),
		})
	}
	return out, true
}

func (e *Encoder) PipelineBarrier(b rendergraph.PipelineBarrier) {
	bs, ok := e.convert(b.Memory, b.Buffers, b.Textures)
	if !ok {
		return
	}
	vk.CmdPipelineBarrier(e.cmd,
		PipelineStages(b.SrcStages), PipelineStages(b.DstStages), 0,
		uint32(len(bs.memory)), bs.memory,
		uint32(len(bs.buffers)), bs.buffers,
		uint32(len(bs.images)), bs.images)
}

func (e *Encoder) WaitEvents(w rendergraph.EventWait) {
	events := make([]vk.Event, 0, len(w.Events))
	for _, id := range w.Events {
		ev, ok := e.res.Event(id)
		if !ok {
			e.fail(unknown("event", uint64(id)))
			return
		}
		events = append(events, ev)
	}
	bs, ok := e.convert(w.Memory, w.Buffers, w.Textures)
	if !ok {
		return
	}
	vk.CmdWaitEvents(e.cmd, uint32(len(events)), events,
		PipelineStages(w.SrcStages), PipelineStages(w.DstStages),
		uint32(len(bs.memory)), bs.memory,
		uint32(len(bs.buffers)), bs.buffers,
		uint32(len(bs.images)), bs.images)
}

func (e *Encoder) SetEvent(id gpu.EventID, stages gpu.PipelineStageFlags) {
	ev, ok := e.res.Event(id)
	if !ok {
		e.fail(unknown("event", uint64(id)))
		return
	}
	vk.CmdSetEvent(e.cmd, ev, PipelineStages(stages))
}

func (e *Encoder) BeginRenderPass(b rendergraph.RenderPassBegin) {
	rp, ok := e.res.RenderPass(b.RenderPass)
	if !ok {
		e.fail(unknown("render pass", uint64(b.RenderPass)))
		return
	}
	fb, ok := e.res.Framebuffer(b.Framebuffer)
	if !ok {
		e.fail(unknown("framebuffer", uint64(b.Framebuffer)))
		return
	}
	clears := clearValues(rp.Key, b.ClearValues)
	vk.CmdBeginRenderPass(e.cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.Handle,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{},
			Extent: vk.Extent2D{Width: b.Width, Height: b.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
}

// clearValues converts per-attachment clear values in framebuffer order:
// colours, resolves, then depth.
func clearValues(key gpu.RenderPassKey, in []gpu.ClearValue) []vk.ClearValue {
	out := make([]vk.ClearValue, len(in))
	depth := -1
	if key.HasDepth() {
		depth = len(in) - 1
	}
	for i, c := range in {
		if i == depth {
			out[i] = vk.NewClearDepthStencil(c.Depth, c.Stencil)
			continue
		}
		out[i] = vk.NewClearValue(c.Color[:])
	}
	return out
}

func (e *Encoder) EndRenderPass() { vk.CmdEndRenderPass(e.cmd) }

func (e *Encoder) BindDescriptorSets(bp gpu.BindPoint) {
	b, ok := e.res.DescriptorSet(bp)
	if !ok {
		e.fail(fmt.Errorf("%w: descriptor set for %s", ErrUnknownObject, bp))
		return
	}
	vk.CmdBindDescriptorSets(e.cmd, BindPoint(bp), b.Layout, 0, 1, []vk.DescriptorSet{b.Set}, 0, nil)
}

func (e *Encoder) BindPipeline(id gpu.PipelineStateID) {
	p, ok := e.res.Pipeline(id)
	if !ok {
		e.fail(unknown("pipeline", uint64(id)))
		return
	}
	vk.CmdBindPipeline(e.cmd, BindPoint(p.BindPoint), p.Handle)
}

func (e *Encoder) Draw(vertexCount, instanceCount uint32) {
	vk.CmdDraw(e.cmd, vertexCount, instanceCount, 0, 0)
}

func (e *Encoder) DrawIndexed(indexCount, instanceCount uint32) {
	vk.CmdDrawIndexed(e.cmd, indexCount, instanceCount, 0, 0, 0)
}

func (e *Encoder) Dispatch(x, y, z uint32) { vk.CmdDispatch(e.cmd, x, y, z) }

func (e *Encoder) TraceRays(width, height, depth uint32) {
	e.fail(fmt.Errorf("%w: trace rays %dx%dx%d", ErrUnsupported, width, height, depth))
}

func (e *Encoder) CopyBuffer(src, dst gpu.BufferID, size uint64) {
	s, ok := e.res.Buffer(src)
	if !ok {
		e.fail(unknown("buffer", uint64(src)))
		return
	}
	d, ok := e.res.Buffer(dst)
	if !ok {
		e.fail(unknown("buffer", uint64(dst)))
		return
	}
	vk.CmdCopyBuffer(e.cmd, s, d, 1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})
}

// CopyTexture copies one view to another. The graph has already moved the
// views to TransferSrcOptimal and TransferDstOptimal.
func (e *Encoder) CopyTexture(src, dst gpu.TextureView) {
	s, ok := e.res.Image(src.Texture)
	if !ok {
		e.fail(unknown("image", uint64(src.Texture)))
		return
	}
	d, ok := e.res.Image(dst.Texture)
	if !ok {
		e.fail(unknown("image", uint64(dst.Texture)))
		return
	}
	vk.CmdCopyImage(e.cmd,
		s.Handle, vk.ImageLayoutTransferSrcOptimal,
		d.Handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{{
			SrcSubresource: subresourceLayers(s.Format, src.Index),
			DstSubresource: subresourceLayers(d.Format, dst.Index),
			Extent:         mipExtent(s.Extent, src.Index.Level),
		}})
}

func mipExtent(e gpu.Extent3D, level uint32) vk.Extent3D {
	return vk.Extent3D{
		Width:  max(e.Width>>level, 1),
		Height: max(e.Height>>level, 1),
		Depth:  max(e.Depth>>level, 1),
	}
}

// ClearTexture clears one view in TransferDstOptimal layout.
func (e *Encoder) ClearTexture(view gpu.TextureView, value gpu.ClearValue) {
	img, ok := e.res.Image(view.Texture)
	if !ok {
		e.fail(unknown("image", uint64(view.Texture)))
		return
	}
	rng := []vk.ImageSubresourceRange{subresourceRange(img.Format, view.Index)}
	if img.Format.IsDepth() {
		vk.CmdClearDepthStencilImage(e.cmd, img.Handle, vk.ImageLayoutTransferDstOptimal,
			&vk.ClearDepthStencilValue{Depth: value.Depth, Stencil: value.Stencil}, 1, rng)
		return
	}
	cv := vk.NewClearValue(value.Color[:])
	// The colour member of VkClearValue sits at offset zero.
	color := (*vk.ClearColorValue)(unsafe.Pointer(&cv))
	vk.CmdClearColorImage(e.cmd, img.Handle, vk.ImageLayoutTransferDstOptimal, color, 1, rng)
}

func (e *Encoder) BuildTlas(dst gpu.TlasID, instances gpu.BufferID) {
	e.fail(fmt.Errorf("%w: build tlas %d", ErrUnsupported, dst))
}

func (e *Encoder) BuildBlasGroup(dst gpu.BlasGroupID) {
	e.fail(fmt.Errorf("%w: build blas group %d", ErrUnsupported, dst))
}
