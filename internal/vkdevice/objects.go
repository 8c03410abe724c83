package vkdevice

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/handle"
)

// Image is a vk.Image together with the description the graph needs to
// address its subresources.
type Image struct {
	Handle vk.Image
	Format gpu.TextureFormat
	Extent gpu.Extent3D
}

// RenderPass is a created render pass and the key it was built from.
type RenderPass struct {
	Handle vk.RenderPass
	Key    gpu.RenderPassKey
}

type Pipeline struct {
	Handle    vk.Pipeline
	BindPoint gpu.BindPoint
}

// DescriptorBinding is the bindless descriptor set bound at a bind point.
type DescriptorBinding struct {
	Layout vk.PipelineLayout
	Set    vk.DescriptorSet
}

// Resolver maps graph ids to Vulkan handles.
type Resolver interface {
	Buffer(id gpu.BufferID) (vk.Buffer, bool)
	Image(id gpu.TextureID) (Image, bool)
	Event(id gpu.EventID) (vk.Event, bool)
	RenderPass(id gpu.RenderPassID) (RenderPass, bool)
	Framebuffer(id gpu.FramebufferID) (vk.Framebuffer, bool)
	Pipeline(id gpu.PipelineStateID) (Pipeline, bool)
	DescriptorSet(bp gpu.BindPoint) (DescriptorBinding, bool)
}

// Table is a Resolver backed by generational handle arenas. Ids handed out
// by the Register methods are packed handles, so an id outlives a removal
// only as a stale lookup.
type Table struct {
	mu           sync.RWMutex
	buffers      *handle.Arena[vk.Buffer]
	images       *handle.Arena[Image]
	events       *handle.Arena[vk.Event]
	renderPasses *handle.Arena[RenderPass]
	framebuffers *handle.Arena[vk.Framebuffer]
	pipelines    *handle.Arena[Pipeline]
	sets         map[gpu.BindPoint]DescriptorBinding
}

var _ Resolver = (*Table)(nil)

func NewTable() *Table {
	return &Table{
		buffers:      handle.New[vk.Buffer](64),
		images:       handle.New[Image](64),
		events:       handle.New[vk.Event](16),
		renderPasses: handle.New[RenderPass](16),
		framebuffers: handle.New[vk.Framebuffer](16),
		pipelines:    handle.New[Pipeline](16),
		sets:         make(map[gpu.BindPoint]DescriptorBinding),
	}
}

func insert[T any](t *Table, a *handle.Arena[T], v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return a.Insert(v).Pack()
}

func lookup[T any](t *Table, a *handle.Arena[T], id uint64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := a.Get(handle.Unpack(id))
	if !ok {
		var zero T
		return zero, false
	}
	return *v, true
}

func remove[T any](t *Table, a *handle.Arena[T], id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := handle.Unpack(id)
	v, ok := a.Get(h)
	if !ok {
		var zero T
		return zero, false
	}
	out := *v
	a.Remove(h)
	return out, true
}

func (t *Table) RegisterBuffer(b vk.Buffer) gpu.BufferID {
	return gpu.BufferID(insert(t, t.buffers, b))
}

func (t *Table) RegisterImage(img Image) gpu.TextureID {
	return gpu.TextureID(insert(t, t.images, img))
}

func (t *Table) RegisterEvent(ev vk.Event) gpu.EventID {
	return gpu.EventID(insert(t, t.events, ev))
}

func (t *Table) RegisterRenderPass(rp RenderPass) gpu.RenderPassID {
	return gpu.RenderPassID(insert(t, t.renderPasses, rp))
}

func (t *Table) RegisterFramebuffer(fb vk.Framebuffer) gpu.FramebufferID {
	return gpu.FramebufferID(insert(t, t.framebuffers, fb))
}

func (t *Table) RegisterPipeline(p Pipeline) gpu.PipelineStateID {
	return gpu.PipelineStateID(insert(t, t.pipelines, p))
}

// BindDescriptorSet sets the descriptor set bound at bp by every pass.
func (t *Table) BindDescriptorSet(bp gpu.BindPoint, b DescriptorBinding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sets[bp] = b
}

func (t *Table) UnregisterBuffer(id gpu.BufferID) (vk.Buffer, bool) {
	return remove(t, t.buffers, uint64(id))
}

func (t *Table) UnregisterImage(id gpu.TextureID) (Image, bool) {
	return remove(t, t.images, uint64(id))
}

func (t *Table) UnregisterEvent(id gpu.EventID) (vk.Event, bool) {
	return remove(t, t.events, uint64(id))
}

func (t *Table) UnregisterFramebuffer(id gpu.FramebufferID) (vk.Framebuffer, bool) {
	return remove(t, t.framebuffers, uint64(id))
}

func (t *Table) Buffer(id gpu.BufferID) (vk.Buffer, bool) {
	return lookup(t, t.buffers, uint64(id))
}

func (t *Table) Image(id gpu.TextureID) (Image, bool) {
	return lookup(t, t.images, uint64(id))
}

func (t *Table) Event(id gpu.EventID) (vk.Event, bool) {
	return lookup(t, t.events, uint64(id))
}

func (t *Table) RenderPass(id gpu.RenderPassID) (RenderPass, bool) {
	return lookup(t, t.renderPasses, uint64(id))
}

func (t *Table) Framebuffer(id gpu.FramebufferID) (vk.Framebuffer, bool) {
	return lookup(t, t.framebuffers, uint64(id))
}

func (t *Table) Pipeline(id gpu.PipelineStateID) (Pipeline, bool) {
	return lookup(t, t.pipelines, uint64(id))
}

func (t *Table) DescriptorSet(bp gpu.BindPoint) (DescriptorBinding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.sets[bp]
	return b, ok
}

// Counts reports the number of live objects per kind, for diagnostics.
func (t *Table) Counts() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]int{
		"buffer":      t.buffers.Len(),
		"image":       t.images.Len(),
		"event":       t.events.Len(),
		"render_pass": t.renderPasses.Len(),
		"framebuffer": t.framebuffers.Len(),
		"pipeline":    t.pipelines.Len(),
	}
}

func unknown(kind string, id uint64) error {
	return fmt.Errorf("%w: %s %s", ErrUnknownObject, kind, handle.Unpack(id))
}
