package fakegpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/handle"
	"github.com/vk/rendergraph/internal/ledger"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// ErrInjected is returned by create calls once the FailCreateAfter budget is
// spent.
var ErrInjected = errors.New("fakegpu: injected create failure")

type buffer struct {
	desc  gpu.BufferDesc
	state ledger.CacheState
}

type texture struct {
	desc         gpu.TextureDesc
	layout       gpu.TextureLayout
	state        ledger.CacheState
	presentation bool
}

// Device is an in-memory rendergraph.Device.
type Device struct {
	mu sync.RWMutex

	buffers      *handle.Arena[buffer]
	textures     *handle.Arena[texture]
	events       *handle.Arena[struct{}]
	framebuffers *handle.Arena[gpu.FramebufferDesc]

	tlases     map[gpu.TlasID]ledger.CacheState
	blasGroups map[gpu.BlasGroupID]ledger.CacheState
	nextAS     uint64

	renderPasses map[gpu.RenderPassKey]gpu.RenderPassID
	pipelines    map[gpu.PipelineStateDesc]gpu.PipelineStateID

	imageAvailable gpu.Semaphore

	failAfter int
	created   int
	destroyed int
}

var _ rendergraph.Device = (*Device)(nil)

// NewDevice creates an empty device.
func NewDevice() *Device {
	return &Device{
		buffers:        handle.New[buffer](16),
		textures:       handle.New[texture](16),
		events:         handle.New[struct{}](8),
		framebuffers:   handle.New[gpu.FramebufferDesc](8),
		tlases:         make(map[gpu.TlasID]ledger.CacheState),
		blasGroups:     make(map[gpu.BlasGroupID]ledger.CacheState),
		renderPasses:   make(map[gpu.RenderPassKey]gpu.RenderPassID),
		pipelines:      make(map[gpu.PipelineStateDesc]gpu.PipelineStateID),
		imageAvailable: gpu.Semaphore{Queue: gpu.QueueGraphics, Value: 1},
		failAfter:      -1,
	}
}

// FailCreateAfter makes every buffer, texture, event and framebuffer
// creation fail once n more have succeeded. A negative n disables failures.
func (d *Device) FailCreateAfter(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAfter = n
}

// charge must be called with d.mu held.
func (d *Device) charge() error {
	if d.failAfter == 0 {
		return ErrInjected
	}
	if d.failAfter > 0 {
		d.failAfter--
	}
	d.created++
	return nil
}

// AddBuffer registers a long-lived buffer that can be imported into graphs.
func (d *Device) AddBuffer(desc gpu.BufferDesc) gpu.BufferID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.BufferID(d.buffers.Insert(buffer{desc: desc, state: ledger.New()}).Pack())
}

// AddTexture registers a long-lived texture in the given layout.
func (d *Device) AddTexture(desc gpu.TextureDesc, layout gpu.TextureLayout) gpu.TextureID {
	desc.MipLevels = max(desc.MipLevels, 1)
	desc.LayerCount = max(desc.LayerCount, 1)
	if desc.SampleCount == 0 {
		desc.SampleCount = gpu.SampleCount1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.TextureID(d.textures.Insert(texture{desc: desc, layout: layout, state: ledger.New()}).Pack())
}

// MarkPresentation flags a texture as a swapchain image.
func (d *Device) MarkPresentation(id gpu.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texture(id).presentation = true
}

// AddTlas registers a top-level acceleration structure.
func (d *Device) AddTlas() gpu.TlasID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextAS++
	id := gpu.TlasID(d.nextAS)
	d.tlases[id] = ledger.New()
	return id
}

// AddBlasGroup registers a group of bottom-level acceleration structures.
func (d *Device) AddBlasGroup() gpu.BlasGroupID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextAS++
	id := gpu.BlasGroupID(d.nextAS)
	d.blasGroups[id] = ledger.New()
	return id
}

func (d *Device) buffer(id gpu.BufferID) *buffer {
	b, ok := d.buffers.Get(handle.Unpack(uint64(id)))
	if !ok {
		panic(fmt.Sprintf("fakegpu: unknown buffer %d", id))
	}
	return b
}

func (d *Device) texture(id gpu.TextureID) *texture {
	t, ok := d.textures.Get(handle.Unpack(uint64(id)))
	if !ok {
		panic(fmt.Sprintf("fakegpu: unknown texture %d", id))
	}
	return t
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.charge(); err != nil {
		return 0, fmt.Errorf("buffer %q: %w", desc.Name, err)
	}
	return gpu.BufferID(d.buffers.Insert(buffer{desc: desc, state: ledger.New()}).Pack()), nil
}

func (d *Device) DestroyBuffer(id gpu.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buffers.Remove(handle.Unpack(uint64(id))) {
		d.destroyed++
	}
}

func (d *Device) BufferDesc(id gpu.BufferID) gpu.BufferDesc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buffer(id).desc
}

func (d *Device) BufferState(id gpu.BufferID) ledger.CacheState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buffer(id).state
}

func (d *Device) SetBufferState(id gpu.BufferID, s ledger.CacheState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer(id).state = s
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.charge(); err != nil {
		return 0, fmt.Errorf("texture %q: %w", desc.Name, err)
	}
	t := texture{desc: desc, layout: gpu.LayoutUndefined, state: ledger.New()}
	if desc.Clear {
		// Cleared at creation, ready to be sampled.
		t.layout = gpu.LayoutShaderReadOnlyOptimal
	}
	return gpu.TextureID(d.textures.Insert(t).Pack()), nil
}

func (d *Device) DestroyTexture(id gpu.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.textures.Remove(handle.Unpack(uint64(id))) {
		d.destroyed++
	}
}

func (d *Device) TextureDesc(id gpu.TextureID) gpu.TextureDesc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.texture(id).desc
}

func (d *Device) TextureState(id gpu.TextureID) (gpu.TextureLayout, ledger.CacheState) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t := d.texture(id)
	return t.layout, t.state
}

func (d *Device) SetTextureState(id gpu.TextureID, layout gpu.TextureLayout, s ledger.CacheState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.texture(id)
	t.layout = layout
	t.state = s
}

func (d *Device) TlasState(id gpu.TlasID) ledger.CacheState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tlases[id]
}

func (d *Device) SetTlasState(id gpu.TlasID, s ledger.CacheState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tlases[id] = s
}

func (d *Device) BlasGroupState(id gpu.BlasGroupID) ledger.CacheState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.blasGroups[id]
}

func (d *Device) SetBlasGroupState(id gpu.BlasGroupID, s ledger.CacheState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blasGroups[id] = s
}

func (d *Device) IsPresentationOwned(id gpu.TextureID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.texture(id).presentation
}

func (d *Device) ImageAvailableSemaphore() gpu.Semaphore { return d.imageAvailable }

func (d *Device) CreateEvent() (gpu.EventID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.charge(); err != nil {
		return 0, fmt.Errorf("event: %w", err)
	}
	return gpu.EventID(d.events.Insert(struct{}{}).Pack()), nil
}

func (d *Device) DestroyEvent(id gpu.EventID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.events.Remove(handle.Unpack(uint64(id))) {
		d.destroyed++
	}
}

// RequestRenderPass returns the same id for equal keys.
func (d *Device) RequestRenderPass(key gpu.RenderPassKey) (gpu.RenderPassID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.renderPasses[key]; ok {
		return id, nil
	}
	id := gpu.RenderPassID(len(d.renderPasses) + 1)
	d.renderPasses[key] = id
	return id, nil
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.FramebufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.charge(); err != nil {
		return 0, fmt.Errorf("framebuffer: %w", err)
	}
	desc.Attachments = append([]gpu.TextureView(nil), desc.Attachments...)
	return gpu.FramebufferID(d.framebuffers.Insert(desc).Pack()), nil
}

func (d *Device) DestroyFramebuffer(id gpu.FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.framebuffers.Remove(handle.Unpack(uint64(id))) {
		d.destroyed++
	}
}

func (d *Device) RequestPipelineState(desc gpu.PipelineStateDesc) (gpu.PipelineStateID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.pipelines[desc]; ok {
		return id, nil
	}
	id := gpu.PipelineStateID(len(d.pipelines) + 1)
	d.pipelines[desc] = id
	return id, nil
}

func (d *Device) BufferDescriptor(id gpu.BufferID) gpu.DescriptorID {
	return gpu.DescriptorID(id)
}

func (d *Device) TextureDescriptor(id gpu.TextureID, view gpu.SubresourceIndex) gpu.DescriptorID {
	return gpu.DescriptorID(uint64(id) ^ uint64(view.Layer)<<48 ^ uint64(view.Level)<<56)
}

// RenderPassKeys lists every render pass key requested so far.
func (d *Device) RenderPassKeys() []gpu.RenderPassKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]gpu.RenderPassKey, 0, len(d.renderPasses))
	for k := range d.renderPasses {
		keys = append(keys, k)
	}
	return keys
}

// LiveBuffers counts buffers that have not been destroyed, imports included.
func (d *Device) LiveBuffers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buffers.Len()
}

// LiveTextures counts textures that have not been destroyed, imports included.
func (d *Device) LiveTextures() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.textures.Len()
}

// LiveObjects counts events and framebuffers that have not been destroyed.
func (d *Device) LiveObjects() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.events.Len() + d.framebuffers.Len()
}

// Created is the number of successful create calls.
func (d *Device) Created() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.created
}

// Destroyed is the number of destroy calls that released something.
func (d *Device) Destroyed() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.destroyed
}
