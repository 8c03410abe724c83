package rendergraph

import (
	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/ledger"
)

// Device is the GPU collaborator the graph allocates from and persists
// external resource state into. Implementations must be safe for concurrent
// use: the allocator creates resources from several goroutines.
//
// Destroy calls may arrive before the GPU has finished with the object; the
// device is expected to defer the actual release until it is idle.
type Device interface {
	CreateBuffer(desc gpu.BufferDesc) (gpu.BufferID, error)
	DestroyBuffer(id gpu.BufferID)
	BufferDesc(id gpu.BufferID) gpu.BufferDesc
	BufferState(id gpu.BufferID) ledger.CacheState
	SetBufferState(id gpu.BufferID, s ledger.CacheState)

	CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error)
	DestroyTexture(id gpu.TextureID)
	TextureDesc(id gpu.TextureID) gpu.TextureDesc
	TextureState(id gpu.TextureID) (gpu.TextureLayout, ledger.CacheState)
	SetTextureState(id gpu.TextureID, layout gpu.TextureLayout, s ledger.CacheState)

	TlasState(id gpu.TlasID) ledger.CacheState
	SetTlasState(id gpu.TlasID, s ledger.CacheState)
	BlasGroupState(id gpu.BlasGroupID) ledger.CacheState
	SetBlasGroupState(id gpu.BlasGroupID, s ledger.CacheState)

	// IsPresentationOwned reports whether the texture is a swapchain image
	// that must wait on ImageAvailableSemaphore before first use.
	IsPresentationOwned(id gpu.TextureID) bool
	ImageAvailableSemaphore() gpu.Semaphore

	CreateEvent() (gpu.EventID, error)
	DestroyEvent(id gpu.EventID)

	RequestRenderPass(key gpu.RenderPassKey) (gpu.RenderPassID, error)
	CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.FramebufferID, error)
	DestroyFramebuffer(id gpu.FramebufferID)
	RequestPipelineState(desc gpu.PipelineStateDesc) (gpu.PipelineStateID, error)

	BufferDescriptor(id gpu.BufferID) gpu.DescriptorID
	TextureDescriptor(id gpu.TextureID, view gpu.SubresourceIndex) gpu.DescriptorID
}

// QueueTable resolves a queue type to the device queue.
type QueueTable interface {
	Queue(t gpu.QueueType) Queue
}

// Queue is a submission queue with a timeline semaphore.
type Queue interface {
	Type() gpu.QueueType
	RequestCommandBuffer() (CommandEncoder, error)
	// Wait makes the next submission wait for sem at the given stages.
	Wait(sem gpu.Semaphore, stages gpu.PipelineStageFlags)
	// Submit submits enc and returns the timeline point it signals.
	Submit(enc CommandEncoder) (gpu.Semaphore, error)
	// TimelineValue is the last value handed out by Submit.
	TimelineValue() uint64
}

// CommandEncoder records commands into a single command buffer.
type CommandEncoder interface {
	BeginLabel(name string)
	EndLabel()

	PipelineBarrier(b PipelineBarrier)
	WaitEvents(w EventWait)
	SetEvent(id gpu.EventID, stages gpu.PipelineStageFlags)

	BeginRenderPass(b RenderPassBegin)
	EndRenderPass()
	BindDescriptorSets(bp gpu.BindPoint)
	BindPipeline(id gpu.PipelineStateID)

	Draw(vertexCount, instanceCount uint32)
	DrawIndexed(indexCount, instanceCount uint32)
	Dispatch(x, y, z uint32)
	TraceRays(width, height, depth uint32)
	CopyBuffer(src, dst gpu.BufferID, size uint64)
	CopyTexture(src, dst gpu.TextureView)
	ClearTexture(view gpu.TextureView, value gpu.ClearValue)
	BuildTlas(dst gpu.TlasID, instances gpu.BufferID)
	BuildBlasGroup(dst gpu.BlasGroupID)
}

// MemoryBarrier is a global memory dependency.
type MemoryBarrier struct {
	SrcAccess gpu.AccessFlags
	DstAccess gpu.AccessFlags
}

// BufferBarrier is a memory dependency on one buffer.
type BufferBarrier struct {
	Buffer    gpu.BufferID
	SrcAccess gpu.AccessFlags
	DstAccess gpu.AccessFlags
}

// TextureBarrier is a memory dependency on one texture view, optionally
// with a layout transition.
type TextureBarrier struct {
	Texture   gpu.TextureID
	View      gpu.SubresourceIndex
	OldLayout gpu.TextureLayout
	NewLayout gpu.TextureLayout
	SrcAccess gpu.AccessFlags
	DstAccess gpu.AccessFlags
}

// PipelineBarrier is one vkCmdPipelineBarrier worth of dependencies.
type PipelineBarrier struct {
	SrcStages gpu.PipelineStageFlags
	DstStages gpu.PipelineStageFlags
	Memory    []MemoryBarrier
	Buffers   []BufferBarrier
	Textures  []TextureBarrier
}

func (b *PipelineBarrier) empty() bool {
	return len(b.Memory) == 0 && len(b.Buffers) == 0 && len(b.Textures) == 0
}

// EventWait is one vkCmdWaitEvents worth of dependencies.
type EventWait struct {
	Events    []gpu.EventID
	SrcStages gpu.PipelineStageFlags
	DstStages gpu.PipelineStageFlags
	Memory    []MemoryBarrier
	Buffers   []BufferBarrier
	Textures  []TextureBarrier
}

// RenderPassBegin starts a render pass over a framebuffer.
type RenderPassBegin struct {
	RenderPass  gpu.RenderPassID
	Framebuffer gpu.FramebufferID
	Width       uint32
	Height      uint32
	ClearValues []gpu.ClearValue
}
