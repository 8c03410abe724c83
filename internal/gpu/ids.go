package gpu

import "fmt"

// Device object ids. The zero value of each is the null id.
type (
	BufferID        uint64
	TextureID       uint64
	TlasID          uint64
	BlasGroupID     uint64
	EventID         uint64
	RenderPassID    uint64
	FramebufferID   uint64
	PipelineStateID uint64
	DescriptorID    uint64
)

func (id BufferID) IsNull() bool    { return id == 0 }
func (id TextureID) IsNull() bool   { return id == 0 }
func (id TlasID) IsNull() bool      { return id == 0 }
func (id BlasGroupID) IsNull() bool { return id == 0 }
func (id EventID) IsNull() bool     { return id == 0 }

// Semaphore is a point on a queue's timeline semaphore. Waiting on it blocks
// until the queue has signalled Value.
type Semaphore struct {
	Queue QueueType
	Value uint64
}

func (s Semaphore) IsNull() bool { return s.Value == 0 }

func (s Semaphore) String() string {
	if s.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s@%d", s.Queue, s.Value)
}

// BindPoint is the pipeline bind point descriptor sets are bound to.
type BindPoint uint8

const (
	BindPointGraphics BindPoint = iota
	BindPointCompute
	BindPointRayTracing
)

func (b BindPoint) String() string {
	switch b {
	case BindPointGraphics:
		return "graphics"
	case BindPointCompute:
		return "compute"
	case BindPointRayTracing:
		return "ray_tracing"
	}
	return "unknown"
}

// PipelineStateDesc identifies a pipeline the device compiles on request.
type PipelineStateDesc struct {
	Name       string
	BindPoint  BindPoint
	RenderPass RenderPassID
}
