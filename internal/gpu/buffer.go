package gpu

// BufferUsageFlags lists the ways a buffer may be used by the device.
type BufferUsageFlags uint16

const (
	BufferUsageIndex BufferUsageFlags = 1 << iota
	BufferUsageVertex
	BufferUsageIndirect
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
	BufferUsageAccelerationStructureBuildInput
)

func (f BufferUsageFlags) Has(o BufferUsageFlags) bool { return f&o == o }

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Name   string
	Size   uint64
	Usage  BufferUsageFlags
	Queues QueueFlags
}
