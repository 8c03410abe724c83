package gpu

import "strings"

// AccessType is a single kind of memory access.
type AccessType uint8

const (
	AccessIndirectCommandRead AccessType = iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessUniformRead
	AccessInputAttachmentRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite
	AccessAccelerationStructureRead
	AccessAccelerationStructureWrite
	AccessCount
)

var accessNames = [...]string{
	"indirect_command_read", "index_read", "vertex_attribute_read",
	"uniform_read", "input_attachment_read", "shader_read", "shader_write",
	"color_attachment_read", "color_attachment_write",
	"depth_stencil_attachment_read", "depth_stencil_attachment_write",
	"transfer_read", "transfer_write", "host_read", "host_write",
	"memory_read", "memory_write", "acceleration_structure_read",
	"acceleration_structure_write",
}

func (a AccessType) String() string {
	if a < AccessCount {
		return accessNames[a]
	}
	return "unknown"
}

// AccessFlags is a set of memory accesses.
type AccessFlags uint32

const (
	AccessNone AccessFlags = 0
	AccessAll  AccessFlags = 1<<AccessCount - 1
)

// AccessFlagsWrite is the subset of accesses that modify memory.
var AccessFlagsWrite = Accesses(
	AccessShaderWrite,
	AccessColorAttachmentWrite,
	AccessDepthStencilAttachmentWrite,
	AccessTransferWrite,
	AccessHostWrite,
	AccessMemoryWrite,
	AccessAccelerationStructureWrite,
)

// Accesses builds a set from individual access types.
func Accesses(as ...AccessType) AccessFlags {
	var f AccessFlags
	for _, a := range as {
		f |= 1 << a
	}
	return f
}

func (f AccessFlags) Has(a AccessType) bool { return f&(1<<a) != 0 }

func (f AccessFlags) Any(o AccessFlags) bool { return f&o != 0 }

// Contains reports whether every access of o is in f.
func (f AccessFlags) Contains(o AccessFlags) bool { return f&o == o }

func (f AccessFlags) IsEmpty() bool { return f == 0 }

// Writes returns the write subset of f.
func (f AccessFlags) Writes() AccessFlags { return f & AccessFlagsWrite }

func (f AccessFlags) HasWrite() bool { return f&AccessFlagsWrite != 0 }

func (f AccessFlags) String() string {
	if f == 0 {
		return "none"
	}
	if f == AccessAll {
		return "all"
	}
	var parts []string
	for a := AccessType(0); a < AccessCount; a++ {
		if f.Has(a) {
			parts = append(parts, a.String())
		}
	}
	return strings.Join(parts, "|")
}
