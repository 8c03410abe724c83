package rendergraph

import (
	"github.com/vk/rendergraph/internal/gpu"
)

// ShaderBufferReadUsage selects how a shader reads a buffer.
type ShaderBufferReadUsage uint8

const (
	ShaderBufferUniform ShaderBufferReadUsage = iota
	ShaderBufferStorage
)

// ShaderTextureReadUsage selects how a shader reads a texture.
type ShaderTextureReadUsage uint8

const (
	ShaderTextureSampled ShaderTextureReadUsage = iota
	ShaderTextureStorage
)

// ColorAttachmentDesc configures a colour or resolve attachment.
type ColorAttachmentDesc struct {
	View       gpu.SubresourceIndex
	Clear      bool
	ClearValue gpu.ClearValue
}

// DepthStencilAttachmentDesc configures the depth attachment. With
// DepthWriteEnable false the attachment is read-only and the node is not
// versioned.
type DepthStencilAttachmentDesc struct {
	View             gpu.SubresourceIndex
	DepthWriteEnable bool
	Clear            bool
	ClearValue       gpu.ClearValue
}

var (
	stagesVertexInput  = gpu.Stages(gpu.StageVertexInput)
	stagesDrawIndirect = gpu.Stages(gpu.StageDrawIndirect)
	stagesColor        = gpu.Stages(gpu.StageColorAttachmentOutput)
	stagesDepth        = gpu.Stages(gpu.StageEarlyFragmentTests, gpu.StageLateFragmentTests)
	stagesTransfer     = gpu.Stages(gpu.StageTransfer)
	stagesASBuild      = gpu.Stages(gpu.StageAccelerationStructureBuild)

	accessColorRW = gpu.Accesses(gpu.AccessColorAttachmentRead, gpu.AccessColorAttachmentWrite)
	accessDepthRW = gpu.Accesses(gpu.AccessDepthStencilAttachmentRead, gpu.AccessDepthStencilAttachmentWrite)
	accessShaderR = gpu.Accesses(gpu.AccessShaderRead)
	accessShaderW = gpu.Accesses(gpu.AccessShaderRead, gpu.AccessShaderWrite)
	accessASRead  = gpu.Accesses(gpu.AccessAccelerationStructureRead)
	accessASRW    = gpu.Accesses(gpu.AccessAccelerationStructureRead, gpu.AccessAccelerationStructureWrite)
)

// Builder declares the resources a pass uses. Reads return the node they
// were given; writes return the next version of the resource, which later
// passes must use.
type Builder struct {
	g    *RenderGraph
	pass *pass
}

func (b *Builder) read(id nodeID) *resourceNode {
	n := b.g.node(id, b.pass.name)
	if !n.writer.IsNull() {
		panic(&BuildError{Pass: b.pass.name, Resource: b.g.resourceName(n), Reason: "stale node: this version was already written, use the node returned by the write"})
	}
	if k := len(n.readers); k == 0 || n.readers[k-1] != b.pass.id {
		n.readers = append(n.readers, b.pass.id)
	}
	return n
}

func (b *Builder) write(id nodeID) (*resourceNode, nodeID) {
	n := b.g.node(id, b.pass.name)
	if !n.writer.IsNull() {
		panic(&BuildError{Pass: b.pass.name, Resource: b.g.resourceName(n), Reason: "node already has a writer"})
	}
	n.writer = b.pass.id
	kind, resource := n.kind, n.resource
	next := b.g.newNode(kind, resource, b.pass.id)
	// newNode may have grown the node slice.
	return &b.g.nodes[id.index], next
}

func (b *Builder) declare(n *resourceNode, a access) {
	a.kind = n.kind
	a.resource = n.resource
	b.pass.accesses = append(b.pass.accesses, a)
}

// AddShaderBuffer declares a shader read of a buffer.
func (b *Builder) AddShaderBuffer(n BufferNode, stages gpu.ShaderStageFlags, usage ShaderBufferReadUsage) BufferNode {
	u := gpu.BufferUsageUniform
	if usage == ShaderBufferStorage {
		u = gpu.BufferUsageStorage
	}
	b.declare(b.read(n.id), access{stages: stages.PipelineStages(), accesses: accessShaderR, bufferUsage: u})
	return n
}

// AddShaderBufferWrite declares a shader read-write of a storage buffer.
func (b *Builder) AddShaderBufferWrite(n BufferNode, stages gpu.ShaderStageFlags) BufferNode {
	node, next := b.write(n.id)
	b.declare(node, access{stages: stages.PipelineStages(), accesses: accessShaderW, bufferUsage: gpu.BufferUsageStorage})
	return BufferNode{next}
}

// AddShaderTexture declares a shader read of the given views. An empty
// range means every view.
func (b *Builder) AddShaderTexture(n TextureNode, stages gpu.ShaderStageFlags, usage ShaderTextureReadUsage, views gpu.SubresourceIndexRange) TextureNode {
	a := access{
		stages:       stages.PipelineStages(),
		accesses:     accessShaderR,
		layout:       gpu.LayoutShaderReadOnlyOptimal,
		views:        views,
		textureUsage: gpu.TextureUsageSampled,
	}
	if usage == ShaderTextureStorage {
		a.layout = gpu.LayoutGeneral
		a.textureUsage = gpu.TextureUsageStorage
	}
	b.declare(b.read(n.id), a)
	return n
}

// AddShaderTextureWrite declares a storage image write of the given views.
func (b *Builder) AddShaderTextureWrite(n TextureNode, stages gpu.ShaderStageFlags, views gpu.SubresourceIndexRange) TextureNode {
	node, next := b.write(n.id)
	b.declare(node, access{
		stages:       stages.PipelineStages(),
		accesses:     accessShaderW,
		layout:       gpu.LayoutGeneral,
		views:        views,
		textureUsage: gpu.TextureUsageStorage,
	})
	return TextureNode{next}
}

// AddShaderTlas declares a shader read of a TLAS.
func (b *Builder) AddShaderTlas(n TlasNode, stages gpu.ShaderStageFlags) TlasNode {
	b.declare(b.read(n.id), access{stages: stages.PipelineStages(), accesses: accessASRead})
	return n
}

// AddShaderBlasGroup declares a shader read of a BLAS group.
func (b *Builder) AddShaderBlasGroup(n BlasGroupNode, stages gpu.ShaderStageFlags) BlasGroupNode {
	b.declare(b.read(n.id), access{stages: stages.PipelineStages(), accesses: accessASRead})
	return n
}

// AddSrv is AddShaderTexture of every view as a sampled image.
func (b *Builder) AddSrv(n TextureNode, stages gpu.ShaderStageFlags) TextureNode {
	return b.AddShaderTexture(n, stages, ShaderTextureSampled, gpu.SubresourceIndexRange{})
}

// AddUav is AddShaderTextureWrite of every view.
func (b *Builder) AddUav(n TextureNode, stages gpu.ShaderStageFlags) TextureNode {
	return b.AddShaderTextureWrite(n, stages, gpu.SubresourceIndexRange{})
}

func (b *Builder) AddReadSsbo(n BufferNode, stages gpu.ShaderStageFlags) BufferNode {
	return b.AddShaderBuffer(n, stages, ShaderBufferStorage)
}

func (b *Builder) AddWriteSsbo(n BufferNode, stages gpu.ShaderStageFlags) BufferNode {
	return b.AddShaderBufferWrite(n, stages)
}

func (b *Builder) AddVertexBuffer(n BufferNode) BufferNode {
	b.declare(b.read(n.id), access{
		stages:      stagesVertexInput,
		accesses:    gpu.Accesses(gpu.AccessVertexAttributeRead),
		bufferUsage: gpu.BufferUsageVertex,
	})
	return n
}

func (b *Builder) AddIndexBuffer(n BufferNode) BufferNode {
	b.declare(b.read(n.id), access{
		stages:      stagesVertexInput,
		accesses:    gpu.Accesses(gpu.AccessIndexRead),
		bufferUsage: gpu.BufferUsageIndex,
	})
	return n
}

func (b *Builder) AddIndirectCommandBuffer(n BufferNode) BufferNode {
	b.declare(b.read(n.id), access{
		stages:      stagesDrawIndirect,
		accesses:    gpu.Accesses(gpu.AccessIndirectCommandRead),
		bufferUsage: gpu.BufferUsageIndirect,
	})
	return n
}

// AddSrcBuffer declares a buffer as a transfer source.
func (b *Builder) AddSrcBuffer(n BufferNode) BufferNode {
	b.declare(b.read(n.id), access{
		stages:      stagesTransfer,
		accesses:    gpu.Accesses(gpu.AccessTransferRead),
		bufferUsage: gpu.BufferUsageTransferSrc,
	})
	return n
}

// AddDstBuffer declares a buffer as a transfer destination.
func (b *Builder) AddDstBuffer(n BufferNode) BufferNode {
	node, next := b.write(n.id)
	b.declare(node, access{
		stages:      stagesTransfer,
		accesses:    gpu.Accesses(gpu.AccessTransferWrite),
		bufferUsage: gpu.BufferUsageTransferDst,
	})
	return BufferNode{next}
}

// AddSrcTexture declares texture views as a transfer source.
func (b *Builder) AddSrcTexture(n TextureNode, views gpu.SubresourceIndexRange) TextureNode {
	b.declare(b.read(n.id), access{
		stages:       stagesTransfer,
		accesses:     gpu.Accesses(gpu.AccessTransferRead),
		layout:       gpu.LayoutTransferSrcOptimal,
		views:        views,
		textureUsage: gpu.TextureUsageTransferSrc,
	})
	return n
}

// AddDstTexture declares texture views as a transfer destination.
func (b *Builder) AddDstTexture(n TextureNode, views gpu.SubresourceIndexRange) TextureNode {
	node, next := b.write(n.id)
	b.declare(node, access{
		stages:       stagesTransfer,
		accesses:     gpu.Accesses(gpu.AccessTransferWrite),
		layout:       gpu.LayoutTransferDstOptimal,
		views:        views,
		textureUsage: gpu.TextureUsageTransferDst,
	})
	return TextureNode{next}
}

// AddAsBuildInput declares a buffer (vertices, indices or instances) read by
// an acceleration structure build.
func (b *Builder) AddAsBuildInput(n BufferNode) BufferNode {
	b.declare(b.read(n.id), access{
		stages:      stagesASBuild,
		accesses:    accessShaderR,
		bufferUsage: gpu.BufferUsageAccelerationStructureBuildInput,
	})
	return n
}

// AddAsBuildInputBlasGroup declares the BLAS group a TLAS build references.
func (b *Builder) AddAsBuildInputBlasGroup(n BlasGroupNode) BlasGroupNode {
	b.declare(b.read(n.id), access{stages: stagesASBuild, accesses: accessASRead})
	return n
}

func (b *Builder) AddAsBuildDstTlas(n TlasNode) TlasNode {
	node, next := b.write(n.id)
	b.declare(node, access{stages: stagesASBuild, accesses: accessASRW})
	return TlasNode{next}
}

func (b *Builder) AddAsBuildDstBlasGroup(n BlasGroupNode) BlasGroupNode {
	node, next := b.write(n.id)
	b.declare(node, access{stages: stagesASBuild, accesses: accessASRW})
	return BlasGroupNode{next}
}

// RasterBuilder extends Builder with render pass attachments.
type RasterBuilder struct {
	Builder
}

func (b *RasterBuilder) attachmentAccess(node *resourceNode, view gpu.SubresourceIndex, stages gpu.PipelineStageFlags, acc gpu.AccessFlags, layout gpu.TextureLayout, usage gpu.TextureUsageFlags) {
	b.declare(node, access{
		stages:       stages,
		accesses:     acc,
		layout:       layout,
		views:        gpu.SingleView(view.Level, view.Layer),
		textureUsage: usage,
	})
}

// AddColorAttachment renders into one view of n.
func (b *RasterBuilder) AddColorAttachment(n TextureNode, desc ColorAttachmentDesc) TextureNode {
	if len(b.pass.colors) == gpu.MaxColorAttachments {
		panic(&BuildError{Pass: b.pass.name, Reason: "too many colour attachments"})
	}
	node, next := b.write(n.id)
	b.attachmentAccess(node, desc.View, stagesColor, accessColorRW, gpu.LayoutColorAttachmentOptimal, gpu.TextureUsageColorAttachment)
	b.pass.colors = append(b.pass.colors, attachment{
		resource:   node.resource,
		view:       desc.View,
		clear:      desc.Clear,
		clearValue: desc.ClearValue,
	})
	return TextureNode{next}
}

// AddResolveAttachment resolves the multisampled colour attachments into n.
func (b *RasterBuilder) AddResolveAttachment(n TextureNode, desc ColorAttachmentDesc) TextureNode {
	if len(b.pass.resolves) == gpu.MaxResolveAttachments {
		panic(&BuildError{Pass: b.pass.name, Reason: "too many resolve attachments"})
	}
	node, next := b.write(n.id)
	b.attachmentAccess(node, desc.View, stagesColor, accessColorRW, gpu.LayoutColorAttachmentOptimal, gpu.TextureUsageColorAttachment)
	b.pass.resolves = append(b.pass.resolves, attachment{
		resource:   node.resource,
		view:       desc.View,
		clear:      desc.Clear,
		clearValue: desc.ClearValue,
	})
	return TextureNode{next}
}

// AddDepthStencilAttachment binds the depth attachment. A read-only depth
// attachment returns n unchanged.
func (b *RasterBuilder) AddDepthStencilAttachment(n TextureNode, desc DepthStencilAttachmentDesc) TextureNode {
	if b.pass.depth != nil {
		panic(&BuildError{Pass: b.pass.name, Reason: "depth attachment already set"})
	}
	var (
		node *resourceNode
		out  = n
	)
	if desc.DepthWriteEnable {
		var next nodeID
		node, next = b.write(n.id)
		out = TextureNode{next}
		b.attachmentAccess(node, desc.View, stagesDepth, accessDepthRW, gpu.LayoutDepthStencilAttachmentOptimal, gpu.TextureUsageDepthStencilAttachment)
	} else {
		node = b.read(n.id)
		b.attachmentAccess(node, desc.View, stagesDepth, gpu.Accesses(gpu.AccessDepthStencilAttachmentRead), gpu.LayoutDepthStencilReadOnlyOptimal, gpu.TextureUsageDepthStencilAttachment)
	}
	b.pass.depth = &attachment{
		resource:   node.resource,
		view:       desc.View,
		clear:      desc.Clear,
		clearValue: desc.ClearValue,
	}
	return out
}
