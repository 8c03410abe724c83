package rendergraph

import (
	"github.com/vk/rendergraph/internal/gpu"
)

// Registry resolves the nodes a pass declared to device objects while the
// pass records. It is only valid inside the record callback.
type Registry struct {
	f           *frame
	pass        *pass
	renderPass  gpu.RenderPassID
	sampleCount gpu.SampleCount
}

func (r *Registry) info(n Node) *execInfo {
	node := r.f.g.node(n.nodeID(), r.pass.name)
	return r.f.c.info(node.kind, node.resource)
}

func (r *Registry) Buffer(n BufferNode) gpu.BufferID { return r.info(n).buffer }

// BufferDesc returns the description the buffer was created with, or the
// device's description for imports.
func (r *Registry) BufferDesc(n BufferNode) gpu.BufferDesc { return r.info(n).bufferDesc }

func (r *Registry) Texture(n TextureNode) gpu.TextureID { return r.info(n).texture }

// TextureDesc returns the description the texture was created with, or the
// device's description for imports.
func (r *Registry) TextureDesc(n TextureNode) gpu.TextureDesc { return r.info(n).textureDesc }

func (r *Registry) Tlas(n TlasNode) gpu.TlasID { return r.info(n).tlas }

func (r *Registry) BlasGroup(n BlasGroupNode) gpu.BlasGroupID { return r.info(n).blasGroup }

// RenderPass is the render pass of a raster pass, zero otherwise.
func (r *Registry) RenderPass() gpu.RenderPassID { return r.renderPass }

func (r *Registry) SampleCount() gpu.SampleCount { return r.sampleCount }

// PipelineState requests a pipeline from the device. Raster pipelines are
// bound to the current render pass unless desc names one.
func (r *Registry) PipelineState(desc gpu.PipelineStateDesc) (gpu.PipelineStateID, error) {
	if desc.RenderPass == 0 {
		desc.RenderPass = r.renderPass
	}
	return r.f.rc.Device.RequestPipelineState(desc)
}

func (r *Registry) BufferDescriptor(n BufferNode) gpu.DescriptorID {
	return r.f.rc.Device.BufferDescriptor(r.Buffer(n))
}

func (r *Registry) TextureDescriptor(n TextureNode, view gpu.SubresourceIndex) gpu.DescriptorID {
	return r.f.rc.Device.TextureDescriptor(r.Texture(n), view)
}
