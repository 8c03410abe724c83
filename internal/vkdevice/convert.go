package vkdevice

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/vk/rendergraph/internal/gpu"
)

// Extension bits missing from the vulkan-go headers (VK_KHR_acceleration_structure,
// VK_KHR_ray_tracing_pipeline).
const (
	pipelineStageRayTracingShaderBit           vk.PipelineStageFlagBits = 0x00200000
	pipelineStageAccelerationStructureBuildBit vk.PipelineStageFlagBits = 0x02000000
	accessAccelerationStructureReadBit         vk.AccessFlagBits        = 0x00200000
	accessAccelerationStructureWriteBit        vk.AccessFlagBits        = 0x00400000
	pipelineBindPointRayTracing                vk.PipelineBindPoint     = 1000165000
)

var stageBits = [gpu.StageCount]vk.PipelineStageFlagBits{
	gpu.StageTopOfPipe:                    vk.PipelineStageTopOfPipeBit,
	gpu.StageDrawIndirect:                 vk.PipelineStageDrawIndirectBit,
	gpu.StageVertexInput:                  vk.PipelineStageVertexInputBit,
	gpu.StageVertexShader:                 vk.PipelineStageVertexShaderBit,
	gpu.StageTessellationControlShader:    vk.PipelineStageTessellationControlShaderBit,
	gpu.StageTessellationEvaluationShader: vk.PipelineStageTessellationEvaluationShaderBit,
	gpu.StageGeometryShader:               vk.PipelineStageGeometryShaderBit,
	gpu.StageFragmentShader:               vk.PipelineStageFragmentShaderBit,
	gpu.StageEarlyFragmentTests:           vk.PipelineStageEarlyFragmentTestsBit,
	gpu.StageLateFragmentTests:            vk.PipelineStageLateFragmentTestsBit,
	gpu.StageColorAttachmentOutput:        vk.PipelineStageColorAttachmentOutputBit,
	gpu.StageComputeShader:                vk.PipelineStageComputeShaderBit,
	gpu.StageTransfer:                     vk.PipelineStageTransferBit,
	gpu.StageBottomOfPipe:                 vk.PipelineStageBottomOfPipeBit,
	gpu.StageHost:                         vk.PipelineStageHostBit,
	gpu.StageAccelerationStructureBuild:   pipelineStageAccelerationStructureBuildBit,
	gpu.StageRayTracingShader:             pipelineStageRayTracingShaderBit,
}

var accessBits = [gpu.AccessCount]vk.AccessFlagBits{
	gpu.AccessIndirectCommandRead:         vk.AccessIndirectCommandReadBit,
	gpu.AccessIndexRead:                   vk.AccessIndexReadBit,
	gpu.AccessVertexAttributeRead:         vk.AccessVertexAttributeReadBit,
	gpu.AccessUniformRead:                 vk.AccessUniformReadBit,
	gpu.AccessInputAttachmentRead:         vk.AccessInputAttachmentReadBit,
	gpu.AccessShaderRead:                  vk.AccessShaderReadBit,
	gpu.AccessShaderWrite:                 vk.AccessShaderWriteBit,
	gpu.AccessColorAttachmentRead:         vk.AccessColorAttachmentReadBit,
	gpu.AccessColorAttachmentWrite:        vk.AccessColorAttachmentWriteBit,
	gpu.AccessDepthStencilAttachmentRead:  vk.AccessDepthStencilAttachmentReadBit,
	gpu.AccessDepthStencilAttachmentWrite: vk.AccessDepthStencilAttachmentWriteBit,
	gpu.AccessTransferRead:                vk.AccessTransferReadBit,
	gpu.AccessTransferWrite:               vk.AccessTransferWriteBit,
	gpu.AccessHostRead:                    vk.AccessHostReadBit,
	gpu.AccessHostWrite:                   vk.AccessHostWriteBit,
	gpu.AccessMemoryRead:                  vk.AccessMemoryReadBit,
	gpu.AccessMemoryWrite:                 vk.AccessMemoryWriteBit,
	gpu.AccessAccelerationStructureRead:   accessAccelerationStructureReadBit,
	gpu.AccessAccelerationStructureWrite:  accessAccelerationStructureWriteBit,
}

// PipelineStages converts a stage set. An empty set becomes TopOfPipe, which
// Vulkan requires for a source mask that waits on nothing.
func PipelineStages(f gpu.PipelineStageFlags) vk.PipelineStageFlags {
	if f.IsEmpty() {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	var out vk.PipelineStageFlags
	f.ForEach(func(s gpu.PipelineStage) {
		out |= vk.PipelineStageFlags(stageBits[s])
	})
	return out
}

func Accesses(f gpu.AccessFlags) vk.AccessFlags {
	var out vk.AccessFlags
	for a := gpu.AccessType(0); a < gpu.AccessCount; a++ {
		if f.Has(a) {
			out |= vk.AccessFlags(accessBits[a])
		}
	}
	return out
}

var layouts = [gpu.LayoutCount]vk.ImageLayout{
	gpu.LayoutUndefined:                     vk.ImageLayoutUndefined,
	gpu.LayoutGeneral:                       vk.ImageLayoutGeneral,
	gpu.LayoutColorAttachmentOptimal:        vk.ImageLayoutColorAttachmentOptimal,
	gpu.LayoutDepthStencilAttachmentOptimal: vk.ImageLayoutDepthStencilAttachmentOptimal,
	gpu.LayoutDepthStencilReadOnlyOptimal:   vk.ImageLayoutDepthStencilReadOnlyOptimal,
	gpu.LayoutShaderReadOnlyOptimal:         vk.ImageLayoutShaderReadOnlyOptimal,
	gpu.LayoutTransferSrcOptimal:            vk.ImageLayoutTransferSrcOptimal,
	gpu.LayoutTransferDstOptimal:            vk.ImageLayoutTransferDstOptimal,
	gpu.LayoutPresentSrc:                    vk.ImageLayoutPresentSrc,
}

func Layout(l gpu.TextureLayout) vk.ImageLayout {
	if l >= gpu.LayoutCount {
		return vk.ImageLayoutUndefined
	}
	return layouts[l]
}

func Format(f gpu.TextureFormat) vk.Format {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.FormatRGBA32Float:
		return vk.FormatR32g32b32a32Sfloat
	case gpu.FormatR32Float:
		return vk.FormatR32Sfloat
	case gpu.FormatD16Unorm:
		return vk.FormatD16Unorm
	case gpu.FormatD32Float:
		return vk.FormatD32Sfloat
	case gpu.FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	}
	return vk.FormatUndefined
}

// AspectMask is the image aspect a view of format addresses.
func AspectMask(f gpu.TextureFormat) vk.ImageAspectFlags {
	switch {
	case f.HasStencil():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	case f.IsDepth():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func SampleCount(c gpu.SampleCount) vk.SampleCountFlagBits {
	switch c {
	case gpu.SampleCount2:
		return vk.SampleCount2Bit
	case gpu.SampleCount4:
		return vk.SampleCount4Bit
	case gpu.SampleCount8:
		return vk.SampleCount8Bit
	case gpu.SampleCount16:
		return vk.SampleCount16Bit
	case gpu.SampleCount32:
		return vk.SampleCount32Bit
	case gpu.SampleCount64:
		return vk.SampleCount64Bit
	}
	return vk.SampleCount1Bit
}

func BindPoint(bp gpu.BindPoint) vk.PipelineBindPoint {
	switch bp {
	case gpu.BindPointCompute:
		return vk.PipelineBindPointCompute
	case gpu.BindPointRayTracing:
		return pipelineBindPointRayTracing
	}
	return vk.PipelineBindPointGraphics
}

// subresourceRange addresses a single (level, layer) view.
func subresourceRange(f gpu.TextureFormat, v gpu.SubresourceIndex) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     AspectMask(f),
		BaseMipLevel:   v.Level,
		LevelCount:     1,
		BaseArrayLayer: v.Layer,
		LayerCount:     1,
	}
}

func subresourceLayers(f gpu.TextureFormat, v gpu.SubresourceIndex) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     AspectMask(f),
		MipLevel:       v.Level,
		BaseArrayLayer: v.Layer,
		LayerCount:     1,
	}
}
