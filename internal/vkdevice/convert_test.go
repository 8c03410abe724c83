package vkdevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"

	"github.com/vk/rendergraph/internal/gpu"
)

func TestPipelineStages(t *testing.T) {
	t.Run("empty set is top of pipe", func(t *testing.T) {
		assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), PipelineStages(0))
	})

	t.Run("bits are combined", func(t *testing.T) {
		got := PipelineStages(gpu.Stages(gpu.StageComputeShader, gpu.StageTransfer))
		want := vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit | vk.PipelineStageTransferBit)
		assert.Equal(t, want, got)
	})

	t.Run("extension stages", func(t *testing.T) {
		got := PipelineStages(gpu.Stages(gpu.StageRayTracingShader, gpu.StageAccelerationStructureBuild))
		assert.Equal(t, vk.PipelineStageFlags(0x02200000), got)
	})

	t.Run("every stage maps to a distinct bit", func(t *testing.T) {
		seen := vk.PipelineStageFlags(0)
		for s := gpu.PipelineStage(0); s < gpu.StageCount; s++ {
			bit := PipelineStages(gpu.Stages(s))
			assert.NotZero(t, bit, s.String())
			assert.Zero(t, seen&bit, s.String())
			seen |= bit
		}
	})
}

func TestAccesses(t *testing.T) {
	assert.Zero(t, Accesses(0))

	got := Accesses(gpu.Accesses(gpu.AccessShaderRead, gpu.AccessColorAttachmentWrite))
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit|vk.AccessColorAttachmentWriteBit), got)

	got = Accesses(gpu.Accesses(gpu.AccessAccelerationStructureRead, gpu.AccessAccelerationStructureWrite))
	assert.Equal(t, vk.AccessFlags(0x00600000), got)
}

func TestLayoutAndFormat(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutPresentSrc, Layout(gpu.LayoutPresentSrc))
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, Layout(gpu.LayoutTransferDstOptimal))
	assert.Equal(t, vk.ImageLayoutUndefined, Layout(gpu.LayoutCount))

	assert.Equal(t, vk.FormatB8g8r8a8Unorm, Format(gpu.FormatBGRA8Unorm))
	assert.Equal(t, vk.FormatD24UnormS8Uint, Format(gpu.FormatD24UnormS8Uint))
	assert.Equal(t, vk.FormatUndefined, Format(gpu.FormatUndefined))
}

func TestAspectMask(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), AspectMask(gpu.FormatRGBA8Unorm))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), AspectMask(gpu.FormatD32Float))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), AspectMask(gpu.FormatD24UnormS8Uint))
}

func TestSampleCountAndBindPoint(t *testing.T) {
	assert.Equal(t, vk.SampleCount1Bit, SampleCount(0))
	assert.Equal(t, vk.SampleCount4Bit, SampleCount(gpu.SampleCount4))
	assert.Equal(t, vk.PipelineBindPointCompute, BindPoint(gpu.BindPointCompute))
	assert.Equal(t, vk.PipelineBindPoint(1000165000), BindPoint(gpu.BindPointRayTracing))
}

func TestMipExtent(t *testing.T) {
	e := gpu.Extent3D{Width: 256, Height: 64, Depth: 1}
	assert.Equal(t, vk.Extent3D{Width: 64, Height: 16, Depth: 1}, mipExtent(e, 2))
	assert.Equal(t, vk.Extent3D{Width: 1, Height: 1, Depth: 1}, mipExtent(e, 10))
}
