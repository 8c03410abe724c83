package gpu

import "fmt"

// TextureLayout is the memory layout a texture view is currently in.
type TextureLayout uint8

const (
	LayoutUndefined TextureLayout = iota
	LayoutGeneral
	LayoutColorAttachmentOptimal
	LayoutDepthStencilAttachmentOptimal
	LayoutDepthStencilReadOnlyOptimal
	LayoutShaderReadOnlyOptimal
	LayoutTransferSrcOptimal
	LayoutTransferDstOptimal
	LayoutPresentSrc
	LayoutCount
)

var layoutNames = [...]string{
	"undefined", "general", "color_attachment_optimal",
	"depth_stencil_attachment_optimal", "depth_stencil_read_only_optimal",
	"shader_read_only_optimal", "transfer_src_optimal", "transfer_dst_optimal",
	"present_src",
}

func (l TextureLayout) String() string {
	if l < LayoutCount {
		return layoutNames[l]
	}
	return "unknown"
}

// ParseTextureLayout maps a layout name back to a TextureLayout.
func ParseTextureLayout(s string) (TextureLayout, error) {
	for l, n := range layoutNames {
		if n == s {
			return TextureLayout(l), nil
		}
	}
	return LayoutUndefined, fmt.Errorf("unknown texture layout %q", s)
}

// TextureUsageFlags lists the ways a texture may be used by the device.
type TextureUsageFlags uint16

const (
	TextureUsageSampled TextureUsageFlags = 1 << iota
	TextureUsageStorage
	TextureUsageColorAttachment
	TextureUsageDepthStencilAttachment
	TextureUsageInputAttachment
	TextureUsageTransferSrc
	TextureUsageTransferDst
)

func (f TextureUsageFlags) Has(o TextureUsageFlags) bool { return f&o == o }

// TextureFormat is the closed set of formats the render graph understands.
type TextureFormat uint8

const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Float
	FormatD16Unorm
	FormatD32Float
	FormatD24UnormS8Uint
)

var formatNames = map[TextureFormat]string{
	FormatUndefined:      "undefined",
	FormatRGBA8Unorm:     "rgba8_unorm",
	FormatBGRA8Unorm:     "bgra8_unorm",
	FormatRGBA16Float:    "rgba16_float",
	FormatRGBA32Float:    "rgba32_float",
	FormatR32Float:       "r32_float",
	FormatD16Unorm:       "d16_unorm",
	FormatD32Float:       "d32_float",
	FormatD24UnormS8Uint: "d24_unorm_s8_uint",
}

func (f TextureFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// ParseTextureFormat maps a format name back to a TextureFormat.
func ParseTextureFormat(s string) (TextureFormat, error) {
	for f, n := range formatNames {
		if n == s && f != FormatUndefined {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown texture format %q", s)
}

func (f TextureFormat) IsDepth() bool {
	return f == FormatD16Unorm || f == FormatD32Float || f == FormatD24UnormS8Uint
}

func (f TextureFormat) HasStencil() bool { return f == FormatD24UnormS8Uint }

// TextureType is the dimensionality of a texture.
type TextureType uint8

const (
	TextureType2D TextureType = iota
	TextureType2DArray
	TextureType3D
	TextureTypeCube
)

// SampleCount is the number of samples per texel, a power of two.
type SampleCount uint8

const (
	SampleCount1  SampleCount = 1
	SampleCount2  SampleCount = 2
	SampleCount4  SampleCount = 4
	SampleCount8  SampleCount = 8
	SampleCount16 SampleCount = 16
	SampleCount32 SampleCount = 32
	SampleCount64 SampleCount = 64
)

// Extent3D is a texture size in texels.
type Extent3D struct {
	Width, Height, Depth uint32
}

// ClearValue is the value a texture or attachment is cleared to.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Name        string
	Type        TextureType
	Format      TextureFormat
	Extent      Extent3D
	MipLevels   uint32
	LayerCount  uint32
	SampleCount SampleCount
	Usage       TextureUsageFlags
	Queues      QueueFlags
	Clear       bool
	ClearValue  ClearValue
	Presentable bool
}

// Desc2D describes a single-layer 2D texture.
func Desc2D(format TextureFormat, mipLevels uint32, width, height uint32) TextureDesc {
	return TextureDesc{
		Type:        TextureType2D,
		Format:      format,
		Extent:      Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:   mipLevels,
		LayerCount:  1,
		SampleCount: SampleCount1,
	}
}

// Desc2DArray describes a layered 2D texture.
func Desc2DArray(format TextureFormat, mipLevels uint32, width, height, layers uint32) TextureDesc {
	d := Desc2D(format, mipLevels, width, height)
	d.Type = TextureType2DArray
	d.LayerCount = layers
	return d
}

// ViewCount is the number of (level, layer) subresources of the texture.
func (d TextureDesc) ViewCount() int {
	return int(max(d.MipLevels, 1) * max(d.LayerCount, 1))
}

// FullRange covers every subresource of the texture.
func (d TextureDesc) FullRange() SubresourceIndexRange {
	return SubresourceIndexRange{LevelCount: max(d.MipLevels, 1), LayerCount: max(d.LayerCount, 1)}
}

// SubresourceIndex addresses a single mip level of a single array layer.
type SubresourceIndex struct {
	Level uint32
	Layer uint32
}

// ViewIndex flattens the index for a texture with mipLevels levels.
func (s SubresourceIndex) ViewIndex(mipLevels uint32) int {
	return int(s.Layer*max(mipLevels, 1) + s.Level)
}

// SubresourceIndexRange is a rectangle of levels and layers.
type SubresourceIndexRange struct {
	Base       SubresourceIndex
	LevelCount uint32
	LayerCount uint32
}

// SingleView is the range of one subresource.
func SingleView(level, layer uint32) SubresourceIndexRange {
	return SubresourceIndexRange{Base: SubresourceIndex{Level: level, Layer: layer}, LevelCount: 1, LayerCount: 1}
}

// ForEach visits every subresource in the range, layer-major.
func (r SubresourceIndexRange) ForEach(fn func(SubresourceIndex)) {
	for layer := r.Base.Layer; layer < r.Base.Layer+r.LayerCount; layer++ {
		for level := r.Base.Level; level < r.Base.Level+r.LevelCount; level++ {
			fn(SubresourceIndex{Level: level, Layer: layer})
		}
	}
}

// IsEmpty reports whether the range selects nothing. A zero range is
// treated as "whole texture" by the builder.
func (r SubresourceIndexRange) IsEmpty() bool { return r.LevelCount == 0 || r.LayerCount == 0 }
