package framefile

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level construct of a frame file.
type fileRoot struct {
	Buffers        []*bufferBlock        `hcl:"buffer,block"`
	Textures       []*textureBlock       `hcl:"texture,block"`
	ImportBuffers  []*importBufferBlock  `hcl:"import_buffer,block"`
	ImportTextures []*importTextureBlock `hcl:"import_texture,block"`
	Passes         []*passBlock          `hcl:"pass,block"`
	Output         *string               `hcl:"output,optional"`
	Body           hcl.Body              `hcl:",body"`
}

type bufferBlock struct {
	Name string   `hcl:"name,label"`
	Size uint64   `hcl:"size"`
	Body hcl.Body `hcl:",body"`
}

type textureBlock struct {
	Name        string    `hcl:"name,label"`
	Format      string    `hcl:"format"`
	Width       uint32    `hcl:"width"`
	Height      uint32    `hcl:"height"`
	MipLevels   *uint32   `hcl:"mip_levels,optional"`
	Layers      *uint32   `hcl:"layers,optional"`
	SampleCount *uint32   `hcl:"sample_count,optional"`
	Clear       *bool     `hcl:"clear,optional"`
	ClearColor  []float64 `hcl:"clear_color,optional"`
	Body        hcl.Body  `hcl:",body"`
}

type importBufferBlock struct {
	Name string   `hcl:"name,label"`
	Size uint64   `hcl:"size"`
	Body hcl.Body `hcl:",body"`
}

type importTextureBlock struct {
	Name        string   `hcl:"name,label"`
	Format      string   `hcl:"format"`
	Width       uint32   `hcl:"width"`
	Height      uint32   `hcl:"height"`
	MipLevels   *uint32  `hcl:"mip_levels,optional"`
	Layers      *uint32  `hcl:"layers,optional"`
	Layout      *string  `hcl:"layout,optional"`
	Presentable *bool    `hcl:"presentable,optional"`
	Body        hcl.Body `hcl:",body"`
}

type passBlock struct {
	Name       string    `hcl:"name,label"`
	Kind       string    `hcl:"kind"`
	Queue      *string   `hcl:"queue,optional"`
	Reads      []string  `hcl:"reads,optional"`
	Writes     []string  `hcl:"writes,optional"`
	Color      []string  `hcl:"color,optional"`
	Resolve    []string  `hcl:"resolve,optional"`
	Depth      *string   `hcl:"depth,optional"`
	DepthWrite *bool     `hcl:"depth_write,optional"`
	Clear      *bool     `hcl:"clear,optional"`
	ClearColor []float64 `hcl:"clear_color,optional"`
	ClearDepth *float64  `hcl:"clear_depth,optional"`
	Vertex     []string  `hcl:"vertex,optional"`
	Index      *string   `hcl:"index,optional"`
	Indirect   *string   `hcl:"indirect,optional"`
	CopySrc    *string   `hcl:"copy_src,optional"`
	CopyDst    *string   `hcl:"copy_dst,optional"`
	Target     *string   `hcl:"target,optional"`
	Dispatch   []uint32  `hcl:"dispatch,optional"`
	Draw       *uint32   `hcl:"draw,optional"`
	Body       hcl.Body  `hcl:",body"`
}
