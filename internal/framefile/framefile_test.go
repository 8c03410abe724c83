package framefile_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/fakegpu"
	"github.com/vk/rendergraph/internal/framefile"
	"github.com/vk/rendergraph/internal/gpu"
	rg "github.com/vk/rendergraph/internal/rendergraph"
)

const deferredFrame = `
import_texture "swapchain" {
  format      = "bgra8_unorm"
  width       = var.width
  height      = var.height
  presentable = true
}

texture "gbuffer" {
  format = "rgba16_float"
  width  = var.width
  height = var.height
}

texture "depth" {
  format = "d32_float"
  width  = var.width
  height = var.height
}

texture "hdr" {
  format = "rgba16_float"
  width  = var.width
  height = var.height
}

buffer "vertices" {
  size = 4096
}

buffer "scratch" {
  size = 256
}

pass "upload" {
  kind   = "compute"
  writes = ["vertices"]
}

pass "geometry" {
  kind        = "raster"
  vertex      = ["vertices"]
  color       = ["gbuffer"]
  depth       = "depth"
  clear       = true
  clear_color = [0, 0, 0, 1]
  draw        = 36
}

pass "lighting" {
  kind     = "compute"
  queue    = "compute"
  reads    = ["gbuffer", "depth"]
  writes   = ["hdr"]
  dispatch = [var.width, var.height]
}

pass "debug" {
  kind   = "compute"
  writes = ["scratch"]
}

pass "tonemap" {
  kind  = "raster"
  reads = ["hdr"]
  color = ["swapchain"]
}
`

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func parse(t *testing.T, src string, vars map[string]string) (*framefile.Frame, error) {
	t.Helper()
	return framefile.Parse(testContext(), "test.hcl", []byte(src), vars)
}

var size = map[string]string{"width": "64", "height": "32"}

func TestParse(t *testing.T) {
	f, err := parse(t, deferredFrame, size)
	require.NoError(t, err)

	require.Len(t, f.Resources, 6)
	require.Len(t, f.Passes, 5)

	sc, ok := f.Resource("swapchain")
	require.True(t, ok)
	assert.True(t, sc.Imported)
	assert.True(t, sc.Texture.Presentable)
	assert.Equal(t, uint32(64), sc.Texture.Extent.Width)
	assert.Equal(t, gpu.FormatBGRA8Unorm, sc.Texture.Format)

	geometry := f.Passes[1]
	assert.Equal(t, framefile.PassRaster, geometry.Kind)
	assert.Equal(t, gpu.QueueGraphics, geometry.Queue)
	assert.True(t, geometry.DepthWrite)
	assert.Equal(t, uint32(36), geometry.Draw)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, geometry.ClearValue.Color)
	assert.Equal(t, float32(1), geometry.ClearValue.Depth)

	lighting := f.Passes[2]
	assert.Equal(t, gpu.QueueCompute, lighting.Queue)
	assert.Equal(t, [3]uint32{64, 32, 1}, lighting.Dispatch)

	assert.Equal(t, uint32(3), f.Passes[4].Draw)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.hcl")
	require.NoError(t, os.WriteFile(path, []byte(deferredFrame), 0o644))

	f, err := framefile.Load(testContext(), path, size)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)

	_, err = framefile.Load(testContext(), filepath.Join(t.TempDir(), "missing.hcl"), nil)
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown resource",
			src: `pass "p" {
  kind   = "compute"
  writes = ["nope"]
}`,
			want: "Unknown resource",
		},
		{
			name: "duplicate resource",
			src: `buffer "a" { size = 4 }
buffer "a" { size = 8 }`,
			want: "Duplicate resource",
		},
		{
			name: "wrong resource type",
			src: `buffer "a" { size = 4 }
pass "p" {
  kind  = "raster"
  color = ["a"]
}`,
			want: "Wrong resource type",
		},
		{
			name: "bad format",
			src: `texture "t" {
  format = "rgb565"
  width  = 4
  height = 4
}`,
			want: "Invalid texture format",
		},
		{
			name: "raster off the graphics queue",
			src: `texture "t" {
  format = "rgba8_unorm"
  width  = 4
  height = 4
}
pass "p" {
  kind  = "raster"
  queue = "compute"
  color = ["t"]
}`,
			want: "Invalid queue",
		},
		{
			name: "depth as colour",
			src: `texture "d" {
  format = "d32_float"
  width  = 4
  height = 4
}
pass "p" {
  kind  = "raster"
  color = ["d"]
}`,
			want: "Invalid attachment",
		},
		{
			name: "mismatched copy",
			src: `buffer "a" { size = 4 }
texture "t" {
  format = "rgba8_unorm"
  width  = 4
  height = 4
}
pass "p" {
  kind     = "copy"
  copy_src = "a"
  copy_dst = "t"
}`,
			want: "Mismatched copy",
		},
		{
			name: "read and write",
			src: `buffer "a" { size = 4 }
pass "p" {
  kind   = "compute"
  reads  = ["a"]
  writes = ["a"]
}`,
			want: "Conflicting access",
		},
		{
			name: "attachment twice",
			src: `texture "t" {
  format = "rgba8_unorm"
  width  = 4
  height = 4
}
pass "p" {
  kind  = "raster"
  color = ["t", "t"]
}`,
			want: "Duplicate attachment",
		},
		{
			name: "unknown kind",
			src:  `pass "p" { kind = "mesh" }`,
			want: "Unknown pass kind",
		},
		{
			name: "unknown output",
			src:  `output = "nothing"`,
			want: "Unknown resource",
		},
		{
			name: "missing variable",
			src:  `buffer "a" { size = var.size }`,
			want: "failed to decode",
		},
		{
			name: "clear colour arity",
			src: `texture "t" {
  format = "rgba8_unorm"
  width  = 4
  height = 4

  clear_color = [1, 0]
}`,
			want: "Invalid clear colour",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.src, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDeclare_Execute(t *testing.T) {
	f, err := parse(t, deferredFrame, size)
	require.NoError(t, err)

	dev := fakegpu.NewDevice()
	queues := fakegpu.NewQueues()
	rc := rg.Context{Device: dev, Queues: queues, Options: rg.DefaultOptions()}

	g := rg.New()
	require.NoError(t, f.Declare(g, dev))

	report, err := rg.Execute(testContext(), rc, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"upload", "geometry", "lighting", "tonemap"}, report.PassOrder)
	assert.Equal(t, []string{"debug"}, report.Culled)
	assert.Equal(t, 1, report.TransientBuffers)
	assert.Equal(t, 3, report.TransientTextures)

	geometry, ok := queues.Find("geometry")
	require.True(t, ok)
	assert.Equal(t, 1, geometry.Encoder.Count(fakegpu.OpBeginRenderPass))
	assert.Equal(t, 1, geometry.Encoder.Count(fakegpu.OpDraw))

	lighting, ok := queues.Find("lighting")
	require.True(t, ok)
	assert.Equal(t, gpu.QueueCompute, lighting.Queue)
	assert.Equal(t, 1, lighting.Encoder.Count(fakegpu.OpDispatch))
	assert.NotEmpty(t, lighting.Waits, "compute consumer waits on the graphics producer")

	assert.Equal(t, 1, dev.LiveTextures(), "only the swapchain outlives the frame")

	t.Run("imports are reused across frames", func(t *testing.T) {
		g := rg.New()
		require.NoError(t, f.Declare(g, dev))
		_, err := rg.Execute(testContext(), rc, g)
		require.NoError(t, err)
		assert.Equal(t, 1, dev.LiveTextures())
	})
}

func TestDeclare_CopyAndClear(t *testing.T) {
	src := `
import_buffer "readback" {
  size = 64
}

buffer "staging" {
  size = 128
}

import_texture "target" {
  format = "rgba8_unorm"
  width  = 8
  height = 8
  layout = "shader_read_only_optimal"
}

texture "scratch" {
  format = "rgba8_unorm"
  width  = 8
  height = 8
}

pass "fill" {
  kind   = "compute"
  writes = ["staging"]
}

pass "download" {
  kind     = "copy"
  queue    = "transfer"
  copy_src = "staging"
  copy_dst = "readback"
}

pass "wipe" {
  kind        = "clear"
  target      = "scratch"
  clear_color = [1, 1, 1, 1]
}

pass "blit" {
  kind     = "copy"
  copy_src = "scratch"
  copy_dst = "target"
}
`
	f, err := parse(t, src, nil)
	require.NoError(t, err)

	dev := fakegpu.NewDevice()
	queues := fakegpu.NewQueues()
	g := rg.New()
	require.NoError(t, f.Declare(g, dev))

	report, err := rg.Execute(testContext(), rg.Context{Device: dev, Queues: queues, Options: rg.DefaultOptions()}, g)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fill", "download", "wipe", "blit"}, report.PassOrder)

	download, ok := queues.Find("download")
	require.True(t, ok)
	require.Equal(t, 1, download.Encoder.Count(fakegpu.OpCopyBuffer))
	for _, c := range download.Encoder.Commands() {
		if c.Op == fakegpu.OpCopyBuffer {
			assert.Equal(t, uint64(64), c.Args.(fakegpu.CopyArgs).Size)
		}
	}

	blit, ok := queues.Find("blit")
	require.True(t, ok)
	assert.Equal(t, 1, blit.Encoder.Count(fakegpu.OpCopyTexture))
}

func TestDeclare_BuildErrorBecomesError(t *testing.T) {
	var src strings.Builder
	var colors []string
	for i := range gpu.MaxColorAttachments + 1 {
		name := fmt.Sprintf("t%d", i)
		fmt.Fprintf(&src, "texture %q {\n  format = \"rgba8_unorm\"\n  width  = 4\n  height = 4\n}\n", name)
		colors = append(colors, strconv.Quote(name))
	}
	fmt.Fprintf(&src, "pass \"p\" {\n  kind  = \"raster\"\n  color = [%s]\n}\n", strings.Join(colors, ", "))

	f, err := parse(t, src.String(), nil)
	require.NoError(t, err)

	err = f.Declare(rg.New(), fakegpu.NewDevice())
	require.Error(t, err)
	assert.True(t, rg.IsBuildError(err))
}
