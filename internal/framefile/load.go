package framefile

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/gpu"
)

const defaultDrawCount = 3

// Load parses and validates the frame file at path. vars are exposed to the
// file as var.<name> string values; HCL converts them where a number or bool
// is expected.
func Load(ctx context.Context, path string, vars map[string]string) (*Frame, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading frame file.", "path", path, "vars", len(vars))

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse frame file %s: %w", path, diags)
	}
	return decode(ctx, path, file.Body, vars)
}

// Parse is Load for in-memory source. filename is only used in diagnostics.
func Parse(ctx context.Context, filename string, src []byte, vars map[string]string) (*Frame, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse frame file %s: %w", filename, diags)
	}
	return decode(ctx, filename, file.Body, vars)
}

func evalContext(vars map[string]string) *hcl.EvalContext {
	values := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		values[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(values)},
	}
}

func decode(ctx context.Context, path string, body hcl.Body, vars map[string]string) (*Frame, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalContext(vars), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode frame file %s: %w", path, diags)
	}

	v := &validator{frame: &Frame{
		Path:     path,
		byName:   make(map[string]*Resource),
		imported: make(map[string]uint64),
	}}
	for _, b := range root.Buffers {
		v.addBuffer(b)
	}
	for _, b := range root.Textures {
		v.addTexture(b)
	}
	for _, b := range root.ImportBuffers {
		v.addImportBuffer(b)
	}
	for _, b := range root.ImportTextures {
		v.addImportTexture(b)
	}
	for _, b := range root.Passes {
		v.addPass(b)
	}
	if root.Output != nil {
		v.frame.Output = *root.Output
		v.ref(*root.Output, nil, root.Body.MissingItemRange(), "output")
	}
	if v.diags.HasErrors() {
		return nil, fmt.Errorf("invalid frame file %s: %w", path, v.diags)
	}

	ctxlog.FromContext(ctx).Debug("Frame file loaded.", "path", path, "resources", len(v.frame.Resources), "passes", len(v.frame.Passes))
	return v.frame, nil
}

type validator struct {
	frame *Frame
	diags hcl.Diagnostics
}

func (v *validator) errorf(rng hcl.Range, summary, format string, args ...any) {
	r := rng
	v.diags = append(v.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
		Subject:  &r,
	})
}

func (v *validator) addResource(r *Resource) {
	if _, dup := v.frame.byName[r.Name]; dup {
		v.errorf(r.rng, "Duplicate resource", "A resource named %q is already declared.", r.Name)
		return
	}
	v.frame.byName[r.Name] = r
	v.frame.Resources = append(v.frame.Resources, r)
}

func (v *validator) addBuffer(b *bufferBlock) {
	rng := b.Body.MissingItemRange()
	if b.Size == 0 {
		v.errorf(rng, "Invalid buffer size", "Buffer %q must have a positive size.", b.Name)
	}
	v.addResource(&Resource{Name: b.Name, Kind: KindBuffer, Buffer: gpu.BufferDesc{Name: b.Name, Size: b.Size}, rng: rng})
}

func (v *validator) addImportBuffer(b *importBufferBlock) {
	rng := b.Body.MissingItemRange()
	if b.Size == 0 {
		v.errorf(rng, "Invalid buffer size", "Buffer %q must have a positive size.", b.Name)
	}
	v.addResource(&Resource{
		Name:     b.Name,
		Kind:     KindBuffer,
		Imported: true,
		Buffer: gpu.BufferDesc{
			Name:  b.Name,
			Size:  b.Size,
			Usage: gpu.BufferUsageStorage | gpu.BufferUsageTransferSrc | gpu.BufferUsageTransferDst,
		},
		rng: rng,
	})
}

func (v *validator) textureDesc(name, format string, width, height uint32, mips, layers *uint32, rng hcl.Range) gpu.TextureDesc {
	f, err := gpu.ParseTextureFormat(format)
	if err != nil {
		v.errorf(rng, "Invalid texture format", "Texture %q: %s.", name, err)
	}
	if width == 0 || height == 0 {
		v.errorf(rng, "Invalid texture extent", "Texture %q must have a positive width and height.", name)
	}
	d := gpu.Desc2D(f, deref(mips, 1), width, height)
	if layers != nil && *layers > 1 {
		d = gpu.Desc2DArray(f, deref(mips, 1), width, height, *layers)
	}
	d.Name = name
	return d
}

func (v *validator) addTexture(b *textureBlock) {
	rng := b.Body.MissingItemRange()
	d := v.textureDesc(b.Name, b.Format, b.Width, b.Height, b.MipLevels, b.Layers, rng)
	if b.SampleCount != nil {
		d.SampleCount = gpu.SampleCount(*b.SampleCount)
		if c := *b.SampleCount; c == 0 || c > 64 || c&(c-1) != 0 {
			v.errorf(rng, "Invalid sample count", "Texture %q: sample_count must be a power of two up to 64.", b.Name)
		}
	}
	d.Clear = deref(b.Clear, false)
	if b.ClearColor != nil {
		d.ClearValue.Color = v.color(b.ClearColor, rng)
	}
	v.addResource(&Resource{Name: b.Name, Kind: KindTexture, Texture: d, rng: rng})
}

func (v *validator) addImportTexture(b *importTextureBlock) {
	rng := b.Body.MissingItemRange()
	d := v.textureDesc(b.Name, b.Format, b.Width, b.Height, b.MipLevels, b.Layers, rng)
	d.Presentable = deref(b.Presentable, false)
	d.Usage = gpu.TextureUsageSampled | gpu.TextureUsageStorage | gpu.TextureUsageTransferSrc | gpu.TextureUsageTransferDst
	if d.Format.IsDepth() {
		d.Usage |= gpu.TextureUsageDepthStencilAttachment
	} else {
		d.Usage |= gpu.TextureUsageColorAttachment
	}
	layout := gpu.LayoutUndefined
	if b.Layout != nil {
		l, err := gpu.ParseTextureLayout(*b.Layout)
		if err != nil {
			v.errorf(rng, "Invalid texture layout", "Texture %q: %s.", b.Name, err)
		}
		layout = l
	}
	v.addResource(&Resource{Name: b.Name, Kind: KindTexture, Imported: true, Texture: d, Layout: layout, rng: rng})
}

func (v *validator) color(c []float64, rng hcl.Range) [4]float32 {
	var out [4]float32
	if len(c) != 4 {
		v.errorf(rng, "Invalid clear colour", "clear_color must have four components, got %d.", len(c))
		return out
	}
	for i, x := range c {
		out[i] = float32(x)
	}
	return out
}

// ref checks that name is a declared resource, of kind want when want is
// not nil.
func (v *validator) ref(name string, want *ResourceKind, rng hcl.Range, attr string) *Resource {
	r, ok := v.frame.byName[name]
	if !ok {
		v.errorf(rng, "Unknown resource", "%s refers to undeclared resource %q.", attr, name)
		return nil
	}
	if want != nil && r.Kind != *want {
		v.errorf(rng, "Wrong resource type", "%s needs a %s, but %q is a %s.", attr, *want, name, r.Kind)
		return nil
	}
	return r
}

func (v *validator) addPass(b *passBlock) {
	rng := b.Body.MissingItemRange()
	buffer, texture := KindBuffer, KindTexture

	p := &Pass{
		Name:       b.Name,
		Kind:       PassKind(b.Kind),
		Queue:      gpu.QueueGraphics,
		Reads:      b.Reads,
		Writes:     b.Writes,
		Colors:     b.Color,
		Resolves:   b.Resolve,
		Depth:      deref(b.Depth, ""),
		DepthWrite: deref(b.DepthWrite, true),
		Clear:      deref(b.Clear, false),
		Vertex:     b.Vertex,
		Index:      deref(b.Index, ""),
		Indirect:   deref(b.Indirect, ""),
		CopySrc:    deref(b.CopySrc, ""),
		CopyDst:    deref(b.CopyDst, ""),
		Target:     deref(b.Target, ""),
		Dispatch:   [3]uint32{1, 1, 1},
		Draw:       deref(b.Draw, defaultDrawCount),
		rng:        rng,
	}
	if b.ClearColor != nil {
		p.ClearValue.Color = v.color(b.ClearColor, rng)
	}
	p.ClearValue.Depth = float32(deref(b.ClearDepth, 1))

	if slices.ContainsFunc(v.frame.Passes, func(o *Pass) bool { return o.Name == p.Name }) {
		v.errorf(rng, "Duplicate pass", "A pass named %q is already declared.", p.Name)
	}
	if !p.Kind.valid() {
		v.errorf(rng, "Unknown pass kind", "Pass %q: kind must be one of raster, compute, ray_tracing, copy or clear; got %q.", p.Name, b.Kind)
		return
	}
	if b.Queue != nil {
		q, ok := gpu.ParseQueueType(*b.Queue)
		if !ok {
			v.errorf(rng, "Unknown queue", "Pass %q: unknown queue %q.", p.Name, *b.Queue)
		}
		if p.Kind == PassRaster && q != gpu.QueueGraphics {
			v.errorf(rng, "Invalid queue", "Raster pass %q must run on the graphics queue.", p.Name)
		}
		p.Queue = q
	}
	if len(b.Dispatch) > 3 {
		v.errorf(rng, "Invalid dispatch", "Pass %q: dispatch takes at most three dimensions.", p.Name)
	}
	for i, d := range b.Dispatch {
		if i < 3 {
			p.Dispatch[i] = d
		}
	}

	for _, n := range p.Reads {
		v.ref(n, nil, rng, "reads")
		if slices.Contains(p.Writes, n) {
			v.errorf(rng, "Conflicting access", "Pass %q lists %q in both reads and writes; writes already imply a read.", p.Name, n)
		}
	}
	for _, n := range p.Writes {
		v.ref(n, nil, rng, "writes")
	}
	for _, n := range p.Vertex {
		v.ref(n, &buffer, rng, "vertex")
	}
	for _, attr := range []struct {
		name, value string
		kind        *ResourceKind
	}{
		{"index", p.Index, &buffer},
		{"indirect", p.Indirect, &buffer},
		{"depth", p.Depth, &texture},
		{"target", p.Target, &texture},
	} {
		if attr.value != "" {
			v.ref(attr.value, attr.kind, rng, attr.name)
		}
	}

	switch p.Kind {
	case PassRaster:
		v.rasterPass(p, rng)
	case PassCopy:
		if p.CopySrc == "" || p.CopyDst == "" {
			v.errorf(rng, "Incomplete copy", "Copy pass %q needs copy_src and copy_dst.", p.Name)
			break
		}
		src, dst := v.ref(p.CopySrc, nil, rng, "copy_src"), v.ref(p.CopyDst, nil, rng, "copy_dst")
		if src != nil && dst != nil && src.Kind != dst.Kind {
			v.errorf(rng, "Mismatched copy", "Copy pass %q copies a %s into a %s.", p.Name, src.Kind, dst.Kind)
		}
	case PassClear:
		if p.Target == "" {
			v.errorf(rng, "Incomplete clear", "Clear pass %q needs a target texture.", p.Name)
		}
	}
	v.frame.Passes = append(v.frame.Passes, p)
}

func (v *validator) rasterPass(p *Pass, rng hcl.Range) {
	texture := KindTexture
	if len(p.Colors) == 0 && p.Depth == "" {
		v.errorf(rng, "Empty render pass", "Raster pass %q needs at least one colour or depth attachment.", p.Name)
	}
	seen := make(map[string]bool)
	for _, n := range slices.Concat(p.Colors, p.Resolves, []string{p.Depth}) {
		if n != "" && seen[n] {
			v.errorf(rng, "Duplicate attachment", "Raster pass %q attaches %q more than once.", p.Name, n)
		}
		seen[n] = true
	}
	if len(p.Resolves) > len(p.Colors) {
		v.errorf(rng, "Too many attachments", "Raster pass %q resolves more attachments than it renders.", p.Name)
	}
	for _, n := range p.Colors {
		if r := v.ref(n, &texture, rng, "color"); r != nil && r.Texture.Format.IsDepth() {
			v.errorf(rng, "Invalid attachment", "Raster pass %q uses depth texture %q as a colour attachment.", p.Name, n)
		}
	}
	for _, n := range p.Resolves {
		v.ref(n, &texture, rng, "resolve")
	}
	if p.Depth != "" {
		if r := v.ref(p.Depth, &texture, rng, "depth"); r != nil && !r.Texture.Format.IsDepth() {
			v.errorf(rng, "Invalid attachment", "Raster pass %q uses colour texture %q as its depth attachment.", p.Name, p.Depth)
		}
	}
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
