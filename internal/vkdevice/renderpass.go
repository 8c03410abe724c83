package vkdevice

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vk/rendergraph/internal/gpu"
)

const attachmentUnused = ^uint32(0)

// loadOp keeps attachment contents unless the pass clears them, or nothing
// before this pass and nothing outside the frame can observe them.
func loadOp(f gpu.AttachmentFlags) vk.AttachmentLoadOp {
	switch {
	case f.Has(gpu.AttachmentClear):
		return vk.AttachmentLoadOpClear
	case f.Has(gpu.AttachmentFirstPass) && !f.Has(gpu.AttachmentExternal):
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpLoad
}

func storeOp(f gpu.AttachmentFlags) vk.AttachmentStoreOp {
	if f.Has(gpu.AttachmentLastPass) && !f.Has(gpu.AttachmentExternal) {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func attachmentDescription(a gpu.Attachment, layout vk.ImageLayout) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         Format(a.Format),
		Samples:        SampleCount(a.SampleCount),
		LoadOp:         loadOp(a.Flags),
		StoreOp:        storeOp(a.Flags),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  layout,
		FinalLayout:    layout,
	}
}

// renderPassLayout is the single-subpass description of a key. Attachments
// are ordered colours, resolves, depth, matching the framebuffer.
type renderPassLayout struct {
	attachments []vk.AttachmentDescription
	colors      []vk.AttachmentReference
	resolves    []vk.AttachmentReference
	depth       *vk.AttachmentReference
}

func describeRenderPass(key gpu.RenderPassKey) renderPassLayout {
	var l renderPassLayout
	add := func(a gpu.Attachment, layout vk.ImageLayout) vk.AttachmentReference {
		l.attachments = append(l.attachments, attachmentDescription(a, layout))
		return vk.AttachmentReference{Attachment: uint32(len(l.attachments) - 1), Layout: layout}
	}

	n := key.ColorCount()
	for _, a := range key.Color[:n] {
		l.colors = append(l.colors, add(a, vk.ImageLayoutColorAttachmentOptimal))
	}
	if key.HasResolve() {
		for _, a := range key.Resolve[:n] {
			if !a.Flags.Has(gpu.AttachmentActive) {
				l.resolves = append(l.resolves, vk.AttachmentReference{Attachment: attachmentUnused})
				continue
			}
			l.resolves = append(l.resolves, add(a, vk.ImageLayoutColorAttachmentOptimal))
		}
	}
	if key.HasDepth() {
		ref := add(key.Depth, vk.ImageLayoutDepthStencilAttachmentOptimal)
		l.depth = &ref
	}
	return l
}

// RenderPassCache creates one vk.RenderPass per distinct key and registers
// it in a Table.
type RenderPassCache struct {
	device vk.Device
	table  *Table

	mu     sync.Mutex
	passes map[gpu.RenderPassKey]gpu.RenderPassID
}

func NewRenderPassCache(device vk.Device, table *Table) *RenderPassCache {
	return &RenderPassCache{
		device: device,
		table:  table,
		passes: make(map[gpu.RenderPassKey]gpu.RenderPassID),
	}
}

// Request returns the render pass for key, creating it on first use.
func (c *RenderPassCache) Request(key gpu.RenderPassKey) (gpu.RenderPassID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.passes[key]; ok {
		return id, nil
	}

	l := describeRenderPass(key)
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(l.colors)),
		PColorAttachments:       l.colors,
		PResolveAttachments:     l.resolves,
		PDepthStencilAttachment: l.depth,
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(l.attachments)),
		PAttachments:    l.attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}
	var rp vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(c.device, &info, nil, &rp)); err != nil {
		return 0, fmt.Errorf("vkCreateRenderPass: %w", err)
	}
	id := c.table.RegisterRenderPass(RenderPass{Handle: rp, Key: key})
	c.passes[key] = id
	return id, nil
}

func (c *RenderPassCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.passes)
}

// Destroy releases every render pass. The device must be idle.
func (c *RenderPassCache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, id := range c.passes {
		if rp, ok := c.table.RenderPass(id); ok {
			vk.DestroyRenderPass(c.device, rp.Handle, nil)
		}
		delete(c.passes, key)
	}
}
