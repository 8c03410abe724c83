package gpu

// AttachmentFlags describe how an attachment participates in a render pass.
type AttachmentFlags uint8

const (
	AttachmentActive AttachmentFlags = 1 << iota
	AttachmentFirstPass
	AttachmentLastPass
	AttachmentClear
	AttachmentExternal
)

func (f AttachmentFlags) Has(o AttachmentFlags) bool { return f&o == o }

const (
	MaxColorAttachments   = 8
	MaxResolveAttachments = 8
)

// Attachment is the identity of one render pass attachment. A zero
// Attachment (no Active flag) is an unused slot.
type Attachment struct {
	Format      TextureFormat
	SampleCount SampleCount
	Flags       AttachmentFlags
}

// RenderPassKey fully determines a render pass object. It is comparable, so
// devices memoise render passes in a map keyed by it.
type RenderPassKey struct {
	Color   [MaxColorAttachments]Attachment
	Resolve [MaxResolveAttachments]Attachment
	Depth   Attachment
}

// ColorCount is the number of leading active colour attachments.
func (k RenderPassKey) ColorCount() int {
	n := 0
	for _, a := range k.Color {
		if !a.Flags.Has(AttachmentActive) {
			break
		}
		n++
	}
	return n
}

// HasResolve reports whether any resolve slot is active.
func (k RenderPassKey) HasResolve() bool {
	for _, a := range k.Resolve {
		if a.Flags.Has(AttachmentActive) {
			return true
		}
	}
	return false
}

func (k RenderPassKey) HasDepth() bool { return k.Depth.Flags.Has(AttachmentActive) }

// TextureView is one subresource of a texture.
type TextureView struct {
	Texture TextureID
	Index   SubresourceIndex
}

// FramebufferDesc binds concrete views to a render pass.
type FramebufferDesc struct {
	RenderPass  RenderPassID
	Attachments []TextureView
	Width       uint32
	Height      uint32
}
