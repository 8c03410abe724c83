package rendergraph

import (
	"context"
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/gpu"
	"golang.org/x/sync/errgroup"
)

// allocationConcurrency bounds the number of in-flight device create calls.
const allocationConcurrency = 4

// allocate creates every transient resource a scheduled pass uses. On
// failure, whatever was created is destroyed again.
func (f *frame) allocate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	dev := f.rc.Device

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(allocationConcurrency)

	for i := range f.c.infos[kindBuffer] {
		info := &f.c.infos[kindBuffer][i]
		if info.external || info.bufferUsage == 0 {
			continue
		}
		desc := info.bufferDesc
		desc.Usage = info.bufferUsage
		desc.Queues = info.queues
		eg.Go(func() error {
			id, err := dev.CreateBuffer(desc)
			if err != nil {
				return fmt.Errorf("%w: buffer %q (first used by %q): %w", ErrAllocation, info.name, f.firstPass(info), err)
			}
			info.buffer = id
			info.created = true
			return nil
		})
	}

	for i := range f.c.infos[kindTexture] {
		info := &f.c.infos[kindTexture][i]
		if info.external || info.textureUsage == 0 {
			continue
		}
		desc := info.textureDesc
		desc.Usage = info.textureUsage
		desc.Queues = info.queues
		if desc.Clear {
			desc.Usage |= gpu.TextureUsageSampled
		}
		eg.Go(func() error {
			id, err := dev.CreateTexture(desc)
			if err != nil {
				return fmt.Errorf("%w: texture %q (first used by %q): %w", ErrAllocation, info.name, f.firstPass(info), err)
			}
			info.texture = id
			info.created = true
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		f.release()
		return err
	}

	buffers, textures := f.transientCounts()
	logger.Debug("Transient resources allocated.", "buffers", buffers, "textures", textures)
	return nil
}

// firstPass names the pass scheduled first among those using info.
func (f *frame) firstPass(info *execInfo) string {
	if !info.accessed() {
		return ""
	}
	return f.g.passes[f.c.order[info.firstStep]].name
}

func (f *frame) transientCounts() (buffers, textures int) {
	for i := range f.c.infos[kindBuffer] {
		if f.c.infos[kindBuffer][i].created {
			buffers++
		}
	}
	for i := range f.c.infos[kindTexture] {
		if f.c.infos[kindTexture][i].created {
			textures++
		}
	}
	return buffers, textures
}

// release destroys the frame's events, framebuffers and transient resources.
// It is safe to call more than once.
func (f *frame) release() {
	dev := f.rc.Device
	for _, ev := range f.events {
		dev.DestroyEvent(ev.id)
	}
	f.events = nil
	for _, fb := range f.framebuffers {
		dev.DestroyFramebuffer(fb)
	}
	f.framebuffers = nil

	for i := range f.c.infos[kindBuffer] {
		info := &f.c.infos[kindBuffer][i]
		if info.created {
			dev.DestroyBuffer(info.buffer)
			info.created = false
		}
	}
	for i := range f.c.infos[kindTexture] {
		info := &f.c.infos[kindTexture][i]
		if info.created {
			dev.DestroyTexture(info.texture)
			info.created = false
		}
	}
}
