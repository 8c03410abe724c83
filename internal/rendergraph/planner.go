package rendergraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/ledger"
)

type event struct {
	id           gpu.EventID
	queue        gpu.QueueType
	stages       gpu.PipelineStageFlags
	lastWaitStep int
}

type semaphoreWait struct {
	sem    gpu.Semaphore
	stages gpu.PipelineStageFlags
}

// submission is a recorded command buffer waiting for the end of the frame.
type submission struct {
	queue     Queue
	enc       CommandEncoder
	waits     []semaphoreWait
	predicted gpu.Semaphore
	pass      *pass
}

func (s *submission) addWait(sem gpu.Semaphore, stages gpu.PipelineStageFlags) {
	for i := range s.waits {
		if s.waits[i].sem == sem {
			s.waits[i].stages |= stages
			return
		}
	}
	s.waits = append(s.waits, semaphoreWait{sem: sem, stages: stages})
}

// frame is the mutable state of one Execute call.
type frame struct {
	rc     Context
	g      *RenderGraph
	c      *compiled
	logger *slog.Logger

	events         []event
	externalEvents [gpu.QueueCount]int
	framebuffers   []gpu.FramebufferID

	staged   []*submission
	inFlight [gpu.QueueCount]uint64

	stats BarrierStats
}

func newFrame(ctx context.Context, rc Context, g *RenderGraph, c *compiled) *frame {
	f := &frame{rc: rc, g: g, c: c, logger: ctxlog.FromContext(ctx)}
	for q := range f.externalEvents {
		f.externalEvents[q] = -1
	}
	return f
}

func (f *frame) newEvent(queue gpu.QueueType) (int, error) {
	id, err := f.rc.Device.CreateEvent()
	if err != nil {
		return -1, fmt.Errorf("%w: event: %w", ErrAllocation, err)
	}
	f.events = append(f.events, event{id: id, queue: queue, lastWaitStep: -1})
	return len(f.events) - 1, nil
}

// useEvent decides whether a same-queue dependency spanning gap unrelated
// passes is carried by an event.
func (f *frame) useEvent(queue gpu.QueueType, gap int) bool {
	d := f.rc.Options.EventDistance
	return queue != gpu.QueueTransfer && d >= 0 && gap >= d
}

// stage queues sub for submission at the end of the frame and returns the
// timeline point it will signal.
func (f *frame) stage(sub *submission) gpu.Semaphore {
	q := sub.queue.Type()
	f.inFlight[q]++
	sub.predicted = gpu.Semaphore{Queue: q, Value: sub.queue.TimelineValue() + f.inFlight[q]}
	f.staged = append(f.staged, sub)
	return sub.predicted
}

// syncExternal seeds the ledgers from the device and works out how each
// external resource's first access must wait for work outside the graph.
func (f *frame) syncExternal(ctx context.Context) error {
	dev := f.rc.Device

	for i := range f.c.infos[kindTexture] {
		info := &f.c.infos[kindTexture][i]
		if !info.accessed() {
			continue
		}
		layout, state := dev.TextureState(info.texture)
		for v := range info.views {
			info.views[v].layout = layout
		}
		if !info.external {
			continue
		}
		presentation := dev.IsPresentationOwned(info.texture)
		for v := range info.views {
			if len(info.views[v].entries) == 0 {
				continue
			}
			info.views[v].sync.cache = state
			if err := f.syncFirstAccess(info, &info.views[v], presentation); err != nil {
				return err
			}
		}
	}

	for _, kind := range []resourceKind{kindBuffer, kindTlas, kindBlasGroup} {
		for i := range f.c.infos[kind] {
			info := &f.c.infos[kind][i]
			if !info.external || !info.accessed() {
				continue
			}
			switch kind {
			case kindBuffer:
				info.views[0].sync.cache = dev.BufferState(info.buffer)
			case kindTlas:
				info.views[0].sync.cache = dev.TlasState(info.tlas)
			case kindBlasGroup:
				info.views[0].sync.cache = dev.BlasGroupState(info.blasGroup)
			}
			if err := f.syncFirstAccess(info, &info.views[0], false); err != nil {
				return err
			}
		}
	}

	for q, idx := range f.externalEvents {
		if idx < 0 {
			continue
		}
		queue := f.rc.Queues.Queue(gpu.QueueType(q))
		enc, err := queue.RequestCommandBuffer()
		if err != nil {
			return fmt.Errorf("%w: external sync on %s: %w", ErrSubmission, gpu.QueueType(q), err)
		}
		ev := f.events[idx]
		enc.BeginLabel("external_sync")
		enc.SetEvent(ev.id, ev.stages)
		enc.EndLabel()
		f.stage(&submission{queue: queue, enc: enc})
		f.logger.Debug("External event staged.", "queue", gpu.QueueType(q).String(), "stages", ev.stages.String())
	}
	return nil
}

func (f *frame) syncFirstAccess(info *execInfo, v *viewInfo, presentation bool) error {
	st := &v.sync
	first := v.entries[0].queue
	owner := st.cache.QueueOwner
	st.written = presentation || owner != gpu.QueueNone

	switch {
	case presentation:
		st.cache.CommitAcquireSwapchain()
		st.pendingSemaphore = f.rc.Device.ImageAvailableSemaphore()
		st.pendingEvent = -1
	case owner == first && st.cache.HasUnavailable():
		if first == gpu.QueueTransfer || f.rc.Options.EventDistance < 0 {
			st.pendingBarrier |= st.cache.UnavailableStages
			break
		}
		if f.externalEvents[first] < 0 {
			idx, err := f.newEvent(first)
			if err != nil {
				return err
			}
			f.externalEvents[first] = idx
		}
		idx := f.externalEvents[first]
		f.events[idx].stages |= st.cache.UnavailableStages
		st.pendingEvent = idx
	case owner != gpu.QueueNone && owner != first:
		st.pendingSemaphore = gpu.Semaphore{Queue: owner, Value: f.rc.Queues.Queue(owner).TimelineValue()}
	}

	f.logger.Debug("External resource synchronized.",
		"resource", info.name, "owner", owner.String(), "first_queue", first.String(),
		"semaphore", st.pendingSemaphore.String(), "event", st.pendingEvent, "barrier_stages", st.pendingBarrier.String())
	return nil
}

// barrierBatch accumulates barriers of one vkCmdPipelineBarrier or
// vkCmdWaitEvents call.
type barrierBatch struct {
	memory   []MemoryBarrier
	buffers  []BufferBarrier
	textures []TextureBarrier
}

func (b *barrierBatch) empty() bool {
	return len(b.memory) == 0 && len(b.buffers) == 0 && len(b.textures) == 0
}

func (f *frame) addBarrier(b *barrierBatch, info *execInfo, view int, oldLayout, newLayout gpu.TextureLayout, src, dst gpu.AccessFlags) {
	switch info.kind {
	case kindBuffer:
		b.buffers = append(b.buffers, BufferBarrier{Buffer: info.buffer, SrcAccess: src, DstAccess: dst})
	case kindTexture:
		b.textures = append(b.textures, TextureBarrier{
			Texture:   info.texture,
			View:      viewIndex(info.textureDesc, view),
			OldLayout: oldLayout,
			NewLayout: newLayout,
			SrcAccess: src,
			DstAccess: dst,
		})
		if oldLayout != newLayout {
			f.stats.LayoutTransitions++
		}
	default:
		b.memory = append(b.memory, MemoryBarrier{SrcAccess: src, DstAccess: dst})
	}
}

// viewIndex is the inverse of SubresourceIndex.ViewIndex.
func viewIndex(desc gpu.TextureDesc, v int) gpu.SubresourceIndex {
	levels := max(desc.MipLevels, 1)
	return gpu.SubresourceIndex{Level: uint32(v) % levels, Layer: uint32(v) / levels}
}

// resolvePass emits the synchronization the pass at step needs before its
// commands, and commits its accesses to the ledgers.
func (f *frame) resolvePass(step int, p *pass, enc CommandEncoder, sub *submission) {
	queue := p.queue

	var (
		semLayout        barrierBatch
		semStages        gpu.PipelineStageFlags
		pipe             barrierBatch
		pipeSrc, pipeDst gpu.PipelineStageFlags
		waits            barrierBatch
		waitEvents       []gpu.EventID
		waitSrc, waitDst gpu.PipelineStageFlags
	)

	for _, t := range f.c.touches[step] {
		info := t.info
		v := &info.views[t.view]
		e := v.entries[v.cursor]
		st := &v.sync

		if st.cache.UnavailableAccesses != gpu.AccessNone {
			st.cache.ResetVisibility()
		}
		layoutChange := info.kind == kindTexture && v.layout != e.layout

		if st.pendingSemaphore.IsNull() && st.pendingEvent < 0 && st.pendingBarrier == gpu.StagesNone &&
			st.cache.UnavailableAccesses == gpu.AccessNone &&
			!st.cache.NeedInvalidate(e.stages, e.accesses) && !layoutChange {
			st.cache.CommitAccess(queue, e.stages, e.accesses)
			continue
		}

		if !st.pendingSemaphore.IsNull() {
			sub.addWait(st.pendingSemaphore, e.stages)
			f.stats.SemaphoreWaits++
			st.cache.CommitWaitSemaphore(st.pendingSemaphore.Queue, queue, e.stages)
			if layoutChange {
				f.addBarrier(&semLayout, info, t.view, v.layout, e.layout, gpu.AccessNone, e.accesses)
				semStages |= e.stages
				st.cache.CommitWaitEventOrBarrier(queue, e.stages, gpu.AccessNone, e.stages, e.accesses, true)
			}
		} else {
			srcStages := st.cache.UnavailableStages
			srcAccesses := st.cache.UnavailableAccesses
			if st.pendingEvent >= 0 {
				ev := &f.events[st.pendingEvent]
				f.addBarrier(&waits, info, t.view, v.layout, e.layout, srcAccesses, e.accesses)
				if ev.lastWaitStep != step {
					ev.lastWaitStep = step
					waitEvents = append(waitEvents, ev.id)
					waitSrc |= ev.stages
				}
				waitDst |= e.stages
			} else {
				f.addBarrier(&pipe, info, t.view, v.layout, e.layout, srcAccesses, e.accesses)
				pipeSrc |= srcStages | st.pendingBarrier
				pipeDst |= e.stages
			}
			st.cache.CommitWaitEventOrBarrier(queue, srcStages, srcAccesses, e.stages, e.accesses, layoutChange)
		}

		st.pendingSemaphore = gpu.Semaphore{}
		st.pendingEvent = -1
		st.pendingBarrier = gpu.StagesNone
		if info.kind == kindTexture {
			v.layout = e.layout
		}
		st.cache.CommitAccess(queue, e.stages, e.accesses)
	}

	if !semLayout.empty() {
		enc.PipelineBarrier(PipelineBarrier{
			SrcStages: semStages,
			DstStages: semStages,
			Memory:    semLayout.memory,
			Buffers:   semLayout.buffers,
			Textures:  semLayout.textures,
		})
		f.stats.PipelineBarriers++
	}
	if !pipe.empty() {
		if pipeSrc == gpu.StagesNone {
			pipeSrc = gpu.Stages(gpu.StageTopOfPipe)
		}
		enc.PipelineBarrier(PipelineBarrier{
			SrcStages: pipeSrc,
			DstStages: pipeDst,
			Memory:    pipe.memory,
			Buffers:   pipe.buffers,
			Textures:  pipe.textures,
		})
		f.stats.PipelineBarriers++
		f.logger.Debug("Pipeline barrier.", "pass", p.name, "src", pipeSrc.String(), "dst", pipeDst.String(),
			"buffers", len(pipe.buffers), "textures", len(pipe.textures))
	}
	if !waits.empty() {
		enc.WaitEvents(EventWait{
			Events:    waitEvents,
			SrcStages: waitSrc,
			DstStages: waitDst,
			Memory:    waits.memory,
			Buffers:   waits.buffers,
			Textures:  waits.textures,
		})
		f.stats.EventWaits++
		f.logger.Debug("Event wait.", "pass", p.name, "events", len(waitEvents), "src", waitSrc.String(), "dst", waitDst.String())
	}
}

// lookAhead advances every view the pass touched and arms the sync its next
// access needs. It returns the views that must wait on this pass's
// submission and the index of the event the pass must set, or -1.
func (f *frame) lookAhead(step int, p *pass) ([]*syncState, int, error) {
	var (
		targets   []*syncState
		passEvent = -1
	)
	for _, t := range f.c.touches[step] {
		v := &t.info.views[t.view]
		e := v.entries[v.cursor]
		v.cursor++
		if v.cursor >= len(v.entries) {
			continue
		}
		next := v.entries[v.cursor]

		if e.accesses.HasWrite() {
			v.sync.written = true
		}
		layoutChange := t.info.kind == kindTexture && e.layout != next.layout
		if !e.accesses.HasWrite() && !next.accesses.HasWrite() && !layoutChange &&
			!crossQueueRead(v, p.queue, next.queue) {
			continue
		}

		switch {
		case next.queue != p.queue:
			targets = append(targets, &v.sync)
		case f.useEvent(p.queue, next.step-e.step-1):
			if passEvent < 0 {
				idx, err := f.newEvent(p.queue)
				if err != nil {
					return nil, -1, err
				}
				passEvent = idx
			}
			f.events[passEvent].stages |= e.stages
			v.sync.pendingEvent = passEvent
		default:
			v.sync.pendingBarrier |= e.stages
		}
	}
	return targets, passEvent, nil
}

// crossQueueRead reports whether a read followed by a read on another queue
// still has to be ordered: a write precedes the pair or follows it later in
// the frame. Timeline signals order everything earlier on a queue, so chaining
// the readers carries the write's ordering to every one of them.
func crossQueueRead(v *viewInfo, queue, next gpu.QueueType) bool {
	if queue == next {
		return false
	}
	if v.sync.written {
		return true
	}
	for _, e := range v.entries[v.cursor:] {
		if e.accesses.HasWrite() {
			return true
		}
	}
	return false
}

// writeBack computes the end-of-frame state of every external resource the
// frame touched. The returned function stores it on the device.
func (f *frame) writeBack() (func(), error) {
	var apply []func()
	dev := f.rc.Device

	for i := range f.c.infos[kindTexture] {
		info := &f.c.infos[kindTexture][i]
		if !info.external || !info.accessed() {
			continue
		}
		layout := info.views[0].layout
		var (
			state  ledger.CacheState
			joined bool
		)
		for v := range info.views {
			vi := &info.views[v]
			if vi.layout != layout {
				return nil, fmt.Errorf("%w: texture %q: view %d is %s, view 0 is %s", ErrMixedLayouts, info.name, v, vi.layout, layout)
			}
			if len(vi.entries) == 0 {
				continue
			}
			if !joined {
				state, joined = vi.sync.cache, true
				continue
			}
			state.Join(vi.sync.cache)
		}
		id := info.texture
		apply = append(apply, func() { dev.SetTextureState(id, layout, state) })
	}

	for _, kind := range []resourceKind{kindBuffer, kindTlas, kindBlasGroup} {
		for i := range f.c.infos[kind] {
			info := &f.c.infos[kind][i]
			if !info.external || !info.accessed() {
				continue
			}
			state := info.views[0].sync.cache
			switch kind {
			case kindBuffer:
				id := info.buffer
				apply = append(apply, func() { dev.SetBufferState(id, state) })
			case kindTlas:
				id := info.tlas
				apply = append(apply, func() { dev.SetTlasState(id, state) })
			case kindBlasGroup:
				id := info.blasGroup
				apply = append(apply, func() { dev.SetBlasGroupState(id, state) })
			}
		}
	}

	return func() {
		for _, fn := range apply {
			fn()
		}
	}, nil
}
