// Package ledger tracks, per resource (or per texture view), what the GPU
// has done to it and what must happen before the next access is safe.
//
// # The Cache State
//
// A CacheState answers three questions for the sync planner:
//
//   - Which queue owns the resource right now?
//   - Which pipeline stages and writes are still in flight, not yet made
//     available by a barrier, event or semaphore?
//   - For each pipeline stage, which access types have been made visible?
//
// Every commit operation is a pure state transition. Commits that do not
// apply (wrong queue, or a barrier too weak to cover what is pending) leave
// the state untouched, so the planner can call them unconditionally after it
// has emitted the matching command.
//
// A CacheState is a value type and is not safe for concurrent mutation.
package ledger

import (
	"fmt"

	"github.com/vk/rendergraph/internal/gpu"
)

// CacheState is the synchronization ledger of a single resource.
type CacheState struct {
	QueueOwner          gpu.QueueType
	UnavailableStages   gpu.PipelineStageFlags
	UnavailableAccesses gpu.AccessFlags
	SyncStages          gpu.PipelineStageFlags
	Visible             [gpu.StageCount]gpu.AccessFlags
}

// New returns the state of a resource nobody has touched: unowned, nothing
// pending, everything visible everywhere.
func New() CacheState {
	s := CacheState{
		QueueOwner: gpu.QueueNone,
		SyncStages: gpu.StagesAll,
	}
	s.setVisible(gpu.AccessAll)
	return s
}

func (s *CacheState) setVisible(a gpu.AccessFlags) {
	for i := range s.Visible {
		s.Visible[i] = a
	}
}

func (s *CacheState) clearUnavailable() {
	s.UnavailableStages = gpu.StagesNone
	s.UnavailableAccesses = gpu.AccessNone
}

// ResetVisibility drops every visibility guarantee.
func (s *CacheState) ResetVisibility() { s.setVisible(gpu.AccessNone) }

func (s *CacheState) ownedByOther(q gpu.QueueType) bool {
	return s.QueueOwner != gpu.QueueNone && s.QueueOwner != q
}

// CommitAcquireSwapchain records that the image was just acquired from the
// presentation engine: graphics owns it and its contents are not visible to
// any stage until the acquire semaphore is waited on.
func (s *CacheState) CommitAcquireSwapchain() {
	s.QueueOwner = gpu.QueueGraphics
	s.clearUnavailable()
	s.SyncStages = gpu.StagesNone
	s.setVisible(gpu.AccessNone)
}

// CommitWaitSemaphore records that dst waited on a semaphore signalled by
// src. Semaphore waits make all memory available and visible to dstStages.
func (s *CacheState) CommitWaitSemaphore(src, dst gpu.QueueType, dstStages gpu.PipelineStageFlags) {
	if s.ownedByOther(src) {
		return
	}
	s.QueueOwner = dst
	s.SyncStages = dstStages
	s.clearUnavailable()
	dstStages.ForEach(func(st gpu.PipelineStage) {
		s.Visible[st] = gpu.AccessAll
	})
}

// CommitWaitEventOrBarrier records an execution and memory dependency on
// queue. It only applies when the barrier is strong enough to cover every
// pending stage and write.
func (s *CacheState) CommitWaitEventOrBarrier(
	queue gpu.QueueType,
	srcStages gpu.PipelineStageFlags,
	srcAccesses gpu.AccessFlags,
	dstStages gpu.PipelineStageFlags,
	dstAccesses gpu.AccessFlags,
	layoutChange bool,
) {
	if s.ownedByOther(queue) {
		return
	}
	if !s.SyncStages.Any(srcStages) {
		return
	}
	if !srcStages.Contains(s.UnavailableStages) {
		return
	}
	if !srcAccesses.Contains(s.UnavailableAccesses) {
		return
	}

	s.QueueOwner = queue
	s.SyncStages |= dstStages
	s.clearUnavailable()
	if layoutChange {
		s.setVisible(gpu.AccessNone)
	}
	dstStages.ForEach(func(st gpu.PipelineStage) {
		s.Visible[st] |= dstAccesses
	})
}

// CommitAccess records that queue accessed the resource. Writes make the
// resource unavailable and invalidate all visibility.
func (s *CacheState) CommitAccess(queue gpu.QueueType, stages gpu.PipelineStageFlags, accesses gpu.AccessFlags) {
	s.QueueOwner = queue
	s.UnavailableStages |= stages
	if w := accesses.Writes(); w != gpu.AccessNone {
		s.UnavailableAccesses |= w
		s.setVisible(gpu.AccessNone)
	}
}

// NeedInvalidate reports whether some stage in stages has not been granted
// visibility of every access in accesses.
func (s *CacheState) NeedInvalidate(stages gpu.PipelineStageFlags, accesses gpu.AccessFlags) bool {
	need := false
	stages.ForEach(func(st gpu.PipelineStage) {
		if !s.Visible[st].Contains(accesses) {
			need = true
		}
	})
	return need
}

// HasUnavailable reports whether any stage or write is still pending.
func (s *CacheState) HasUnavailable() bool {
	return s.UnavailableStages != gpu.StagesNone || s.UnavailableAccesses != gpu.AccessNone
}

// Join folds other into s. Pending work accumulates and only accesses
// visible in both states stay visible.
func (s *CacheState) Join(other CacheState) {
	s.UnavailableStages |= other.UnavailableStages
	s.UnavailableAccesses |= other.UnavailableAccesses
	s.SyncStages |= other.SyncStages
	for i := range s.Visible {
		s.Visible[i] &= other.Visible[i]
	}
	if s.QueueOwner == gpu.QueueNone {
		s.QueueOwner = other.QueueOwner
	}
}

func (s CacheState) String() string {
	return fmt.Sprintf("owner=%s unavailable_stages=%s unavailable_accesses=%s sync=%s",
		s.QueueOwner, s.UnavailableStages, s.UnavailableAccesses, s.SyncStages)
}
