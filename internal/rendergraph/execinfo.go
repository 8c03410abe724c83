package rendergraph

import (
	"fmt"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/ledger"
)

// accessEntry is one scheduled pass's use of one resource view.
type accessEntry struct {
	step     int
	queue    gpu.QueueType
	stages   gpu.PipelineStageFlags
	accesses gpu.AccessFlags
	layout   gpu.TextureLayout
}

// syncState is what the planner still owes a view before its next access.
type syncState struct {
	cache            ledger.CacheState
	pendingSemaphore gpu.Semaphore
	pendingEvent     int
	pendingBarrier   gpu.PipelineStageFlags
	// written is set once a write to the view may still be pending against
	// readers on another queue.
	written bool
}

func newSyncState() syncState {
	return syncState{cache: ledger.New(), pendingEvent: -1}
}

// viewInfo tracks one texture subresource, or the whole of a non-texture
// resource.
type viewInfo struct {
	entries []accessEntry
	cursor  int
	layout  gpu.TextureLayout
	sync    syncState
}

// execInfo is the per-frame execution record of one resource.
type execInfo struct {
	kind     resourceKind
	resource int
	name     string
	external bool

	firstStep int
	lastStep  int
	queues    gpu.QueueFlags

	bufferUsage  gpu.BufferUsageFlags
	bufferDesc   gpu.BufferDesc
	textureUsage gpu.TextureUsageFlags
	textureDesc  gpu.TextureDesc

	views []viewInfo

	buffer    gpu.BufferID
	texture   gpu.TextureID
	tlas      gpu.TlasID
	blasGroup gpu.BlasGroupID
	created   bool
}

func newExecInfo(kind resourceKind, resource int, name string, external bool, viewCount int) execInfo {
	info := execInfo{
		kind:      kind,
		resource:  resource,
		name:      name,
		external:  external,
		firstStep: -1,
		lastStep:  -1,
		views:     make([]viewInfo, viewCount),
	}
	for i := range info.views {
		info.views[i].sync = newSyncState()
	}
	return info
}

func (e *execInfo) accessed() bool { return e.firstStep >= 0 }

// addAccess folds a into the record for the pass at step. It reports the
// views touched for the first time by this step.
func (e *execInfo) addAccess(step int, queue gpu.QueueType, a access) ([]int, error) {
	if e.firstStep < 0 {
		e.firstStep = step
	}
	e.lastStep = step
	e.queues |= gpu.QueueFlagsOf(queue)
	e.bufferUsage |= a.bufferUsage
	e.textureUsage |= a.textureUsage

	var views []int
	add := func(v int) error {
		if v >= len(e.views) {
			return fmt.Errorf("%s %q: view %d out of range", e.kind, e.name, v)
		}
		vi := &e.views[v]
		if n := len(vi.entries); n > 0 && vi.entries[n-1].step == step {
			last := &vi.entries[n-1]
			if e.kind == kindTexture && last.layout != a.layout {
				return fmt.Errorf("%w: texture %q view %d needs %s and %s", ErrLayoutConflict, e.name, v, last.layout, a.layout)
			}
			last.stages |= a.stages
			last.accesses |= a.accesses
			return nil
		}
		vi.entries = append(vi.entries, accessEntry{
			step:     step,
			queue:    queue,
			stages:   a.stages,
			accesses: a.accesses,
			layout:   a.layout,
		})
		views = append(views, v)
		return nil
	}

	if e.kind != kindTexture {
		return views, add(0)
	}
	r := a.views
	if r.IsEmpty() {
		r = e.textureDesc.FullRange()
	}
	var err error
	r.ForEach(func(s gpu.SubresourceIndex) {
		if err == nil {
			err = add(s.ViewIndex(e.textureDesc.MipLevels))
		}
	})
	return views, err
}
