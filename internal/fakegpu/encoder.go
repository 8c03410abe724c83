package fakegpu

import (
	"errors"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// Op names a recorded command.
type Op string

const (
	OpBeginLabel         Op = "begin_label"
	OpEndLabel           Op = "end_label"
	OpPipelineBarrier    Op = "pipeline_barrier"
	OpWaitEvents         Op = "wait_events"
	OpSetEvent           Op = "set_event"
	OpBeginRenderPass    Op = "begin_render_pass"
	OpEndRenderPass      Op = "end_render_pass"
	OpBindDescriptorSets Op = "bind_descriptor_sets"
	OpBindPipeline       Op = "bind_pipeline"
	OpDraw               Op = "draw"
	OpDrawIndexed        Op = "draw_indexed"
	OpDispatch           Op = "dispatch"
	OpTraceRays          Op = "trace_rays"
	OpCopyBuffer         Op = "copy_buffer"
	OpCopyTexture        Op = "copy_texture"
	OpClearTexture       Op = "clear_texture"
	OpBuildTlas          Op = "build_tlas"
	OpBuildBlasGroup     Op = "build_blas_group"
)

// Command is one recorded call. Args holds the call's argument: a
// rendergraph.PipelineBarrier, rendergraph.EventWait, rendergraph.RenderPassBegin,
// a gpu.TextureView, a string label or a small struct for the rest.
type Command struct {
	Op   Op
	Args any
}

// SetEventArgs are the arguments of a SetEvent call.
type SetEventArgs struct {
	Event  gpu.EventID
	Stages gpu.PipelineStageFlags
}

// ClearArgs are the arguments of a ClearTexture call.
type ClearArgs struct {
	View  gpu.TextureView
	Value gpu.ClearValue
}

// CopyArgs are the arguments of CopyBuffer and CopyTexture calls. Size is
// zero for texture copies.
type CopyArgs struct {
	Src, Dst any
	Size     uint64
}

var errUnbalancedLabel = errors.New("fakegpu: EndLabel without BeginLabel")

// Encoder is a rendergraph.CommandEncoder that records its calls.
type Encoder struct {
	queue    gpu.QueueType
	label    string
	depth    int
	commands []Command
	err      error
}

var _ rendergraph.CommandEncoder = (*Encoder)(nil)

func (e *Encoder) push(op Op, args any) { e.commands = append(e.commands, Command{Op: op, Args: args}) }

// Commands returns the recorded calls in order.
func (e *Encoder) Commands() []Command { return e.commands }

// Label is the first label opened on the encoder.
func (e *Encoder) Label() string { return e.label }

func (e *Encoder) Err() error { return e.err }

// Count returns how many times op was recorded.
func (e *Encoder) Count(op Op) int {
	n := 0
	for _, c := range e.commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Barriers returns the pipeline barriers in recording order.
func (e *Encoder) Barriers() []rendergraph.PipelineBarrier {
	var out []rendergraph.PipelineBarrier
	for _, c := range e.commands {
		if c.Op == OpPipelineBarrier {
			out = append(out, c.Args.(rendergraph.PipelineBarrier))
		}
	}
	return out
}

// EventWaits returns the event waits in recording order.
func (e *Encoder) EventWaits() []rendergraph.EventWait {
	var out []rendergraph.EventWait
	for _, c := range e.commands {
		if c.Op == OpWaitEvents {
			out = append(out, c.Args.(rendergraph.EventWait))
		}
	}
	return out
}

func (e *Encoder) BeginLabel(name string) {
	if e.label == "" {
		e.label = name
	}
	e.depth++
	e.push(OpBeginLabel, name)
}

func (e *Encoder) EndLabel() {
	if e.depth == 0 {
		e.err = errUnbalancedLabel
		return
	}
	e.depth--
	e.push(OpEndLabel, nil)
}

func (e *Encoder) PipelineBarrier(b rendergraph.PipelineBarrier) { e.push(OpPipelineBarrier, b) }

func (e *Encoder) WaitEvents(w rendergraph.EventWait) { e.push(OpWaitEvents, w) }

func (e *Encoder) SetEvent(id gpu.EventID, stages gpu.PipelineStageFlags) {
	e.push(OpSetEvent, SetEventArgs{Event: id, Stages: stages})
}

func (e *Encoder) BeginRenderPass(b rendergraph.RenderPassBegin) { e.push(OpBeginRenderPass, b) }

func (e *Encoder) EndRenderPass() { e.push(OpEndRenderPass, nil) }

func (e *Encoder) BindDescriptorSets(bp gpu.BindPoint) { e.push(OpBindDescriptorSets, bp) }

func (e *Encoder) BindPipeline(id gpu.PipelineStateID) { e.push(OpBindPipeline, id) }

func (e *Encoder) Draw(vertexCount, instanceCount uint32) {
	e.push(OpDraw, [2]uint32{vertexCount, instanceCount})
}

func (e *Encoder) DrawIndexed(indexCount, instanceCount uint32) {
	e.push(OpDrawIndexed, [2]uint32{indexCount, instanceCount})
}

func (e *Encoder) Dispatch(x, y, z uint32) { e.push(OpDispatch, [3]uint32{x, y, z}) }

func (e *Encoder) TraceRays(width, height, depth uint32) {
	e.push(OpTraceRays, [3]uint32{width, height, depth})
}

func (e *Encoder) CopyBuffer(src, dst gpu.BufferID, size uint64) {
	e.push(OpCopyBuffer, CopyArgs{Src: src, Dst: dst, Size: size})
}

func (e *Encoder) CopyTexture(src, dst gpu.TextureView) {
	e.push(OpCopyTexture, CopyArgs{Src: src, Dst: dst})
}

func (e *Encoder) ClearTexture(view gpu.TextureView, value gpu.ClearValue) {
	e.push(OpClearTexture, ClearArgs{View: view, Value: value})
}

func (e *Encoder) BuildTlas(dst gpu.TlasID, instances gpu.BufferID) {
	e.push(OpBuildTlas, CopyArgs{Src: instances, Dst: dst})
}

func (e *Encoder) BuildBlasGroup(dst gpu.BlasGroupID) { e.push(OpBuildBlasGroup, dst) }
