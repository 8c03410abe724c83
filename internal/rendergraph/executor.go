package rendergraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/gpu"
)

// Execute compiles g, allocates its transient resources, records every
// scheduled pass with the synchronization it needs and submits the result.
//
// Submission is all or nothing: command buffers are only handed to the
// queues after every pass recorded successfully. External resource state is
// written back to the device after submission.
func Execute(ctx context.Context, rc Context, g *RenderGraph) (report *FrameReport, err error) {
	if g.executed {
		return nil, ErrAlreadyExecuted
	}
	g.executed = true

	frameID := uuid.NewString()[:12]
	ctx = ctxlog.With(ctx, "frame", frameID)
	logger := ctxlog.FromContext(ctx)
	initMetrics(logger)

	ctx, span := tracer.Start(ctx, "rendergraph.Execute",
		trace.WithAttributes(
			attribute.String("rendergraph.frame_id", frameID),
			attribute.Int("rendergraph.pass_count", len(g.passes)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if executeDuration != nil {
			executeDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.Bool("success", err == nil)),
			)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("Frame failed.", "error", err)
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	c, err := traced(ctx, "rendergraph.compile", func(ctx context.Context) (*compiled, error) {
		return compile(ctx, rc, g)
	})
	if err != nil {
		return nil, err
	}

	f := newFrame(ctx, rc, g, c)
	if _, err := traced(ctx, "rendergraph.allocate", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.allocate(ctx)
	}); err != nil {
		return nil, err
	}
	defer f.release()

	report = &FrameReport{FrameID: frameID}
	report.TransientBuffers, report.TransientTextures = f.transientCounts()
	for _, p := range g.passes {
		if !c.active[p.id] {
			report.Culled = append(report.Culled, p.name)
		}
	}

	if _, err := traced(ctx, "rendergraph.sync_external", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.syncExternal(ctx)
	}); err != nil {
		return nil, err
	}

	for step, pid := range c.order {
		p := g.passes[pid]
		if err := f.runPass(ctx, step, p); err != nil {
			p.setState(PassFailed)
			return nil, err
		}
		report.PassOrder = append(report.PassOrder, p.name)
	}

	apply, err := f.writeBack()
	if err != nil {
		return nil, err
	}
	if _, err := traced(ctx, "rendergraph.submit", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.flush(ctx)
	}); err != nil {
		return nil, err
	}
	apply()

	report.Barriers = f.stats
	report.Submissions = len(f.staged)
	report.Duration = time.Since(start)
	recordReport(ctx, report)

	logger.Info("Frame executed.",
		slog.Int("passes", len(report.PassOrder)),
		slog.Int("culled", len(report.Culled)),
		slog.Int("pipeline_barriers", f.stats.PipelineBarriers),
		slog.Int("event_waits", f.stats.EventWaits),
		slog.Int("semaphore_waits", f.stats.SemaphoreWaits),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func traced[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

// runPass records one scheduled pass and stages its submission.
func (f *frame) runPass(ctx context.Context, step int, p *pass) error {
	ctx, span := tracer.Start(ctx, "rendergraph.record",
		trace.WithAttributes(
			attribute.String("rendergraph.pass", p.name),
			attribute.String("rendergraph.queue", p.queue.String()),
		),
	)
	defer span.End()
	ctx = ctxlog.With(ctx, "pass", p.name, "queue", p.queue.String())

	queue := f.rc.Queues.Queue(p.queue)
	enc, err := queue.RequestCommandBuffer()
	if err != nil {
		err = fmt.Errorf("%w: %q: command buffer: %w", ErrPassFailed, p.name, err)
		span.RecordError(err)
		return err
	}
	sub := &submission{queue: queue, enc: enc, pass: p}

	enc.BeginLabel(p.name)
	f.resolvePass(step, p, enc, sub)
	p.setState(PassBarriersResolved)

	if err := f.executePass(ctx, step, p, enc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	targets, ev, err := f.lookAhead(step, p)
	if err != nil {
		return err
	}
	if ev >= 0 {
		enc.SetEvent(f.events[ev].id, f.events[ev].stages)
	}
	enc.EndLabel()

	sem := f.stage(sub)
	for _, t := range targets {
		t.pendingSemaphore = sem
	}
	p.setState(PassRecorded)
	ctxlog.FromContext(ctx).Debug("Pass recorded.", "signal", sem.String(), "waits", len(sub.waits), "semaphore_targets", len(targets))
	return nil
}

// executePass opens the render pass, binds descriptor sets and runs the
// pass's record callback.
func (f *frame) executePass(ctx context.Context, step int, p *pass, enc CommandEncoder) error {
	reg := &Registry{f: f, pass: p}

	raster := p.kind&PipelineRaster != 0
	if raster {
		begin, err := f.beginRenderPass(step, p)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrPassFailed, p.name, err)
		}
		enc.BeginRenderPass(begin)
		reg.renderPass = begin.RenderPass
		reg.sampleCount = p.target.SampleCount
	}
	for _, bp := range p.kind.BindPoints() {
		enc.BindDescriptorSets(bp)
	}

	if err := invoke(p, reg, enc); err != nil {
		return err
	}
	if raster {
		enc.EndRenderPass()
	}
	return nil
}

func invoke(p *pass, reg *Registry, enc CommandEncoder) (err error) {
	if p.record == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %q panicked: %v", ErrPassFailed, p.name, r)
		}
	}()
	if err := p.record(reg, enc); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPassFailed, p.name, err)
	}
	return nil
}

// beginRenderPass requests the render pass and framebuffer for a raster pass.
func (f *frame) beginRenderPass(step int, p *pass) (RenderPassBegin, error) {
	var (
		key    gpu.RenderPassKey
		views  []gpu.TextureView
		clears []gpu.ClearValue
	)
	attach := func(a attachment) gpu.Attachment {
		info := f.c.info(kindTexture, a.resource)
		flags := gpu.AttachmentActive
		if info.firstStep == step {
			flags |= gpu.AttachmentFirstPass
		}
		if info.lastStep == step {
			flags |= gpu.AttachmentLastPass
		}
		if a.clear {
			flags |= gpu.AttachmentClear
		}
		if info.external {
			flags |= gpu.AttachmentExternal
		}
		views = append(views, gpu.TextureView{Texture: info.texture, Index: a.view})
		clears = append(clears, a.clearValue)
		return gpu.Attachment{
			Format:      info.textureDesc.Format,
			SampleCount: info.textureDesc.SampleCount,
			Flags:       flags,
		}
	}
	for i, a := range p.colors {
		key.Color[i] = attach(a)
	}
	for i, a := range p.resolves {
		key.Resolve[i] = attach(a)
	}
	if p.depth != nil {
		key.Depth = attach(*p.depth)
	}

	rp, err := f.rc.Device.RequestRenderPass(key)
	if err != nil {
		return RenderPassBegin{}, fmt.Errorf("render pass: %w", err)
	}
	fb, err := f.rc.Device.CreateFramebuffer(gpu.FramebufferDesc{
		RenderPass:  rp,
		Attachments: views,
		Width:       p.target.Width,
		Height:      p.target.Height,
	})
	if err != nil {
		return RenderPassBegin{}, fmt.Errorf("framebuffer: %w", err)
	}
	f.framebuffers = append(f.framebuffers, fb)

	return RenderPassBegin{
		RenderPass:  rp,
		Framebuffer: fb,
		Width:       p.target.Width,
		Height:      p.target.Height,
		ClearValues: clears,
	}, nil
}

// flush hands every staged command buffer to its queue in schedule order.
func (f *frame) flush(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, sub := range f.staged {
		for _, w := range sub.waits {
			sub.queue.Wait(w.sem, w.stages)
		}
		sem, err := sub.queue.Submit(sub.enc)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubmission, sub.queue.Type(), err)
		}
		if sem != sub.predicted {
			return fmt.Errorf("%w: %s signalled %s, expected %s", ErrSubmission, sub.queue.Type(), sem, sub.predicted)
		}
		if sub.pass != nil {
			sub.pass.setState(PassSubmitted)
		}
	}
	logger.Debug("Frame submitted.", "submissions", len(f.staged))
	return nil
}
