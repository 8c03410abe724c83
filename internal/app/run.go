package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/inspector"
	"github.com/vk/rendergraph/internal/rendergraph"
	"github.com/vk/rendergraph/internal/telemetry"
)

// Run executes the configured number of frames. The health check server, if
// enabled, runs alongside the frame loop and is shut down once it finishes.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Info("🚀 Starting frame loop.", "frame", a.config.FramePath, "frames", a.config.Frames)

	telCfg := a.config.Telemetry
	if telCfg.Output == nil {
		telCfg.Output = a.outW
	}
	shutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("Telemetry shutdown failed.", "error", err)
		}
	}()

	var pub *inspector.Publisher
	if a.config.InspectorURL != "" {
		pub, err = inspector.Connect(ctx, inspector.Config{URL: a.config.InspectorURL})
		if err != nil {
			return fmt.Errorf("failed to connect to inspector: %w", err)
		}
		defer pub.Close()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if a.config.HealthcheckPort > 0 {
		srv := a.newHealthcheckServer(a.config.HealthcheckPort)
		eg.Go(func() error { return a.serveHealthcheck(srv) })
	}
	eg.Go(func() error {
		defer a.closeHealthCheckServer(egCtx)
		return a.runFrames(egCtx, pub)
	})

	if err := eg.Wait(); err != nil {
		a.logger.Error("Frame loop finished with error.", "error", err)
		return err
	}
	a.logger.Info("✅ Frame loop completed successfully.", "frames", len(a.Reports()))
	return nil
}

func (a *App) runFrames(ctx context.Context, pub *inspector.Publisher) error {
	rc := rendergraph.Context{Device: a.device, Queues: a.queues, Options: a.config.Options()}

	for i := range a.config.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		frameCtx := ctxlog.With(ctx, "frame_index", i)
		logger := ctxlog.FromContext(frameCtx)

		report, err := a.runFrame(frameCtx, rc)
		if err != nil {
			a.mu.Lock()
			a.failed++
			a.mu.Unlock()
			if !a.config.KeepGoing {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			logger.Warn("Frame failed; skipping.", "error", err)
			continue
		}

		a.mu.Lock()
		a.reports = append(a.reports, report)
		a.mu.Unlock()

		logger.Debug("Frame report.",
			"frame_id", report.FrameID,
			"order", report.PassOrder,
			"culled", report.Culled,
			"transient_buffers", report.TransientBuffers,
			"transient_textures", report.TransientTextures,
			"submissions", report.Submissions,
		)
		if err := pub.Publish(frameCtx, report); err != nil {
			logger.Warn("Failed to publish frame report.", "error", err)
		}
	}
	return nil
}

func (a *App) runFrame(ctx context.Context, rc rendergraph.Context) (*rendergraph.FrameReport, error) {
	g := rendergraph.New()
	if err := a.frame.Declare(g, a.device); err != nil {
		return nil, err
	}
	return rendergraph.Execute(ctx, rc, g)
}
