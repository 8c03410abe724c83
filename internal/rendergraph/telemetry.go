package rendergraph

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("rendergraph")
	meter  = otel.Meter("rendergraph")
)

var (
	metricsOnce     sync.Once
	executeDuration metric.Float64Histogram
	passesTotal     metric.Int64Counter
	barriersTotal   metric.Int64Counter
	transientsTotal metric.Int64Counter
)

// initMetrics lazily creates the package instruments. Failures degrade
// observability only.
func initMetrics(logger *slog.Logger) {
	metricsOnce.Do(func() {
		var initErrors []string

		var err error
		executeDuration, err = meter.Float64Histogram("rendergraph_execute_duration_seconds",
			metric.WithDescription("Time spent compiling, recording and submitting one frame"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "execute_duration: "+err.Error())
		}

		passesTotal, err = meter.Int64Counter("rendergraph_passes_total",
			metric.WithDescription("Declared passes by scheduling outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "passes_total: "+err.Error())
		}

		barriersTotal, err = meter.Int64Counter("rendergraph_barriers_total",
			metric.WithDescription("Synchronization commands emitted by kind"),
		)
		if err != nil {
			initErrors = append(initErrors, "barriers_total: "+err.Error())
		}

		transientsTotal, err = meter.Int64Counter("rendergraph_transient_resources_total",
			metric.WithDescription("Transient resources created by kind"),
		)
		if err != nil {
			initErrors = append(initErrors, "transient_resources_total: "+err.Error())
		}

		if len(initErrors) > 0 {
			logger.Error("failed to initialize some render graph metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

func addCount(ctx context.Context, c metric.Int64Counter, n int, key, value string) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, int64(n), metric.WithAttributes(attribute.String(key, value)))
}

func recordReport(ctx context.Context, r *FrameReport) {
	addCount(ctx, passesTotal, len(r.PassOrder), "state", "scheduled")
	addCount(ctx, passesTotal, len(r.Culled), "state", "culled")
	addCount(ctx, barriersTotal, r.Barriers.PipelineBarriers, "kind", "pipeline")
	addCount(ctx, barriersTotal, r.Barriers.EventWaits, "kind", "event")
	addCount(ctx, barriersTotal, r.Barriers.SemaphoreWaits, "kind", "semaphore")
	addCount(ctx, barriersTotal, r.Barriers.LayoutTransitions, "kind", "layout")
	addCount(ctx, transientsTotal, r.TransientBuffers, "kind", "buffer")
	addCount(ctx, transientsTotal, r.TransientTextures, "kind", "texture")
}
