package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/fakegpu"
	"github.com/vk/rendergraph/internal/framefile"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	frame  *framefile.Frame
	device *fakegpu.Device
	queues *fakegpu.Queues

	httpServer *http.Server

	mu      sync.Mutex
	reports []*rendergraph.FrameReport
	failed  int
}

// NewApp builds the logger, loads the frame file and creates the recording
// device the frames run against.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	frame, err := framefile.Load(ctx, cfg.FramePath, cfg.Vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load frame: %w", err)
	}
	logger.Debug("Frame loaded.", "resources", len(frame.Resources), "passes", len(frame.Passes))

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		frame:  frame,
		device: fakegpu.NewDevice(),
		queues: fakegpu.NewQueues(),
	}, nil
}

// Reports returns the reports of every frame executed so far.
func (a *App) Reports() []*rendergraph.FrameReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*rendergraph.FrameReport(nil), a.reports...)
}

// Device returns the recording device. This is primarily for testing.
func (a *App) Device() *fakegpu.Device { return a.device }

// Queues returns the recording queues. This is primarily for testing.
func (a *App) Queues() *fakegpu.Queues { return a.queues }
