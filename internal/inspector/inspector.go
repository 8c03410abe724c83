// Package inspector streams frame reports to a remote inspector over
// socket.io.
package inspector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// FrameEvent is the socket.io event every report is emitted as.
const FrameEvent = "frame"

const defaultConnectTimeout = 15 * time.Second

var ErrDisconnected = errors.New("inspector: not connected")

// Config selects the inspector endpoint.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout defaults to 15s.
	ConnectTimeout time.Duration
}

// Publisher emits frame reports. A nil *Publisher discards them, so callers
// need not check whether an inspector was configured.
type Publisher struct {
	io     *socket.Socket
	logger *slog.Logger
}

// Connect dials the inspector and waits for the socket.io handshake.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("component", "inspector", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inspector URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("inspector URL %q must be absolute", cfg.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connected <- connectError(errs)
	})

	logger.Debug("Connecting to inspector...")
	io.Connect()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("inspector connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while connecting to inspector: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s connecting to inspector", timeout)
	}

	logger.Info("Connected to inspector.", "sid", io.Id())
	return &Publisher{io: io, logger: logger}, nil
}

// connectError turns the arguments of a connect_error event into an error.
func connectError(args []any) error {
	if len(args) == 0 {
		return errors.New("connect_error")
	}
	if err, ok := args[0].(error); ok && err != nil {
		return err
	}
	return fmt.Errorf("connect_error: %v", args[0])
}

// Publish emits r as a FrameEvent.
func (p *Publisher) Publish(ctx context.Context, r *rendergraph.FrameReport) error {
	if p == nil || r == nil {
		return nil
	}
	if !p.io.Connected() {
		return ErrDisconnected
	}
	payload, err := Payload(r)
	if err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Publishing frame report.", "frame", r.FrameID)
	p.io.Emit(FrameEvent, payload)
	return nil
}

// Close disconnects from the inspector.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.logger.Debug("Disconnecting from inspector.", "sid", p.io.Id())
	p.io.Disconnect()
}

// Payload is the JSON-compatible form of r that is emitted on the wire.
// Durations are sent in milliseconds.
func Payload(r *rendergraph.FrameReport) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode frame report: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode frame report: %w", err)
	}
	out["duration_ms"] = float64(r.Duration) / float64(time.Millisecond)
	delete(out, "duration")
	return out, nil
}
