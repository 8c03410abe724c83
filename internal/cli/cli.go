package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/vk/rendergraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// varsFlag collects repeated -var key=value pairs.
type varsFlag map[string]string

func (v varsFlag) String() string {
	pairs := make([]string, 0, len(v))
	for k, val := range v {
		pairs = append(pairs, k+"="+val)
	}
	return strings.Join(pairs, ",")
}

func (v varsFlag) Set(s string) error {
	key, val, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[key] = val
	return nil
}

// Parse processes command-line arguments. It returns a validated config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("rendergraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
rendergraph - compiles and executes frame graphs against a recording GPU device.

Usage:
  rendergraph [options] [FRAME_PATH]

Arguments:
  FRAME_PATH
    Path to an .hcl frame file.

Options:
`)
		flagSet.PrintDefaults()
	}

	fromFlags := app.DefaultConfig()
	vars := varsFlag{}
	var framePath, configPath string

	flagSet.StringVar(&framePath, "frame", "", "Path to the frame file.")
	flagSet.StringVar(&framePath, "f", "", "Path to the frame file (shorthand).")
	flagSet.StringVar(&configPath, "config", "", "Path to a YAML config file.")
	flagSet.IntVar(&fromFlags.Frames, "frames", fromFlags.Frames, "Number of frames to execute.")
	flagSet.BoolVar(&fromFlags.KeepGoing, "keep-going", false, "Skip failed frames instead of stopping.")
	flagSet.Var(vars, "var", "Set a frame variable as key=value. May be repeated.")
	flagSet.StringVar(&fromFlags.LogFormat, "log-format", fromFlags.LogFormat, "Log output format. Options: 'text' or 'json'.")
	flagSet.StringVar(&fromFlags.LogLevel, "log-level", fromFlags.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.IntVar(&fromFlags.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	flagSet.IntVar(&fromFlags.EventDistance, "event-distance", fromFlags.EventDistance, "Minimum pass distance for event synchronisation. -1 never uses events.")
	flagSet.StringVar(&fromFlags.UninitializedReads, "uninitialized-reads", fromFlags.UninitializedReads, "Policy for reading unwritten transients. Options: 'ignore' or 'fail'.")
	flagSet.StringVar(&fromFlags.Telemetry.TraceExporter, "trace-exporter", fromFlags.Telemetry.TraceExporter, "Trace exporter. Options: 'none', 'stdout', 'otlp'.")
	flagSet.StringVar(&fromFlags.Telemetry.MetricExporter, "metric-exporter", fromFlags.Telemetry.MetricExporter, "Metric exporter. Options: 'none', 'stdout', 'prometheus'.")
	flagSet.StringVar(&fromFlags.Telemetry.OTLPEndpoint, "otlp-endpoint", fromFlags.Telemetry.OTLPEndpoint, "OTLP gRPC collector endpoint.")
	flagSet.StringVar(&fromFlags.InspectorURL, "inspector-url", "", "socket.io endpoint that receives frame reports.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	cfg := app.DefaultConfig()
	if configPath != "" {
		loaded, err := app.LoadConfigFile(configPath, cfg)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = loaded
	}

	overrides := map[string]func(){
		"frames":              func() { cfg.Frames = fromFlags.Frames },
		"keep-going":          func() { cfg.KeepGoing = fromFlags.KeepGoing },
		"log-format":          func() { cfg.LogFormat = strings.ToLower(fromFlags.LogFormat) },
		"log-level":           func() { cfg.LogLevel = strings.ToLower(fromFlags.LogLevel) },
		"healthcheck-port":    func() { cfg.HealthcheckPort = fromFlags.HealthcheckPort },
		"event-distance":      func() { cfg.EventDistance = fromFlags.EventDistance },
		"uninitialized-reads": func() { cfg.UninitializedReads = fromFlags.UninitializedReads },
		"trace-exporter":      func() { cfg.Telemetry.TraceExporter = fromFlags.Telemetry.TraceExporter },
		"metric-exporter":     func() { cfg.Telemetry.MetricExporter = fromFlags.Telemetry.MetricExporter },
		"otlp-endpoint":       func() { cfg.Telemetry.OTLPEndpoint = fromFlags.Telemetry.OTLPEndpoint },
		"inspector-url":       func() { cfg.InspectorURL = fromFlags.InspectorURL },
	}
	flagSet.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if len(vars) > 0 {
		if cfg.Vars == nil {
			cfg.Vars = map[string]string{}
		}
		maps.Copy(cfg.Vars, vars)
	}

	switch {
	case framePath != "":
		cfg.FramePath = framePath
	case flagSet.NArg() > 0:
		cfg.FramePath = flagSet.Arg(0)
	}
	if cfg.FramePath == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return appConfig, false, nil
}
