package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/rendergraph/internal/rendergraph"
	"github.com/vk/rendergraph/internal/telemetry"
)

// Config holds everything an App needs to run.
type Config struct {
	FramePath string            `yaml:"frame"`
	Frames    int               `yaml:"frames"`
	Vars      map[string]string `yaml:"vars"`
	KeepGoing bool              `yaml:"keep_going"`

	LogFormat       string `yaml:"log_format"`
	LogLevel        string `yaml:"log_level"`
	HealthcheckPort int    `yaml:"healthcheck_port"`

	// EventDistance is rendergraph.Options.EventDistance; -1 disables events.
	EventDistance      int    `yaml:"event_distance"`
	UninitializedReads string `yaml:"uninitialized_reads"`

	InspectorURL string           `yaml:"inspector_url"`
	Telemetry    telemetry.Config `yaml:"telemetry"`
}

// DefaultConfig is the configuration before any file or flag is applied.
func DefaultConfig() Config {
	return Config{
		Frames:             1,
		LogFormat:          "text",
		LogLevel:           "info",
		EventDistance:      rendergraph.DefaultOptions().EventDistance,
		UninitializedReads: "ignore",
		Telemetry:          telemetry.DefaultConfig(),
	}
}

func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.FramePath == "" {
		errs = append(errs, errors.New("FramePath is a required configuration field and cannot be empty"))
	}
	if cfg.Frames < 1 {
		errs = append(errs, fmt.Errorf("frames must be at least 1, got %d", cfg.Frames))
	}
	if cfg.EventDistance < -1 {
		errs = append(errs, fmt.Errorf("event distance must be -1 (never) or non-negative, got %d", cfg.EventDistance))
	}
	if _, err := parseReadPolicy(cfg.UninitializedReads); err != nil {
		errs = append(errs, err)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	if !telemetry.ValidTraceExporter(cfg.Telemetry.TraceExporter) {
		errs = append(errs, fmt.Errorf("invalid trace exporter %q", cfg.Telemetry.TraceExporter))
	}
	if !telemetry.ValidMetricExporter(cfg.Telemetry.MetricExporter) {
		errs = append(errs, fmt.Errorf("invalid metric exporter %q", cfg.Telemetry.MetricExporter))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile overlays the YAML file at path onto base. Unknown keys are
// an error.
func LoadConfigFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	cfg := base
	if err := dec.Decode(&cfg); err != nil {
		return base, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return cfg, nil
}

func parseReadPolicy(s string) (rendergraph.ReadPolicy, error) {
	switch s {
	case "ignore":
		return rendergraph.ReadIgnore, nil
	case "fail":
		return rendergraph.ReadFail, nil
	}
	return 0, fmt.Errorf("invalid uninitialized-reads policy %q: must be 'ignore' or 'fail'", s)
}

// Options converts the planner settings.
func (c *Config) Options() rendergraph.Options {
	policy, _ := parseReadPolicy(c.UninitializedReads)
	return rendergraph.Options{EventDistance: c.EventDistance, UninitializedReads: policy}
}
