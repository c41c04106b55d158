package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mentorstream/internal/domain"
)

// Config is the top-level service configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Cache     CacheConfig     `yaml:"cache"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Queue     QueueConfig     `yaml:"queue"`
	Sanitizer SanitizerConfig `yaml:"sanitizer"`
	Cost      CostConfig      `yaml:"cost"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// SourceConfig configures the upstream generation-service client.
type SourceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"` // may be "enc:" prefixed
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RequestsPerMin float64       `yaml:"requests_per_min"`
	BurstSize      int           `yaml:"burst_size"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the source circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend  string        `yaml:"backend"`        // "memory" or "sqlite"
	Path     string        `yaml:"path"`           // sqlite database path
	TTL      time.Duration `yaml:"ttl"`            // 0 = no expiry
	SweepTab string        `yaml:"sweep_schedule"` // cron spec for the janitor
}

// GatewayConfig configures the WebSocket/HTTP gateway.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Token   string `yaml:"token"` // may be "enc:" prefixed; empty disables auth
}

// QueueConfig configures the NATS job intake.
type QueueConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Group   string `yaml:"group"`
}

// SanitizerConfig is the sanitizer policy surface. Empty slices/maps mean
// "use built-in defaults"; explicit values replace them.
type SanitizerConfig struct {
	AllowedTags       []string            `yaml:"allowed_tags"`
	AllowedAttrs      map[string][]string `yaml:"allowed_attrs"`
	ClassMap          map[string]string   `yaml:"class_map"`
	InjectClasses     bool                `yaml:"inject_classes"`
	WrapperClass      string              `yaml:"wrapper_class"`
	Wrap              bool                `yaml:"wrap"`
	DiagramContainer  string              `yaml:"diagram_container_class"`
	DiagramSource     string              `yaml:"diagram_source_class"`
	HideDiagramSource bool                `yaml:"hide_diagram_source"`
}

// CostConfig configures completion cost estimation.
type CostConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Encoding string  `yaml:"encoding"`   // tiktoken encoding name
	USDPer1K float64 `yaml:"usd_per_1k"` // output-token price
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// TracerConfig configures OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Load reads, decrypts, and validates a config file. The passphrase is only
// consulted when the file contains "enc:" values; pass "" otherwise.
func Load(path, passphrase string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigLoad, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfigLoad, path, err)
	}

	if err := cfg.decryptSecrets(passphrase); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with usable defaults.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        "http://localhost:8100",
			RequestTimeout: 120 * time.Second,
			RequestsPerMin: 60,
			BurstSize:      10,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      24 * time.Hour,
			SweepTab: "@every 10m",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		Queue: QueueConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "content.generate",
			Group:   "contentd",
		},
		Sanitizer: SanitizerConfig{
			InjectClasses:     true,
			Wrap:              true,
			WrapperClass:      "generated-content",
			DiagramContainer:  "diagram-figure",
			DiagramSource:     "diagram-source",
			HideDiagramSource: true,
		},
		Cost: CostConfig{
			Encoding: "cl100k_base",
			USDPer1K: 0.002,
		},
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Exporter: "noop"},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("%w: cache.path required for sqlite backend", domain.ErrConfigLoad)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", domain.ErrConfigLoad, c.Cache.Backend)
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("%w: source.base_url is required", domain.ErrConfigLoad)
	}
	if c.Queue.Enabled && c.Queue.Subject == "" {
		return fmt.Errorf("%w: queue.subject required when queue enabled", domain.ErrConfigLoad)
	}
	return nil
}

// decryptSecrets resolves "enc:" prefixed values in place.
func (c *Config) decryptSecrets(passphrase string) error {
	fields := []*string{&c.Source.APIKey, &c.Gateway.Token}
	for _, f := range fields {
		if !strings.HasPrefix(*f, "enc:") {
			continue
		}
		if passphrase == "" {
			return fmt.Errorf("%w: encrypted value present but no passphrase given", domain.ErrConfigLoad)
		}
		plain, err := DecryptValue(strings.TrimPrefix(*f, "enc:"), passphrase)
		if err != nil {
			return err
		}
		*f = plain
	}
	return nil
}
