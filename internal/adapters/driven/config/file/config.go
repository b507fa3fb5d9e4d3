package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Default configuration values.
const (
	DefaultTick       = time.Minute
	DefaultRunTimeout = 30 * time.Minute
	DefaultStaleAfter = 24 * time.Hour
	DefaultOpsListen  = "127.0.0.1:8745"
)

// Config is the full application configuration.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Ops       OpsConfig       `toml:"ops"`
	Sources   []SourceConfig  `toml:"sources"`
}

// SchedulerConfig tunes the scheduling loop.
type SchedulerConfig struct {
	// Tick is how often due sources are checked, e.g. "1m".
	Tick string `toml:"tick"`

	// RunTimeout is how long a run may take before it is reported as
	// stuck, e.g. "30m".
	RunTimeout string `toml:"run_timeout"`

	// StaleAfter is the default staleness threshold, e.g. "24h".
	StaleAfter string `toml:"stale_after"`
}

// EmbeddingConfig points at the embedding service.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "openai" (default) or
	// "ollama" for local inference.
	Provider string `toml:"provider"`

	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// IndexConfig points at the vector index service.
type IndexConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Collection string `toml:"collection"`
}

// OpsConfig configures the operator HTTP surface.
type OpsConfig struct {
	// Listen is the bind address, e.g. "127.0.0.1:8745".
	Listen string `toml:"listen"`

	// Token is the operator credential required on every request.
	Token string `toml:"token"`
}

// SourceConfig describes one configured source.
type SourceConfig struct {
	ID   string `toml:"id"`
	Kind string `toml:"kind"`
	Name string `toml:"name"`

	// Interval between scheduled syncs, e.g. "30m".
	Interval string `toml:"interval"`

	// StaleAfter overrides the default staleness threshold, e.g. "12h".
	StaleAfter string `toml:"stale_after"`

	// MaxWindow caps a single backfill span, e.g. "720h".
	MaxWindow string `toml:"max_window"`

	// Weight boosts or dampens this source's results at retrieval time.
	Weight float64 `toml:"weight"`

	// Endpoint is the base URL of the gateway exposing this source's
	// fetch API.
	Endpoint string `toml:"endpoint"`

	// Token authenticates against the source gateway.
	Token string `toml:"token"`
}

// Load reads and validates the configuration file. If path is empty,
// defaults to ~/.recall/config.toml.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".recall", "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("source %d: %w: id is required", i, domain.ErrInvalidInput)
		}
		if seen[src.ID] {
			return fmt.Errorf("source %q: %w: duplicate id", src.ID, domain.ErrAlreadyExists)
		}
		seen[src.ID] = true
		if !domain.SourceKind(src.Kind).Valid() {
			return fmt.Errorf("source %q: %w: unknown kind %q", src.ID, domain.ErrUnsupportedKind, src.Kind)
		}
		for _, d := range []string{src.Interval, src.StaleAfter, src.MaxWindow} {
			if d == "" {
				continue
			}
			if _, err := time.ParseDuration(d); err != nil {
				return fmt.Errorf("source %q: %w: bad duration %q", src.ID, domain.ErrInvalidInput, d)
			}
		}
	}
	switch c.Embedding.Provider {
	case "", "openai", "ollama":
	default:
		return fmt.Errorf("embedding: %w: unknown provider %q", domain.ErrInvalidInput, c.Embedding.Provider)
	}
	for _, d := range []string{c.Scheduler.Tick, c.Scheduler.RunTimeout, c.Scheduler.StaleAfter} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("scheduler: %w: bad duration %q", domain.ErrInvalidInput, d)
		}
	}
	return nil
}

// DomainSources converts the configured sources to domain types.
func (c *Config) DomainSources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		sources = append(sources, domain.Source{
			ID:         src.ID,
			Kind:       domain.SourceKind(src.Kind),
			Name:       src.Name,
			Interval:   parseDuration(src.Interval),
			StaleAfter: parseDuration(src.StaleAfter),
			MaxWindow:  parseDuration(src.MaxWindow),
			Weight:     src.Weight,
			Endpoint:   src.Endpoint,
			Token:      src.Token,
		})
	}
	return sources
}

// Tick returns the scheduler tick with its default applied.
func (c *Config) Tick() time.Duration {
	if d := parseDuration(c.Scheduler.Tick); d > 0 {
		return d
	}
	return DefaultTick
}

// RunTimeout returns the run timeout with its default applied.
func (c *Config) RunTimeout() time.Duration {
	if d := parseDuration(c.Scheduler.RunTimeout); d > 0 {
		return d
	}
	return DefaultRunTimeout
}

// StaleAfter returns the default staleness threshold.
func (c *Config) StaleAfter() time.Duration {
	if d := parseDuration(c.Scheduler.StaleAfter); d > 0 {
		return d
	}
	return DefaultStaleAfter
}

// OpsListen returns the operator bind address with its default applied.
func (c *Config) OpsListen() string {
	if c.Ops.Listen != "" {
		return c.Ops.Listen
	}
	return DefaultOpsListen
}

// parseDuration is forgiving here because validate already rejected
// malformed values at load time.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
