package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/assay/types"
)

// DefaultInterval is the polling interval when the config omits one.
const DefaultInterval = 60 * time.Second

// DefaultGracePeriod bounds each of the two shutdown waits.
const DefaultGracePeriod = 30 * time.Second

// Config represents an assay.yaml configuration file.
type Config struct {
	// Engines is the fleet to poll (at least one required).
	Engines []types.EngineEndpoint `yaml:"engines"`
	// Reports names the report categories to collect. Empty means all.
	Reports []string `yaml:"reports"`
	// Include maps a category to entity name patterns. An entity is
	// reported only when its display name fully matches one pattern;
	// a category with no patterns reports everything.
	Include map[string][]string `yaml:"include"`
	// IgnoreInternal drops engine-internal entities from reports.
	// Defaults to true.
	IgnoreInternal *bool    `yaml:"ignore_internal,omitempty"`
	Interval       Duration `yaml:"interval"`
	// ReportDir is where CSV files and the daemon state file live.
	ReportDir   string        `yaml:"report_dir"`
	GracePeriod Duration      `yaml:"grace_period,omitempty"`
	Archive     ArchiveConfig `yaml:"archive,omitempty"`
	Adapter     AdapterConfig `yaml:"adapter,omitempty"`
}

// ArchiveConfig holds rotated-file archival settings.
type ArchiveConfig struct {
	// Backend selects the archive target. Empty disables archival;
	// "s3" is the only supported backend.
	Backend     string `yaml:"backend"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	S3PathStyle bool   `yaml:"s3_path_style,omitempty"`
}

// AdapterConfig holds downstream notification settings.
type AdapterConfig struct {
	// Type selects the adapter. Empty disables notifications;
	// "redis" and "webhook" are supported.
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the configuration and applies defaults in place.
func (c *Config) Validate() error {
	if len(c.Engines) == 0 {
		return fmt.Errorf("at least one engine is required")
	}
	seen := make(map[string]bool, len(c.Engines))
	for i := range c.Engines {
		ep := &c.Engines[i]
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("engine %q: %w", ep.Name, err)
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate engine name %q", ep.Name)
		}
		seen[ep.Name] = true
	}

	for _, name := range c.Reports {
		if _, err := types.ParseCategory(name); err != nil {
			return fmt.Errorf("reports: %w", err)
		}
	}
	for name := range c.Include {
		if _, err := types.ParseCategory(name); err != nil {
			return fmt.Errorf("include: %w", err)
		}
	}

	if c.Interval.Duration == 0 {
		c.Interval.Duration = DefaultInterval
	}
	if c.Interval.Duration < 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval.Duration)
	}
	if c.GracePeriod.Duration == 0 {
		c.GracePeriod.Duration = DefaultGracePeriod
	}
	if c.ReportDir == "" {
		c.ReportDir = "."
	}

	switch c.Archive.Backend {
	case "", "s3":
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	if c.Archive.Backend == "s3" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive backend s3 requires a bucket")
	}

	switch c.Adapter.Type {
	case "", "redis", "webhook":
	default:
		return fmt.Errorf("unknown adapter type %q", c.Adapter.Type)
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		return fmt.Errorf("adapter type %s requires a url", c.Adapter.Type)
	}

	return nil
}

// Categories resolves the configured report names. Empty config means
// every category.
func (c *Config) Categories() []types.Category {
	if len(c.Reports) == 0 {
		return types.AllCategories()
	}
	cats := make([]types.Category, 0, len(c.Reports))
	for _, name := range c.Reports {
		cat, err := types.ParseCategory(name)
		if err != nil {
			continue // rejected by Validate
		}
		cats = append(cats, cat)
	}
	return cats
}

// Includes converts the include map to category-keyed pattern lists.
func (c *Config) Includes() map[types.Category][]string {
	if len(c.Include) == 0 {
		return nil
	}
	out := make(map[types.Category][]string, len(c.Include))
	for name, patterns := range c.Include {
		cat, err := types.ParseCategory(name)
		if err != nil {
			continue // rejected by Validate
		}
		out[cat] = patterns
	}
	return out
}

// IgnoreInternalEntities reports the effective ignore_internal setting.
func (c *Config) IgnoreInternalEntities() bool {
	if c.IgnoreInternal == nil {
		return true
	}
	return *c.IgnoreInternal
}
