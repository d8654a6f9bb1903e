// Package coreconfig loads the open-time options (path, max_size_mb,
// cache_bytes) plus the ambient knobs the background workers need, from
// a YAML file or directly from an Options literal, so the same type
// serves both the CLI and embedders.
package coreconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Options configures Open for pkg/coredb.
type Options struct {
	// Path is the database directory. Required.
	Path string `yaml:"path"`
	// MaxSizeMB bounds the backend file size. Zero means unbounded.
	MaxSizeMB int `yaml:"max_size_mb"`
	// CacheBytes is validated and passed through to the backend options;
	// no component reads it, and the LSM-tree keeps no node cache.
	CacheBytes int `yaml:"cache_bytes"`

	// LogLevel and LogJSON configure pkg/corelog.
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// GCInterval paces the background collector; zero selects its
	// built-in default.
	GCInterval time.Duration `yaml:"gc_interval"`
	// GCFanoutPerStep bounds how many resources a single GC cycle loads
	// while following resource-to-resource references (key/value pairs
	// are always scanned in full); zero selects its built-in default.
	GCFanoutPerStep int `yaml:"gc_fanout_per_step"`

	// CompactionThreshold is the estimated-size budget, in bytes, above
	// which an LSM node is stowed on Compact; zero selects
	// lsm.DefaultCompactionThreshold.
	CompactionThreshold int `yaml:"compaction_threshold"`
}

// Load reads and parses a YAML options file at path.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("coreconfig: failed to read %s: %w", path, err)
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("coreconfig: failed to parse %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks that Options carries a usable configuration.
func (o Options) Validate() error {
	if o.Path == "" {
		return fmt.Errorf("coreconfig: path is required")
	}
	if o.MaxSizeMB < 0 {
		return fmt.Errorf("coreconfig: max_size_mb must not be negative")
	}
	if o.CacheBytes < 0 {
		return fmt.Errorf("coreconfig: cache_bytes must not be negative")
	}
	return nil
}
