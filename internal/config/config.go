// Package config loads service configuration from a YAML file overlaid
// with environment variables, following the teacher's viper-plus-YAML
// convention (internal/config/yaml_config.go in the teacher repo): a
// single typed accessor surface over a generic key/value store, with
// every recognized key documented alongside its default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every recognized key when consulting the
// environment, e.g. intent_cache_size -> CATALOGMATCH_INTENT_CACHE_SIZE.
const EnvPrefix = "CATALOGMATCH"

// Config is a typed view over the recognized keys in spec §6.3. It wraps
// a *viper.Viper so that a YAML file, environment variables, and
// in-process defaults are merged with the usual viper precedence
// (explicit Set > flag > env > config file > default).
type Config struct {
	v *viper.Viper
}

// defaults holds every recognized key and its documented default value.
var defaults = map[string]any{
	"intent_cache_size":                  10000,
	"intent_cache_ttl_days":              7,
	"score_tie_threshold":                0.05,
	"minimum_confidence":                 0.40,
	"high_confidence":                    0.75,
	"quality_sync_hour":                  6,
	"quality_sync_check_interval_hours":  1,
	"quality_cache_max_stale_hours":      25,
	"metrics_export_interval_minutes":    5,
	"metrics_batch_size":                 100,
	"metrics_max_events":                 10000,
	"feedback_cache_ttl_minutes":         5,
	"feedback_min_samples":               3,
	"rerank_spread_threshold":            0.15,
	"rerank_max_candidates":              10,
	"action_use_table_threshold":         0.70,
	"involvement_sweep_interval_minutes": 60,
}

// New builds a Config from defaults, an optional YAML file (path may be
// empty to skip), and environment variable overrides.
func New(yamlPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if yamlPath != "" {
		v.SetConfigFile(yamlPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading %s: %w", yamlPath, err)
			}
		}
	}

	return &Config{v: v}, nil
}

// NewDefault returns a Config backed only by defaults and the environment;
// useful for tests and for the in-memory fast path.
func NewDefault() *Config {
	cfg, _ := New("")
	return cfg
}

// Watch starts viper's fsnotify-backed config-file watch (spec §4.14:
// "watches... the internal/config YAML file for hot-reload") and calls
// onChange after every write. A no-op if the Config wasn't built from a
// file.
func (c *Config) Watch(onChange func()) {
	c.v.OnConfigChange(func(_ fsnotify.Event) {
		if onChange != nil {
			onChange()
		}
	})
	c.v.WatchConfig()
}

func (c *Config) IntentCacheSize() int        { return c.v.GetInt("intent_cache_size") }
func (c *Config) IntentCacheTTL() time.Duration {
	return time.Duration(c.v.GetInt("intent_cache_ttl_days")) * 24 * time.Hour
}
func (c *Config) ScoreTieThreshold() float64 { return c.v.GetFloat64("score_tie_threshold") }
func (c *Config) MinimumConfidence() float64 { return c.v.GetFloat64("minimum_confidence") }
func (c *Config) HighConfidence() float64    { return c.v.GetFloat64("high_confidence") }

func (c *Config) QualitySyncHour() int { return c.v.GetInt("quality_sync_hour") }
func (c *Config) QualitySyncCheckInterval() time.Duration {
	return time.Duration(c.v.GetInt("quality_sync_check_interval_hours")) * time.Hour
}
func (c *Config) QualityCacheMaxStale() time.Duration {
	return time.Duration(c.v.GetInt("quality_cache_max_stale_hours")) * time.Hour
}

func (c *Config) MetricsExportInterval() time.Duration {
	return time.Duration(c.v.GetInt("metrics_export_interval_minutes")) * time.Minute
}
func (c *Config) MetricsBatchSize() int  { return c.v.GetInt("metrics_batch_size") }
func (c *Config) MetricsMaxEvents() int  { return c.v.GetInt("metrics_max_events") }

func (c *Config) FeedbackCacheTTL() time.Duration {
	return time.Duration(c.v.GetInt("feedback_cache_ttl_minutes")) * time.Minute
}
func (c *Config) FeedbackMinSamples() int { return c.v.GetInt("feedback_min_samples") }

func (c *Config) RerankSpreadThreshold() float64 { return c.v.GetFloat64("rerank_spread_threshold") }
func (c *Config) RerankMaxCandidates() int       { return c.v.GetInt("rerank_max_candidates") }

func (c *Config) ActionUseTableThreshold() float64 {
	return c.v.GetFloat64("action_use_table_threshold")
}

func (c *Config) InvolvementSweepInterval() time.Duration {
	return time.Duration(c.v.GetInt("involvement_sweep_interval_minutes")) * time.Minute
}

// Get exposes the raw value for a key not covered by a typed accessor;
// prefer adding a typed accessor over calling this directly.
func (c *Config) Get(key string) any { return c.v.Get(key) }
