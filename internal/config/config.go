// Package config loads and validates tetrad configuration.
//
// Configuration is read from tetrad.toml (preferred) or tetrad.yaml in the
// working directory. Values present in the file are merged over defaults;
// anything absent keeps its default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the full tetrad configuration tree.
type Config struct {
	General   GeneralConfig             `toml:"general" yaml:"general"`
	Executors map[string]ExecutorConfig `toml:"executors" yaml:"executors"`
	Consensus ConsensusConfig           `toml:"consensus" yaml:"consensus"`
	Reasoning ReasoningConfig           `toml:"reasoning" yaml:"reasoning"`
	Cache     CacheConfig               `toml:"cache" yaml:"cache"`
}

// GeneralConfig holds process-wide options.
type GeneralConfig struct {
	LogLevel    string `toml:"log_level" yaml:"log_level"`
	LogFormat   string `toml:"log_format" yaml:"log_format"`
	TimeoutSecs int    `toml:"timeout_secs" yaml:"timeout_secs"`
}

// ExecutorConfig describes one external reviewer CLI.
type ExecutorConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled"`
	Command     string   `toml:"command" yaml:"command"`
	Args        []string `toml:"args" yaml:"args"`
	TimeoutSecs int      `toml:"timeout_secs" yaml:"timeout_secs"`
	Weight      int      `toml:"weight" yaml:"weight"`
}

// ConsensusConfig selects the voting rule and its thresholds.
type ConsensusConfig struct {
	DefaultRule string `toml:"default_rule" yaml:"default_rule"`
	MinScore    int    `toml:"min_score" yaml:"min_score"`
	MaxLoops    int    `toml:"max_loops" yaml:"max_loops"`
}

// ReasoningConfig controls the reasoning bank.
type ReasoningConfig struct {
	Enabled               bool   `toml:"enabled" yaml:"enabled"`
	DBPath                string `toml:"db_path" yaml:"db_path"`
	MaxPatternsPerQuery   int    `toml:"max_patterns_per_query" yaml:"max_patterns_per_query"`
	ConsolidationInterval int    `toml:"consolidation_interval" yaml:"consolidation_interval"`
}

// CacheConfig controls the evaluation result cache.
type CacheConfig struct {
	Enabled  bool `toml:"enabled" yaml:"enabled"`
	Capacity int  `toml:"capacity" yaml:"capacity"`
	TTLSecs  int  `toml:"ttl_secs" yaml:"ttl_secs"`
}

// Reviewer names. Executor config keys must come from this set.
const (
	ReviewerCodex  = "codex"
	ReviewerGemini = "gemini"
	ReviewerQwen   = "qwen"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:    "info",
			LogFormat:   "text",
			TimeoutSecs: 60,
		},
		Executors: map[string]ExecutorConfig{
			ReviewerCodex: {
				Enabled:     true,
				Command:     "codex",
				Args:        []string{"exec", "--json"},
				TimeoutSecs: 30,
				Weight:      5,
			},
			ReviewerGemini: {
				Enabled:     true,
				Command:     "gemini",
				Args:        []string{"-o", "json"},
				TimeoutSecs: 30,
				Weight:      5,
			},
			ReviewerQwen: {
				Enabled:     true,
				Command:     "qwen",
				Args:        []string{},
				TimeoutSecs: 30,
				Weight:      5,
			},
		},
		Consensus: ConsensusConfig{
			DefaultRule: "strong",
			MinScore:    70,
			MaxLoops:    3,
		},
		Reasoning: ReasoningConfig{
			Enabled:               true,
			DBPath:                filepath.Join(".tetrad", "tetrad.db"),
			MaxPatternsPerQuery:   10,
			ConsolidationInterval: 100,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTLSecs:  300,
		},
	}
}

// LoadConfig reads the config file at path and merges it over defaults.
// A ".toml" suffix selects TOML decoding; ".yaml"/".yml" selects YAML.
// A missing file returns pure defaults without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	loaded := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, loaded); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, loaded); err != nil {
			return nil, fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	}

	mergeConfig(cfg, loaded)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover looks for tetrad.toml then tetrad.yaml in dir and loads the
// first that exists. With neither present it returns defaults.
func Discover(dir string) (*Config, error) {
	for _, name := range []string{"tetrad.toml", "tetrad.yaml", "tetrad.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}
	return DefaultConfig(), nil
}

// fileConfig mirrors Config with pointer fields so we can tell "absent"
// from "zero" when merging over defaults.
type fileConfig struct {
	General *struct {
		LogLevel    *string `toml:"log_level" yaml:"log_level"`
		LogFormat   *string `toml:"log_format" yaml:"log_format"`
		TimeoutSecs *int    `toml:"timeout_secs" yaml:"timeout_secs"`
	} `toml:"general" yaml:"general"`
	Executors map[string]struct {
		Enabled     *bool     `toml:"enabled" yaml:"enabled"`
		Command     *string   `toml:"command" yaml:"command"`
		Args        *[]string `toml:"args" yaml:"args"`
		TimeoutSecs *int      `toml:"timeout_secs" yaml:"timeout_secs"`
		Weight      *int      `toml:"weight" yaml:"weight"`
	} `toml:"executors" yaml:"executors"`
	Consensus *struct {
		DefaultRule *string `toml:"default_rule" yaml:"default_rule"`
		MinScore    *int    `toml:"min_score" yaml:"min_score"`
		MaxLoops    *int    `toml:"max_loops" yaml:"max_loops"`
	} `toml:"consensus" yaml:"consensus"`
	Reasoning *struct {
		Enabled               *bool   `toml:"enabled" yaml:"enabled"`
		DBPath                *string `toml:"db_path" yaml:"db_path"`
		MaxPatternsPerQuery   *int    `toml:"max_patterns_per_query" yaml:"max_patterns_per_query"`
		ConsolidationInterval *int    `toml:"consolidation_interval" yaml:"consolidation_interval"`
	} `toml:"reasoning" yaml:"reasoning"`
	Cache *struct {
		Enabled  *bool `toml:"enabled" yaml:"enabled"`
		Capacity *int  `toml:"capacity" yaml:"capacity"`
		TTLSecs  *int  `toml:"ttl_secs" yaml:"ttl_secs"`
	} `toml:"cache" yaml:"cache"`
}

func mergeConfig(cfg *Config, loaded *fileConfig) {
	if g := loaded.General; g != nil {
		if g.LogLevel != nil {
			cfg.General.LogLevel = *g.LogLevel
		}
		if g.LogFormat != nil {
			cfg.General.LogFormat = *g.LogFormat
		}
		if g.TimeoutSecs != nil {
			cfg.General.TimeoutSecs = *g.TimeoutSecs
		}
	}
	for name, e := range loaded.Executors {
		base, ok := cfg.Executors[name]
		if !ok {
			base = ExecutorConfig{Enabled: true, TimeoutSecs: 30, Weight: 5}
		}
		if e.Enabled != nil {
			base.Enabled = *e.Enabled
		}
		if e.Command != nil {
			base.Command = *e.Command
		}
		if e.Args != nil {
			base.Args = *e.Args
		}
		if e.TimeoutSecs != nil {
			base.TimeoutSecs = *e.TimeoutSecs
		}
		if e.Weight != nil {
			base.Weight = *e.Weight
		}
		cfg.Executors[name] = base
	}
	if c := loaded.Consensus; c != nil {
		if c.DefaultRule != nil {
			cfg.Consensus.DefaultRule = *c.DefaultRule
		}
		if c.MinScore != nil {
			cfg.Consensus.MinScore = *c.MinScore
		}
		if c.MaxLoops != nil {
			cfg.Consensus.MaxLoops = *c.MaxLoops
		}
	}
	if r := loaded.Reasoning; r != nil {
		if r.Enabled != nil {
			cfg.Reasoning.Enabled = *r.Enabled
		}
		if r.DBPath != nil {
			cfg.Reasoning.DBPath = *r.DBPath
		}
		if r.MaxPatternsPerQuery != nil {
			cfg.Reasoning.MaxPatternsPerQuery = *r.MaxPatternsPerQuery
		}
		if r.ConsolidationInterval != nil {
			cfg.Reasoning.ConsolidationInterval = *r.ConsolidationInterval
		}
	}
	if c := loaded.Cache; c != nil {
		if c.Enabled != nil {
			cfg.Cache.Enabled = *c.Enabled
		}
		if c.Capacity != nil {
			cfg.Cache.Capacity = *c.Capacity
		}
		if c.TTLSecs != nil {
			cfg.Cache.TTLSecs = *c.TTLSecs
		}
	}
}

// Validate checks configuration constraints.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.General.LogLevel)] {
		return fmt.Errorf("invalid log_level %q: must be one of trace, debug, info, warn, error", c.General.LogLevel)
	}

	switch c.General.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be \"text\" or \"json\"", c.General.LogFormat)
	}

	switch c.Consensus.DefaultRule {
	case "golden", "strong", "weak":
	default:
		return fmt.Errorf("invalid consensus rule %q: must be golden, strong, or weak", c.Consensus.DefaultRule)
	}

	if c.Consensus.MinScore < 0 || c.Consensus.MinScore > 100 {
		return fmt.Errorf("min_score %d out of range [0,100]", c.Consensus.MinScore)
	}
	if c.Consensus.MaxLoops < 1 {
		return fmt.Errorf("max_loops must be at least 1, got %d", c.Consensus.MaxLoops)
	}

	for name, exec := range c.Executors {
		if exec.Enabled && exec.Command == "" {
			return fmt.Errorf("executor %s is enabled but has no command", name)
		}
		if exec.TimeoutSecs < 1 {
			return fmt.Errorf("executor %s timeout_secs must be positive, got %d", name, exec.TimeoutSecs)
		}
	}

	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.Enabled && c.Cache.TTLSecs < 1 {
		return fmt.Errorf("cache ttl_secs must be positive, got %d", c.Cache.TTLSecs)
	}

	if c.Reasoning.Enabled && c.Reasoning.DBPath == "" {
		return fmt.Errorf("reasoning is enabled but db_path is empty")
	}
	if c.Reasoning.MaxPatternsPerQuery < 1 {
		return fmt.Errorf("max_patterns_per_query must be positive, got %d", c.Reasoning.MaxPatternsPerQuery)
	}

	return nil
}
