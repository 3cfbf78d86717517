// Package config loads cortex configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nstogner/cortex/pkg/compiler"
	"github.com/nstogner/cortex/pkg/tools"
)

// Config is the full cortex configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Compiler CompilerConfig `yaml:"compiler"`
	Agent    AgentConfig    `yaml:"agent"`
	Layers   LayersConfig   `yaml:"layers"`
	Log      LogConfig      `yaml:"log"`

	// APIKey is read from GEMINI_API_KEY only.
	APIKey string `yaml:"-"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ModelConfig struct {
	Name           string `yaml:"name"`
	EmbeddingModel string `yaml:"embedding_model"`
	// EmbeddingCache bounds the memory query-embedding cache.
	EmbeddingCache int `yaml:"embedding_cache"`
}

type CompilerConfig struct {
	Instruction    string            `yaml:"instruction"`
	Modes          map[string]string `yaml:"modes"`
	RecencyWindow  int               `yaml:"recency_window"`
	ArtifactChars  int               `yaml:"artifact_chars"`
	RelevanceLimit int               `yaml:"relevance_limit"`
	FactThreshold  float64           `yaml:"fact_threshold"`
	Parallelism    int               `yaml:"parallelism"`
}

type AgentConfig struct {
	BaseTools []string `yaml:"base_tools"`
}

type LayersConfig struct {
	// Dir is watched for YAML layer definitions. Empty disables the watcher.
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "data/cortex.db"},
		Model: ModelConfig{
			Name:           "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
			EmbeddingCache: 256,
		},
		Compiler: CompilerConfig{
			Instruction:    compiler.DefaultInstruction,
			Modes:          map[string]string{},
			RecencyWindow:  compiler.DefaultRecencyWindow,
			ArtifactChars:  compiler.DefaultArtifactChars,
			RelevanceLimit: compiler.DefaultRelevanceLimit,
			FactThreshold:  compiler.DefaultFactThreshold,
		},
		Agent: AgentConfig{
			BaseTools: []string{
				tools.SystemNavigate,
				tools.TaskCreate,
				tools.TaskList,
				tools.TaskComplete,
				tools.WorkflowGenerate,
				tools.TaskStats,
				tools.MemoryRecall,
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	if v := os.Getenv("CORTEX_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CORTEX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CORTEX_MODEL"); v != "" {
		cfg.Model.Name = v
	}
}

// Validate checks the configuration for values the system cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	if c.Compiler.FactThreshold < 0 || c.Compiler.FactThreshold > 1 {
		errs = append(errs, fmt.Errorf("compiler.fact_threshold %v outside [0,1]", c.Compiler.FactThreshold))
	}
	if c.Compiler.RecencyWindow < 0 || c.Compiler.ArtifactChars < 0 {
		errs = append(errs, errors.New("compiler limits must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
