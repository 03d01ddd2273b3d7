// Package config resolves all advisor configuration from file, environment,
// and .env. The core packages never read process state; everything flows from
// here as explicit values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Paths       PathsConfig       `mapstructure:"paths"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

type PathsConfig struct {
	GraphRepo string `mapstructure:"graph_repo"`
	Docs      string `mapstructure:"docs"`
}

// RecommenderConfig carries the scoring policy. Zero values mean "use the
// built-in default" so a partial config file stays valid.
type RecommenderConfig struct {
	MaxResults          int     `mapstructure:"max_results"`
	NameWeight          float64 `mapstructure:"name_weight"`
	CategoryWeight      float64 `mapstructure:"category_weight"`
	NodeTypeWeight      float64 `mapstructure:"node_type_weight"`
	NodeTypeCap         float64 `mapstructure:"node_type_cap"`
	DocWeight           float64 `mapstructure:"doc_weight"`
	SimplicityWeight    float64 `mapstructure:"simplicity_weight"`
	SimplicityThreshold int     `mapstructure:"simplicity_threshold"`
}

type ExecutionConfig struct {
	Allow          bool   `mapstructure:"allow"`
	DynamoCLIPath  string `mapstructure:"dynamo_cli_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the execution timeout as a duration.
func (c ExecutionConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	CacheSize int    `mapstructure:"cache_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Recommender.MaxResults < 0 {
		warnings = append(warnings, fmt.Sprintf("recommender max_results %d is negative", c.Recommender.MaxResults))
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"name_weight", c.Recommender.NameWeight},
		{"category_weight", c.Recommender.CategoryWeight},
		{"node_type_weight", c.Recommender.NodeTypeWeight},
		{"doc_weight", c.Recommender.DocWeight},
		{"simplicity_weight", c.Recommender.SimplicityWeight},
	} {
		if w.value < 0 {
			warnings = append(warnings, fmt.Sprintf("recommender %s %.2f is negative", w.name, w.value))
		}
	}

	if c.Execution.Allow && c.Execution.DynamoCLIPath == "" {
		warnings = append(warnings, "execution is allowed but dynamo_cli_path is not set")
	}

	return warnings
}

// Load reads configuration from .env, config file, and environment.
// A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	// Legacy deployments keep their settings in a .env file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DYNADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		v.SetConfigName("dyn-advisor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.graph_repo", "./graphs")
	v.SetDefault("paths.docs", "./docs")
	v.SetDefault("recommender.max_results", 5)
	v.SetDefault("execution.allow", false)
	v.SetDefault("execution.timeout_seconds", 300)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cache_size", 128)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.output", "stderr")
}

// bindLegacyEnv keeps the original flat environment names working alongside
// the DYNADVISOR_ prefixed ones.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("paths.graph_repo", "DYNADVISOR_PATHS_GRAPH_REPO", "GRAPH_REPO_PATH")
	_ = v.BindEnv("paths.docs", "DYNADVISOR_PATHS_DOCS", "DOCS_PATH")
	_ = v.BindEnv("execution.allow", "DYNADVISOR_EXECUTION_ALLOW", "ALLOW_EXECUTION")
	_ = v.BindEnv("execution.dynamo_cli_path", "DYNADVISOR_EXECUTION_DYNAMO_CLI_PATH", "DYNAMO_CLI_PATH")
	_ = v.BindEnv("log.level", "DYNADVISOR_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("audit.output", "DYNADVISOR_AUDIT_OUTPUT", "LOG_FILE")
}
