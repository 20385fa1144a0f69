package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EndpointEnv mirrors Endpoint's fields for environment binding.
type EndpointEnv struct {
	BaseURL          string        `envconfig:"BASE_URL"`
	Model            string        `envconfig:"MODEL"`
	APIKey           string        `envconfig:"API_KEY"`
	NumParallelTasks int           `envconfig:"NUM_PARALLEL_TASKS" default:"10"`
	Timeout          time.Duration `envconfig:"TIMEOUT" default:"60s"`
	MaxRetries       int           `envconfig:"MAX_RETRIES" default:"5"`
}

// EnvConfig is the environment-variable binding for AppConfig, processed
// via envconfig with the COLLEX_ prefix (e.g. COLLEX_HOME, COLLEX_HOST).
// envconfig falls back to a tagged field's unprefixed name (e.g. HOST) when
// the prefixed variable is unset; Home carries no tag, so it is read from
// COLLEX_HOME only and never from $HOME.
type EnvConfig struct {
	Host             string      `envconfig:"HOST" default:"0.0.0.0"`
	Port             int         `envconfig:"PORT" default:"8080"`
	Home             string
	LogLevel         string      `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat        string      `envconfig:"LOG_FORMAT" default:"pretty"`
	BatchSize        int         `envconfig:"BATCH_SIZE" default:"32"`
	IndexCapacity    int         `envconfig:"INDEX_CAPACITY" default:"20000"`
	WorkerCount      int         `envconfig:"WORKER_COUNT" default:"1"`
	EmbeddingBackend string      `envconfig:"EMBEDDING_BACKEND" default:"onnx"`
	Embedding        EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`
}

// LoadFromEnv loads an EnvConfig using the COLLEX_ prefix.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix("COLLEX")
}

// LoadFromEnvWithPrefix loads an EnvConfig using the given prefix.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("process env config: %w", err)
	}
	return cfg, nil
}

// Normalize is a pass-through hook kept for symmetry with the config
// loading pipeline (case normalization, trimming) — currently a no-op.
func (e EnvConfig) Normalize() EnvConfig {
	return e
}

// ToAppConfig converts the environment-bound config into an AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	var opts []AppConfigOption
	opts = append(opts, WithHost(e.Host))
	opts = append(opts, WithPort(e.Port))
	if e.Home != "" {
		opts = append(opts, WithHome(e.Home))
	}
	opts = append(opts, WithLogLevel(e.LogLevel))
	opts = append(opts, WithLogFormat(parseLogFormat(e.LogFormat)))
	opts = append(opts, WithBatchSize(e.BatchSize))
	opts = append(opts, WithIndexCapacity(e.IndexCapacity))
	opts = append(opts, WithWorkerCount(e.WorkerCount))
	opts = append(opts, WithEmbeddingBackend(e.EmbeddingBackend))

	endpoint := NewEndpointWithOptions(
		WithEndpointBaseURL(e.Embedding.BaseURL),
		WithEndpointModel(e.Embedding.Model),
		WithEndpointAPIKey(e.Embedding.APIKey),
		WithEndpointParallelTasks(e.Embedding.NumParallelTasks),
		WithEndpointTimeout(e.Embedding.Timeout),
		WithEndpointMaxRetries(e.Embedding.MaxRetries),
	)
	opts = append(opts, WithEmbeddingEndpoint(endpoint))

	return cfg.Apply(opts...)
}

func parseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, "json") {
		return LogFormatJSON
	}
	return LogFormatPretty
}
