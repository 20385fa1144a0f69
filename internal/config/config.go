// Package config provides application configuration for collex.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultWorkerCount           = 1
	DefaultBatchSize             = 32
	DefaultIndexCapacity         = 20000
	DefaultSearchLimit           = 10
	DefaultEndpointParallelTasks = 10
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxBatchChars = 16000
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures the remote embedding backend's connection to an
// OpenAI-embeddings-API-compatible service.
type Endpoint struct {
	baseURL          string
	model            string
	apiKey           string
	numParallelTasks int
	timeout          time.Duration
	maxRetries       int
	initialDelay     time.Duration
	backoffFactor    float64
	maxBatchChars    int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		numParallelTasks: DefaultEndpointParallelTasks,
		timeout:          DefaultEndpointTimeout,
		maxRetries:       DefaultEndpointMaxRetries,
		initialDelay:     DefaultEndpointInitialDelay,
		backoffFactor:    DefaultEndpointBackoffFactor,
		maxBatchChars:    DefaultEndpointMaxBatchChars,
	}
}

func (e Endpoint) BaseURL() string             { return e.baseURL }
func (e Endpoint) Model() string               { return e.model }
func (e Endpoint) APIKey() string              { return e.apiKey }
func (e Endpoint) NumParallelTasks() int        { return e.numParallelTasks }
func (e Endpoint) Timeout() time.Duration       { return e.timeout }
func (e Endpoint) MaxRetries() int              { return e.maxRetries }
func (e Endpoint) InitialDelay() time.Duration  { return e.initialDelay }
func (e Endpoint) BackoffFactor() float64       { return e.backoffFactor }
func (e Endpoint) MaxBatchChars() int           { return e.maxBatchChars }

// EndpointOption configures an Endpoint.
type EndpointOption func(Endpoint) Endpoint

func WithEndpointBaseURL(url string) EndpointOption {
	return func(e Endpoint) Endpoint { e.baseURL = url; return e }
}

func WithEndpointModel(model string) EndpointOption {
	return func(e Endpoint) Endpoint { e.model = model; return e }
}

func WithEndpointAPIKey(key string) EndpointOption {
	return func(e Endpoint) Endpoint { e.apiKey = key; return e }
}

func WithEndpointParallelTasks(n int) EndpointOption {
	return func(e Endpoint) Endpoint { e.numParallelTasks = n; return e }
}

func WithEndpointTimeout(d time.Duration) EndpointOption {
	return func(e Endpoint) Endpoint { e.timeout = d; return e }
}

func WithEndpointMaxRetries(n int) EndpointOption {
	return func(e Endpoint) Endpoint { e.maxRetries = n; return e }
}

// NewEndpointWithOptions builds an Endpoint from defaults plus options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		e = opt(e)
	}
	return e
}

// AppConfig is the immutable, functional-options configuration for the
// collex process (CLI or server).
type AppConfig struct {
	host               string
	port               int
	home               string
	logLevel           string
	logFormat          LogFormat
	batchSize          int
	indexCapacity      int
	searchLimit        int
	workerCount        int
	embeddingBackend   string
	embeddingEndpoint  Endpoint
	skipModelPreload   bool
}

// NewAppConfig returns an AppConfig populated with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:             DefaultHost,
		port:             DefaultPort,
		home:             DefaultHome(),
		logLevel:         DefaultLogLevel,
		logFormat:        LogFormatPretty,
		batchSize:        DefaultBatchSize,
		indexCapacity:    DefaultIndexCapacity,
		searchLimit:      DefaultSearchLimit,
		workerCount:      DefaultWorkerCount,
		embeddingBackend: "onnx",
		embeddingEndpoint: NewEndpoint(),
	}
}

func (c AppConfig) Host() string              { return c.host }
func (c AppConfig) Port() int                 { return c.port }
func (c AppConfig) Addr() string              { return fmt.Sprintf("%s:%d", c.host, c.port) }
func (c AppConfig) Home() string              { return c.home }
func (c AppConfig) LogLevel() string          { return c.logLevel }
func (c AppConfig) LogFormat() LogFormat      { return c.logFormat }
func (c AppConfig) BatchSize() int            { return c.batchSize }
func (c AppConfig) IndexCapacity() int        { return c.indexCapacity }
func (c AppConfig) SearchLimit() int          { return c.searchLimit }
func (c AppConfig) WorkerCount() int          { return c.workerCount }
func (c AppConfig) EmbeddingBackend() string  { return c.embeddingBackend }
func (c AppConfig) EmbeddingEndpoint() Endpoint { return c.embeddingEndpoint }
func (c AppConfig) SkipModelPreload() bool    { return c.skipModelPreload }

// CollectionsDir returns the directory under Home holding collections.
func (c AppConfig) CollectionsDir() string {
	return filepath.Join(c.home, "collections")
}

// ModelsDir returns the directory under Home holding the local model cache.
func (c AppConfig) ModelsDir() string {
	return filepath.Join(c.home, "models")
}

// EnsureHome creates the home directory (and its collections/models
// subdirectories) if they do not already exist.
func (c AppConfig) EnsureHome() error {
	for _, dir := range []string{c.home, c.CollectionsDir(), c.ModelsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultHome returns the default value for Home: "$HOME/.collex" if HOME
// resolves, otherwise ".collex" relative to the working directory.
func DefaultHome() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".collex")
	}
	return ".collex"
}

// AppConfigOption mutates an AppConfig, functional-options style.
type AppConfigOption func(AppConfig) AppConfig

func WithHost(host string) AppConfigOption {
	return func(c AppConfig) AppConfig { c.host = host; return c }
}

func WithPort(port int) AppConfigOption {
	return func(c AppConfig) AppConfig { c.port = port; return c }
}

func WithHome(home string) AppConfigOption {
	return func(c AppConfig) AppConfig { c.home = home; return c }
}

func WithLogLevel(level string) AppConfigOption {
	return func(c AppConfig) AppConfig { c.logLevel = level; return c }
}

func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c AppConfig) AppConfig { c.logFormat = format; return c }
}

func WithBatchSize(n int) AppConfigOption {
	return func(c AppConfig) AppConfig {
		if n > 0 {
			c.batchSize = n
		}
		return c
	}
}

func WithIndexCapacity(n int) AppConfigOption {
	return func(c AppConfig) AppConfig {
		if n > 0 {
			c.indexCapacity = n
		}
		return c
	}
}

func WithWorkerCount(n int) AppConfigOption {
	return func(c AppConfig) AppConfig {
		if n > 0 {
			c.workerCount = n
		}
		return c
	}
}

func WithEmbeddingBackend(backend string) AppConfigOption {
	return func(c AppConfig) AppConfig {
		if backend != "" {
			c.embeddingBackend = backend
		}
		return c
	}
}

func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c AppConfig) AppConfig { c.embeddingEndpoint = e; return c }
}

func WithSkipModelPreload() AppConfigOption {
	return func(c AppConfig) AppConfig { c.skipModelPreload = true; return c }
}

// NewAppConfigWithOptions builds an AppConfig from defaults plus options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a new AppConfig with opts applied on top of c.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		c = opt(c)
	}
	return c
}

// LogAttrs returns slog attributes describing the configuration, with
// secrets masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("home", c.home),
		slog.String("log_level", c.logLevel),
		slog.String("log_format", string(c.logFormat)),
		slog.Int("batch_size", c.batchSize),
		slog.Int("worker_count", c.workerCount),
		slog.String("embedding_backend", c.embeddingBackend),
		slog.String("embedding_endpoint", maskedURL(c.embeddingEndpoint.BaseURL())),
	}
}

func maskedURL(u string) string {
	if u == "" {
		return ""
	}
	if i := strings.Index(u, "://"); i >= 0 {
		return u[:i+3] + "***"
	}
	return "***"
}
