package config

import (
	"testing"
	"time"
)

func TestDefaultConstants(t *testing.T) {
	if DefaultWorkerCount != 1 {
		t.Errorf("DefaultWorkerCount = %v, want 1", DefaultWorkerCount)
	}
	if DefaultHost != "0.0.0.0" {
		t.Errorf("DefaultHost = %v, want '0.0.0.0'", DefaultHost)
	}
	if DefaultPort != 8080 {
		t.Errorf("DefaultPort = %v, want 8080", DefaultPort)
	}
	if DefaultLogLevel != "INFO" {
		t.Errorf("DefaultLogLevel = %v, want 'INFO'", DefaultLogLevel)
	}
	if DefaultBatchSize != 32 {
		t.Errorf("DefaultBatchSize = %v, want 32", DefaultBatchSize)
	}
	if DefaultIndexCapacity != 20000 {
		t.Errorf("DefaultIndexCapacity = %v, want 20000", DefaultIndexCapacity)
	}
	if DefaultEndpointParallelTasks != 10 {
		t.Errorf("DefaultEndpointParallelTasks = %v, want 10", DefaultEndpointParallelTasks)
	}
	if DefaultEndpointTimeout != 60*time.Second {
		t.Errorf("DefaultEndpointTimeout = %v, want 60s", DefaultEndpointTimeout)
	}
	if DefaultEndpointMaxRetries != 5 {
		t.Errorf("DefaultEndpointMaxRetries = %v, want 5", DefaultEndpointMaxRetries)
	}
}

func TestNewAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	if cfg.Host() != DefaultHost {
		t.Errorf("Host() = %v, want %v", cfg.Host(), DefaultHost)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %v, want %v", cfg.Port(), DefaultPort)
	}
	if cfg.BatchSize() != DefaultBatchSize {
		t.Errorf("BatchSize() = %v, want %v", cfg.BatchSize(), DefaultBatchSize)
	}
	if cfg.EmbeddingBackend() != "onnx" {
		t.Errorf("EmbeddingBackend() = %v, want onnx", cfg.EmbeddingBackend())
	}
	if cfg.Home() == "" {
		t.Error("Home() should not be empty")
	}
}

func TestAppConfig_Apply(t *testing.T) {
	cfg := NewAppConfigWithOptions(
		WithHost("127.0.0.1"),
		WithPort(9090),
		WithBatchSize(64),
		WithWorkerCount(4),
		WithEmbeddingBackend("remote"),
	)

	if cfg.Host() != "127.0.0.1" {
		t.Errorf("Host() = %v, want 127.0.0.1", cfg.Host())
	}
	if cfg.Port() != 9090 {
		t.Errorf("Port() = %v, want 9090", cfg.Port())
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr() = %v, want 127.0.0.1:9090", cfg.Addr())
	}
	if cfg.BatchSize() != 64 {
		t.Errorf("BatchSize() = %v, want 64", cfg.BatchSize())
	}
	if cfg.WorkerCount() != 4 {
		t.Errorf("WorkerCount() = %v, want 4", cfg.WorkerCount())
	}
	if cfg.EmbeddingBackend() != "remote" {
		t.Errorf("EmbeddingBackend() = %v, want remote", cfg.EmbeddingBackend())
	}
}

func TestAppConfig_WithBatchSize_IgnoresZero(t *testing.T) {
	cfg := NewAppConfigWithOptions(WithBatchSize(0))
	if cfg.BatchSize() != DefaultBatchSize {
		t.Errorf("BatchSize() = %v, want default %v", cfg.BatchSize(), DefaultBatchSize)
	}
}

func TestAppConfig_CollectionsAndModelsDirs(t *testing.T) {
	cfg := NewAppConfigWithOptions(WithHome("/tmp/collex-test-home"))

	if cfg.CollectionsDir() != "/tmp/collex-test-home/collections" {
		t.Errorf("CollectionsDir() = %v", cfg.CollectionsDir())
	}
	if cfg.ModelsDir() != "/tmp/collex-test-home/models" {
		t.Errorf("ModelsDir() = %v", cfg.ModelsDir())
	}
}

func TestAppConfig_LogAttrs_MasksEndpoint(t *testing.T) {
	endpoint := NewEndpointWithOptions(
		WithEndpointBaseURL("https://api.openai.com/v1"),
		WithEndpointAPIKey("sk-secret"),
	)
	cfg := NewAppConfigWithOptions(WithEmbeddingEndpoint(endpoint))

	attrs := cfg.LogAttrs()
	found := false
	for _, a := range attrs {
		if a.Key == "embedding_endpoint" {
			found = true
			if a.Value.String() == "https://api.openai.com/v1" {
				t.Error("embedding_endpoint should be masked, got raw URL")
			}
		}
	}
	if !found {
		t.Error("expected an embedding_endpoint attr")
	}
}

func TestNewEndpointWithOptions(t *testing.T) {
	e := NewEndpointWithOptions(
		WithEndpointBaseURL("http://localhost:11434"),
		WithEndpointModel("nomic-embed-text"),
		WithEndpointMaxRetries(2),
	)

	if e.BaseURL() != "http://localhost:11434" {
		t.Errorf("BaseURL() = %v", e.BaseURL())
	}
	if e.Model() != "nomic-embed-text" {
		t.Errorf("Model() = %v", e.Model())
	}
	if e.MaxRetries() != 2 {
		t.Errorf("MaxRetries() = %v, want 2", e.MaxRetries())
	}
	// untouched fields keep their defaults
	if e.NumParallelTasks() != DefaultEndpointParallelTasks {
		t.Errorf("NumParallelTasks() = %v, want default", e.NumParallelTasks())
	}
}
