package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "COLLEX_") {
			name := strings.SplitN(e, "=", 2)[0]
			old, existed := os.LookupEnv(name)
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() {
				if existed {
					_ = os.Setenv(name, old)
				}
			})
		}
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "", cfg.Home)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 20000, cfg.IndexCapacity)
	assert.Equal(t, 1, cfg.WorkerCount)
	assert.Equal(t, "onnx", cfg.EmbeddingBackend)
	assert.Equal(t, 10, cfg.Embedding.NumParallelTasks)
	assert.Equal(t, 5, cfg.Embedding.MaxRetries)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnvVars(t)

	require.NoError(t, os.Setenv("COLLEX_HOST", "127.0.0.1"))
	require.NoError(t, os.Setenv("COLLEX_PORT", "9999"))
	require.NoError(t, os.Setenv("COLLEX_EMBEDDING_BACKEND", "remote"))
	require.NoError(t, os.Setenv("COLLEX_EMBEDDING_ENDPOINT_BASE_URL", "https://api.openai.com/v1"))
	require.NoError(t, os.Setenv("COLLEX_EMBEDDING_ENDPOINT_API_KEY", "sk-test"))
	t.Cleanup(func() {
		_ = os.Unsetenv("COLLEX_HOST")
		_ = os.Unsetenv("COLLEX_PORT")
		_ = os.Unsetenv("COLLEX_EMBEDDING_BACKEND")
		_ = os.Unsetenv("COLLEX_EMBEDDING_ENDPOINT_BASE_URL")
		_ = os.Unsetenv("COLLEX_EMBEDDING_ENDPOINT_API_KEY")
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "remote", cfg.EmbeddingBackend)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestEnvConfig_ToAppConfig(t *testing.T) {
	clearEnvVars(t)
	require.NoError(t, os.Setenv("COLLEX_HOME", "/tmp/collex-env-test"))
	t.Cleanup(func() { _ = os.Unsetenv("COLLEX_HOME") })

	envCfg, err := LoadFromEnv()
	require.NoError(t, err)

	appCfg := envCfg.Normalize().ToAppConfig()

	assert.Equal(t, "/tmp/collex-env-test", appCfg.Home())
	assert.Equal(t, DefaultBatchSize, appCfg.BatchSize())
	assert.Equal(t, "onnx", appCfg.EmbeddingBackend())
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, parseLogFormat("json"))
	assert.Equal(t, LogFormatJSON, parseLogFormat("JSON"))
	assert.Equal(t, LogFormatPretty, parseLogFormat("pretty"))
	assert.Equal(t, LogFormatPretty, parseLogFormat(""))
}
