package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[graph]
uri = "bolt://graph:7687"

[retrieval]
max_results = 0
max_depth = 3

[prompts.templates]
biomarker = "B {question} {context}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Graph.URI)
	assert.Equal(t, "neo4j", cfg.Graph.User)
	assert.Equal(t, 0, cfg.Retrieval.MaxResults)
	assert.Equal(t, 3, cfg.Retrieval.MaxDepth)
	assert.Equal(t, "B {question} {context}", cfg.Prompts.Templates["biomarker"])
	assert.Contains(t, cfg.Prompts.Templates, "default")
	assert.Equal(t, DefaultSystemPrompt, cfg.Prompts.System)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "openai"
model = "gpt-4o-mini"
`)
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("LLM_MAX_ATTEMPTS", "5")
	t.Setenv("GRAPH_RAG_REQUEST_TIMEOUT_MS", "200000")
	t.Setenv("GRAPH_RAG_MAX_HOPS", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.LLM.MaxAttempts)
	assert.Equal(t, 200*time.Second, cfg.Server.RequestTimeout())
	assert.Equal(t, 1, cfg.Retrieval.MaxDepth)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 10*time.Second, cfg.Graph.QueryTimeout())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "[graph\nuri=")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse TOML")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Retrieval.MaxResults = -1
	cfg.Context.Unit = "words"
	cfg.LLM.MaxAttempts = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_results")
	assert.Contains(t, err.Error(), "context.unit")
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestValidate_RequestTimeoutCoversRetries(t *testing.T) {
	cfg := Default()
	assert.LessOrEqual(t, cfg.LLM.RetryBudget(), cfg.Server.RequestTimeout())

	cfg.LLM.TimeoutMS = 60000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout_ms")

	cfg.Server.RequestTimeoutMS = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.toml"))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.LLM.RetryBudget(), cfg.Server.RequestTimeout())
}
