package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ontomem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.DefaultK)
	assert.Equal(t, 16, cfg.Search.CacheSize)
	assert.Equal(t, 5, cfg.Analytics.HubCount)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 1, cfg.Embedding.Burst)
	assert.Equal(t, "knowledge.db", filepath.Base(cfg.DBPath))
	assert.Empty(t, cfg.Embedding.Provider)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/kb.db
embedding:
  provider: hash
  dims: 64
  timeout: 2s
search:
  default_k: 7
log:
  level: debug
  format: json
types:
  - name: runbook
    metadata_schema: '{"type":"object","required":["service"]}'
analytics:
  relation_weights:
    supersedes: 2
    references: 0.5
`)
	t.Setenv("ONTOMEM_SEARCH_CACHE_SIZE", "4")
	t.Setenv("ONTOMEM_DB", "/tmp/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.Search.DefaultK)
	assert.Equal(t, 4, cfg.Search.CacheSize)
	assert.Equal(t, embedding.Config{Provider: "hash", Dims: 64, Timeout: 2 * time.Second, Burst: 1}, cfg.EmbeddingProvider())

	opts, err := cfg.KBOptions(nil, nil)
	require.NoError(t, err)
	require.Len(t, opts.Types, 1)
	assert.Equal(t, model.SemanticType("runbook"), opts.Types[0].Name)
	assert.Equal(t, 2.0, opts.RelationWeights[model.RelSupersedes])
	assert.Equal(t, 7, opts.DefaultK)

	var buf bytes.Buffer
	cfg.NewLogger(&buf).Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"provider": "embedding:\n  provider: cohere\n",
		"format":   "log:\n  format: xml\n",
		"level":    "log:\n  level: loud\n",
		"weights":  "analytics:\n  relation_weights:\n    likes: 1\n",
		"type":     "types:\n  - metadata_schema: '{}'\n",
		"rate":     "embedding:\n  rate_limit: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestTypeSpecsRejectsBadSchema(t *testing.T) {
	cfg := &Config{Types: []TypeConfig{{Name: "runbook", MetadataSchema: "{not json"}}}
	_, err := cfg.TypeSpecs()
	assert.Error(t, err)
}
