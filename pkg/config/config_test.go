package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Audit.ContextRows)
	assert.Equal(t, 3000, cfg.Audit.ContextChars)
	assert.InDelta(t, 0.35, cfg.Audit.Weights.Quality, 1e-9)
	assert.InDelta(t, 0.25, cfg.Audit.Weights.Drift, 1e-9)
	assert.InDelta(t, 0.30, cfg.Audit.Weights.Hallucination, 1e-9)
	assert.InDelta(t, 0.10, cfg.Audit.Weights.Explainability, 1e-9)
	assert.Equal(t, 25, cfg.Audit.Thresholds.MinRows)
	assert.Equal(t, 50.0, cfg.Audit.Thresholds.HallucinationVeto)
	assert.Equal(t, 60.0, cfg.Audit.Thresholds.DriftCap)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
llm:
  model: local-model
  baseURL: http://localhost:11434/v1
audit:
  thresholds:
    minRows: 40
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("TRUTHLENS_LOGGING_LEVEL", "debug")

	cfg, err := LoadFrom(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 40, cfg.Audit.Thresholds.MinRows)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateWeights(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	cfg.Audit.Weights.Quality = 0.9
	assert.ErrorContains(t, cfg.Validate(), "sum to 1")

	cfg.Audit.Weights.Quality = -0.35
	assert.ErrorContains(t, cfg.Validate(), "non-negative")
}

func TestValidateBadges(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	cfg.Audit.Thresholds.ReviewScore = 90
	assert.Error(t, cfg.Validate())
}

func TestValidateMinRows(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	cfg.Audit.Thresholds.MinRows = 0
	assert.ErrorContains(t, cfg.Validate(), "minRows must be positive")
}
