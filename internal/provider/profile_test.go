package provider

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Empty(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers configured")
}

func TestNewRegistry_DuplicateID(t *testing.T) {
	_, err := NewRegistry([]Profile{
		{ID: "anthropic", Weight: 1.0},
		{ID: "anthropic", Weight: 0.9},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestNewRegistry_NegativeWeight(t *testing.T) {
	_, err := NewRegistry([]Profile{{ID: "openai", Weight: -0.1}})
	require.Error(t, err)
}

func TestNewRegistry_AppliesDefaults(t *testing.T) {
	r, err := NewRegistry([]Profile{{ID: "google"}})
	require.NoError(t, err)

	p, ok := r.Get("google")
	require.True(t, ok)
	assert.Equal(t, 0.5, p.Weight)
	assert.Equal(t, 90*time.Second, p.Timeout)
	assert.Equal(t, 4096, p.MaxTokens)
}

func TestRegistry_PreservesOrder(t *testing.T) {
	r, err := NewRegistry([]Profile{
		{ID: "anthropic", Weight: 1.0},
		{ID: "openai", Weight: 0.9},
		{ID: "google", Weight: 0.7},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "openai", "google"}, r.IDs())
}

func TestRegistry_Weights(t *testing.T) {
	r, err := NewRegistry([]Profile{
		{ID: "anthropic", Weight: 1.0},
		{ID: "openai", Weight: 0.9},
	})
	require.NoError(t, err)

	w := r.Weights()
	assert.Equal(t, 1.0, w["anthropic"])
	assert.Equal(t, 0.9, w["openai"])
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Providers, 3)
	assert.Equal(t, DefaultThresholds(), cfg.Thresholds)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - id: anthropic
    model: claude-sonnet-4-20250514
    weight: 1.0
    timeout: 30s
    credential_env: ANTHROPIC_API_KEY
thresholds:
  similarity: 0.8
  min_agreement: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, 30*time.Second, cfg.Providers[0].Timeout)
	assert.Equal(t, 0.8, cfg.Thresholds.Similarity)
	assert.Equal(t, 3, cfg.Thresholds.MinAgreement)
	// Omitted threshold falls back to default.
	assert.Equal(t, 0.6, cfg.Thresholds.MinConfidence)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: {not a list}"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestProfile_Credential(t *testing.T) {
	t.Setenv("QUORUM_TEST_KEY", "sk-test")
	p := Profile{ID: "anthropic", CredentialEnv: "QUORUM_TEST_KEY"}
	assert.Equal(t, "sk-test", p.Credential())

	assert.Empty(t, Profile{ID: "x"}.Credential())
}
