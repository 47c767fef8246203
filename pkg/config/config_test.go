package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineConfigDefaultsValidate(t *testing.T) {
	var cfg EngineConfig
	cfg.LLM.FallbackChain = []LLMBackendConfig{{Type: "mock", Model: "test"}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.VectorIndex.Provider)
	assert.Equal(t, 512, cfg.VectorIndex.Dimension)
	assert.Equal(t, 512, cfg.Embedder.Dimension)
}

func TestEngineConfigRejectsMismatchedDimensions(t *testing.T) {
	cfg := EngineConfig{
		VectorIndex: VectorIndexConfig{Provider: "memory", Dimension: 512},
		Embedder: EmbedderConfig{Dimension: 256},
		LLM: LLMConfig{FallbackChain: []LLMBackendConfig{{Type: "mock", Model: "test"}}},
	}
	cfg.Gating.SetDefaults()
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestVectorIndexConfigRequiresHostForRemoteProviders(t *testing.T) {
	cfg := VectorIndexConfig{Provider: "qdrant", Dimension: 512}
	err := cfg.Validate()
	assert.Error(t, err)

	cfg.Host = "localhost"
	assert.NoError(t, cfg.Validate())
}

func TestVectorIndexConfigUnknownProvider(t *testing.T) {
	cfg := VectorIndexConfig{Provider: "milvus", Dimension: 512}
	assert.Error(t, cfg.Validate())
}

func TestLLMConfigRequiresNonEmptyChain(t *testing.T) {
	cfg := LLMConfig{}
	assert.Error(t, cfg.Validate())
}

func TestLLMConfigRejectsUnknownBackendType(t *testing.T) {
	cfg := LLMConfig{FallbackChain: []LLMBackendConfig{{Type: "carrier-pigeon", Model: "x"}}}
	assert.Error(t, cfg.Validate())
}

func TestLLMConfigSetDefaultsFillsWindow(t *testing.T) {
	cfg := LLMConfig{FallbackChain: []LLMBackendConfig{{Type: "mock", Model: "x"}}}
	cfg.SetDefaults()
	assert.Equal(t, 4000, cfg.FallbackChain[0].Window)
}

func TestGatingConfigDefaultsAndValidate(t *testing.T) {
	var cfg GatingConfig
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.52, cfg.StrictModeMinSimilarity)
	assert.Equal(t, 0.35, cfg.LenientMinSimilarity)
}
