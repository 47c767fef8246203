// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the engine's YAML-driven configuration, with
// each section exposing its own SetDefaults/Validate pair rather than
// one monolithic validator.
package config

import "fmt"

// VectorIndexConfig configures the C2 backend.
//
// Example:
//
//	vector_index:
//	 provider: memory
//	 dimension: 512
type VectorIndexConfig struct {
	Provider string `yaml:"provider"`
	Dimension int `yaml:"dimension"`

	// Backend-specific connection settings, used only when Provider is
	// one of chromem/qdrant/pinecone.
	Path string `yaml:"path,omitempty"`
	Host string `yaml:"host,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// SetDefaults fills unset fields with the engine's defaults.
func (c *VectorIndexConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "memory"
	}
	if c.Dimension <= 0 {
		c.Dimension = 512
	}
}

// Validate checks the config is internally consistent.
func (c *VectorIndexConfig) Validate() error {
	switch c.Provider {
	case "memory", "chromem":
	case "qdrant", "pinecone":
		if c.Host == "" {
			return fmt.Errorf("vector_index: provider %q requires host", c.Provider)
		}
	default:
		return fmt.Errorf("vector_index: unknown provider %q", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("vector_index: dimension must be positive")
	}
	return nil
}

// EmbedderConfig configures the C1 provider.
type EmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Dimension <= 0 {
		c.Dimension = 512
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("embedder: dimension must be positive")
	}
	return nil
}

// LLMBackendConfig configures a single C10 backend in the fallback chain.
//
// Example:
//
//	llm:
//	 fallback_chain:
//	 - type: local_openai
//	 base_url: http://localhost:11434
//	 model: llama3
//	 window: 4000
//	 - type: cloud_chat
//	 base_url: https://api.example.com
//	 model: gpt-4o-mini
type LLMBackendConfig struct {
	Type string `yaml:"type"`
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	Model string `yaml:"model"`
	Effort string `yaml:"effort,omitempty"`
	Window int `yaml:"window,omitempty"`
}

// LLMConfig configures the ordered fallback chain (C10).
type LLMConfig struct {
	FallbackChain []LLMBackendConfig `yaml:"fallback_chain"`
}

func (c *LLMConfig) SetDefaults() {
	for i := range c.FallbackChain {
		if c.FallbackChain[i].Window <= 0 {
			c.FallbackChain[i].Window = 4000
		}
	}
}

func (c *LLMConfig) Validate() error {
	if len(c.FallbackChain) == 0 {
		return fmt.Errorf("llm: fallback_chain must have at least one backend")
	}
	for i, b := range c.FallbackChain {
		switch b.Type {
		case "local_openai", "cloud_chat", "cloud_reasoning", "ondevice_extractive", "mock":
		default:
			return fmt.Errorf("llm: backend %d: unknown type %q", i, b.Type)
		}
		if b.Model == "" {
			return fmt.Errorf("llm: backend %d: model is required", i)
		}
	}
	return nil
}

// GatingConfig holds confidence-gating thresholds. It is defaulted and
// validated here, but the engine does not read it: pkg/engine's gating
// uses its own fixed thresholds.
type GatingConfig struct {
	StrictModeMinSimilarity float64 `yaml:"strict_min_similarity"`
	LenientMinSimilarity float64 `yaml:"lenient_min_similarity"`
}

func (c *GatingConfig) SetDefaults() {
	if c.StrictModeMinSimilarity == 0 {
		c.StrictModeMinSimilarity = 0.52
	}
	if c.LenientMinSimilarity == 0 {
		c.LenientMinSimilarity = 0.35
	}
}

func (c *GatingConfig) Validate() error {
	if c.StrictModeMinSimilarity <= 0 || c.LenientMinSimilarity <= 0 {
		return fmt.Errorf("gating: thresholds must be positive")
	}
	return nil
}

// TelemetryConfig configures the otel meter wiring.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	PrometheusAddr string `yaml:"prometheus_addr,omitempty"`
}

func (c *TelemetryConfig) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9464"
	}
}

// EngineConfig is the root configuration for the query engine.
type EngineConfig struct {
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedder EmbedderConfig `yaml:"embedder"`
	LLM LLMConfig `yaml:"llm"`
	Gating GatingConfig `yaml:"gating"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SetDefaults fills every nested config's defaults.
func (c *EngineConfig) SetDefaults() {
	c.VectorIndex.SetDefaults()
	c.Embedder.SetDefaults()
	c.LLM.SetDefaults()
	c.Gating.SetDefaults()
	c.Telemetry.SetDefaults()
}

// Validate validates every nested config.
func (c *EngineConfig) Validate() error {
	if err := c.VectorIndex.Validate(); err != nil {
		return err
	}
	if err := c.Embedder.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Gating.Validate(); err != nil {
		return err
	}
	if c.Embedder.Dimension != c.VectorIndex.Dimension {
		return fmt.Errorf("config: embedder dimension %d != vector_index dimension %d", c.Embedder.Dimension, c.VectorIndex.Dimension)
	}
	return nil
}
