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

// Command ragengine is the CLI for the retrieval query engine.
//
// Usage:
//
//	ragengine query --config config.yaml --container docs --question "..."
//	ragengine ingest --config config.yaml --container docs --path ./corpus
//	ragengine validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gopkg.in/yaml.v3"

	"ragengine/pkg/chunk"
	"ragengine/pkg/config"
	"ragengine/pkg/embedder"
	"ragengine/pkg/engine"
	"ragengine/pkg/ingest"
	"ragengine/pkg/llm"
	"ragengine/pkg/telemetry"
	"ragengine/pkg/tool"
	"ragengine/pkg/vectorstore"
)

// CLI defines the command-line interface.
type CLI struct {
	Query QueryCmd `cmd:"" help:"Run a single query against an indexed container."`
	Ingest IngestCmd `cmd:"" help:"Index every file under a directory into a container."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"ragengine.yaml"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, kong.Name("ragengine"), kong.Description("Retrieval-augmented query engine"))

	logger := newLogger(cli.LogLevel)
	slog.SetDefault(logger)

	if err := ctx.Run(&cli); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig(path string) (config.EngineConfig, error) {
	var cfg config.EngineConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.SetDefaults()
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}

// ValidateCmd checks a config file without running anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("config OK: vector_index=%s embedder_dim=%d llm_backends=%d\n",
		cfg.VectorIndex.Provider, cfg.Embedder.Dimension, len(cfg.LLM.FallbackChain))
	return nil
}

// newRecorder builds an otel Recorder backed by a Prometheus exporter,
// if telemetry is enabled in config. The exporter registers its collector
// with the default Prometheus registerer; this command does not serve a
// /metrics endpoint, and TelemetryConfig.PrometheusAddr is not read.
func newRecorder(cfg config.TelemetryConfig) (*telemetry.Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return telemetry.NewRecorder(provider.Meter("ragengine"))
}

// buildOrchestrator wires every C1-C12 component per cfg. containerIDs
// pre-registers the containers whose document stores pkg/tool's Handler
// can dispatch into; it is fixed at construction time, matching
// pkg/tool.New's immutable store map.
func buildOrchestrator(cfg config.EngineConfig, containerIDs []string, logger *slog.Logger) (*engine.Orchestrator, map[string]*ingest.DocumentStore, error) {
	emb := embedder.New(cfg.Embedder.Dimension)

	backends := make([]llm.Backend, 0, len(cfg.LLM.FallbackChain)+1)
	for _, b := range cfg.LLM.FallbackChain {
		switch b.Type {
		case "local_openai":
			backends = append(backends, llm.NewLocalOpenAIServer(b.BaseURL, b.Model))
		case "cloud_chat":
			backends = append(backends, llm.NewCloudChatCompletions(b.BaseURL, b.APIKey, b.Model))
		case "cloud_reasoning":
			backends = append(backends, llm.NewCloudReasoning(b.BaseURL, b.APIKey, b.Model, b.Effort))
		case "ondevice_extractive":
			backends = append(backends, llm.NewOnDeviceExtractive())
		default:
			return nil, nil, fmt.Errorf("unsupported backend type %q", b.Type)
		}
	}
	gateway := llm.New(backends, logger)

	recorder, err := newRecorder(cfg.Telemetry)
	if err != nil {
		return nil, nil, err
	}

	stores := make(map[string]*ingest.DocumentStore, len(containerIDs))
	toolStores := make(map[string]tool.ContainerStore, len(containerIDs))

	o := engine.New(engine.Options{
		Embedder: emb,
		Gateway: gateway,
		Extractive: llm.NewOnDeviceExtractive(),
		Recorder: recorder,
		Logger: logger,
	})

	for _, id := range containerIDs {
		idx, err := vectorstore.NewFromConfig(cfg.VectorIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("container %s: %w", id, err)
		}
		o.RegisterContainer(chunk.Container{ID: id, Dimension: cfg.VectorIndex.Dimension}, idx)

		store, err := ingest.NewDocumentStore(ingest.DocumentStoreConfig{ContainerID: id}, emb, idx, logger)
		if err != nil {
			return nil, nil, err
		}
		stores[id] = store
		toolStores[id] = store
	}

	o.SetTools(tool.New(toolStores, emb))
	return o, stores, nil
}

// IngestCmd chunks and embeds every file under Path into Container.
type IngestCmd struct {
	Container string `required:"" help:"Container id to index into."`
	Path string `required:"" type:"path" help:"Directory of files to ingest."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	logger := slog.Default()

	_, stores, err := buildOrchestrator(cfg, []string{c.Container}, logger)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(c.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Path, err)
	}

	var docs []ingest.RawDocument
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(c.Path, e.Name()))
		if err != nil {
			logger.Warn("skipping unreadable file", "file", e.Name(), "error", err)
			continue
		}
		docs = append(docs, ingest.RawDocument{Filename: e.Name(), Content: string(content)})
	}

	progress, err := stores[c.Container].IndexDocuments(context.Background(), docs)
	if err != nil {
		logger.Warn("ingest completed with errors", "error", err)
	}
	fmt.Printf("indexed %d/%d documents, %d chunks, %d failed\n",
		progress.DocumentsProcessed, progress.DocumentsTotal, progress.ChunksIndexed, progress.Failed)
	return nil
}

// QueryCmd runs a single query against an already-ingested container.
type QueryCmd struct {
	Container string `required:"" help:"Container id to query."`
	Question string `required:"" help:"The question to answer."`
	K int `default:"5" help:"Number of chunks to retrieve."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	logger := slog.Default()

	o, _, err := buildOrchestrator(cfg, []string{c.Container}, logger)
	if err != nil {
		return err
	}

	sink := func(sc llm.StreamChunk) {
		if sc.Err != nil {
			return
		}
		fmt.Print(sc.Delta)
	}

	result, err := o.Query(context.Background(), c.Question, c.K, c.Container, sink)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("\n[confidence=%.2f gating=%s warnings=%v]\n", result.Confidence, result.Metadata.GatingDecision, result.Warnings)
	return nil
}
