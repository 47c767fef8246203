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

// Package ingest turns raw documents into the chunk.Chunk records C2
// stores, supplementing the distilled query-time spec with the
// source-to-index pipeline a complete engine needs: chunking, retrying
// transient embedding failures, and tracking ingestion progress.
package ingest

import (
	"fmt"
	"strings"
)

// ChunkerStrategy identifies a text-splitting strategy.
type ChunkerStrategy string

const (
	// ChunkerSimple groups whole lines into chunks of up to Size
	// characters, without overlap.
	ChunkerSimple ChunkerStrategy = "simple"
	// ChunkerOverlapping cuts fixed windows of Size characters, each
	// starting Size-Overlap characters after the previous one, so Overlap
	// characters carry into the next chunk; windows may split mid-line.
	ChunkerOverlapping ChunkerStrategy = "overlapping"
)

// ChunkerConfig configures chunking behavior.
type ChunkerConfig struct {
	Strategy ChunkerStrategy `yaml:"strategy,omitempty"`
	Size int `yaml:"size,omitempty"`
	Overlap int `yaml:"overlap,omitempty"`
}

// SetDefaults fills unset fields with the engine's defaults.
func (c *ChunkerConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = ChunkerSimple
	}
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
}

// Validate checks the configuration for internal consistency.
func (c *ChunkerConfig) Validate() error {
	switch c.Strategy {
	case ChunkerSimple, ChunkerOverlapping:
	default:
		return fmt.Errorf("ingest: invalid chunker strategy %q", c.Strategy)
	}
	if c.Size <= 0 {
		return fmt.Errorf("ingest: chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("ingest: overlap (%d) must be less than size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// TextSpan is a single chunk of split text, with its position in the
// source document for citation and debugging.
type TextSpan struct {
	Content string
	Index int
	Total int
	StartLine int
	EndLine int
}

// Chunker splits document content into TextSpans.
type Chunker interface {
	Split(content string) ([]TextSpan, error)
}

// NewChunker builds the configured Chunker.
func NewChunker(cfg ChunkerConfig) (Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case ChunkerOverlapping:
		return &overlappingChunker{config: cfg}, nil
	default:
		return &simpleChunker{config: cfg}, nil
	}
}

// simpleChunker groups lines into chunks up to config.Size characters,
// never splitting mid-line.
type simpleChunker struct {
	config ChunkerConfig
}

func (c *simpleChunker) Split(content string) ([]TextSpan, error) {
	if len(content) <= c.config.Size {
		return []TextSpan{{Content: content, Index: 0, Total: 1, StartLine: 1, EndLine: countLines(content)}}, nil
	}

	lines := strings.Split(content, "\n")
	var spans []TextSpan
	var cur strings.Builder
	startLine, line := 1, 1

	for _, l := range lines {
		withNL := l + "\n"
		if cur.Len() > 0 && cur.Len()+len(withNL) > c.config.Size {
			spans = append(spans, TextSpan{Content: cur.String(), Index: len(spans), StartLine: startLine, EndLine: line - 1})
			cur.Reset()
			startLine = line
		}
		cur.WriteString(withNL)
		line++
	}
	if cur.Len() > 0 {
		spans = append(spans, TextSpan{Content: cur.String(), Index: len(spans), StartLine: startLine, EndLine: len(lines)})
	}

	for i := range spans {
		spans[i].Total = len(spans)
	}
	return spans, nil
}

// overlappingChunker repeats the trailing config.Overlap characters of
// each chunk at the start of the next, preserving context across
// boundaries.
type overlappingChunker struct {
	config ChunkerConfig
}

func (c *overlappingChunker) Split(content string) ([]TextSpan, error) {
	if len(content) <= c.config.Size {
		return []TextSpan{{Content: content, Index: 0, Total: 1, StartLine: 1, EndLine: countLines(content)}}, nil
	}

	step := c.config.Size - c.config.Overlap
	if step <= 0 {
		step = c.config.Size
	}

	var spans []TextSpan
	for start := 0; start < len(content); start += step {
		end := start + c.config.Size
		if end > len(content) {
			end = len(content)
		}
		spans = append(spans, TextSpan{
			Content: content[start:end],
			Index: len(spans),
			StartLine: countLines(content[:start]) + 1,
			EndLine: countLines(content[:end]),
		})
		if end == len(content) {
			break
		}
	}

	for i := range spans {
		spans[i].Total = len(spans)
	}
	return spans, nil
}

func countLines(content string) int {
	if len(content) == 0 {
		return 0
	}
	lines := 1
	for _, r := range content {
		if r == '\n' {
			lines++
		}
	}
	return lines
}
