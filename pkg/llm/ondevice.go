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

package llm

import (
	"context"
	"strings"
	"time"
)

// OnDeviceExtractive answers by extracting the most query-relevant
// sentences from the supplied context, with no model call at all. The
// gating logic (C12) routes to this backend when retrieval confidence is
// too low to trust generative synthesis.
type OnDeviceExtractive struct{}

var _ Backend = (*OnDeviceExtractive)(nil)

// NewOnDeviceExtractive creates an extractive fallback backend.
func NewOnDeviceExtractive() *OnDeviceExtractive { return &OnDeviceExtractive{} }

func (b *OnDeviceExtractive) ModelName() string { return "ondevice-extractive" }
func (b *OnDeviceExtractive) IsAvailable(context.Context) bool { return true }

// MaxContextChars reports the small context budget this backend needs,
// implementing ContextBudget.
func (b *OnDeviceExtractive) MaxContextChars() int { return 1_500 }

// Generate extracts up to three sentences from contextText that share the
// most query terms, highest-scoring first, joined into a short answer.
func (b *OnDeviceExtractive) Generate(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	start := time.Now()
	if contextText == "" {
		text := "I could not find supporting context for that question."
		if sink != nil {
			sink(StreamChunk{Delta: text})
		}
		return Response{Text: text, TokensGenerated: len(strings.Fields(text)), TotalTime: time.Since(start).Seconds(), ModelName: b.ModelName()}, nil
	}

	queryTerms := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(prompt)) {
		if len(t) > 2 {
			queryTerms[t] = true
		}
	}

	sentences := splitSentences(contextText)
	type scored struct {
		text string
		score int
	}
	var scoredSentences []scored
	for _, s := range sentences {
		words := strings.Fields(strings.ToLower(s))
		score := 0
		for _, w := range words {
			if queryTerms[w] {
				score++
			}
		}
		if score > 0 {
			scoredSentences = append(scoredSentences, scored{text: s, score: score})
		}
	}

	const maxSentences = 3
	var picked []string
	for i := 0; i < len(scoredSentences) && len(picked) < maxSentences; i++ {
		best := i
		for j := i + 1; j < len(scoredSentences); j++ {
			if scoredSentences[j].score > scoredSentences[best].score {
				best = j
			}
		}
		scoredSentences[i], scoredSentences[best] = scoredSentences[best], scoredSentences[i]
		picked = append(picked, strings.TrimSpace(scoredSentences[i].text))
	}

	text := strings.Join(picked, " ")
	if text == "" {
		text = "I could not find a direct answer in the available context."
	}

	if sink != nil {
		sink(StreamChunk{Delta: text})
	}
	return Response{
		Text: text,
		TokensGenerated: len(strings.Fields(text)),
		TotalTime: time.Since(start).Seconds(),
		ModelName: b.ModelName(),
	}, nil
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n'
	})
}

// SystemLanguageModel represents an on-host platform language model
// reached through an abstract invoke function, covering variants like a
// mobile OS's built-in model where the wire protocol is opaque to this
// engine. It shares OnDeviceExtractive's small-window budgeting profile.
type SystemLanguageModel struct {
	model string
	invoke func(ctx context.Context, prompt string) (string, error)
}

var _ Backend = (*SystemLanguageModel)(nil)

// NewSystemLanguageModel wraps an invoke function for a platform model.
func NewSystemLanguageModel(model string, invoke func(ctx context.Context, prompt string) (string, error)) *SystemLanguageModel {
	return &SystemLanguageModel{model: model, invoke: invoke}
}

func (b *SystemLanguageModel) ModelName() string { return b.model }
func (b *SystemLanguageModel) IsAvailable(ctx context.Context) bool {
	return b.invoke != nil
}

// MaxContextChars reports the small context budget this backend needs,
// implementing ContextBudget.
func (b *SystemLanguageModel) MaxContextChars() int { return 1_500 }

func (b *SystemLanguageModel) Generate(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	start := time.Now()
	full := prompt
	if contextText != "" {
		full = "Context:\n" + contextText + "\n\nQuestion:\n" + prompt
	}
	text, err := b.invoke(ctx, full)
	if err != nil {
		return Response{}, &ErrGenerationFailed{Reason: err.Error()}
	}
	if sink != nil {
		sink(StreamChunk{Delta: text})
	}
	return Response{
		Text: text,
		TokensGenerated: len(strings.Fields(text)),
		TotalTime: time.Since(start).Seconds(),
		ModelName: b.model,
	}, nil
}
