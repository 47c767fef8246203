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

// Package tokenbudget counts tokens for the LLM gateway's (C10) window
// budgeting, preferring a real tokenizer over a chars/4 heuristic.
package tokenbudget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a given model, caching the encoding lookup.
type Counter struct {
	mu sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the token count of text under model's encoding. A model
// with no registered encoding is counted with cl100k_base; only when no
// encoding can be loaded at all does it fall back to the chars/4
// heuristic, so callers always get a usable estimate.
func (c *Counter) Count(model, text string) int {
	enc := c.encodingFor(model)
	if enc == nil {
		return estimateTokensChars(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *Counter) encodingFor(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			c.encodings[model] = nil
			return nil
		}
	}
	c.encodings[model] = enc
	return enc
}

func estimateTokensChars(text string) int {
	n := len(text) / 4
	if n < 1 && len(text) > 0 {
		n = 1
	}
	return n
}

// FitsWithinWindow implements the C10 small-window budgeting rule:
// (|prompt|+|context| tokens)/1 + safety > window triggers capping.
// EstimatePromptTokens, window and safety are all expressed in tokens.
func FitsWithinWindow(estimatedPromptTokens, safety, window int) (fits bool, cappedMaxTokens int) {
	if estimatedPromptTokens+safety > window {
		capped := window - safety - estimatedPromptTokens
		if capped < 128 {
			capped = 128
		}
		return false, capped
	}
	return true, 0
}
