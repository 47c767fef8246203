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
	"errors"
	"log/slog"

	"ragengine/pkg/tokenbudget"
)

const safetyTokens = 400

// Gateway dispatches generate() to an ordered chain of backends,
// budgeting tokens for small windows, retrying once on context overflow,
// and falling through to the next backend in the chain on any failure.
type Gateway struct {
	backends []Backend
	counter *tokenbudget.Counter
	logger *slog.Logger
	tools ToolHandler
}

// New creates a Gateway over an ordered backend chain; backends[0] is
// primary, the rest are fallbacks tried in order.
func New(backends []Backend, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{backends: backends, counter: tokenbudget.NewCounter(), logger: logger}
}

// PrimaryBackend returns the first backend in the fallback chain, or nil
// if none is configured. Callers use it to size resources (like the
// assembled-context budget) around the backend normally expected to
// serve the query, before the chain's actual fallback behavior is known.
func (g *Gateway) PrimaryBackend() Backend {
	if len(g.backends) == 0 {
		return nil
	}
	return g.backends[0]
}

// SetTools installs the tool handler every ToolAwareBackend in the chain
// dispatches into, and arms ToolCallsMade reporting if the handler also
// implements ToolCounter.
func (g *Gateway) SetTools(t ToolHandler) {
	g.tools = t
	for _, b := range g.backends {
		if ta, ok := b.(ToolAwareBackend); ok {
			ta.SetToolHandler(t)
		}
	}
}

// Generate runs C10's contract: budgets tokens, streams through sink,
// retries once on overflow, and iterates the fallback chain on failure.
// It is GenerateStreaming with a nil sink, so nothing is streamed.
func (g *Gateway) Generate(ctx context.Context, prompt, contextText string, cfg Config) (Response, error) {
	return g.GenerateStreaming(ctx, prompt, contextText, cfg, nil)
}

// GenerateStreaming is Generate with an explicit streaming sink. A non-nil
// sink receives exactly one IsFinal marker on every exit path. When every
// backend fails, the primary backend's error is returned.
func (g *Gateway) GenerateStreaming(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (resp Response, err error) {
	defer func() {
		if sink != nil {
			sink(StreamChunk{IsFinal: true})
		}
	}()

	if len(g.backends) == 0 {
		return Response{}, &ErrModelUnavailable{Reason: "no backends configured"}
	}

	var firstErr error
	for i, backend := range g.backends {
		cfg2 := g.budgetConfig(backend, prompt, contextText, cfg)

		resp, err = backend.Generate(ctx, prompt, contextText, cfg2, sink)
		if err == nil {
			return g.withToolCallsMade(resp), nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return Response{}, ctx.Err()
		}

		var overflow *ErrContextExceeded
		if errors.As(err, &overflow) {
			resp, err = g.retryAfterOverflow(ctx, backend, prompt, contextText, cfg2, sink)
			if err == nil {
				return g.withToolCallsMade(resp), nil
			}
		}

		g.logger.Warn("llm backend failed, trying fallback",
			"backend_index", i, "model", backend.ModelName(), "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return Response{}, firstErr
}

// withToolCallsMade reads and resets the installed tool handler's
// call counter into resp, if it tracks one.
func (g *Gateway) withToolCallsMade(resp Response) Response {
	if tc, ok := g.tools.(ToolCounter); ok {
		resp.ToolCallsMade = int(tc.CallCount())
	}
	return resp
}

// retryAfterOverflow implements overflow retry: halve
// max_tokens (floor 512) and context length (floor 800 chars), retry once.
func (g *Gateway) retryAfterOverflow(ctx context.Context, backend Backend, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	newMaxTokens := cfg.MaxTokens / 2
	if newMaxTokens < 512 {
		newMaxTokens = 512
	}
	newContextLimit := len(contextText) / 2
	if newContextLimit < 800 {
		newContextLimit = 800
	}
	if newContextLimit > len(contextText) {
		newContextLimit = len(contextText)
	}

	cfg.MaxTokens = newMaxTokens
	return backend.Generate(ctx, prompt, contextText[:newContextLimit], cfg, sink)
}

// budgetConfig caps MaxTokens so prompt plus completion fits the backend's window.
func (g *Gateway) budgetConfig(backend Backend, prompt, contextText string, cfg Config) Config {
	if cfg.Window <= 0 {
		return cfg
	}
	estimated := g.counter.Count(backend.ModelName(), prompt) + g.counter.Count(backend.ModelName(), contextText)
	fits, capped := tokenbudget.FitsWithinWindow(estimated, safetyTokens, cfg.Window)
	if !fits {
		cfg.MaxTokens = capped
	}
	return cfg
}
