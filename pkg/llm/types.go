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

// Package llm implements the LLM gateway (C10): a polymorphic capability
// interface over backend variants, with streaming, context-overflow
// retry and an ordered fallback chain.
package llm

import "context"

// Config configures one generate() call.
type Config struct {
	Model string
	MaxTokens int
	Temperature float64
	TopP float64
	TopK int
	Stop []string
	Window int // context window in tokens, used for budgeting
}

// StreamChunk is one delta emitted to the ambient streaming sink.
type StreamChunk struct {
	Delta string
	IsFinal bool
	Err error
}

// Sink receives stream chunks. It is an explicit parameter threaded down
// from the orchestrator's generate() call rather than a task-local
// "current stream handler", so concurrent queries never race on shared
// streaming state.
type Sink func(StreamChunk)

// Response is the result of one generate() call.
type Response struct {
	Text string
	TokensGenerated int
	TTFT *float64
	TotalTime float64
	ModelName string
	ToolCallsMade int
}

// ToolCall describes one LLM-initiated invocation of an engine tool.
type ToolCall struct {
	Name string
	Arguments map[string]any
}

// ToolHandler executes a tool call and returns its string result.
type ToolHandler interface {
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// Backend is the capability interface every LLM variant implements.
// Dispatch across variants {LocalOpenAIServer, CloudChatCompletions,
// CloudReasoning, OnDeviceExtractive, SystemLanguageModel, Mock} is
// tagged via this interface, not inheritance.
type Backend interface {
	Generate(ctx context.Context, prompt, context_ string, cfg Config, sink Sink) (Response, error)
	IsAvailable(ctx context.Context) bool
	ModelName() string
}

// ToolAwareBackend is implemented by backends that can dispatch tool
// calls mid-generation.
type ToolAwareBackend interface {
	Backend
	SetToolHandler(h ToolHandler)
}

// ToolCounter is a ToolHandler that also tracks how many calls it served,
// letting the gateway populate Response.ToolCallsMade without every
// handler implementation needing to know about Response.
type ToolCounter interface {
	ToolHandler
	CallCount() int64
}

// ContextBudget is implemented by backends whose context window implies a
// specific assembled-context character budget, such as a large-context
// cloud model or a small on-device one. Backends that don't implement it
// get the orchestrator's medium default.
type ContextBudget interface {
	MaxContextChars() int
}

// ErrContextExceeded is the sentinel a backend returns when the model
// reports the prompt+context exceeded its window, triggering the
// gateway's overflow retry.
type ErrContextExceeded struct{ Reason string }

func (e *ErrContextExceeded) Error() string { return "llm: context exceeded: " + e.Reason }

// ErrModelUnavailable signals the backend could not be reached at all.
type ErrModelUnavailable struct{ Reason string }

func (e *ErrModelUnavailable) Error() string { return "llm: model unavailable: " + e.Reason }

// ErrGenerationFailed wraps any other backend failure.
type ErrGenerationFailed struct{ Reason string }

func (e *ErrGenerationFailed) Error() string { return "llm: generation failed: " + e.Reason }
