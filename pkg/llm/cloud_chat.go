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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragengine/pkg/httpclient"
)

// CloudChatCompletions talks to a hosted OpenAI-compatible chat endpoint
// with bearer auth. It shares the wire format with LocalOpenAIServer but
// is never subject to the localhost-only availability restriction.
type CloudChatCompletions struct {
	baseURL string
	apiKey string
	model string
	client *httpclient.Client
	tools ToolHandler
}

var _ Backend = (*CloudChatCompletions)(nil)
var _ ToolAwareBackend = (*CloudChatCompletions)(nil)

// NewCloudChatCompletions creates a cloud chat-completions backend.
func NewCloudChatCompletions(baseURL, apiKey, model string) *CloudChatCompletions {
	return &CloudChatCompletions{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey: apiKey,
		model: model,
		client: httpclient.New(httpclient.WithTimeout(120 * time.Second)),
	}
}

func (b *CloudChatCompletions) ModelName() string { return b.model }

func (b *CloudChatCompletions) SetToolHandler(h ToolHandler) { b.tools = h }

// MaxContextChars reports the large context budget appropriate for a
// hosted chat model, implementing ContextBudget.
func (b *CloudChatCompletions) MaxContextChars() int { return 200_000 }

func (b *CloudChatCompletions) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2500*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (b *CloudChatCompletions) Generate(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	start := time.Now()
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	if b.tools != nil {
		messages := buildMessages(prompt, contextText)
		final, err := runChatWithTools(ctx, b.tools, b.model, messages, b.sendChatCompletion)
		if err != nil {
			return Response{}, err
		}
		text := lastAssistantContent(final)
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

	body, err := json.Marshal(chatCompletionRequest{
		Model: b.model,
		Messages: buildMessages(prompt, contextText),
		MaxTokens: cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP: cfg.TopP,
		Stop: cfg.Stop,
		Stream: sink != nil,
	})
	if err != nil {
		return Response{}, &ErrGenerationFailed{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, &ErrGenerationFailed{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return Response{}, &ErrModelUnavailable{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reason := fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody))
		if isContextExceeded(resp.StatusCode, reason) {
			return Response{}, &ErrContextExceeded{Reason: reason}
		}
		return Response{}, &ErrGenerationFailed{Reason: reason}
	}

	var ttft *float64
	first := true
	text, err := readSSE(resp.Body, func(delta string) {
		if first {
			elapsed := time.Since(start).Seconds()
			ttft = &elapsed
			first = false
		}
		if sink != nil {
			sink(StreamChunk{Delta: delta})
		}
	})
	if err != nil {
		return Response{}, &ErrGenerationFailed{Reason: err.Error()}
	}

	return Response{
		Text: text,
		TokensGenerated: len(strings.Fields(text)),
		TTFT: ttft,
		TotalTime: time.Since(start).Seconds(),
		ModelName: b.model,
	}, nil
}

// sendChatCompletion posts one non-streaming chat-completions request,
// implementing toolRoundTripper for runChatWithTools.
func (b *CloudChatCompletions) sendChatCompletion(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
