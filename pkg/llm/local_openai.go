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
	"net/url"
	"strings"
	"time"

	"ragengine/pkg/httpclient"
)

// LocalOpenAIServer talks to a local OpenAI-compatible chat-completions
// server. Non-localhost hosts are treated as unavailable.
type LocalOpenAIServer struct {
	baseURL string
	model string
	client *httpclient.Client
	tools ToolHandler
}

var _ Backend = (*LocalOpenAIServer)(nil)
var _ ToolAwareBackend = (*LocalOpenAIServer)(nil)

// NewLocalOpenAIServer creates a backend pointed at baseURL (e.g.
// http://localhost:11434).
func NewLocalOpenAIServer(baseURL, model string) *LocalOpenAIServer {
	return &LocalOpenAIServer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model: model,
		client: httpclient.New(httpclient.WithTimeout(120 * time.Second)),
	}
}

func (b *LocalOpenAIServer) ModelName() string { return b.model }

func (b *LocalOpenAIServer) SetToolHandler(h ToolHandler) { b.tools = h }

func (b *LocalOpenAIServer) isLocalhost() bool {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// IsAvailable performs the health check: GET /v1/models, falling back to
// GET {base}; status < 500 counts as up. Times out at 2.5s.
func (b *LocalOpenAIServer) IsAvailable(ctx context.Context) bool {
	if !b.isLocalhost() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2500*time.Millisecond)
	defer cancel()

	if b.probe(ctx, b.baseURL+"/v1/models") {
		return true
	}
	return b.probe(ctx, b.baseURL)
}

func (b *LocalOpenAIServer) probe(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

type chatCompletionRequest struct {
	Model string `json:"model"`
	Messages []chatMessage `json:"messages"`
	MaxTokens int `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP float64 `json:"top_p,omitempty"`
	TopK int `json:"top_k,omitempty"`
	Stop []string `json:"stop,omitempty"`
	Stream bool `json:"stream"`
	Tools []toolSpec `json:"tools,omitempty"`
}

type chatMessage struct {
	Role string `json:"role"`
	Content string `json:"content,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Generate implements Backend.Generate against the local chat-completions
// endpoint, streaming deltas through sink when provided.
func (b *LocalOpenAIServer) Generate(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	start := time.Now()
	messages := buildMessages(prompt, contextText)

	if b.tools != nil {
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
		Messages: messages,
		MaxTokens: cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP: cfg.TopP,
		TopK: cfg.TopK,
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

	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return Response{}, &ErrModelUnavailable{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reason := fmt.Sprintf("status %d: %s", resp.StatusCode, string(body))
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

	total := time.Since(start).Seconds()
	tokens := len(strings.Fields(text))
	return Response{
		Text: text,
		TokensGenerated: tokens,
		TTFT: ttft,
		TotalTime: total,
		ModelName: b.model,
	}, nil
}

// sendChatCompletion posts one non-streaming chat-completions request,
// implementing toolRoundTripper for runChatWithTools.
func (b *LocalOpenAIServer) sendChatCompletion(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

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

func isContextExceeded(status int, reason string) bool {
	return status == 400 && strings.Contains(strings.ToLower(reason), "context")
}

func buildMessages(prompt, contextText string) []chatMessage {
	msgs := []chatMessage{{Role: "system", Content: "You are a helpful assistant answering from provided context."}}
	if contextText != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: "Context:\n" + contextText})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})
	return msgs
}
