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
	"sync"
	"time"

	"ragengine/pkg/httpclient"
)

// CloudReasoning talks to the cloud "reasoning" Responses API: POST
// {base}/v1/responses, preserving the returned id across turns for
// chain-of-thought continuity.
type CloudReasoning struct {
	baseURL string
	apiKey string
	model string
	effort string
	client *httpclient.Client

	mu sync.Mutex
	previousResponseID string
}

var _ Backend = (*CloudReasoning)(nil)

// NewCloudReasoning creates a reasoning-API backend. effort is passed as
// reasoning.effort (e.g. "low", "medium", "high").
func NewCloudReasoning(baseURL, apiKey, model, effort string) *CloudReasoning {
	return &CloudReasoning{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey: apiKey,
		model: model,
		effort: effort,
		client: httpclient.New(httpclient.WithTimeout(300 * time.Second)),
	}
}

func (b *CloudReasoning) ModelName() string { return b.model }

// MaxContextChars reports the large context budget appropriate for a
// cloud reasoning model, implementing ContextBudget.
func (b *CloudReasoning) MaxContextChars() int { return 200_000 }

func (b *CloudReasoning) IsAvailable(ctx context.Context) bool {
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

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Reasoning *reasoningOpt `json:"reasoning,omitempty"`
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
}

type reasoningOpt struct {
	Effort string `json:"effort"`
}

type responsesResponse struct {
	ID string `json:"id"`
	OutputText string `json:"output_text"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate calls the Responses API non-streaming (the reasoning API does
// not support incremental SSE the way chat-completions does) and reports
// the whole output as a single sink delta when a sink is installed.
func (b *CloudReasoning) Generate(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	start := time.Now()

	input := prompt
	if contextText != "" {
		input = "Context:\n" + contextText + "\n\nQuestion:\n" + prompt
	}

	b.mu.Lock()
	prevID := b.previousResponseID
	b.mu.Unlock()

	body, err := json.Marshal(responsesRequest{
		Model: b.model,
		Input: input,
		Reasoning: &reasoningOpt{Effort: b.effort},
		MaxOutputTokens: cfg.MaxTokens,
		PreviousResponseID: prevID,
	})
	if err != nil {
		return Response{}, &ErrGenerationFailed{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/responses", bytes.NewReader(body))
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

	rawBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		reason := fmt.Sprintf("status %d: %s", resp.StatusCode, string(rawBody))
		if isContextExceeded(resp.StatusCode, reason) {
			return Response{}, &ErrContextExceeded{Reason: reason}
		}
		return Response{}, &ErrGenerationFailed{Reason: reason}
	}

	var parsed responsesResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return Response{}, &ErrGenerationFailed{Reason: err.Error()}
	}

	b.mu.Lock()
	b.previousResponseID = parsed.ID
	b.mu.Unlock()

	if sink != nil {
		sink(StreamChunk{Delta: parsed.OutputText})
	}

	return Response{
		Text: parsed.OutputText,
		TokensGenerated: parsed.Usage.OutputTokens,
		TotalTime: time.Since(start).Seconds(),
		ModelName: b.model,
	}, nil
}
