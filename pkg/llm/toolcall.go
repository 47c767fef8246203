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
	"encoding/json"
	"fmt"
)

// maxToolRounds bounds the tool-call loop so a misbehaving model can't
// keep the gateway spinning forever.
const maxToolRounds = 6

type toolSpec struct {
	Type string `json:"type"`
	Function toolFunctionSpec `json:"function"`
}

type toolFunctionSpec struct {
	Name string `json:"name"`
	Description string `json:"description"`
	Parameters map[string]any `json:"parameters"`
}

type toolCall struct {
	ID string `json:"id"`
	Type string `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// toolSpecs describes search_documents, list_documents and
// get_document_summary in the request shape an OpenAI-compatible
// chat-completions endpoint expects.
func toolSpecs() []toolSpec {
	return []toolSpec{
		{Type: "function", Function: toolFunctionSpec{
			Name: "search_documents",
			Description: "Search the active container's indexed documents for passages relevant to a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"topK": map[string]any{"type": "integer"},
					"minSimilarity": map[string]any{"type": "number"},
				},
				"required": []string{"query"},
			},
		}},
		{Type: "function", Function: toolFunctionSpec{
			Name: "list_documents",
			Description: "List the documents indexed in the active container.",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		}},
		{Type: "function", Function: toolFunctionSpec{
			Name: "get_document_summary",
			Description: "Look up a document by name (substring match) and report its chunk count.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"documentName": map[string]any{"type": "string"},
				},
				"required": []string{"documentName"},
			},
		}},
	}
}

// toolRoundTripper posts one non-streaming chat-completions request and
// returns the raw status and body, letting runChatWithTools stay
// transport-agnostic across LocalOpenAIServer and CloudChatCompletions.
type toolRoundTripper func(ctx context.Context, body []byte) (status int, respBody []byte, err error)

// runChatWithTools drives the tool-calling loop: it posts the
// conversation, dispatches any tool_calls the model returns to tools,
// appends the results as role:"tool" messages, and repeats until the
// model answers without calling a tool or maxToolRounds is reached.
// The returned messages end with the model's final assistant turn, or,
// when maxToolRounds is reached, with that round's tool-result messages.
func runChatWithTools(ctx context.Context, tools ToolHandler, model string, messages []chatMessage, send toolRoundTripper) ([]chatMessage, error) {
	for round := 0; round < maxToolRounds; round++ {
		reqBody, err := json.Marshal(chatCompletionRequest{
			Model: model,
			Messages: messages,
			Tools: toolSpecs(),
			Stream: false,
		})
		if err != nil {
			return nil, &ErrGenerationFailed{Reason: err.Error()}
		}

		status, respBody, err := send(ctx, reqBody)
		if err != nil {
			return nil, &ErrModelUnavailable{Reason: err.Error()}
		}
		if status >= 400 {
			reason := fmt.Sprintf("status %d: %s", status, string(respBody))
			if isContextExceeded(status, reason) {
				return nil, &ErrContextExceeded{Reason: reason}
			}
			return nil, &ErrGenerationFailed{Reason: reason}
		}

		var cc chatCompletionResponse
		if err := json.Unmarshal(respBody, &cc); err != nil || len(cc.Choices) == 0 {
			return nil, &ErrGenerationFailed{Reason: "malformed tool-call response"}
		}

		msg := cc.Choices[0].Message
		messages = append(messages, msg)
		if len(msg.ToolCalls) == 0 {
			return messages, nil
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			result, err := tools.Call(ctx, tc.Function.Name, args)
			if err != nil {
				result = fmt.Sprintf("error: %v", err)
			}
			messages = append(messages, chatMessage{Role: "tool", ToolCallID: tc.ID, Content: result})
		}
	}
	return messages, nil
}

// lastAssistantContent returns the final assistant turn's content, which
// is the model's answer once the tool-call loop stops requesting tools.
func lastAssistantContent(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
