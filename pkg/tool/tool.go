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

// Package tool implements the tool handler (C11): the LLM-callable
// functions search_documents, list_documents and get_document_summary,
// scoped to the query's active container. Argument parsing tolerates
// the JSON value shape variance an LLM tool call can produce
// (float64/int, []any/[]string/string).
package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"ragengine/pkg/chunk"
	"ragengine/pkg/embedder"
	"ragengine/pkg/vectorstore"
)

const previewChars = 600

// ContainerStore is the subset of a document store the tool handler needs
// per container.
type ContainerStore interface {
	Index() vectorstore.Index
	Documents() []chunk.Document
}

// Handler implements C11's three callable functions, scoped to whatever
// container is installed for the current query via WithContainer.
type Handler struct {
	stores map[string]ContainerStore
	embedder embedder.Embedder
	calls atomic.Int64
}

// New creates a Handler over a set of named container stores.
func New(stores map[string]ContainerStore, emb embedder.Embedder) *Handler {
	return &Handler{stores: stores, embedder: emb}
}

type containerKey struct{}

// WithContainer installs the active container id for tool calls made
// during this context's lifetime, as an explicit parameter thread rather
// than a thread-local (scoped-container-context design
// note). The caller is responsible for releasing it via the returned
// context once query processing for that container completes.
func WithContainer(ctx context.Context, containerID string) context.Context {
	return context.WithValue(ctx, containerKey{}, containerID)
}

func containerFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(containerKey{}).(string)
	return v, ok
}

// CallCount returns and resets this Handler's tool-call counter, read
// by the gateway at generation end to report how many tool round trips
// a query took.
func (h *Handler) CallCount() int64 {
	return h.calls.Swap(0)
}

// Call dispatches name to the matching tool function with the given
// arguments, implementing ToolHandler for pkg/llm.
func (h *Handler) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	h.calls.Add(1)
	switch name {
	case "search_documents":
		return h.SearchDocuments(ctx, args)
	case "list_documents":
		return h.ListDocuments(ctx)
	case "get_document_summary":
		return h.GetDocumentSummary(ctx, args)
	default:
		return "", fmt.Errorf("tool: unknown function %q", name)
	}
}

// SearchDocuments runs only C1+C2 (no expansion, RRF, or MMR), scoped to
// the active container, and formats results as a numbered list the LLM
// can cite from.
func (h *Handler) SearchDocuments(ctx context.Context, args map[string]any) (string, error) {
	containerID, ok := containerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("tool: no active container for search_documents")
	}
	store, ok := h.stores[containerID]
	if !ok {
		return "", fmt.Errorf("tool: unknown container %q", containerID)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("tool: search_documents requires a non-empty query")
	}

	topK := parseIntArg(args["topK"], 5)
	minSim := parseFloatArg(args["minSimilarity"], 0)

	qv, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}

	results, err := store.Index().Search(ctx, qv, topK)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	count := 0
	for i, rc := range results {
		if float64(rc.Similarity) < minSim {
			continue
		}
		count++
		preview := rc.Chunk.Content
		if len(preview) > previewChars {
			preview = preview[:previewChars] + " [...]"
		}
		docName := rc.SourceDocument
		pageSuffix := ""
		if rc.PageNumber != nil {
			pageSuffix = fmt.Sprintf(" (Page %d)", *rc.PageNumber)
		}
		fmt.Fprintf(&sb, "[%d] From %s%s (Relevance: %.1f%%):\n%s\n\n", i+1, docName, pageSuffix, float64(rc.Similarity)*100, preview)
	}

	header := fmt.Sprintf("Found %d relevant chunks.\n\n", count)
	return header + sb.String(), nil
}

// ListDocuments returns a container-scoped document listing with counts.
func (h *Handler) ListDocuments(ctx context.Context) (string, error) {
	containerID, ok := containerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("tool: no active container for list_documents")
	}
	store, ok := h.stores[containerID]
	if !ok {
		return "", fmt.Errorf("tool: unknown container %q", containerID)
	}

	docs := store.Documents()
	if len(docs) == 0 {
		return "No documents are indexed in this container.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d documents:\n\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&sb, "- %s (%d chunks)\n", d.Filename, d.TotalChunks)
	}
	return sb.String(), nil
}

// GetDocumentSummary does a case-insensitive containment match on
// filename and reports its chunk count.
func (h *Handler) GetDocumentSummary(ctx context.Context, args map[string]any) (string, error) {
	containerID, ok := containerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("tool: no active container for get_document_summary")
	}
	store, ok := h.stores[containerID]
	if !ok {
		return "", fmt.Errorf("tool: unknown container %q", containerID)
	}

	name, _ := args["documentName"].(string)
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("tool: get_document_summary requires documentName")
	}

	for _, d := range store.Documents() {
		if strings.Contains(strings.ToLower(d.Filename), name) {
			return fmt.Sprintf("%s: %d chunks indexed.", d.Filename, d.TotalChunks), nil
		}
	}
	return fmt.Sprintf("No document matching %q was found.", name), nil
}

// parseIntArg tolerates the JSON value shapes a tool-calling LLM may
// produce for an integer argument: float64 (the json package's default
// number type), int, or a numeric string.
func parseIntArg(v any, fallback int) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n
		}
	}
	return fallback
}

func parseFloatArg(v any, fallback float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return fallback
}
