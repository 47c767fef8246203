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

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragengine/pkg/assemble"
	"ragengine/pkg/chunk"
	"ragengine/pkg/embedder"
	"ragengine/pkg/hybrid"
	"ragengine/pkg/llm"
	"ragengine/pkg/mmr"
	"ragengine/pkg/quality"
	"ragengine/pkg/queryexpand"
	"ragengine/pkg/rerank"
	"ragengine/pkg/telemetry"
	"ragengine/pkg/tool"
	"ragengine/pkg/vectorstore"
)

var smallTalkQueries = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	"ok": true, "thanks": true, "thank you": true, "bye": true,
	"goodbye": true, "hola": true, "hiya": true,
}

// ContainerRuntime bundles one container's index and document listing.
// It implements pkg/tool's ContainerStore interface directly.
type ContainerRuntime struct {
	Container chunk.Container
	VecIndex vectorstore.Index
	docs []chunk.Document

	mu sync.RWMutex
}

func (r *ContainerRuntime) AddDocument(d chunk.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, d)
}

// DocumentList returns a snapshot copy of the container's documents.
func (r *ContainerRuntime) DocumentList() []chunk.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chunk.Document, len(r.docs))
	copy(out, r.docs)
	return out
}

func (r *ContainerRuntime) Index() vectorstore.Index { return r.VecIndex }
func (r *ContainerRuntime) Documents() []chunk.Document { return r.DocumentList() }

// Orchestrator is the C12 pipeline orchestrator: Query(ctx, question, k,
// containerID, sink) -> QueryResult.
type Orchestrator struct {
	embedder embedder.Embedder
	expander queryexpand.Expander
	gateway *llm.Gateway
	extractive llm.Backend
	tools *tool.Handler
	recorder *telemetry.Recorder
	logger *slog.Logger

	containersMu sync.RWMutex
	containers map[string]*ContainerRuntime
}

// Options bundles the orchestrator's component dependencies.
type Options struct {
	Embedder embedder.Embedder
	Expander queryexpand.Expander
	Gateway *llm.Gateway
	Extractive llm.Backend
	Tools *tool.Handler
	Recorder *telemetry.Recorder
	Logger *slog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Expander == nil {
		opts.Expander = queryexpand.New()
	}
	o := &Orchestrator{
		embedder: opts.Embedder,
		expander: opts.Expander,
		gateway: opts.Gateway,
		extractive: opts.Extractive,
		tools: opts.Tools,
		recorder: opts.Recorder,
		logger: opts.Logger,
		containers: make(map[string]*ContainerRuntime),
	}
	if opts.Tools != nil && opts.Gateway != nil {
		opts.Gateway.SetTools(opts.Tools)
	}
	return o
}

// RegisterContainer adds or replaces a container's runtime.
func (o *Orchestrator) RegisterContainer(c chunk.Container, idx vectorstore.Index) *ContainerRuntime {
	rt := &ContainerRuntime{Container: c, VecIndex: idx}
	o.containersMu.Lock()
	o.containers[c.ID] = rt
	o.containersMu.Unlock()
	return rt
}

// SetTools installs the tool handler C11 dispatches into, and propagates
// it to the gateway so every tool-aware backend in the fallback chain can
// call it mid-generation. Tools are typically wired after every
// container's document store exists, since pkg/tool.New takes its
// container-store map at construction time.
func (o *Orchestrator) SetTools(t *tool.Handler) {
	o.tools = t
	if o.gateway != nil {
		o.gateway.SetTools(t)
	}
}

func (o *Orchestrator) container(id string) (*ContainerRuntime, bool) {
	o.containersMu.RLock()
	defer o.containersMu.RUnlock()
	rt, ok := o.containers[id]
	return rt, ok
}

func (o *Orchestrator) timer(ctx context.Context, stage string) func() {
	if o.recorder == nil {
		return func() {}
	}
	return o.recorder.Timer(ctx, stage)
}

// Query is C12's top-level entry point.
func (o *Orchestrator) Query(ctx context.Context, question string, k int, containerID string, sink llm.Sink) (*chunk.QueryResult, error) {
	stop := o.timer(ctx, telemetry.StageQueryReceived)
	normalized := strings.ToLower(strings.TrimSpace(question))
	if normalized == "" {
		stop()
		return nil, NewQueryError(KindEmptyQuery, "query", "question must not be empty", question, nil)
	}
	queryWords := len(strings.Fields(normalized))
	effectiveK := 1
	if queryWords <= 2 {
		effectiveK = min(k, 3)
	} else {
		effectiveK = min(k, 10)
	}
	if effectiveK < 1 {
		effectiveK = 1
	}
	stop()

	rt, hasContainer := o.container(containerID)
	if hasContainer {
		ctx = tool.WithContainer(ctx, containerID)
	}

	if queryWords <= 2 && smallTalkQueries[normalized] {
		return o.directChat(ctx, question, []string{"replied without RAG context (small talk)"}, sink)
	}

	if !hasContainer || rt.Index().Count() == 0 {
		return o.directChat(ctx, question, []string{"replied without RAG context"}, sink)
	}

	return o.retrieveAndGenerate(ctx, question, normalized, queryWords, effectiveK, k, rt, sink)
}

func (o *Orchestrator) directChat(ctx context.Context, question string, warnings []string, sink llm.Sink) (*chunk.QueryResult, error) {
	start := time.Now()
	resp, err := o.gateway.GenerateStreaming(ctx, question, "", llm.Config{MaxTokens: 1024}, sink)
	if err != nil {
		return nil, NewQueryError(KindGenerationFailed, "direct_chat", "generation failed", question, err)
	}
	return &chunk.QueryResult{
		QueryID: uuid.NewString(),
		Answer: resp.Text,
		Metadata: chunk.QueryResultMetadata{
			TotalTime: time.Since(start).Seconds(),
			TokensGenerated: resp.TokensGenerated,
			ModelUsed: resp.ModelName,
			GatingDecision: chunk.GatingDirectChat,
		},
		Warnings: warnings,
	}, nil
}

func (o *Orchestrator) retrieveAndGenerate(ctx context.Context, question, normalized string, queryWords, effectiveK, requestedK int, rt *ContainerRuntime, sink llm.Sink) (*chunk.QueryResult, error) {
	queryID := uuid.NewString()
	retrievalStart := time.Now()

	stop := o.timer(ctx, telemetry.StageQueryExpanded)
	variants, err := o.expander.Expand(ctx, question)
	stop()
	if err != nil {
		return nil, NewQueryError(KindGenerationFailed, "query_expand", "expansion failed", question, err)
	}

	stop = o.timer(ctx, telemetry.StageQueryEmbedding)
	qv, err := o.embedder.Embed(ctx, question)
	stop()
	if err != nil {
		return o.directChat(ctx, question, []string{"replied without RAG context (embedding failed)"}, sink)
	}
	if len(qv) != rt.Index().Dimension() {
		o.logger.Warn("embedding dimension mismatch", "container", rt.Container.ID, "expected", rt.Index().Dimension(), "got", len(qv))
	}

	searcher := hybrid.New(rt.Index())
	stop = o.timer(ctx, telemetry.StageHybridRetrieval)
	fused, err := searcher.Search(ctx, qv, variants, 2*effectiveK)
	stop()
	if err != nil {
		return nil, NewQueryError(KindRetrievalEmpty, "hybrid_search", "search failed", question, err)
	}
	if len(fused) == 0 {
		return o.directChat(ctx, question, []string{"replied without RAG context (no candidates)"}, sink)
	}

	stop = o.timer(ctx, telemetry.StageRerankingComplete)
	reranked, err := rerank.Rerank(ctx, fused, question, 3*effectiveK)
	stop()
	if err != nil {
		return nil, NewQueryError(KindCancelled, "rerank", "cancelled", question, err)
	}

	stop = o.timer(ctx, telemetry.StageGatingMetrics)
	gated, decision, gateWarnings := applyGating(reranked, rt.Container.StrictMode, normalized, effectiveK)
	stop()

	if decision == chunk.GatingStrictBlocked {
		return o.strictBlockedResult(queryID, reranked, retrievalStart, sink), nil
	}
	if decision == chunk.GatingFallbackOnDeviceLow {
		return o.extractiveFallback(ctx, queryID, question, reranked, gateWarnings, retrievalStart, requestedK, sink)
	}

	gated = coveragePatch(reranked, gated, effectiveK, requestedK)

	stop = o.timer(ctx, telemetry.StageMMRDiversification)
	diversified, err := mmr.Diversify(ctx, gated, effectiveK, rt.Container.StrictMode)
	stop()
	if err != nil {
		return nil, NewQueryError(KindCancelled, "mmr", "cancelled", question, err)
	}

	budget := o.contextBudget()
	stop = o.timer(ctx, telemetry.StageContextAssembled)
	contextText, chunksUsed, err := assemble.Assemble(ctx, diversified, budget)
	stop()
	if err != nil {
		return nil, NewQueryError(KindCancelled, "assemble", "cancelled", question, err)
	}

	stop = o.timer(ctx, telemetry.StageResponseGenerated)
	genResp, err := o.gateway.GenerateStreaming(ctx, question, contextText, llm.Config{MaxTokens: 1024, Window: 4000}, sink)
	stop()
	if err != nil {
		return nil, NewQueryError(KindModelUnavailable, "generate", "generation failed after fallback exhaustion", question, err)
	}

	stop = o.timer(ctx, telemetry.StageResponseEvaluated)
	totalDocs := countUniqueDocs(rt.DocumentList())
	assessment := quality.Assess(diversified[:chunksUsed], totalDocs, queryWords)
	stop()

	warnings := append(append([]string{}, gateWarnings...), assessment.Warnings...)

	o.timer(ctx, telemetry.StageQueryComplete)()

	return &chunk.QueryResult{
		QueryID: queryID,
		RetrievedChunks: diversified[:chunksUsed],
		Answer: genResp.Text,
		Confidence: assessment.Confidence,
		Warnings: warnings,
		Metadata: chunk.QueryResultMetadata{
			TTFT: genResp.TTFT,
			TotalTime: time.Since(retrievalStart).Seconds(),
			TokensGenerated: genResp.TokensGenerated,
			ModelUsed: genResp.ModelName,
			RetrievalTime: time.Since(retrievalStart).Seconds(),
			StrictMode: rt.Container.StrictMode,
			GatingDecision: decision,
		},
	}, nil
}

func countUniqueDocs(docs []chunk.Document) int {
	return len(docs)
}

// contextBudget sizes the assembled-context character budget around the
// fallback chain's primary backend: large for cloud backends, small for
// on-device ones, medium (the general default) for everything else.
func (o *Orchestrator) contextBudget() int {
	pb := o.gateway.PrimaryBackend()
	if cb, ok := pb.(llm.ContextBudget); ok {
		return cb.MaxContextChars()
	}
	return assemble.BudgetMedium
}

func (o *Orchestrator) strictBlockedResult(queryID string, reranked []chunk.RetrievedChunk, start time.Time, sink llm.Sink) *chunk.QueryResult {
	if sink != nil {
		sink(llm.StreamChunk{IsFinal: true})
	}
	top := reranked
	if len(top) > 3 {
		top = top[:3]
	}
	var sb strings.Builder
	sb.WriteString("Strict Mode: insufficient supporting evidence was found to answer confidently. Top sources:\n")
	for i, rc := range top {
		fmt.Fprintf(&sb, "%d. %s (%.1f%%)\n", i+1, rc.SourceDocument, float64(rc.Similarity)*100)
	}
	return &chunk.QueryResult{
		QueryID: queryID,
		RetrievedChunks: top,
		Answer: sb.String(),
		Confidence: 0,
		Warnings: []string{"insufficient supporting evidence"},
		Metadata: chunk.QueryResultMetadata{
			TotalTime: time.Since(start).Seconds(),
			StrictMode: true,
			GatingDecision: chunk.GatingStrictBlocked,
		},
	}
}

// extractiveFallback routes the query through the on-device extractive
// analyzer, assembling its short context from the reranked pool (not the
// empty gated set GatingFallbackOnDeviceLow carries) capped to the top
// max(requestedK, 3) chunks.
func (o *Orchestrator) extractiveFallback(ctx context.Context, queryID, question string, reranked []chunk.RetrievedChunk, warnings []string, start time.Time, requestedK int, sink llm.Sink) (*chunk.QueryResult, error) {
	defer func() {
		if sink != nil {
			sink(llm.StreamChunk{IsFinal: true})
		}
	}()

	n := requestedK
	if n < 3 {
		n = 3
	}
	if n > len(reranked) {
		n = len(reranked)
	}
	short := reranked[:n]

	maxChars := assemble.BudgetOnDevice
	contextText, used, err := assemble.Assemble(ctx, short, maxChars)
	if err != nil {
		return nil, NewQueryError(KindCancelled, "assemble_extractive", "cancelled", question, err)
	}

	backend := o.extractive
	if backend == nil {
		backend = llm.NewOnDeviceExtractive()
	}
	resp, err := backend.Generate(ctx, question, contextText, llm.Config{}, sink)
	if err != nil {
		return nil, NewQueryError(KindGenerationFailed, "extractive_fallback", "extractive generation failed", question, err)
	}

	allWarnings := append([]string{"no high-confidence context"}, warnings...)
	return &chunk.QueryResult{
		QueryID: queryID,
		RetrievedChunks: short[:used],
		Answer: resp.Text,
		Confidence: 0,
		Warnings: allWarnings,
		Metadata: chunk.QueryResultMetadata{
			TotalTime: time.Since(start).Seconds(),
			GatingDecision: chunk.GatingFallbackOnDeviceLow,
		},
	}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
