package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/pkg/chunk"
	"ragengine/pkg/embedder"
	"ragengine/pkg/llm"
	"ragengine/pkg/vectorstore"
)

func newTestOrchestrator(t *testing.T, reply string) (*Orchestrator, embedder.Embedder) {
	t.Helper()
	emb := embedder.New(32)
	gw := llm.New([]llm.Backend{&llm.Mock{Name: "mock", Reply: reply, Available: true}}, nil)
	o := New(Options{Embedder: emb, Gateway: gw})
	return o, emb
}

func TestQueryEmptyQuestionIsHardError(t *testing.T) {
	o, _ := newTestOrchestrator(t, "answer")
	_, err := o.Query(context.Background(), " ", 3, "c1", nil)
	require.Error(t, err)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindEmptyQuery, qerr.Kind)
}

func TestQueryEmptyIndexGoesDirectChat(t *testing.T) {
	o, _ := newTestOrchestrator(t, "direct answer")
	o.RegisterContainer(chunk.Container{ID: "c1", Dimension: 32}, vectorstore.NewMemoryIndex(32))

	result, err := o.Query(context.Background(), "what time is it", 3, "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, chunk.GatingDirectChat, result.Metadata.GatingDecision)
	assert.Equal(t, "direct answer", result.Answer)
}

func TestQuerySmallTalkBypassesRetrieval(t *testing.T) {
	o, _ := newTestOrchestrator(t, "hello there")
	o.RegisterContainer(chunk.Container{ID: "c1", Dimension: 32}, vectorstore.NewMemoryIndex(32))

	result, err := o.Query(context.Background(), "hi", 3, "c1", nil)
	require.NoError(t, err)
	assert.Empty(t, result.RetrievedChunks)
	assert.NotEmpty(t, result.Answer)
}

func TestQuerySelfHit(t *testing.T) {
	ctx := context.Background()
	o, emb := newTestOrchestrator(t, "mitochondria are the powerhouse of the cell.")
	idx := vectorstore.NewMemoryIndex(32)
	o.RegisterContainer(chunk.Container{ID: "c1", Dimension: 32}, idx)

	content := "The mitochondrion is the powerhouse of the cell."
	v, err := emb.Embed(ctx, content)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, chunk.Chunk{ID: "1", DocumentID: "doc1", Content: content, Embedding: v}))

	result, err := o.Query(ctx, "powerhouse of the cell", 1, "c1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.RetrievedChunks)
	assert.Equal(t, "1", result.RetrievedChunks[0].Chunk.ID)
	assert.Equal(t, 1, result.RetrievedChunks[0].Rank)
}

func TestStrictBlockedResultEmitsTerminalMarker(t *testing.T) {
	o, _ := newTestOrchestrator(t, "unused")
	reranked := makeRanked(0.10, 0.09, 0.08)

	var sawFinal bool
	result := o.strictBlockedResult("q1", reranked, time.Now(), func(c llm.StreamChunk) {
		if c.IsFinal {
			sawFinal = true
		}
	})

	assert.True(t, sawFinal)
	assert.Equal(t, chunk.GatingStrictBlocked, result.Metadata.GatingDecision)
	assert.Len(t, result.RetrievedChunks, 3)
}

func TestExtractiveFallbackUsesRerankedPoolAndEmitsTerminalMarker(t *testing.T) {
	o, _ := newTestOrchestrator(t, "unused")
	reranked := makeRanked(0.20, 0.19, 0.18, 0.17, 0.16)
	for i := range reranked {
		reranked[i].Chunk.Content = "relevant content about the powerhouse of the cell"
	}

	var finalCount int
	result, err := o.extractiveFallback(context.Background(), "q1", "powerhouse of the cell",
		reranked, []string{"no high-confidence context"}, time.Now(), 3,
		func(c llm.StreamChunk) {
			if c.IsFinal {
				finalCount++
			}
		})

	require.NoError(t, err)
	assert.Equal(t, 1, finalCount, "exactly one terminal marker per generation")
	assert.Equal(t, chunk.GatingFallbackOnDeviceLow, result.Metadata.GatingDecision)
	assert.NotEmpty(t, result.RetrievedChunks, "extractive context must come from the reranked pool, not the empty gated set")
}
