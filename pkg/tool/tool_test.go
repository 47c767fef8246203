package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/pkg/chunk"
	"ragengine/pkg/embedder"
	"ragengine/pkg/vectorstore"
)

type fakeStore struct {
	idx vectorstore.Index
	docs []chunk.Document
}

func (f *fakeStore) Index() vectorstore.Index { return f.idx }
func (f *fakeStore) Documents() []chunk.Document { return f.docs }

func TestSearchDocumentsTruncatesPreview(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(32)
	idx := vectorstore.NewMemoryIndex(32)

	long := strings.Repeat("word ", 200)
	v, err := emb.Embed(ctx, long)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, chunk.Chunk{ID: "1", DocumentID: "doc1", Content: long, Embedding: v}))

	store := &fakeStore{idx: idx, docs: []chunk.Document{{ID: "doc1", Filename: "doc1", TotalChunks: 1}}}
	h := New(map[string]ContainerStore{"c1": store}, emb)

	ctx = WithContainer(ctx, "c1")
	out, err := h.SearchDocuments(ctx, map[string]any{"query": "word"})
	require.NoError(t, err)
	assert.Contains(t, out, " [...]")
	assert.Contains(t, out, "Found 1 relevant chunks")
}

func TestListDocumentsEmpty(t *testing.T) {
	store := &fakeStore{idx: vectorstore.NewMemoryIndex(4)}
	h := New(map[string]ContainerStore{"c1": store}, embedder.New(4))
	ctx := WithContainer(context.Background(), "c1")
	out, err := h.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "No documents")
}

func TestGetDocumentSummaryCaseInsensitive(t *testing.T) {
	store := &fakeStore{docs: []chunk.Document{{Filename: "Report.PDF", TotalChunks: 4}}}
	h := New(map[string]ContainerStore{"c1": store}, embedder.New(4))
	ctx := WithContainer(context.Background(), "c1")
	out, err := h.GetDocumentSummary(ctx, map[string]any{"documentName": "report"})
	require.NoError(t, err)
	assert.Contains(t, out, "Report.PDF")
}

func TestCallCounterIncrementsAndResets(t *testing.T) {
	store := &fakeStore{docs: nil}
	h := New(map[string]ContainerStore{"c1": store}, embedder.New(4))
	ctx := WithContainer(context.Background(), "c1")
	_, _ = h.Call(ctx, "list_documents", nil)
	_, _ = h.Call(ctx, "list_documents", nil)
	assert.Equal(t, int64(2), h.CallCount())
	assert.Equal(t, int64(0), h.CallCount())
}
