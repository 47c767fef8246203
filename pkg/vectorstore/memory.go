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

// Package vectorstore implements the vector index abstraction (C2):
// insert/search/delete/count over (id, vector, payload) triples, with a
// cosine-similarity query-result cache. MemoryIndex is the default,
// dependency-free backend; chromem/qdrant/pinecone adapters in this
// package provide pluggable alternatives behind the same Index interface.
package vectorstore

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"ragengine/pkg/chunk"
)

// ErrDimensionMismatch is returned when a query or insert vector's length
// does not match the index's configured dimension.
type ErrDimensionMismatch struct {
	Expected, Got int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Index is the contract every vector backend implements.
type Index interface {
	Insert(ctx context.Context, c chunk.Chunk) error
	InsertBatch(ctx context.Context, chunks []chunk.Chunk) error
	Search(ctx context.Context, queryVec []float32, k int) ([]chunk.RetrievedChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	Clear(ctx context.Context) error
	Count() int
	All() []chunk.Chunk
	Dimension() int
	Close() error
}

const (
	cacheCapacity = 20
	cacheTTL = 300 * time.Second
	cacheHitCosine = 0.95
)

type cacheEntry struct {
	queryVec []float32
	results []chunk.RetrievedChunk
	timestamp time.Time
	// touched tracks recency for LRU eviction; it is bumped on every hit.
	touched time.Time
}

// MemoryIndex is a linear-scan in-process vector index with precomputed
// norms, a bounded-K min-heap for top-k selection, and an LRU query-result
// cache, matching exactly.
type MemoryIndex struct {
	dim int

	mu sync.RWMutex
	chunks map[string]chunk.Chunk
	norms map[string]float64
	order []string // insertion order, for stable tie-break

	cacheMu sync.Mutex
	cache []*cacheEntry
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index for vectors of dimension dim.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim: dim,
		chunks: make(map[string]chunk.Chunk),
		norms: make(map[string]float64),
	}
}

func (idx *MemoryIndex) Dimension() int { return idx.dim }

func (idx *MemoryIndex) Close() error { return nil }

// Insert validates dimension and adds one chunk, evicting the query cache.
func (idx *MemoryIndex) Insert(ctx context.Context, c chunk.Chunk) error {
	return idx.InsertBatch(ctx, []chunk.Chunk{c})
}

// InsertBatch adds multiple chunks under a single write lock so readers
// never observe a torn (half-inserted) state.
func (idx *MemoryIndex) InsertBatch(ctx context.Context, chunks []chunk.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != idx.dim {
			return &ErrDimensionMismatch{Expected: idx.dim, Got: len(c.Embedding)}
		}
	}

	idx.mu.Lock()
	for _, c := range chunks {
		if _, exists := idx.chunks[c.ID]; !exists {
			idx.order = append(idx.order, c.ID)
		}
		idx.chunks[c.ID] = c
		idx.norms[c.ID] = l2norm(c.Embedding)
	}
	idx.mu.Unlock()

	idx.flushCache()
	return nil
}

// heapItem is one candidate held in the bounded-K min-heap during search.
type heapItem struct {
	id string
	similarity float32
	insertPos int
}

// minHeap keeps the K best candidates seen so far, ordered so the worst of
// the K is at the root and evicted first when a better candidate arrives.
type minHeap []heapItem

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].similarity != h[j].similarity {
		return h[i].similarity < h[j].similarity
	}
	// Stable tie-break by insertion order: among equal similarities the
	// later-inserted item is considered "smaller" so it is evicted first,
	// preserving earliest-inserted-first ordering in the final result.
	return h[i].insertPos > h[j].insertPos
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Search returns the top-k chunks by cosine similarity to queryVec.
func (idx *MemoryIndex) Search(ctx context.Context, queryVec []float32, k int) ([]chunk.RetrievedChunk, error) {
	if len(queryVec) != idx.dim {
		return nil, &ErrDimensionMismatch{Expected: idx.dim, Got: len(queryVec)}
	}
	if k <= 0 {
		return nil, nil
	}

	if cached, ok := idx.cacheLookup(queryVec, k); ok {
		return cached, nil
	}

	idx.mu.RLock()
	qnorm := l2norm(queryVec)
	h := &minHeap{}
	heap.Init(h)
	for pos, id := range idx.order {
		c, ok := idx.chunks[id]
		if !ok {
			continue
		}
		sim := cosineWithNorms(queryVec, qnorm, c.Embedding, idx.norms[id])
		item := heapItem{id: id, similarity: sim, insertPos: pos}
		if h.Len() < k {
			heap.Push(h, item)
		} else if h.Len() > 0 && (*h)[0].similarity < sim {
			heap.Pop(h)
			heap.Push(h, item)
		}
	}
	items := make([]heapItem, h.Len())
	copy(items, *h)
	idx.mu.RUnlock()

	// Sort descending by similarity, stable tie-break by insertion order.
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[j].similarity > items[i].similarity ||
				(items[j].similarity == items[i].similarity && items[j].insertPos < items[i].insertPos) {
				items[i], items[j] = items[j], items[i]
			}
		}
	}

	idx.mu.RLock()
	out := make([]chunk.RetrievedChunk, 0, len(items))
	for rank, it := range items {
		c := idx.chunks[it.id]
		out = append(out, chunk.RetrievedChunk{
			Chunk: c,
			Similarity: it.similarity,
			Rank: rank + 1,
			SourceDocument: c.DocumentID,
			PageNumber: c.Metadata.PageNumber,
		})
	}
	idx.mu.RUnlock()

	idx.cacheStore(queryVec, out)
	return out, nil
}

// DeleteByDocument removes all chunks with the given document id.
func (idx *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	newOrder := idx.order[:0]
	for _, id := range idx.order {
		c, ok := idx.chunks[id]
		if !ok {
			continue
		}
		if c.DocumentID == documentID {
			delete(idx.chunks, id)
			delete(idx.norms, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	idx.order = newOrder
	idx.mu.Unlock()

	idx.flushCache()
	return nil
}

// Clear empties the index.
func (idx *MemoryIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	idx.chunks = make(map[string]chunk.Chunk)
	idx.norms = make(map[string]float64)
	idx.order = nil
	idx.mu.Unlock()

	idx.flushCache()
	return nil
}

// Count returns the number of indexed chunks.
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// All returns a snapshot copy of every indexed chunk, in insertion order.
func (idx *MemoryIndex) All() []chunk.Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]chunk.Chunk, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.chunks[id])
	}
	return out
}

func l2norm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return sumSq
}

// cosineWithNorms computes cosine similarity given precomputed *squared*
// norms (l2norm's name is historical; it actually returns the sum of
// squares) to avoid recomputing sqrt per candidate.
func cosineWithNorms(a []float32, aSumSq float64, b []float32, bSumSq float64) float32 {
	if aSumSq == 0 || bSumSq == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	denom := math.Sqrt(aSumSq) * math.Sqrt(bSumSq)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// cacheLookup returns cached results when a near-identical query (cosine
// similarity > 0.95 to a cached key) is found and not expired, sliced to k.
func (idx *MemoryIndex) cacheLookup(queryVec []float32, k int) ([]chunk.RetrievedChunk, bool) {
	idx.cacheMu.Lock()
	defer idx.cacheMu.Unlock()

	now := time.Now()
	qnorm := l2norm(queryVec)
	for _, e := range idx.cache {
		if now.Sub(e.timestamp) > cacheTTL {
			continue
		}
		sim := cosineWithNorms(queryVec, qnorm, e.queryVec, l2norm(e.queryVec))
		if float64(sim) > cacheHitCosine {
			e.touched = now
			if k >= len(e.results) {
				return append([]chunk.RetrievedChunk(nil), e.results...), true
			}
			return append([]chunk.RetrievedChunk(nil), e.results[:k]...), true
		}
	}
	return nil, false
}

func (idx *MemoryIndex) cacheStore(queryVec []float32, results []chunk.RetrievedChunk) {
	idx.cacheMu.Lock()
	defer idx.cacheMu.Unlock()

	now := time.Now()
	entry := &cacheEntry{
		queryVec: append([]float32(nil), queryVec...),
		results: append([]chunk.RetrievedChunk(nil), results...),
		timestamp: now,
		touched: now,
	}
	idx.cache = append(idx.cache, entry)

	if len(idx.cache) > cacheCapacity {
		// Evict least-recently-touched entry.
		oldest := 0
		for i, e := range idx.cache {
			if e.touched.Before(idx.cache[oldest].touched) {
				oldest = i
			}
		}
		idx.cache = append(idx.cache[:oldest], idx.cache[oldest+1:]...)
	}
}

func (idx *MemoryIndex) flushCache() {
	idx.cacheMu.Lock()
	idx.cache = nil
	idx.cacheMu.Unlock()
}
