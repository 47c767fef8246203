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

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"ragengine/pkg/chunk"
	"ragengine/pkg/embedder"
	"ragengine/pkg/vectorstore"
)

// RawDocument is a single source document awaiting ingestion.
type RawDocument struct {
	ID string
	Filename string
	Content string
}

// Progress summarizes an IndexDocuments call. It is returned by value
// when the call completes; there is no way to read it while the call
// is still running.
type Progress struct {
	DocumentsTotal int
	DocumentsProcessed int
	ChunksIndexed int
	Failed int
}

// DocumentStoreConfig configures a DocumentStore.
type DocumentStoreConfig struct {
	ContainerID string
	Chunker ChunkerConfig
	Retry RetryConfig
}

// DocumentStore turns RawDocuments into indexed chunk.Chunk records: it
// chunks content, embeds each chunk, retries transient embedding
// failures, and writes the result into a vectorstore.Index. Covers only
// the synchronous indexing path; file-watching and live-reload are out
// of scope for a query engine.
type DocumentStore struct {
	containerID string
	chunker Chunker
	embedder embedder.Embedder
	index vectorstore.Index
	retryer *Retryer
	logger *slog.Logger

	mu sync.RWMutex
	documents map[string]chunk.Document

	processed atomic.Int64
	failed atomic.Int64
}

// NewDocumentStore builds a DocumentStore over an existing index.
func NewDocumentStore(cfg DocumentStoreConfig, emb embedder.Embedder, idx vectorstore.Index, logger *slog.Logger) (*DocumentStore, error) {
	chunker, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	return &DocumentStore{
		containerID: cfg.ContainerID,
		chunker: chunker,
		embedder: emb,
		index: idx,
		retryer: NewRetryer(retry),
		logger: logger,
		documents: make(map[string]chunk.Document),
	}, nil
}

// IndexDocuments chunks, embeds, and stores every doc, retrying
// transient embedding failures per-chunk. It returns the first error it
// met (after any retries) but keeps processing remaining documents so a
// single bad document doesn't abort an entire batch.
func (s *DocumentStore) IndexDocuments(ctx context.Context, docs []RawDocument) (Progress, error) {
	progress := Progress{DocumentsTotal: len(docs)}
	var firstErr error

	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return progress, ctx.Err()
		default:
		}

		n, err := s.indexOne(ctx, doc)
		progress.ChunksIndexed += n
		progress.DocumentsProcessed++
		if err != nil {
			progress.Failed++
			s.failed.Add(1)
			s.logger.Warn("ingest: document failed", "document_id", doc.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.processed.Add(1)
	}
	return progress, firstErr
}

func (s *DocumentStore) indexOne(ctx context.Context, doc RawDocument) (int, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	spans, err := s.chunker.Split(doc.Content)
	if err != nil {
		return 0, fmt.Errorf("ingest: chunk %s: %w", doc.ID, err)
	}

	chunks := make([]chunk.Chunk, 0, len(spans))
	for _, span := range spans {
		vec, err := DoWithResult(ctx, s.retryer, "embed_chunk", func() ([]float32, error) {
			return s.embedder.Embed(ctx, span.Content)
		})
		if err != nil {
			return len(chunks), fmt.Errorf("ingest: embed %s chunk %d: %w", doc.ID, span.Index, err)
		}

		chunks = append(chunks, chunk.Chunk{
			ID: fmt.Sprintf("%s:%d", doc.ID, span.Index),
			DocumentID: doc.ID,
			Content: span.Content,
			Embedding: vec,
			Metadata: chunk.Metadata{
				ChunkIndex: span.Index,
				WordCount: wordCount(span.Content),
			},
		})
	}

	if err := s.index.InsertBatch(ctx, chunks); err != nil {
		return len(chunks), fmt.Errorf("ingest: store %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	s.documents[doc.ID] = chunk.Document{
		ID: doc.ID,
		Filename: doc.Filename,
		ContainerID: s.containerID,
		TotalChunks: len(chunks),
	}
	s.mu.Unlock()

	return len(chunks), nil
}

// RemoveDocument deletes a document's chunks from the index.
func (s *DocumentStore) RemoveDocument(ctx context.Context, documentID string) error {
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("ingest: remove %s: %w", documentID, err)
	}
	s.mu.Lock()
	delete(s.documents, documentID)
	s.mu.Unlock()
	return nil
}

// Documents returns every document currently tracked by this store, in
// the shape pkg/tool's ContainerStore interface expects.
func (s *DocumentStore) Documents() []chunk.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chunk.Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	return out
}

// Index returns the underlying vector index, in the shape pkg/tool's
// ContainerStore interface expects.
func (s *DocumentStore) Index() vectorstore.Index { return s.index }

func wordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			count++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return count
}
