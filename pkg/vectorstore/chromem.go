// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectorstore

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"ragengine/pkg/chunk"
)

// ChromemIndex adapts philippgille/chromem-go, an embedded vector store,
// to the Index contract. It persists to disk when path is non-empty.
type ChromemIndex struct {
	db *chromem.DB
	collection *chromem.Collection
	dim int
}

var _ Index = (*ChromemIndex)(nil)

// NewChromemIndex opens (or creates) a chromem collection at path.
func NewChromemIndex(path, collectionName string, dim int) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem: open %s: %w", path, err)
		}
	}

	if collectionName == "" {
		collectionName = "default"
	}
	// We supply our own precomputed embeddings, so no embedding func is
	// registered with the collection.
	coll, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: collection %s: %w", collectionName, err)
	}

	return &ChromemIndex{db: db, collection: coll, dim: dim}, nil
}

func (c *ChromemIndex) Dimension() int { return c.dim }
func (c *ChromemIndex) Close() error { return nil }

func (c *ChromemIndex) Insert(ctx context.Context, ch chunk.Chunk) error {
	return c.InsertBatch(ctx, []chunk.Chunk{ch})
}

func (c *ChromemIndex) InsertBatch(ctx context.Context, chunks []chunk.Chunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != c.dim {
			return &ErrDimensionMismatch{Expected: c.dim, Got: len(ch.Embedding)}
		}
		docs = append(docs, chromem.Document{
			ID: ch.ID,
			Content: ch.Content,
			Embedding: ch.Embedding,
			Metadata: map[string]string{
				"document_id": ch.DocumentID,
			},
		})
	}
	return c.collection.AddDocuments(ctx, docs, 1)
}

func (c *ChromemIndex) Search(ctx context.Context, queryVec []float32, k int) ([]chunk.RetrievedChunk, error) {
	if len(queryVec) != c.dim {
		return nil, &ErrDimensionMismatch{Expected: c.dim, Got: len(queryVec)}
	}
	if k <= 0 {
		return nil, nil
	}
	if c.collection.Count() == 0 {
		return nil, nil
	}
	if k > c.collection.Count() {
		k = c.collection.Count()
	}

	results, err := c.collection.QueryEmbedding(ctx, queryVec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	out := make([]chunk.RetrievedChunk, 0, len(results))
	for i, r := range results {
		out = append(out, chunk.RetrievedChunk{
			Chunk: chunk.Chunk{
				ID: r.ID,
				DocumentID: r.Metadata["document_id"],
				Content: r.Content,
				Embedding: r.Embedding,
			},
			Similarity: r.Similarity,
			Rank: i + 1,
			SourceDocument: r.Metadata["document_id"],
		})
	}
	return out, nil
}

func (c *ChromemIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	return c.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil)
}

func (c *ChromemIndex) Clear(ctx context.Context) error {
	name := c.collection.Name
	if err := c.db.DeleteCollection(name); err != nil {
		return err
	}
	coll, err := c.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return err
	}
	c.collection = coll
	return nil
}

func (c *ChromemIndex) Count() int { return c.collection.Count() }

func (c *ChromemIndex) All() []chunk.Chunk {
	// chromem-go does not expose a bulk "list all documents" API; callers
	// needing a full snapshot should maintain their own document index
	// (pkg/engine's ContainerRuntime) rather than relying on the backend.
	return nil
}
