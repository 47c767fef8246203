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

package vectorstore

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"ragengine/pkg/chunk"
)

// PineconeIndex adapts a Pinecone index to the Index contract. Pinecone
// indexes must already exist (created via console/API); this adapter
// refuses to create one implicitly.
type PineconeIndex struct {
	client *pinecone.Client
	indexConn *pinecone.IndexConnection
	indexName string
	dim int
}

var _ Index = (*PineconeIndex)(nil)

// NewPineconeIndex connects to an existing Pinecone index named
// collection, using apiKey for authentication.
func NewPineconeIndex(apiKey, collection string, dim int) (*PineconeIndex, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone: api_key is required")
	}
	if collection == "" {
		collection = "ragengine-index"
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: new client: %w", err)
	}

	ctx := context.Background()
	desc, err := client.DescribeIndex(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("pinecone: describe index %s: %w", collection, err)
	}
	conn, err := client.Index(pinecone.NewIndexConnParams{Host: desc.Host})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect to index %s: %w", collection, err)
	}

	return &PineconeIndex{client: client, indexConn: conn, indexName: collection, dim: dim}, nil
}

func (p *PineconeIndex) Dimension() int { return p.dim }
func (p *PineconeIndex) Close() error { return nil }

func (p *PineconeIndex) Insert(ctx context.Context, ch chunk.Chunk) error {
	return p.InsertBatch(ctx, []chunk.Chunk{ch})
}

func (p *PineconeIndex) InsertBatch(ctx context.Context, chunks []chunk.Chunk) error {
	vectors := make([]*pinecone.Vector, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != p.dim {
			return &ErrDimensionMismatch{Expected: p.dim, Got: len(ch.Embedding)}
		}
		meta, err := structpb.NewStruct(map[string]any{
			"document_id": ch.DocumentID,
			"content": ch.Content,
		})
		if err != nil {
			return fmt.Errorf("pinecone: metadata: %w", err)
		}
		vectors = append(vectors, &pinecone.Vector{
			Id: ch.ID,
			Values: ch.Embedding,
			Metadata: meta,
		})
	}
	if _, err := p.indexConn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("pinecone: upsert: %w", err)
	}
	return nil
}

func (p *PineconeIndex) Search(ctx context.Context, queryVec []float32, k int) ([]chunk.RetrievedChunk, error) {
	if len(queryVec) != p.dim {
		return nil, &ErrDimensionMismatch{Expected: p.dim, Got: len(queryVec)}
	}
	if k <= 0 {
		return nil, nil
	}

	resp, err := p.indexConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector: queryVec,
		TopK: uint32(k),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}

	out := make([]chunk.RetrievedChunk, 0, len(resp.Matches))
	for i, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		docID, content := "", ""
		if m.Vector.Metadata != nil {
			meta := m.Vector.Metadata.AsMap()
			if v, ok := meta["document_id"].(string); ok {
				docID = v
			}
			if v, ok := meta["content"].(string); ok {
				content = v
			}
		}
		out = append(out, chunk.RetrievedChunk{
			Chunk: chunk.Chunk{
				ID: m.Vector.Id,
				DocumentID: docID,
				Content: content,
				Embedding: m.Vector.Values,
			},
			Similarity: m.Score,
			Rank: i + 1,
			SourceDocument: docID,
		})
	}
	return out, nil
}

func (p *PineconeIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	filter, err := structpb.NewStruct(map[string]any{"document_id": documentID})
	if err != nil {
		return fmt.Errorf("pinecone: filter: %w", err)
	}
	if err := p.indexConn.DeleteVectorsByFilter(ctx, filter); err != nil {
		return fmt.Errorf("pinecone: delete by document: %w", err)
	}
	return nil
}

func (p *PineconeIndex) Clear(ctx context.Context) error {
	return p.indexConn.DeleteAllVectorsInNamespace(ctx)
}

func (p *PineconeIndex) Count() int {
	stats, err := p.indexConn.DescribeIndexStats(context.Background())
	if err != nil || stats == nil {
		return 0
	}
	return int(stats.TotalVectorCount)
}

func (p *PineconeIndex) All() []chunk.Chunk {
	// Pinecone exposes no bulk listing API; callers needing a document
	// listing should track it themselves, as pkg/engine's
	// ContainerRuntime does.
	return nil
}
