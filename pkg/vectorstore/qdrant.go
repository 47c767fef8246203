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
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"ragengine/pkg/chunk"
)

// QdrantIndex adapts a Qdrant collection to the Index contract over
// gRPC.
type QdrantIndex struct {
	client *qdrant.Client
	collection string
	dim int
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex dials host (host[:port], default port 6334) and ensures
// collection exists with a cosine-distance vector config of size dim.
func NewQdrantIndex(host, collection string, dim int) (*QdrantIndex, error) {
	if host == "" {
		host = "localhost"
	}
	if collection == "" {
		collection = "default"
	}

	port := 6334
	if h, p, splitErr := net.SplitHostPort(host); splitErr == nil {
		if n, convErr := strconv.Atoi(p); convErr == nil {
			host, port = h, n
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s: %w\n"+
			" TIP: ensure Qdrant is running (docker run -p 6333:6333 -p 6334:6334 qdrant/qdrant)",
			host, err)
	}

	idx := &QdrantIndex{client: client, collection: collection, dim: dim}
	if err := idx.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size: uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (q *QdrantIndex) Dimension() int { return q.dim }
func (q *QdrantIndex) Close() error { return q.client.Close() }

func (q *QdrantIndex) Insert(ctx context.Context, ch chunk.Chunk) error {
	return q.InsertBatch(ctx, []chunk.Chunk{ch})
}

func (q *QdrantIndex) InsertBatch(ctx context.Context, chunks []chunk.Chunk) error {
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != q.dim {
			return &ErrDimensionMismatch{Expected: q.dim, Got: len(ch.Embedding)}
		}
		payload := map[string]*qdrant.Value{
			"document_id": qdrant.NewValueString(ch.DocumentID),
			"content": qdrant.NewValueString(ch.Content),
		}
		points = append(points, &qdrant.PointStruct{
			Id: qdrant.NewID(ch.ID),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: payload,
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, queryVec []float32, k int) ([]chunk.RetrievedChunk, error) {
	if len(queryVec) != q.dim {
		return nil, &ErrDimensionMismatch{Expected: q.dim, Got: len(queryVec)}
	}
	if k <= 0 {
		return nil, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query: qdrant.NewQuery(queryVec...),
		Limit: qdrant.PtrOf(uint64(k)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	out := make([]chunk.RetrievedChunk, 0, len(points))
	for i, p := range points {
		docID, content := payloadStrings(p.Payload)
		id := pointIDString(p.Id)
		out = append(out, chunk.RetrievedChunk{
			Chunk: chunk.Chunk{
				ID: id,
				DocumentID: docID,
				Content: content,
			},
			Similarity: p.Score,
			Rank: i + 1,
			SourceDocument: docID,
		})
	}
	return out, nil
}

func (q *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("document_id", documentID),
		},
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete by document: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("qdrant: clear: %w", err)
	}
	return q.ensureCollection(ctx)
}

func (q *QdrantIndex) Count() int {
	info, err := q.client.GetCollectionInfo(context.Background(), q.collection)
	if err != nil || info == nil || info.PointsCount == nil {
		return 0
	}
	return int(*info.PointsCount)
}

func (q *QdrantIndex) All() []chunk.Chunk {
	// Scrolling the full collection is expensive over gRPC; callers
	// needing a document listing should track it themselves, as
	// pkg/engine's ContainerRuntime does.
	return nil
}

func payloadStrings(payload map[string]*qdrant.Value) (documentID, content string) {
	if v, ok := payload["document_id"]; ok {
		documentID = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		content = v.GetStringValue()
	}
	return
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}
