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

// Package hybrid implements the hybrid searcher (C5): dense top-K
// candidate retrieval rescored with BM25 and fused by Reciprocal Rank
// Fusion (rrfK=60), restricted to chunks already present in the dense
// candidate set.
package hybrid

import (
	"context"
	"sort"
	"strings"

	"ragengine/pkg/bm25"
	"ragengine/pkg/chunk"
	"ragengine/pkg/vectorstore"
)

const (
	rrfK = 60
	weightVec = 0.7
	weightKw = 0.3
)

// Searcher runs the dense+BM25+RRF pipeline against a vector index.
type Searcher struct {
	index vectorstore.Index
}

// New creates a Searcher over the given index.
func New(index vectorstore.Index) *Searcher {
	return &Searcher{index: index}
}

// Search runs C5: dense search for 2k, BM25 rescoring of those candidates
// against the joined expanded query, RRF fusion. Only chunks present in
// the dense candidate set survive; this is intentional and must be
// preserved even though it drops keyword-only matches.
func (s *Searcher) Search(ctx context.Context, queryVec []float32, expandedVariants []string, k int) ([]chunk.RetrievedChunk, error) {
	dense, err := s.index.Search(ctx, queryVec, 2*k)
	if err != nil {
		return nil, err
	}
	if len(dense) == 0 {
		return nil, nil
	}

	candidates := make(map[string]string, len(dense))
	denseRank := make(map[string]int, len(dense))
	byID := make(map[string]chunk.RetrievedChunk, len(dense))
	for i, rc := range dense {
		candidates[rc.Chunk.ID] = rc.Chunk.Content
		denseRank[rc.Chunk.ID] = i // 0-based
		byID[rc.Chunk.ID] = rc
	}

	joinedQuery := strings.Join(expandedVariants, " ")
	snap := bm25.BuildSnapshot(candidates)
	terms := bm25.Tokenize(joinedQuery)
	kwScores := snap.ScoreAll(terms)

	// Rank by BM25 score, descending, to get a keyword rank per candidate.
	kwRanked := make([]string, 0, len(kwScores))
	for id := range kwScores {
		kwRanked = append(kwRanked, id)
	}
	sort.Slice(kwRanked, func(i, j int) bool {
		return kwScores[kwRanked[i]] > kwScores[kwRanked[j]]
	})
	kwRank := make(map[string]int, len(kwRanked))
	for i, id := range kwRanked {
		kwRank[id] = i
	}

	type fusedItem struct {
		id string
		score float64
		denseRank int
	}
	fused := make([]fusedItem, 0, len(dense))
	for id, rank := range denseRank {
		kr, ok := kwRank[id]
		if !ok {
			kr = len(kwRanked) // worst possible rank if absent from BM25 ranking
		}
		score := weightVec/(float64(rrfK+rank+1)) + weightKw/(float64(rrfK+kr+1))
		fused = append(fused, fusedItem{id: id, score: score, denseRank: rank})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].denseRank < fused[j].denseRank
	})

	out := make([]chunk.RetrievedChunk, 0, len(fused))
	for rank, f := range fused {
		rc := byID[f.id]
		rc.Rank = rank + 1
		out = append(out, rc)
	}
	return out, nil
}
