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

// Package mmr implements the diversifier (C7): greedy Maximal Marginal
// Relevance selection over a candidate set already ranked by relevance.
package mmr

import (
	"context"
	"math"

	"ragengine/pkg/chunk"
)

const (
	lambdaStrict = 0.75
	lambdaNormal = 0.70
)

// Diversify selects up to k diverse candidates via MMR. Candidates must
// already carry their stored similarity-to-query. The output is always a
// subset of the input and its first element is the highest-similarity
// input element.
func Diversify(ctx context.Context, candidates []chunk.RetrievedChunk, k int, strictMode bool) ([]chunk.RetrievedChunk, error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	lambda := lambdaNormal
	if strictMode {
		lambda = lambdaStrict
	}

	remaining := make([]chunk.RetrievedChunk, len(candidates))
	copy(remaining, candidates)

	// Start with the top-scoring candidate by similarity.
	bestIdx := 0
	for i, c := range remaining {
		if c.Similarity > remaining[bestIdx].Similarity {
			bestIdx = i
		}
	}

	selected := []chunk.RetrievedChunk{remaining[bestIdx]}
	remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

	for len(selected) < k && len(remaining) > 0 {
		select {
		case <-ctx.Done():
			return selected, ctx.Err()
		default:
		}

		bestScore := math.Inf(-1)
		bestPos := -1
		for i, cand := range remaining {
			maxSimSelected := 0.0
			for _, s := range selected {
				sim := cosine(cand.Chunk.Embedding, s.Chunk.Embedding)
				if sim > maxSimSelected {
					maxSimSelected = sim
				}
			}
			mmrScore := lambda*float64(cand.Similarity) - (1-lambda)*maxSimSelected
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestPos = i
			}
		}

		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	for i := range selected {
		selected[i].Rank = i + 1
	}
	return selected, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
