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

// Package rerank implements the multi-signal re-ranker (C6): semantic
// similarity combined with keyword overlap, term proximity and position
// score.
package rerank

import (
	"context"
	"sort"
	"strings"

	"ragengine/pkg/chunk"
)

const (
	weightSem = 1.0
	weightKw = 0.20
	weightProx = 0.15
	weightPos = 0.05
)

// yieldEvery is the cancellation-check cadence within the inner scoring
// loop, per 16-64 item suspension-point requirement.
const yieldEvery = 32

// Rerank scores each candidate and returns the top 3k, descending by
// rerank_score, ties broken by semantic similarity.
func Rerank(ctx context.Context, candidates []chunk.RetrievedChunk, query string, topN int) ([]chunk.RetrievedChunk, error) {
	queryTerms := eligibleTerms(query)

	type scored struct {
		rc chunk.RetrievedChunk
		score float64
	}
	out := make([]scored, 0, len(candidates))

	for i, rc := range candidates {
		if i%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		sSem := float64(rc.Similarity)
		docTokens := tokenize(rc.Chunk.Content)
		sKw := keywordOverlap(queryTerms, docTokens)
		sProx := proximity(queryTerms, docTokens)
		sPos := 1.0 / float64(rc.Chunk.Metadata.ChunkIndex+10)

		score := weightSem*sSem + weightKw*sKw + weightProx*sProx + weightPos*sPos
		out = append(out, scored{rc: rc, score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].rc.Similarity > out[j].rc.Similarity
	})

	if topN > len(out) {
		topN = len(out)
	}
	result := make([]chunk.RetrievedChunk, topN)
	for i := 0; i < topN; i++ {
		result[i] = out[i].rc
		result[i].Rank = i + 1
	}
	return result, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func eligibleTerms(query string) []string {
	var out []string
	for _, t := range tokenize(query) {
		if len(t) > 2 {
			out = append(out, t)
		}
	}
	return out
}

// keywordOverlap is |Q ∩ D| / max(|Q|, 1) over lowercased token sets.
func keywordOverlap(queryTerms, docTokens []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = true
	}
	qSet := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		qSet[t] = true
	}
	var matches int
	for t := range qSet {
		if docSet[t] {
			matches++
		}
	}
	denom := len(qSet)
	if denom < 1 {
		denom = 1
	}
	return float64(matches) / float64(denom)
}

// proximity finds the minimum word-index distance between any two
// eligible query terms occurring in the content, returning 1/(minDist+1),
// or 0 when fewer than two eligible terms are present.
func proximity(queryTerms, docTokens []string) float64 {
	if len(queryTerms) < 2 {
		return 0
	}
	qSet := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		qSet[t] = true
	}

	positions := make(map[string][]int)
	for i, tok := range docTokens {
		if qSet[tok] {
			positions[tok] = append(positions[tok], i)
		}
	}
	if len(positions) < 2 {
		return 0
	}

	minDist := -1
	terms := make([]string, 0, len(positions))
	for t := range positions {
		terms = append(terms, t)
	}
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			for _, pi := range positions[terms[i]] {
				for _, pj := range positions[terms[j]] {
					d := pi - pj
					if d < 0 {
						d = -d
					}
					if minDist == -1 || d < minDist {
						minDist = d
					}
				}
			}
		}
	}
	if minDist == -1 {
		return 0
	}
	return 1.0 / float64(minDist+1)
}
