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

package engine

import "ragengine/pkg/chunk"

var trivialQueries = map[string]bool{
	"test": true, "help": true, "hello": true, "hi": true, "hey": true,
	"ok": true, "okay": true, "thanks": true, "thank you": true,
}

const (
	strictMinSimilarity = 0.52
	lenientMinSimilarity = 0.35
)

// applyGating implements threshold filtering, acceptance override,
// strict-mode block, and fallback-to-ondevice routing. effectiveK sizes
// the empty-filter acceptance-override fallback (top 2*effectiveK).
func applyGating(reranked []chunk.RetrievedChunk, strictMode bool, normalizedQuery string, effectiveK int) ([]chunk.RetrievedChunk, chunk.GatingDecision, []string) {
	if len(reranked) == 0 {
		return nil, chunk.GatingFallbackOnDeviceLow, []string{"no high-confidence context"}
	}

	lenient := false // the engine currently exposes no lenient-mode knob; reserved for future per-container override
	trivial := trivialQueries[normalizedQuery]

	minSim := lenientMinSimilarity
	if strictMode && !lenient && !trivial {
		minSim = strictMinSimilarity
	}

	top := float64(reranked[0].Similarity)
	second := 0.0
	if len(reranked) > 1 {
		second = float64(reranked[1].Similarity)
	}
	avg5 := averageTopN(reranked, 5)

	override := top >= 0.50 ||
		(top >= 0.38 && top-avg5 >= 0.05) ||
		(top-second >= 0.07)

	filtered := make([]chunk.RetrievedChunk, 0, len(reranked))
	for _, rc := range reranked {
		if float64(rc.Similarity) >= minSim {
			filtered = append(filtered, rc)
		}
	}

	if len(filtered) == 0 {
		if override || lenient || trivial {
			n := 2 * effectiveK
			if n > len(reranked) {
				n = len(reranked)
			}
			return reranked[:n], chunk.GatingAccepted, nil
		}
		return nil, chunk.GatingFallbackOnDeviceLow, []string{"no high-confidence context"}
	}

	if strictMode && !override && !lenient && !trivial {
		strongCount := 0
		for _, rc := range filtered {
			if float64(rc.Similarity) >= strictMinSimilarity {
				strongCount++
			}
		}
		if strongCount < 3 {
			return filtered, chunk.GatingStrictBlocked, []string{"insufficient supporting evidence"}
		}
	}

	return filtered, chunk.GatingAccepted, nil
}

func averageTopN(chunks []chunk.RetrievedChunk, n int) float64 {
	if n > len(chunks) {
		n = len(chunks)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(chunks[i].Similarity)
	}
	return sum / float64(n)
}

// coveragePatch implements coverage-patch rule: if the
// re-ranker pool spans more than one document but the filtered set spans
// fewer than desired, inject the highest-scoring survivors from missing
// documents (preserving rank order) until coverage or capacity is met.
func coveragePatch(pool, filtered []chunk.RetrievedChunk, effectiveK, requestedK int) []chunk.RetrievedChunk {
	poolDocs := uniqueDocs(pool)
	if len(poolDocs) <= 1 {
		return filtered
	}

	desired := min3(len(poolDocs), effectiveK, 3)
	filteredDocs := uniqueDocs(filtered)
	if len(filteredDocs) >= desired {
		return filtered
	}

	capacity := 2 * effectiveK
	if len(filtered) > capacity {
		capacity = len(filtered)
	}

	have := make(map[string]bool, len(filteredDocs))
	for d := range filteredDocs {
		have[d] = true
	}

	out := append([]chunk.RetrievedChunk(nil), filtered...)
	for _, rc := range pool {
		if len(uniqueDocsFromSlice(out)) >= desired || len(out) >= capacity {
			break
		}
		if have[rc.SourceDocument] {
			continue
		}
		out = append(out, rc)
		have[rc.SourceDocument] = true
	}
	return out
}

func uniqueDocs(chunks []chunk.RetrievedChunk) map[string]bool {
	m := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		m[c.SourceDocument] = true
	}
	return m
}

func uniqueDocsFromSlice(chunks []chunk.RetrievedChunk) map[string]bool {
	return uniqueDocs(chunks)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
