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

// Package quality implements the quality assessor (C9): a confidence
// score in [0,1] and a warning list derived from retrieval signals.
package quality

import (
	"ragengine/pkg/chunk"
)

// Assessment is the C9 output.
type Assessment struct {
	Confidence float64
	Warnings []string
}

// Assess computes confidence and warnings for a retrieved chunk set.
func Assess(chunks []chunk.RetrievedChunk, totalDocs, queryWords int) Assessment {
	if len(chunks) == 0 {
		return Assessment{Confidence: 0, Warnings: []string{"no retrieved context"}}
	}

	topSim := float64(chunks[0].Similarity)
	chunkCount := len(chunks)

	uniqueSources := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		uniqueSources[c.SourceDocument] = true
	}
	uniqueCount := len(uniqueSources)

	totalDocsForCalc := totalDocs
	if totalDocsForCalc < 1 {
		totalDocsForCalc = 1
	}

	confidence := 0.5*min1(topSim/0.8) +
		0.2*min1(float64(chunkCount)/5) +
		0.2*min1(float64(uniqueCount)/float64(totalDocsForCalc)) +
		0.1*min1(float64(queryWords)/5)

	var warnings []string
	switch {
	case topSim < 0.4:
		warnings = append(warnings, "low relevance")
	case topSim < 0.6:
		warnings = append(warnings, "moderate relevance")
	}
	if chunkCount < 3 {
		warnings = append(warnings, "limited context")
	}
	if uniqueCount == 1 && totalDocs > 1 {
		warnings = append(warnings, "single source")
	}
	if queryWords <= 2 {
		warnings = append(warnings, "generic query")
	}

	return Assessment{Confidence: confidence, Warnings: warnings}
}

func min1(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < 0 {
		return 0
	}
	return x
}
