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

// Package assemble implements the context assembler (C8): a bounded,
// citation-tagged context block built from ranked chunks under a
// character budget.
package assemble

import (
	"context"
	"fmt"
	"strings"

	"ragengine/pkg/chunk"
)

const yieldEvery = 16

// Cloud/on-device/medium budget presets, chosen by the orchestrator
// before generation from the fallback chain's primary backend.
const (
	BudgetCloud = 200_000
	BudgetOnDevice = 1_500
	BudgetMedium = 3_500
)

// Assemble concatenates chunks in rank order into a citation-tagged
// context string, stopping once the next block would exceed maxChars but
// always including at least one chunk when the input is non-empty.
// Returns the assembled text and the number of chunks actually used.
func Assemble(ctx context.Context, chunks []chunk.RetrievedChunk, maxChars int) (string, int, error) {
	if len(chunks) == 0 {
		return "", 0, nil
	}

	var sb strings.Builder
	used := 0

	for i, rc := range chunks {
		if i%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				return sb.String(), used, ctx.Err()
			default:
			}
		}

		block := fmt.Sprintf("[Document Chunk %d, Similarity: %.3f]\n%s\n", i+1, rc.Similarity, rc.Chunk.Content)
		isLast := i == len(chunks)-1
		separator := "\n---\n\n"

		candidate := block
		if !isLast {
			candidate += separator
		}

		if used > 0 && sb.Len()+len(candidate) > maxChars {
			break
		}

		sb.WriteString(candidate)
		used++
	}

	out := sb.String()
	// If the last included chunk was not actually the last candidate
	// chunk, trim the trailing separator we speculatively appended.
	if used < len(chunks) && used > 0 {
		out = strings.TrimSuffix(out, "\n---\n\n")
	}
	return out, used, nil
}
