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
	"fmt"

	"ragengine/pkg/config"
)

// NewFromConfig builds the configured Index backend. "memory" is the
// default, dependency-free C2 implementation; "chromem", "qdrant" and
// "pinecone" are pluggable alternates, each requiring their own
// connection settings.
//
// Milvus is intentionally not offered here; see DESIGN.md.
func NewFromConfig(cfg config.VectorIndexConfig) (Index, error) {
	switch cfg.Provider {
	case "", "memory":
		return NewMemoryIndex(cfg.Dimension), nil
	case "chromem":
		return NewChromemIndex(cfg.Path, cfg.Collection, cfg.Dimension)
	case "qdrant":
		return NewQdrantIndex(cfg.Host, cfg.Collection, cfg.Dimension)
	case "pinecone":
		return NewPineconeIndex(cfg.APIKey, cfg.Collection, cfg.Dimension)
	default:
		return nil, fmt.Errorf("vectorstore: unknown provider %q", cfg.Provider)
	}
}
