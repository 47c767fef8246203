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

package llm

import (
	"context"
	"strings"
	"time"
)

// Mock is a test-only backend with a scripted response and optional
// failure injection, used to exercise the gateway's overflow-retry and
// fallback-chain logic without a real server.
type Mock struct {
	Name string
	Reply string
	FailWith error
	FailOnceWith error
	failed bool
	Available bool
}

var _ Backend = (*Mock)(nil)

func (m *Mock) ModelName() string { return m.Name }

func (m *Mock) IsAvailable(context.Context) bool { return m.Available }

func (m *Mock) Generate(ctx context.Context, prompt, contextText string, cfg Config, sink Sink) (Response, error) {
	if m.FailOnceWith != nil && !m.failed {
		m.failed = true
		return Response{}, m.FailOnceWith
	}
	if m.FailWith != nil {
		return Response{}, m.FailWith
	}
	start := time.Now()
	if sink != nil {
		sink(StreamChunk{Delta: m.Reply})
	}
	return Response{
		Text: m.Reply,
		TokensGenerated: len(strings.Fields(m.Reply)),
		TotalTime: time.Since(start).Seconds(),
		ModelName: m.Name,
	}, nil
}
