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
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// sseFrame is one parsed `data: <json>` line: either a delta, a
// whole-snapshot, a raw-text fragment, or the [DONE] sentinel.
type sseFrame struct {
	done bool
	rawText string
	delta string
	snapshot string
	keepAlive bool
}

type choiceFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Content string `json:"content"`
}

func parseSSELine(line string) (sseFrame, bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return sseFrame{keepAlive: true}, true
	}
	if !strings.HasPrefix(line, "data:") {
		return sseFrame{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "[DONE]" {
		return sseFrame{done: true}, true
	}

	var cf choiceFrame
	if err := json.Unmarshal([]byte(payload), &cf); err != nil {
		// Not JSON: treat as a raw text delta.
		return sseFrame{rawText: payload}, true
	}

	if len(cf.Choices) > 0 {
		ch := cf.Choices[0]
		if ch.Delta.Content != "" {
			return sseFrame{delta: ch.Delta.Content}, true
		}
		if ch.Message.Content != "" {
			return sseFrame{snapshot: ch.Message.Content}, true
		}
		if ch.Text != "" {
			return sseFrame{delta: ch.Text}, true
		}
	}
	if cf.Content != "" {
		return sseFrame{snapshot: cf.Content}, true
	}
	return sseFrame{keepAlive: true}, true
}

// streamingState tracks the last seen snapshot so whole-snapshot frames
// can be converted into incremental deltas via prefix diffing.
type streamingState struct {
	lastSnapshot string
	text strings.Builder
}

func (s *streamingState) consume(frame sseFrame) (delta string) {
	switch {
	case frame.rawText != "":
		delta = frame.rawText
	case frame.delta != "":
		delta = frame.delta
	case frame.snapshot != "":
		delta = strings.TrimPrefix(frame.snapshot, s.lastSnapshot)
		s.lastSnapshot = frame.snapshot
	default:
		return ""
	}
	s.text.WriteString(delta)
	return delta
}

// readSSE scans r line by line, invoking onDelta for every non-empty delta
// and returning the fully accumulated text once [DONE] or EOF is reached.
func readSSE(r io.Reader, onDelta func(string)) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	state := &streamingState{}

	for scanner.Scan() {
		frame, ok := parseSSELine(scanner.Text())
		if !ok {
			continue
		}
		if frame.done {
			break
		}
		if frame.keepAlive {
			continue
		}
		if delta := state.consume(frame); delta != "" && onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return state.text.String(), err
	}
	return state.text.String(), nil
}
