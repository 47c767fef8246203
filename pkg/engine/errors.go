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

// Package engine implements the pipeline orchestrator (C12): the
// top-level query entry point stitching C1-C11 together, plus the error
// kinds the engine distinguishes.
package engine

import "fmt"

// QueryError is the engine's typed error, carrying the operation and
// query that failed alongside the distinguishing Kind.
//
// Modeled as a struct with Operation/Message/Err and a constructor,
// rather than bare sentinel errors, so callers can both errors.Is on Kind
// and retain full context for logs.
type QueryError struct {
	Kind Kind
	Operation string
	Message string
	Query string
	Err error
}

// Kind distinguishes the error categories names.
type Kind string

const (
	KindEmptyQuery Kind = "empty_query"
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindEmptyInput Kind = "empty_input"
	KindDegenerateVector Kind = "degenerate_vector"
	KindModelUnavailable Kind = "model_unavailable"
	KindGenerationFailed Kind = "generation_failed"
	KindRetrievalEmpty Kind = "retrieval_empty"
	KindCancelled Kind = "cancelled"
)

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Operation, e.Message)
	if e.Query != "" {
		q := e.Query
		if len(q) > 50 {
			q = q[:50] + "..."
		}
		msg += fmt.Sprintf(" (query: %q)", q)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError constructs a QueryError.
func NewQueryError(kind Kind, operation, message, query string, err error) *QueryError {
	return &QueryError{Kind: kind, Operation: operation, Message: message, Query: query, Err: err}
}

// Is supports errors.Is(err, KindX) style comparisons against a bare Kind
// value wrapped as an error via kindError below, so callers can branch on
// kind without reaching into QueryError's fields.
func (e *QueryError) Is(target error) bool {
	if k, ok := target.(kindError); ok {
		return e.Kind == Kind(k)
	}
	return false
}

type kindError Kind

func (k kindError) Error() string { return string(k) }

// AsSentinel lets callers write errors.Is(err, engine.AsSentinel(engine.KindEmptyQuery)).
func AsSentinel(k Kind) error { return kindError(k) }
