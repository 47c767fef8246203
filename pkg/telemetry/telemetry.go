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

// Package telemetry records per-stage pipeline events and durations
// (stable event names), narrower than a general-purpose observability
// package covering HTTP/gRPC/session metrics this engine has no use
// for, down to just what C12 emits.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stage names, stable across releases so dashboards built on them don't
// break. Telemetry must tolerate interleaving across concurrent
// queries; the histogram/counter instruments below are safe for
// concurrent use without external locking.
const (
	StageQueryReceived = "Query received"
	StageQueryExpanded = "Query expanded"
	StageQueryEmbedding = "Query embedding"
	StageHybridRetrieval = "Hybrid retrieval"
	StageRerankingComplete = "Re-ranking complete"
	StageGatingMetrics = "Gating metrics"
	StageMMRDiversification = "MMR diversification"
	StageContextAssembled = "Context assembled"
	StageResponseGenerated = "Response generated"
	StageResponseEvaluated = "Response evaluated"
	StageQueryComplete = "Query complete"
)

// Recorder emits stage events with duration, backed by an OpenTelemetry
// metric.Meter histogram. It is safe for concurrent use.
type Recorder struct {
	stageDuration metric.Float64Histogram
	stageCount metric.Int64Counter
}

// NewRecorder creates a Recorder bound to meter. Pass
// otel.GetMeterProvider().Meter("ragengine") when wiring a real exporter,
// or noop.NewMeterProvider().Meter("") in tests.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	dur, err := meter.Float64Histogram("ragengine.stage.duration_seconds",
		metric.WithDescription("Duration of each pipeline stage"))
	if err != nil {
		return nil, err
	}
	cnt, err := meter.Int64Counter("ragengine.stage.count",
		metric.WithDescription("Number of times each pipeline stage ran"))
	if err != nil {
		return nil, err
	}
	return &Recorder{stageDuration: dur, stageCount: cnt}, nil
}

// Stage records one stage's duration and increments its count.
func (r *Recorder) Stage(ctx context.Context, name string, d time.Duration) {
	attrs := attribute.String("stage", name)
	r.stageCount.Add(ctx, 1, metric.WithAttributes(attrs))
	r.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs))
}

// Timer returns a function that records the stage's duration when called,
// for the common defer r.Timer(ctx, name)() pattern.
func (r *Recorder) Timer(ctx context.Context, name string) func() {
	start := time.Now()
	return func() {
		r.Stage(ctx, name, time.Since(start))
	}
}
