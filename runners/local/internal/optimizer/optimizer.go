// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package optimizer decides whether a pipeline runs in batch or streaming
// mode.
package optimizer

import (
	"github.com/apache/beam/localrunner/core/graph"
	"golang.org/x/exp/slog"
)

// TranslationMode is the execution mode chosen for a pipeline.
type TranslationMode int

const (
	// Batch runs bounded pipelines to completion.
	Batch TranslationMode = iota
	// Streaming polls unbounded reads until their watermarks complete.
	Streaming
)

func (m TranslationMode) String() string {
	switch m {
	case Batch:
		return "batch"
	case Streaming:
		return "streaming"
	}
	return "unknown"
}

// ParseTranslationMode parses "batch" or "streaming". An empty string is
// batch.
func ParseTranslationMode(s string) (TranslationMode, bool) {
	switch s {
	case "", "batch":
		return Batch, true
	case "streaming":
		return Streaming, true
	}
	return Batch, false
}

// Optimizer is a graph.Visitor that switches to streaming mode once it
// visits an unbounded read. The switch is never undone.
//
// The mode is only meaningful after a complete walk. An Optimizer is not
// safe for concurrent use.
type Optimizer struct {
	mode      TranslationMode
	streaming bool
}

// NewOptimizer returns an Optimizer starting in defaultMode. When
// streamingOption is set, TranslationMode reports Streaming regardless of
// what the walk finds.
func NewOptimizer(defaultMode TranslationMode, streamingOption bool) *Optimizer {
	return &Optimizer{mode: defaultMode, streaming: streamingOption}
}

// EnterComposite always descends, so that reads nested in composites are
// found.
func (o *Optimizer) EnterComposite(*graph.Scope) graph.CompositeBehavior {
	return graph.EnterTransform
}

// LeaveComposite does nothing.
func (o *Optimizer) LeaveComposite(*graph.Scope) {}

// VisitPrimitive switches to Streaming on an unbounded read.
func (o *Optimizer) VisitPrimitive(t *graph.Transform) {
	if t.Op != graph.UnboundedRead || o.mode == Streaming {
		return
	}
	slog.Info("Found unbounded read. Switching to streaming execution.", slog.String("transform", t.FullName()))
	o.mode = Streaming
}

// VisitValue does nothing.
func (o *Optimizer) VisitValue(*graph.PCollection, *graph.Transform) {}

// TranslationMode returns the chosen mode.
func (o *Optimizer) TranslationMode() TranslationMode {
	if o.streaming {
		return Streaming
	}
	return o.mode
}

// Translate walks g with a fresh Optimizer and returns its mode.
func Translate(g *graph.Graph, defaultMode TranslationMode, streamingOption bool) TranslationMode {
	o := NewOptimizer(defaultMode, streamingOption)
	graph.Walk(g, o)
	return o.TranslationMode()
}
