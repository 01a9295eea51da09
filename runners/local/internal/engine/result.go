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

package engine

import (
	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/internal/errors"
)

// StepTransformResult is the outcome of evaluating one transform once: the
// bundles it produced, the part of its input it did not consume, and an
// optional watermark hold. It is immutable.
type StepTransformResult struct {
	transform   *graph.Transform
	outputs     []*UncommittedBundle
	unprocessed *UncommittedBundle
	hold        mtime.Time
	hasHold     bool
}

// Transform returns the evaluated transform.
func (r *StepTransformResult) Transform() *graph.Transform {
	return r.transform
}

// Outputs returns the produced bundles.
func (r *StepTransformResult) Outputs() []*UncommittedBundle {
	return append([]*UncommittedBundle(nil), r.outputs...)
}

// UnprocessedInput returns the input the transform did not consume, or nil
// if none was returned. A non-nil empty bundle is not the same as nil.
func (r *StepTransformResult) UnprocessedInput() *UncommittedBundle {
	return r.unprocessed
}

// Hold returns the watermark hold, if the result declares one.
func (r *StepTransformResult) Hold() (mtime.Time, bool) {
	return r.hold, r.hasHold
}

// StepTransformResultBuilder accumulates a StepTransformResult.
type StepTransformResultBuilder struct {
	r StepTransformResult
}

// WithoutHold starts a result that places no constraint on the watermark.
func WithoutHold(t *graph.Transform) *StepTransformResultBuilder {
	return &StepTransformResultBuilder{r: StepTransformResult{transform: t, hold: mtime.MaxTimestamp}}
}

// WithHold starts a result that holds the transform's output watermark at
// or before hold.
func WithHold(t *graph.Transform, hold mtime.Time) *StepTransformResultBuilder {
	return &StepTransformResultBuilder{r: StepTransformResult{transform: t, hold: hold, hasHold: true}}
}

// AddOutput adds produced bundles to the result.
func (b *StepTransformResultBuilder) AddOutput(bundles ...*UncommittedBundle) *StepTransformResultBuilder {
	b.r.outputs = append(b.r.outputs, bundles...)
	return b
}

// WithUnprocessedInput records the input the transform did not consume.
func (b *StepTransformResultBuilder) WithUnprocessedInput(bundle *UncommittedBundle) *StepTransformResultBuilder {
	b.r.unprocessed = bundle
	return b
}

// Build returns the result. The builder may continue to be used; later
// changes do not affect results already built.
func (b *StepTransformResultBuilder) Build() (*StepTransformResult, error) {
	if b.r.transform == nil {
		return nil, errors.InvalidArgumentf("step transform result requires a transform")
	}
	r := b.r
	r.outputs = append([]*UncommittedBundle(nil), b.r.outputs...)
	return &r, nil
}

// CommittedResult records a StepTransformResult after its bundles have been
// committed. It is immutable.
type CommittedResult struct {
	transform   *graph.Transform
	unprocessed *CommittedBundle
	outputs     []*CommittedBundle
}

// NewCommittedResult assembles the committed form of r. unprocessed may be
// nil, meaning r returned no unprocessed input. outputs are kept as given,
// duplicates included; their order carries no meaning.
func NewCommittedResult(r *StepTransformResult, unprocessed *CommittedBundle, outputs []*CommittedBundle) (*CommittedResult, error) {
	if r == nil || r.transform == nil {
		return nil, errors.InvalidArgumentf("committed result requires a transform")
	}
	return &CommittedResult{
		transform:   r.transform,
		unprocessed: unprocessed,
		outputs:     append([]*CommittedBundle(nil), outputs...),
	}, nil
}

// Transform returns the transform of the originating StepTransformResult.
func (c *CommittedResult) Transform() *graph.Transform {
	return c.transform
}

// UnprocessedInputs returns the committed unprocessed input, or nil.
func (c *CommittedResult) UnprocessedInputs() *CommittedBundle {
	return c.unprocessed
}

// Outputs returns the committed output bundles in no particular order.
func (c *CommittedResult) Outputs() []*CommittedBundle {
	return append([]*CommittedBundle(nil), c.outputs...)
}
