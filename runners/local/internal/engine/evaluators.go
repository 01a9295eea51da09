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
	"context"
	"sync"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/fileio"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Evaluator evaluates a transform on one committed input bundle at a time.
// ProcessBundle may be called concurrently for different bundles.
type Evaluator interface {
	ProcessBundle(ctx context.Context, input *CommittedBundle) (*StepTransformResult, error)
}

// WatermarkCallback is implemented by evaluators that buffer input until
// their input watermark advances. OnWatermark returns a nil result when it
// has nothing to emit. Holds of a transform are all replaced by the hold of
// the result OnWatermark returns.
type WatermarkCallback interface {
	OnWatermark(ctx context.Context, input mtime.Time) (*StepTransformResult, error)
}

// bufferingEvaluator is implemented by evaluators whose hold covers all the
// input they have buffered, not only the last bundle. The executor reads the
// hold at commit time, after every evaluation of the round has finished.
type bufferingEvaluator interface {
	bufferedHold() (mtime.Time, bool)
}

// EvaluationContext is shared by the evaluators of one run.
type EvaluationContext struct {
	Factory       *BundleFactory
	MaxBundleSize int
	Streaming     bool
}

// NewEvaluator returns the evaluator for t.
func NewEvaluator(t *graph.Transform, ec *EvaluationContext) (Evaluator, error) {
	switch t.Op {
	case graph.Create:
		elms, _ := t.Payload.([]typex.WindowedValue)
		return &createEvaluator{t: t, ec: ec, elms: elms}, nil
	case graph.UnboundedRead:
		if !ec.Streaming {
			return nil, errors.IllegalStatef("unbounded read %v requires streaming execution", t.FullName())
		}
		src, ok := t.Payload.(graph.UnboundedSource)
		if !ok {
			return nil, errors.InvalidArgumentf("unbounded read %v has payload %T", t.FullName(), t.Payload)
		}
		return &readEvaluator{t: t, ec: ec, src: src}, nil
	case graph.ParDo:
		fn, ok := t.Payload.(graph.DoFn)
		if !ok || fn == nil {
			return nil, errors.InvalidArgumentf("pardo %v has payload %T", t.FullName(), t.Payload)
		}
		return &parDoEvaluator{t: t, ec: ec, fn: fn}, nil
	case graph.Flatten:
		return &flattenEvaluator{t: t, ec: ec}, nil
	case graph.GroupByKey:
		return &gbkEvaluator{t: t, ec: ec, groups: map[any][]any{}, minTs: mtime.MaxTimestamp}, nil
	case graph.WriteFiles:
		return newWriteFilesEvaluator(t, ec)
	}
	return nil, errors.IllegalStatef("no evaluator for %v of kind %q", t.FullName(), t.Op)
}

// impulse is the single element of the root bundle that starts a root
// transform.
type impulse struct{}

func (ec *EvaluationContext) bundleSize() int {
	if ec.MaxBundleSize <= 0 {
		return int(^uint(0) >> 1)
	}
	return ec.MaxBundleSize
}

// createEvaluator emits fixed values in bundles of at most MaxBundleSize.
type createEvaluator struct {
	t    *graph.Transform
	ec   *EvaluationContext
	elms []typex.WindowedValue
}

func (e *createEvaluator) ProcessBundle(_ context.Context, input *CommittedBundle) (*StepTransformResult, error) {
	b := WithoutHold(e.t)
	size := e.ec.bundleSize()
	for start := 0; start < len(e.elms); {
		end := len(e.elms)
		if end-start > size {
			end = start + size
		}
		out := e.ec.Factory.CreateBundle(input, e.t.Output)
		for _, elm := range e.elms[start:end] {
			out.Add(elm)
		}
		b.AddOutput(out)
		start = end
	}
	return b.Build()
}

// readEvaluator polls an unbounded source. While the source has more to
// give, it holds the output at the source watermark and returns its root
// bundle as unprocessed input so that it is polled again.
type readEvaluator struct {
	t   *graph.Transform
	ec  *EvaluationContext
	src graph.UnboundedSource
}

func (e *readEvaluator) ProcessBundle(ctx context.Context, input *CommittedBundle) (*StepTransformResult, error) {
	elms, watermark, done, err := e.src.Read(ctx, e.ec.bundleSize())
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", e.t.FullName())
	}
	var b *StepTransformResultBuilder
	if done {
		b = WithoutHold(e.t)
	} else {
		b = WithHold(e.t, watermark)
		residual := e.ec.Factory.CreateBundle(input, input.PCollection()).
			Add(typex.TimestampedValue(impulse{}, watermark))
		b.WithUnprocessedInput(residual)
	}
	if len(elms) > 0 {
		out := e.ec.Factory.CreateBundle(input, e.t.Output)
		for _, elm := range elms {
			out.Add(elm)
		}
		b.AddOutput(out)
	}
	return b.Build()
}

// parDoEvaluator applies a DoFn to at most MaxBundleSize elements of a
// bundle, returning the rest as unprocessed input.
type parDoEvaluator struct {
	t  *graph.Transform
	ec *EvaluationContext
	fn graph.DoFn
}

func (e *parDoEvaluator) ProcessBundle(ctx context.Context, input *CommittedBundle) (*StepTransformResult, error) {
	elms := input.Elements()
	n := min(len(elms), e.ec.bundleSize())

	out := e.ec.Factory.CreateBundle(input, e.t.Output)
	emit := func(wv typex.WindowedValue) { out.Add(wv) }
	for _, elm := range elms[:n] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.fn(elm, emit); err != nil {
			return nil, errors.Wrapf(err, "processing %v in %v", elm, e.t.FullName())
		}
	}

	b := WithoutHold(e.t).AddOutput(out)
	if n < len(elms) {
		rest := e.ec.Factory.CreateBundle(input, input.PCollection())
		for _, elm := range elms[n:] {
			rest.Add(elm)
		}
		b.WithUnprocessedInput(rest)
	}
	return b.Build()
}

// flattenEvaluator forwards its input to its output.
type flattenEvaluator struct {
	t  *graph.Transform
	ec *EvaluationContext
}

func (e *flattenEvaluator) ProcessBundle(_ context.Context, input *CommittedBundle) (*StepTransformResult, error) {
	out := e.ec.Factory.CreateBundle(input, e.t.Output)
	for _, elm := range input.Elements() {
		out.Add(elm)
	}
	return WithoutHold(e.t).AddOutput(out).Build()
}

// gbkEvaluator groups typex.KV values by key in the global window. Groups are
// emitted, one keyed bundle per key, when the input watermark reaches the end
// of time.
type gbkEvaluator struct {
	t  *graph.Transform
	ec *EvaluationContext

	mu     sync.Mutex
	keys   []any
	groups map[any][]any
	minTs  mtime.Time
}

func (e *gbkEvaluator) ProcessBundle(_ context.Context, input *CommittedBundle) (*StepTransformResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, elm := range input.Elements() {
		kv, ok := elm.Elm.(typex.KV)
		if !ok {
			return nil, errors.InvalidArgumentf("%v requires typex.KV elements, got %T", e.t.FullName(), elm.Elm)
		}
		if _, seen := e.groups[kv.Key]; !seen {
			e.keys = append(e.keys, kv.Key)
		}
		e.groups[kv.Key] = append(e.groups[kv.Key], kv.Value)
		e.minTs = mtime.Min(e.minTs, elm.Timestamp)
	}
	if len(e.keys) == 0 {
		return WithoutHold(e.t).Build()
	}
	return WithHold(e.t, e.minTs).Build()
}

func (e *gbkEvaluator) bufferedHold() (mtime.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minTs, len(e.keys) > 0
}

func (e *gbkEvaluator) OnWatermark(_ context.Context, input mtime.Time) (*StepTransformResult, error) {
	if input < mtime.MaxTimestamp {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.keys) == 0 {
		return nil, nil
	}
	b := WithoutHold(e.t)
	for _, k := range e.keys {
		out := e.ec.Factory.CreateKeyedBundle(k, e.t.Output)
		out.Add(typex.TimestampedValue(typex.Grouped{Key: k, Values: e.groups[k]}, mtime.EndOfGlobalWindowTime))
		b.AddOutput(out)
	}
	e.keys = nil
	e.groups = map[any][]any{}
	e.minTs = mtime.MaxTimestamp
	return b.Build()
}

// writeFilesEvaluator assigns elements round robin to a fixed number of
// shards and writes every shard, empty ones included, once its input is
// complete. It emits the names of the written files.
type writeFilesEvaluator struct {
	t  *graph.Transform
	ec *EvaluationContext
	w  *fileio.Write

	mu     sync.Mutex
	shards [][]any
	next   int
	minTs  mtime.Time
	fired  bool
}

func newWriteFilesEvaluator(t *graph.Transform, ec *EvaluationContext) (*writeFilesEvaluator, error) {
	w, ok := t.Payload.(*fileio.Write)
	if !ok || w == nil {
		return nil, errors.InvalidArgumentf("write %v has payload %T", t.FullName(), t.Payload)
	}
	if err := w.Validate(); err != nil {
		return nil, errors.WithContextf(err, "validating %v", t.FullName())
	}
	n := w.ShardCount()
	if n <= 0 {
		return nil, errors.IllegalStatef("write %v has no shard count; apply the sharded write override first", t.FullName())
	}
	return &writeFilesEvaluator{t: t, ec: ec, w: w, shards: make([][]any, n), minTs: mtime.MaxTimestamp}, nil
}

func (e *writeFilesEvaluator) ProcessBundle(_ context.Context, input *CommittedBundle) (*StepTransformResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, elm := range input.Elements() {
		e.shards[e.next] = append(e.shards[e.next], elm.Elm)
		e.next = (e.next + 1) % len(e.shards)
		e.minTs = mtime.Min(e.minTs, elm.Timestamp)
	}
	if e.minTs == mtime.MaxTimestamp {
		return WithoutHold(e.t).Build()
	}
	return WithHold(e.t, e.minTs).Build()
}

func (e *writeFilesEvaluator) bufferedHold() (mtime.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minTs, !e.fired && e.minTs != mtime.MaxTimestamp
}

func (e *writeFilesEvaluator) OnWatermark(ctx context.Context, input mtime.Time) (*StepTransformResult, error) {
	if input < mtime.MaxTimestamp {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fired {
		return nil, nil
	}
	e.fired = true

	names := make([]string, len(e.shards))
	g, gctx := errgroup.WithContext(ctx)
	for i := range e.shards {
		i := i
		names[i] = e.w.FileName(i)
		g.Go(func() error {
			return e.w.WriteShard(gctx, names[i], e.shards[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WithContextf(err, "writing %v", e.t.FullName())
	}
	slog.Info("wrote files", slog.String("transform", e.t.FullName()), slog.Int("shards", len(names)), slog.String("prefix", e.w.Prefix))

	out := e.ec.Factory.CreateRootBundle(e.t.Output)
	for _, name := range names {
		out.Add(typex.TimestampedValue(name, mtime.EndOfGlobalWindowTime))
	}
	e.shards = nil
	return WithoutHold(e.t).AddOutput(out).Build()
}
