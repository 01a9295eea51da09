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
	"time"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Config configures an Executor.
type Config struct {
	// Streaming permits unbounded reads, and waits for them to produce data.
	Streaming bool
	// Parallelism bounds the number of bundles evaluated at once. Zero or
	// less means unbounded.
	Parallelism int
	// MaxBundleSize bounds the number of elements handled by one evaluation
	// of a root or ParDo. Zero or less means unbounded.
	MaxBundleSize int
	// PollInterval is the wait between rounds that made no progress in
	// streaming mode.
	PollInterval time.Duration
	// Clock provides commit timestamps and poll waits. Defaults to the
	// real clock.
	Clock clockz.Clock
}

// Executor evaluates the transforms of a graph until every watermark has
// reached the end of time.
//
// Work happens in rounds. All pending bundles are evaluated concurrently,
// then the results are committed one at a time in a fixed order: outputs are
// committed and queued for their consumers, unprocessed input is queued again
// for its transform, holds are updated, and watermarks refreshed. Evaluators
// waiting on their input watermark are then notified.
type Executor struct {
	cfg        Config
	runID      string
	factory    *BundleFactory
	clock      *CommitClock
	wm         *WatermarkManager
	consumers  map[*graph.PCollection][]*graph.Transform
	evaluators map[*graph.Transform]Evaluator

	results   []*CommittedResult
	committed map[*graph.PCollection][]*CommittedBundle
}

// NewExecutor prepares the evaluation of transforms, which must be ordered
// so that producers precede their consumers.
func NewExecutor(transforms []*graph.Transform, cfg Config) (*Executor, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	e := &Executor{
		cfg:        cfg,
		runID:      uuid.NewString(),
		factory:    NewBundleFactory(),
		clock:      NewCommitClock(cfg.Clock),
		wm:         NewWatermarkManager(transforms),
		consumers:  map[*graph.PCollection][]*graph.Transform{},
		evaluators: map[*graph.Transform]Evaluator{},
		committed:  map[*graph.PCollection][]*CommittedBundle{},
	}
	ec := &EvaluationContext{
		Factory:       e.factory,
		MaxBundleSize: cfg.MaxBundleSize,
		Streaming:     cfg.Streaming,
	}
	for _, t := range transforms {
		ev, err := NewEvaluator(t, ec)
		if err != nil {
			return nil, err
		}
		e.evaluators[t] = ev
		for _, in := range t.Inputs {
			e.consumers[in] = append(e.consumers[in], t)
		}
	}
	return e, nil
}

// RunID returns the unique identifier of this execution.
func (e *Executor) RunID() string {
	return e.runID
}

// Results returns the committed results in commit order.
func (e *Executor) Results() []*CommittedResult {
	return append([]*CommittedResult(nil), e.results...)
}

// Bundles returns every committed bundle of p in commit order.
func (e *Executor) Bundles(p *graph.PCollection) []*CommittedBundle {
	return append([]*CommittedBundle(nil), e.committed[p]...)
}

// Run evaluates the graph. It returns when all input has been processed, on
// the first evaluation error, or when ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	slog.Info("starting execution", slog.String("run", e.runID), slog.Bool("streaming", e.cfg.Streaming))

	for _, t := range e.wm.order {
		if len(t.Inputs) != 0 {
			continue
		}
		root, err := e.factory.CreateRootBundle(t.Output).
			Add(typex.ValueInGlobalWindow(impulse{})).
			Commit(e.clock.Now())
		if err != nil {
			return err
		}
		e.wm.AddPending(t, root)
	}
	e.wm.Refresh()

	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "run %v cancelled", e.runID)
		}
		work := e.wm.takePending()
		if len(work) == 0 {
			break
		}
		progress, err := e.round(ctx, work)
		if err != nil {
			return errors.SetTopLevelMsgf(err, "run %v failed", e.runID)
		}
		if !progress && e.cfg.Streaming {
			slog.Debug("no progress; waiting", slog.Duration("interval", e.cfg.PollInterval))
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "run %v cancelled", e.runID)
			case <-e.cfg.Clock.After(e.cfg.PollInterval):
			}
		}
	}
	if !e.wm.Done() {
		for _, t := range e.wm.order {
			slog.Warn("watermark incomplete", slog.Any("state", e.wm.states[t]))
		}
		return errors.IllegalStatef("run %v ran out of work before its watermarks completed", e.runID)
	}
	slog.Info("finished execution", slog.String("run", e.runID), slog.Int("results", len(e.results)))
	return nil
}

// round evaluates work concurrently and commits the results. It reports
// whether any element was produced or any watermark advanced.
func (e *Executor) round(ctx context.Context, work []workItem) (bool, error) {
	results := make([]*StepTransformResult, len(work))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Parallelism > 0 {
		g.SetLimit(e.cfg.Parallelism)
	}
	for i, w := range work {
		i, w := i, w
		g.Go(func() error {
			slog.Debug("evaluating", slog.String("transform", w.t.FullName()), slog.Any("bundle", w.bundle))
			r, err := e.evaluators[w.t].ProcessBundle(gctx, w.bundle)
			if err != nil {
				return errors.WithContextf(err, "evaluating bundle %v of %v", w.bundle.ID(), w.t.FullName())
			}
			results[i] = r
			return nil
		})
	}
	// Uncommitted output of a failed round is dropped with results.
	if err := g.Wait(); err != nil {
		return false, err
	}

	progress := false
	for i, w := range work {
		produced, err := e.commit(w.t, w.bundle, results[i])
		if err != nil {
			return false, err
		}
		progress = progress || produced
	}

	fired := set[*graph.Transform]{}
	for {
		advanced := e.wm.Refresh()
		if len(advanced) == 0 {
			break
		}
		progress = true
		for _, t := range advanced {
			cb, ok := e.evaluators[t].(WatermarkCallback)
			if !ok {
				continue
			}
			r, err := cb.OnWatermark(ctx, e.wm.InputWatermark(t))
			if err != nil {
				return false, errors.WithContextf(err, "firing %v at %v", t.FullName(), e.wm.InputWatermark(t))
			}
			if r == nil {
				continue
			}
			fired.insert(t)
			if _, err := e.commit(t, nil, r); err != nil {
				return false, err
			}
		}
	}
	if len(fired) > 0 {
		slog.Debug("fired on watermark", slog.Int("transforms", len(fired)))
	}
	return progress, nil
}

// commit commits the bundles of r, evaluated by t on input, and records the
// CommittedResult. input is nil for results of OnWatermark. Buffering
// evaluators are held at their buffered minimum rather than the hold of r,
// since results are committed in work order. It reports whether r produced
// any element.
func (e *Executor) commit(t *graph.Transform, input *CommittedBundle, r *StepTransformResult) (bool, error) {
	ts := e.clock.Now()
	produced := false

	var outputs []*CommittedBundle
	for _, ub := range r.Outputs() {
		cb, err := ub.Commit(ts)
		if err != nil {
			return false, errors.WithContextf(err, "committing output of %v", t.FullName())
		}
		outputs = append(outputs, cb)
		if cb.Len() == 0 {
			continue
		}
		produced = true
		e.committed[cb.PCollection()] = append(e.committed[cb.PCollection()], cb)
		for _, c := range e.consumers[cb.PCollection()] {
			e.wm.AddPending(c, cb)
		}
	}

	var unprocessed *CommittedBundle
	if ub := r.UnprocessedInput(); ub != nil {
		cb, err := ub.Commit(ts)
		if err != nil {
			return false, errors.WithContextf(err, "committing unprocessed input of %v", t.FullName())
		}
		unprocessed = cb
		if cb.Len() > 0 {
			e.wm.AddPending(t, cb)
		}
	}

	var key any
	if input != nil {
		e.wm.Complete(t, input)
		key = input.Key()
	} else {
		e.wm.ClearHolds(t)
	}
	hold, ok := r.Hold()
	if be, buffering := e.evaluators[t].(bufferingEvaluator); buffering {
		hold, ok = be.bufferedHold()
	}
	if ok {
		e.wm.SetHold(t, key, hold)
	} else {
		e.wm.ClearHold(t, key)
	}

	cr, err := NewCommittedResult(r, unprocessed, outputs)
	if err != nil {
		return false, err
	}
	e.results = append(e.results, cr)
	slog.Debug("committed", slog.String("transform", t.FullName()), slog.Int("outputs", len(outputs)), slog.Bool("unprocessed", unprocessed != nil), slog.Any("commit", ts))
	return produced, nil
}
