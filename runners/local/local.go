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

// Package local contains a runner that executes pipelines in the current
// process. Useful for testing.
package local

import (
	"context"
	"time"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/runners/local/internal/config"
	"github.com/apache/beam/localrunner/runners/local/internal/engine"
	"github.com/apache/beam/localrunner/runners/local/internal/optimizer"
	"github.com/apache/beam/localrunner/runners/local/internal/overrides"
	"github.com/zoobzio/clockz"
	"golang.org/x/exp/slog"
)

// TranslationMode is the execution mode a pipeline runs in.
type TranslationMode = optimizer.TranslationMode

// Translation modes.
const (
	Batch     = optimizer.Batch
	Streaming = optimizer.Streaming
)

// Options configures an execution.
type Options struct {
	// Streaming forces streaming execution even for bounded pipelines.
	Streaming bool
	// DefaultMode is the mode of pipelines that read no unbounded source.
	// Nil means Batch unless a config variant sets it.
	DefaultMode *TranslationMode
	// Parallelism bounds concurrent bundle evaluations. Zero or less means
	// unbounded.
	Parallelism int
	// MaxBundleSize bounds the elements handled by one evaluation. Zero or
	// less means unbounded.
	MaxBundleSize int
	// NumShards is the shard count of writes that leave it to the runner.
	// Zero picks a default.
	NumShards int
	// PollInterval is the wait between idle streaming rounds.
	PollInterval time.Duration
	// Clock provides commit timestamps. Defaults to the real clock.
	Clock clockz.Clock
}

// ApplyConfig loads the runner settings file at path and fills the options
// left unset from the named variant, or from the file's default variant
// when variant is empty. Options already set are kept.
func (o *Options) ApplyConfig(path, variant string) error {
	reg := config.NewRunnerRegistry()
	if err := reg.LoadFromFile(path); err != nil {
		return err
	}
	v := reg.DefaultVariant()
	if variant != "" {
		v = reg.GetVariant(variant)
		if v == nil {
			return errors.InvalidArgumentf("variant %q not in %v, want one of %v", variant, path, reg.Variants())
		}
	}
	if v == nil {
		return nil
	}
	return o.applyVariant(v)
}

func (o *Options) applyVariant(v *config.Variant) error {
	b := v.GetCharacteristics(config.BundlesHandler).(config.Bundles)
	if o.MaxBundleSize == 0 {
		o.MaxBundleSize = b.MaxBundleSize
	}
	s := v.GetCharacteristics(config.ShardingHandler).(config.Sharding)
	if o.NumShards == 0 {
		o.NumShards = s.NumShards
	}
	st := v.GetCharacteristics(config.StreamingHandler).(config.Streaming)
	d, err := st.Interval()
	if err != nil {
		return err
	}
	if o.PollInterval == 0 {
		o.PollInterval = d
	}
	if o.DefaultMode == nil && st.DefaultMode != "" {
		mode, ok := optimizer.ParseTranslationMode(st.DefaultMode)
		if !ok {
			return errors.InvalidArgumentf("unknown default mode %q", st.DefaultMode)
		}
		o.DefaultMode = &mode
	}
	slog.Debug("applied runner settings", slog.String("variant", v.Name()))
	return nil
}

// Result is the outcome of an execution.
type Result struct {
	Mode  TranslationMode
	RunID string

	ex *engine.Executor
}

// CommittedResults returns the results of every evaluation in commit order.
func (r *Result) CommittedResults() []*engine.CommittedResult {
	return r.ex.Results()
}

// Elements returns every element committed to p.
func (r *Result) Elements(p *graph.PCollection) []typex.WindowedValue {
	var ret []typex.WindowedValue
	for _, b := range r.ex.Bundles(p) {
		ret = append(ret, b.Elements()...)
	}
	return ret
}

// Mode returns the translation mode g would run in under opts, without
// running it.
func Mode(g *graph.Graph, opts Options) TranslationMode {
	return optimizer.Translate(g, opts.defaultMode(), opts.Streaming)
}

func (o Options) defaultMode() TranslationMode {
	if o.DefaultMode == nil {
		return Batch
	}
	return *o.DefaultMode
}

// Execute runs g to completion. File writes that leave their sharding to
// the runner are rewritten to write opts.NumShards files, and the pipeline
// runs in streaming mode when it reads an unbounded source or when
// opts.Streaming is set.
func Execute(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	if g == nil {
		return nil, errors.InvalidArgumentf("no pipeline to execute")
	}
	if _, err := overrides.Apply(g, overrides.ShardedWrite{NumShards: opts.NumShards}); err != nil {
		return nil, errors.WithContext(err, "applying overrides")
	}
	mode := Mode(g, opts)

	transforms, err := g.Build()
	if err != nil {
		return nil, errors.WithContext(err, "building pipeline")
	}
	ex, err := engine.NewExecutor(transforms, engine.Config{
		Streaming:     mode == Streaming,
		Parallelism:   opts.Parallelism,
		MaxBundleSize: opts.MaxBundleSize,
		PollInterval:  opts.PollInterval,
		Clock:         opts.Clock,
	})
	if err != nil {
		return nil, errors.WithContextf(err, "preparing %v execution", mode)
	}
	slog.Info("executing pipeline", slog.String("run", ex.RunID()), slog.String("mode", mode.String()), slog.Int("transforms", len(transforms)))
	if err := ex.Run(ctx); err != nil {
		return nil, err
	}
	return &Result{Mode: mode, RunID: ex.RunID(), ex: ex}, nil
}
