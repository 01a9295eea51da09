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

// Package overrides rewrites pipeline transforms before execution.
package overrides

import (
	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/fileio"
	"golang.org/x/exp/slog"
)

// Override replaces the transforms it matches. Override may return its
// argument unchanged when no rewrite is needed.
type Override interface {
	Matches(t *graph.Transform) bool
	Override(t *graph.Transform) (*graph.Transform, error)
}

// Apply runs every override over the transforms of g, splicing replacements
// into the graph. It returns the number of transforms replaced.
func Apply(g *graph.Graph, overrides ...Override) (int, error) {
	replaced := 0
	for _, t := range g.Transforms() {
		for _, o := range overrides {
			if !o.Matches(t) {
				continue
			}
			repl, err := o.Override(t)
			if err != nil {
				return replaced, errors.WithContextf(err, "overriding %v", t.FullName())
			}
			if repl == t {
				continue
			}
			if err := g.Replace(t, repl); err != nil {
				return replaced, err
			}
			slog.Debug("replaced transform", slog.String("transform", t.FullName()), slog.Int("was", t.ID()), slog.Int("now", repl.ID()))
			replaced++
			t = repl
		}
	}
	return replaced, nil
}

// DefaultNumShards is the shard count ShardedWrite picks when not given one.
const DefaultNumShards = 3

// ShardedWrite decides the shard count of file writes that leave it to the
// runner.
type ShardedWrite struct {
	// NumShards is the count given to writes without sharding instructions.
	// Zero means DefaultNumShards.
	NumShards int
}

// Matches reports whether t is a file write.
func (o ShardedWrite) Matches(t *graph.Transform) bool {
	return t != nil && t.Op == graph.WriteFiles
}

// Override returns t itself when its write disabled sharding or set a shard
// count. Otherwise it returns a new transform, derived from t, that writes
// exactly the override's shard count.
func (o ShardedWrite) Override(t *graph.Transform) (*graph.Transform, error) {
	if t == nil {
		return nil, errors.InvalidArgumentf("no transform to override")
	}
	w, ok := t.Payload.(*fileio.Write)
	if !ok || w == nil {
		return nil, errors.InvalidArgumentf("%v has payload %T, want *fileio.Write", t.FullName(), t.Payload)
	}
	if w.ShardingSpecified() {
		return t, nil
	}
	n := o.NumShards
	if n < 0 {
		return nil, errors.InvalidArgumentf("shard count must not be negative, got %d", n)
	}
	if n == 0 {
		n = DefaultNumShards
	}
	return graph.Derive(t, w.WithShards(n)), nil
}
