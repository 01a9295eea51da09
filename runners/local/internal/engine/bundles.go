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

// Package engine evaluates a pipeline graph on the local machine.
//
// Elements move between transforms in bundles. A transform accumulates its
// output in UncommittedBundles, which the executor commits into immutable
// CommittedBundles once the evaluation that produced them has finished. The
// outcome of one evaluation is a StepTransformResult; once its bundles are
// committed it becomes a CommittedResult, which drives downstream scheduling
// and watermark advancement.
package engine

import (
	"fmt"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// BundleFactory creates empty bundles. It holds no mutable state; every
// bundle it returns is independent.
type BundleFactory struct{}

// NewBundleFactory returns a BundleFactory.
func NewBundleFactory() *BundleFactory {
	return &BundleFactory{}
}

// CreateRootBundle returns an empty, unkeyed bundle for pcol.
func (f *BundleFactory) CreateRootBundle(pcol *graph.PCollection) *UncommittedBundle {
	return newUncommitted(pcol, nil)
}

// CreateBundle returns an empty bundle for pcol that inherits the key of the
// input bundle it is derived from.
func (f *BundleFactory) CreateBundle(input *CommittedBundle, pcol *graph.PCollection) *UncommittedBundle {
	var key any
	if input != nil {
		key = input.key
	}
	return newUncommitted(pcol, key)
}

// CreateKeyedBundle returns an empty bundle for pcol holding elements of a
// single key. key must be comparable.
func (f *BundleFactory) CreateKeyedBundle(key any, pcol *graph.PCollection) *UncommittedBundle {
	return newUncommitted(pcol, key)
}

func newUncommitted(pcol *graph.PCollection, key any) *UncommittedBundle {
	return &UncommittedBundle{id: uuid.NewString(), pcol: pcol, key: key}
}

// UncommittedBundle accumulates elements for a bundle that is still being
// produced. It has a single writer and is not safe for concurrent use.
type UncommittedBundle struct {
	id        string
	pcol      *graph.PCollection
	key       any
	elms      []typex.WindowedValue
	committed bool
}

// PCollection returns the collection the bundle belongs to.
func (b *UncommittedBundle) PCollection() *graph.PCollection {
	return b.pcol
}

// Add appends elm and returns the bundle. Add panics if the bundle has been
// committed.
func (b *UncommittedBundle) Add(elm typex.WindowedValue) *UncommittedBundle {
	if b.committed {
		panic(fmt.Sprintf("add to bundle %v of %v after commit", b.id, b.pcol))
	}
	b.elms = append(b.elms, elm)
	return b
}

// Commit freezes the bundle's elements and stamps them with the commit time.
// Committing a bundle twice is an error.
func (b *UncommittedBundle) Commit(ts mtime.Time) (*CommittedBundle, error) {
	if b.committed {
		return nil, errors.IllegalStatef("bundle %v of %v already committed", b.id, b.pcol)
	}
	b.committed = true

	minTs := mtime.MaxTimestamp
	for _, e := range b.elms {
		minTs = mtime.Min(minTs, e.Timestamp)
	}
	cb := &CommittedBundle{
		id:           b.id,
		pcol:         b.pcol,
		key:          b.key,
		elms:         b.elms,
		minTimestamp: minTs,
		commitTime:   ts,
	}
	b.elms = nil
	return cb, nil
}

// CommittedBundle is an immutable bundle. It is safe to share between
// goroutines.
type CommittedBundle struct {
	id           string
	pcol         *graph.PCollection
	key          any
	elms         []typex.WindowedValue
	minTimestamp mtime.Time
	commitTime   mtime.Time
}

// ID returns the bundle's unique identifier.
func (b *CommittedBundle) ID() string {
	return b.id
}

// PCollection returns the collection the bundle belongs to.
func (b *CommittedBundle) PCollection() *graph.PCollection {
	return b.pcol
}

// Key returns the key shared by the bundle's elements, or nil if unkeyed.
func (b *CommittedBundle) Key() any {
	return b.key
}

// Elements returns a copy of the bundle's elements in the order they were
// added.
func (b *CommittedBundle) Elements() []typex.WindowedValue {
	return append([]typex.WindowedValue(nil), b.elms...)
}

// Len returns the number of elements in the bundle.
func (b *CommittedBundle) Len() int {
	return len(b.elms)
}

// MinTimestamp returns the earliest element timestamp, or
// mtime.MaxTimestamp for an empty bundle.
func (b *CommittedBundle) MinTimestamp() mtime.Time {
	return b.minTimestamp
}

// CommitTimestamp returns the time the bundle was committed at.
func (b *CommittedBundle) CommitTimestamp() mtime.Time {
	return b.commitTime
}

func (b *CommittedBundle) String() string {
	return fmt.Sprintf("bundle[%v %v key=%v n=%d @%v]", b.id, b.pcol, b.key, len(b.elms), b.commitTime)
}

// LogValue implements slog.LogValuer.
func (b *CommittedBundle) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ID", b.id),
		slog.Any("pcollection", b.pcol),
		slog.Int("elements", len(b.elms)),
		slog.Any("commit", b.commitTime))
}
