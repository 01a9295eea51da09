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

package graph

import (
	"context"
	"fmt"

	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
)

// Opcode identifies the kind of a primitive transform.
type Opcode string

// Valid opcodes.
const (
	Create        Opcode = "Create"
	UnboundedRead Opcode = "UnboundedRead"
	ParDo         Opcode = "ParDo"
	GroupByKey    Opcode = "GroupByKey"
	Flatten       Opcode = "Flatten"
	WriteFiles    Opcode = "WriteFiles"
)

// DoFn processes one element, emitting any number of outputs.
type DoFn func(elm typex.WindowedValue, emit func(typex.WindowedValue)) error

// UnboundedSource is a source of elements that may never end.
type UnboundedSource interface {
	// Read returns at most max elements that are available now and the
	// watermark of the source after them. done reports that the source will
	// never produce another element.
	Read(ctx context.Context, max int) (elms []typex.WindowedValue, watermark mtime.Time, done bool, err error)
}

// Transform is a primitive transform of the graph.
type Transform struct {
	id int

	Op      Opcode
	Name    string
	Scope   *Scope
	Payload any

	Inputs []*PCollection
	Output *PCollection

	original *Transform
}

// Derive returns a transform with t's kind, name, scope and inputs, but with
// the given payload. The result is not part of any graph until passed to
// Graph.Replace along with t.
func Derive(t *Transform, payload any) *Transform {
	return &Transform{
		Op:       t.Op,
		Name:     t.Name,
		Scope:    t.Scope,
		Payload:  payload,
		Inputs:   append([]*PCollection(nil), t.Inputs...),
		original: t,
	}
}

// ID returns the graph-local identifier for the transform.
func (t *Transform) ID() int {
	return t.id
}

// Original returns the transform t was derived from, or nil.
func (t *Transform) Original() *Transform {
	return t.original
}

// FullName returns the name of t qualified by its enclosing scopes.
func (t *Transform) FullName() string {
	if t.Scope == nil || t.Scope.IsRoot() {
		return t.Name
	}
	return t.Scope.String()[len("root/"):] + "/" + t.Name
}

func (t *Transform) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v[%v]: %v -> %v", t.Op, t.FullName(), t.Inputs, t.Output)
}

func (t *Transform) validate() error {
	switch t.Op {
	case Create:
		if len(t.Inputs) != 0 {
			return errors.InvalidArgumentf("%v takes no inputs, got %d", t.Op, len(t.Inputs))
		}
		if _, ok := t.Payload.([]typex.WindowedValue); !ok {
			return errors.InvalidArgumentf("%v payload must be []typex.WindowedValue, got %T", t.Op, t.Payload)
		}
	case UnboundedRead:
		if len(t.Inputs) != 0 {
			return errors.InvalidArgumentf("%v takes no inputs, got %d", t.Op, len(t.Inputs))
		}
		if _, ok := t.Payload.(UnboundedSource); !ok {
			return errors.InvalidArgumentf("%v payload must be an UnboundedSource, got %T", t.Op, t.Payload)
		}
	case ParDo:
		if len(t.Inputs) != 1 {
			return errors.InvalidArgumentf("%v takes one input, got %d", t.Op, len(t.Inputs))
		}
		if fn, ok := t.Payload.(DoFn); !ok || fn == nil {
			return errors.InvalidArgumentf("%v payload must be a non-nil DoFn, got %T", t.Op, t.Payload)
		}
	case GroupByKey, WriteFiles:
		if len(t.Inputs) != 1 {
			return errors.InvalidArgumentf("%v takes one input, got %d", t.Op, len(t.Inputs))
		}
	case Flatten:
		if len(t.Inputs) == 0 {
			return errors.InvalidArgumentf("%v takes at least one input", t.Op)
		}
	default:
		return errors.InvalidArgumentf("unknown opcode %q", t.Op)
	}
	for i, in := range t.Inputs {
		if in == nil {
			return errors.InvalidArgumentf("input %d is nil", i)
		}
	}
	return nil
}

// Create adds a transform that emits the given values as a bounded
// PCollection. Values are placed in the global window.
func (g *Graph) Create(s *Scope, name string, values ...any) *PCollection {
	elms := make([]typex.WindowedValue, 0, len(values))
	for _, v := range values {
		elms = append(elms, typex.ValueInGlobalWindow(v))
	}
	return g.NewTransform(s, Create, name, elms).Output
}

// CreateTimestamped adds a transform that emits pre-timestamped elements.
func (g *Graph) CreateTimestamped(s *Scope, name string, elms ...typex.WindowedValue) *PCollection {
	return g.NewTransform(s, Create, name, append([]typex.WindowedValue{}, elms...)).Output
}

// Read adds a transform that reads an unbounded source.
func (g *Graph) Read(s *Scope, name string, src UnboundedSource) *PCollection {
	return g.NewTransform(s, UnboundedRead, name, src).Output
}

// ParDo adds a transform applying fn to each element of in.
func (g *Graph) ParDo(s *Scope, name string, fn DoFn, in *PCollection) *PCollection {
	return g.NewTransform(s, ParDo, name, fn, in).Output
}

// GroupByKey adds a transform grouping the typex.KV elements of in by key.
func (g *Graph) GroupByKey(s *Scope, name string, in *PCollection) *PCollection {
	return g.NewTransform(s, GroupByKey, name, nil, in).Output
}

// Flatten adds a transform merging its inputs into one PCollection.
func (g *Graph) Flatten(s *Scope, name string, ins ...*PCollection) *PCollection {
	return g.NewTransform(s, Flatten, name, nil, ins...).Output
}
