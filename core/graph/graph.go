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
	"fmt"
	"strings"

	"github.com/apache/beam/localrunner/internal/errors"
)

// Graph represents an in-progress deferred execution graph. This
// representation allows precise control over scope and connectivity.
type Graph struct {
	scopes     []*Scope
	transforms []*Transform
	pcols      []*PCollection

	nextTransform int
	root          *Scope
}

// New returns an empty graph with the scope set to the root.
func New() *Graph {
	root := &Scope{id: 0, Label: "root"}
	return &Graph{root: root}
}

// Root returns the root scope of the graph.
func (g *Graph) Root() *Scope {
	return g.root
}

// NewScope creates and returns a new scope that is a child of the supplied scope.
func (g *Graph) NewScope(parent *Scope, name string) *Scope {
	id := len(g.scopes) + 1
	s := &Scope{id: id, Label: name, Parent: parent}
	g.scopes = append(g.scopes, s)
	parent.parts = append(parent.parts, s)
	return s
}

// NewTransform adds a primitive transform in the supplied scope and returns
// it. The transform produces a single new PCollection, which is bounded
// unless the transform reads an unbounded source or consumes an unbounded
// input.
func (g *Graph) NewTransform(parent *Scope, op Opcode, name string, payload any, inputs ...*PCollection) *Transform {
	g.nextTransform++
	t := &Transform{
		id:      g.nextTransform,
		Op:      op,
		Name:    name,
		Scope:   parent,
		Payload: payload,
		Inputs:  inputs,
	}
	bounded := op != UnboundedRead
	for _, in := range inputs {
		if in != nil && !in.Bounded {
			bounded = false
		}
	}
	t.Output = g.newPCollection(bounded, t)
	g.transforms = append(g.transforms, t)
	parent.parts = append(parent.parts, t)
	return t
}

func (g *Graph) newPCollection(bounded bool, producer *Transform) *PCollection {
	id := len(g.pcols) + 1
	p := &PCollection{id: id, Bounded: bounded, producer: producer}
	g.pcols = append(g.pcols, p)
	return p
}

// Replace substitutes replacement for old. The replacement takes old's place
// in its scope and takes over old's output, so downstream consumers read from
// the replacement. Replacing a transform with itself is a no-op.
func (g *Graph) Replace(old, replacement *Transform) error {
	if old == nil || replacement == nil {
		return errors.InvalidArgumentf("cannot replace %v with %v", old, replacement)
	}
	if old == replacement {
		return nil
	}
	idx := -1
	for i, t := range g.transforms {
		if t == old {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.IllegalStatef("transform %v is not part of this graph", old)
	}
	if replacement.id == 0 {
		g.nextTransform++
		replacement.id = g.nextTransform
	}
	replacement.Output = old.Output
	replacement.Output.producer = replacement
	g.transforms[idx] = replacement

	parts := old.Scope.parts
	for i, p := range parts {
		if p == old {
			parts[i] = replacement
		}
	}
	return nil
}

// Transforms returns the primitive transforms of the graph in the order they
// were added. Producers precede their consumers.
func (g *Graph) Transforms() []*Transform {
	return append([]*Transform(nil), g.transforms...)
}

// PCollections returns every PCollection of the graph.
func (g *Graph) PCollections() []*PCollection {
	return append([]*PCollection(nil), g.pcols...)
}

// Consumers returns the transforms that read p.
func (g *Graph) Consumers(p *PCollection) []*Transform {
	var ret []*Transform
	for _, t := range g.transforms {
		for _, in := range t.Inputs {
			if in == p {
				ret = append(ret, t)
				break
			}
		}
	}
	return ret
}

// Build verifies the structure of the graph and returns its primitive
// transforms.
func (g *Graph) Build() ([]*Transform, error) {
	if len(g.transforms) == 0 {
		return nil, errors.InvalidArgumentf("graph has no transforms")
	}
	for _, t := range g.transforms {
		if err := t.validate(); err != nil {
			return nil, errors.WithContextf(err, "validating %v", t.FullName())
		}
	}
	return g.Transforms(), nil
}

func (g *Graph) String() string {
	var pcols []string
	for _, p := range g.pcols {
		pcols = append(pcols, p.String())
	}
	var transforms []string
	for _, t := range g.transforms {
		transforms = append(transforms, t.String())
	}
	return fmt.Sprintf("PCollections: %v\nTransforms: %v", strings.Join(pcols, "\n"), strings.Join(transforms, "\n"))
}
