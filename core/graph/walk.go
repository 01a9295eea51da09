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

// CompositeBehavior tells Walk whether to descend into a composite.
type CompositeBehavior int

// Valid composite behaviors.
const (
	EnterTransform CompositeBehavior = iota
	DoNotEnterTransform
)

// Visitor receives callbacks while Walk traverses the scope tree.
type Visitor interface {
	EnterComposite(s *Scope) CompositeBehavior
	LeaveComposite(s *Scope)
	VisitPrimitive(t *Transform)
	VisitValue(p *PCollection, producer *Transform)
}

// Walk traverses g depth first in creation order, starting at the root
// scope. LeaveComposite is called for every scope that was entered, even if
// EnterComposite declined to descend. Each primitive's output is visited
// right after the primitive.
func Walk(g *Graph, v Visitor) {
	walkScope(g.root, v)
}

func walkScope(s *Scope, v Visitor) {
	if v.EnterComposite(s) == EnterTransform {
		for _, p := range s.parts {
			switch p := p.(type) {
			case *Scope:
				walkScope(p, v)
			case *Transform:
				v.VisitPrimitive(p)
				if p.Output != nil {
					v.VisitValue(p.Output, p)
				}
			}
		}
	}
	v.LeaveComposite(s)
}
