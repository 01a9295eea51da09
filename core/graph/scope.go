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

import "strings"

// Scope groups the transforms of a composite. Scopes only matter for
// naming and traversal; execution sees primitive transforms alone.
type Scope struct {
	id int

	Label  string
	Parent *Scope // nil for the root

	parts []any // *Scope and *Transform, in creation order
}

func (s *Scope) ID() int {
	return s.id
}

// IsRoot reports whether s is the root scope of its graph.
func (s *Scope) IsRoot() bool {
	return s.Parent == nil
}

// String returns the labels from the root down to s, joined by "/".
func (s *Scope) String() string {
	var labels []string
	for c := s; c != nil; c = c.Parent {
		labels = append(labels, c.Label)
	}
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, "/")
}
