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

import "fmt"

// PCollection is an edge of the graph: the elements produced by one
// transform and read by any number of others.
type PCollection struct {
	id int

	// Bounded is false when the elements may never end.
	Bounded  bool
	producer *Transform
}

// ID returns the graph-local identifier for the PCollection.
func (p *PCollection) ID() int {
	return p.id
}

// Producer returns the transform that outputs p.
func (p *PCollection) Producer() *Transform {
	return p.producer
}

func (p *PCollection) String() string {
	if p.Bounded {
		return fmt.Sprintf("{pc%v: bounded}", p.id)
	}
	return fmt.Sprintf("{pc%v: unbounded}", p.id)
}
