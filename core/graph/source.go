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
	"sync"

	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/core/typex"
)

// ListSource is an UnboundedSource over a fixed list of elements. It behaves
// like a stream: each Read hands out the next elements in order and reports
// the timestamp of the first unread element as its watermark.
type ListSource struct {
	mu   sync.Mutex
	elms []typex.WindowedValue
	next int
}

// NewListSource returns a source emitting elms in order.
func NewListSource(elms ...typex.WindowedValue) *ListSource {
	return &ListSource{elms: append([]typex.WindowedValue(nil), elms...)}
}

// Read implements UnboundedSource.
func (s *ListSource) Read(ctx context.Context, max int) ([]typex.WindowedValue, mtime.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, mtime.MinTimestamp, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.elms) {
		return nil, mtime.MaxTimestamp, true, nil
	}
	end := len(s.elms)
	if max > 0 && max < end-s.next {
		end = s.next + max
	}
	out := s.elms[s.next:end]
	s.next = end
	if s.next >= len(s.elms) {
		return out, mtime.MaxTimestamp, true, nil
	}
	return out, s.elms[s.next].Timestamp, false, nil
}
