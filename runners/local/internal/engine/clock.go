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
	"sync"

	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/zoobzio/clockz"
)

// CommitClock produces commit timestamps from a clock. Timestamps never
// decrease, even if the underlying clock steps backwards.
type CommitClock struct {
	mu    sync.Mutex
	clock clockz.Clock
	last  mtime.Time
}

// NewCommitClock returns a CommitClock reading from c.
func NewCommitClock(c clockz.Clock) *CommitClock {
	return &CommitClock{clock: c, last: mtime.MinTimestamp}
}

// Now returns the next commit timestamp.
func (c *CommitClock) Now() mtime.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = mtime.Max(c.last, mtime.FromTime(c.clock.Now()))
	return c.last
}
