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
	"container/heap"
	"fmt"

	"github.com/apache/beam/localrunner/core/mtime"
)

// timeHeap is a min-heap of distinct hold times.
type timeHeap []mtime.Time

func (h timeHeap) Len() int           { return len(h) }
func (h timeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timeHeap) Push(x any)        { *h = append(*h, x.(mtime.Time)) }

func (h *timeHeap) Pop() any {
	last := (*h)[len(*h)-1]
	*h = (*h)[:len(*h)-1]
	return last
}

// holdCounts is a multiset of hold times with fast access to the earliest.
type holdCounts struct {
	times  timeHeap
	counts map[mtime.Time]int
}

func newHoldCounts() *holdCounts {
	return &holdCounts{counts: map[mtime.Time]int{}}
}

// add records n more holds at t.
func (hc *holdCounts) add(t mtime.Time, n int) {
	if hc.counts[t] == 0 {
		heap.Push(&hc.times, t)
	}
	hc.counts[t] += n
}

// release drops n holds at t. It panics if fewer than n are held.
func (hc *holdCounts) release(t mtime.Time, n int) {
	left := hc.counts[t] - n
	switch {
	case left < 0:
		panic(fmt.Sprintf("releasing %d holds at %v, only %d held", n, t, hc.counts[t]))
	case left > 0:
		hc.counts[t] = left
		return
	}
	delete(hc.counts, t)
	for i, v := range hc.times {
		if v == t {
			heap.Remove(&hc.times, i)
			break
		}
	}
}

// min returns the earliest hold, or mtime.MaxTimestamp when nothing is held.
func (hc *holdCounts) min() mtime.Time {
	if len(hc.times) == 0 {
		return mtime.MaxTimestamp
	}
	return hc.times[0]
}

// keyedHolds keeps one hold per bundle key. A newer hold for a key replaces
// the older one; the transform is held at the minimum across keys.
type keyedHolds struct {
	byKey  map[any]mtime.Time
	counts *holdCounts
}

func newKeyedHolds() *keyedHolds {
	return &keyedHolds{byKey: map[any]mtime.Time{}, counts: newHoldCounts()}
}

// Set replaces the hold for key.
func (kh *keyedHolds) Set(key any, hold mtime.Time) {
	kh.Clear(key)
	kh.byKey[key] = hold
	kh.counts.add(hold, 1)
}

// Clear removes the hold for key, if any.
func (kh *keyedHolds) Clear(key any) {
	if prev, ok := kh.byKey[key]; ok {
		delete(kh.byKey, key)
		kh.counts.release(prev, 1)
	}
}

// ClearAll removes every hold.
func (kh *keyedHolds) ClearAll() {
	kh.byKey = map[any]mtime.Time{}
	kh.counts = newHoldCounts()
}

// Min returns the minimum hold, or mtime.MaxTimestamp if there are none.
func (kh *keyedHolds) Min() mtime.Time {
	return kh.counts.min()
}
