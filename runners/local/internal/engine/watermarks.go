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
	"fmt"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/mtime"
)

type set[K comparable] map[K]struct{}

func (s set[K]) remove(k K) {
	delete(s, k)
}

func (s set[K]) insert(k K) {
	s[k] = struct{}{}
}

// transformState is the watermark and input tracking for a transform.
type transformState struct {
	t *graph.Transform

	input  mtime.Time // input watermark
	output mtime.Time // output watermark

	pending  []*CommittedBundle          // committed input not yet evaluated
	inflight map[string]*CommittedBundle // input being evaluated, by bundle ID
	holds    *keyedHolds
}

// minPendingTimestamp returns the minimum timestamp of all pending elements,
// including in flight ones.
func (ts *transformState) minPendingTimestamp() mtime.Time {
	minPending := mtime.MaxTimestamp
	for _, b := range ts.pending {
		minPending = mtime.Min(minPending, b.MinTimestamp())
	}
	for _, b := range ts.inflight {
		minPending = mtime.Min(minPending, b.MinTimestamp())
	}
	return minPending
}

func (ts *transformState) String() string {
	return fmt.Sprintf("[%v] IN: %v OUT: %v pending: %d inflight: %d", ts.t.FullName(), ts.input, ts.output, len(ts.pending), len(ts.inflight))
}

// WatermarkManager tracks pending input, holds and watermarks for every
// transform of a graph. It is driven by a single goroutine.
type WatermarkManager struct {
	order  []*graph.Transform
	states map[*graph.Transform]*transformState
}

// NewWatermarkManager returns a manager for transforms, which must be ordered
// so that producers precede their consumers.
func NewWatermarkManager(transforms []*graph.Transform) *WatermarkManager {
	wm := &WatermarkManager{
		order:  append([]*graph.Transform(nil), transforms...),
		states: map[*graph.Transform]*transformState{},
	}
	for _, t := range transforms {
		wm.states[t] = &transformState{
			t:        t,
			input:    mtime.MinTimestamp,
			output:   mtime.MinTimestamp,
			inflight: map[string]*CommittedBundle{},
			holds:    newKeyedHolds(),
		}
	}
	return wm
}

// AddPending queues b as input of t.
func (wm *WatermarkManager) AddPending(t *graph.Transform, b *CommittedBundle) {
	ts := wm.states[t]
	ts.pending = append(ts.pending, b)
}

type workItem struct {
	t      *graph.Transform
	bundle *CommittedBundle
}

// takePending moves every pending bundle to in flight and returns them,
// ordered by transform and then by arrival.
func (wm *WatermarkManager) takePending() []workItem {
	var ret []workItem
	for _, t := range wm.order {
		ts := wm.states[t]
		for _, b := range ts.pending {
			ts.inflight[b.ID()] = b
			ret = append(ret, workItem{t: t, bundle: b})
		}
		ts.pending = nil
	}
	return ret
}

// HasPending reports whether any transform has queued input.
func (wm *WatermarkManager) HasPending() bool {
	for _, ts := range wm.states {
		if len(ts.pending) > 0 {
			return true
		}
	}
	return false
}

// Complete marks b as evaluated by t.
func (wm *WatermarkManager) Complete(t *graph.Transform, b *CommittedBundle) {
	delete(wm.states[t].inflight, b.ID())
}

// SetHold replaces the hold of t for key.
func (wm *WatermarkManager) SetHold(t *graph.Transform, key any, hold mtime.Time) {
	wm.states[t].holds.Set(key, hold)
}

// ClearHold removes the hold of t for key.
func (wm *WatermarkManager) ClearHold(t *graph.Transform, key any) {
	wm.states[t].holds.Clear(key)
}

// ClearHolds removes every hold of t.
func (wm *WatermarkManager) ClearHolds(t *graph.Transform) {
	wm.states[t].holds.ClearAll()
}

// InputWatermark returns the input watermark of t.
func (wm *WatermarkManager) InputWatermark(t *graph.Transform) mtime.Time {
	return wm.states[t].input
}

// OutputWatermark returns the output watermark of t.
func (wm *WatermarkManager) OutputWatermark(t *graph.Transform) mtime.Time {
	return wm.states[t].output
}

// upstreamWatermark is the minimum output watermark of the producers of t's
// inputs. Transforms without inputs have no upstream constraint.
func (wm *WatermarkManager) upstreamWatermark(t *graph.Transform) mtime.Time {
	upstream := mtime.MaxTimestamp
	for _, in := range t.Inputs {
		if p, ok := wm.states[in.Producer()]; ok {
			upstream = mtime.Min(upstream, p.output)
		}
	}
	return upstream
}

// Refresh recomputes every watermark in producer-first order and returns the
// transforms whose input watermark advanced:
//
//	Watermark_In'  = MAX(Watermark_In, MIN(TS_Pending, Watermark_Upstream))
//	Watermark_Out' = MAX(Watermark_Out, MIN(Watermark_In', Hold))
func (wm *WatermarkManager) Refresh() []*graph.Transform {
	var advanced []*graph.Transform
	for _, t := range wm.order {
		ts := wm.states[t]

		newIn := mtime.Min(wm.upstreamWatermark(t), ts.minPendingTimestamp())
		if newIn > ts.input {
			ts.input = newIn
			advanced = append(advanced, t)
		}
		newOut := mtime.Min(ts.input, ts.holds.Min())
		if newOut > ts.output {
			ts.output = newOut
		}
	}
	return advanced
}

// Done reports whether every output watermark has reached the end of time.
func (wm *WatermarkManager) Done() bool {
	for _, ts := range wm.states {
		if ts.output < mtime.MaxTimestamp {
			return false
		}
	}
	return true
}
