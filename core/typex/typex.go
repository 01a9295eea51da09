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

// Package typex contains the element representations that flow between
// transforms: windowed values and key/value pairs.
package typex

import (
	"fmt"

	"github.com/apache/beam/localrunner/core/mtime"
)

// WindowedValue is an element with its event timestamp. All elements belong to
// the global window.
type WindowedValue struct {
	Elm       any
	Timestamp mtime.Time
}

// ValueInGlobalWindow returns v timestamped at the start of time.
func ValueInGlobalWindow(v any) WindowedValue {
	return WindowedValue{Elm: v, Timestamp: mtime.MinTimestamp}
}

// TimestampedValue returns v at the given timestamp.
func TimestampedValue(v any, ts mtime.Time) WindowedValue {
	return WindowedValue{Elm: v, Timestamp: ts}
}

func (wv WindowedValue) String() string {
	return fmt.Sprintf("%v@%v", wv.Elm, wv.Timestamp)
}

// KV is a key/value pair. Keys must be comparable.
type KV struct {
	Key   any
	Value any
}

func (kv KV) String() string {
	return fmt.Sprintf("(%v, %v)", kv.Key, kv.Value)
}

// Grouped is the output of a GroupByKey: a key with every value seen for it.
type Grouped struct {
	Key    any
	Values []any
}

func (g Grouped) String() string {
	return fmt.Sprintf("(%v, %v)", g.Key, g.Values)
}
