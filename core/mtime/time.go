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

// Package mtime holds the millisecond event-time representation used by the
// local runner. Bundles, watermarks, and holds are all expressed in it, and it
// has explicit sentinels for -inf and +inf that time.Time cannot represent.
package mtime

import (
	"math"
	"strconv"
	"time"
)

const (
	// MinTimestamp is the earliest representable time ("-inf"). Watermarks
	// start here.
	MinTimestamp Time = math.MinInt64 / 1000

	// MaxTimestamp is the latest representable time ("+inf"). A watermark at
	// MaxTimestamp means no more data will arrive.
	MaxTimestamp Time = math.MaxInt64 / 1000

	// EndOfGlobalWindowTime is the largest timestamp an element in the global
	// window may carry. It is one day before MaxTimestamp.
	EndOfGlobalWindowTime = MaxTimestamp - 24*60*60*1000

	// ZeroTimestamp is the unix epoch.
	ZeroTimestamp Time = 0
)

// Time is a count of milliseconds since the unix epoch.
type Time int64

// FromMilliseconds converts a raw millisecond count, clamping it to the valid range.
func FromMilliseconds(ms int64) Time {
	return Normalize(Time(ms))
}

// FromTime converts a time.Time to millisecond precision.
func FromTime(t time.Time) Time {
	return FromMilliseconds(t.UnixMilli())
}

// FromDuration returns the time d after the epoch.
func FromDuration(d time.Duration) Time {
	return FromMilliseconds(d.Milliseconds())
}

// Milliseconds returns the raw millisecond count.
func (t Time) Milliseconds() int64 {
	return int64(t)
}

// ToTime converts back to a time.Time in UTC.
func (t Time) ToTime() time.Time {
	return time.UnixMilli(t.Milliseconds()).UTC()
}

// Add returns t+d, clamped.
func (t Time) Add(d time.Duration) Time {
	return Normalize(t + Time(d.Milliseconds()))
}

// Subtract returns t-d, clamped.
func (t Time) Subtract(d time.Duration) Time {
	return t.Add(-d)
}

func (t Time) String() string {
	switch t {
	case MinTimestamp:
		return "-inf"
	case MaxTimestamp:
		return "+inf"
	case EndOfGlobalWindowTime:
		return "glo"
	}
	return strconv.FormatInt(int64(t), 10)
}

// Min returns the earlier of a and b.
func Min(a, b Time) Time {
	return min(a, b)
}

// Max returns the later of a and b.
func Max(a, b Time) Time {
	return max(a, b)
}

// Normalize clamps t into [MinTimestamp, MaxTimestamp].
func Normalize(t Time) Time {
	return max(MinTimestamp, min(t, MaxTimestamp))
}
