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

package errors

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	const want = "error message"
	if got := New(want).Error(); got != want {
		t.Errorf("New(%q).Error() = %q, want %q", want, got, want)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf("reading %v: %w", "shard", io.EOF)
	if got, want := err.Error(), "reading shard: EOF"; got != want {
		t.Errorf("Errorf() = %q, want %q", got, want)
	}
	if !Is(err, io.EOF) {
		t.Errorf("Is(Errorf(..%%w..), io.EOF) = false, want true")
	}
}

func TestNilPassthrough(t *testing.T) {
	for name, err := range map[string]error{
		"Wrap":            Wrap(nil, "msg"),
		"Wrapf":           Wrapf(nil, "msg %d", 1),
		"WithContext":     WithContext(nil, "ctx"),
		"WithContextf":    WithContextf(nil, "ctx %d", 1),
		"SetTopLevelMsg":  SetTopLevelMsg(nil, "top"),
		"SetTopLevelMsgf": SetTopLevelMsgf(nil, "top %d", 1),
	} {
		if err != nil {
			t.Errorf("%v(nil, ...) = %v, want nil", name, err)
		}
	}
}

func TestChainFormatting(t *testing.T) {
	base := New("base")
	err := Wrap(WithContext(base, "committing bundle"), "evaluation failed")
	got := err.Error()
	want := "evaluation failed\n\tcaused by:\n\tcommitting bundle\nbase"
	if got != want {
		t.Errorf("Error() =\n%q\nwant\n%q", got, want)
	}
	if !Is(err, base) {
		t.Errorf("Is(wrapped, base) = false, want true")
	}
}

func TestTopLevelMsg(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unset", Wrap(New("base"), "msg"), "msg"},
		{"set", SetTopLevelMsg(New("base"), "top"), "top\nFull error:\n"},
		{"propagated", Wrap(SetTopLevelMsg(New("base"), "top"), "msg"), "top\nFull error:\n"},
		{"overridden", SetTopLevelMsgf(SetTopLevelMsg(New("base"), "first"), "second %d", 2), "second 2\nFull error:\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.err.Error(); !strings.HasPrefix(got, test.want) {
				t.Errorf("Error() = %q, want prefix %q", got, test.want)
			}
		})
	}
}

func TestKinds(t *testing.T) {
	invalid := InvalidArgumentf("transform must not be nil")
	illegal := IllegalStatef("bundle %v already committed", "b1")

	if !Is(invalid, ErrInvalidArgument) || Is(invalid, ErrIllegalState) {
		t.Errorf("InvalidArgumentf kind mismatch: %v", invalid)
	}
	if !Is(illegal, ErrIllegalState) || Is(illegal, ErrInvalidArgument) {
		t.Errorf("IllegalStatef kind mismatch: %v", illegal)
	}
	wrapped := WithContextf(Wrap(illegal, "commit"), "stage %v", "s1")
	if !Is(wrapped, ErrIllegalState) {
		t.Errorf("Is(wrapped IllegalStatef, ErrIllegalState) = false, want true")
	}
	if got, want := illegal.Error(), "illegal state: bundle b1 already committed"; got != want {
		t.Errorf("IllegalStatef().Error() = %q, want %q", got, want)
	}
}

func TestFormat(t *testing.T) {
	err := Wrap(New("base"), "msg")
	if got, want := fmt.Sprintf("%v", err), err.Error(); got != want {
		t.Errorf("Sprintf(%%v) = %q, want %q", got, want)
	}
	if got, want := fmt.Sprintf("%q", err), fmt.Sprintf("%q", err.Error()); got != want {
		t.Errorf("Sprintf(%%q) = %q, want %q", got, want)
	}
}
