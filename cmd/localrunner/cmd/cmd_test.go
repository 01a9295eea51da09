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

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flags keep their values between executions.
	streaming, unbounded, configPath, variant, numShards, input, output = false, false, "", "", 0, "", ""
	logLevel, logKind = "info", "text"

	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs(args)
	err := Root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMode(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"mode"}, "batch"},
		{[]string{"mode", "--streaming"}, "streaming"},
		{[]string{"mode", "--unbounded"}, "streaming"},
	}
	for _, test := range tests {
		got, err := execute(t, test.args...)
		if err != nil {
			t.Fatalf("%v: %v", test.args, err)
		}
		if strings.TrimSpace(got) != test.want {
			t.Errorf("%v printed %q, want %q", test.args, got, test.want)
		}
	}
}

func readOutput(t *testing.T, printed string) []string {
	t.Helper()
	var lines []string
	for _, f := range strings.Fields(printed) {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("ReadFile(%v) = %v", f, err)
		}
		for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if l != "" {
				lines = append(lines, l)
			}
		}
	}
	sort.Strings(lines)
	return lines
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(in, []byte("alpha\n\nbeta\ngamma\n"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, extra := range [][]string{nil, {"--unbounded"}} {
		out := filepath.Join(t.TempDir(), "out")
		args := append([]string{"run", "--input", in, "--output", out, "--shards", "2"}, extra...)
		printed, err := execute(t, args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if got := len(strings.Fields(printed)); got != 2 {
			t.Errorf("%v printed %d files, want 2: %q", args, got, printed)
		}
		if d := cmp.Diff([]string{"ALPHA", "BETA", "GAMMA"}, readOutput(t, printed)); d != "" {
			t.Errorf("%v output diff (-want +got):\n%v", args, d)
		}
	}
}

func TestRun_Config(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "runner.yaml")
	if err := os.WriteFile(settings, []byte("wide:\n  sharding:\n    num_shards: 4\n  bundles:\n    max_bundle_size: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	printed, err := execute(t, "run", "--output", out, "--config", settings, "--variant", "wide")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(strings.Fields(printed)); got != 4 {
		t.Errorf("printed %d files, want 4: %q", got, printed)
	}
	want := []string{"JUMPS OVER", "THE LAZY DOG", "THE QUICK BROWN FOX"}
	if d := cmp.Diff(want, readOutput(t, printed)); d != "" {
		t.Errorf("output diff (-want +got):\n%v", d)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := [][]string{
		{"run"},
		{"run", "--output", "out", "--variant", "wide"},
		{"run", "--output", "out", "--config", "/does/not/exist.yaml"},
		{"mode", "--log_level", "loud"},
	}
	for _, args := range tests {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v succeeded, want error", args)
		}
	}
}
