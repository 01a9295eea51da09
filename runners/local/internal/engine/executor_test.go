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
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/apache/beam/localrunner/core/graph"
	"github.com/apache/beam/localrunner/core/mtime"
	"github.com/apache/beam/localrunner/core/typex"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
	_ "github.com/apache/beam/localrunner/io/filesystem/memfs"
	"github.com/apache/beam/localrunner/io/fileio"
	"github.com/apache/beam/localrunner/io/textio"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/zoobzio/clockz"
)

func splitWords(e typex.WindowedValue, emit func(typex.WindowedValue)) error {
	for _, w := range strings.Fields(e.Elm.(string)) {
		emit(typex.TimestampedValue(typex.KV{Key: w, Value: 1}, e.Timestamp))
	}
	return nil
}

func countWords(e typex.WindowedValue, emit func(typex.WindowedValue)) error {
	g := e.Elm.(typex.Grouped)
	emit(typex.TimestampedValue(typex.KV{Key: g.Key, Value: len(g.Values)}, e.Timestamp))
	return nil
}

func wordCount(g *graph.Graph, lines *graph.PCollection) *graph.PCollection {
	s := g.NewScope(g.Root(), "CountWords")
	words := g.ParDo(s, "Split", splitWords, lines)
	grouped := g.GroupByKey(s, "Group", words)
	return g.ParDo(s, "Count", countWords, grouped)
}

func elements(e *Executor, p *graph.PCollection) []any {
	var ret []any
	for _, b := range e.Bundles(p) {
		for _, elm := range b.Elements() {
			ret = append(ret, elm.Elm)
		}
	}
	return ret
}

func runGraph(t *testing.T, ctx context.Context, g *graph.Graph, cfg Config) (*Executor, error) {
	t.Helper()
	transforms, err := g.Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	e, err := NewExecutor(transforms, cfg)
	if err != nil {
		t.Fatalf("NewExecutor() = %v", err)
	}
	return e, e.Run(ctx)
}

var sortKVs = cmpopts.SortSlices(func(a, b any) bool {
	return a.(typex.KV).Key.(string) < b.(typex.KV).Key.(string)
})

func TestExecutor_Batch(t *testing.T) {
	for _, size := range []int{0, 1, 2} {
		g := graph.New()
		lines := g.Create(g.Root(), "Lines", "a b a", "c", "b a")
		counts := wordCount(g, lines)

		e, err := runGraph(t, context.Background(), g, Config{MaxBundleSize: size, Parallelism: 2})
		if err != nil {
			t.Fatalf("MaxBundleSize %d: Run() = %v", size, err)
		}
		want := []any{
			typex.KV{Key: "a", Value: 3},
			typex.KV{Key: "b", Value: 2},
			typex.KV{Key: "c", Value: 1},
		}
		if d := cmp.Diff(want, elements(e, counts), sortKVs); d != "" {
			t.Errorf("MaxBundleSize %d: counts diff (-want +got):\n%v", size, d)
		}
		for _, tr := range g.Transforms() {
			if got := e.wm.OutputWatermark(tr); got != mtime.MaxTimestamp {
				t.Errorf("MaxBundleSize %d: OutputWatermark(%v) = %v, want %v", size, tr, got, mtime.MaxTimestamp)
			}
		}
	}
}

func TestExecutor_UnprocessedInputIsRequeued(t *testing.T) {
	g := graph.New()
	nums := g.Create(g.Root(), "Nums", 1, 2, 3, 4, 5, 6, 7)
	ident := func(e typex.WindowedValue, emit func(typex.WindowedValue)) error {
		emit(e)
		return nil
	}
	out := g.ParDo(g.Root(), "Identity", ident, nums)

	e, err := runGraph(t, context.Background(), g, Config{MaxBundleSize: 3})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	sortInts := cmpopts.SortSlices(func(a, b any) bool { return a.(int) < b.(int) })
	if d := cmp.Diff([]any{1, 2, 3, 4, 5, 6, 7}, elements(e, out), sortInts); d != "" {
		t.Errorf("output diff (-want +got):\n%v", d)
	}

	partial := 0
	for _, r := range e.Results() {
		if r.Transform().Name == "Identity" && r.UnprocessedInputs() != nil {
			partial++
		}
	}
	if partial == 0 {
		t.Errorf("no Identity result carried unprocessed input with MaxBundleSize 3")
	}
}

func TestExecutor_Flatten(t *testing.T) {
	g := graph.New()
	a := g.Create(g.Root(), "A", "x", "y")
	b := g.Create(g.Root(), "B", "z")
	flat := g.Flatten(g.Root(), "Flatten", a, b)

	e, err := runGraph(t, context.Background(), g, Config{})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	sortStrings := cmpopts.SortSlices(func(a, b any) bool { return a.(string) < b.(string) })
	if d := cmp.Diff([]any{"x", "y", "z"}, elements(e, flat), sortStrings); d != "" {
		t.Errorf("flatten diff (-want +got):\n%v", d)
	}
}

func TestExecutor_Streaming(t *testing.T) {
	g := graph.New()
	src := graph.NewListSource(
		typex.TimestampedValue("a b", 10),
		typex.TimestampedValue("b", 20),
		typex.TimestampedValue("a", 30),
	)
	lines := g.Read(g.Root(), "Read", src)
	counts := wordCount(g, lines)

	e, err := runGraph(t, context.Background(), g, Config{Streaming: true, MaxBundleSize: 1, PollInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	want := []any{
		typex.KV{Key: "a", Value: 2},
		typex.KV{Key: "b", Value: 2},
	}
	if d := cmp.Diff(want, elements(e, counts), sortKVs); d != "" {
		t.Errorf("counts diff (-want +got):\n%v", d)
	}
}

func TestExecutor_BatchRejectsUnboundedRead(t *testing.T) {
	g := graph.New()
	g.Read(g.Root(), "Read", graph.NewListSource())
	transforms, err := g.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewExecutor(transforms, Config{}); !errors.Is(err, errors.ErrIllegalState) {
		t.Errorf("NewExecutor() = %v, want ErrIllegalState", err)
	}
}

func TestExecutor_WriteFiles(t *testing.T) {
	ctx := context.Background()
	g := graph.New()
	in := g.Create(g.Root(), "Lines", "one", "two", "three", "four", "five")
	w := fileio.NewWrite("memfs://executor-test/out", ".txt", textio.Sink{}, fileio.WithNumShards(3))
	write := fileio.WriteFiles(g, g.Root(), "Write", w, in)

	e, err := runGraph(t, ctx, g, Config{})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	var names []string
	for _, v := range elements(e, write.Output) {
		names = append(names, v.(string))
	}
	wantNames := []string{
		"memfs://executor-test/out-00000-of-00003.txt",
		"memfs://executor-test/out-00001-of-00003.txt",
		"memfs://executor-test/out-00002-of-00003.txt",
	}
	if d := cmp.Diff(wantNames, names); d != "" {
		t.Errorf("file names diff (-want +got):\n%v", d)
	}

	fs, err := filesystem.New(ctx, wantNames[0])
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()
	var lines []string
	for _, name := range wantNames {
		data, err := filesystem.Read(ctx, fs, name)
		if err != nil {
			t.Fatalf("Read(%v) = %v", name, err)
		}
		lines = append(lines, strings.Fields(string(data))...)
	}
	sort.Strings(lines)
	if d := cmp.Diff([]string{"five", "four", "one", "three", "two"}, lines); d != "" {
		t.Errorf("written lines diff (-want +got):\n%v", d)
	}
}

func TestExecutor_DoFnError(t *testing.T) {
	g := graph.New()
	in := g.Create(g.Root(), "Nums", 1, 2)
	g.ParDo(g.Root(), "Fail", func(typex.WindowedValue, func(typex.WindowedValue)) error {
		return errors.InvalidArgumentf("bad element")
	}, in)

	_, err := runGraph(t, context.Background(), g, Config{})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("Run() = %v, want ErrInvalidArgument", err)
	}
}

// stalledSource never produces an element nor finishes.
type stalledSource struct{}

func (stalledSource) Read(ctx context.Context, _ int) ([]typex.WindowedValue, mtime.Time, bool, error) {
	return nil, mtime.MinTimestamp, false, ctx.Err()
}

func TestExecutor_Cancel(t *testing.T) {
	g := graph.New()
	g.Read(g.Root(), "Stalled", stalledSource{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := runGraph(t, ctx, g, Config{Streaming: true, PollInterval: time.Millisecond})
	if err == nil {
		t.Fatal("Run() = nil, want cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want context.DeadlineExceeded", err)
	}
}

func TestExecutor_CommitTimestamps(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.UnixMilli(5000))
	g := graph.New()
	lines := g.Create(g.Root(), "Lines", "a b", "c")
	counts := wordCount(g, lines)

	e, err := runGraph(t, context.Background(), g, Config{Clock: clock, MaxBundleSize: 1})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	last := mtime.MinTimestamp
	for _, r := range e.Results() {
		for _, b := range r.Outputs() {
			if b.CommitTimestamp() < last {
				t.Errorf("commit timestamp %v of %v precedes %v", b.CommitTimestamp(), b, last)
			}
			last = b.CommitTimestamp()
		}
	}
	if got := len(e.Bundles(counts)); got == 0 {
		t.Errorf("Bundles(counts) is empty")
	}
	if last != 5000 {
		t.Errorf("last commit timestamp = %v, want 5000 with a stopped clock", last)
	}
}

func TestExecutor_BufferedHoldSurvivesCommitOrder(t *testing.T) {
	g := graph.New()
	in := g.Create(g.Root(), "create")
	g.GroupByKey(g.Root(), "gbk", in)
	transforms, err := g.Build()
	if err != nil {
		t.Fatal(err)
	}
	gbk := transforms[1]
	e, err := NewExecutor(transforms, Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	early := commit(t, e.factory.CreateRootBundle(in).Add(typex.TimestampedValue(typex.KV{Key: "a", Value: 1}, 5)), 0)
	late := commit(t, e.factory.CreateRootBundle(in).Add(typex.TimestampedValue(typex.KV{Key: "b", Value: 2}, 10)), 0)

	// The late bundle is evaluated first, but committed last.
	lateResult, err := e.evaluators[gbk].ProcessBundle(ctx, late)
	if err != nil {
		t.Fatal(err)
	}
	earlyResult, err := e.evaluators[gbk].ProcessBundle(ctx, early)
	if err != nil {
		t.Fatal(err)
	}
	if hold, _ := lateResult.Hold(); hold != 10 {
		t.Fatalf("late Hold() = %v, want 10", hold)
	}
	for _, c := range []struct {
		in *CommittedBundle
		r  *StepTransformResult
	}{{early, earlyResult}, {late, lateResult}} {
		if _, err := e.commit(gbk, c.in, c.r); err != nil {
			t.Fatalf("commit() = %v", err)
		}
	}
	if got := e.wm.states[gbk].holds.Min(); got != 5 {
		t.Errorf("hold after commits = %v, want 5", got)
	}
}
