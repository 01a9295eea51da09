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

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/google/go-cmp/cmp"
)

func TestHandlerRegistry(t *testing.T) {
	type spotCheck struct {
		v, h string
		want any
	}
	tests := []struct {
		name   string
		config string

		wantVariants, wantHandlers []string
		wantDefault                string
		wantSpots                  []spotCheck
	}{
		{
			name: "basics",
			config: `
default: fast
fast:
  bundles:
    max_bundle_size: 1000
  streaming:
    poll_interval: 10ms
careful:
  bundles:
    max_bundle_size: 1
  sharding:
    num_shards: 4
`,
			wantVariants: []string{"careful", "fast"},
			wantHandlers: []string{BundlesHandler, ShardingHandler, StreamingHandler},
			wantDefault:  "fast",
			wantSpots: []spotCheck{
				{v: "fast", h: BundlesHandler, want: Bundles{MaxBundleSize: 1000}},
				{v: "careful", h: BundlesHandler, want: Bundles{MaxBundleSize: 1}},
				{v: "careful", h: ShardingHandler, want: Sharding{NumShards: 4}},
				{v: "fast", h: ShardingHandler, want: Sharding{}}, // Unset handlers take zero values.
				{v: "fast", h: StreamingHandler, want: Streaming{PollInterval: "10ms"}},
				{v: "unknown", h: BundlesHandler, want: nil},
				{v: "fast", h: "missing", want: nil},
			},
		}, {
			name: "empty variant",
			config: `
version: 1
plain:
`,
			wantVariants: []string{"plain"},
			wantSpots: []spotCheck{
				{v: "plain", h: StreamingHandler, want: Streaming{}},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reg := NewRunnerRegistry()
			if err := reg.LoadFromYaml([]byte(test.config)); err != nil {
				t.Fatalf("LoadFromYaml() = %v", err)
			}
			if d := cmp.Diff(test.wantVariants, reg.Variants()); d != "" {
				t.Errorf("variants diff (-want +got):\n%v", d)
			}
			if d := cmp.Diff(test.wantHandlers, reg.UsedHandlers()); d != "" {
				t.Errorf("used handlers diff (-want +got):\n%v", d)
			}
			if got := reg.DefaultVariant().Name(); got != test.wantDefault {
				t.Errorf("DefaultVariant().Name() = %q, want %q", got, test.wantDefault)
			}
			for _, spot := range test.wantSpots {
				got := reg.GetVariant(spot.v).GetCharacteristics(spot.h)
				if d := cmp.Diff(spot.want, got); d != "" {
					t.Errorf("GetCharacteristics(%v, %v) diff (-want +got):\n%v", spot.v, spot.h, d)
				}
			}
		})
	}
}

func TestHandlerRegistry_Errors(t *testing.T) {
	tests := []struct {
		name, config, wantMsg string
	}{
		{
			name: "unregistered handler",
			config: `
fast:
  sdf:
    enabled: true
  bundles:
    max_bundle_size: 2`,
			wantMsg: "sdf",
		}, {
			name: "unknown field",
			config: `
fast:
  bundles:
    max_size: 2`,
			wantMsg: "max_size",
		}, {
			name: "negative shards",
			config: `
fast:
  sharding:
    num_shards: -1`,
			wantMsg: "num_shards",
		}, {
			name: "bad interval",
			config: `
fast:
  streaming:
    poll_interval: soon`,
			wantMsg: "poll_interval",
		}, {
			name: "bad mode",
			config: `
fast:
  streaming:
    default_mode: micro`,
			wantMsg: "default_mode",
		}, {
			name: "missing default",
			config: `
default: slow
fast:
  bundles:
    max_bundle_size: 2`,
			wantMsg: "slow",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := NewRunnerRegistry().LoadFromYaml([]byte(test.config))
			if err == nil {
				t.Fatal("LoadFromYaml() = nil, want error")
			}
			if !errors.Is(err, errors.ErrInvalidArgument) {
				t.Errorf("LoadFromYaml() = %v, want ErrInvalidArgument", err)
			}
			if !strings.Contains(err.Error(), test.wantMsg) {
				t.Errorf("LoadFromYaml() = %v, want mention of %q", err, test.wantMsg)
			}
		})
	}

	t.Run("duplicate variants", func(t *testing.T) {
		config := `
fast:
  bundles:
    max_bundle_size: 1
fast:
  bundles:
    max_bundle_size: 2
`
		if err := NewRunnerRegistry().LoadFromYaml([]byte(config)); err == nil {
			t.Error("LoadFromYaml() = nil, want duplicate key error")
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("local:\n  streaming:\n    poll_interval: 2s\n    default_mode: streaming\n"), 0644); err != nil {
		t.Fatal(err)
	}
	reg := NewRunnerRegistry()
	if err := reg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() = %v", err)
	}
	s := reg.GetVariant("local").GetCharacteristics(StreamingHandler).(Streaming)
	if got, err := s.Interval(); err != nil || got != 2*time.Second {
		t.Errorf("Interval() = %v, %v, want 2s, nil", got, err)
	}
	if s.DefaultMode != "streaming" {
		t.Errorf("DefaultMode = %q, want streaming", s.DefaultMode)
	}

	if err := reg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile(missing) = nil, want error")
	}
}

func TestRunnerHandlers(t *testing.T) {
	want := map[string]reflect.Type{
		BundlesHandler:   reflect.TypeOf(Bundles{}),
		ShardingHandler:  reflect.TypeOf(Sharding{}),
		StreamingHandler: reflect.TypeOf(Streaming{}),
	}
	got := map[string]reflect.Type{}
	for _, md := range RunnerHandlers() {
		got[md.ConfigURN()] = md.ConfigCharacteristic()
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RunnerHandlers() = %v, want %v", got, want)
	}
}
