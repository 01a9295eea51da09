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
	"reflect"
	"time"

	"github.com/apache/beam/localrunner/internal/errors"
)

// Handler names used in settings files.
const (
	BundlesHandler   = "bundles"
	ShardingHandler  = "sharding"
	StreamingHandler = "streaming"
)

// Bundles configures how many elements a single evaluation handles.
type Bundles struct {
	MaxBundleSize int `yaml:"max_bundle_size"`
}

// Validate rejects a negative bundle size.
func (b Bundles) Validate() error {
	if b.MaxBundleSize < 0 {
		return errors.InvalidArgumentf("max_bundle_size must not be negative, got %d", b.MaxBundleSize)
	}
	return nil
}

// Sharding configures the shard count of writes that leave it unspecified.
type Sharding struct {
	NumShards int `yaml:"num_shards"`
}

// Validate rejects a negative shard count.
func (s Sharding) Validate() error {
	if s.NumShards < 0 {
		return errors.InvalidArgumentf("num_shards must not be negative, got %d", s.NumShards)
	}
	return nil
}

// Streaming configures streaming execution. DefaultMode is "batch",
// "streaming", or empty for batch.
type Streaming struct {
	PollInterval string `yaml:"poll_interval"`
	DefaultMode  string `yaml:"default_mode"`
}

// Validate checks the poll interval and the default mode.
func (s Streaming) Validate() error {
	if _, err := s.Interval(); err != nil {
		return err
	}
	switch s.DefaultMode {
	case "", "batch", "streaming":
		return nil
	}
	return errors.InvalidArgumentf("default_mode must be batch or streaming, got %q", s.DefaultMode)
}

// Interval parses PollInterval. An empty interval is zero.
func (s Streaming) Interval() (time.Duration, error) {
	if s.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.PollInterval)
	if err != nil {
		return 0, errors.InvalidArgumentf("poll_interval: %v", err)
	}
	if d < 0 {
		return 0, errors.InvalidArgumentf("poll_interval must not be negative, got %v", d)
	}
	return d, nil
}

type handler struct {
	urn            string
	characteristic reflect.Type
}

func (h handler) ConfigURN() string {
	return h.urn
}

func (h handler) ConfigCharacteristic() reflect.Type {
	return h.characteristic
}

// RunnerHandlers returns the metadata of every handler the local runner
// understands.
func RunnerHandlers() []HandlerMetadata {
	return []HandlerMetadata{
		handler{BundlesHandler, reflect.TypeOf(Bundles{})},
		handler{ShardingHandler, reflect.TypeOf(Sharding{})},
		handler{StreamingHandler, reflect.TypeOf(Streaming{})},
	}
}

// NewRunnerRegistry returns a registry with the runner's handlers
// registered.
func NewRunnerRegistry() *HandlerRegistry {
	r := NewHandlerRegistry()
	r.RegisterHandlers(RunnerHandlers()...)
	return r
}
