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

// Package filesystem lets file sinks write to any registered storage
// system. Backends register under a URI scheme such as "s3" or "gs"; paths
// without a scheme use the backend registered as DefaultScheme.
package filesystem

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/apache/beam/localrunner/internal/errors"
	"golang.org/x/exp/maps"
)

// DefaultScheme is the scheme of paths without one.
const DefaultScheme = "default"

// Factory creates a filesystem.
type Factory func(context.Context) (Interface, error)

var (
	mu       sync.RWMutex
	backends = map[string]Factory{}
)

// Register makes a backend available for paths with the given scheme. It
// panics if the scheme is taken, and is meant to be called from init.
func Register(scheme string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := backends[scheme]; ok {
		panic(errors.Errorf("filesystem scheme %v registered twice", scheme))
	}
	backends[scheme] = f
}

// New returns the filesystem for path's scheme.
func New(ctx context.Context, path string) (Interface, error) {
	scheme := Scheme(path)
	mu.RLock()
	f, ok := backends[scheme]
	mu.RUnlock()
	if !ok {
		return nil, errors.InvalidArgumentf("no filesystem for scheme %v of %v", scheme, path)
	}
	fs, err := f(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %v filesystem for %v", scheme, path)
	}
	return fs, nil
}

// Schemes returns the registered schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	ret := maps.Keys(backends)
	sort.Strings(ret)
	return ret
}

// Interface is a storage system holding named files.
type Interface interface {
	io.Closer

	// List returns the files matching glob, sorted.
	List(ctx context.Context, glob string) ([]string, error)
	// OpenRead opens a file for reading.
	OpenRead(ctx context.Context, filename string) (io.ReadCloser, error)
	// OpenWrite opens a file for writing, replacing any existing file. The
	// file is only guaranteed to be visible after Close.
	OpenWrite(ctx context.Context, filename string) (io.WriteCloser, error)
	// Size returns the size of a file in bytes.
	Size(ctx context.Context, filename string) (int64, error)
}

// Remover is implemented by filesystems that can delete files.
type Remover interface {
	Remove(ctx context.Context, filename string) error
}

// Scheme returns the scheme of path, or DefaultScheme.
func Scheme(path string) string {
	if i := strings.Index(path, "://"); i > 0 {
		return path[:i]
	}
	return DefaultScheme
}

// ValidateScheme checks that path is not blank and that a backend is
// registered for its scheme.
func ValidateScheme(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.InvalidArgumentf("empty file path")
	}
	scheme := Scheme(path)
	mu.RLock()
	_, ok := backends[scheme]
	mu.RUnlock()
	if !ok {
		return errors.InvalidArgumentf("no filesystem for scheme %v of %v", scheme, path)
	}
	return nil
}
