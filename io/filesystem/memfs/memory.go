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

// Package memfs registers an in-process filesystem for "memfs://" paths.
// Every user of the scheme shares one store. Useful for tests and for
// pipelines whose output is inspected in-process.
package memfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
)

const scheme = "memfs://"

func init() {
	filesystem.Register("memfs", New)
}

var shared = &store{files: map[string][]byte{}}

// store maps names without the scheme prefix to file contents.
type store struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New returns the shared store.
func New(_ context.Context) (filesystem.Interface, error) {
	return shared, nil
}

// Write stores a file, replacing any previous content.
func Write(name string, data []byte) {
	shared.put(name, data)
}

func key(name string) string {
	return strings.TrimPrefix(name, scheme)
}

func (s *store) put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key(name)] = append([]byte(nil), data...)
}

func (s *store) get(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key(name)]
	if !ok {
		return nil, errors.Wrapf(os.ErrNotExist, "reading %v", name)
	}
	return data, nil
}

func (s *store) Close() error {
	return nil
}

// List returns the full names of files matching glob. The scheme prefix of
// glob is optional.
func (s *store) List(_ context.Context, glob string) ([]string, error) {
	pattern := key(glob)
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, errors.InvalidArgumentf("bad glob %q: %v", glob, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []string
	for k := range s.files {
		if ok, _ := path.Match(pattern, k); ok {
			ret = append(ret, scheme+k)
		}
	}
	sort.Strings(ret)
	return ret, nil
}

func (s *store) OpenRead(_ context.Context, name string) (io.ReadCloser, error) {
	data, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// OpenWrite buffers writes, storing them on Close.
func (s *store) OpenWrite(_ context.Context, name string) (io.WriteCloser, error) {
	return &pendingFile{name: name, s: s}, nil
}

func (s *store) Size(_ context.Context, name string) (int64, error) {
	data, err := s.get(name)
	if err != nil {
		return -1, err
	}
	return int64(len(data)), nil
}

func (s *store) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key(name))
	return nil
}

var _ filesystem.Remover = (*store)(nil)

type pendingFile struct {
	name   string
	s      *store
	buf    bytes.Buffer
	closed bool
}

func (f *pendingFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errors.IllegalStatef("write to closed file %v", f.name)
	}
	return f.buf.Write(p)
}

func (f *pendingFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.s.put(f.name, f.buf.Bytes())
	return nil
}
