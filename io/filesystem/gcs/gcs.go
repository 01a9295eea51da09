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

// Package gcs registers a Google Cloud Storage backed filesystem for
// "gs://bucket/object" paths.
package gcs

import (
	"context"
	"io"
	"mime"
	"net/url"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
	"golang.org/x/exp/slog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func init() {
	filesystem.Register("gs", New)
}

// BillingProjectEnv names the environment variable holding the project
// billed for requester pays buckets.
const BillingProjectEnv = "BILLING_PROJECT_ID"

type object struct {
	bucket, name string
}

func parseObject(uri string) (object, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return object{}, errors.Wrapf(err, "parsing %q", uri)
	}
	if u.Scheme != "gs" {
		return object{}, errors.InvalidArgumentf("%q is not a gs:// path", uri)
	}
	if u.Host == "" {
		return object{}, errors.InvalidArgumentf("%q names no bucket", uri)
	}
	o := object{bucket: u.Host}
	if len(u.Path) > 0 {
		o.name = u.Path[1:]
	}
	return o, nil
}

func (o object) String() string {
	return "gs://" + o.bucket + "/" + o.name
}

type fs struct {
	client         *storage.Client
	billingProject string
}

// New returns a filesystem using application default credentials, or
// anonymous access when none are available.
func New(ctx context.Context) (filesystem.Interface, error) {
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		slog.Warn("no GCS credentials, using anonymous access", slog.Any("error", err))
		if client, err = storage.NewClient(ctx, option.WithoutAuthentication()); err != nil {
			return nil, errors.Wrap(err, "creating GCS client")
		}
	}
	return NewFromClient(client, os.Getenv(BillingProjectEnv)), nil
}

// NewFromClient returns a filesystem using client. A non-empty
// billingProject is billed for requests.
func NewFromClient(client *storage.Client, billingProject string) filesystem.Interface {
	return &fs{client: client, billingProject: billingProject}
}

func (f *fs) Close() error {
	return f.client.Close()
}

func (f *fs) bucket(name string) *storage.BucketHandle {
	return f.client.Bucket(name).UserProject(f.billingProject)
}

func (f *fs) handle(filename string) (*storage.ObjectHandle, object, error) {
	o, err := parseObject(filename)
	if err != nil {
		return nil, o, err
	}
	return f.bucket(o.bucket).Object(o.name), o, nil
}

// List returns the objects matching glob. Only the object name may hold
// wildcards.
func (f *fs) List(ctx context.Context, glob string) ([]string, error) {
	pattern, err := parseObject(glob)
	if err != nil {
		return nil, err
	}
	it := f.bucket(pattern.bucket).Objects(ctx, &storage.Query{Prefix: filesystem.GlobPrefix(pattern.name)})

	var ret []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return ret, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "listing %v", glob)
		}
		ok, err := path.Match(pattern.name, attrs.Name)
		if err != nil {
			return nil, errors.InvalidArgumentf("bad glob %q: %v", glob, err)
		}
		if ok {
			ret = append(ret, object{bucket: pattern.bucket, name: attrs.Name}.String())
		}
	}
}

func (f *fs) OpenRead(ctx context.Context, filename string) (io.ReadCloser, error) {
	h, o, err := f.handle(filename)
	if err != nil {
		return nil, err
	}
	r, err := h.NewReader(ctx)
	if err != nil {
		return nil, wrapMissing(err, "reading %v", o)
	}
	return r, nil
}

// OpenWrite returns a writer replacing filename. The content type is
// guessed from the file extension.
func (f *fs) OpenWrite(ctx context.Context, filename string) (io.WriteCloser, error) {
	h, o, err := f.handle(filename)
	if err != nil {
		return nil, err
	}
	w := h.NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(o.name)); ct != "" {
		w.ContentType = ct
	}
	return w, nil
}

func (f *fs) Size(ctx context.Context, filename string) (int64, error) {
	h, o, err := f.handle(filename)
	if err != nil {
		return -1, err
	}
	attrs, err := h.Attrs(ctx)
	if err != nil {
		return -1, wrapMissing(err, "statting %v", o)
	}
	return attrs.Size, nil
}

func (f *fs) Remove(ctx context.Context, filename string) error {
	h, o, err := f.handle(filename)
	if err != nil {
		return err
	}
	return errors.Wrapf(h.Delete(ctx), "removing %v", o)
}

var _ filesystem.Remover = (*fs)(nil)

// wrapMissing wraps err, reporting missing objects as os.ErrNotExist.
func wrapMissing(err error, format string, o object) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(os.ErrNotExist, format, o)
	}
	return errors.Wrapf(err, format, o)
}
