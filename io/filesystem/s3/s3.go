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

// Package s3 registers an AWS S3 backed filesystem for "s3://bucket/key"
// paths.
package s3

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"

	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/apache/beam/localrunner/io/filesystem"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

func init() {
	filesystem.Register("s3", New)
}

// object names an S3 object.
type object struct {
	bucket, key string
}

func parseObject(uri string) (object, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return object{}, errors.Wrapf(err, "parsing %q", uri)
	}
	if u.Scheme != "s3" {
		return object{}, errors.InvalidArgumentf("%q is not an s3:// path", uri)
	}
	if u.Host == "" {
		return object{}, errors.InvalidArgumentf("%q names no bucket", uri)
	}
	o := object{bucket: u.Host}
	if len(u.Path) > 0 {
		o.key = u.Path[1:]
	}
	return o, nil
}

func (o object) String() string {
	return "s3://" + o.bucket + "/" + o.key
}

type fs struct {
	client *s3.Client
}

// New returns a filesystem using the default AWS configuration chain.
func New(ctx context.Context) (filesystem.Interface, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return NewFromClient(s3.NewFromConfig(cfg)), nil
}

// NewFromClient returns a filesystem using client.
func NewFromClient(client *s3.Client) filesystem.Interface {
	return &fs{client: client}
}

func (f *fs) Close() error {
	return nil
}

// List returns the objects matching glob. Only the key may hold wildcards.
func (f *fs) List(ctx context.Context, glob string) ([]string, error) {
	pattern, err := parseObject(glob)
	if err != nil {
		return nil, err
	}
	pages := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(pattern.bucket),
		Prefix: aws.String(filesystem.GlobPrefix(pattern.key)),
	})

	var ret []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "listing %v", glob)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			ok, err := path.Match(pattern.key, key)
			if err != nil {
				return nil, errors.InvalidArgumentf("bad glob %q: %v", glob, err)
			}
			if ok {
				ret = append(ret, object{bucket: pattern.bucket, key: key}.String())
			}
		}
	}
	return ret, nil
}

func (f *fs) OpenRead(ctx context.Context, filename string) (io.ReadCloser, error) {
	o, err := parseObject(filename)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, wrapMissing(err, "reading %v", o)
	}
	return out.Body, nil
}

// OpenWrite starts an upload that replaces filename. The object appears
// once Close returns without error.
func (f *fs) OpenWrite(ctx context.Context, filename string) (io.WriteCloser, error) {
	o, err := parseObject(filename)
	if err != nil {
		return nil, err
	}
	return newUpload(ctx, f.client, o), nil
}

func (f *fs) Size(ctx context.Context, filename string) (int64, error) {
	o, err := parseObject(filename)
	if err != nil {
		return -1, err
	}
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return -1, wrapMissing(err, "statting %v", o)
	}
	return out.ContentLength, nil
}

func (f *fs) Remove(ctx context.Context, filename string) error {
	o, err := parseObject(filename)
	if err != nil {
		return err
	}
	_, err = f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	return errors.Wrapf(err, "removing %v", o)
}

var _ filesystem.Remover = (*fs)(nil)

// wrapMissing wraps err, reporting missing objects as os.ErrNotExist.
func wrapMissing(err error, format string, o object) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return errors.Wrapf(os.ErrNotExist, format+": %v", o, ae.ErrorMessage())
		}
	}
	return errors.Wrapf(err, format, o)
}
