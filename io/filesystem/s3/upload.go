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

package s3

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// upload streams writes through a pipe into a multipart upload. The upload
// starts on the first Write or on Close, so that closing an unwritten
// upload still creates an empty object.
type upload struct {
	ctx    context.Context
	client *s3.Client
	obj    object

	start sync.Once
	pw    *io.PipeWriter
	g     errgroup.Group
}

func newUpload(ctx context.Context, client *s3.Client, obj object) *upload {
	return &upload{ctx: ctx, client: client, obj: obj}
}

func (u *upload) begin() {
	pr, pw := io.Pipe()
	u.pw = pw
	u.g.Go(func() error {
		out, err := manager.NewUploader(u.client).Upload(u.ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.obj.bucket),
			Key:    aws.String(u.obj.key),
			Body:   pr,
		})
		if err != nil {
			// Unblock any pending Write.
			pr.CloseWithError(err)
			return err
		}
		slog.Debug("uploaded object", slog.String("object", u.obj.String()), slog.String("location", out.Location))
		return nil
	})
}

func (u *upload) Write(p []byte) (int, error) {
	u.start.Do(u.begin)
	return u.pw.Write(p)
}

// Close finishes the upload and reports its error, if any.
func (u *upload) Close() error {
	u.start.Do(u.begin)
	if err := u.pw.Close(); err != nil {
		return err
	}
	return u.g.Wait()
}
