// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 fetches objects from Amazon S3 with parallel ranged downloads.
type S3 struct {
	downloader *manager.Downloader
}

// NewS3 returns a fetcher configured from the default AWS credential chain
// and region settings.
func NewS3(ctx context.Context) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return NewS3FromClient(s3.NewFromConfig(cfg)), nil
}

// NewS3FromClient returns a fetcher using client.
func NewS3FromClient(client manager.DownloadAPIClient) *S3 {
	return &S3{manager.NewDownloader(client, func(d *manager.Downloader) {
		d.Concurrency = 4
	})}
}

// Fetch implements Fetcher.
func (f *S3) Fetch(ctx context.Context, bucket, object string, dest *os.File) error {
	_, err := f.downloader.Download(ctx, dest, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return s3Error(err)
	}
	return nil
}

func s3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return err
}
