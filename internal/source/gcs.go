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
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCS fetches objects from Google Cloud Storage.
type GCS struct {
	client *storage.Client
}

// NewGCS returns a fetcher using a storage client built from opts.  Without
// options the application default credentials are used.
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{client}, nil
}

// NewGCSFromBearerToken returns a fetcher that authenticates with the OAuth2
// bearer token in the Authorization header of req.
func NewGCSFromBearerToken(req *http.Request) (*GCS, error) {
	fields := strings.Split(req.Header.Get("Authorization"), " ")
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, ErrMissingToken
	}

	token := oauth2.Token{
		TokenType:   fields[0],
		AccessToken: fields[1],
	}
	return NewGCS(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(&token)))
}

// Fetch implements Fetcher.
func (g *GCS) Fetch(ctx context.Context, bucket, object string, dest *os.File) error {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return gcsError(err)
	}
	defer r.Close()

	if _, err := io.Copy(dest, r); err != nil {
		return fmt.Errorf("reading gs://%s/%s: %w", bucket, object, gcsError(err))
	}
	return nil
}

// Authorize implements Authorizer by reading the object's metadata.
func (g *GCS) Authorize(ctx context.Context, bucket, object string) error {
	if _, err := g.client.Bucket(bucket).Object(object).Attrs(ctx); err != nil {
		return gcsError(err)
	}
	return nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func gcsError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}
	return err
}
