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

// Package source mirrors annotation files stored in Google Cloud Storage or
// Amazon S3 into a local directory so they can be memory mapped and indexed.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/googlegenomics/gffx/internal/index"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Location schemes.
const (
	SchemeGCS = "gs"
	SchemeS3  = "s3"
)

var (
	// ErrNotFound is returned when a remote object does not exist.
	ErrNotFound = errors.New("object does not exist")
	// ErrPermissionDenied is returned when the caller may not read an object.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated is returned when the storage service rejects the
	// supplied credentials.
	ErrUnauthenticated = errors.New("invalid authentication")
	// ErrMissingToken is returned when a request carries no usable bearer
	// token.
	ErrMissingToken = errors.New("missing or invalid bearer token")
)

// Location is a remote object.
type Location struct {
	Scheme, Bucket, Object string
}

func (loc Location) String() string {
	return loc.Scheme + "://" + loc.Bucket + "/" + loc.Object
}

// Parse splits a gs:// or s3:// URI.  It reports false for anything else,
// which callers treat as a local path.
func Parse(uri string) (Location, bool) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || (scheme != SchemeGCS && scheme != SchemeS3) {
		return Location{}, false
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return Location{}, false
	}
	return Location{scheme, bucket, object}, true
}

// Fetcher copies a remote object into a local file.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, object string, dest *os.File) error
}

// Authorizer is implemented by fetchers that can check whether their
// credentials may read an object without downloading it.
type Authorizer interface {
	Authorize(ctx context.Context, bucket, object string) error
}

// Cache resolves remote locations to local copies under a directory.
// Concurrent requests for the same location share one download.
type Cache struct {
	dir      string
	fetchers map[string]Fetcher
	group    singleflight.Group
	logger   *slog.Logger
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, fetchers: make(map[string]Fetcher), logger: logger}
}

// Register sets the fetcher used for a scheme.
func (c *Cache) Register(scheme string, f Fetcher) {
	c.fetchers[scheme] = f
}

// Resolve returns a local path for uri.  Local paths are returned unchanged.
// For remote locations the annotation file and any side-files stored next to
// it are downloaded unless a local copy already exists.
func (c *Cache) Resolve(ctx context.Context, uri string) (string, error) {
	loc, ok := Parse(uri)
	if !ok {
		return uri, nil
	}
	f, ok := c.fetchers[loc.Scheme]
	if !ok {
		return "", fmt.Errorf("no fetcher registered for %s:// locations", loc.Scheme)
	}
	return c.resolve(ctx, loc, f)
}

// ResolveWith is like Resolve but downloads with f, typically a fetcher
// holding the credentials of one caller.  If f is an Authorizer, access is
// checked even when a local copy exists.
func (c *Cache) ResolveWith(ctx context.Context, uri string, f Fetcher) (string, error) {
	loc, ok := Parse(uri)
	if !ok {
		return uri, nil
	}
	if auth, ok := f.(Authorizer); ok {
		if err := auth.Authorize(ctx, loc.Bucket, loc.Object); err != nil {
			return "", fmt.Errorf("authorizing %s: %w", uri, err)
		}
	}
	return c.resolve(ctx, loc, f)
}

func (c *Cache) resolve(ctx context.Context, loc Location, f Fetcher) (string, error) {
	uri := loc.String()
	local := filepath.Join(c.dir, loc.Scheme, loc.Bucket, filepath.FromSlash(loc.Object))
	// The download is shared by every caller of uri, so it does not stop when
	// the caller that started it gives up.
	fetchCtx := context.WithoutCancel(ctx)
	results := c.group.DoChan(uri, func() (interface{}, error) {
		if _, err := os.Stat(local); err == nil {
			c.logger.Debug("using cached annotations", "location", uri, "path", local)
			return nil, nil
		}
		return nil, c.fetch(fetchCtx, f, loc, local)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("fetching %s: %w", uri, ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return "", fmt.Errorf("fetching %s: %w", uri, result.Err)
		}
		return local, nil
	}
}

func (c *Cache) fetch(ctx context.Context, f Fetcher, loc Location, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ext := range index.Exts {
		g.Go(func() error {
			err := download(gctx, f, loc.Bucket, index.Path(loc.Object, ext), index.Path(local, ext))
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// The annotation file is written last so that its presence marks a
	// complete download.
	if err := download(ctx, f, loc.Bucket, loc.Object, local); err != nil {
		return err
	}
	c.logger.Info("fetched annotations", "location", loc.String(), "path", local)
	return nil
}

func download(ctx context.Context, f Fetcher, bucket, object, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := f.Fetch(ctx, bucket, object, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
