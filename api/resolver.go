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

package api

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/googlegenomics/gffx/internal/source"
)

// Resolver maps the dataset named in a request to the local path of its
// annotation file.
type Resolver func(req *http.Request, dataset string) (string, error)

func checkDataset(dataset string) error {
	if dataset == "" {
		return errMissingDataset
	}
	if dataset != path.Clean(dataset) || strings.ContainsAny(dataset, `/\`) || dataset == ".." || dataset == "." {
		return fmt.Errorf("invalid dataset name %q", dataset)
	}
	return nil
}

// DirectoryResolver serves the annotation files in dir.
func DirectoryResolver(dir string) Resolver {
	return func(_ *http.Request, dataset string) (string, error) {
		if err := checkDataset(dataset); err != nil {
			return "", newInvalidInputError("parsing dataset", err)
		}
		return filepath.Join(dir, dataset), nil
	}
}

// BucketResolver serves annotation files stored under prefix in a bucket,
// mirrored through cache with its registered fetchers.
func BucketResolver(cache *source.Cache, scheme, bucket, prefix string) Resolver {
	return func(req *http.Request, dataset string) (string, error) {
		if err := checkDataset(dataset); err != nil {
			return "", newInvalidInputError("parsing dataset", err)
		}
		return cache.Resolve(req.Context(), location(scheme, bucket, prefix, dataset))
	}
}

// BearerTokenResolver is like BucketResolver for Cloud Storage, but every
// request reads with the OAuth2 bearer token it carries.
func BearerTokenResolver(cache *source.Cache, bucket, prefix string) Resolver {
	return func(req *http.Request, dataset string) (string, error) {
		if err := checkDataset(dataset); err != nil {
			return "", newInvalidInputError("parsing dataset", err)
		}
		gcs, err := source.NewGCSFromBearerToken(req)
		if err != nil {
			return "", err
		}
		defer gcs.Close()
		return cache.ResolveWith(req.Context(), location(source.SchemeGCS, bucket, prefix, dataset), gcs)
	}
}

func location(scheme, bucket, prefix, dataset string) string {
	return source.Location{Scheme: scheme, Bucket: bucket, Object: path.Join(prefix, dataset)}.String()
}
