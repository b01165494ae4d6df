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

// Package gffx serves the query API on App Engine over annotation files in a
// Cloud Storage bucket, read with the bearer token of each request.
//
// Configuration is read from the environment:
//
//	GFFX_BUCKET    bucket holding annotation files, optionally with a prefix (name/prefix)
//	GFFX_DATASETS  if set, restricts reads to a comma-separated list of datasets
//	GFFX_CACHE     directory for local copies (default the system temporary directory)
package gffx

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/googlegenomics/gffx/api"
	"github.com/googlegenomics/gffx/internal/builder"
	"github.com/googlegenomics/gffx/internal/source"
	"google.golang.org/appengine"
)

func init() {
	http.Handle("/", newHandler())
}

func newHandler() http.Handler {
	dir := os.Getenv("GFFX_CACHE")
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "gffx-cache")
	}
	bucket, prefix, _ := strings.Cut(os.Getenv("GFFX_BUCKET"), "/")

	logger := slog.Default()
	resolve := api.BearerTokenResolver(source.NewCache(dir, logger), bucket, strings.Trim(prefix, "/"))
	server := api.NewServer(func(req *http.Request, dataset string) (string, error) {
		return resolve(req.WithContext(appengine.NewContext(req)), dataset)
	}, api.WithLogger(logger), api.WithIndexing(builder.DefaultAttribute))

	if list := os.Getenv("GFFX_DATASETS"); list != "" {
		server.Whitelist(strings.Split(list, ","))
	}
	return server.Handler()
}
