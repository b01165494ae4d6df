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

// This binary provides a GFF3 query server over annotation files in a local
// directory, a Cloud Storage bucket or an S3 bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/googlegenomics/gffx/api"
	"github.com/googlegenomics/gffx/internal/analytics"
	"github.com/googlegenomics/gffx/internal/builder"
	"github.com/googlegenomics/gffx/internal/source"
	"google.golang.org/api/option"
)

var (
	port    = flag.Int("port", 80, "HTTP service port")
	threads = flag.Int("threads", runtime.NumCPU(), "regions evaluated concurrently per request")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")

	directory = flag.String("directory", "", "directory that contains annotation files")
	bucket    = flag.String("bucket", "", "bucket that contains annotation files, as gs://name/prefix or s3://name/prefix")
	cache     = flag.String("cache", filepath.Join(os.TempDir(), "gffx-cache"), "directory for copies of remote annotation files")
	datasets  = flag.String("datasets", "", "if set, restricts reads to a comma-separated list of datasets")

	index     = flag.Bool("index", false, "build missing indexes on first use")
	attribute = flag.String("attribute", builder.DefaultAttribute, "attribute key indexed when building")

	rateLimit = flag.Float64("rate_limit", 0, "if set, maximum requests per second")
	rateBurst = flag.Int("rate_burst", 10, "request burst allowed above the rate limit")

	// Enable or disable anonymous usage tracking.
	//
	// If enabled, anonymous information about requests handled by the server is
	// logged to Google via Google Analytics.
	//
	// This information helps Google determine how well the software is
	// performing and where improvements should be made.  No user identifying
	// information is ever sent to Google.
	trackUsage = flag.Bool("track_usage", false, "anonymous usage tracking")
	propertyID = flag.String("analytics_property", "", "analytics property receiving usage events")
	verbose    = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()

	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}
	if (*directory == "") == (*bucket == "") {
		log.Fatalf("You must specify exactly one of -directory and -bucket.")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	resolve, err := newResolver(context.Background(), logger)
	if err != nil {
		log.Fatalf("Configuring datasets: %v", err)
	}

	opts := []api.Option{
		api.WithThreads(*threads),
		api.WithLogger(logger),
		api.WithRateLimit(*rateLimit, *rateBurst),
	}
	if *index {
		opts = append(opts, api.WithIndexing(*attribute))
	}
	server := api.NewServer(resolve, opts...)
	defer server.Close()
	if *datasets != "" {
		server.Whitelist(strings.Split(*datasets, ","))
	}

	gin.SetMode(gin.ReleaseMode)
	handler := server.Handler()
	if *trackUsage {
		log.Printf("Enabling anonymous usage tracking")

		track := analytics.Log(logger)
		if *propertyID != "" {
			client := analytics.NewClient(*propertyID, uuid.New().String(), "")
			track = analytics.Deliver(client, logger)
		}
		handler = analytics.TrackingHandler(handler, track)
	}

	address := fmt.Sprintf(":%d", *port)
	if *secure {
		if err := http.ListenAndServeTLS(address, *httpsCert, *httpsKey, handler); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := http.ListenAndServe(address, handler); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}

func newResolver(ctx context.Context, logger *slog.Logger) (api.Resolver, error) {
	if *directory != "" {
		return api.DirectoryResolver(*directory), nil
	}

	scheme, rest, ok := strings.Cut(*bucket, "://")
	name, prefix, _ := strings.Cut(rest, "/")
	if !ok || name == "" || (scheme != source.SchemeGCS && scheme != source.SchemeS3) {
		return nil, fmt.Errorf("invalid bucket %q", *bucket)
	}
	prefix = strings.Trim(prefix, "/")

	files := source.NewCache(*cache, logger)
	switch scheme {
	case source.SchemeGCS:
		if *secure {
			return api.BearerTokenResolver(files, name, prefix), nil
		}
		gcs, err := source.NewGCS(ctx, option.WithHTTPClient(http.DefaultClient))
		if err != nil {
			return nil, err
		}
		files.Register(source.SchemeGCS, gcs)
	case source.SchemeS3:
		s3, err := source.NewS3(ctx)
		if err != nil {
			return nil, err
		}
		files.Register(source.SchemeS3, s3)
	}
	return api.BucketResolver(files, scheme, name, prefix), nil
}
