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

// Package api implements an HTTP query service over indexed GFF3 annotation
// files.
//
// Every route names a dataset, an annotation file resolved through a
// Resolver.  Region, feature and attribute queries respond with the matching
// feature models as GFF3 text, block compressed when bgzf=true is given.
// Errors defined by the API are reported as a JSON object with "error" and
// "message" fields.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/gffx/internal/analytics"
	"github.com/googlegenomics/gffx/internal/bgzf"
	"github.com/googlegenomics/gffx/internal/builder"
	"github.com/googlegenomics/gffx/internal/genomics"
	"github.com/googlegenomics/gffx/internal/gff"
	"github.com/googlegenomics/gffx/internal/index"
	"github.com/googlegenomics/gffx/internal/query"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	gffContentType  = "text/x-gff3; charset=utf-8"
	bgzfContentType = "application/gzip"
)

// Option configures a Server.
type Option func(*Server)

// WithThreads sets the number of regions evaluated concurrently per request.
func WithThreads(n int) Option {
	return func(server *Server) { server.threads = n }
}

// WithLogger sets the logger used for request logs and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// WithRateLimit limits the server to r requests per second with bursts of b.
func WithRateLimit(r float64, b int) Option {
	return func(server *Server) {
		if r > 0 {
			server.limiter = rate.NewLimiter(rate.Limit(r), max(b, 1))
		}
	}
}

// WithIndexing makes the server build missing indexes with the given
// attribute key instead of reporting IndexMissing.
func WithIndexing(attribute string) Option {
	return func(server *Server) {
		server.build = func(ctx context.Context, path string) error {
			return builder.Build(ctx, path, builder.WithAttribute(attribute), builder.WithLogger(server.logger))
		}
	}
}

// Server provides the query API.  Must be created with NewServer.
type Server struct {
	resolve   Resolver
	whitelist map[string]bool
	threads   int
	logger    *slog.Logger
	limiter   *rate.Limiter
	build     func(ctx context.Context, path string) error

	loads   singleflight.Group
	mu      sync.Mutex
	indexes map[string]*query.Index
}

// NewServer returns a new Server that locates datasets with resolve.
func NewServer(resolve Resolver, opts ...Option) *Server {
	server := &Server{
		resolve:   resolve,
		whitelist: make(map[string]bool),
		threads:   1,
		logger:    slog.Default(),
		indexes:   make(map[string]*query.Index),
	}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

// Whitelist adds datasets to the set of datasets which the server is allowed
// to access.  If Whitelist is never called for a given Server then every
// dataset is allowed.
func (server *Server) Whitelist(datasets []string) {
	for _, dataset := range datasets {
		if dataset != "" {
			server.whitelist[dataset] = true
		}
	}
}

// Export registers the API routes and middleware with router.
func (server *Server) Export(router gin.IRouter) {
	router.Use(requestID(), logRequests(server.logger), forwardOrigin(), limit(server.limiter))
	router.GET("/sequences/:dataset", server.serveSequences)
	router.GET("/regions/:dataset", server.serveRegions)
	router.GET("/features/:dataset", server.serveFeatures)
	router.GET("/attributes/:dataset", server.serveAttributes)
}

// Handler returns an http.Handler serving the API.
func (server *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	server.Export(router)
	return router
}

// Close releases every cached index.
func (server *Server) Close() error {
	server.mu.Lock()
	defer server.mu.Unlock()

	var errs []error
	for path, idx := range server.indexes {
		errs = append(errs, idx.Close())
		delete(server.indexes, path)
	}
	return errors.Join(errs...)
}

func (server *Server) checkWhitelist(dataset string) error {
	if len(server.whitelist) == 0 || server.whitelist[dataset] {
		return nil
	}
	return newPermissionDeniedError("checking whitelist", fmt.Errorf("access to dataset %s is not allowed", dataset))
}

// open returns the shared index of the request's dataset.
func (server *Server) open(c *gin.Context) (*query.Index, error) {
	dataset := c.Param("dataset")
	if err := checkDataset(dataset); err != nil {
		return nil, newInvalidInputError("parsing dataset", err)
	}
	if err := server.checkWhitelist(dataset); err != nil {
		return nil, err
	}
	path, err := server.resolve(c.Request, dataset)
	if err != nil {
		return nil, classify("resolving dataset", err)
	}

	if idx, ok := server.cached(path); ok {
		return idx, nil
	}

	// The load is shared by every request for path and is not cancelled with
	// this one.
	ctx := context.WithoutCancel(c.Request.Context())
	v, err, _ := server.loads.Do(path, func() (interface{}, error) {
		return server.load(ctx, path)
	})
	if err != nil {
		return nil, classify("loading index", err)
	}
	return v.(*query.Index), nil
}

func (server *Server) cached(path string) (*query.Index, bool) {
	server.mu.Lock()
	defer server.mu.Unlock()
	idx, ok := server.indexes[path]
	return idx, ok
}

// load builds the index of path if needed and opens it.  Calls for one path
// are serialized by server.loads.
func (server *Server) load(ctx context.Context, path string) (*query.Index, error) {
	if idx, ok := server.cached(path); ok {
		return idx, nil
	}

	var rebuild func() error
	if server.build != nil {
		rebuild = func() error { return server.build(ctx, path) }
	}
	if err := index.Ensure(path, rebuild); err != nil {
		return nil, err
	}
	idx, err := query.Open(path, query.WithThreads(server.threads), query.WithLogger(server.logger))
	if err != nil {
		return nil, err
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	server.indexes[path] = idx
	return idx, nil
}

func (server *Server) serveSequences(c *gin.Context) {
	idx, err := server.open(c)
	if err != nil {
		writeError(c, err)
		return
	}
	analytics.TrackerFromContext(c.Request.Context())(analytics.Event("Sequences", "Request Received", "", nil))
	c.JSON(http.StatusOK, gin.H{"sequences": idx.Sequences()})
}

func (server *Server) serveRegions(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Regions", "Request Received", "", nil))

	inputs := c.QueryArray("region")
	if len(inputs) == 0 {
		writeError(c, newInvalidInputError("parsing query", errMissingRegion))
		return
	}
	mode, err := query.ParseMode(c.Query("mode"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing mode", err))
		return
	}
	invert, err := parseBool(c.Query("invert"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing invert", err))
		return
	}

	idx, err := server.open(c)
	if err != nil {
		writeError(c, err)
		return
	}

	regions := make([]genomics.Region, 0, len(inputs))
	for _, input := range inputs {
		region, err := idx.ResolveRegion(input)
		if err != nil {
			if errors.Is(err, query.ErrUnknownSequence) {
				writeError(c, newNotFoundError("resolving region", err))
			} else {
				writeError(c, newInvalidInputError("parsing region", err))
			}
			return
		}
		regions = append(regions, region)
	}

	roots, err := idx.Intersect(c.Request.Context(), regions, mode, invert)
	if err != nil {
		writeError(c, classify("intersecting regions", err))
		return
	}
	track(analytics.Count("Regions", "Roots Matched", int(roots.GetCardinality())))
	server.writeModels(c, idx, roots)
}

func (server *Server) serveFeatures(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Features", "Request Received", "", nil))

	ids := c.QueryArray("id")
	if len(ids) == 0 {
		writeError(c, newInvalidInputError("parsing query", errMissingID))
		return
	}

	idx, err := server.open(c)
	if err != nil {
		writeError(c, err)
		return
	}

	roots, missing, err := idx.FeatureRoots(ids)
	if err != nil {
		writeError(c, classify("resolving features", err))
		return
	}
	if len(missing) == len(ids) {
		writeError(c, newNotFoundError("resolving features", errors.New("no requested feature is in the index")))
		return
	}
	for _, id := range missing {
		c.Writer.Header().Add("X-Missing-Feature", id)
	}
	track(analytics.Count("Features", "Identifiers Missing", len(missing)))
	server.writeModels(c, idx, roots)
}

func (server *Server) serveAttributes(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Attributes", "Request Received", "", nil))

	values := c.QueryArray("value")
	if len(values) == 0 {
		writeError(c, newInvalidInputError("parsing query", errMissingValue))
		return
	}
	regex, err := parseBool(c.Query("regex"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing regex", err))
		return
	}
	matcher := gff.Values(values)
	if regex {
		if matcher, err = gff.Patterns(values); err != nil {
			writeError(c, newInvalidInputError("parsing patterns", err))
			return
		}
	}

	idx, err := server.open(c)
	if err != nil {
		writeError(c, err)
		return
	}

	roots, err := idx.SearchAttributes(matcher)
	if err != nil {
		writeError(c, classify("searching attributes", err))
		return
	}
	track(analytics.Count("Attributes", "Roots Matched", int(roots.GetCardinality())))
	server.writeModels(c, idx, roots)
}

// writeModels streams the models of roots as the response body.
func (server *Server) writeModels(c *gin.Context, idx *query.Index, roots *roaring.Bitmap) {
	compress, err := parseBool(c.Query("bgzf"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing bgzf", err))
		return
	}
	opts := query.ExtractOptions{Types: gff.ParseTypes(c.Query("types"))}
	spans := idx.Spans(roots)

	var w io.Writer = c.Writer
	contentType := gffContentType
	var bw *bgzf.Writer
	if compress {
		bw = bgzf.NewWriter(c.Writer)
		w, contentType = bw, bgzfContentType
	}

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	err = idx.Extract(w, spans, opts)
	if err == nil && bw != nil {
		err = bw.Close()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		server.logger.Error("failed to write response",
			"path", idx.Prefix(), "request_id", c.GetString(requestIDHeader), "error", err)
	}
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
