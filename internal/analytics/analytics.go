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

// Package analytics records anonymous usage events for the query server and
// delivers them in batches to a Measurement Protocol endpoint or a logger.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultEndpoint  = "https://www.google-analytics.com/"
	defaultBatchSize = 20 // The maximum number supported by batch endpoint.
	defaultTimeout   = 10 * time.Second
	maxPendingSends  = 16
)

// Hit represents a single analytics event (called a 'hit').
type Hit map[string]string

// Event generates a new event typed hit.  The label may be empty and the
// value may be nil but category and action are required.
func Event(category, action, label string, value *int64) Hit {
	hit := Hit{
		"t":  "event",
		"ec": category,
		"ea": action,
	}
	if label != "" {
		hit["el"] = label
	}
	if value != nil {
		hit["ev"] = strconv.FormatInt(*value, 10)
	}
	return hit
}

// Count is a convenience for an event carrying a count.
func Count(category, action string, n int) Hit {
	v := int64(n)
	return Event(category, action, "", &v)
}

// Client uploads hits to a Measurement Protocol endpoint.  To create a
// properly initialized Client instance, use NewClient.
type Client struct {
	propertyID string
	clientID   string
	endpoint   string
	batchSize  int
	timeout    time.Duration
	http       *http.Client
}

// NewClient returns a Client that sends hits using the provided IDs.  An empty
// endpoint selects Google Analytics.
func NewClient(propertyID, clientID, endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{propertyID, clientID, endpoint, defaultBatchSize, defaultTimeout, http.DefaultClient}
}

// Send attempts to upload the provided hits to the analytics server.
func (c *Client) Send(ctx context.Context, hits []Hit) error {
	for i := 0; i < len(hits); i += c.batchSize {
		if err := c.upload(ctx, hits[i:min(i+c.batchSize, len(hits))]); err != nil {
			return fmt.Errorf("uploading hits: %w", err)
		}
	}
	return nil
}

func (c *Client) upload(ctx context.Context, hits []Hit) error {
	var body bytes.Buffer
	for _, hit := range hits {
		payload := url.Values{
			"v":   []string{"1"},
			"tid": []string{c.propertyID},
			"cid": []string{c.clientID},
		}
		for key, value := range hit {
			payload.Add(key, value)
		}
		body.WriteString(payload.Encode())
		body.WriteByte('\n')
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/batch", &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer response.Body.Close()
	io.Copy(io.Discard, response.Body)
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status: %v", response.Status)
	}
	return nil
}

// Deliver returns a track function for TrackingHandler that sends hits with
// client in the background, logging failures.  Each send is bounded by the
// client's timeout and hits are dropped while too many sends are pending.
func Deliver(client *Client, logger *slog.Logger) func([]Hit) {
	pending := semaphore.NewWeighted(maxPendingSends)
	return func(hits []Hit) {
		if len(hits) == 0 {
			return
		}
		if !pending.TryAcquire(1) {
			logger.Warn("dropping analytics, too many pending sends", "hits", len(hits))
			return
		}
		go func() {
			defer pending.Release(1)
			ctx, cancel := context.WithTimeout(context.Background(), client.timeout)
			defer cancel()
			if err := client.Send(ctx, hits); err != nil {
				logger.Warn("failed to send analytics", "hits", len(hits), "error", err)
			}
		}()
	}
}

// Log returns a track function for TrackingHandler that writes hits to logger
// at debug level.
func Log(logger *slog.Logger) func([]Hit) {
	return func(hits []Hit) {
		for _, hit := range hits {
			logger.Debug("usage", "category", hit["ec"], "action", hit["ea"], "label", hit["el"], "value", hit["ev"])
		}
	}
}

type contextKey int

var (
	hitsKey = contextKey(1)
)

// TrackingHandler returns a new http.Handler which wraps the provided
// handler.  The wrapper prepares the incoming request's context for use with
// the TrackerFromContext function.  When the underlying handler completes,
// the track function is invoked with any hits accumulated during the request.
func TrackingHandler(handler http.Handler, track func([]Hit)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var hits []Hit
		ctx := context.WithValue(req.Context(), hitsKey, &hits)
		handler.ServeHTTP(w, req.WithContext(ctx))
		track(hits)
	})
}

// TrackerFromContext is intended to be used with contexts that are generated
// by handlers returned from the TrackingHandler function.  It returns a
// function that buffers hits to be delivered to the track function provided
// in the original call to the TrackingHandler function.
func TrackerFromContext(ctx context.Context) func(Hit) {
	if hits, ok := ctx.Value(hitsKey).(*[]Hit); ok {
		return func(hit Hit) { *hits = append(*hits, hit) }
	}
	return func(Hit) {}
}
