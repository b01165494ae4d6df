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

// Package builder implements the single pass indexer that turns a GFF3
// annotation file into the side-files described by package index.
//
// The annotation file is memory mapped and scanned once, front to back.  Each
// distinct feature identifier receives a dense fid in encounter order.  Root
// features (no Parent, or a Parent naming themselves) anchor a model: the root
// line and all of its descendants, which are expected to occupy one contiguous
// run of lines.  Each model's byte span ends where the next root begins, so the
// spans tile the whole file.
package builder

import (
	"fmt"
	"log/slog"

	"github.com/googlegenomics/gffx/internal/gff"
)

// DefaultAttribute is the attribute indexed when none is configured.
const DefaultAttribute = "gene_name"

// ParseError reports a malformed annotation line.
type ParseError struct {
	Line int
	Msg  string
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", err.Line, err.Msg)
}

// ConflictError reports repeated declarations of one identifier that disagree
// on a value which must be unique per feature.
type ConflictError struct {
	Line  int
	ID    string
	Field string
	Old   string
	New   string
}

func (err *ConflictError) Error() string {
	return fmt.Sprintf("line %d: conflicting %s for ID=%s: %q vs %q", err.Line, err.Field, err.ID, err.Old, err.New)
}

// Option configures Build.
type Option func(*config)

type config struct {
	attribute string
	matchers  func(key string) gff.Matcher
	logger    *slog.Logger
	strict    bool
}

func newConfig(opts []Option) *config {
	cfg := &config{
		attribute: DefaultAttribute,
		matchers:  gff.Key,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAttribute selects the attribute key whose values are indexed.
func WithAttribute(key string) Option {
	return func(cfg *config) {
		if key != "" {
			cfg.attribute = key
		}
	}
}

// WithMatchers replaces the strategy used to look up the ID, Parent and
// indexed attribute keys.  The default is gff.Key.
func WithMatchers(matchers func(key string) gff.Matcher) Option {
	return func(cfg *config) {
		if matchers != nil {
			cfg.matchers = matchers
		}
	}
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithStrictContiguity makes a model whose lines are interleaved with another
// model a fatal error.  By default it is only reported as a warning because
// the extracted span of such a model is incomplete.
func WithStrictContiguity(strict bool) Option {
	return func(cfg *config) {
		cfg.strict = strict
	}
}
