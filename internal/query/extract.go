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

package query

import (
	"bytes"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffx/internal/gff"
	"github.com/googlegenomics/gffx/internal/index"
	"golang.org/x/sync/errgroup"
)

// ExtractOptions controls Extract.
type ExtractOptions struct {
	// Types keeps only feature lines whose type column is in the set.  Comment
	// lines are always kept.  A nil set keeps every line.
	Types gff.TypeSet
}

// Spans maps root fids to their byte spans in file order.  Roots without a
// span are logged and skipped.
func (idx *Index) Spans(roots *roaring.Bitmap) []index.Span {
	spans := make([]index.Span, 0, roots.GetCardinality())
	it := roots.Iterator()
	for it.HasNext() {
		root := it.Next()
		i := sort.Search(len(idx.spans), func(i int) bool {
			return idx.spans[i].Root >= root
		})
		if i == len(idx.spans) || idx.spans[i].Root != root {
			idx.logger.Warn("no span for root feature", "root", root, "path", idx.prefix)
			continue
		}
		spans = append(spans, idx.spans[i])
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	return spans
}

// Extract copies the spans from the annotation file to w in file order.
// Adjacent spans are written as one block.
func (idx *Index) Extract(w io.Writer, spans []index.Span, opts ExtractOptions) error {
	blocks := index.Coalesce(append([]index.Span(nil), spans...))
	data := idx.file.Bytes()
	if opts.Types == nil {
		for _, block := range blocks {
			if err := index.CopySpan(w, data, block); err != nil {
				return err
			}
		}
		return nil
	}

	// Filtered blocks are prepared concurrently in batches and written in
	// order.
	batch := 4 * idx.threads
	for len(blocks) > 0 {
		n := min(batch, len(blocks))
		filtered := make([][]byte, n)
		var g errgroup.Group
		g.SetLimit(idx.threads)
		for i, block := range blocks[:n] {
			g.Go(func() error {
				var buf bytes.Buffer
				if err := index.CopySpan(&buf, data, block); err != nil {
					return err
				}
				filtered[i] = filterLines(buf.Bytes(), opts.Types)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, out := range filtered {
			if _, err := w.Write(out); err != nil {
				return err
			}
		}
		blocks = blocks[n:]
	}
	return nil
}

// filterLines returns the lines of block allowed by types.  Line terminators
// are preserved.
func filterLines(block []byte, types gff.TypeSet) []byte {
	out := make([]byte, 0, len(block))
	for len(block) > 0 {
		line := block
		if i := bytes.IndexByte(block, '\n'); i >= 0 {
			line = block[:i+1]
		}
		block = block[len(line):]
		if types.Allows(bytes.TrimRight(line, "\r\n")) {
			out = append(out, line...)
		}
	}
	return out
}
