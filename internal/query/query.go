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

// Package query answers interval and identifier queries against a GFF3 file
// and the side-files written by package builder.
//
// An Index is safe for concurrent use.  All loaded structures are immutable
// after Open and the annotation file is shared through one read-only mapping.
package query

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/googlegenomics/gffx/internal/genomics"
	"github.com/googlegenomics/gffx/internal/index"
	"github.com/googlegenomics/gffx/internal/mapped"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownSequence is returned for a region on a sequence that has no
	// features in the index.
	ErrUnknownSequence = errors.New("unknown sequence")

	// ErrNoAttributeMatch is returned when an attribute search selects no
	// feature.
	ErrNoAttributeMatch = errors.New("no feature matched")
)

// Option configures an Index.
type Option func(*Index)

// WithThreads sets the number of regions evaluated concurrently.  Values
// below one are treated as one.
func WithThreads(n int) Option {
	return func(idx *Index) {
		idx.threads = max(n, 1)
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// Index is an opened annotation file and its side-files.
type Index struct {
	prefix  string
	threads int
	logger  *slog.Logger

	file        *mapped.File
	sequences   []string
	sequenceIDs map[string]int
	groups      [][]index.Interval
	reach       [][]uint32
	spans       []index.Span

	features   func() (map[string]uint32, error)
	parents    func() ([]uint32, error)
	attributes func() (*attributeIndex, error)
}

// Open loads the index of the annotation file at prefix.  It returns an
// *index.MissingError when any side-file is absent.
func Open(prefix string, opts ...Option) (*Index, error) {
	if err := index.Ensure(prefix, nil); err != nil {
		return nil, err
	}

	idx := &Index{
		prefix:  prefix,
		threads: 1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}

	var (
		g         errgroup.Group
		offsets   []uint32
		intervals *mapped.File
	)
	g.Go(func() (err error) {
		idx.sequences, err = index.ReadLines(index.Path(prefix, index.Sequences))
		return err
	})
	g.Go(func() (err error) {
		offsets, err = index.ReadUint32s(index.Path(prefix, index.IntervalOffsets))
		return err
	})
	g.Go(func() (err error) {
		idx.spans, err = index.ReadSpans(index.Path(prefix, index.Offsets))
		return err
	})
	g.Go(func() (err error) {
		intervals, err = mapped.Open(index.Path(prefix, index.Intervals), mapped.Sequential)
		return err
	})
	g.Go(func() (err error) {
		idx.file, err = mapped.Open(prefix, mapped.Random)
		return err
	})
	err := g.Wait()
	defer intervals.Close()
	if err == nil {
		err = idx.load(offsets, intervals)
	}
	if err != nil {
		idx.file.Close()
		return nil, fmt.Errorf("loading index for %s: %w", prefix, err)
	}

	idx.features = sync.OnceValues(idx.loadFeatures)
	idx.parents = sync.OnceValues(idx.loadParents)
	idx.attributes = sync.OnceValues(idx.loadAttributes)
	return idx, nil
}

func (idx *Index) load(offsets []uint32, intervals *mapped.File) error {
	if err := index.CheckOffsets(offsets, len(idx.sequences), int64(intervals.Len())); err != nil {
		return err
	}

	idx.sequenceIDs = make(map[string]int, len(idx.sequences))
	idx.groups = make([][]index.Interval, len(idx.sequences))
	idx.reach = make([][]uint32, len(idx.sequences))
	for i, name := range idx.sequences {
		idx.sequenceIDs[name] = i
		group, err := index.ReadGroup(intervals, offsets[i], offsets[i+1])
		if err != nil {
			return err
		}
		idx.groups[i] = group
		idx.reach[i] = reach(group)
	}

	size := uint64(idx.file.Len())
	for i, s := range idx.spans {
		if s.Start > s.End || s.End > size {
			return fmt.Errorf("span %v exceeds annotation file size %d", s, size)
		}
		if i > 0 && s.Root <= idx.spans[i-1].Root {
			return fmt.Errorf("spans are not ordered by root at %v", s)
		}
	}
	return nil
}

// reach returns the running maximum of interval ends.  It is non-decreasing,
// so the first interval that can overlap a position is found by binary search
// even when an earlier, longer interval spans it.
func reach(group []index.Interval) []uint32 {
	out := make([]uint32, len(group))
	var end uint32
	for i, iv := range group {
		end = max(end, iv.End)
		out[i] = end
	}
	return out
}

// Close releases the annotation file mapping.
func (idx *Index) Close() error {
	return idx.file.Close()
}

// Prefix returns the path of the annotation file.
func (idx *Index) Prefix() string {
	return idx.prefix
}

// Sequences returns the sequence names in index order.
func (idx *Index) Sequences() []string {
	return idx.sequences
}

// SequenceID returns the dense index of the named sequence.
func (idx *Index) SequenceID(name string) (int, bool) {
	id, ok := idx.sequenceIDs[name]
	return id, ok
}

// ResolveRegion parses a chr:start-end region and maps its sequence name.
func (idx *Index) ResolveRegion(s string) (genomics.Region, error) {
	locus, err := genomics.ParseLocus(s)
	if err != nil {
		return genomics.Region{}, err
	}
	id, ok := idx.SequenceID(locus.Name)
	if !ok {
		return genomics.Region{}, fmt.Errorf("%w %q", ErrUnknownSequence, locus.Name)
	}
	return genomics.Region{SequenceID: id, Start: locus.Start, End: locus.End}, nil
}

// ResolveBED reads BED records from r.  Records on sequences that are not in
// the index are dropped.
func (idx *Index) ResolveBED(r io.Reader) ([]genomics.Region, error) {
	var (
		regions []genomics.Region
		dropped = make(map[string]bool)
	)
	err := genomics.ReadBED(r, func(locus genomics.Locus) error {
		id, ok := idx.SequenceID(locus.Name)
		if !ok {
			dropped[locus.Name] = true
			return nil
		}
		regions = append(regions, genomics.Region{SequenceID: id, Start: locus.Start, End: locus.End})
		return nil
	})
	if err != nil {
		return nil, err
	}
	for name := range dropped {
		idx.logger.Debug("skipping regions on unknown sequence", "sequence", name)
	}
	return regions, nil
}
