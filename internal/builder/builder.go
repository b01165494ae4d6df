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

package builder

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/googlegenomics/gffx/internal/gff"
	"github.com/googlegenomics/gffx/internal/index"
	"github.com/googlegenomics/gffx/internal/mapped"
)

// fastaDirective marks the start of embedded sequence data.  Nothing after it
// is a feature line.
var fastaDirective = []byte("##FASTA")

// cancelCheckLines is how often (in lines) the scan polls its context.
const cancelCheckLines = 1 << 14

// Build scans the annotation file at path and writes its side-files next to
// it, replacing any that already exist.
func Build(ctx context.Context, path string, opts ...Option) error {
	cfg := newConfig(opts)

	file, err := mapped.Open(path, mapped.Sequential)
	if err != nil {
		return fmt.Errorf("opening annotations: %w", err)
	}
	defer file.Close()

	b := newBuilder(cfg)
	if err := b.scan(ctx, file.Bytes()); err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}
	if err := b.write(path); err != nil {
		return fmt.Errorf("writing index for %s: %w", path, err)
	}

	if len(b.values) == 0 && len(b.names) > 0 {
		cfg.logger.Warn("attribute not found on any feature; attribute search is unavailable",
			"attribute", cfg.attribute)
	}
	if b.interleaved > 0 {
		cfg.logger.Warn("feature models are not contiguous; their extracted spans are incomplete",
			"lines", b.interleaved, "first_line", b.firstInterleaved)
	}
	cfg.logger.Info("built index",
		"path", path,
		"features", len(b.names),
		"models", len(b.spans),
		"sequences", len(b.sequences),
		"attribute_values", len(b.values))
	return nil
}

// slot locates the pending interval of a root feature.
type slot struct {
	sequence int
	index    int
}

type builder struct {
	cfg *config

	id, parent, attribute gff.Matcher

	ids     map[string]uint32
	names   []string
	parents []uint32
	rootOf  []uint32
	attrs   []uint32

	valueIDs map[string]uint32
	values   []string

	sequenceIDs map[string]int
	sequences   []string
	pending     [][]index.Interval
	slots       map[uint32]slot

	spans   []index.Span
	open    index.Span
	hasOpen bool

	interleaved      int
	firstInterleaved int
}

func newBuilder(cfg *config) *builder {
	return &builder{
		cfg:         cfg,
		id:          cfg.matchers("ID"),
		parent:      cfg.matchers("Parent"),
		attribute:   cfg.matchers(cfg.attribute),
		ids:         make(map[string]uint32),
		valueIDs:    make(map[string]uint32),
		sequenceIDs: make(map[string]int),
		slots:       make(map[uint32]slot),
	}
}

func (b *builder) scan(ctx context.Context, data []byte) error {
	var (
		fields gff.Line
		lineNo int
	)
	for offset := 0; offset < len(data); {
		start := offset
		end := bytes.IndexByte(data[offset:], '\n')
		if end < 0 {
			end, offset = len(data), len(data)
		} else {
			end += offset
			offset = end + 1
		}
		lineNo++
		if lineNo%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := bytes.TrimSuffix(data[start:end], []byte{'\r'})
		if bytes.HasPrefix(line, fastaDirective) {
			break
		}
		if gff.IsBlank(line) || gff.IsComment(line) {
			continue
		}
		if !gff.Split(line, &fields) {
			return &ParseError{lineNo, fmt.Sprintf("expected %d tab separated columns", gff.Columns)}
		}
		if err := b.add(&fields, uint64(start), lineNo); err != nil {
			return err
		}
	}
	b.closeSpan(uint64(len(data)))
	return ctx.Err()
}

func parseCoordinate(field []byte) (uint32, bool) {
	v, err := strconv.ParseUint(string(field), 10, 32)
	return uint32(v), err == nil
}

func (b *builder) add(fields *gff.Line, offset uint64, lineNo int) error {
	start, ok := parseCoordinate(fields[gff.FieldStart])
	if !ok {
		return &ParseError{lineNo, fmt.Sprintf("invalid start coordinate %q", fields[gff.FieldStart])}
	}
	end, ok := parseCoordinate(fields[gff.FieldEnd])
	if !ok {
		return &ParseError{lineNo, fmt.Sprintf("invalid end coordinate %q", fields[gff.FieldEnd])}
	}

	attributes := fields[gff.FieldAttributes]
	rawID, ok := b.id.Find(attributes)
	if !ok {
		return &ParseError{lineNo, "feature has no identifier"}
	}
	id := string(rawID)
	seq := b.sequence(fields[gff.FieldSeqid])

	parent, isRoot := uint32(0), true
	if value, ok := b.parent.Find(attributes); ok {
		if name := gff.FirstValue(value); string(name) != id {
			pid, ok := b.ids[string(name)]
			if !ok {
				return &ParseError{lineNo, fmt.Sprintf("parent %q of %q is not declared before it", name, id)}
			}
			parent, isRoot = pid, false
		}
	}

	fid, seen := b.ids[id]
	if !seen {
		fid = uint32(len(b.names))
		if isRoot {
			parent = fid
		}
		b.ids[id] = fid
		b.names = append(b.names, id)
		b.parents = append(b.parents, parent)
		if isRoot {
			b.rootOf = append(b.rootOf, fid)
			b.slots[fid] = slot{seq, len(b.pending[seq])}
			b.pending[seq] = append(b.pending[seq], index.Interval{Start: start, End: end, Root: fid})
			b.openSpan(fid, offset)
		} else {
			b.rootOf = append(b.rootOf, b.rootOf[parent])
		}
	} else {
		if isRoot {
			parent = fid
		}
		if b.parents[fid] != parent {
			return &ConflictError{lineNo, id, "Parent", b.names[b.parents[fid]], b.names[parent]}
		}
		if isRoot {
			b.extend(fid, seq, start, end)
		}
	}

	if root := b.rootOf[fid]; !b.hasOpen || root != b.open.Root {
		if b.cfg.strict {
			open := ""
			if b.hasOpen {
				open = b.names[b.open.Root]
			}
			return &ConflictError{lineNo, id, "model", open, b.names[root]}
		}
		if b.interleaved == 0 {
			b.firstInterleaved = lineNo
		}
		b.interleaved++
	}

	value, ok := b.attribute.Find(attributes)
	aid := index.NoAttribute
	if ok {
		aid = b.intern(string(value))
	}
	switch {
	case !seen:
		b.attrs = append(b.attrs, aid)
	case ok && b.attrs[fid] != aid:
		return &ConflictError{lineNo, id, b.cfg.attribute, b.value(b.attrs[fid]), b.value(aid)}
	}
	return nil
}

// extend widens the interval of a root declared on several lines.
func (b *builder) extend(fid uint32, seq int, start, end uint32) {
	s, ok := b.slots[fid]
	if !ok || s.sequence != seq {
		return
	}
	iv := &b.pending[s.sequence][s.index]
	if start < iv.Start {
		iv.Start = start
	}
	if end > iv.End {
		iv.End = end
	}
}

func (b *builder) sequence(name []byte) int {
	if seq, ok := b.sequenceIDs[string(name)]; ok {
		return seq
	}
	seq := len(b.sequences)
	b.sequenceIDs[string(name)] = seq
	b.sequences = append(b.sequences, string(name))
	b.pending = append(b.pending, nil)
	return seq
}

func (b *builder) intern(value string) uint32 {
	if aid, ok := b.valueIDs[value]; ok {
		return aid
	}
	aid := uint32(len(b.values))
	b.valueIDs[value] = aid
	b.values = append(b.values, value)
	return aid
}

func (b *builder) value(aid uint32) string {
	if aid == index.NoAttribute {
		return ""
	}
	return b.values[aid]
}

// openSpan closes the span of the previous model at offset and starts a new
// one for root.  The first span always starts at the beginning of the file.
func (b *builder) openSpan(root uint32, offset uint64) {
	if b.hasOpen {
		b.closeSpan(offset)
	} else {
		offset = 0
	}
	b.open = index.Span{Root: root, Start: offset}
	b.hasOpen = true
}

func (b *builder) closeSpan(offset uint64) {
	if !b.hasOpen {
		return
	}
	b.open.End = offset
	b.spans = append(b.spans, b.open)
	b.hasOpen = false
}

func (b *builder) write(prefix string) error {
	iw, err := index.CreateIntervals(index.Path(prefix, index.Intervals))
	if err != nil {
		return err
	}
	for _, group := range b.pending {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Start < group[j].Start })
		if err := iw.WriteGroup(group); err != nil {
			iw.Close()
			return err
		}
	}
	if err := iw.Close(); err != nil {
		return err
	}
	if err := index.WriteUint32s(index.Path(prefix, index.IntervalOffsets), iw.Offsets()); err != nil {
		return err
	}

	sw, err := index.CreateSpans(index.Path(prefix, index.Offsets))
	if err != nil {
		return err
	}
	for _, s := range b.spans {
		if err := sw.Write(s); err != nil {
			sw.Close()
			return err
		}
	}
	if err := sw.Close(); err != nil {
		return err
	}

	if err := index.WriteLines(index.Path(prefix, index.Sequences), b.sequences); err != nil {
		return err
	}
	if err := index.WriteLines(index.Path(prefix, index.Features), b.names); err != nil {
		return err
	}
	if err := index.WriteAttributes(index.Path(prefix, index.AttributeNames), b.cfg.attribute, b.values); err != nil {
		return err
	}
	if err := index.WriteUint32s(index.Path(prefix, index.AttributeIDs), b.attrs); err != nil {
		return err
	}
	return index.WriteUint32s(index.Path(prefix, index.Parents), b.parents)
}
