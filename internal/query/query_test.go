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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffx/internal/builder"
	"github.com/googlegenomics/gffx/internal/genomics"
	"github.com/googlegenomics/gffx/internal/gff"
	"github.com/googlegenomics/gffx/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(seq, kind, start, end, attributes string) string {
	return strings.Join([]string{seq, "test", kind, start, end, ".", "+", ".", attributes}, "\t")
}

var (
	testLines = []string{
		"##gff-version 3",
		row("chr1", "gene", "1", "1000", "ID=A;gene_name=Alpha"),
		row("chr1", "mRNA", "1", "1000", "ID=A.1;Parent=A"),
		row("chr1", "exon", "50", "80", "ID=A.1.1;Parent=A.1"),
		row("chr1", "gene", "10", "20", "ID=B;gene_name=Beta"),
		row("chr1", "gene", "30", "40", "ID=C;gene_name=Gamma"),
		row("chr1", "gene", "2000", "3000", "ID=D;gene_name=Delta"),
		row("chr1", "exon", "2000", "2100", "ID=D.1;Parent=D"),
		row("chr2", "gene", "5", "50", "ID=E;gene_name=Alpha"),
	}
	testContent = strings.Join(testLines, "\n") + "\n"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func openIndex(t *testing.T, content string, opts ...Option) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genes.gff3")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, builder.Build(context.Background(), path, builder.WithLogger(quietLogger())))

	idx, err := Open(path, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func offsetOf(line string) uint64 {
	return uint64(strings.Index(testContent, line))
}

func bitmap(values ...uint32) *roaring.Bitmap {
	return roaring.BitmapOf(values...)
}

func TestIntersect_NestedFeature(t *testing.T) {
	lines := []string{
		row("chr1", "gene", "1", "100", "ID=g1"),
		row("chr1", "mRNA", "50", "80", "ID=t1;Parent=g1"),
		row("chr1", "gene", "200", "300", "ID=g2"),
	}
	content := strings.Join(lines, "\n") + "\n"
	idx := openIndex(t, content)

	region, err := idx.ResolveRegion("chr1:60-70")
	require.NoError(t, err)
	roots, err := idx.Intersect(context.Background(), []genomics.Region{region}, Overlap, false)
	require.NoError(t, err)

	want := []index.Span{{Root: 0, Start: 0, End: uint64(strings.Index(content, lines[2]))}}
	assert.Equal(t, want, idx.Spans(roots))
}

func TestIntersect(t *testing.T) {
	idx := openIndex(t, testContent)

	testCases := []struct {
		region string
		mode   Mode
		invert bool
		want   []uint32
	}{
		{"chr1:500-600", Overlap, false, []uint32{0}},
		{"chr1:500-600", Overlap, true, []uint32{3, 4}},
		{"chr1:500-600", Contained, false, []uint32{}},
		{"chr1:500-600", ContainsRegion, false, []uint32{0}},
		{"chr1:5-35", Overlap, false, []uint32{0, 3, 4}},
		{"chr1:5-35", Contained, false, []uint32{3}},
		{"chr1:5-35", Contained, true, []uint32{0, 4}},
		{"chr1:5-35", ContainsRegion, false, []uint32{0}},
		{"chr1:20-20", Overlap, false, []uint32{0, 3}},
		{"chr1:1500-1600", Overlap, false, []uint32{}},
		{"chr1:1500-1600", Overlap, true, []uint32{}},
		{"chr1:2050-2060", Overlap, false, []uint32{5}},
		{"chr1:3001-4000", Overlap, false, []uint32{}},
		{"chr2:1-10", Overlap, false, []uint32{7}},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s %v invert=%v", tc.region, tc.mode, tc.invert), func(t *testing.T) {
			region, err := idx.ResolveRegion(tc.region)
			require.NoError(t, err)
			got, err := idx.Intersect(context.Background(), []genomics.Region{region}, tc.mode, tc.invert)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ToArray())
		})
	}
}

func TestIntersect_InvertComplementsCandidates(t *testing.T) {
	idx := openIndex(t, testContent)
	for _, s := range []string{"chr1:500-600", "chr1:5-35", "chr1:15-2500", "chr2:1-100"} {
		region, err := idx.ResolveRegion(s)
		require.NoError(t, err)
		regions := []genomics.Region{region}

		candidates := roaring.New()
		for _, invert := range []bool{false, true} {
			got, err := idx.Intersect(context.Background(), regions, Overlap, invert)
			require.NoError(t, err)
			candidates.Or(got)
		}

		for _, mode := range []Mode{Overlap, Contained, ContainsRegion} {
			matched, err := idx.Intersect(context.Background(), regions, mode, false)
			require.NoError(t, err)
			inverted, err := idx.Intersect(context.Background(), regions, mode, true)
			require.NoError(t, err)

			assert.False(t, matched.Intersects(inverted), "%s %v", s, mode)
			assert.True(t, roaring.Or(matched, inverted).Equals(candidates), "%s %v", s, mode)
		}
	}
}

func TestIntersect_ThreadsAgree(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		start := 1 + (i*37)%5000
		lines = append(lines, row(fmt.Sprintf("chr%d", i%3), "gene", fmt.Sprint(start), fmt.Sprint(start+i%300), fmt.Sprintf("ID=g%d", i)))
	}
	content := strings.Join(lines, "\n") + "\n"

	var regions []genomics.Region
	for i := 0; i < 50; i++ {
		start := uint32(1 + i*97)
		regions = append(regions, genomics.Region{SequenceID: i % 3, Start: start, End: start + 150})
	}

	sequential := openIndex(t, content, WithThreads(1))
	parallel := openIndex(t, content, WithThreads(8))
	for _, mode := range []Mode{Overlap, Contained, ContainsRegion} {
		for _, invert := range []bool{false, true} {
			want, err := sequential.Intersect(context.Background(), regions, mode, invert)
			require.NoError(t, err)
			got, err := parallel.Intersect(context.Background(), regions, mode, invert)
			require.NoError(t, err)
			assert.True(t, want.Equals(got), "mode %v invert %v", mode, invert)
		}
	}
}

func TestIntersect_Errors(t *testing.T) {
	idx := openIndex(t, testContent)

	_, err := idx.Intersect(context.Background(), []genomics.Region{{SequenceID: 9, Start: 1, End: 2}}, Overlap, false)
	assert.ErrorIs(t, err, ErrUnknownSequence)

	_, err = idx.Intersect(context.Background(), []genomics.Region{{SequenceID: 0, Start: 1, End: 2}}, Mode(42), false)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Intersect(ctx, []genomics.Region{{SequenceID: 0, Start: 1, End: 2}}, Overlap, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"":          Overlap,
		"overlap":   Overlap,
		"contained": Contained,
		"contains":  ContainsRegion,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("nearby")
	assert.Error(t, err)
}

func TestResolveRegion(t *testing.T) {
	idx := openIndex(t, testContent)

	got, err := idx.ResolveRegion("chr2:1,000-2,000")
	require.NoError(t, err)
	assert.Equal(t, genomics.Region{SequenceID: 1, Start: 1000, End: 2000}, got)

	_, err = idx.ResolveRegion("chr3:1-2")
	assert.ErrorIs(t, err, ErrUnknownSequence)

	_, err = idx.ResolveRegion("chr1")
	assert.Error(t, err)
}

func TestResolveBED(t *testing.T) {
	idx := openIndex(t, testContent)
	bed := "track name=test\nchr1\t0\t100\tfirst\nchrUn\t0\t10\nchr2\t9\t20\n"

	got, err := idx.ResolveBED(strings.NewReader(bed))
	require.NoError(t, err)
	assert.Equal(t, []genomics.Region{
		{SequenceID: 0, Start: 1, End: 100},
		{SequenceID: 1, Start: 10, End: 20},
	}, got)
}

func TestSequences(t *testing.T) {
	idx := openIndex(t, testContent)
	assert.Equal(t, []string{"chr1", "chr2"}, idx.Sequences())
	id, ok := idx.SequenceID("chr2")
	assert.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestExtract(t *testing.T) {
	idx := openIndex(t, testContent, WithThreads(4))

	testCases := []struct {
		name  string
		roots []uint32
		types string
		want  string
	}{
		{"single model", []uint32{5}, "", testContent[offsetOf(testLines[6]):offsetOf(testLines[8])]},
		{"adjacent models", []uint32{3, 4}, "", testContent[offsetOf(testLines[4]):offsetOf(testLines[6])]},
		{"first model keeps header", []uint32{0}, "", testContent[:offsetOf(testLines[4])]},
		{"types", []uint32{0, 5}, "exon", strings.Join([]string{testLines[0], testLines[3], testLines[7]}, "\n") + "\n"},
		{"nothing", nil, "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			spans := idx.Spans(bitmap(tc.roots...))
			require.NoError(t, idx.Extract(&buf, spans, ExtractOptions{Types: gff.ParseTypes(tc.types)}))
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestExtract_TypesKeepWholeModel(t *testing.T) {
	idx := openIndex(t, testContent)
	region, err := idx.ResolveRegion("chr1:10-20")
	require.NoError(t, err)
	roots, err := idx.Intersect(context.Background(), []genomics.Region{region}, Overlap, false)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 3}, roots.ToArray())

	// The exon of A lies outside the region but belongs to a matched model.
	var buf bytes.Buffer
	require.NoError(t, idx.Extract(&buf, idx.Spans(roots), ExtractOptions{Types: gff.ParseTypes("exon")}))
	got, want := buf.String(), testLines[0]+"\n"+testLines[3]+"\n"
	assert.Equal(t, want, got)
}

func TestSpans_MissingRoot(t *testing.T) {
	idx := openIndex(t, testContent)
	// Feature 1 is not a root, so it has no span.
	spans := idx.Spans(bitmap(1, 7))
	assert.Equal(t, []index.Span{{Root: 7, Start: offsetOf(testLines[8]), End: uint64(len(testContent))}}, spans)
}

func TestFeatureRoots(t *testing.T) {
	idx := openIndex(t, testContent)

	roots, missing, err := idx.FeatureRoots([]string{"A.1.1", "D.1", "nope", "B", "A"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 3, 5}, roots.ToArray())
	assert.Equal(t, []string{"nope"}, missing)
}

func TestSearchAttributes(t *testing.T) {
	idx := openIndex(t, testContent)

	key, err := idx.AttributeKey()
	require.NoError(t, err)
	assert.Equal(t, "gene_name", key)

	roots, err := idx.SearchAttributes(gff.Values([]string{"Alpha"}))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 7}, roots.ToArray())

	matcher, err := gff.Patterns([]string{"^(Beta|Gamma)$"})
	require.NoError(t, err)
	roots, err = idx.SearchAttributes(matcher)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 4}, roots.ToArray())

	_, err = idx.SearchAttributes(gff.Values([]string{"Zeta"}))
	assert.ErrorIs(t, err, ErrNoAttributeMatch)
	assert.Contains(t, err.Error(), "gene_name")
}

func TestOpen_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genes.gff3")
	require.NoError(t, os.WriteFile(path, []byte(testContent), 0o644))

	_, err := Open(path)
	assert.True(t, index.IsMissing(err))
}

func TestOpen_Corrupt(t *testing.T) {
	idx := openIndex(t, testContent)
	require.NoError(t, os.WriteFile(index.Path(idx.Prefix(), index.IntervalOffsets), []byte{0, 0, 0, 0}, 0o644))

	_, err := Open(idx.Prefix())
	assert.Error(t, err)
}
