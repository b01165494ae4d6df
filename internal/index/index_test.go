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

package index

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndEnsure(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "genes.gff3")
	for _, ext := range Exts[:6] {
		require.NoError(t, os.WriteFile(Path(prefix, ext), nil, 0o644))
	}

	missing, err := Check(prefix)
	require.NoError(t, err)
	assert.Equal(t, []Ext{Intervals, IntervalOffsets}, missing)

	err = Ensure(prefix, nil)
	require.Error(t, err)
	assert.True(t, IsMissing(err))
	assert.Contains(t, err.Error(), ".rit, .rix")

	var rebuilt bool
	require.NoError(t, Ensure(prefix, func() error {
		rebuilt = true
		for _, ext := range Exts {
			if err := os.WriteFile(Path(prefix, ext), nil, 0o644); err != nil {
				return err
			}
		}
		return nil
	}))
	assert.True(t, rebuilt)

	missing, err = Check(prefix)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.NoError(t, Ensure(prefix, func() error { return errors.New("must not rebuild") }))
}

func TestEnsure_RebuildFailure(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "genes.gff3")
	cause := errors.New("boom")
	err := Ensure(prefix, func() error { return cause })
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsMissing(err))
}

func TestLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.sqs")
	want := []string{"chr1", "chr2", "scaffold_10"}
	require.NoError(t, WriteLines(path, want))

	got, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(path, []byte("a\r\n\nb"), 0o644))
	got, err = ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b"}, got)

	require.NoError(t, WriteLines(path, nil))
	got, err = ReadLines(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.atn")
	require.NoError(t, WriteAttributes(path, "gene_name", []string{"BRCA1", "TP53"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#attribute=gene_name\nBRCA1\nTP53\n", string(data))

	key, values, err := ReadAttributes(path)
	require.NoError(t, err)
	assert.Equal(t, "gene_name", key)
	assert.Equal(t, []string{"BRCA1", "TP53"}, values)

	require.NoError(t, os.WriteFile(path, []byte("BRCA1\n"), 0o644))
	_, _, err = ReadAttributes(path)
	assert.ErrorIs(t, err, errMissingAttributeHeader)
}

func TestUint32Arrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.prt")
	want := []uint32{0, 0, 1, 3, NoAttribute}
	require.NoError(t, WriteUint32s(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(20), info.Size())

	got, err := ReadUint32s(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
	_, err = ReadUint32s(path)
	assert.Error(t, err)
}

func TestSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.gof")
	sw, err := CreateSpans(path)
	require.NoError(t, err)
	want := []Span{{0, 0, 120}, {4, 120, 300}}
	for _, s := range want {
		require.NoError(t, sw.Write(s))
	}
	require.NoError(t, sw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 2*SpanSize)
	assert.Equal(t, []byte{4, 0, 0, 0, 0, 0, 0, 0}, data[SpanSize:SpanSize+8])

	got, err := ReadSpans(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = DecodeSpans(data[:SpanSize+1])
	assert.Error(t, err)
}

func TestCoalesce(t *testing.T) {
	testCases := []struct {
		name  string
		input []Span
		want  []Span
	}{
		{"empty", nil, nil},
		{"single", []Span{{1, 10, 20}}, []Span{{1, 10, 20}}},
		{"adjacent", []Span{{2, 20, 30}, {1, 10, 20}}, []Span{{1, 10, 30}}},
		{"gap", []Span{{1, 10, 20}, {3, 40, 50}, {2, 20, 25}}, []Span{{1, 10, 25}, {3, 40, 50}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Coalesce(tc.input); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Wrong result: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.rit")
	iw, err := CreateIntervals(path)
	require.NoError(t, err)

	groups := [][]Interval{
		{{1, 100, 0}, {150, 300, 4}},
		nil,
		{{5, 10, 7}},
	}
	for _, group := range groups {
		require.NoError(t, iw.WriteGroup(group))
	}
	require.NoError(t, iw.Close())

	offsets := iw.Offsets()
	assert.Equal(t, []uint32{0, 24, 24, 36}, offsets)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, CheckOffsets(offsets, len(groups), info.Size()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	for i, want := range groups {
		got, err := ReadGroup(f, offsets[i], offsets[i+1])
		require.NoError(t, err)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got)
	}
}

func TestCheckOffsets_Invalid(t *testing.T) {
	testCases := []struct {
		name      string
		offsets   []uint32
		sequences int
		size      int64
	}{
		{"wrong count", []uint32{0, 12}, 2, 12},
		{"decreasing", []uint32{0, 24, 12}, 2, 12},
		{"misaligned", []uint32{0, 13, 24}, 2, 24},
		{"wrong total", []uint32{0, 12}, 1, 24},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := CheckOffsets(tc.offsets, tc.sequences, tc.size); err == nil {
				t.Error("CheckOffsets accepted invalid offsets")
			}
		})
	}
}
