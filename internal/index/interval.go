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
	"fmt"
	"io"
	"os"

	"github.com/googlegenomics/gffx/internal/binary"
)

// IntervalSize is the size in bytes of one (start, end, fid) triple.
const IntervalSize = 12

// Interval is the genomic extent of a root feature.
type Interval struct {
	Start, End uint32
	Root       uint32
}

// IntervalWriter writes sequence groups to an Intervals file while keeping
// track of the cumulative offsets destined for the IntervalOffsets file.
type IntervalWriter struct {
	f       *os.File
	offsets []uint32
	written uint32
}

// CreateIntervals creates (or truncates) the Intervals file at path.
func CreateIntervals(path string) (*IntervalWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &IntervalWriter{f: f}, nil
}

// WriteGroup appends the intervals of the next sequence, which must already
// be sorted by start, and records the offset at which the group begins.
func (iw *IntervalWriter) WriteGroup(intervals []Interval) error {
	iw.offsets = append(iw.offsets, iw.written)
	buf := make([]byte, 0, IntervalSize*len(intervals))
	for _, iv := range intervals {
		buf = binary.AppendUint32(buf, iv.Start)
		buf = binary.AppendUint32(buf, iv.End)
		buf = binary.AppendUint32(buf, iv.Root)
	}
	if _, err := iw.f.Write(buf); err != nil {
		return err
	}
	iw.written += uint32(len(buf))
	return nil
}

// Offsets returns the group offsets written so far followed by the total
// length, which is the content of the IntervalOffsets file.
func (iw *IntervalWriter) Offsets() []uint32 {
	return append(append([]uint32(nil), iw.offsets...), iw.written)
}

// Close closes the Intervals file.
func (iw *IntervalWriter) Close() error {
	return iw.f.Close()
}

// CheckOffsets validates the IntervalOffsets content against the number of
// sequences and the size of the Intervals file.
func CheckOffsets(offsets []uint32, sequences int, size int64) error {
	if len(offsets) != sequences+1 {
		return fmt.Errorf("%d interval offsets for %d sequences", len(offsets), sequences)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("interval offsets decrease at %d (%d < %d)", i, offsets[i], offsets[i-1])
		}
		if (offsets[i]-offsets[i-1])%IntervalSize != 0 {
			return fmt.Errorf("interval group %d is not a multiple of %d bytes", i-1, IntervalSize)
		}
	}
	if last := int64(offsets[len(offsets)-1]); last != size {
		return fmt.Errorf("last interval offset %d does not match file size %d", last, size)
	}
	return nil
}

// ReadGroup reads the intervals stored between the byte offsets from and to.
func ReadGroup(r io.ReaderAt, from, to uint32) ([]Interval, error) {
	if to < from || (to-from)%IntervalSize != 0 {
		return nil, fmt.Errorf("invalid interval group [%d, %d)", from, to)
	}
	buf := make([]byte, to-from)
	if _, err := r.ReadAt(buf, int64(from)); err != nil && !(err == io.EOF && len(buf) == 0) {
		return nil, fmt.Errorf("reading interval group at %d: %w", from, err)
	}
	intervals := make([]Interval, len(buf)/IntervalSize)
	for i := range intervals {
		record := buf[i*IntervalSize:]
		intervals[i] = Interval{
			Start: binary.Uint32(record),
			End:   binary.Uint32(record[4:]),
			Root:  binary.Uint32(record[8:]),
		}
	}
	return intervals, nil
}
