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
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/googlegenomics/gffx/internal/binary"
)

// SpanSize is the size in bytes of one record in the Offsets file.
const SpanSize = 24

// Span locates the full byte range [Start, End) of a root model inside the
// annotation file.
type Span struct {
	Root       uint32
	Start, End uint64
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() uint64 {
	return s.End - s.Start
}

// String returns a human readable description of the receiver.
func (s Span) String() string {
	return fmt.Sprintf("%d:[%d-%d)", s.Root, s.Start, s.End)
}

// SpanWriter streams span records to an Offsets file.
type SpanWriter struct {
	f *os.File
	w *bufio.Writer
}

// CreateSpans creates (or truncates) the Offsets file at path.
func CreateSpans(path string) (*SpanWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &SpanWriter{f, bufio.NewWriter(f)}, nil
}

// Write appends one record: u32 fid, u32 reserved (0), u64 start, u64 end.
func (sw *SpanWriter) Write(s Span) error {
	record := make([]byte, 0, SpanSize)
	record = binary.AppendUint32(record, s.Root)
	record = binary.AppendUint32(record, 0)
	record = binary.AppendUint64(record, s.Start)
	record = binary.AppendUint64(record, s.End)
	_, err := sw.w.Write(record)
	return err
}

// Close flushes buffered records and closes the file.
func (sw *SpanWriter) Close() error {
	if err := sw.w.Flush(); err != nil {
		sw.f.Close()
		return err
	}
	return sw.f.Close()
}

// ReadSpans reads every record of the Offsets file at path.
func ReadSpans(path string) ([]Span, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeSpans(data)
}

// DecodeSpans decodes a sequence of span records.
func DecodeSpans(data []byte) ([]Span, error) {
	if len(data)%SpanSize != 0 {
		return nil, fmt.Errorf("span data length %d is not a multiple of %d", len(data), SpanSize)
	}
	spans := make([]Span, len(data)/SpanSize)
	for i := range spans {
		record := data[i*SpanSize:]
		spans[i] = Span{
			Root:  binary.Uint32(record),
			Start: binary.Uint64(record[8:]),
			End:   binary.Uint64(record[16:]),
		}
	}
	return spans, nil
}

// Coalesce sorts spans by start offset and joins spans that touch or
// intersect so that contiguous runs can be copied with a single write.  The
// bytes covered are unchanged.  The Root of a joined span is that of its
// first member.
func Coalesce(input []Span) []Span {
	if len(input) == 0 {
		return nil
	}
	sort.Slice(input, func(i, j int) bool {
		return input[i].Start < input[j].Start
	})

	var (
		merged = []Span{input[0]}
		output = &merged[0]
	)
	for i := 1; i < len(input); i++ {
		if input[i].Start <= output.End {
			if output.End < input[i].End {
				output.End = input[i].End
			}
		} else {
			merged = append(merged, input[i])
			output = &merged[len(merged)-1]
		}
	}
	return merged
}

// CopySpan writes the bytes of s from data to w.
func CopySpan(w io.Writer, data []byte, s Span) error {
	if s.End < s.Start || s.End > uint64(len(data)) {
		return fmt.Errorf("span %v outside of %d byte file", s, len(data))
	}
	_, err := w.Write(data[s.Start:s.End])
	return err
}
