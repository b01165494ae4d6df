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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	errMissingSeparator = errors.New("expected format chr:start-end")
	errMissingRange     = errors.New("expected range start-end")
)

// Region defines a region of genomic interest.
type Region struct {
	// SequenceID is the dense index of the sequence inside an annotation index.
	SequenceID int
	// Start and End specify the closed range (in 1-based base pairs) relative
	// to the sequence, following the GFF3 convention.
	Start, End uint32
}

func (region Region) String() string {
	return fmt.Sprintf("[sequence:%d, start:%d, end:%d]", region.SequenceID, region.Start, region.End)
}

// Locus is a region that still refers to its sequence by name.
type Locus struct {
	Name       string
	Start, End uint32
}

func (locus Locus) String() string {
	return fmt.Sprintf("%s:%d-%d", locus.Name, locus.Start, locus.End)
}

// ParseLocus parses input of the form "chr:start-end".  Sequence names may
// themselves contain colons, so the last colon separates the range.  Digit
// group separators (1,000) are accepted in the coordinates.
func ParseLocus(input string) (Locus, error) {
	i := strings.LastIndexByte(input, ':')
	if i <= 0 {
		return Locus{}, fmt.Errorf("parsing region %q: %v", input, errMissingSeparator)
	}
	name, span := input[:i], input[i+1:]

	s, e, ok := strings.Cut(span, "-")
	if !ok {
		return Locus{}, fmt.Errorf("parsing region %q: %v", input, errMissingRange)
	}
	start, err := parseCoordinate(s)
	if err != nil {
		return Locus{}, fmt.Errorf("parsing start of %q: %v", input, err)
	}
	end, err := parseCoordinate(e)
	if err != nil {
		return Locus{}, fmt.Errorf("parsing end of %q: %v", input, err)
	}
	if start > end {
		return Locus{}, fmt.Errorf("region %q: start > end", input)
	}
	return Locus{Name: name, Start: start, End: end}, nil
}

func parseCoordinate(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.ReplaceAll(s, ",", ""), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// ReadBED reads BED records from r and calls fn for each of them.  BED
// coordinates are 0-based and half-open; they are converted to the 1-based
// closed convention used by GFF3 before fn is invoked.  Blank lines, comments
// and track/browser lines are skipped, as are records with fewer than three
// columns.  A malformed coordinate is an error.
func ReadBED(r io.Reader, fn func(Locus) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' || strings.HasPrefix(text, "track") || strings.HasPrefix(text, "browser") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			continue
		}
		start, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("line %d: parsing start: %v", line, err)
		}
		end, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return fmt.Errorf("line %d: parsing end: %v", line, err)
		}
		if start >= end {
			return fmt.Errorf("line %d: empty interval %d-%d", line, start, end)
		}
		if err := fn(Locus{Name: fields[0], Start: uint32(start) + 1, End: uint32(end)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading BED: %v", err)
	}
	return nil
}
