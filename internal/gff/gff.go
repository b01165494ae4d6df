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

// Package gff provides allocation free helpers for reading GFF3 lines.
//
// See http://www.sequenceontology.org/gff3.shtml for the format.
package gff

import (
	"bytes"
	"strings"
)

// Columns is the number of tab separated columns of a feature line.
const Columns = 9

// Column indexes of a feature line.
const (
	FieldSeqid = iota
	FieldSource
	FieldType
	FieldStart
	FieldEnd
	FieldScore
	FieldStrand
	FieldPhase
	FieldAttributes
)

// Line holds the columns of one feature line.  The slices alias the input.
type Line [Columns][]byte

// Split splits a feature line on tabs.  It reports false unless the line has
// exactly nine columns.
func Split(line []byte, out *Line) bool {
	n := 0
	for {
		i := bytes.IndexByte(line, '\t')
		if i < 0 {
			break
		}
		if n == Columns-1 {
			return false
		}
		out[n] = line[:i]
		line = line[i+1:]
		n++
	}
	if n != Columns-1 {
		return false
	}
	out[n] = line
	return true
}

// IsComment reports whether line is a comment or directive.
func IsComment(line []byte) bool {
	return len(line) > 0 && line[0] == '#'
}

// IsBlank reports whether line only holds white space.
func IsBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}

// TypeSet restricts output to features of the listed types.  A nil set
// allows everything.
type TypeSet map[string]bool

// ParseTypes parses a comma separated list of feature types.  An empty list
// yields a nil set.
func ParseTypes(list string) TypeSet {
	var set TypeSet
	for _, t := range strings.Split(list, ",") {
		if t = strings.TrimSpace(t); t != "" {
			if set == nil {
				set = make(TypeSet)
			}
			set[t] = true
		}
	}
	return set
}

// Allows reports whether line should be kept.  Comments are always kept;
// feature lines are kept when their third column is in the set.
func (set TypeSet) Allows(line []byte) bool {
	if set == nil || IsComment(line) {
		return true
	}
	rest := line
	for i := 0; i < FieldType; i++ {
		j := bytes.IndexByte(rest, '\t')
		if j < 0 {
			return false
		}
		rest = rest[j+1:]
	}
	end := bytes.IndexByte(rest, '\t')
	if end < 0 {
		return false
	}
	return set[string(rest[:end])]
}
