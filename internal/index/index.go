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

// Package index defines the on-disk layout of the eight side-files that make
// up an annotation index and provides readers and writers for each of them.
//
// Every side-file is named after the annotation file it indexes with an
// extension appended, so the annotation path doubles as the index prefix.
// All multi-byte integers are little endian and all text files are newline
// delimited UTF-8.
package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Ext identifies one side-file of an index.
type Ext string

const (
	// Sequences holds one sequence name per line in first-seen order.
	Sequences Ext = ".sqs"
	// Features holds one external feature identifier per line, line = fid.
	Features Ext = ".fts"
	// Parents is a flat uint32 array of parent fids indexed by fid.
	Parents Ext = ".prt"
	// AttributeNames holds the "#attribute=<key>" header followed by the
	// dictionary values, line - 1 = attribute id.
	AttributeNames Ext = ".atn"
	// AttributeIDs is a flat uint32 array of attribute ids indexed by fid.
	AttributeIDs Ext = ".a2f"
	// Offsets holds one 24 byte span record per root.
	Offsets Ext = ".gof"
	// Intervals holds (start, end, fid) uint32 triples grouped by sequence.
	Intervals Ext = ".rit"
	// IntervalOffsets holds the cumulative byte offset of each sequence group
	// inside Intervals followed by the total length.
	IntervalOffsets Ext = ".rix"
)

// NoAttribute marks a feature without a value for the indexed attribute.
const NoAttribute = ^uint32(0)

// Exts lists every side-file of a complete index.
var Exts = []Ext{Offsets, Features, Parents, Sequences, AttributeNames, AttributeIDs, Intervals, IntervalOffsets}

// Path returns the location of the side-file ext for the index prefix.
func Path(prefix string, ext Ext) string {
	return prefix + string(ext)
}

// MissingError reports an incomplete index.  It is distinct from parse
// errors so callers can decide to rebuild rather than fail.
type MissingError struct {
	Prefix  string
	Missing []Ext
}

func (err *MissingError) Error() string {
	names := make([]string, len(err.Missing))
	for i, ext := range err.Missing {
		names[i] = string(ext)
	}
	return fmt.Sprintf("index for %s is incomplete (missing %s)", err.Prefix, strings.Join(names, ", "))
}

// IsMissing reports whether err was caused by an incomplete index.
func IsMissing(err error) bool {
	var missing *MissingError
	return errors.As(err, &missing)
}

// Check returns the side-files of prefix that do not exist.
func Check(prefix string) ([]Ext, error) {
	var missing []Ext
	for _, ext := range Exts {
		_, err := os.Stat(Path(prefix, ext))
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, ext)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", ext, err)
		}
	}
	return missing, nil
}

// Ensure verifies that all side-files of prefix exist.  When some are missing
// and rebuild is not nil, rebuild is invoked to recreate the whole index;
// otherwise a *MissingError is returned.
func Ensure(prefix string, rebuild func() error) error {
	missing, err := Check(prefix)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	if rebuild == nil {
		return &MissingError{prefix, missing}
	}
	if err := rebuild(); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	return nil
}
