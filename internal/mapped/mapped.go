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

// Package mapped provides read-only memory maps of annotation and index files.
package mapped

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// AccessPattern is a hint describing how a mapping will be read.
type AccessPattern int

const (
	// Normal applies no particular hint.
	Normal AccessPattern = iota
	// Sequential is used for single forward scans such as indexing.
	Sequential
	// Random is used for scattered reads such as span extraction.
	Random
)

// File is a read-only memory map of a whole file.  The zero length file is
// represented by a nil mapping.
type File struct {
	f    *os.File
	data mmap.MMap
}

// Open maps the file at path read-only and applies the access pattern hint.
func Open(path string, pattern AccessPattern) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return &File{f: f}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	// The hint is advisory only.
	_ = advise(data, pattern)
	return &File{f: f, data: data}, nil
}

// Bytes returns the mapped contents.  The slice is valid until Close and must
// not be modified.
func (m *File) Bytes() []byte {
	return m.data
}

// Len returns the size of the mapping in bytes.
func (m *File) Len() int {
	return len(m.data)
}

// ReadAt implements io.ReaderAt on the mapping.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file and closes it.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if m.f != nil {
		if closeErr := m.f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.f = nil
	}
	return err
}
