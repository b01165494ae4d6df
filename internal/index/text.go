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
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/googlegenomics/gffx/internal/binary"
)

const attributeHeader = "#attribute="

var errMissingAttributeHeader = errors.New("missing #attribute= header")

// WriteLines writes one line per entry to path, replacing any existing file.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadLines returns the lines of path.  Line numbers are significant, so
// interior empty lines are preserved; only the empty string after the final
// terminator is dropped.  A trailing carriage return is removed.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitLines(data), nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	data = bytes.TrimSuffix(data, []byte{'\n'})
	parts := bytes.Split(data, []byte{'\n'})
	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = string(bytes.TrimSuffix(part, []byte{'\r'}))
	}
	return lines
}

// WriteAttributes writes the attribute dictionary for key to path.
func WriteAttributes(path, key string, values []string) error {
	lines := make([]string, 0, len(values)+1)
	lines = append(lines, attributeHeader+key)
	lines = append(lines, values...)
	return WriteLines(path, lines)
}

// ReadAttributes returns the attribute key the dictionary at path was built
// for and its values in attribute id order.
func ReadAttributes(path string) (string, []string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return "", nil, err
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], attributeHeader) {
		return "", nil, fmt.Errorf("reading %s: %w", path, errMissingAttributeHeader)
	}
	return strings.TrimPrefix(lines[0], attributeHeader), lines[1:], nil
}

// WriteUint32s writes values to path as a flat little endian array.
func WriteUint32s(path string, values []uint32) error {
	buf := make([]byte, 0, 4*len(values))
	for _, v := range values {
		buf = binary.AppendUint32(buf, v)
	}
	return os.WriteFile(path, buf, 0o644)
}

// ReadUint32s reads the flat little endian array at path.
func ReadUint32s(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values, err := binary.Uint32s(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}
