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

// Package binary provides support for operating on little endian binary data.
package binary

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Read reads a little endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// Write writes v to w in little endian order using binary.Write.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// Uint32s decodes data as a flat array of little endian uint32 values.
func Uint32s(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 4", len(data))
	}
	values := make([]uint32, len(data)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return values, nil
}

// AppendUint32 appends the little endian encoding of v to b.
func AppendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendUint64 appends the little endian encoding of v to b.
func AppendUint64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// Uint32 decodes a little endian uint32 from the start of b.
func Uint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// Uint64 decodes a little endian uint64 from the start of b.
func Uint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
