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

package bgzf

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestDecodeBlock_EOF(t *testing.T) {
	data, length, err := DecodeBlock(bytes.NewReader(EOF))
	if err != nil {
		t.Fatalf("Failed to decode EOF marker: %v", err)
	}
	if got, want := int(length), len(EOF); got != want {
		t.Errorf("Wrong compressed block length: got %d, want %d", got, want)
	}
	if len(data) != 0 {
		t.Errorf("EOF marker decoded to %d bytes, want 0", len(data))
	}
}

func TestEncodeBlock_RoundTrip(t *testing.T) {
	random := make([]byte, BlockDataSize)
	rand.New(rand.NewSource(1)).Read(random)

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x42}},
		{"text", bytes.Repeat([]byte("chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=g1\n"), 100)},
		{"incompressible", random},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			block, err := EncodeBlock(tc.data)
			if err != nil {
				t.Fatalf("Failed to encode block: %v", err)
			}
			data, length, err := DecodeBlock(bytes.NewReader(block))
			if err != nil {
				t.Fatalf("Failed to decode block: %v", err)
			}
			if got, want := int(length), len(block); got != want {
				t.Errorf("Wrong compressed block length: got %d, want %d", got, want)
			}
			if !bytes.Equal(data, tc.data) {
				t.Errorf("Wrong decoded data: got %d bytes, want %d", len(data), len(tc.data))
			}
		})
	}
}

func TestEncodeBlock_BlockSizes(t *testing.T) {
	if _, err := EncodeBlock(make([]byte, MaximumBlockSize+1)); err == nil {
		t.Fatal("EncodeBlock() should fail with block over size limit but didn't")
	}
	if _, err := EncodeBlock(make([]byte, MaximumBlockSize)); err != nil {
		t.Fatal("EncodeBlock() should succeed with block at size limit but didn't")
	}
}

func TestWriter(t *testing.T) {
	input := bytes.Repeat([]byte("chr1\ttest\texon\t1\t100\t.\t+\t.\tID=e1;Parent=t1\n"), 5000)

	var output bytes.Buffer
	w := NewWriter(&output)
	for chunk := input; len(chunk) > 0; {
		n := min(len(chunk), 7919)
		if _, err := w.Write(chunk[:n]); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		chunk = chunk[n:]
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail but didn't")
	}

	if !bytes.HasSuffix(output.Bytes(), EOF) {
		t.Error("Output does not end with the EOF marker")
	}

	r := bytes.NewReader(output.Bytes())
	var (
		decoded bytes.Buffer
		blocks  int
	)
	for r.Len() > 0 {
		data, _, err := DecodeBlock(r)
		if err != nil {
			t.Fatalf("Failed to decode block %d: %v", blocks, err)
		}
		if len(data) > BlockDataSize {
			t.Errorf("Block %d holds %d bytes, more than %d", blocks, len(data), BlockDataSize)
		}
		decoded.Write(data)
		blocks++
	}
	if got, want := blocks, (len(input)+BlockDataSize-1)/BlockDataSize+1; got != want {
		t.Errorf("Wrong number of blocks: got %d, want %d", got, want)
	}
	if !bytes.Equal(decoded.Bytes(), input) {
		t.Error("Decoded blocks do not match the input")
	}

	gzr, err := gzip.NewReader(bytes.NewReader(output.Bytes()))
	if err != nil {
		t.Fatalf("Failed to open output as gzip: %v", err)
	}
	all, err := io.ReadAll(gzr)
	if err != nil {
		t.Fatalf("Failed to read output as gzip: %v", err)
	}
	if !bytes.Equal(all, input) {
		t.Error("Output read as multi-member gzip does not match the input")
	}
}

func TestWriter_Empty(t *testing.T) {
	var output bytes.Buffer
	if err := NewWriter(&output).Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !bytes.Equal(output.Bytes(), EOF) {
		t.Errorf("Empty output: got %x, want %x", output.Bytes(), EOF)
	}
}
