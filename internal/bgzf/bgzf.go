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

// Package bgzf writes and reads BGZF, the blocked gzip format used for
// compressed genomics text.  Each block is an independent gzip member carrying
// its compressed size in a "BC" extra field, so block-compressed GFF3 output
// can be indexed and read back with standard tools.
package bgzf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// MaximumBlockSize is the maximum BGZF block size.
const MaximumBlockSize = 65536

// BlockDataSize is the amount of uncompressed data the Writer puts in each
// block, leaving room for incompressible input to fit in MaximumBlockSize.
const BlockDataSize = 0xff00

// EOF is the empty block that terminates a BGZF file.
var EOF = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// DecodeBlock decodes a single BGZF block from r and returns the uncompressed
// data and the original block size (or an error).  Note that DecodeBlock may
// read bytes past the end of the block if r does not implement io.ByteReader.
func DecodeBlock(r io.Reader) ([]byte, uint16, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %w", err)
	}
	defer gzr.Close()

	extra := gzr.Header.Extra
	if len(extra) < 6 {
		return nil, 0, fmt.Errorf("missing BGZF extra field (%d bytes)", len(extra))
	}
	if extra[0] != 0x42 || extra[1] != 0x43 {
		return nil, 0, fmt.Errorf("unexpected extra ID: %x", extra[0:2])
	}
	if extra[2] != 2 || extra[3] != 0 {
		return nil, 0, fmt.Errorf("unexpected extra length: %x", extra[2:4])
	}

	gzr.Multistream(false)
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, gzr); err != nil {
		return nil, 0, fmt.Errorf("decompressing data: %w", err)
	}
	return buffer.Bytes(), (uint16(extra[4]) | uint16(extra[5])<<8) + 1, nil
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw := gzip.NewWriter(&buffer)

	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x88, 0x88, // BSIZE (filled in after writing the archive).
	}
	gzw.Header.OS = 0xff
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}
	bsize := buffer.Len() - 1
	if bsize >= MaximumBlockSize {
		return nil, fmt.Errorf("compressed block of %d bytes exceeds maximum block size", bsize+1)
	}
	encoded := buffer.Bytes()
	encoded[16] = byte(bsize)
	encoded[17] = byte(bsize >> 8)
	return encoded, nil
}

// Writer compresses its input into BGZF blocks.  Close must be called to
// flush the final block and append the EOF marker.
type Writer struct {
	w   io.Writer
	buf []byte
	err error
}

// NewWriter returns a Writer that writes blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, BlockDataSize)}
}

func (bw *Writer) Write(p []byte) (int, error) {
	var n int
	for len(p) > 0 && bw.err == nil {
		chunk := min(len(p), BlockDataSize-len(bw.buf))
		bw.buf = append(bw.buf, p[:chunk]...)
		p = p[chunk:]
		n += chunk
		if len(bw.buf) == BlockDataSize {
			bw.Flush()
		}
	}
	return n, bw.err
}

// Flush writes any buffered data as a complete block.
func (bw *Writer) Flush() error {
	if bw.err != nil || len(bw.buf) == 0 {
		return bw.err
	}
	block, err := EncodeBlock(bw.buf)
	if err != nil {
		bw.err = err
		return err
	}
	if _, err := bw.w.Write(block); err != nil {
		bw.err = fmt.Errorf("writing block: %w", err)
		return bw.err
	}
	bw.buf = bw.buf[:0]
	return nil
}

// Close flushes buffered data and writes the EOF marker.  It does not close
// the underlying writer.
func (bw *Writer) Close() error {
	if err := bw.Flush(); err != nil {
		return err
	}
	if _, err := bw.w.Write(EOF); err != nil {
		bw.err = fmt.Errorf("writing EOF marker: %w", err)
		return bw.err
	}
	bw.err = errors.New("bgzf: writer is closed")
	return nil
}
