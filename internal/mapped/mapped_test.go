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

package mapped

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.gff3")
	require.NoError(t, os.WriteFile(path, []byte("##gff-version 3\n"), 0o644))

	m, err := Open(path, Sequential)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "##gff-version 3\n", string(m.Bytes()))
	assert.Equal(t, 16, m.Len())

	buf := make([]byte, 3)
	n, err := m.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "gff", string(buf))

	n, err = m.ReadAt(buf, 14)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gff3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path, Random)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Bytes())
	assert.NoError(t, m.Close())
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), Normal)
	assert.True(t, os.IsNotExist(err))
}

func TestClose_Twice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	m, err := Open(path, Normal)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
