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

package query

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffx/internal/gff"
	"github.com/googlegenomics/gffx/internal/index"
)

type attributeIndex struct {
	key    string
	values []string
	// postings holds the fids carrying each attribute value.
	postings []*roaring.Bitmap
}

func (idx *Index) loadFeatures() (map[string]uint32, error) {
	names, err := index.ReadLines(index.Path(idx.prefix, index.Features))
	if err != nil {
		return nil, err
	}
	fids := make(map[string]uint32, len(names))
	for fid, name := range names {
		fids[name] = uint32(fid)
	}
	return fids, nil
}

func (idx *Index) loadParents() ([]uint32, error) {
	parents, err := index.ReadUint32s(index.Path(idx.prefix, index.Parents))
	if err != nil {
		return nil, err
	}
	for fid, parent := range parents {
		if int(parent) >= len(parents) {
			return nil, fmt.Errorf("feature %d has parent %d outside of %d features", fid, parent, len(parents))
		}
	}
	return parents, nil
}

func (idx *Index) loadAttributes() (*attributeIndex, error) {
	key, values, err := index.ReadAttributes(index.Path(idx.prefix, index.AttributeNames))
	if err != nil {
		return nil, err
	}
	ids, err := index.ReadUint32s(index.Path(idx.prefix, index.AttributeIDs))
	if err != nil {
		return nil, err
	}

	attrs := &attributeIndex{
		key:      key,
		values:   values,
		postings: make([]*roaring.Bitmap, len(values)),
	}
	for i := range attrs.postings {
		attrs.postings[i] = roaring.New()
	}
	for fid, id := range ids {
		if id == index.NoAttribute {
			continue
		}
		if int(id) >= len(values) {
			return nil, fmt.Errorf("feature %d has attribute %d outside of %d values", fid, id, len(values))
		}
		attrs.postings[id].Add(uint32(fid))
	}
	for _, posting := range attrs.postings {
		posting.RunOptimize()
	}
	return attrs, nil
}

// root follows parent links from fid to its root feature.
func root(parents []uint32, fid uint32) (uint32, error) {
	for range len(parents) {
		parent := parents[fid]
		if parent == fid {
			return fid, nil
		}
		fid = parent
	}
	return 0, fmt.Errorf("parent cycle through feature %d", fid)
}

func roots(parents []uint32, fids *roaring.Bitmap) (*roaring.Bitmap, error) {
	out := roaring.New()
	it := fids.Iterator()
	for it.HasNext() {
		fid := it.Next()
		if int(fid) >= len(parents) {
			return nil, fmt.Errorf("feature %d outside of %d features", fid, len(parents))
		}
		r, err := root(parents, fid)
		if err != nil {
			return nil, err
		}
		out.Add(r)
	}
	return out, nil
}

// FeatureRoots returns the roots of the models containing the given feature
// identifiers.  Identifiers not in the index are returned separately.
func (idx *Index) FeatureRoots(ids []string) (*roaring.Bitmap, []string, error) {
	features, err := idx.features()
	if err != nil {
		return nil, nil, fmt.Errorf("loading features: %w", err)
	}
	parents, err := idx.parents()
	if err != nil {
		return nil, nil, fmt.Errorf("loading parents: %w", err)
	}

	var (
		fids    = roaring.New()
		missing []string
	)
	for _, id := range ids {
		fid, ok := features[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		fids.Add(fid)
	}
	out, err := roots(parents, fids)
	if err != nil {
		return nil, nil, err
	}
	return out, missing, nil
}

// AttributeKey returns the attribute key the index was built with.
func (idx *Index) AttributeKey() (string, error) {
	attrs, err := idx.attributes()
	if err != nil {
		return "", err
	}
	return attrs.key, nil
}

// SearchAttributes returns the roots of the models containing a feature whose
// indexed attribute value is selected by m.
func (idx *Index) SearchAttributes(m gff.ValueMatcher) (*roaring.Bitmap, error) {
	attrs, err := idx.attributes()
	if err != nil {
		return nil, fmt.Errorf("loading attributes: %w", err)
	}
	parents, err := idx.parents()
	if err != nil {
		return nil, fmt.Errorf("loading parents: %w", err)
	}

	var selected []*roaring.Bitmap
	for id, value := range attrs.values {
		if m.Match(value) {
			selected = append(selected, attrs.postings[id])
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w on attribute %q", ErrNoAttributeMatch, attrs.key)
	}
	fids := roaring.FastOr(selected...)
	if fids.IsEmpty() {
		return nil, fmt.Errorf("%w on attribute %q", ErrNoAttributeMatch, attrs.key)
	}
	return roots(parents, fids)
}
