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
	"context"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffx/internal/genomics"
	"github.com/googlegenomics/gffx/internal/index"
	"golang.org/x/sync/errgroup"
)

// Mode selects how a root's interval must relate to a query region.
type Mode int

const (
	// Overlap selects roots sharing at least one base with the region.
	Overlap Mode = iota
	// Contained selects roots lying entirely inside the region.
	Contained
	// ContainsRegion selects roots covering the whole region.
	ContainsRegion
)

var modeNames = map[Mode]string{
	Overlap:        "overlap",
	Contained:      "contained",
	ContainsRegion: "contains",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name as produced by Mode.String.  The empty string
// selects Overlap.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Overlap, nil
	}
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown intersection mode %q", s)
}

func (m Mode) match(iv index.Interval, region genomics.Region) bool {
	switch m {
	case Contained:
		return iv.Start >= region.Start && iv.End <= region.End
	case ContainsRegion:
		return iv.Start <= region.Start && iv.End >= region.End
	default:
		return iv.End >= region.Start && iv.Start <= region.End
	}
}

// Intersect returns the fids of the roots selected by mode in any of the
// regions.  With invert, each region instead selects the roots near it that
// mode rejects: those whose interval could overlap the region.
//
// Regions are evaluated concurrently, up to the configured thread count.
func (idx *Index) Intersect(ctx context.Context, regions []genomics.Region, mode Mode, invert bool) (*roaring.Bitmap, error) {
	if _, ok := modeNames[mode]; !ok {
		return nil, fmt.Errorf("unknown intersection mode %d", int(mode))
	}

	results := make([][]uint32, len(regions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.threads)
	for i, region := range regions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			roots, err := idx.intersect(region, mode, invert)
			results[i] = roots
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matched := roaring.New()
	for _, roots := range results {
		matched.AddMany(roots)
	}
	return matched, nil
}

func (idx *Index) intersect(region genomics.Region, mode Mode, invert bool) ([]uint32, error) {
	if region.SequenceID < 0 || region.SequenceID >= len(idx.groups) {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSequence, region)
	}
	group, reach := idx.groups[region.SequenceID], idx.reach[region.SequenceID]

	first := sort.Search(len(reach), func(i int) bool {
		return reach[i] >= region.Start
	})
	var roots []uint32
	for _, iv := range group[first:] {
		if iv.Start > region.End {
			break
		}
		if mode.match(iv, region) != invert {
			roots = append(roots, iv.Root)
		}
	}
	return roots, nil
}
