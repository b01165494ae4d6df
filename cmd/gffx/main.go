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

// This binary indexes GFF3 annotation files and extracts the feature models
// matching genomic regions, feature identifiers or attribute values.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/gffx/internal/bgzf"
	"github.com/googlegenomics/gffx/internal/builder"
	"github.com/googlegenomics/gffx/internal/genomics"
	"github.com/googlegenomics/gffx/internal/gff"
	"github.com/googlegenomics/gffx/internal/index"
	"github.com/googlegenomics/gffx/internal/query"
	"github.com/googlegenomics/gffx/internal/source"
	"github.com/pkg/profile"
)

const usage = `usage: gffx <command> [flags]

commands:
  index      build the side-file index of an annotation file
  check      report whether the index of an annotation file is complete
  intersect  extract the models overlapping genomic regions
  extract    extract the models containing feature identifiers
  search     extract the models whose attribute matches values

Run "gffx <command> -h" for the flags of a command.
`

var commands = map[string]func(context.Context, []string) error{
	"index":     runIndex,
	"check":     runCheck,
	"intersect": runIntersect,
	"extract":   runExtract,
	"search":    runSearch,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "gffx: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[2:]); err != nil {
		if index.IsMissing(err) {
			log.Fatalf("%s: %v (run \"gffx index\" first)", os.Args[1], err)
		}
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// common holds the flags shared by every command.
type common struct {
	input   string
	cache   string
	profile string
	verbose bool
}

func (c *common) register(fs *flag.FlagSet) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	fs.StringVar(&c.input, "i", "", "annotation file (local path, gs://bucket/object or s3://bucket/key)")
	fs.StringVar(&c.cache, "cache", filepath.Join(cacheDir, "gffx"), "directory for copies of remote annotation files")
	fs.StringVar(&c.profile, "profile", "", "write a cpu or mem profile to the current directory")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

// start validates the shared flags, configures logging and profiling and
// resolves the input to a local path.  The returned function stops profiling.
func (c *common) start(ctx context.Context) (string, func(), error) {
	if c.input == "" {
		return "", nil, errors.New("no input file specified (-i)")
	}

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	stop := func() {}
	switch c.profile {
	case "":
	case "cpu":
		stop = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop
	case "mem":
		stop = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop
	default:
		return "", nil, fmt.Errorf("unknown profile %q (want cpu or mem)", c.profile)
	}

	path, err := c.resolve(ctx)
	if err != nil {
		stop()
		return "", nil, err
	}
	return path, stop, nil
}

func (c *common) resolve(ctx context.Context) (string, error) {
	loc, ok := source.Parse(c.input)
	if !ok {
		return c.input, nil
	}

	cache := source.NewCache(c.cache, slog.Default())
	switch loc.Scheme {
	case source.SchemeGCS:
		gcs, err := source.NewGCS(ctx)
		if err != nil {
			return "", err
		}
		defer gcs.Close()
		cache.Register(source.SchemeGCS, gcs)
	case source.SchemeS3:
		s3, err := source.NewS3(ctx)
		if err != nil {
			return "", err
		}
		cache.Register(source.SchemeS3, s3)
	}
	return cache.Resolve(ctx, c.input)
}

// output holds the flags of commands that write feature models.
type output struct {
	path    string
	bgzf    bool
	types   string
	threads int
}

func (o *output) register(fs *flag.FlagSet) {
	fs.StringVar(&o.path, "o", "", "output file (default standard output)")
	fs.BoolVar(&o.bgzf, "bgzf", false, "block compress the output")
	fs.StringVar(&o.types, "T", "", "comma separated feature types to keep (default all)")
	fs.IntVar(&o.threads, "t", runtime.NumCPU(), "worker threads")
}

// write extracts the models of roots from idx.
func (o *output) write(idx *query.Index, roots *roaring.Bitmap) error {
	f := os.Stdout
	if o.path != "" {
		var err error
		if f, err = os.Create(o.path); err != nil {
			return err
		}
	}

	buffered := bufio.NewWriterSize(f, 1<<20)
	var w io.Writer = buffered
	var bw *bgzf.Writer
	if o.bgzf {
		bw = bgzf.NewWriter(buffered)
		w = bw
	}

	err := idx.Extract(w, idx.Spans(roots), query.ExtractOptions{Types: gff.ParseTypes(o.types)})
	if err == nil && bw != nil {
		err = bw.Close()
	}
	if err == nil {
		err = buffered.Flush()
	}
	if f != os.Stdout {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func open(path string, threads int) (*query.Index, error) {
	return query.Open(path, query.WithThreads(threads), query.WithLogger(slog.Default()))
}

func runIndex(ctx context.Context, args []string) error {
	var (
		c         common
		fs        = flag.NewFlagSet("index", flag.ExitOnError)
		attribute = fs.String("a", builder.DefaultAttribute, "attribute key to index for search")
		strict    = fs.Bool("strict", false, "fail on feature models whose lines are not contiguous")
	)
	c.register(fs)
	fs.Parse(args)

	path, stop, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	return builder.Build(ctx, path,
		builder.WithAttribute(*attribute),
		builder.WithStrictContiguity(*strict),
		builder.WithLogger(slog.Default()))
}

func runCheck(ctx context.Context, args []string) error {
	var (
		c         common
		fs        = flag.NewFlagSet("check", flag.ExitOnError)
		rebuild   = fs.Bool("rebuild", false, "build the index when it is incomplete")
		attribute = fs.String("a", builder.DefaultAttribute, "attribute key to index when rebuilding")
	)
	c.register(fs)
	fs.Parse(args)

	path, stop, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	var build func() error
	if *rebuild {
		build = func() error {
			return builder.Build(ctx, path, builder.WithAttribute(*attribute), builder.WithLogger(slog.Default()))
		}
	}
	if err := index.Ensure(path, build); err != nil {
		return err
	}
	fmt.Printf("%s: index complete\n", path)
	return nil
}

func runIntersect(ctx context.Context, args []string) error {
	var (
		c         common
		o         output
		fs        = flag.NewFlagSet("intersect", flag.ExitOnError)
		region    = fs.String("r", "", "region chr:start-end (1-based, closed)")
		bed       = fs.String("b", "", "BED file of regions")
		contained = fs.Bool("c", false, "select models contained in a region")
		contains  = fs.Bool("C", false, "select models containing a whole region")
		invert    = fs.Bool("I", false, "select nearby models that do not match")
	)
	c.register(fs)
	o.register(fs)
	fs.Parse(args)

	if (*region == "") == (*bed == "") {
		return errors.New("exactly one of -r and -b is required")
	}
	if *contained && *contains {
		return errors.New("-c and -C are mutually exclusive")
	}
	mode := query.Overlap
	switch {
	case *contained:
		mode = query.Contained
	case *contains:
		mode = query.ContainsRegion
	}

	path, stop, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	idx, err := open(path, o.threads)
	if err != nil {
		return err
	}
	defer idx.Close()

	var regions []genomics.Region
	if *region != "" {
		r, err := idx.ResolveRegion(*region)
		if err != nil {
			return err
		}
		regions = append(regions, r)
	} else {
		f, err := os.Open(*bed)
		if err != nil {
			return err
		}
		regions, err = idx.ResolveBED(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", *bed, err)
		}
	}

	roots, err := idx.Intersect(ctx, regions, mode, *invert)
	if err != nil {
		return err
	}
	slog.Debug("intersected regions", "regions", len(regions), "mode", mode, "models", roots.GetCardinality())
	return o.write(idx, roots)
}

func runExtract(ctx context.Context, args []string) error {
	var (
		c    common
		o    output
		fs   = flag.NewFlagSet("extract", flag.ExitOnError)
		ids  = fs.String("e", "", "comma separated feature identifiers")
		file = fs.String("E", "", "file of feature identifiers, one per line")
	)
	c.register(fs)
	o.register(fs)
	fs.Parse(args)

	list, err := values(*ids, *file, "-e", "-E")
	if err != nil {
		return err
	}

	path, stop, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	idx, err := open(path, o.threads)
	if err != nil {
		return err
	}
	defer idx.Close()

	roots, missing, err := idx.FeatureRoots(list)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		slog.Warn("feature identifiers not found", "count", len(missing), "first", missing[0])
	}
	return o.write(idx, roots)
}

func runSearch(ctx context.Context, args []string) error {
	var (
		c     common
		o     output
		fs    = flag.NewFlagSet("search", flag.ExitOnError)
		value = fs.String("a", "", "comma separated attribute values")
		file  = fs.String("A", "", "file of attribute values, one per line")
		regex = fs.Bool("regex", false, "treat values as regular expressions")
	)
	c.register(fs)
	o.register(fs)
	fs.Parse(args)

	list, err := values(*value, *file, "-a", "-A")
	if err != nil {
		return err
	}
	matcher := gff.Values(list)
	if *regex {
		if matcher, err = gff.Patterns(list); err != nil {
			return err
		}
	}

	path, stop, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	idx, err := open(path, o.threads)
	if err != nil {
		return err
	}
	defer idx.Close()

	roots, err := idx.SearchAttributes(matcher)
	if err != nil {
		return err
	}
	return o.write(idx, roots)
}

// values returns the entries of a comma separated list or of a file with one
// entry per line.  Exactly one of list and file must be set.
func values(list, file, listFlag, fileFlag string) ([]string, error) {
	if (list == "") == (file == "") {
		return nil, fmt.Errorf("exactly one of %s and %s is required", listFlag, fileFlag)
	}
	if list != "" {
		return split(strings.Split(list, ",")), nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return split(lines), nil
}

func split(entries []string) []string {
	var out []string
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
