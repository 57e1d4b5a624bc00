// Copyright 2025 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/colstats/pkg/stats"
	"github.com/cockroachdb/colstats/pkg/util/encoding"
	"github.com/cockroachdb/colstats/pkg/util/randutil"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildFlags struct {
	valueType string
	buckets   int
	sample    int
	verbose   bool
}

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "build statistics from newline-delimited values",
	Long: `Reads one value per line from a file (or stdin), key-encodes each value,
sorts the encodings, and builds an equi-depth histogram together with
distinct-count and point-frequency sketches. With --sample N, a uniform
reservoir of at most N values is kept instead and the histogram summarizes
the sample.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.valueType, "type", "int",
		"type of the input values: int, float, or string")
	f.IntVar(&buildFlags.buckets, "buckets", 200,
		"maximum number of histogram buckets")
	f.IntVar(&buildFlags.sample, "sample", 0,
		"reservoir-sample at most this many values (0 builds from all values)")
	f.BoolVarP(&buildFlags.verbose, "verbose", "v", false,
		"log progress to stderr")
	rootCmd.AddCommand(buildCmd)
}

// encodeValue key-encodes one input line according to the configured type.
func encodeValue(typ, line string) ([]byte, error) {
	switch typ {
	case "int":
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q", line)
		}
		return encoding.EncodeVarintAscending(nil, v), nil
	case "float":
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q", line)
		}
		return encoding.EncodeFloatAscending(nil, v), nil
	case "string":
		return encoding.EncodeStringAscending(nil, line), nil
	default:
		return nil, errors.Newf("unknown value type %q", typ)
	}
}

// decodeValue renders an encoded value back into a display string.
func decodeValue(typ string, enc []byte) (string, error) {
	switch typ {
	case "int":
		_, v, err := encoding.DecodeVarintAscending(enc)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	case "float":
		_, v, err := encoding.DecodeFloatAscending(enc)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case "string":
		_, v, err := encoding.DecodeStringAscending(enc, nil)
		if err != nil {
			return "", err
		}
		return v, nil
	default:
		return "", errors.Newf("unknown value type %q", typ)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// buildResult carries the built histogram plus the summary numbers the
// command prints after the bucket table.
type buildResult struct {
	hist *stats.Histogram

	rows      int64 // values seen, before any sampling
	sampled   int64 // values retained in the reservoir; 0 in exact mode
	sketchNDV int64 // FM sketch estimate (exact mode) or HLL estimate (sampled)
}

// buildStatistics builds a histogram over the encoded values. With
// sampleSize == 0 the encodings are sorted and every value feeds the
// collector; with sampleSize > 0 a uniform reservoir of at most sampleSize
// values is kept and the histogram summarizes the sample.
func buildStatistics(vals [][]byte, maxBuckets, sampleSize int, rng *rand.Rand) *buildResult {
	if sampleSize > 0 {
		c := stats.NewSampleCollector(sampleSize, rng)
		for _, v := range vals {
			c.Collect(v)
		}
		return &buildResult{
			hist:      stats.BuildSampledHistogram(1, maxBuckets, c),
			rows:      c.Count(),
			sampled:   int64(len(c.Samples())),
			sketchNDV: int64(c.DistinctCount()),
		}
	}

	// The collector requires sorted input; byte order of the encodings is
	// value order.
	sort.Slice(vals, func(i, j int) bool { return bytes.Compare(vals[i], vals[j]) < 0 })
	c := stats.NewSortedCollector(1, maxBuckets)
	for _, v := range vals {
		c.Add(v)
	}
	return &buildResult{
		hist:      c.Histogram(),
		rows:      c.Count(),
		sketchNDV: c.FMSketch().NDV(),
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildFlags.buckets < 1 {
		return errors.New("--buckets must be at least 1")
	}
	if buildFlags.sample < 0 {
		return errors.New("--sample must be non-negative")
	}
	logger, err := newLogger(buildFlags.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in := io.Reader(os.Stdin)
	name := "stdin"
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
		name = args[0]
	}

	start := time.Now()
	var vals [][]byte
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		enc, err := encodeValue(buildFlags.valueType, line)
		if err != nil {
			return err
		}
		vals = append(vals, enc)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "reading %s", name)
	}
	logger.Info("read input",
		zap.String("file", name),
		zap.String("type", buildFlags.valueType),
		zap.Int("values", len(vals)),
		zap.Duration("elapsed", time.Since(start)))

	rng, _ := randutil.NewPseudoRand()
	res := buildStatistics(vals, buildFlags.buckets, buildFlags.sample, rng)
	h := res.hist
	logger.Info("built statistics",
		zap.Int("buckets", len(h.Buckets)),
		zap.Int64("ndv", h.NDV),
		zap.Int64("sampled", res.sampled),
		zap.Duration("elapsed", time.Since(start)))

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"bucket", "lower", "upper", "count", "repeats"})
	var prevCount int64
	for i := range h.Buckets {
		b := &h.Buckets[i]
		lower, err := decodeValue(buildFlags.valueType, b.LowerBound)
		if err != nil {
			return err
		}
		upper, err := decodeValue(buildFlags.valueType, b.UpperBound)
		if err != nil {
			return err
		}
		table.Append([]string{
			strconv.Itoa(i),
			lower,
			upper,
			humanize.Comma(b.Count - prevCount),
			humanize.Comma(b.Repeats),
		})
		prevCount = b.Count
	}
	table.Render()

	if buildFlags.sample > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "rows: %s  sampled: %s  distinct (hll): %s\n",
			humanize.Comma(res.rows),
			humanize.Comma(res.sampled),
			humanize.Comma(res.sketchNDV))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "rows: %s  distinct: %s  sketch ndv: %s\n",
			humanize.Comma(res.rows),
			humanize.Comma(h.NDV),
			humanize.Comma(res.sketchNDV))
	}
	return nil
}
