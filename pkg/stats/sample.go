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

package stats

import (
	"bytes"
	"math/rand"
	"sort"

	"github.com/axiomhq/hyperloglog"
)

// SampleCollector accumulates a bounded uniform sample of key-encoded values
// using reservoir sampling, along with a HyperLogLog sketch of the distinct
// count and running totals. It is the unsorted-input front end to the
// histogram builder: once collection finishes, the sample is sorted and
// replayed through a HistogramBuilder.
type SampleCollector struct {
	samples    [][]byte
	maxSamples int
	// seen counts the non-null values offered, i.e. the population the
	// reservoir samples from.
	seen      int64
	nullCount int64
	totalSize int64
	sketch    *hyperloglog.Sketch
	rng       *rand.Rand
}

// NewSampleCollector returns a collector keeping at most maxSamples values.
// rng drives the reservoir replacement decisions.
func NewSampleCollector(maxSamples int, rng *rand.Rand) *SampleCollector {
	return &SampleCollector{
		samples:    make([][]byte, 0, maxSamples),
		maxSamples: maxSamples,
		sketch:     hyperloglog.New14(),
		rng:        rng,
	}
}

// Collect offers one value to the collector. A nil value is counted as NULL
// and otherwise ignored. The collector retains val; the caller must not
// modify it afterwards.
func (c *SampleCollector) Collect(val []byte) {
	if val == nil {
		c.nullCount++
		return
	}
	c.seen++
	c.totalSize += int64(len(val))
	c.sketch.Insert(val)
	if len(c.samples) < c.maxSamples {
		c.samples = append(c.samples, val)
		return
	}
	if j := c.rng.Int63n(c.seen); j < int64(c.maxSamples) {
		c.samples[j] = val
	}
}

// Count returns the number of non-null values offered to the collector.
func (c *SampleCollector) Count() int64 { return c.seen }

// NullCount returns the number of null values offered to the collector.
func (c *SampleCollector) NullCount() int64 { return c.nullCount }

// TotalSize returns the total encoded size of the non-null values offered.
func (c *SampleCollector) TotalSize() int64 { return c.totalSize }

// DistinctCount returns the estimated number of distinct non-null values
// offered to the collector, from the HyperLogLog sketch.
func (c *SampleCollector) DistinctCount() uint64 {
	return c.sketch.Estimate()
}

// Samples returns the current reservoir contents in unspecified order. The
// slice is owned by the collector.
func (c *SampleCollector) Samples() [][]byte {
	return c.samples
}

// BuildSampledHistogram sorts the collector's reservoir and replays it
// through a HistogramBuilder, producing a histogram of the sample. Bucket
// counts describe the sample, not the full population; scaling them up is
// the consumer's concern.
func BuildSampledHistogram(id int64, maxBuckets int, c *SampleCollector) *Histogram {
	samples := c.samples
	sort.Slice(samples, func(i, j int) bool {
		return bytes.Compare(samples[i], samples[j]) < 0
	})
	b := NewHistogramBuilder(id, maxBuckets)
	for _, s := range samples {
		b.Add(s)
	}
	return b.Histogram()
}
