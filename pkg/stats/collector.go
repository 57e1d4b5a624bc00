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

// Default sketch sizes for SortedCollector. The CM sketch dimensions follow
// the usual depth-5 setup; the FM sketch size bounds its memory at a few
// thousand hashes.
const (
	defaultFMSketchSize = 10000
	defaultCMDepth      = 5
	defaultCMWidth      = 2048
)

// SortedCollector runs one pass over an already-sorted stream of key-encoded
// values (a primary key or index scan) and feeds, in lockstep, an equi-depth
// histogram, an FM sketch for the distinct count, and a CM sketch for point
// frequencies. It is the single-pass ANALYZE path for sorted sources; use
// SampleCollector when the input order is unknown.
type SortedCollector struct {
	hist  *HistogramBuilder
	fm    *FMSketch
	cm    *CMSketch
	count int64
}

// NewSortedCollector returns a collector for the column or index identified
// by id, targeting maxBuckets histogram buckets.
func NewSortedCollector(id int64, maxBuckets int) *SortedCollector {
	return &SortedCollector{
		hist: NewHistogramBuilder(id, maxBuckets),
		fm:   NewFMSketch(defaultFMSketchSize),
		cm:   NewCMSketch(defaultCMDepth, defaultCMWidth),
	}
}

// Add feeds the next value of the sorted stream. The collector retains val.
func (c *SortedCollector) Add(val []byte) {
	c.count++
	c.hist.Add(val)
	c.fm.Insert(val)
	c.cm.Insert(val)
}

// Count returns the number of values added.
func (c *SortedCollector) Count() int64 { return c.count }

// Histogram returns the histogram built so far. Read-only once the caller
// stops adding values.
func (c *SortedCollector) Histogram() *Histogram { return c.hist.Histogram() }

// FMSketch returns the distinct-count sketch.
func (c *SortedCollector) FMSketch() *FMSketch { return c.fm }

// CMSketch returns the point-frequency sketch.
func (c *SortedCollector) CMSketch() *CMSketch { return c.cm }
