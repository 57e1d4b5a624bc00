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
	"math"

	"github.com/cockroachdb/errors"
	"github.com/spaolacci/murmur3"
)

// CMSketch is a count-min sketch used to estimate the frequency of individual
// values, complementing the histogram's range counts with point counts for
// popular values. See https://en.wikipedia.org/wiki/Count-min_sketch.
type CMSketch struct {
	depth int32
	width int32
	count uint64
	// defaultValue is returned for values whose estimate is indistinguishable
	// from collision noise. It is only set for sketches built from samples.
	defaultValue uint64
	table        [][]uint32
}

// NewCMSketch returns a zeroed sketch with a depth x width counter table.
func NewCMSketch(depth, width int32) *CMSketch {
	tbl := make([][]uint32, depth)
	// Allocate the rows out of one arena to keep the sketch in a single
	// allocation regardless of depth.
	arena := make([]uint32, int(depth)*int(width))
	for i := range tbl {
		tbl[i] = arena[i*int(width) : (i+1)*int(width)]
	}
	return &CMSketch{depth: depth, width: width, table: tbl}
}

// Insert adds one occurrence of val to the sketch.
func (c *CMSketch) Insert(val []byte) {
	c.count++
	h1, h2 := murmur3.Sum128(val)
	for i := range c.table {
		j := (h1 + h2*uint64(i)) % uint64(c.width)
		c.table[i][j]++
	}
}

// Query returns the estimated number of occurrences of val. The estimate
// never undercounts; hash collisions can make it overcount.
func (c *CMSketch) Query(val []byte) uint64 {
	h1, h2 := murmur3.Sum128(val)
	minVal := uint32(math.MaxUint32)
	for i := range c.table {
		j := (h1 + h2*uint64(i)) % uint64(c.width)
		if c.table[i][j] < minVal {
			minVal = c.table[i][j]
		}
	}
	res := uint64(minVal)
	if res == 0 && c.defaultValue > 0 {
		return c.defaultValue
	}
	return res
}

// TotalCount returns the number of insertions recorded by the sketch.
func (c *CMSketch) TotalCount() uint64 {
	return c.count
}

// SetDefaultValue sets the estimate returned for values the sketch has not
// seen. Used when the sketch was built from a sample rather than the full
// data set.
func (c *CMSketch) SetDefaultValue(v uint64) {
	c.defaultValue = v
}

// Merge folds another sketch into this one. The two sketches must have the
// same shape.
func (c *CMSketch) Merge(other *CMSketch) error {
	if c.depth != other.depth || c.width != other.width {
		return errors.Errorf(
			"cannot merge CM sketches of different sizes: %dx%d vs %dx%d",
			c.depth, c.width, other.depth, other.width)
	}
	c.count += other.count
	for i := range c.table {
		for j := range c.table[i] {
			c.table[i][j] += other.table[i][j]
		}
	}
	return nil
}
