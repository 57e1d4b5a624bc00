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

// Package stats builds query-optimizer statistics describing the value
// distribution of a table column or index. Values enter the package already
// key-encoded by an order-preserving encoder (see pkg/util/encoding), so all
// comparisons reduce to byte comparisons.
package stats

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Bucket is one element of a histogram.
//
// Count is cumulative: it includes the items stored in all preceding buckets
// as well as this one, so counts increase monotonically across the bucket
// sequence. UpperBound is the greatest value stored in the bucket and
// LowerBound the smallest. Repeats is the number of times UpperBound occurs
// at the tail of the bucket; it can be used to find popular values.
type Bucket struct {
	Count      int64
	UpperBound []byte
	LowerBound []byte
	Repeats    int64
}

// insertRepeatedItem records another occurrence of the bucket's current
// upper bound.
func (b *Bucket) insertRepeatedItem() {
	b.Count++
	b.Repeats++
}

// insertItem appends a value greater than everything stored in the bucket,
// making it the new upper bound.
func (b *Bucket) insertItem(val []byte) {
	b.UpperBound = val
	b.Count++
	b.Repeats = 1
}

// numItems returns the number of items stored in the bucket itself, derived
// from the cumulative counts.
func numItems(buckets []Bucket, i int) int64 {
	if i == 0 {
		return buckets[0].Count
	}
	return buckets[i].Count - buckets[i-1].Count
}

// Histogram is the finished, read-only product of a HistogramBuilder: an
// equi-depth summary of a column or index identified by ID.
type Histogram struct {
	// ID identifies the column or index this histogram describes. It is
	// carried through from the builder, never interpreted.
	ID int64
	// NDV is the number of distinct values observed.
	NDV     int64
	Buckets []Bucket
}

// TotalCount returns the total number of items summarized by the histogram.
func (h *Histogram) TotalCount() int64 {
	if len(h.Buckets) == 0 {
		return 0
	}
	return h.Buckets[len(h.Buckets)-1].Count
}

// String prints a histogram to a string, one bucket per line with hex-encoded
// bounds and the per-bucket (non-cumulative) item count.
func (h *Histogram) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "id=%d ndv=%d buckets=%d\n", h.ID, h.NDV, len(h.Buckets))
	for i := range h.Buckets {
		b := &h.Buckets[i]
		fmt.Fprintf(&sb, "%d: [%s, %s] items=%d repeats=%d\n",
			i, hex.EncodeToString(b.LowerBound), hex.EncodeToString(b.UpperBound),
			numItems(h.Buckets, i), b.Repeats)
	}
	return sb.String()
}
