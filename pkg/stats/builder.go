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

import "bytes"

// HistogramBuilder incrementally constructs an equi-depth histogram from a
// stream of key-encoded values delivered in non-decreasing order, using
// memory bounded by the target bucket count. It keeps a running count of
// distinct values and, per bucket, how often the current upper bound repeats.
//
// Buckets hold at most perBucketLimit items each, except that a value equal
// to a bucket's upper bound is always absorbed into that bucket so a single
// repeated value never spans two buckets. Whenever the bucket sequence is at
// capacity and the newest bucket fills up, neighboring buckets are merged
// pairwise and perBucketLimit doubles, so the work per value is amortized
// constant.
//
// The builder does not validate input order; feeding values out of order
// silently degrades the accuracy of the result. It is not safe for
// concurrent use.
type HistogramBuilder struct {
	id      int64
	ndv     int64
	buckets []Bucket
	// perBucketLimit is the target number of items per bucket. It starts at
	// 1 and doubles on every merge.
	perBucketLimit int64
	// maxBuckets bounds the length of the bucket sequence.
	maxBuckets int
}

// NewHistogramBuilder returns an empty builder for the column or index
// identified by id. maxBuckets must be at least 1.
func NewHistogramBuilder(id int64, maxBuckets int) *HistogramBuilder {
	return &HistogramBuilder{
		id:             id,
		perBucketLimit: 1,
		maxBuckets:     maxBuckets,
	}
}

// Add feeds the next value of the sorted stream into the histogram. The
// builder retains val; the caller must not modify it afterwards.
func (b *HistogramBuilder) Add(val []byte) {
	if n := len(b.buckets); n > 0 && bytes.Equal(b.buckets[n-1].UpperBound, val) {
		// The new item has the same value as the last bucket's upper bound.
		// To ensure a value is only ever stored in a single bucket, keep it
		// here even if the bucket exceeds perBucketLimit.
		b.buckets[n-1].insertRepeatedItem()
		return
	}
	b.ndv++
	if len(b.buckets) >= b.maxBuckets && b.isLastBucketFull() {
		b.mergeBuckets()
	}

	if !b.isLastBucketFull() {
		b.buckets[len(b.buckets)-1].insertItem(val)
		return
	}

	// Open a new bucket holding just this value.
	count := int64(1)
	if n := len(b.buckets); n > 0 {
		count += b.buckets[n-1].Count
	}
	b.buckets = append(b.buckets, Bucket{
		Count:      count,
		UpperBound: val,
		LowerBound: val,
		Repeats:    1,
	})
}

// isLastBucketFull reports whether the newest bucket has reached
// perBucketLimit. An empty bucket sequence counts as full so the first Add
// always opens a bucket.
func (b *HistogramBuilder) isLastBucketFull() bool {
	n := len(b.buckets)
	if n == 0 {
		return true
	}
	return numItems(b.buckets, n-1) >= b.perBucketLimit
}

// mergeBuckets collapses neighboring buckets pairwise from left to right,
// roughly halving the bucket count, and doubles perBucketLimit. An odd
// trailing bucket is kept unchanged. The merge rewrites the sequence in
// place in a single pass.
func (b *HistogramBuilder) mergeBuckets() {
	j := 0
	for i := 0; i < len(b.buckets); i += 2 {
		if i+1 == len(b.buckets) {
			b.buckets[j] = b.buckets[i]
		} else {
			b.buckets[j] = Bucket{
				Count:      b.buckets[i+1].Count,
				UpperBound: b.buckets[i+1].UpperBound,
				LowerBound: b.buckets[i].LowerBound,
				Repeats:    b.buckets[i+1].Repeats,
			}
		}
		j++
	}
	b.buckets = b.buckets[:j]
	b.perBucketLimit *= 2
}

// NDV returns the number of distinct values observed so far. Consecutive
// repeats of the same value count once.
func (b *HistogramBuilder) NDV() int64 {
	return b.ndv
}

// PerBucketLimit returns the current target maximum number of items per
// bucket. It is always a power of two: it starts at 1 and doubles with
// every merge.
func (b *HistogramBuilder) PerBucketLimit() int64 {
	return b.perBucketLimit
}

// Buckets returns the current bucket sequence. The slice is owned by the
// builder; callers must not modify it and must not retain it across
// further calls to Add.
func (b *HistogramBuilder) Buckets() []Bucket {
	return b.buckets
}

// TotalCount returns the total number of values added so far.
func (b *HistogramBuilder) TotalCount() int64 {
	if len(b.buckets) == 0 {
		return 0
	}
	return b.buckets[len(b.buckets)-1].Count
}

// Histogram returns a snapshot of the built histogram. The bucket sequence
// is copied, so further calls to Add do not affect a returned histogram.
func (b *HistogramBuilder) Histogram() *Histogram {
	buckets := make([]Bucket, len(b.buckets))
	copy(buckets, b.buckets)
	return &Histogram{
		ID:      b.id,
		NDV:     b.ndv,
		Buckets: buckets,
	}
}
