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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/colstats/pkg/util/encoding"
	"github.com/cockroachdb/colstats/pkg/util/leaktest"
	"github.com/cockroachdb/colstats/pkg/util/randutil"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

func encInt(v int64) []byte {
	return encoding.EncodeVarintAscending(nil, v)
}

// TestHistogramBuilder walks through the doubling-merge lifecycle with three
// buckets. Ported from the original statistics test.
func TestHistogramBuilder(t *testing.T) {
	defer leaktest.AfterTest(t)()

	const maxBuckets = 3
	b := NewHistogramBuilder(1, maxBuckets)
	require.Len(t, b.Buckets(), 0)
	require.EqualValues(t, 0, b.TotalCount())

	for i := int64(0); i < 3; i++ {
		b.Add(encInt(i))
	}
	// b0: [0]
	// b1: [1]
	// b2: [2]
	require.Len(t, b.Buckets(), maxBuckets)
	require.EqualValues(t, 1, b.PerBucketLimit())
	require.EqualValues(t, 3, b.NDV())

	// The buckets are full now, so adding a value forces a merge.
	b.Add(encInt(3))
	// b0: [0, 1]
	// b1: [2, 3]
	require.EqualValues(t, 2, b.PerBucketLimit())
	require.Len(t, b.Buckets(), 2)
	require.EqualValues(t, 4, b.NDV())

	// Repeats of the current upper bound are absorbed into the last bucket.
	for i := 0; i < 3; i++ {
		b.Add(encInt(3))
	}
	// b0: [0, 1]
	// b1: [2, 3, 3, 3, 3]
	require.EqualValues(t, 2, b.PerBucketLimit())
	require.Len(t, b.Buckets(), 2)
	require.EqualValues(t, 4, b.NDV())

	for i := 0; i < 4; i++ {
		b.Add(encInt(4))
	}
	// b0: [0, 1]
	// b1: [2, 3, 3, 3, 3]
	// b2: [4, 4, 4, 4]
	require.EqualValues(t, 2, b.PerBucketLimit())
	require.Len(t, b.Buckets(), 3)
	require.EqualValues(t, 5, b.NDV())

	// Full again; the next distinct value triggers another merge.
	b.Add(encInt(5))
	// b0: [0, 1, 2, 3, 3, 3, 3]
	// b1: [4, 4, 4, 4]
	// b2: [5]
	require.EqualValues(t, 4, b.PerBucketLimit())
	require.Len(t, b.Buckets(), 3)
	require.EqualValues(t, 6, b.NDV())
	require.EqualValues(t, 12, b.TotalCount())
}

// TestHistogramBuilderRepeatAbsorption checks that consecutive duplicates of
// the current upper bound never create buckets, trigger merges, or bump the
// distinct count.
func TestHistogramBuilderRepeatAbsorption(t *testing.T) {
	defer leaktest.AfterTest(t)()

	b := NewHistogramBuilder(7, 2)
	b.Add(encInt(42))
	limit := b.PerBucketLimit()
	for i := 0; i < 50; i++ {
		b.Add(encInt(42))
	}
	require.Len(t, b.Buckets(), 1)
	require.EqualValues(t, 1, b.NDV())
	require.Equal(t, limit, b.PerBucketLimit())
	last := b.Buckets()[0]
	require.EqualValues(t, 51, last.Count)
	require.EqualValues(t, 51, last.Repeats)
	require.Equal(t, last.LowerBound, last.UpperBound)
}

// TestHistogramBuilderSingleBucket checks the degenerate maxBuckets=1 case:
// the histogram collapses into one ever-widening bucket.
func TestHistogramBuilderSingleBucket(t *testing.T) {
	defer leaktest.AfterTest(t)()

	b := NewHistogramBuilder(1, 1)
	for i := int64(0); i < 100; i++ {
		b.Add(encInt(i))
	}
	require.Len(t, b.Buckets(), 1)
	require.EqualValues(t, 100, b.NDV())
	require.EqualValues(t, 100, b.TotalCount())
	bk := b.Buckets()[0]
	require.Equal(t, encInt(0), bk.LowerBound)
	require.Equal(t, encInt(99), bk.UpperBound)
}

func checkHistogramInvariants(
	t *testing.T, b *HistogramBuilder, maxBuckets int, total, distinct int64, seed int64,
) {
	t.Helper()
	buckets := b.Buckets()
	require.LessOrEqualf(t, len(buckets), maxBuckets, "seed %d", seed)
	require.Equalf(t, total, b.TotalCount(), "seed %d", seed)
	require.Equalf(t, distinct, b.NDV(), "seed %d", seed)

	limit := b.PerBucketLimit()
	require.Truef(t, limit > 0 && limit&(limit-1) == 0,
		"seed %d: per-bucket limit %d is not a power of two", seed, limit)

	for i := range buckets {
		require.LessOrEqualf(t, bytes.Compare(buckets[i].LowerBound, buckets[i].UpperBound), 0,
			"seed %d: bucket %d bounds inverted", seed, i)
		if i > 0 {
			require.Lessf(t, buckets[i-1].Count, buckets[i].Count,
				"seed %d: cumulative counts not increasing at bucket %d", seed, i)
			require.Negativef(t, bytes.Compare(buckets[i-1].UpperBound, buckets[i].LowerBound),
				"seed %d: bucket %d lower bound overlaps predecessor", seed, i)
		}
	}
}

// TestHistogramBuilderRandom feeds random sorted integer streams (with
// duplicate runs) through the builder and checks the structural invariants.
func TestHistogramBuilderRandom(t *testing.T) {
	defer leaktest.AfterTest(t)()

	rng, seed := randutil.NewTestRand()
	for trial := 0; trial < 50; trial++ {
		maxBuckets := randutil.RandIntInRange(rng, 1, 12)
		b := NewHistogramBuilder(int64(trial), maxBuckets)

		n := randutil.RandIntInRange(rng, 1, 500)
		var total, distinct int64
		cur := int64(rng.Intn(1000))
		for i := 0; i < n; i++ {
			if i == 0 || rng.Intn(3) > 0 {
				cur += int64(1 + rng.Intn(10))
				distinct++
			}
			b.Add(encInt(cur))
			total++
		}
		checkHistogramInvariants(t, b, maxBuckets, total, distinct, seed)
	}
}

// TestHistogramBuilderRandomBytes does the same with variable-length byte
// string values, exercising the lexicographic comparisons.
func TestHistogramBuilderRandomBytes(t *testing.T) {
	defer leaktest.AfterTest(t)()

	rng, seed := randutil.NewTestRand()
	for trial := 0; trial < 20; trial++ {
		maxBuckets := randutil.RandIntInRange(rng, 1, 8)

		n := randutil.RandIntInRange(rng, 1, 300)
		vals := make([][]byte, n)
		for i := range vals {
			vals[i] = encoding.EncodeBytesAscending(nil, randutil.RandBytes(rng, rng.Intn(6)))
		}
		sort.Slice(vals, func(i, j int) bool { return bytes.Compare(vals[i], vals[j]) < 0 })

		var distinct int64
		for i := range vals {
			if i == 0 || !bytes.Equal(vals[i], vals[i-1]) {
				distinct++
			}
		}

		b := NewHistogramBuilder(int64(trial), maxBuckets)
		for _, v := range vals {
			b.Add(v)
		}
		checkHistogramInvariants(t, b, maxBuckets, int64(n), distinct, seed)
	}
}

// TestHistogramBuilderReadIdempotence checks that reading the finished
// histogram is side-effect free.
func TestHistogramBuilderReadIdempotence(t *testing.T) {
	defer leaktest.AfterTest(t)()

	b := NewHistogramBuilder(1, 4)
	for i := int64(0); i < 37; i++ {
		b.Add(encInt(i / 3))
	}
	first := b.Histogram().String()
	for i := 0; i < 5; i++ {
		require.Equal(t, first, b.Histogram().String())
		require.EqualValues(t, 13, b.NDV())
		require.EqualValues(t, 37, b.TotalCount())
	}
}

// TestHistogramSnapshot checks that a histogram returned by Histogram is
// detached from the builder: feeding more values afterwards, including
// enough to trigger merges, must not change it.
func TestHistogramSnapshot(t *testing.T) {
	defer leaktest.AfterTest(t)()

	b := NewHistogramBuilder(1, 4)
	for i := int64(0); i < 10; i++ {
		b.Add(encInt(i))
	}
	snap := b.Histogram()
	want := snap.String()
	wantBuckets := len(snap.Buckets)

	// Repeats of the snapshot's upper bound mutate the builder's last bucket
	// in place; fresh values force appends and merges.
	for i := int64(0); i < 50; i++ {
		b.Add(encInt(9 + i/5))
	}
	require.Equal(t, want, snap.String())
	require.Equal(t, wantBuckets, len(snap.Buckets))
	require.EqualValues(t, 10, snap.TotalCount())
	require.Greater(t, b.TotalCount(), snap.TotalCount())
}

func TestHistogramBuilderDataDriven(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var b *HistogramBuilder
	datadriven.RunTest(t, "testdata/histogram_builder",
		func(t *testing.T, d *datadriven.TestData) string {
			switch d.Cmd {
			case "init":
				var maxBuckets int
				d.ScanArgs(t, "buckets", &maxBuckets)
				b = NewHistogramBuilder(1, maxBuckets)
				return ""

			case "add":
				for _, f := range strings.Fields(d.Input) {
					v, err := strconv.ParseInt(f, 10, 64)
					require.NoError(t, err)
					b.Add(encInt(v))
				}
				return fmt.Sprintf("buckets=%d limit=%d ndv=%d\n",
					len(b.Buckets()), b.PerBucketLimit(), b.NDV())

			case "show":
				var sb strings.Builder
				for i, bk := range b.Buckets() {
					_, lo, err := encoding.DecodeVarintAscending(bk.LowerBound)
					require.NoError(t, err)
					_, hi, err := encoding.DecodeVarintAscending(bk.UpperBound)
					require.NoError(t, err)
					fmt.Fprintf(&sb, "%d: [%d, %d] count=%d repeats=%d\n",
						i, lo, hi, bk.Count, bk.Repeats)
				}
				return sb.String()

			default:
				d.Fatalf(t, "unknown command %q", d.Cmd)
				return ""
			}
		})
}
