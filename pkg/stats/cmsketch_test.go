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
	"testing"

	"github.com/cockroachdb/colstats/pkg/util/leaktest"
	"github.com/cockroachdb/colstats/pkg/util/randutil"
	"github.com/stretchr/testify/require"
)

func TestCMSketchQuery(t *testing.T) {
	defer leaktest.AfterTest(t)()

	c := NewCMSketch(5, 2048)
	// Skewed frequencies over a small domain; with this width there is
	// essentially no collision pressure, so estimates are exact.
	freqs := map[int64]uint64{}
	var total uint64
	for v := int64(0); v < 20; v++ {
		n := uint64(v*v + 1)
		freqs[v] = n
		total += n
		for i := uint64(0); i < n; i++ {
			c.Insert(encInt(v))
		}
	}
	require.Equal(t, total, c.TotalCount())
	for v, n := range freqs {
		require.Equal(t, n, c.Query(encInt(v)), "value %d", v)
	}
	// Unseen values report zero.
	require.EqualValues(t, 0, c.Query(encInt(999)))
}

func TestCMSketchNeverUndercounts(t *testing.T) {
	defer leaktest.AfterTest(t)()

	rng, seed := randutil.NewTestRand()
	// A deliberately tiny sketch so collisions do occur.
	c := NewCMSketch(2, 16)
	exact := map[int64]uint64{}
	for i := 0; i < 2000; i++ {
		v := int64(rng.Intn(200))
		exact[v]++
		c.Insert(encInt(v))
	}
	for v, n := range exact {
		require.GreaterOrEqualf(t, c.Query(encInt(v)), n,
			"seed %d: undercounted value %d", seed, v)
	}
}

func TestCMSketchDefaultValue(t *testing.T) {
	defer leaktest.AfterTest(t)()

	c := NewCMSketch(5, 2048)
	c.Insert(encInt(1))
	c.SetDefaultValue(7)
	// Seen values keep their counter; unseen ones fall back to the default.
	require.EqualValues(t, 1, c.Query(encInt(1)))
	require.EqualValues(t, 7, c.Query(encInt(12345)))
}

func TestCMSketchMerge(t *testing.T) {
	defer leaktest.AfterTest(t)()

	a := NewCMSketch(5, 2048)
	b := NewCMSketch(5, 2048)
	for i := 0; i < 10; i++ {
		a.Insert(encInt(1))
		b.Insert(encInt(1))
		b.Insert(encInt(2))
	}
	require.NoError(t, a.Merge(b))
	require.EqualValues(t, 30, a.TotalCount())
	require.EqualValues(t, 20, a.Query(encInt(1)))
	require.EqualValues(t, 10, a.Query(encInt(2)))

	mismatched := NewCMSketch(4, 1024)
	require.Error(t, a.Merge(mismatched))
}
