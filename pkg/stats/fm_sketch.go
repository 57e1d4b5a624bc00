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

import "hash/fnv"

// FMSketch is a Flajolet-Martin sketch that estimates the number of distinct
// values in a stream using bounded memory. It keeps at most maxSize hash
// values whose low bits are all zero under the current mask; whenever the set
// overflows, the mask grows by one bit and roughly half the stored hashes are
// evicted. The distinct count is then the number of survivors scaled back up
// by the sampling rate.
//
// Unlike the histogram builder, the sketch does not require sorted input.
type FMSketch struct {
	hashset map[uint64]bool
	mask    uint64
	maxSize int
}

// NewFMSketch returns an empty sketch keeping at most maxSize hashes.
func NewFMSketch(maxSize int) *FMSketch {
	return &FMSketch{
		hashset: make(map[uint64]bool, maxSize),
		maxSize: maxSize,
	}
}

// Insert adds one value to the sketch.
func (s *FMSketch) Insert(val []byte) {
	h := fnv.New64a()
	// fnv's Write never fails.
	_, _ = h.Write(val)
	s.insertHashValue(h.Sum64())
}

func (s *FMSketch) insertHashValue(hashVal uint64) {
	if hashVal&s.mask != 0 {
		return
	}
	s.hashset[hashVal] = true
	if len(s.hashset) > s.maxSize {
		s.mask = s.mask*2 + 1
		for key := range s.hashset {
			if key&s.mask != 0 {
				delete(s.hashset, key)
			}
		}
	}
}

// NDV returns the estimated number of distinct values inserted so far.
func (s *FMSketch) NDV() int64 {
	return int64(s.mask+1) * int64(len(s.hashset))
}

// Merge folds another sketch into this one. The coarser of the two masks
// wins, so merged estimates stay conservative.
func (s *FMSketch) Merge(other *FMSketch) {
	if other.mask > s.mask {
		s.mask = other.mask
		for key := range s.hashset {
			if key&s.mask != 0 {
				delete(s.hashset, key)
			}
		}
	}
	for key := range other.hashset {
		s.insertHashValue(key)
	}
}
