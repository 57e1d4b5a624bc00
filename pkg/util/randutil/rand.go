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

// Package randutil provides pseudo-random number generators seeded from a
// cryptographic source, for use in tests that want reproducible randomness:
// a failing test logs the seed so the run can be replayed.
package randutil

import (
	crypto_rand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewPseudoSeed generates a seed from a cryptographic random source.
func NewPseudoSeed() int64 {
	var seed int64
	err := binary.Read(crypto_rand.Reader, binary.LittleEndian, &seed)
	if err != nil {
		panic(fmt.Sprintf("could not read from crypto/rand: %s", err))
	}
	return seed
}

// NewPseudoRand returns an instance of math/rand.Rand seeded from
// NewPseudoSeed, and its seed.
func NewPseudoRand() (*rand.Rand, int64) {
	seed := NewPseudoSeed()
	return rand.New(rand.NewSource(seed)), seed
}

// NewTestRand returns an instance of math/rand.Rand seeded from a fresh
// random seed, and the seed itself. Tests should include the seed in
// failure messages so failures can be reproduced.
func NewTestRand() (*rand.Rand, int64) {
	return NewPseudoRand()
}

// RandBytes returns a byte slice of the given length with random data.
func RandBytes(r *rand.Rand, size int) []byte {
	if size <= 0 {
		return nil
	}
	arr := make([]byte, size)
	for i := range arr {
		arr[i] = byte(r.Intn(256))
	}
	return arr
}

// RandIntInRange returns a value in [min, max).
func RandIntInRange(r *rand.Rand, min, max int) int {
	return min + r.Intn(max-min)
}
