// Copyright (c) 2025 Joshua Skootsky
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.
//
// Alternatively, you can license this code under a commercial license.
// Contact: joshua.skootsky@gmail.com

package disruptor

import (
	"strconv"

	"go.uber.org/atomic"
)

// cacheLinePad is the assumed coherency granularity for padding hot
// counters. Most x86/ARM client parts use 64 bytes; some ARM server
// parts use 128. Widen to 128 if profiling on a 128-byte-line target
// shows false sharing.
const cacheLinePad = 64

// InitialCursorValue is the sentinel a Sequence starts at: "nothing
// published yet".
const InitialCursorValue int64 = -1

// Sequence is a cache-line-padded, atomically accessed 64-bit counter.
// It is the universal progress primitive: producers, sequencers, and
// consumers each own one and publish it with release semantics so
// dependents reading it with acquire semantics also observe whatever the
// owner wrote before the publish.
type Sequence struct {
	_     [cacheLinePad]byte
	value atomic.Int64
	_     [cacheLinePad - 8]byte
}

// NewSequence returns a Sequence initialized to InitialCursorValue.
func NewSequence() *Sequence {
	return NewSequenceWithValue(InitialCursorValue)
}

// NewSequenceWithValue returns a Sequence initialized to the given value.
func NewSequenceWithValue(initial int64) *Sequence {
	s := &Sequence{}
	s.value.Store(initial)
	return s
}

// Value loads the sequence with acquire semantics.
func (s *Sequence) Value() int64 {
	return s.value.Load()
}

// Set stores the sequence with release semantics.
func (s *Sequence) Set(v int64) {
	s.value.Store(v)
}

// CompareAndSwap atomically sets the sequence to new if it currently
// equals old, returning whether the swap happened.
func (s *Sequence) CompareAndSwap(old, new int64) bool {
	return s.value.CompareAndSwap(old, new)
}

// AddAndGet atomically adds delta and returns the resulting value.
func (s *Sequence) AddAndGet(delta int64) int64 {
	return s.value.Add(delta)
}

// String renders the current value, for diagnostics and log fields.
func (s *Sequence) String() string {
	return strconv.FormatInt(s.Value(), 10)
}

// minSequence returns the minimum Value() across sequences. Its callers,
// DependentSequenceGroup.Value and minimumGatingSequence, guard the empty
// case themselves; sequences is assumed non-empty here.
func minSequence(sequences []*Sequence) int64 {
	min := sequences[0].Value()
	for _, s := range sequences[1:] {
		if v := s.Value(); v < min {
			min = v
		}
	}
	return min
}
