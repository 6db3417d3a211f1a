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
	"context"
	"runtime"
)

// DependentSequenceGroup aggregates zero or more upstream sequences into
// a single "minimum available" view for a downstream consumer. A group
// built with no upstream sequences belongs to a root consumer reading
// directly from a producer's cursor, and its Value is that cursor's
// value instead.
type DependentSequenceGroup struct {
	cursor     *Sequence
	dependents []*Sequence
}

// NewDependentSequenceGroup builds a group gated on cursor (typically a
// sequencer's cursor) and, if any are given, on the sequences of
// upstream processors this consumer must not overtake.
func NewDependentSequenceGroup(cursor *Sequence, dependents ...*Sequence) *DependentSequenceGroup {
	return &DependentSequenceGroup{cursor: cursor, dependents: dependents}
}

// Value returns the minimum of the upstream sequences, or the cursor's
// value if there are no upstream sequences to aggregate.
func (g *DependentSequenceGroup) Value() int64 {
	if len(g.dependents) == 0 {
		return g.cursor.Value()
	}
	return minSequence(g.dependents)
}

// Sequences returns the upstream sequences this group aggregates. May be
// empty for a root consumer.
func (g *DependentSequenceGroup) Sequences() []*Sequence {
	return g.dependents
}

// SpinWaitFor loops on Value until it reaches at least expected,
// checking ctx between iterations. polite yields the goroutine between
// checks (Yielding-strategy texture); the aggressive variant (polite =
// false) busy-polls with no yield, for dedicated-core latency-sensitive
// callers.
func (g *DependentSequenceGroup) SpinWaitFor(ctx context.Context, expected int64, polite bool) (int64, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		if v := g.Value(); v >= expected {
			return v, nil
		}
		if polite {
			runtime.Gosched()
		}
	}
}
