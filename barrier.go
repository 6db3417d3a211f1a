// Copyright (c) 2025 Joshua Skootsky
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.
//
// Alternatively, you can license this code under a commercial license.
// Contact: joshua.skootsky@gmail.com

package disruptor

import "go.uber.org/atomic"

// SequenceBarrier is the gate a consumer consults to learn the highest
// safely-consumable sequence. It composes a sequencer (for
// GetHighestPublishedSequence constraining), a wait strategy (for how to
// block/spin), and a DependentSequenceGroup (for what to wait on), and
// honors cancellation via Alert.
type SequenceBarrier interface {
	// WaitFor blocks until sequence is available, returning the
	// highest contiguously available sequence (which may exceed
	// sequence). Returns ErrAlerted if Alert was called, or
	// (TimeoutSignal, nil) if the underlying wait strategy times out.
	// With a multi-producer sequencer it can also return a value below
	// sequence, when sequence has been claimed but not yet published.
	WaitFor(sequence int64) (int64, error)

	// Cursor exposes the producer sequencer's cursor, for consumer
	// diagnostics.
	Cursor() int64

	// Alert requests that any in-progress or future WaitFor return
	// ErrAlerted, and wakes the wait strategy so a parked goroutine
	// observes it promptly.
	Alert()

	// ClearAlert clears a previously set alert.
	ClearAlert()

	// CheckAlert returns ErrAlerted if Alert has been called and not
	// yet cleared, nil otherwise.
	CheckAlert() error

	// IsAlerted reports the current alert state.
	IsAlerted() bool
}

type processorBarrier struct {
	sequencer    Sequencer
	waitStrategy WaitStrategy
	dependents   *DependentSequenceGroup
	alerted      atomic.Bool
}

func newProcessorBarrier(sequencer Sequencer, waitStrategy WaitStrategy, dependents *DependentSequenceGroup) *processorBarrier {
	return &processorBarrier{sequencer: sequencer, waitStrategy: waitStrategy, dependents: dependents}
}

func (b *processorBarrier) WaitFor(sequence int64) (int64, error) {
	if err := b.CheckAlert(); err != nil {
		return 0, err
	}
	available, err := b.waitStrategy.WaitFor(sequence, b.dependents, b)
	if err != nil {
		return 0, err
	}
	if available == TimeoutSignal || available < sequence {
		return available, nil
	}
	return b.sequencer.GetHighestPublishedSequence(sequence, available), nil
}

func (b *processorBarrier) Cursor() int64 {
	return b.sequencer.Cursor()
}

func (b *processorBarrier) Alert() {
	b.alerted.Store(true)
	b.waitStrategy.SignalAllWhenBlocking()
}

func (b *processorBarrier) ClearAlert() {
	b.alerted.Store(false)
}

func (b *processorBarrier) CheckAlert() error {
	if b.alerted.Load() {
		return ErrAlerted
	}
	return nil
}

func (b *processorBarrier) IsAlerted() bool {
	return b.alerted.Load()
}
