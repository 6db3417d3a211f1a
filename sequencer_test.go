// Copyright (c) 2025 Joshua Skootsky
//
// Licensed under the Business Source License 1.1
// You may use this file only in compliance with one of:
// 1. BSL-1.1 (non-production use is free)
// 2. Commercial License (contact for pricing)
//
// After 4 years (2029-01-01), this becomes Apache-2.0

package disruptor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleProducerSequencer_RejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewSingleProducerSequencer(5, NewBusySpinWaitStrategy())
	require.ErrorIs(t, err, ErrArgumentInvalid)
}

func TestSingleProducerSequencer_NextAdvancesCursorOnPublish(t *testing.T) {
	s, err := NewSingleProducerSequencer(8, NewBusySpinWaitStrategy())
	require.NoError(t, err)

	seq := s.Next(1)
	require.Equal(t, int64(0), seq)
	require.Equal(t, InitialCursorValue, s.Cursor(), "cursor should not advance until Publish")

	s.Publish(seq)
	require.Equal(t, int64(0), s.Cursor())
}

func TestSingleProducerSequencer_GetHighestPublishedSequenceIsPassThrough(t *testing.T) {
	s, err := NewSingleProducerSequencer(8, NewBusySpinWaitStrategy())
	require.NoError(t, err)
	require.Equal(t, int64(42), s.GetHighestPublishedSequence(0, 42))
}

func TestMultiProducerSequencer_RejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewMultiProducerSequencer(6, NewBusySpinWaitStrategy())
	require.ErrorIs(t, err, ErrArgumentInvalid)
}

func TestMultiProducerSequencer_ConcurrentNextClaimsAreUnique(t *testing.T) {
	s, err := NewMultiProducerSequencer(2048, NewBusySpinWaitStrategy())
	require.NoError(t, err)

	const goroutines = 16
	const perGoroutine = 500
	claims := make([][]int64, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		g := g
		claims[g] = make([]int64, perGoroutine)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				claims[g][i] = s.Next(1)
				s.Publish(claims[g][i])
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, goroutines*perGoroutine)
	for _, list := range claims {
		for _, seq := range list {
			require.False(t, seen[seq], "sequence %d claimed twice", seq)
			seen[seq] = true
		}
	}
	require.Equal(t, goroutines*perGoroutine, len(seen))
}

func TestMultiProducerSequencer_GetHighestPublishedSequenceToleratesGaps(t *testing.T) {
	s, err := NewMultiProducerSequencer(16, NewBusySpinWaitStrategy())
	require.NoError(t, err)

	claimed := s.Next(5) // claims sequences 0..4
	require.Equal(t, int64(4), claimed)

	// Publish out of order, skipping sequence 2.
	s.Publish(0)
	s.Publish(1)
	s.Publish(3)
	s.Publish(4)

	require.Equal(t, int64(1), s.GetHighestPublishedSequence(0, 4))

	s.Publish(2)
	require.Equal(t, int64(4), s.GetHighestPublishedSequence(0, 4))
}

func TestMultiProducerSequencer_TryNextFailsWhenGated(t *testing.T) {
	s, err := NewMultiProducerSequencer(4, NewBusySpinWaitStrategy())
	require.NoError(t, err)

	consumer := NewSequence()
	s.AddGatingSequences(consumer)

	for i := 0; i < 4; i++ {
		seq, err := s.TryNext(1)
		require.NoError(t, err)
		s.Publish(seq)
	}

	_, err = s.TryNext(1)
	require.ErrorIs(t, err, ErrCapacityFull)

	consumer.Set(0)
	_, err = s.TryNext(1)
	require.NoError(t, err)
}

func TestSequencerBase_GatingSequenceCASReplace(t *testing.T) {
	s, err := NewSingleProducerSequencer(8, NewBusySpinWaitStrategy())
	require.NoError(t, err)

	a, b, c := NewSequence(), NewSequence(), NewSequence()
	s.AddGatingSequences(a, b)
	s.AddGatingSequences(c)

	require.True(t, s.RemoveGatingSequence(b))
	require.False(t, s.RemoveGatingSequence(b))
	require.True(t, s.RemoveGatingSequence(a))
	require.True(t, s.RemoveGatingSequence(c))
}
