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
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	uberatomic "go.uber.org/atomic"
)

// Sequencer assigns monotonically increasing sequence numbers to
// producers and tracks what is safely published. Two implementations
// are provided: SingleProducerSequencer for the uncontended single-writer
// case, and MultiProducerSequencer for any number of concurrent
// producers.
type Sequencer interface {
	// Next claims n contiguous sequences and returns the highest one.
	// Blocks (spinning) until claiming would not violate wrap-safety.
	Next(n int64) int64

	// TryNext is the non-blocking variant of Next. Returns
	// ErrCapacityFull instead of blocking when claiming would wrap
	// past the slowest gating sequence.
	TryNext(n int64) (int64, error)

	// Publish makes sequence seq visible to consumers.
	Publish(seq int64)

	// PublishRange makes every sequence in [lo, hi] visible to
	// consumers.
	PublishRange(lo, hi int64)

	// Cursor returns the highest sequence this sequencer has claimed
	// (multi-producer) or published (single-producer).
	Cursor() int64

	// IsAvailable reports whether seq has been published.
	IsAvailable(seq int64) bool

	// GetHighestPublishedSequence scans from lowerBound upward and
	// returns the highest contiguously published sequence not
	// exceeding availableSequence. For sequencers that publish
	// strictly in claim order (single-producer) this is a no-op
	// pass-through of availableSequence.
	GetHighestPublishedSequence(lowerBound, availableSequence int64) int64

	// AddGatingSequences registers downstream consumer sequences that
	// producers must not lap.
	AddGatingSequences(sequences ...*Sequence)

	// RemoveGatingSequence deregisters a previously added gating
	// sequence. Returns whether it was found.
	RemoveGatingSequence(sequence *Sequence) bool

	// NewBarrier returns a SequenceBarrier gated on this sequencer's
	// cursor and, if any are given, the supplied upstream sequences.
	NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier
}

// sequencerBase holds the state and gating-sequence bookkeeping shared
// by both sequencer implementations.
type sequencerBase struct {
	bufferSize      int64
	waitStrategy    WaitStrategy
	cursor          *Sequence
	gatingSequences atomic.Pointer[[]*Sequence]
}

func initSequencerBase(base *sequencerBase, bufferSize int64, waitStrategy WaitStrategy) {
	base.bufferSize = bufferSize
	base.waitStrategy = waitStrategy
	base.cursor = NewSequence()
	empty := make([]*Sequence, 0)
	base.gatingSequences.Store(&empty)
}

func (s *sequencerBase) Cursor() int64 {
	return s.cursor.Value()
}

// AddGatingSequences CAS-replaces the gating snapshot with one that
// additionally holds sequences. Gating sequences are read far more often
// than they are added/removed, so readers (minimumGatingSequence) never
// take a lock; only the rare add/remove path retries under CAS.
func (s *sequencerBase) AddGatingSequences(sequences ...*Sequence) {
	if len(sequences) == 0 {
		return
	}
	for {
		old := s.gatingSequences.Load()
		next := make([]*Sequence, 0, len(*old)+len(sequences))
		next = append(next, (*old)...)
		next = append(next, sequences...)
		if s.gatingSequences.CompareAndSwap(old, &next) {
			return
		}
	}
}

// RemoveGatingSequence CAS-replaces the gating snapshot with one that no
// longer holds sequence. Returns false if sequence was never registered.
func (s *sequencerBase) RemoveGatingSequence(sequence *Sequence) bool {
	for {
		old := s.gatingSequences.Load()
		idx := -1
		for i, gs := range *old {
			if gs == sequence {
				idx = i
				break
			}
		}
		if idx == -1 {
			return false
		}
		next := make([]*Sequence, 0, len(*old)-1)
		next = append(next, (*old)[:idx]...)
		next = append(next, (*old)[idx+1:]...)
		if s.gatingSequences.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// minimumGatingSequence returns the minimum of the current gating
// snapshot, or fallback if no gating sequences are registered yet (no
// consumers have attached, so there is nothing to protect against).
func (s *sequencerBase) minimumGatingSequence(fallback int64) int64 {
	gating := *s.gatingSequences.Load()
	if len(gating) == 0 {
		return fallback
	}
	return minSequence(gating)
}

func validateBufferSize(bufferSize int64) error {
	if bufferSize < 1 || bufferSize&(bufferSize-1) != 0 {
		return errors.Wrapf(ErrArgumentInvalid, "buffer size %d must be a power of two >= 1", bufferSize)
	}
	return nil
}

// SingleProducerSequencer is a Sequencer for the uncontended
// single-writer case: cursor is written by exactly one goroutine, so
// claiming never needs a CAS loop, only a release store on Publish.
type SingleProducerSequencer struct {
	sequencerBase
	nextValue            int64
	cachedGatingSequence int64
}

// NewSingleProducerSequencer constructs a SingleProducerSequencer.
// bufferSize must be a power of two, at least one.
func NewSingleProducerSequencer(bufferSize int64, waitStrategy WaitStrategy) (*SingleProducerSequencer, error) {
	if err := validateBufferSize(bufferSize); err != nil {
		return nil, err
	}
	if waitStrategy == nil {
		return nil, errors.Wrap(ErrArgumentInvalid, "wait strategy must not be nil")
	}
	s := &SingleProducerSequencer{
		nextValue:            InitialCursorValue,
		cachedGatingSequence: InitialCursorValue,
	}
	initSequencerBase(&s.sequencerBase, bufferSize, waitStrategy)
	return s, nil
}

func (s *SingleProducerSequencer) Next(n int64) int64 {
	next := s.nextValue + n
	wrapPoint := next - s.bufferSize
	if wrapPoint > s.cachedGatingSequence {
		for {
			gating := s.minimumGatingSequence(s.nextValue)
			if wrapPoint <= gating {
				s.cachedGatingSequence = gating
				break
			}
			runtime.Gosched()
		}
	}
	s.nextValue = next
	return next
}

func (s *SingleProducerSequencer) TryNext(n int64) (int64, error) {
	next := s.nextValue + n
	wrapPoint := next - s.bufferSize
	gating := s.cachedGatingSequence
	if wrapPoint > gating {
		gating = s.minimumGatingSequence(s.nextValue)
		if wrapPoint > gating {
			return 0, ErrCapacityFull
		}
		s.cachedGatingSequence = gating
	}
	s.nextValue = next
	return next, nil
}

func (s *SingleProducerSequencer) Publish(seq int64) {
	s.cursor.Set(seq)
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *SingleProducerSequencer) PublishRange(_, hi int64) {
	s.cursor.Set(hi)
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *SingleProducerSequencer) IsAvailable(seq int64) bool {
	return seq <= s.cursor.Value()
}

// GetHighestPublishedSequence is a pass-through for single-producer
// sequencers: publish order is claim order, so every sequence up to the
// cursor is contiguous by construction.
func (s *SingleProducerSequencer) GetHighestPublishedSequence(_, availableSequence int64) int64 {
	return availableSequence
}

func (s *SingleProducerSequencer) NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier {
	dependents := NewDependentSequenceGroup(s.cursor, sequencesToTrack...)
	return newProcessorBarrier(s, s.waitStrategy, dependents)
}

// MultiProducerSequencer is a Sequencer for any number of concurrent
// producers. Claims are linearized with a CAS loop on cursor; publishes
// are recorded per-slot in availableBuffer so out-of-order completion
// between producers is tolerated and consumers reconstruct the
// contiguous published run via GetHighestPublishedSequence.
type MultiProducerSequencer struct {
	sequencerBase
	availableBuffer     []uberatomic.Int32
	indexMask           int64
	indexShift          uint
	gatingSequenceCache *Sequence
}

// NewMultiProducerSequencer constructs a MultiProducerSequencer.
// bufferSize must be a power of two, at least one.
func NewMultiProducerSequencer(bufferSize int64, waitStrategy WaitStrategy) (*MultiProducerSequencer, error) {
	if err := validateBufferSize(bufferSize); err != nil {
		return nil, err
	}
	if waitStrategy == nil {
		return nil, errors.Wrap(ErrArgumentInvalid, "wait strategy must not be nil")
	}
	s := &MultiProducerSequencer{
		availableBuffer:     make([]uberatomic.Int32, bufferSize),
		indexMask:           bufferSize - 1,
		indexShift:          log2(bufferSize),
		gatingSequenceCache: NewSequence(),
	}
	initSequencerBase(&s.sequencerBase, bufferSize, waitStrategy)
	for i := range s.availableBuffer {
		s.availableBuffer[i].Store(-1)
	}
	return s, nil
}

func log2(n int64) uint {
	var shift uint
	for v := n; v > 1; v >>= 1 {
		shift++
	}
	return shift
}

func (s *MultiProducerSequencer) Next(n int64) int64 {
	for {
		current := s.cursor.Value()
		next := current + n
		wrapPoint := next - s.bufferSize
		cachedGating := s.gatingSequenceCache.Value()

		if wrapPoint > cachedGating || cachedGating > current {
			gating := s.minimumGatingSequence(current)
			s.gatingSequenceCache.Set(gating)
			if wrapPoint > gating {
				runtime.Gosched()
				continue
			}
		}

		if s.cursor.CompareAndSwap(current, next) {
			return next
		}
	}
}

func (s *MultiProducerSequencer) TryNext(n int64) (int64, error) {
	for {
		current := s.cursor.Value()
		next := current + n
		wrapPoint := next - s.bufferSize
		gating := s.minimumGatingSequence(current)
		if wrapPoint > gating {
			return 0, ErrCapacityFull
		}
		if s.cursor.CompareAndSwap(current, next) {
			return next, nil
		}
	}
}

func (s *MultiProducerSequencer) setAvailable(seq int64) {
	idx := seq & s.indexMask
	s.availableBuffer[idx].Store(int32(seq >> s.indexShift))
}

func (s *MultiProducerSequencer) Publish(seq int64) {
	s.setAvailable(seq)
	s.waitStrategy.SignalAllWhenBlocking()
}

// PublishRange marks each slot available with its own atomic store. Go's
// atomic stores are sequentially consistent, so no separate fence is
// needed between them.
func (s *MultiProducerSequencer) PublishRange(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *MultiProducerSequencer) IsAvailable(seq int64) bool {
	idx := seq & s.indexMask
	expected := int32(seq >> s.indexShift)
	return s.availableBuffer[idx].Load() == expected
}

func (s *MultiProducerSequencer) GetHighestPublishedSequence(lowerBound, availableSequence int64) int64 {
	for seq := lowerBound; seq <= availableSequence; seq++ {
		if !s.IsAvailable(seq) {
			return seq - 1
		}
	}
	return availableSequence
}

func (s *MultiProducerSequencer) NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier {
	dependents := NewDependentSequenceGroup(s.cursor, sequencesToTrack...)
	return newProcessorBarrier(s, s.waitStrategy, dependents)
}
