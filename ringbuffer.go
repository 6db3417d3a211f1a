// Copyright (c) 2025 Joshua Skootsky
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.
//
// Alternatively, you can license this code under a commercial license.
// Contact: joshua.skootsky@gmail.com

package disruptor

// EventFactory preallocates one event slot. It must be pure and return a
// fresh instance every call: RingBuffer invokes it exactly bufferSize
// times, once per slot, at construction, and never again.
type EventFactory[T any] func() T

// RingBuffer is a fixed power-of-two array of preallocated event slots,
// indexed by sequence & mask. Slots are allocated once at construction
// and mutated in place for the life of the buffer: producers write a
// claimed-but-unpublished slot, consumers read a published slot, and
// neither ever copies or replaces one.
type RingBuffer[T any] struct {
	entries    []T
	indexMask  int64
	bufferSize int64
	sequencer  Sequencer
}

// NewSingleProducer constructs a RingBuffer backed by a
// SingleProducerSequencer. bufferSize must be a power of two, at least
// one; factory must be non-nil.
func NewSingleProducer[T any](factory EventFactory[T], bufferSize int64, waitStrategy WaitStrategy) (*RingBuffer[T], error) {
	sequencer, err := NewSingleProducerSequencer(bufferSize, waitStrategy)
	if err != nil {
		return nil, err
	}
	return newRingBuffer(factory, bufferSize, sequencer)
}

// NewMultiProducer constructs a RingBuffer backed by a
// MultiProducerSequencer. bufferSize must be a power of two, at least
// one; factory must be non-nil.
func NewMultiProducer[T any](factory EventFactory[T], bufferSize int64, waitStrategy WaitStrategy) (*RingBuffer[T], error) {
	sequencer, err := NewMultiProducerSequencer(bufferSize, waitStrategy)
	if err != nil {
		return nil, err
	}
	return newRingBuffer(factory, bufferSize, sequencer)
}

func newRingBuffer[T any](factory EventFactory[T], bufferSize int64, sequencer Sequencer) (*RingBuffer[T], error) {
	if err := validateBufferSize(bufferSize); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errArgumentInvalidf("factory must not be nil")
	}
	entries := make([]T, bufferSize)
	for i := range entries {
		entries[i] = factory()
	}
	return &RingBuffer[T]{
		entries:    entries,
		indexMask:  bufferSize - 1,
		bufferSize: bufferSize,
		sequencer:  sequencer,
	}, nil
}

// Next claims the next sequence. Blocks (spinning) until claiming would
// not violate wrap-safety against the registered gating sequences.
func (r *RingBuffer[T]) Next() int64 {
	return r.sequencer.Next(1)
}

// NextN claims n contiguous sequences and returns the highest claimed.
func (r *RingBuffer[T]) NextN(n int64) int64 {
	return r.sequencer.Next(n)
}

// TryNext is the non-blocking variant of Next. Returns ErrCapacityFull
// instead of blocking when claiming would wrap past a gating sequence.
func (r *RingBuffer[T]) TryNext() (int64, error) {
	return r.sequencer.TryNext(1)
}

// TryNextN is the non-blocking variant of NextN.
func (r *RingBuffer[T]) TryNextN(n int64) (int64, error) {
	return r.sequencer.TryNext(n)
}

// Publish makes sequence seq, and everything a caller wrote into its
// slot, visible to consumers.
func (r *RingBuffer[T]) Publish(seq int64) {
	r.sequencer.Publish(seq)
}

// PublishRange makes every sequence in [lo, hi] visible to consumers.
func (r *RingBuffer[T]) PublishRange(lo, hi int64) {
	r.sequencer.PublishRange(lo, hi)
}

// Get returns a pointer to the preallocated slot for seq. Callers may
// mutate it before Publish and read it after the barrier reports it
// available.
func (r *RingBuffer[T]) Get(seq int64) *T {
	return &r.entries[seq&r.indexMask]
}

// BufferSize returns the fixed, power-of-two capacity of the buffer.
func (r *RingBuffer[T]) BufferSize() int64 {
	return r.bufferSize
}

// Cursor returns the underlying sequencer's cursor.
func (r *RingBuffer[T]) Cursor() int64 {
	return r.sequencer.Cursor()
}

// AddGatingSequences registers downstream consumer sequences that
// producers must not lap. Call this for every EventProcessor that no
// other processor gates on (the last stage of each chain) before
// starting any producer.
func (r *RingBuffer[T]) AddGatingSequences(sequences ...*Sequence) {
	r.sequencer.AddGatingSequences(sequences...)
}

// RemoveGatingSequence deregisters a previously added gating sequence.
// Returns whether it was found.
func (r *RingBuffer[T]) RemoveGatingSequence(sequence *Sequence) bool {
	return r.sequencer.RemoveGatingSequence(sequence)
}

// NewBarrier returns a SequenceBarrier gated on this buffer's cursor
// and, if any are given, the supplied upstream processor sequences,
// used to build a consumer that depends on other consumers instead of
// reading directly from the producer cursor.
func (r *RingBuffer[T]) NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier {
	return r.sequencer.NewBarrier(sequencesToTrack...)
}
