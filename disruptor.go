// Copyright (c) 2025 Joshua Skootsky
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.
//
// Alternatively, you can license this code under a commercial license.
// Contact: joshua.skootsky@gmail.com

// Package disruptor provides a lock-free, cache-friendly event pipeline
// built around a preallocated circular buffer of fixed-slot events.
//
// # Shape
//
// One or more producers claim sequence numbers from a Sequencer, write
// into the slot the claimed sequence addresses, and publish it. One or
// more EventProcessors traverse those sequences through a SequenceBarrier,
// gated on whichever upstream sequences they depend on, and invoke a
// user-supplied handler once a contiguous run of sequences becomes
// available. Slots are allocated exactly once, at construction, by an
// injected factory, and are never replaced: producers and consumers take
// turns mutating the same backing array in place.
//
// # Thread-Safety Guarantees
//
//   - Any number of goroutines may call RingBuffer.Next/TryNext/Publish
//     concurrently when constructed with NewMultiProducer.
//   - Exactly one goroutine may drive a given RingBuffer constructed with
//     NewSingleProducer.
//   - Exactly one goroutine should run a given EventProcessor's loop
//     (Start launches it); Halt may be called from any goroutine.
//
// # Performance Characteristics
//
//   - Wait-free claim/publish on the single-producer path, lock-free
//     (CAS-retry) claim on the multi-producer path.
//   - No slot allocations on the hot path: slots are pre-allocated at
//     construction and mutated in place. A batch processor allocates one
//     small BatchView per batch.
//   - Cache-line padding on every hot counter (Sequence, sequencer
//     cursors, the gating-sequence cache) to prevent false sharing.
//
// # Usage Example
//
//	type event struct{ value int64 }
//
//	rb, _ := disruptor.NewSingleProducer(func() event { return event{} }, 1024, disruptor.NewBusySpinWaitStrategy())
//	barrier := rb.NewBarrier()
//	proc, _ := disruptor.NewBatchEventProcessor(rb, barrier, disruptor.BatchEventHandlerFunc[event](func(b *disruptor.BatchView[event], start int64) error {
//	    for i := int64(0); i < b.Len(); i++ {
//	        _ = b.Get(i) // consume b.Get(i).value
//	    }
//	    return nil
//	}), disruptor.NewLoggingExceptionHandler[event](nil))
//	rb.AddGatingSequences(proc.Sequence())
//	task, _ := proc.Start()
//
//	seq := rb.Next()
//	rb.Get(seq).value = 42
//	rb.Publish(seq)
//
//	proc.Halt()
//	task.Wait(time.Second)
package disruptor
