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
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// BatchView is a read/write window over a contiguous, published run of
// ring buffer slots. Mutating slots inside a batch is race-free: the
// consumer that owns the batch is the only goroutine allowed to touch
// those slots until it advances its Sequence past them.
type BatchView[T any] struct {
	ringBuffer interface{ Get(int64) *T }
	lo, hi     int64
}

// Len returns the number of slots in the batch.
func (b *BatchView[T]) Len() int64 {
	return b.hi - b.lo + 1
}

// Get returns the i-th slot of the batch, 0 <= i < Len().
func (b *BatchView[T]) Get(i int64) *T {
	return b.ringBuffer.Get(b.lo + i)
}

// StartSequence returns the sequence number of the batch's first slot.
func (b *BatchView[T]) StartSequence() int64 {
	return b.lo
}

// EndSequence returns the sequence number of the batch's last slot.
func (b *BatchView[T]) EndSequence() int64 {
	return b.hi
}

// BatchEventHandler is the preferred consumer contract: it is invoked
// once per available batch rather than once per event, so a consumer
// that can vectorize work (flush, checksum, bulk-write) gets the whole
// contiguous run at once.
type BatchEventHandler[T any] interface {
	OnBatch(batch *BatchView[T], startSequence int64) error
}

// BatchEventHandlerFunc adapts a function to a BatchEventHandler.
type BatchEventHandlerFunc[T any] func(batch *BatchView[T], startSequence int64) error

// OnBatch implements BatchEventHandler.
func (f BatchEventHandlerFunc[T]) OnBatch(batch *BatchView[T], startSequence int64) error {
	return f(batch, startSequence)
}

// EventHandler is the simpler per-event consumer contract: OnEvent is
// invoked once per event in ascending sequence order, endOfBatch true
// iff this is the last event before the processor re-polls the barrier.
type EventHandler[T any] interface {
	OnEvent(event *T, sequence int64, endOfBatch bool) error
}

// EventHandlerFunc adapts a function to an EventHandler.
type EventHandlerFunc[T any] func(event *T, sequence int64, endOfBatch bool) error

// OnEvent implements EventHandler.
func (f EventHandlerFunc[T]) OnEvent(event *T, sequence int64, endOfBatch bool) error {
	return f(event, sequence, endOfBatch)
}

// NewBatchEventHandler adapts an EventHandler into a BatchEventHandler
// by invoking OnEvent once per slot in the batch, in ascending order.
func NewBatchEventHandler[T any](handler EventHandler[T]) BatchEventHandler[T] {
	return &eventHandlerBatchAdapter[T]{handler: handler}
}

type eventHandlerBatchAdapter[T any] struct {
	handler EventHandler[T]
}

func (a *eventHandlerBatchAdapter[T]) OnBatch(batch *BatchView[T], startSequence int64) error {
	n := batch.Len()
	for i := int64(0); i < n; i++ {
		if err := a.handler.OnEvent(batch.Get(i), startSequence+i, i == n-1); err != nil {
			return err
		}
	}
	return nil
}

// OnStarter is implemented by handlers that need to run setup once,
// before the first sequence is ever polled.
type OnStarter interface {
	OnStart() error
}

// OnShutdowner is implemented by handlers that need to run teardown
// once, after the processor has halted.
type OnShutdowner interface {
	OnShutdown() error
}

// OnTimeouter is implemented by handlers that want to be notified when
// a timeout wait strategy reports no progress, instead of blocking
// silently. The processor also calls OnTimeout whenever the barrier
// returns a sequence below the one it waited for, which happens with a
// multi-producer sequencer while that sequence is claimed but not yet
// published.
type OnTimeouter interface {
	OnTimeout(sequence int64) error
}

// SequenceReporter is implemented by handlers that need to advertise
// progress mid-batch, for example a batching handler that flushes every
// k events and wants producers un-gated after each flush rather than at
// batch end. The processor injects the callback at construction; calling
// it with sequence s publishes s exactly as the processor's own
// end-of-batch advance would.
type SequenceReporter interface {
	SetSequenceCallback(callback func(sequence int64))
}

const (
	processorIdle int32 = iota
	processorRunning
	processorHalting
)

// ProcessorTask is the handle Start returns: a consumer joins the
// processor's run loop goroutine through it.
type ProcessorTask struct {
	done chan struct{}
}

// Wait blocks until the run loop has exited OnShutdown and returned to
// Idle, or timeout elapses. Returns whether the loop exited in time.
func (t *ProcessorTask) Wait(timeout time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done returns a channel closed when the run loop has exited.
func (t *ProcessorTask) Done() <-chan struct{} {
	return t.done
}

// EventProcessor is the consumer run-loop: it claims batches from a
// SequenceBarrier, invokes the handler it was constructed with (batch
// or per-event), and publishes its own Sequence so upstream producers
// and downstream processors can gate on its progress. Its lifecycle is
// Idle -> Running -> Halted -> Idle, restartable.
type EventProcessor[T any] struct {
	ringBuffer       *RingBuffer[T]
	barrier          SequenceBarrier
	batchHandler     BatchEventHandler[T]
	eventHandler     EventHandler[T]
	userHandler      any
	exceptionHandler ExceptionHandler[T]
	sequence         *Sequence
	state            atomic.Int32
	logger           *zap.Logger
}

// NewBatchEventProcessor constructs an EventProcessor driven by a
// BatchEventHandler: the handler sees each contiguous available run as
// one call, and a handler failure is routed to HandleOnBatchException
// once per batch. handler must be non-nil. A nil exceptionHandler fails
// eagerly with ErrArgumentInvalid; pass NewLoggingExceptionHandler[T](nil)
// for the default log-and-continue policy.
func NewBatchEventProcessor[T any](ringBuffer *RingBuffer[T], barrier SequenceBarrier, handler BatchEventHandler[T], exceptionHandler ExceptionHandler[T], opts ...ProcessorOption[T]) (*EventProcessor[T], error) {
	if handler == nil {
		return nil, errArgumentInvalidf("handler must not be nil")
	}
	return newEventProcessor[T](ringBuffer, barrier, handler, nil, handler, exceptionHandler, opts)
}

// NewEventProcessor constructs an EventProcessor driven by a per-event
// EventHandler: OnEvent is invoked once per slot in ascending sequence
// order, and a failure from one event is routed to HandleEventException
// for that event alone; the rest of the batch is still delivered, and
// the processor's sequence still advances past it (no replay). handler
// must be non-nil; a nil exceptionHandler fails eagerly with
// ErrArgumentInvalid.
func NewEventProcessor[T any](ringBuffer *RingBuffer[T], barrier SequenceBarrier, handler EventHandler[T], exceptionHandler ExceptionHandler[T], opts ...ProcessorOption[T]) (*EventProcessor[T], error) {
	if handler == nil {
		return nil, errArgumentInvalidf("handler must not be nil")
	}
	return newEventProcessor[T](ringBuffer, barrier, nil, handler, handler, exceptionHandler, opts)
}

func newEventProcessor[T any](ringBuffer *RingBuffer[T], barrier SequenceBarrier, batchHandler BatchEventHandler[T], eventHandler EventHandler[T], userHandler any, exceptionHandler ExceptionHandler[T], opts []ProcessorOption[T]) (*EventProcessor[T], error) {
	if exceptionHandler == nil {
		return nil, errArgumentInvalidf("exception handler must not be nil")
	}
	p := &EventProcessor[T]{
		ringBuffer:       ringBuffer,
		barrier:          barrier,
		batchHandler:     batchHandler,
		eventHandler:     eventHandler,
		userHandler:      userHandler,
		exceptionHandler: exceptionHandler,
		sequence:         NewSequence(),
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if reporter, ok := userHandler.(SequenceReporter); ok {
		reporter.SetSequenceCallback(p.sequence.Set)
	}
	return p, nil
}

// ProcessorOption customizes an EventProcessor at construction.
type ProcessorOption[T any] func(*EventProcessor[T])

// WithProcessorLogger sets the logger used for lifecycle events.
func WithProcessorLogger[T any](logger *zap.Logger) ProcessorOption[T] {
	return func(p *EventProcessor[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Sequence returns the processor's own Sequence, to be registered as a
// gating sequence on the ring buffer (or as an upstream dependency for a
// downstream processor's barrier).
func (p *EventProcessor[T]) Sequence() *Sequence {
	return p.sequence
}

// Cursor returns the producer cursor this processor's barrier gates on,
// for diagnostics. Together with Sequence and IsRunning it covers the
// processor's observable state: how far producers are, how far this
// consumer is, and whether the loop is live.
func (p *EventProcessor[T]) Cursor() int64 {
	return p.barrier.Cursor()
}

// IsRunning reports whether the processor is in the Running state.
func (p *EventProcessor[T]) IsRunning() bool {
	return p.state.Load() == processorRunning
}

// Start transitions Idle -> Running and launches the run loop in a new
// goroutine. Returns ErrAlreadyRunning if the processor is Running, or
// Halted but not yet joined through its ProcessorTask (the run loop is
// still winding down and its goroutine still owns the sequence).
func (p *EventProcessor[T]) Start() (*ProcessorTask, error) {
	if !p.state.CompareAndSwap(processorIdle, processorRunning) {
		return nil, ErrAlreadyRunning
	}
	p.barrier.ClearAlert()
	task := &ProcessorTask{done: make(chan struct{})}
	go p.run(task)
	return task, nil
}

// Halt is idempotent and safe to call from any state, including before
// the first Start. It requests the run loop stop and alerts the
// barrier so any parked wait strategy wakes promptly; the caller joins
// through the ProcessorTask returned by Start.
func (p *EventProcessor[T]) Halt() {
	if p.state.CompareAndSwap(processorRunning, processorHalting) {
		p.barrier.Alert()
	}
}

func (p *EventProcessor[T]) run(task *ProcessorTask) {
	defer close(task.done)
	defer p.state.Store(processorIdle)

	p.logger.Debug("event processor running", zap.Int64("sequence", p.sequence.Value()))
	p.callOnStart()

	nextSequence := p.sequence.Value() + 1
	for {
		available, err := p.barrier.WaitFor(nextSequence)
		if err != nil {
			if p.state.Load() == processorHalting {
				break
			}
			// Alert was raised for a reason other than halting
			// (none currently exists in this package, but future
			// callers of Alert should not wedge the loop): clear
			// it and keep going.
			p.barrier.ClearAlert()
			continue
		}

		if available == TimeoutSignal || available < nextSequence {
			p.callOnTimeout(nextSequence - 1)
			if p.state.Load() == processorHalting {
				break
			}
			continue
		}

		p.processBatch(nextSequence, available)
		// Release store: downstream dependents observing this value
		// also observe every slot mutation this batch performed.
		p.sequence.Set(available)
		nextSequence = available + 1

		if p.state.Load() == processorHalting {
			break
		}
	}

	p.callOnShutdown()
	p.logger.Debug("event processor halted", zap.Int64("sequence", p.sequence.Value()))
}

// processBatch delivers [lo, hi] through whichever handler contract this
// processor was built with. Either way a handler failure never escapes:
// it is routed to the exception handler and the caller advances the
// sequence past the whole batch, so a poisoned event is consumed once
// and never replayed.
func (p *EventProcessor[T]) processBatch(lo, hi int64) {
	if p.eventHandler != nil {
		for seq := lo; seq <= hi; seq++ {
			event := p.ringBuffer.Get(seq)
			if err := p.eventHandler.OnEvent(event, seq, seq == hi); err != nil {
				p.exceptionHandler.HandleEventException(err, seq, event)
			}
		}
		return
	}
	batch := &BatchView[T]{ringBuffer: p.ringBuffer, lo: lo, hi: hi}
	if err := p.batchHandler.OnBatch(batch, lo); err != nil {
		p.exceptionHandler.HandleOnBatchException(err, lo, batch)
	}
}

func (p *EventProcessor[T]) callOnStart() {
	starter, ok := p.userHandler.(OnStarter)
	if !ok {
		return
	}
	if err := starter.OnStart(); err != nil {
		p.exceptionHandler.HandleOnStartException(err)
	}
}

func (p *EventProcessor[T]) callOnShutdown() {
	shutdowner, ok := p.userHandler.(OnShutdowner)
	if !ok {
		return
	}
	if err := shutdowner.OnShutdown(); err != nil {
		p.exceptionHandler.HandleOnShutdownException(err)
	}
}

func (p *EventProcessor[T]) callOnTimeout(sequence int64) {
	timeouter, ok := p.userHandler.(OnTimeouter)
	if !ok {
		return
	}
	if err := timeouter.OnTimeout(sequence); err != nil {
		p.exceptionHandler.HandleOnTimeoutException(err, sequence)
	}
}
