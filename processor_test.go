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
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errTestHandlerFailure = errors.New("handler failure")

type recordingHandler struct {
	mu           sync.Mutex
	received     []int64
	startCount   int
	shutdownCnt  int
	timeoutCount int
	failOn       map[int64]bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{failOn: map[int64]bool{}}
}

func (h *recordingHandler) OnBatch(batch *BatchView[int], startSequence int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := int64(0); i < batch.Len(); i++ {
		seq := startSequence + i
		val := *batch.Get(i)
		h.received = append(h.received, int64(val))
		if h.failOn[seq] {
			return errTestHandlerFailure
		}
	}
	return nil
}

func (h *recordingHandler) OnStart() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startCount++
	return nil
}

func (h *recordingHandler) OnShutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownCnt++
	return nil
}

func (h *recordingHandler) OnTimeout(sequence int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeoutCount++
	return nil
}

func (h *recordingHandler) snapshot() (received []int64, starts, shutdowns, timeouts int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.received))
	copy(out, h.received)
	return out, h.startCount, h.shutdownCnt, h.timeoutCount
}

func TestEventProcessor_HaltBeforeStartIsNoOp(t *testing.T) {
	rb, err := NewSingleProducer(newIntFactory(), 8, NewBusySpinWaitStrategy())
	require.NoError(t, err)
	barrier := rb.NewBarrier()
	handler := newRecordingHandler()
	proc, err := NewBatchEventProcessor(rb, barrier, handler, NewLoggingExceptionHandler[int](nil))
	require.NoError(t, err)

	proc.Halt() // no-op: processor never started
	require.False(t, proc.IsRunning())

	task, err := proc.Start()
	require.NoError(t, err)
	proc.Halt()
	require.True(t, task.Wait(time.Second))
}

func TestEventProcessor_StartWhileRunningFails(t *testing.T) {
	rb, err := NewSingleProducer(newIntFactory(), 8, NewBusySpinWaitStrategy())
	require.NoError(t, err)
	barrier := rb.NewBarrier()
	handler := newRecordingHandler()
	proc, err := NewBatchEventProcessor(rb, barrier, handler, NewLoggingExceptionHandler[int](nil))
	require.NoError(t, err)

	task, err := proc.Start()
	require.NoError(t, err)
	_, err = proc.Start()
	require.ErrorIs(t, err, ErrAlreadyRunning)

	proc.Halt()
	require.True(t, task.Wait(time.Second))
}

func TestEventProcessor_StartHaltStressCycles(t *testing.T) {
	rb, err := NewSingleProducer(newIntFactory(), 8, NewBusySpinWaitStrategy())
	require.NoError(t, err)
	barrier := rb.NewBarrier()
	handler := newRecordingHandler()
	proc, err := NewBatchEventProcessor(rb, barrier, handler, NewLoggingExceptionHandler[int](nil))
	require.NoError(t, err)

	const cycles = 200
	for i := 0; i < cycles; i++ {
		task, err := proc.Start()
		require.NoError(t, err)
		proc.Halt()
		require.True(t, task.Wait(2*time.Second))
	}

	_, starts, shutdowns, _ := handler.snapshot()
	require.Equal(t, cycles, starts)
	require.Equal(t, cycles, shutdowns)
}

func TestEventProcessor_ArgumentValidation(t *testing.T) {
	rb, err := NewSingleProducer(newIntFactory(), 8, NewBusySpinWaitStrategy())
	require.NoError(t, err)
	barrier := rb.NewBarrier()

	_, err = NewBatchEventProcessor[int](rb, barrier, nil, NewLoggingExceptionHandler[int](nil))
	require.ErrorIs(t, err, ErrArgumentInvalid)

	_, err = NewBatchEventProcessor[int](rb, barrier, newRecordingHandler(), nil)
	require.ErrorIs(t, err, ErrArgumentInvalid)

	_, err = NewEventProcessor[int](rb, barrier, nil, NewLoggingExceptionHandler[int](nil))
	require.ErrorIs(t, err, ErrArgumentInvalid)
}

// reportingHandler advertises its progress through SetSequenceCallback
// instead of waiting for the processor's end-of-batch advance, and
// records the processor's sequence as read right after each callback.
type reportingHandler struct {
	mu       sync.Mutex
	callback func(int64)
	sequence *Sequence
	reported []int64
	observed []int64
}

func (h *reportingHandler) SetSequenceCallback(callback func(sequence int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = callback
}

func (h *reportingHandler) OnEvent(event *int, sequence int64, endOfBatch bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback(sequence)
	h.reported = append(h.reported, sequence)
	h.observed = append(h.observed, h.sequence.Value())
	return nil
}

func TestEventProcessor_SequenceCallbackAdvancesMidBatch(t *testing.T) {
	rb, err := NewSingleProducer(newIntFactory(), 8, NewBlockingWaitStrategy())
	require.NoError(t, err)
	barrier := rb.NewBarrier()
	handler := &reportingHandler{}
	proc, err := NewEventProcessor[int](rb, barrier, handler, NewLoggingExceptionHandler[int](nil))
	require.NoError(t, err)

	handler.mu.Lock()
	require.NotNil(t, handler.callback, "callback must be injected at construction")
	handler.sequence = proc.Sequence()
	handler.mu.Unlock()

	rb.AddGatingSequences(proc.Sequence())
	task, err := proc.Start()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		seq := rb.Next()
		*rb.Get(seq) = i
		rb.Publish(seq)
	}

	require.Eventually(t, func() bool {
		return proc.Sequence().Value() == 19
	}, 2*time.Second, time.Millisecond)

	proc.Halt()
	require.True(t, task.Wait(time.Second))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.reported, 20)
	for i := range handler.reported {
		require.Equal(t, int64(i), handler.reported[i])
		require.Equal(t, int64(i), handler.observed[i], "callback must advance the processor sequence before the batch ends")
	}
}
