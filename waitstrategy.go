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
	"sync"
	"time"
)

// TimeoutSignal is the sentinel value a WaitStrategy returns instead of
// an available sequence when a configured timeout elapses with no
// progress. It is never a valid sequence (sequences start at 0).
const TimeoutSignal int64 = -1 << 62

// WaitStrategy is a policy object describing how a consumer blocks or
// spins until a dependency sequence advances past a point of interest.
// Implementations trade latency against CPU burn.
type WaitStrategy interface {
	// WaitFor blocks until dependents.Value() >= sequence, the
	// barrier is alerted (returns ErrAlerted), or (for timing
	// strategies) a configured duration elapses (returns
	// TimeoutSignal, nil). Implementations must re-read dependents
	// after every wakeup and check the barrier's alert state at least
	// once per iteration.
	WaitFor(sequence int64, dependents *DependentSequenceGroup, barrier SequenceBarrier) (int64, error)

	// SignalAllWhenBlocking wakes any goroutine parked inside WaitFor.
	// Called by a sequencer after every Publish/PublishRange.
	SignalAllWhenBlocking()
}

// BusySpinWaitStrategy spins tightly on dependents.Value with no
// signaling and no yielding. Lowest latency; burns a full core and
// should only be used with one processor pinned per dedicated core.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy returns a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy { return &BusySpinWaitStrategy{} }

func (w *BusySpinWaitStrategy) WaitFor(sequence int64, dependents *DependentSequenceGroup, barrier SequenceBarrier) (int64, error) {
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if available := dependents.Value(); available >= sequence {
			return available, nil
		}
	}
}

func (w *BusySpinWaitStrategy) SignalAllWhenBlocking() {}

// YieldingWaitStrategy spins for a fixed number of iterations, then
// yields the goroutine to the Go scheduler each iteration thereafter.
// A balanced default: near-busy-spin latency without permanently
// starving other goroutines on the same core.
type YieldingWaitStrategy struct {
	spinTries int
}

// NewYieldingWaitStrategy returns a YieldingWaitStrategy that spins
// spinTries times before yielding. spinTries <= 0 defaults to 100.
func NewYieldingWaitStrategy(spinTries int) *YieldingWaitStrategy {
	if spinTries <= 0 {
		spinTries = 100
	}
	return &YieldingWaitStrategy{spinTries: spinTries}
}

func (w *YieldingWaitStrategy) WaitFor(sequence int64, dependents *DependentSequenceGroup, barrier SequenceBarrier) (int64, error) {
	counter := w.spinTries
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if available := dependents.Value(); available >= sequence {
			return available, nil
		}
		if counter > 0 {
			counter--
		} else {
			runtime.Gosched()
		}
	}
}

func (w *YieldingWaitStrategy) SignalAllWhenBlocking() {}

// SleepingWaitStrategy spins, then yields, then sleeps with exponential
// backoff up to a configured cap. Trades latency for very low idle CPU
// cost; suited to consumers that are idle most of the time.
type SleepingWaitStrategy struct {
	spinTries  int
	yieldTries int
	minSleep   time.Duration
	maxSleep   time.Duration
}

// NewSleepingWaitStrategy returns a SleepingWaitStrategy. Non-positive
// arguments fall back to defaults: 100 spins, 100 yields, 1us minimum
// sleep doubling up to 1ms.
func NewSleepingWaitStrategy(spinTries, yieldTries int, minSleep, maxSleep time.Duration) *SleepingWaitStrategy {
	if spinTries <= 0 {
		spinTries = 100
	}
	if yieldTries <= 0 {
		yieldTries = 100
	}
	if minSleep <= 0 {
		minSleep = time.Microsecond
	}
	if maxSleep <= 0 {
		maxSleep = time.Millisecond
	}
	return &SleepingWaitStrategy{spinTries: spinTries, yieldTries: yieldTries, minSleep: minSleep, maxSleep: maxSleep}
}

func (w *SleepingWaitStrategy) WaitFor(sequence int64, dependents *DependentSequenceGroup, barrier SequenceBarrier) (int64, error) {
	spinsLeft := w.spinTries
	yieldsLeft := w.yieldTries
	sleepFor := w.minSleep
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if available := dependents.Value(); available >= sequence {
			return available, nil
		}
		switch {
		case spinsLeft > 0:
			spinsLeft--
		case yieldsLeft > 0:
			yieldsLeft--
			runtime.Gosched()
		default:
			time.Sleep(sleepFor)
			if sleepFor < w.maxSleep {
				sleepFor *= 2
				if sleepFor > w.maxSleep {
					sleepFor = w.maxSleep
				}
			}
		}
	}
}

func (w *SleepingWaitStrategy) SignalAllWhenBlocking() {}

// BlockingWaitStrategy parks the consumer on a condition variable while
// the producer cursor trails the expected sequence, and wakes on
// SignalAllWhenBlocking. Once the cursor has reached it, a consumer gated
// on upstream processors yields and re-polls them, since their progress
// is not signalled. Highest throughput-per-idle-watt of the
// strategies here; pays a syscall-class wakeup latency under bursty
// load.
type BlockingWaitStrategy struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlockingWaitStrategy returns a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	w := &BlockingWaitStrategy{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *BlockingWaitStrategy) WaitFor(sequence int64, dependents *DependentSequenceGroup, barrier SequenceBarrier) (int64, error) {
	if available := dependents.Value(); available >= sequence {
		return available, nil
	}
	w.mu.Lock()
	for {
		if err := barrier.CheckAlert(); err != nil {
			w.mu.Unlock()
			return 0, err
		}
		if available := dependents.Value(); available >= sequence {
			w.mu.Unlock()
			return available, nil
		}
		if dependents.cursor.Value() < sequence {
			w.cond.Wait()
			continue
		}
		// The producer cursor is already past sequence and only upstream
		// processors trail; their progress is never signalled, so yield
		// and re-poll instead of parking.
		w.mu.Unlock()
		runtime.Gosched()
		w.mu.Lock()
	}
}

func (w *BlockingWaitStrategy) SignalAllWhenBlocking() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// TimeoutBlockingWaitStrategy behaves like BlockingWaitStrategy but
// returns (TimeoutSignal, nil) if timeout elapses with no progress,
// letting idle-aware consumers translate that into an OnTimeout call
// instead of blocking forever.
type TimeoutBlockingWaitStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	timeout time.Duration
}

// NewTimeoutBlockingWaitStrategy returns a TimeoutBlockingWaitStrategy
// with the given per-wait timeout.
func NewTimeoutBlockingWaitStrategy(timeout time.Duration) *TimeoutBlockingWaitStrategy {
	w := &TimeoutBlockingWaitStrategy{timeout: timeout}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *TimeoutBlockingWaitStrategy) WaitFor(sequence int64, dependents *DependentSequenceGroup, barrier SequenceBarrier) (int64, error) {
	if available := dependents.Value(); available >= sequence {
		return available, nil
	}

	deadline := time.Now().Add(w.timeout)
	timer := time.AfterFunc(w.timeout, w.SignalAllWhenBlocking)
	defer timer.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if available := dependents.Value(); available >= sequence {
			return available, nil
		}
		if !time.Now().Before(deadline) {
			return TimeoutSignal, nil
		}
		if dependents.cursor.Value() < sequence {
			w.cond.Wait()
			continue
		}
		w.mu.Unlock()
		runtime.Gosched()
		w.mu.Lock()
	}
}

func (w *TimeoutBlockingWaitStrategy) SignalAllWhenBlocking() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}
