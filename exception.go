// Copyright (c) 2025 Joshua Skootsky
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.
//
// Alternatively, you can license this code under a commercial license.
// Contact: joshua.skootsky@gmail.com

package disruptor

import "go.uber.org/zap"

// ExceptionHandler is the sink for handler-thrown failures. It isolates
// the event processor's run loop from user code: a run loop is
// infallible from the caller's perspective, and the only way handler
// failure surfaces is through this interface.
type ExceptionHandler[T any] interface {
	// HandleEventException handles a failure from a per-event handler.
	HandleEventException(err error, sequence int64, event *T)

	// HandleOnBatchException handles a failure from a batch handler.
	HandleOnBatchException(err error, sequence int64, batch *BatchView[T])

	// HandleOnTimeoutException handles a failure from OnTimeout.
	HandleOnTimeoutException(err error, sequence int64)

	// HandleOnStartException handles a failure from OnStart. Does not
	// abort the Idle-to-Running transition.
	HandleOnStartException(err error)

	// HandleOnShutdownException handles a failure from OnShutdown.
	// Does not abort the Running-to-Halted transition.
	HandleOnShutdownException(err error)
}

// LoggingExceptionHandler is the default ExceptionHandler: it logs and
// continues. NewLoggingExceptionHandler replaces a nil logger with
// zap.NewNop(). The zero value holds a nil logger, which its methods call
// without a check, so it is not usable.
type LoggingExceptionHandler[T any] struct {
	logger *zap.Logger
}

// NewLoggingExceptionHandler returns a LoggingExceptionHandler that logs
// through logger. A nil logger logs nowhere.
func NewLoggingExceptionHandler[T any](logger *zap.Logger) *LoggingExceptionHandler[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingExceptionHandler[T]{logger: logger}
}

func (h *LoggingExceptionHandler[T]) HandleEventException(err error, sequence int64, event *T) {
	h.logger.Error("event handler failed", zap.Error(err), zap.Int64("sequence", sequence))
}

func (h *LoggingExceptionHandler[T]) HandleOnBatchException(err error, sequence int64, batch *BatchView[T]) {
	length := int64(0)
	if batch != nil {
		length = batch.Len()
	}
	h.logger.Error("batch handler failed", zap.Error(err), zap.Int64("sequence", sequence), zap.Int64("batchLength", length))
}

func (h *LoggingExceptionHandler[T]) HandleOnTimeoutException(err error, sequence int64) {
	h.logger.Error("timeout handler failed", zap.Error(err), zap.Int64("sequence", sequence))
}

func (h *LoggingExceptionHandler[T]) HandleOnStartException(err error) {
	h.logger.Error("processor OnStart failed", zap.Error(err))
}

func (h *LoggingExceptionHandler[T]) HandleOnShutdownException(err error) {
	h.logger.Error("processor OnShutdown failed", zap.Error(err))
}
