// Copyright (c) 2025 Joshua Skootsky
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.
//
// Alternatively, you can license this code under a commercial license.
// Contact: joshua.skootsky@gmail.com

package disruptor

import "github.com/pkg/errors"

// Sentinel errors: the only errors that ever cross this package's API
// boundary. Handler failures never propagate this way; they are routed
// to an ExceptionHandler instead (see exception.go).
var (
	// ErrCapacityFull is returned by TryNext/TryNextN when claiming
	// would wrap past the slowest gating sequence.
	ErrCapacityFull = errors.New("disruptor: insufficient capacity to claim sequence")

	// ErrArgumentInvalid is returned by constructors given a buffer
	// size that isn't a power of two, a nil factory, or a nil
	// exception handler.
	ErrArgumentInvalid = errors.New("disruptor: invalid argument")

	// ErrAlreadyRunning is returned by EventProcessor.Start when the
	// processor is already Running.
	ErrAlreadyRunning = errors.New("disruptor: processor already running")

	// ErrAlerted is the internal sentinel a SequenceBarrier surfaces
	// from WaitFor once Alert has been called; it is caught at the
	// processor's run-loop boundary and never otherwise surfaces.
	ErrAlerted = errors.New("disruptor: barrier alerted")
)

func errArgumentInvalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrArgumentInvalid, format, args...)
}
