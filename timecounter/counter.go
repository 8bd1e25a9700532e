/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package timecounter maintains a wall clock on top of free-running
// hardware time counters. Drivers register counter descriptors, the best
// (finest resolution) source gets selected and enabled, and the Timekeeper
// folds elapsed counter ticks into a seconds+nanoseconds wall-clock value
// that the query functions read.
package timecounter

import (
	"sync/atomic"
	"time"
)

// NanosecondsPerSecond is how many nanoseconds there are in one second
const NanosecondsPerSecond = int64(time.Second)

// Cycle is a raw value read from a free-running counter.
// Only the low CounterBits of it are significant.
type Cycle uint64

// Counter is the contract every time counter driver implements.
// None of the methods may block: they are called from the timekeeping
// critical section.
type Counter interface {
	// Enable prepares the counter for counting. It is invoked on
	// registration (drivers may self-initialize here) and again when the
	// source is selected as active, so it must be safe to call twice.
	Enable() error
	// Disable is invoked when the source is superseded by a better one.
	Disable() error
	// Read returns the current raw counter value.
	Read() (Cycle, error)
	// Elapsed converts the distance between two raw samples to wall time.
	// This is the only place that knows the counter's wraparound modulus;
	// the result is correct as long as at most one wraparound happened
	// between the two samples.
	Elapsed(from, to Cycle) (time.Duration, error)
}

// Descriptor describes one registered time counter: the driver itself plus
// the metadata the selector and the accumulator need.
type Descriptor struct {
	Counter

	// Name identifies the counter in logs and diagnostics
	Name string
	// ResolutionNS is how many nanoseconds one tick represents, smaller is finer
	ResolutionNS uint64
	// FrequencyHz is the tick rate, the inverse of ResolutionNS
	FrequencyHz uint64
	// CounterBits is the number of significant bits before the counter wraps
	CounterBits uint
	// FixupPeriod is the longest interval between two Read calls that still
	// guarantees no more than one wraparound in between. The periodic
	// advancer must sample at least this often or elapsed time is silently
	// undercounted.
	FixupPeriod time.Duration

	// last raw sample, the baseline for the next elapsed computation.
	// Guarded by the Timekeeper mutex.
	latestRead Cycle

	enabled atomic.Bool
}

// Enabled reports whether the driver is currently counting.
// For diagnostics only.
func (d *Descriptor) Enabled() bool {
	return d.enabled.Load()
}

// CycleMask returns the mask covering the significant bits of a counter.
func CycleMask(bits uint) Cycle {
	if bits >= 64 {
		return ^Cycle(0)
	}
	return Cycle(1)<<bits - 1
}

// ElapsedCycles returns the number of ticks between two raw samples in
// unsigned modulo arithmetic of exactly `bits` bits, so that a wrap from
// near-max back to near-zero yields a small positive delta.
func ElapsedCycles(from, to Cycle, bits uint) Cycle {
	return (to - from) & CycleMask(bits)
}

// CyclesToDuration scales a tick count to wall time for a counter running
// at freqHz.
func CyclesToDuration(cycles Cycle, freqHz uint64) time.Duration {
	if freqHz == 0 {
		return 0
	}
	whole := uint64(cycles) / freqHz
	frac := uint64(cycles) % freqHz
	return time.Duration(whole)*time.Second + time.Duration(frac*uint64(time.Second)/freqHz)
}

// WrapPeriod returns how long a counter of the given width runs before
// wrapping around.
func WrapPeriod(bits uint, freqHz uint64) time.Duration {
	if bits == 0 || freqHz == 0 {
		return 0
	}
	return CyclesToDuration(CycleMask(bits), freqHz)
}

// DefaultFixupPeriod returns half the wraparound period, leaving the
// periodic advancer a full wrap of slack before ticks are lost.
// A 24-bit counter at 3.58MHz wraps every ~4.7s, so it has to be read
// at least every ~2.3s.
func DefaultFixupPeriod(bits uint, freqHz uint64) time.Duration {
	return WrapPeriod(bits, freqHz) / 2
}
