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

package timecounter

import (
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// ErrNoClockSource means no counter is active yet, so time is unavailable.
// Typically a boot-time-only condition: queries made before Init.
var ErrNoClockSource = errors.New("no active clock source")

// Timekeeper owns the registry, the active source and the wall-clock value.
// The read-sample-accumulate sequence runs as one critical section under a
// single mutex, so concurrent callers can never observe the same baseline
// sample and double-count (or lose) elapsed time.
type Timekeeper struct {
	reg *Registry

	mu     sync.Mutex
	active *Descriptor
	wall   Timespec

	advances     atomic.Uint64
	readFailures atomic.Uint64
}

// NewTimekeeper returns a Timekeeper with an empty registry and no active
// source. Queries fail with ErrNoClockSource until Init (or SelectActive)
// picks a source and Seed sets the epoch.
func NewTimekeeper() *Timekeeper {
	return &Timekeeper{reg: NewRegistry()}
}

// Registry exposes the counter registry so drivers can register themselves
func (t *Timekeeper) Registry() *Registry {
	return t.reg
}

// Init registers the baseline descriptor (the always-available low
// resolution source that guarantees selection never comes up empty) and
// runs source selection once. Drivers registered before Init take part in
// the scan and win if they offer finer resolution than the baseline.
func (t *Timekeeper) Init(baseline *Descriptor) error {
	if baseline != nil {
		if err := t.reg.Add(baseline); err != nil && !errors.Is(err, ErrDuplicateSource) {
			return err
		}
	}
	_, err := t.SelectActive()
	return err
}

// SelectActive scans the registry and activates the descriptor with the
// smallest ResolutionNS, first registered winning ties. Every other enabled
// counter is disabled so exactly one source is counting afterwards, and the
// chosen counter gets a fresh baseline sample so time accumulated under the
// previous source is not attributed to it. Returns ErrEmptyRegistry if
// there is nothing to choose from, which at boot is fatal for the caller.
func (t *Timekeeper) SelectActive() (*Descriptor, error) {
	members := t.reg.List()
	if len(members) == 0 {
		return nil, ErrEmptyRegistry
	}
	best := members[0]
	for _, d := range members[1:] {
		if d.ResolutionNS < best.ResolutionNS {
			best = d
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev := t.active; prev != nil && prev != best && prev.enabled.Load() {
		if err := prev.Counter.Disable(); err != nil {
			log.Warningf("disabling time counter %q: %v", prev.Name, err)
		}
		prev.enabled.Store(false)
	}
	for _, d := range members {
		if d == best || !d.enabled.Load() {
			continue
		}
		if err := d.Counter.Disable(); err != nil {
			log.Warningf("disabling time counter %q: %v", d.Name, err)
		}
		d.enabled.Store(false)
	}
	if err := best.Counter.Enable(); err != nil {
		log.Warningf("enabling time counter %q: %v", best.Name, err)
	} else {
		best.enabled.Store(true)
	}
	if c, err := best.Counter.Read(); err != nil {
		log.Warningf("priming time counter %q: %v", best.Name, err)
	} else {
		best.latestRead = c
	}
	t.active = best
	log.Infof("active time counter is %q: resolution %dns, fixup period %v",
		best.Name, best.ResolutionNS, best.FixupPeriod)
	return best, nil
}

// Active returns the currently active descriptor, nil before selection
func (t *Timekeeper) Active() *Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Seed sets the wall clock to whole epoch seconds, normally once at startup
// from an RTC or NTP read. Monotonicity of the query functions only holds
// after the last Seed call.
func (t *Timekeeper) Seed(epochSeconds int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wall = Timespec{Sec: epochSeconds}
	log.Infof("wall clock seeded to epoch %d", epochSeconds)
}

// Advance samples the active counter and folds the elapsed time since the
// previous sample into the wall clock. It must run at least once per the
// active counter's FixupPeriod: if called less often, ticks beyond one
// wraparound are silently lost. A failing driver read leaves the wall clock
// untouched and is not an error; timekeeping degrades, it never faults.
func (t *Timekeeper) Advance() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advance()
}

// advance is the accumulator critical section, t.mu must be held
func (t *Timekeeper) advance() error {
	d := t.active
	if d == nil {
		return ErrNoClockSource
	}
	t.advances.Add(1)
	last := d.latestRead
	now, err := d.Counter.Read()
	if err != nil {
		t.readFailures.Add(1)
		log.Warningf("reading time counter %q: %v", d.Name, err)
		return nil
	}
	d.latestRead = now
	elapsed, err := d.Counter.Elapsed(last, now)
	if err != nil {
		t.readFailures.Add(1)
		log.Warningf("elapsed time on counter %q: %v", d.Name, err)
		return nil
	}
	t.wall.AddNanos(int64(elapsed))
	return nil
}

// Now advances the wall clock and returns it with nanosecond resolution
func (t *Timekeeper) Now() (Timespec, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advance(); err != nil {
		return Timespec{}, err
	}
	return t.wall, nil
}

// NowTimeval advances the wall clock and returns it as whole seconds plus
// truncated microseconds, the gettimeofday shape
func (t *Timekeeper) NowTimeval() (sec int64, usec int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advance(); err != nil {
		return 0, 0, err
	}
	return t.wall.Sec, t.wall.Microseconds(), nil
}

// MonotonicNanos advances the wall clock and returns it as a single
// nanosecond count, meant for elapsed-duration measurements rather than
// display. It only decreases if the clock is re-seeded.
func (t *Timekeeper) MonotonicNanos() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advance(); err != nil {
		return 0, err
	}
	return t.wall.Nanoseconds(), nil
}

// Walltime returns the current wall-clock value without sampling the
// counter. For diagnostic printing; the value is as stale as the last
// Advance.
func (t *Timekeeper) Walltime() Timespec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wall
}

// Advances returns how many times the accumulator ran
func (t *Timekeeper) Advances() uint64 {
	return t.advances.Load()
}

// ReadFailures returns how many driver read or elapsed calls failed
func (t *Timekeeper) ReadFailures() uint64 {
	return t.readFailures.Load()
}
