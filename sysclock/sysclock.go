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

// Package sysclock provides the baseline time counter backed by the host
// monotonic clock. It is always available, so registering it before source
// selection guarantees the timekeeper is never left without a source;
// any real driver with finer resolution supersedes it in the scan.
package sysclock

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cellos/time/timecounter"
)

const (
	// Name identifies the baseline counter in logs and diagnostics
	Name = "SYSCLK"
	// FrequencyHz is the synthetic tick rate the host clock is quantized to
	FrequencyHz = 1000000
	// ResolutionNS is one tick in nanoseconds
	ResolutionNS = 1000
	// CounterBits mimics a 32 bit free-running hardware counter, so the
	// wraparound path is exercised the same way it is for real devices
	CounterBits = 32
)

type counter struct{}

// New returns the baseline counter descriptor, ready to register
func New() *timecounter.Descriptor {
	return &timecounter.Descriptor{
		Counter:      &counter{},
		Name:         Name,
		ResolutionNS: ResolutionNS,
		FrequencyHz:  FrequencyHz,
		CounterBits:  CounterBits,
		FixupPeriod:  timecounter.DefaultFixupPeriod(CounterBits, FrequencyHz),
	}
}

func (c *counter) Enable() error {
	log.Debugf("%s: %d bit counter at %dHz, wraps every %v", Name, CounterBits, FrequencyHz,
		timecounter.WrapPeriod(CounterBits, FrequencyHz))
	return nil
}

func (c *counter) Disable() error {
	return nil
}

func (c *counter) Read() (timecounter.Cycle, error) {
	ns, err := monotonicNanos()
	if err != nil {
		return 0, err
	}
	ticks := timecounter.Cycle(uint64(ns) / ResolutionNS)
	return ticks & timecounter.CycleMask(CounterBits), nil
}

func (c *counter) Elapsed(from, to timecounter.Cycle) (time.Duration, error) {
	return timecounter.CyclesToDuration(timecounter.ElapsedCycles(from, to, CounterBits), FrequencyHz), nil
}
