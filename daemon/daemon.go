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

// Package daemon keeps the wall clock moving. The timecounter package only
// promises correct accounting if somebody samples the active counter at
// least once per its fixup period; this daemon is that somebody. It also
// seeds the clock at startup and serves monitoring endpoints so tools can
// query time and counter inventory.
package daemon

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/beevik/ntp"
	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cellos/time/sysclock"
	"github.com/cellos/time/timecounter"
)

// how many advance gap samples we keep for the aggregate stats
const gapHistory = 64

// Daemon periodically folds elapsed counter time into the wall clock and
// reports how timekeeping is doing
type Daemon struct {
	cfg   *Config
	stats StatsServer
	tk    *timecounter.Timekeeper
	clk   clock.Clock

	gapMu sync.Mutex
	gaps  []float64
	// worst advance gap seen, in nanoseconds
	maxGapNS int64
}

// New creates a new timekeeper daemon
func New(cfg *Config, stats StatsServer, clk clock.Clock) *Daemon {
	d := &Daemon{
		cfg:   cfg,
		stats: stats,
		tk:    timecounter.NewTimekeeper(),
		clk:   clk,
	}
	stats.SetCounter("advance_count", 0)
	stats.SetCounter("read_error", 0)
	stats.SetCounter("fixup_overrun", 0)
	stats.SetCounter("no_clock_source_error", 0)
	stats.SetCounter("wall_sec", 0)
	stats.SetCounter("wall_nsec", 0)
	stats.SetCounter("mono_ns", 0)
	stats.SetCounter("tick_interval_ns", 0)
	stats.SetCounter("advance_gap_ns.mean", 0)
	stats.SetCounter("advance_gap_ns.stddev", 0)
	stats.SetCounter("advance_gap_ns.max", 0)
	return d
}

// Timekeeper exposes the timekeeping context, e.g. so extra counter drivers
// can be registered before Run
func (d *Daemon) Timekeeper() *timecounter.Timekeeper {
	return d.tk
}

// Run initializes timekeeping (baseline counter, source selection, wall
// clock seed) and blocks, advancing the clock periodically and serving the
// monitoring endpoints, until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.tk.Init(sysclock.New()); err != nil {
		return err
	}
	epoch, err := d.seedEpoch()
	if err != nil {
		log.Warningf("seeding from NTP failed, falling back to system clock: %v", err)
		epoch = time.Now().Unix()
	}
	d.tk.Seed(epoch)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.serveMonitoring(ctx)
	})
	eg.Go(func() error {
		return d.runAdvancer(ctx)
	})
	return eg.Wait()
}

// seedEpoch produces the initial wall-clock seconds, the stand-in for the
// boot-time RTC read
func (d *Daemon) seedEpoch() (int64, error) {
	if d.cfg.NTPServer == "" {
		return time.Now().Unix(), nil
	}
	t, err := ntp.Time(d.cfg.NTPServer)
	if err != nil {
		return 0, err
	}
	log.Infof("wall clock seed from NTP server %s", d.cfg.NTPServer)
	return t.Unix(), nil
}

// tickInterval is how often we sample: the configured interval, but never
// more than half the active counter's fixup period, so a missed wraparound
// needs two consecutive lost ticks rather than one late one
func (d *Daemon) tickInterval() time.Duration {
	interval := d.cfg.Interval
	if active := d.tk.Active(); active != nil && active.FixupPeriod > 0 {
		if half := active.FixupPeriod / 2; interval == 0 || half < interval {
			interval = half
		}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return interval
}

func (d *Daemon) runAdvancer(ctx context.Context) error {
	interval := d.tickInterval()
	log.Infof("advancing wall clock every %v", interval)
	d.stats.SetCounter("tick_interval_ns", int64(interval))
	ticker := d.clk.NewTicker(interval)
	defer func() { ticker.Stop() }()
	last := d.clk.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			d.observeGap(now.Sub(last))
			last = now
			if err := d.tk.Advance(); err != nil {
				d.stats.UpdateCounterBy("no_clock_source_error", 1)
				log.Errorf("advancing wall clock: %v", err)
			}
			d.publishStats()
			// the active source may have changed resolution under us,
			// e.g. after a driver registered and re-ran selection
			if next := d.tickInterval(); next != interval {
				log.Infof("re-arming advance ticker: %v -> %v", interval, next)
				interval = next
				d.stats.SetCounter("tick_interval_ns", int64(interval))
				ticker.Stop()
				ticker = d.clk.NewTicker(interval)
			}
		}
	}
}

// observeGap records the real interval between two advances and flags the
// ones long enough to have possibly swallowed a counter wraparound
func (d *Daemon) observeGap(gap time.Duration) {
	active := d.tk.Active()
	if active != nil && active.FixupPeriod > 0 && gap > active.FixupPeriod {
		d.stats.UpdateCounterBy("fixup_overrun", 1)
		log.Warningf("%v between advances is over the %q fixup period %v, elapsed time may be undercounted",
			gap, active.Name, active.FixupPeriod)
	}
	d.gapMu.Lock()
	defer d.gapMu.Unlock()
	d.gaps = append(d.gaps, float64(gap))
	if len(d.gaps) > gapHistory {
		d.gaps = d.gaps[len(d.gaps)-gapHistory:]
	}
	if ns := int64(gap); ns > d.maxGapNS {
		d.maxGapNS = ns
	}
}

func (d *Daemon) publishStats() {
	wall := d.tk.Walltime()
	d.stats.SetCounter("wall_sec", wall.Sec)
	d.stats.SetCounter("wall_nsec", wall.Nsec)
	d.stats.SetCounter("mono_ns", wall.Nanoseconds())
	d.stats.SetCounter("advance_count", int64(d.tk.Advances()))
	d.stats.SetCounter("read_error", int64(d.tk.ReadFailures()))

	d.gapMu.Lock()
	gaps := make([]float64, len(d.gaps))
	copy(gaps, d.gaps)
	maxGap := d.maxGapNS
	d.gapMu.Unlock()
	if len(gaps) > 0 {
		d.stats.SetCounter("advance_gap_ns.mean", int64(mean(gaps)))
		d.stats.SetCounter("advance_gap_ns.stddev", int64(stddev(gaps)))
		d.stats.SetCounter("advance_gap_ns.max", maxGap)
	}
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}
