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

package daemon

import (
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/require"

	"github.com/cellos/time/sysclock"
	"github.com/cellos/time/timecounter"
)

func newTestDaemon(t *testing.T, cfg *Config) (*Daemon, *fakeclock.FakeClock) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{Interval: 50 * time.Millisecond, MonitoringPort: DefaultMonitoringPort}
	}
	fc := fakeclock.NewFakeClock(time.Now())
	return New(cfg, NewStats(), fc), fc
}

// slowDescriptor is a counter with an artificially short fixup period,
// fine enough to win selection over the baseline
func slowDescriptor(fixup time.Duration) *timecounter.Descriptor {
	d := sysclock.New()
	d.Name = "SLOW"
	d.ResolutionNS = 100
	d.FixupPeriod = fixup
	return d
}

func TestTickInterval(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	// no active source yet: the configured interval stands
	require.Equal(t, 50*time.Millisecond, d.tickInterval())

	require.NoError(t, d.Timekeeper().Init(sysclock.New()))
	// sysclock's fixup period is ~36min, the configured interval is tighter
	require.Equal(t, 50*time.Millisecond, d.tickInterval())

	// a short fixup period overrides a lazier configured interval
	require.NoError(t, d.Timekeeper().Registry().Add(slowDescriptor(20*time.Millisecond)))
	_, err := d.Timekeeper().SelectActive()
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, d.tickInterval())
}

func TestTickIntervalDefault(t *testing.T) {
	d, _ := newTestDaemon(t, &Config{MonitoringPort: DefaultMonitoringPort})
	// nothing configured, nothing active: fall back to a second
	require.Equal(t, time.Second, d.tickInterval())
}

func TestObserveGapOverrun(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	require.NoError(t, d.Timekeeper().Init(slowDescriptor(10*time.Millisecond)))

	d.observeGap(5 * time.Millisecond)
	require.Equal(t, int64(0), d.stats.Get()["fixup_overrun"])

	// a gap longer than the fixup period may have swallowed a wraparound
	d.observeGap(20 * time.Millisecond)
	require.Equal(t, int64(1), d.stats.Get()["fixup_overrun"])

	d.publishStats()
	got := d.stats.Get()
	require.Equal(t, int64(20*time.Millisecond), got["advance_gap_ns.max"])
	require.Equal(t, int64(12500000), got["advance_gap_ns.mean"])
}

func TestRunAdvancer(t *testing.T) {
	d, fc := newTestDaemon(t, nil)
	require.NoError(t, d.Timekeeper().Init(sysclock.New()))
	d.Timekeeper().Seed(1700000000)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.runAdvancer(ctx)
	}()

	// wait for the advancer to arm its ticker, then drive it
	require.Eventually(t, func() bool { return fc.WatcherCount() > 0 }, time.Second, time.Millisecond)
	for i := 0; i < 3; i++ {
		fc.WaitForWatcherAndIncrement(50 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		return d.stats.Get()["advance_count"] >= 3
	}, time.Second, time.Millisecond)

	got := d.stats.Get()
	require.Equal(t, int64(1700000000), got["wall_sec"])
	require.Equal(t, int64(50*time.Millisecond), got["tick_interval_ns"])
	require.Equal(t, int64(0), got["read_error"])

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestSeedEpochSystemClock(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	before := time.Now().Unix()
	epoch, err := d.seedEpoch()
	require.NoError(t, err)
	require.GreaterOrEqual(t, epoch, before)
	require.LessOrEqual(t, epoch, time.Now().Unix()+1)
}

func TestSeedEpochBadNTPServer(t *testing.T) {
	cfg := &Config{MonitoringPort: DefaultMonitoringPort, NTPServer: "ntp.invalid"}
	d, _ := newTestDaemon(t, cfg)
	_, err := d.seedEpoch()
	require.Error(t, err)
}
