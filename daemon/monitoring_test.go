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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cellos/time/sysclock"
)

func TestHandleTimeBeforeInit(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	srv := httptest.NewServer(d.monitoringMux())
	defer srv.Close()

	// no clock source yet: unavailable, not a crash, not garbage time
	resp, err := http.Get(srv.URL + "/time")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	_, err = FetchTime(srv.URL)
	require.Error(t, err)
}

func TestHandleTime(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	require.NoError(t, d.Timekeeper().Init(sysclock.New()))
	d.Timekeeper().Seed(1700000000)
	srv := httptest.NewServer(d.monitoringMux())
	defer srv.Close()

	reply, err := FetchTime(srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), reply.Sec)
	require.GreaterOrEqual(t, reply.Nsec, int64(0))
	require.Less(t, reply.Nsec, int64(1000000000))
	require.Equal(t, reply.Nsec/1000, reply.Usec)
	require.Equal(t, reply.Sec*1000000000+reply.Nsec, reply.MonoNS)
}

func TestHandleSources(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	require.NoError(t, d.Timekeeper().Registry().Add(slowDescriptor(time.Second)))
	require.NoError(t, d.Timekeeper().Init(sysclock.New()))
	srv := httptest.NewServer(d.monitoringMux())
	defer srv.Close()

	sources, err := FetchSources(srv.URL)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "SLOW", sources[0].Name)
	require.True(t, sources[0].Active)
	require.True(t, sources[0].Enabled)
	require.Equal(t, sysclock.Name, sources[1].Name)
	require.False(t, sources[1].Active)
	require.False(t, sources[1].Enabled)
}

func TestHandleCounters(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	d.stats.SetCounter("advance_count", 42)
	srv := httptest.NewServer(d.monitoringMux())
	defer srv.Close()

	counters, err := FetchCounters(srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(42), counters["advance_count"])
}

func TestMetricsEndpoint(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	d.stats.SetCounter("advance_gap_ns.mean", 7)
	srv := httptest.NewServer(d.monitoringMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
