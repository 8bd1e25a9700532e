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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/cellos/time/timecounter"
)

// TimeReply is the current wall clock in every resolution we serve
type TimeReply struct {
	Sec    int64 `json:"sec"`
	Nsec   int64 `json:"nsec"`
	Usec   int64 `json:"usec"`
	MonoNS int64 `json:"mono_ns"`
}

// SourceReply describes one registered counter for diagnostics
type SourceReply struct {
	Name          string `json:"name"`
	ResolutionNS  uint64 `json:"resolution_ns"`
	FrequencyHz   uint64 `json:"frequency_hz"`
	CounterBits   uint   `json:"counter_bits"`
	FixupPeriodNS int64  `json:"fixup_period_ns"`
	Enabled       bool   `json:"enabled"`
	Active        bool   `json:"active"`
}

func (d *Daemon) monitoringMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleCounters)
	mux.HandleFunc("/time", d.handleTime)
	mux.HandleFunc("/sources", d.handleSources)
	mux.Handle("/metrics", newPrometheusExporter(d.stats).handler())
	return mux
}

func (d *Daemon) serveMonitoring(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", d.cfg.MonitoringPort)
	srv := &http.Server{Addr: addr, Handler: d.monitoringMux()}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Errorf("shutting down monitoring server: %v", err)
		}
	}()
	log.Infof("starting monitoring server on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (d *Daemon) handleCounters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, d.stats.Get())
}

func (d *Daemon) handleTime(w http.ResponseWriter, _ *http.Request) {
	now, err := d.tk.Now()
	if errors.Is(err, timecounter.ErrNoClockSource) {
		// time is unavailable, not broken: typically queried before init
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, &TimeReply{
		Sec:    now.Sec,
		Nsec:   now.Nsec,
		Usec:   now.Microseconds(),
		MonoNS: now.Nanoseconds(),
	})
}

func (d *Daemon) handleSources(w http.ResponseWriter, _ *http.Request) {
	active := d.tk.Active()
	sources := []SourceReply{}
	for _, desc := range d.tk.Registry().List() {
		sources = append(sources, SourceReply{
			Name:          desc.Name,
			ResolutionNS:  desc.ResolutionNS,
			FrequencyHz:   desc.FrequencyHz,
			CounterBits:   desc.CounterBits,
			FixupPeriodNS: int64(desc.FixupPeriod),
			Enabled:       desc.Enabled(),
			Active:        desc == active,
		})
	}
	writeJSON(w, sources)
}

func writeJSON(w http.ResponseWriter, v any) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("failed to reply: %v", err)
	}
}
