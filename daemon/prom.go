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
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// prometheusExporter republishes the daemon counters as prometheus gauges
type prometheusExporter struct {
	registry *prometheus.Registry
	stats    StatsServer
}

func newPrometheusExporter(stats StatsServer) *prometheusExporter {
	return &prometheusExporter{registry: prometheus.NewRegistry(), stats: stats}
}

// handler scrapes the counters into gauges before serving every request
func (e *prometheusExporter) handler() http.Handler {
	promHandler := promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.scrapeMetrics()
		promHandler.ServeHTTP(w, r)
	})
}

func (e *prometheusExporter) scrapeMetrics() {
	for mkey, mval := range e.stats.Get() {
		promCollector := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: flattenKey(mkey),
			Help: mkey,
		})
		if err := e.registry.Register(promCollector); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				promCollector = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("failed to register metric %s %v", mkey, err)
				continue
			}
		}
		promCollector.Set(float64(mval))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
