// Copyright (c) 2016 Pulcy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics is the control plane's own observability surface: a
// small set of prometheus collectors the conductor and orchestrators
// feed every tick, served over HTTP alongside a one-line status page.
//
// Adapted from the teacher's metrics/metrics.go (StartMetricsListener,
// setupMetricsRoutes, the macaron.Recovery/Renderer stack). The teacher
// exported HAProxy's own CSV stats through a scrape exporter; this
// control plane already owns an admin socket client (haproxy/admin), so
// instead it exposes metrics about *itself* -- tick duration, reload
// count, per-service pending -- dropping the teacher's
// github.com/pulcy/macaron-utils status-page helper, which has no
// equivalent outside Pulcy's internal module set (see DESIGN.md).
package metrics

import (
	"fmt"
	"net/http"

	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/macaron.v1"
)

var (
	// TickDuration records how long one full conductor tick takes.
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "elastic_haproxy",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one conductor tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// ReloadsTotal counts HAProxy reloads triggered by dirty watchers.
	ReloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "elastic_haproxy",
		Name:      "reloads_total",
		Help:      "Total number of HAProxy reloads performed.",
	})

	// PendingGauge tracks each service's current pending count (signed:
	// positive = starts in flight, negative = stops in flight).
	PendingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "elastic_haproxy",
		Name:      "pending",
		Help:      "Signed count of scheduler operations not yet reflected in HAProxy.",
	}, []string{"service"})

	// TargetGauge tracks each service's current desired replica count.
	TargetGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "elastic_haproxy",
		Name:      "target",
		Help:      "Desired replica count for a service.",
	}, []string{"service"})
)

func init() {
	prometheus.MustRegister(TickDuration, ReloadsTotal, PendingGauge, TargetGauge)
}

// Config describes the metrics/status HTTP listener.
type Config struct {
	ProjectName    string
	ProjectVersion string
	ProjectBuild   string

	Host string
	Port int
}

// StartListener serves /metrics and a status page on a background
// goroutine. A listener failure is logged, not fatal: the control loop
// runs regardless of whether anyone is scraping it.
func StartListener(cfg Config, log *logging.Logger) error {
	handler := setupRoutes(cfg)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	log.Info("Starting %s metrics (version %s build %s) on %s", cfg.ProjectName, cfg.ProjectVersion, cfg.ProjectBuild, addr)
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Error("metrics listener failed: %#v", err)
		}
	}()

	return nil
}

// setupRoutes builds the macaron mux: "/" for a one-line status string,
// "/metrics" for the prometheus exposition format.
func setupRoutes(cfg Config) http.Handler {
	m := macaron.New()
	m.Use(macaron.Recovery())

	m.SetAutoHead(true)
	m.Get("/", func(ctx *macaron.Context) {
		ctx.Write([]byte(fmt.Sprintf("%s %s (build %s)\n", cfg.ProjectName, cfg.ProjectVersion, cfg.ProjectBuild)))
	})
	m.Get("/metrics", func(ctx *macaron.Context) {
		promhttp.Handler().ServeHTTP(ctx.Resp, ctx.Req.Request)
	})

	return m
}
