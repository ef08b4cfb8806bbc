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

// Package orchestrator is the elasticity engine: one Orchestrator per
// service, driving its Runtime through the three tick phases of
// spec.md §4.7 -- update target from metrics, the optional hold_conns
// gate, then drive the actual server count toward target.
//
// Grounded on the original's pool.py (Pool.adjust_servers/server_steps/
// breakpoint/hold_conns/check_health/check_pending), re-architected per
// spec.md §9 into a typed Runtime plus a tagged policy variant instead of
// the original's dict-shaped `service['elasticity']` and its
// string-keyed method dispatch.
package orchestrator

import (
	"sort"
	"time"

	"github.com/op/go-logging"

	"github.com/pulcy/elastic-haproxy/config"
	"github.com/pulcy/elastic-haproxy/haproxy/admin"
)

var log = logging.MustGetLogger("orchestrator")

// statsReader is the slice of the admin client this package depends on.
type statsReader interface {
	Metric(backend, name string) float64
	Servers(backend string) ([]admin.ServerStatus, error)
	SetMaxconn(frontend string, n int) error
}

// instanceStarter is the slice of the scheduler client this package
// depends on.
type instanceStarter interface {
	Start(app, manifest string) error
	Stop(app, instance string) error
}

// metricByMethod maps a service's configured method to the HAProxy stat
// column it reads, per spec.md §4.7.A.
var metricByMethod = map[config.MethodKind]string{
	config.MethodConnRate: "rate",
	config.MethodQueue:    "qtime",
	config.MethodResponse: "rtime",
}

// Orchestrator owns the elasticity Runtime for one service.
type Orchestrator struct {
	service *config.Service
	runtime *Runtime
	admin   statsReader
	sched   instanceStarter
}

// NewOrchestrator creates an Orchestrator for service. service.Elasticity
// must be non-nil.
func NewOrchestrator(service *config.Service, statsClient statsReader, sched instanceStarter) *Orchestrator {
	return &Orchestrator{
		service: service,
		runtime: newRuntime(service.Elasticity.MinServers),
		admin:   statsClient,
		sched:   sched,
	}
}

// ServiceName returns the name of the service this Orchestrator drives.
func (o *Orchestrator) ServiceName() string {
	return o.service.Name
}

// Target returns the current desired replica count.
func (o *Orchestrator) Target() int {
	return o.runtime.target
}

// Pending returns the current signed pending count: positive means
// starts in flight, negative means stops in flight.
func (o *Orchestrator) Pending() int {
	return o.runtime.pending
}

// Tick runs the three elasticity phases for this service once.
func (o *Orchestrator) Tick(now time.Time) error {
	o.updateTarget()
	if o.service.Elasticity.HoldConns != nil {
		o.holdConns(now)
	}
	return o.driveToTarget()
}

// updateTarget is phase A: recompute the demand window and apply the
// configured policy to the runtime's target (spec.md §4.7.A).
func (o *Orchestrator) updateTarget() {
	cfg := o.service.Elasticity
	metricName := metricByMethod[cfg.Method]
	current := int(o.admin.Metric(o.service.Name, metricName))

	var m int
	o.runtime.history, m = pushBounded(o.runtime.history, current)

	switch {
	case cfg.Steps != nil:
		o.runtime.target = o.runtime.minServers + stepsAbove(cfg.Steps, m)
	case cfg.Breakpoint != nil:
		b := *cfg.Breakpoint
		if current > b {
			o.runtime.target++
		}
		if m < b {
			o.runtime.target--
		}
	case cfg.Scale != nil:
		o.runtime.target = m/(*cfg.Scale) + o.runtime.minServers
	}

	// Supplemented from the original's adjust_servers: a connection
	// count that has been zero for the whole window means the service
	// is genuinely idle, and snaps straight to the floor instead of
	// waiting for the method's own down-step to walk there.
	connCurrent := int(o.admin.Metric(o.service.Name, "scur"))
	var connMax int
	o.runtime.connHistory, connMax = pushBounded(o.runtime.connHistory, connCurrent)
	if connMax == 0 {
		o.runtime.target = o.runtime.minServers
	}

	o.runtime.target = clamp(o.runtime.target, o.runtime.minServers, cfg.MaxServers)
}

// stepsAbove counts how many of the (not necessarily sorted) steps
// thresholds m exceeds, matching the ascending-ladder semantics of
// spec.md §4.7.A without mutating the caller's slice.
func stepsAbove(steps []int, m int) int {
	sorted := append([]int{}, steps...)
	sort.Ints(sorted)
	count := 0
	for _, s := range sorted {
		if m > s {
			count++
		}
	}
	return count
}

func clamp(target, min int, max *int) int {
	if target < min {
		target = min
	}
	if max != nil && target > *max {
		target = *max
	}
	return target
}

// holdConns is phase B, entered whenever the service has a hold_conns
// policy (spec.md §4.7.B). The cooldown only gates the min_servers/target
// bump-or-release step; the front-end maxconn gate below must run every
// tick regardless of cooldown, or the frontend never re-opens once a
// worker becomes healthy mid-cooldown.
func (o *Orchestrator) holdConns(now time.Time) {
	proxyName := o.service.ProxyListenName()

	if !now.Before(o.runtime.shutoffTime) {
		newConns := int(o.admin.Metric(proxyName, "scur"))

		if newConns > 0 {
			o.runtime.minServers++
			o.runtime.target++
			o.runtime.shutoffTime = now.Add(time.Duration(o.service.Elasticity.HoldConns.Cooldown) * time.Second)
		} else if o.runtime.target > 0 {
			o.runtime.minServers--
			o.runtime.target--
		}
	}

	servers, err := o.admin.Servers(o.service.Name)
	if err != nil {
		log.Warning("%s: could not read server statuses for hold_conns gate: %#v", o.service.Name, err)
		return
	}
	anyHealthy := false
	for _, s := range servers {
		if s.Status != admin.StatusDown {
			anyHealthy = true
			break
		}
	}
	maxconn := 2000
	if !anyHealthy {
		maxconn = 0
	}
	if err := o.admin.SetMaxconn(proxyName, maxconn); err != nil {
		log.Warning("%s: setmaxconn(%s, %d) failed: %#v", o.service.Name, proxyName, maxconn, err)
	}
}

// driveToTarget is phase C: reconcile pending against the delta in the
// healthy set since last tick, then dispatch enough starts/stops to walk
// the actual count toward target (spec.md §4.7.C).
func (o *Orchestrator) driveToTarget() error {
	servers, err := o.admin.Servers(o.service.Name)
	if err != nil {
		return maskAny(err)
	}

	prevDown := o.runtime.down

	healthy := make(map[string]bool, len(servers))
	down := make(map[string]bool)
	for _, s := range servers {
		if s.Status != admin.StatusDown {
			healthy[s.Name] = true
		} else {
			down[s.Name] = true
		}
	}
	o.runtime.down = down

	if !o.runtime.firstTick {
		o.runtime.pending -= len(healthy) - len(o.runtime.healthy)
	}
	o.runtime.firstTick = false
	o.runtime.healthy = healthy

	diff := o.runtime.target - len(healthy) - o.runtime.pending

	switch {
	case diff > 0:
		for i := 0; i < diff; i++ {
			if err := o.sched.Start(o.service.Scheduler.AppName, o.service.Scheduler.Manifest); err != nil {
				log.Warning("%s: start failed, will retry next tick: %#v", o.service.Name, err)
				continue
			}
			o.runtime.pending++
		}
	case diff < 0:
		toStop := -diff
		if toStop > len(healthy) {
			toStop = len(healthy)
		}
		// Prefer stopping instances that were already healthy last tick
		// over ones that just recovered from DOWN: stopping a server the
		// instant it flaps back up risks a redundant scheduler.Stop on an
		// instance that is about to flap down again on its own.
		var stable, recovered []string
		for id := range healthy {
			if prevDown[id] {
				recovered = append(recovered, id)
			} else {
				stable = append(stable, id)
			}
		}
		sort.Strings(stable)
		sort.Strings(recovered)
		instances := append(stable, recovered...)
		for i := 0; i < toStop; i++ {
			instance := instances[i]
			if err := o.sched.Stop(o.service.Scheduler.AppName, instance); err != nil {
				log.Warning("%s: stop %s failed, will retry next tick: %#v", o.service.Name, instance, err)
				continue
			}
			o.runtime.pending--
		}
	}

	return nil
}
