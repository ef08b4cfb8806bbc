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

// Package watcher reconciles one service's discovered instances into the
// shared HAProxy config model. It never writes the config file or reloads
// HAProxy itself -- that is the conductor's job, so that several
// services' membership changes batch into one reload (spec.md §4.6,
// §4.8).
//
// Grounded on the original's watcher.py (discover_servers/confirm_server/
// loop), generalized so a missing endpoint or discovery projection
// produces "not yet eligible" rather than the original's ad hoc `!=
// 'ssh'` filter.
package watcher

import (
	"github.com/pulcy/elastic-haproxy/config"
	"github.com/pulcy/elastic-haproxy/haproxy"
	"github.com/pulcy/elastic-haproxy/scheduler"
)

// discoverer is the slice of scheduler.Client this package depends on,
// narrowed so tests can substitute a fake without shelling out.
type discoverer interface {
	Discover(app string) (scheduler.Discovery, error)
}

// Watcher reconciles the servers of one service's listen block against
// what the scheduler currently reports as running.
type Watcher struct {
	service   *config.Service
	model     *haproxy.Config
	scheduler discoverer
}

// NewWatcher creates a Watcher for service, mutating model and calling
// sched.Discover to learn what is running.
func NewWatcher(service *config.Service, model *haproxy.Config, sched discoverer) *Watcher {
	return &Watcher{service: service, model: model, scheduler: sched}
}

// Tick runs one reconciliation pass and reports whether the config model
// changed (spec.md §4.6):
//  1. discover instances, projecting to {instance -> address} via the
//     configured endpoint name; instances missing that endpoint are not
//     yet eligible and are skipped.
//  2. add any discovered instance missing from the model.
//  3. delete any modeled instance no longer discovered.
func (w *Watcher) Tick() (bool, error) {
	discovered, err := w.scheduler.Discover(w.service.Scheduler.AppName)
	if err != nil {
		return false, maskAny(err)
	}

	endpoint := w.service.Scheduler.Endpoint
	addresses := make(map[string]string, len(discovered))
	for instance, endpoints := range discovered {
		if addr, ok := endpoints[endpoint]; ok {
			addresses[instance] = addr
		}
	}

	dirty := false
	for instance, address := range addresses {
		if w.model.ServerExists(w.service.Name, instance) {
			continue
		}
		if err := w.model.AddServer(w.service.Name, instance, address, w.service.HAProxy.Server); err != nil {
			return dirty, maskAny(err)
		}
		dirty = true
	}

	for instance := range w.model.GetServers(w.service.Name) {
		if _, ok := addresses[instance]; ok {
			continue
		}
		if err := w.model.DeleteServer(w.service.Name, instance); err != nil {
			return dirty, maskAny(err)
		}
		dirty = true
	}

	return dirty, nil
}
