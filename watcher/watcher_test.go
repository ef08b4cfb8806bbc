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

package watcher

import (
	"testing"

	"github.com/pulcy/elastic-haproxy/config"
	"github.com/pulcy/elastic-haproxy/haproxy"
	"github.com/pulcy/elastic-haproxy/scheduler"
)

type fakeDiscoverer struct {
	result scheduler.Discovery
}

func (f fakeDiscoverer) Discover(app string) (scheduler.Discovery, error) {
	return f.result, nil
}

func newTestService() *config.Service {
	return &config.Service{
		Name: "web",
		Scheduler: config.SchedulerSpec{
			AppName:  "web",
			Manifest: "web.yml",
			Endpoint: "http",
		},
		HAProxy: config.HAProxySpec{
			Port:   8080,
			Server: []string{"check"},
		},
	}
}

func TestTickAddsNewInstances(t *testing.T) {
	svc := newTestService()
	model := haproxy.NewConfig("/var/run/haproxy")
	model.AddListenBlock(svc.Name, nil, svc.HAProxy.Port)

	disc := fakeDiscoverer{result: scheduler.Discovery{
		"i1": {"http": "10.0.0.1:9000"},
	}}
	w := NewWatcher(svc, model, disc)

	dirty, err := w.Tick()
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if !dirty {
		t.Fatalf("expected dirty=true after adding a server")
	}
	if !model.ServerExists("web", "i1") {
		t.Fatalf("server i1 was not added")
	}
}

func TestTickSkipsInstanceMissingConfiguredEndpoint(t *testing.T) {
	svc := newTestService()
	model := haproxy.NewConfig("/var/run/haproxy")
	model.AddListenBlock(svc.Name, nil, svc.HAProxy.Port)

	disc := fakeDiscoverer{result: scheduler.Discovery{
		"i1": {"admin": "10.0.0.1:9999"}, // no "http" endpoint
	}}
	w := NewWatcher(svc, model, disc)

	dirty, err := w.Tick()
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dirty {
		t.Fatalf("expected dirty=false, instance has no eligible endpoint")
	}
	if model.ServerExists("web", "i1") {
		t.Fatalf("instance without the configured endpoint should not be added")
	}
}

func TestTickRemovesDisappearedInstances(t *testing.T) {
	svc := newTestService()
	model := haproxy.NewConfig("/var/run/haproxy")
	model.AddListenBlock(svc.Name, nil, svc.HAProxy.Port)
	model.AddServer("web", "stale", "10.0.0.9:9000", []string{"check"})

	disc := fakeDiscoverer{result: scheduler.Discovery{}}
	w := NewWatcher(svc, model, disc)

	dirty, err := w.Tick()
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if !dirty {
		t.Fatalf("expected dirty=true after removing a stale server")
	}
	if model.ServerExists("web", "stale") {
		t.Fatalf("stale server was not removed")
	}
}

func TestTickIdempotentWhenNothingChanges(t *testing.T) {
	svc := newTestService()
	model := haproxy.NewConfig("/var/run/haproxy")
	model.AddListenBlock(svc.Name, nil, svc.HAProxy.Port)
	model.AddServer("web", "i1", "10.0.0.1:9000", []string{"check"})

	disc := fakeDiscoverer{result: scheduler.Discovery{
		"i1": {"http": "10.0.0.1:9000"},
	}}
	w := NewWatcher(svc, model, disc)

	dirty, err := w.Tick()
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dirty {
		t.Fatalf("expected dirty=false when discovery matches the model exactly")
	}
}
