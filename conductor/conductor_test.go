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

package conductor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pulcy/elastic-haproxy/config"
	"github.com/pulcy/elastic-haproxy/haproxy/process"
	"github.com/pulcy/elastic-haproxy/scheduler"
	"github.com/pulcy/elastic-haproxy/watcher"
)

// fakeDiscoverer lets a watcher test run without shelling out to a real
// scheduler binary.
type fakeDiscoverer struct {
	result scheduler.Discovery
}

func (f *fakeDiscoverer) Discover(app string) (scheduler.Discovery, error) {
	return f.result, nil
}

func newTestConductor(t *testing.T, dir string, discovered scheduler.Discovery) (*Conductor, *config.Service) {
	svc := &config.Service{
		Name:      "web",
		Scheduler: config.SchedulerSpec{AppName: "web", Endpoint: "http"},
		HAProxy:   config.HAProxySpec{Port: 8080, Listen: []string{"mode http"}},
	}
	root := &config.Root{Services: map[string]*config.Service{"web": svc}}
	model := config.BuildModel(root, dir)

	confPath := filepath.Join(dir, "haproxy.cfg")
	pidPath := filepath.Join(dir, "haproxy.pid")

	c := &Conductor{
		paths:   Paths{HAProxyConfPath: confPath, SocketDir: dir},
		root:    root,
		model:   model,
		process: process.NewManager("/bin/true", confPath, pidPath),
		watchers: []*watcher.Watcher{
			watcher.NewWatcher(svc, model, &fakeDiscoverer{result: discovered}),
		},
	}
	return c, svc
}

func TestTickWritesConfigOnlyWhenDirty(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestConductor(t, dir, scheduler.Discovery{
		"0001": {"http": "10.0.0.1:9000"},
	})

	// process.Reload will try to exec /bin/true -c -f ... for validation,
	// which always succeeds, then exec /bin/true -f ... -D, also a no-op
	// success -- this exercises the reload path without a real haproxy.
	if err := c.Tick(); err != nil {
		t.Fatalf("unexpected error: %#v", err)
	}

	if !c.model.ServerExists("web", "0001") {
		t.Fatalf("expected watcher to have added discovered instance to the model")
	}

	data, err := os.ReadFile(filepath.Join(dir, "haproxy.cfg"))
	if err != nil {
		t.Fatalf("expected config file to be written: %#v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty rendered config")
	}

	// A second tick with unchanged discovery is not dirty and must not
	// rewrite the file.
	if err := os.Remove(filepath.Join(dir, "haproxy.cfg")); err != nil {
		t.Fatalf("failed to remove config file: %#v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("unexpected error on second tick: %#v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "haproxy.cfg")); !os.IsNotExist(err) {
		t.Fatalf("expected no config write on a clean tick, stat err: %#v", err)
	}
}

func TestTickIsIdempotentWhenNothingChanges(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestConductor(t, dir, scheduler.Discovery{})

	if err := c.Tick(); err != nil {
		t.Fatalf("unexpected error on first tick: %#v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("unexpected error on second tick: %#v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "haproxy.cfg")); !os.IsNotExist(err) {
		t.Fatalf("expected clean ticks to leave the config file unwritten, stat err: %#v", err)
	}
}

func TestShutdownStopsEveryService(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestConductor(t, dir, scheduler.Discovery{})
	c.sched = scheduler.NewClient("/bin/true")

	// Shutdown's haproxy stop finds no pidfile, so Stop is a no-op, and
	// scheduler stop-all shells out to /bin/true; this just exercises that
	// it does not panic or block.
	c.Shutdown()
}
