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

// Package conductor wires every other package into the single
// cooperative tick loop spec.md §4.8 mandates: watchers first, a reload
// if and only if a watcher left the model dirty, orchestrators last.
// Nothing here is re-entrant; one tick always finishes before the next
// one starts.
//
// Grounded on the teacher's service.Service (Run/listenSignals/close/
// exitProcess for the signal-driven shutdown, restartHaproxy/
// validateConfig for the reload sequencing it generalizes into
// haproxy/process.Manager), generalized from one hardcoded backend to
// the declarative multi-service config this spec describes.
package conductor

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/pulcy/elastic-haproxy/config"
	"github.com/pulcy/elastic-haproxy/haproxy"
	"github.com/pulcy/elastic-haproxy/haproxy/admin"
	"github.com/pulcy/elastic-haproxy/haproxy/process"
	"github.com/pulcy/elastic-haproxy/metrics"
	"github.com/pulcy/elastic-haproxy/orchestrator"
	"github.com/pulcy/elastic-haproxy/scheduler"
	"github.com/pulcy/elastic-haproxy/watcher"
)

var log = logging.MustGetLogger("conductor")

// osExitDelay mirrors the teacher's grace period: a second SIGINT/SIGTERM
// forces an immediate exit, but the first one waits this long before
// owned resources are released. Signals are handled between ticks, so no
// tick is in flight by then.
const osExitDelay = 3 * time.Second

// Paths collects every filesystem/binary location the conductor needs to
// wire its dependencies together (spec.md §6).
type Paths struct {
	ConfigPath      string
	HAProxyConfPath string
	HAProxyBinary   string
	HAProxyPidPath  string
	SocketDir       string
	SchedulerBinary string
}

// Conductor owns the loaded config, the shared HAProxy config model and
// admin client, and one watcher/orchestrator pair per elastic service.
type Conductor struct {
	paths   Paths
	root    *config.Root
	model   *haproxy.Config
	process *process.Manager
	admin   *admin.Client
	sched   *scheduler.Client

	watchers      []*watcher.Watcher
	orchestrators []*orchestrator.Orchestrator

	signalCounter uint32
}

// New loads and validates the declarative config, builds and writes the
// initial HAProxy config model, and starts or reloads HAProxy so it is
// serving before the tick loop begins.
func New(paths Paths) (*Conductor, error) {
	root, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, maskAny(err)
	}

	model := config.BuildModel(root, paths.SocketDir)
	if err := model.Write(paths.HAProxyConfPath); err != nil {
		return nil, maskAny(err)
	}

	procManager := process.NewManager(paths.HAProxyBinary, paths.HAProxyConfPath, paths.HAProxyPidPath)
	if procManager.IsRunning() {
		if err := procManager.Reload(); err != nil {
			return nil, maskAny(err)
		}
	} else {
		if err := procManager.Start(); err != nil {
			return nil, maskAny(err)
		}
	}

	adminClient := admin.NewClient(filepath.Join(paths.SocketDir, "admin.sock"))
	schedClient := scheduler.NewClient(paths.SchedulerBinary)

	c := &Conductor{
		paths:   paths,
		root:    root,
		model:   model,
		process: procManager,
		admin:   adminClient,
		sched:   schedClient,
	}

	for _, svc := range root.Services {
		c.watchers = append(c.watchers, watcher.NewWatcher(svc, model, schedClient))
		if svc.Elasticity != nil {
			c.orchestrators = append(c.orchestrators, orchestrator.NewOrchestrator(svc, adminClient, schedClient))
		}
	}

	return c, nil
}

// Tick runs one full pass: every watcher reconciles membership, a single
// dirty-triggered rewrite+reload follows, then every orchestrator drives
// its service's replica count. This ordering is load-bearing (spec.md
// §4.8): reconciling membership before reloading keeps the config model
// and the live HAProxy process in sync before elasticity decisions read
// server health off the admin socket.
func (c *Conductor) Tick() error {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	dirty := false
	for _, w := range c.watchers {
		changed, err := w.Tick()
		if err != nil {
			log.Error("watcher tick failed: %#v", err)
			continue
		}
		if changed {
			dirty = true
		}
	}

	if dirty {
		if err := c.model.Write(c.paths.HAProxyConfPath); err != nil {
			return maskAny(err)
		}
		if err := c.process.Reload(); err != nil {
			return maskAny(err)
		}
		metrics.ReloadsTotal.Inc()
	}

	for _, o := range c.orchestrators {
		if err := o.Tick(start); err != nil {
			log.Error("%s: orchestrator tick failed: %#v", o.ServiceName(), err)
			continue
		}
		metrics.TargetGauge.WithLabelValues(o.ServiceName()).Set(float64(o.Target()))
		metrics.PendingGauge.WithLabelValues(o.ServiceName()).Set(float64(o.Pending()))
	}

	return nil
}

// Run ticks every period until a SIGINT or SIGTERM requests shutdown,
// then calls Shutdown.
func (c *Conductor) Run(period time.Duration) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Tick(); err != nil {
				log.Error("tick failed: %#v", err)
			}
		case s := <-sig:
			log.Info("received signal %s", s)
			done := make(chan struct{})
			go func() {
				c.close()
				close(done)
			}()
			select {
			case s := <-sig:
				log.Info("received signal %s", s)
				c.close()
			case <-done:
			}
			return
		}
	}
}

// close mirrors the teacher's grace-then-force shutdown: the first
// signal waits osExitDelay before releasing owned resources; a second
// signal exits immediately.
func (c *Conductor) close() {
	if atomic.AddUint32(&c.signalCounter, 1) >= 2 {
		c.Shutdown()
		os.Exit(0)
	}

	log.Info("shutting down in %s", osExitDelay)
	time.Sleep(osExitDelay)
	c.Shutdown()
}

// Shutdown soft-stops HAProxy and releases every scheduled instance this
// conductor owns, per spec.md §4.8's generalized shutoff().
func (c *Conductor) Shutdown() {
	if err := c.process.Stop(); err != nil {
		log.Error("failed to stop haproxy: %#v", err)
	}
	for _, svc := range c.root.Services {
		if err := c.sched.StopAll(svc.Scheduler.AppName); err != nil {
			log.Error("%s: failed to stop all instances: %#v", svc.Name, err)
		}
	}
}
