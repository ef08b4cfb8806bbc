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

// Package scheduler is a thin shell over the platform's command-line tool.
// Every operation is a fresh subprocess; nothing here retains state between
// calls, so a transient CLI failure costs nothing more than one tick's
// worth of staleness (spec.md §4.3, §7).
//
// Grounded on the original's treadmill_api.py (subprocess.Popen/call around
// the `treadmill` binary) and the teacher's exec.Command/CombinedOutput
// idiom in service/restart_linux.go.
package scheduler

import (
	"os/exec"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("scheduler")

// Discovery maps an instance id to its endpoint name/address pairs, e.g.
// Discovery["0000000123"]["http"] == "10.0.1.4:8080".
type Discovery map[string]map[string]string

// Client shells out to the platform's CLI binary.
type Client struct {
	// Binary is the path to the scheduler CLI, e.g. "treadmill".
	Binary string
}

// NewClient creates a Client that invokes binary for every operation.
func NewClient(binary string) *Client {
	return &Client{Binary: binary}
}

// Start submits app for scheduling from manifest. It is fire-and-forget:
// the call returns once the submission itself succeeds or fails: the
// instance id is assigned by the platform and only appears later via
// Discover. A non-zero exit is returned as an error; the caller treats it
// as a transient failure and retries next tick.
func (c *Client) Start(app, manifest string) error {
	cmd := exec.Command(c.Binary, "run", "--manifest", manifest, app)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Warning("scheduler start %s failed: %#v: %s", app, err, string(output))
		return maskAny(err)
	}
	return nil
}

// Stop deletes a single instance of app.
func (c *Client) Stop(app, instance string) error {
	cmd := exec.Command(c.Binary, "stop", "--all", app+"#"+instance)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Warning("scheduler stop %s#%s failed: %#v: %s", app, instance, err, string(output))
		return maskAny(err)
	}
	return nil
}

// StopAll deletes every running instance of app. Used by the conductor on
// shutdown to release instances it owns (spec.md §4.8).
func (c *Client) StopAll(app string) error {
	cmd := exec.Command(c.Binary, "stop", "--all", app)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Warning("scheduler stop-all %s failed: %#v: %s", app, err, string(output))
		return maskAny(err)
	}
	return nil
}

// Discover lists the running instances of app and the endpoints each
// exposes. Empty output is a normal "nothing running" result, not an
// error. A non-zero exit is a transient failure: it returns an empty
// Discovery and a nil error so the watcher treats this tick as "no
// change" and the next tick retries (spec.md §4.3, §7).
func (c *Client) Discover(app string) (Discovery, error) {
	cmd := exec.Command(c.Binary, "discovery", app)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Debug("scheduler discovery %s failed (treated as transient): %#v: %s", app, err, string(output))
		return Discovery{}, nil
	}
	return parseDiscovery(string(output)), nil
}

// parseDiscovery parses lines of the form `app#instance:endpoint host:port`
// into a Discovery mapping. Malformed lines are skipped.
func parseDiscovery(output string) Discovery {
	result := Discovery{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		key, address := fields[0], fields[1]

		hashIdx := strings.Index(key, "#")
		colonIdx := strings.LastIndex(key, ":")
		if hashIdx < 0 || colonIdx < 0 || colonIdx < hashIdx {
			continue
		}
		instance := key[hashIdx+1 : colonIdx]
		endpoint := key[colonIdx+1:]

		if _, ok := result[instance]; !ok {
			result[instance] = map[string]string{}
		}
		result[instance][endpoint] = address
	}
	return result
}
