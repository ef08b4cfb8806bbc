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

// Package process manages the HAProxy subprocess: starting it, reloading
// it in place with HAProxy's own graceful hand-off, and soft-stopping it
// on exit. The pidfile at PidPath is the single source of truth for
// whether HAProxy is running (spec.md §4.5, §5).
//
// Grounded on the teacher's restartHaproxy/validateConfig pair in the
// service package (exec.Command + CombinedOutput) and the original's
// haproxy_cmd.py, which drives the same `-f/-p/-D/-sf` flags and SIGUSR1
// soft-stop. No SysProcAttr death signal is set: HAProxy runs daemonized
// (-D) and is tracked only through its pidfile.
package process

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/op/go-logging"
	"golang.org/x/sys/unix"
)

var log = logging.MustGetLogger("haproxy/process")

// Manager starts, reloads and stops one HAProxy process identified by its
// pidfile.
type Manager struct {
	Binary   string
	ConfPath string
	PidPath  string
}

// NewManager creates a Manager for the haproxy binary at binary, serving
// confPath and tracked via the pidfile at pidPath.
func NewManager(binary, confPath, pidPath string) *Manager {
	return &Manager{Binary: binary, ConfPath: confPath, PidPath: pidPath}
}

// readPid reads the pid recorded in PidPath. It returns 0, nil if the
// pidfile does not exist.
func (m *Manager) readPid() (int, error) {
	raw, err := os.ReadFile(m.PidPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, maskAny(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, maskAny(err)
	}
	return pid, nil
}

// IsRunning reports whether the pid recorded in PidPath both exists and
// is alive, probed with a signal-0 kill (spec.md §4.5).
func (m *Manager) IsRunning() bool {
	pid, err := m.readPid()
	if err != nil || pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// Start launches a fresh HAProxy daemonized against ConfPath, writing its
// own pid to PidPath. Idempotent: if HAProxy is already running it does
// nothing.
func (m *Manager) Start() error {
	if m.IsRunning() {
		log.Debug("haproxy already running, start is a no-op")
		return nil
	}
	return m.launch(nil)
}

// Reload starts a new HAProxy worker with `-sf <oldpid>`: HAProxy's native
// graceful reload, where the new worker inherits the listening sockets
// and the old worker drains in place. If HAProxy is not currently
// running, Reload behaves like Start.
func (m *Manager) Reload() error {
	oldPid, err := m.readPid()
	if err != nil {
		return maskAny(err)
	}
	if oldPid <= 0 || unix.Kill(oldPid, 0) != nil {
		return m.launch(nil)
	}
	return m.launch([]string{"-sf", strconv.Itoa(oldPid)})
}

// launch validates ConfPath and execs haproxy -f ConfPath -p PidPath -D,
// plus any extra arguments (e.g. -sf <oldpid>).
func (m *Manager) launch(extra []string) error {
	if err := m.validateConfig(); err != nil {
		return maskAny(err)
	}

	args := append([]string{"-f", m.ConfPath, "-p", m.PidPath, "-D"}, extra...)
	log.Debug("starting haproxy with %v", args)
	cmd := exec.Command(m.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Error("failed to start haproxy: %#v", err)
		return maskAny(err)
	}
	return nil
}

// validateConfig calls `haproxy -c -f <conf>` to check the config before
// launching for real, so a bad config fails loudly instead of leaving no
// process behind.
func (m *Manager) validateConfig() error {
	cmd := exec.Command(m.Binary, "-c", "-f", m.ConfPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error("haproxy config validation failed: %s", string(output))
		return maskAny(err)
	}
	return nil
}

// Stop soft-stops the running HAProxy with SIGUSR1: it stops accepting
// new connections and exits once existing ones drain. A no-op, logged and
// ignored, if HAProxy is not running.
func (m *Manager) Stop() error {
	pid, err := m.readPid()
	if err != nil {
		return maskAny(err)
	}
	if pid <= 0 {
		log.Debug("haproxy not running, stop is a no-op")
		return nil
	}
	if err := unix.Kill(pid, unix.SIGUSR1); err != nil {
		if err == unix.ESRCH {
			log.Debug("haproxy pid %d already gone", pid)
			return nil
		}
		return maskAny(err)
	}
	return nil
}
