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

package process

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestIsRunningFalseWithoutPidfile(t *testing.T) {
	m := NewManager("haproxy", "/dev/null", filepath.Join(t.TempDir(), "haproxy.pid"))
	if m.IsRunning() {
		t.Fatalf("expected false with no pidfile")
	}
}

func TestIsRunningTrueForCurrentProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "haproxy.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatalf("failed to write pidfile: %v", err)
	}
	m := NewManager("haproxy", "/dev/null", pidPath)
	if !m.IsRunning() {
		t.Fatalf("expected true for this process's own pid")
	}
}

func TestIsRunningFalseForStalePid(t *testing.T) {
	// pid 999999 is never a valid process id on any real system.
	pidPath := filepath.Join(t.TempDir(), "haproxy.pid")
	if err := os.WriteFile(pidPath, []byte("999999"), 0644); err != nil {
		t.Fatalf("failed to write pidfile: %v", err)
	}
	m := NewManager("haproxy", "/dev/null", pidPath)
	if m.IsRunning() {
		t.Fatalf("expected false for a stale pid")
	}
}

func TestStopIsNoOpWithoutPidfile(t *testing.T) {
	m := NewManager("haproxy", "/dev/null", filepath.Join(t.TempDir(), "haproxy.pid"))
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop should be a no-op without a pidfile, got %v", err)
	}
}
