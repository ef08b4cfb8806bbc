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

// Package admin is a client for the HAProxy stats (admin) socket: "show
// stat" for backend/server metrics and "set maxconn frontend" for the
// hold_conns gate. Every call dials the unix socket fresh, writes one
// command, reads the response to EOF and closes -- that is how HAProxy's
// stats socket itself works: one command per connection.
//
// Grounded on the unix-dial/"show stat"/CSV-split pattern in
// other_examples' orbitcontrol containrunner-haproxy.go (GetHaproxyBackends,
// runHAProxyCommand) and the socket dial style of abgordon-Ravel's haproxy
// package, generalized to look columns up by the CSV header names HAProxy
// emits (spec.md §4.4 names the exact metrics: rate, qtime, rtime, scur).
package admin

import (
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("haproxy/admin")

const dialTimeout = 2 * time.Second

// StatusDown is the server status string HAProxy reports for a server
// that has failed its health check.
const StatusDown = "DOWN"

// ServerStatus is one server row under a backend in "show stat" output.
type ServerStatus struct {
	Name   string
	Status string
}

// Client attaches to a single HAProxy admin socket.
type Client struct {
	SocketPath string
}

// NewClient creates an admin Client for the socket at path.
func NewClient(path string) *Client {
	return &Client{SocketPath: path}
}

// statRow is one parsed data line of "show stat", keyed by column name.
type statRow map[string]string

// statTable groups rows by proxy name, then by server/frontend/backend name.
type statTable map[string]map[string]statRow

// command dials the socket, writes cmd terminated with a newline, and
// returns everything written back before HAProxy closes the connection.
func (c *Client) command(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.SocketPath, dialTimeout)
	if err != nil {
		return "", maskAny(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return "", maskAny(err)
	}

	var out strings.Builder
	if _, err := io.Copy(&out, conn); err != nil {
		return "", maskAny(err)
	}
	return out.String(), nil
}

// stats runs "show stat" and parses the CSV response into a statTable.
func (c *Client) stats() (statTable, error) {
	raw, err := c.command("show stat")
	if err != nil {
		return nil, maskAny(err)
	}

	lines := strings.Split(raw, "\n")
	table := statTable{}
	var columns []string

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			columns = strings.Split(strings.TrimPrefix(line, "# "), ",")
			continue
		}
		if columns == nil {
			continue // data before a header line should never happen
		}
		fields := strings.Split(line, ",")
		row := statRow{}
		for i, col := range columns {
			if i < len(fields) {
				row[col] = fields[i]
			}
		}
		pxname, svname := row["pxname"], row["svname"]
		if pxname == "" || svname == "" {
			continue
		}
		if _, ok := table[pxname]; !ok {
			table[pxname] = map[string]statRow{}
		}
		table[pxname][svname] = row
	}
	return table, nil
}

// Metric reads one named metric (e.g. "rate", "qtime", "rtime", "scur")
// off the BACKEND aggregate row of backend. Per spec.md §4.4, a socket
// read failure or a missing value is treated as 0 -- the history window
// absorbs the noise rather than the tick failing.
func (c *Client) Metric(backend, name string) float64 {
	table, err := c.stats()
	if err != nil {
		log.Warning("show stat failed, treating %s.%s as 0: %#v", backend, name, err)
		return 0
	}
	row, ok := table[backend]["BACKEND"]
	if !ok {
		return 0
	}
	value, err := strconv.ParseFloat(row[name], 64)
	if err != nil {
		return 0
	}
	return value
}

// Servers lists every server (excluding the FRONTEND/BACKEND aggregate
// rows) under backend, with its current status.
func (c *Client) Servers(backend string) ([]ServerStatus, error) {
	table, err := c.stats()
	if err != nil {
		return nil, maskAny(err)
	}
	var result []ServerStatus
	for svname, row := range table[backend] {
		if svname == "FRONTEND" || svname == "BACKEND" {
			continue
		}
		result = append(result, ServerStatus{Name: svname, Status: row["status"]})
	}
	return result, nil
}

// SetMaxconn sets the maxconn of frontend, gating how many connections
// HAProxy admits before queuing callers at the socket (spec.md §4.7.B).
func (c *Client) SetMaxconn(frontend string, n int) error {
	_, err := c.command("set maxconn frontend " + frontend + " " + strconv.Itoa(n))
	if err != nil {
		return maskAny(err)
	}
	return nil
}
