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

// Package haproxy holds the in-memory model of an haproxy.cfg file: an
// ordered set of top-level sections (global, defaults, ...) plus one listen
// block per service, and the atomic writer that serializes it to disk.
//
// Adapted from the Config/Section pair in the teacher's haproxy package,
// generalized with per-service listen blocks and a server map per
// spec.md §4.1 (the teacher's Config only ever held flat option lists; it
// never modeled servers, since robin rebuilds its whole config from backend
// registrations on every change instead of reconciling a live server set).
package haproxy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	statsSocketMode  = "600"
	statsSocketLevel = "admin"
	statsTimeout     = "2m"
)

// Server is one `server` line inside a service's listen block.
type Server struct {
	InstanceID string
	Address    string
	Properties string // space-joined, as written to the config file
}

// listenBlock is the mutable per-service section: an ordered property list
// (the bind directive is appended to it, never to the caller's slice) and a
// map of instance id to Server.
type listenBlock struct {
	props   []string
	servers map[string]*Server
}

// Config is the whole in-memory haproxy.cfg model.
type Config struct {
	sectionOrder []string
	sections     map[string][]string
	services     map[string]*listenBlock
}

// NewConfig creates an empty model with `global` seeded with the admin
// stats socket so the admin client in haproxy/admin can attach, per
// spec.md §4.1 / §6.
func NewConfig(socketDir string) *Config {
	c := &Config{
		sectionOrder: []string{},
		sections:     make(map[string][]string),
		services:     make(map[string]*listenBlock),
	}
	c.ensureSection("global")
	c.ensureSection("defaults")
	c.AddGlobal(fmt.Sprintf("stats socket %s mode %s level %s",
		filepath.Join(socketDir, "admin.sock"), statsSocketMode, statsSocketLevel))
	c.AddGlobal(fmt.Sprintf("stats timeout %s", statsTimeout))
	return c
}

func (c *Config) ensureSection(name string) {
	if _, ok := c.sections[name]; !ok {
		c.sectionOrder = append(c.sectionOrder, name)
		c.sections[name] = []string{}
	}
}

// AddSection appends directive lines to a top-level section (global,
// defaults, or any other header), creating it in insertion order if it
// doesn't exist yet.
func (c *Config) AddSection(name string, directives ...string) {
	c.ensureSection(name)
	c.sections[name] = append(c.sections[name], directives...)
}

// AddGlobal is a convenience for AddSection("global", ...).
func (c *Config) AddGlobal(directives ...string) {
	c.AddSection("global", directives...)
}

// AddListenBlock creates a new `listen <name>` block bound to port, with a
// copy of props plus a trailing `bind *:<port>` directive. props is copied
// so that callers building a `_proxy` variant from a shared base list never
// alias and mutate each other's slice -- the aliasing bug the original
// Python loader has when it forgets to .copy() (spec.md §9).
func (c *Config) AddListenBlock(name string, props []string, port int) {
	block := &listenBlock{
		props:   append(append([]string{}, props...), fmt.Sprintf("bind *:%d", port)),
		servers: make(map[string]*Server),
	}
	c.services[name] = block
}

// RemoveListenBlock deletes a service's listen block entirely.
func (c *Config) RemoveListenBlock(name string) {
	delete(c.services, name)
}

// HasListenBlock reports whether a listen block for name exists.
func (c *Config) HasListenBlock(name string) bool {
	_, ok := c.services[name]
	return ok
}

// AddServer adds or replaces a server entry in service's listen block.
// props is space-joined into the stored Properties string, matching the
// line-exact serialized form in spec.md §4.1.
func (c *Config) AddServer(service, instance, address string, props []string) error {
	block, ok := c.services[service]
	if !ok {
		return maskAny(UnknownServiceError)
	}
	block.servers[instance] = &Server{
		InstanceID: instance,
		Address:    address,
		Properties: strings.Join(props, " "),
	}
	return nil
}

// DeleteServer removes instance from service's listen block.
func (c *Config) DeleteServer(service, instance string) error {
	block, ok := c.services[service]
	if !ok {
		return maskAny(UnknownServiceError)
	}
	if _, ok := block.servers[instance]; !ok {
		return maskAny(UnknownServerError)
	}
	delete(block.servers, instance)
	return nil
}

// ServerExists reports whether instance is present in service's listen
// block. A service with no listen block never has any servers.
func (c *Config) ServerExists(service, instance string) bool {
	block, ok := c.services[service]
	if !ok {
		return false
	}
	_, ok = block.servers[instance]
	return ok
}

// GetServers returns a snapshot copy of service's servers, keyed by
// instance id. Mutating the result never affects the model.
func (c *Config) GetServers(service string) map[string]Server {
	block, ok := c.services[service]
	if !ok {
		return map[string]Server{}
	}
	result := make(map[string]Server, len(block.servers))
	for id, s := range block.servers {
		result[id] = *s
	}
	return result
}

// Render serializes the whole model to its line-exact text form.
func (c *Config) Render() string {
	var b strings.Builder
	for _, name := range c.sectionOrder {
		b.WriteString(name)
		b.WriteString("\n")
		for _, directive := range c.sections[name] {
			b.WriteString("\t")
			b.WriteString(directive)
			b.WriteString("\n")
		}
	}

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		block := c.services[name]
		b.WriteString("listen ")
		b.WriteString(name)
		b.WriteString("\n")
		for _, directive := range block.props {
			b.WriteString("\t")
			b.WriteString(directive)
			b.WriteString("\n")
		}

		instances := make([]string, 0, len(block.servers))
		for id := range block.servers {
			instances = append(instances, id)
		}
		sort.Strings(instances)
		for _, id := range instances {
			s := block.servers[id]
			b.WriteString("\tserver ")
			b.WriteString(s.InstanceID)
			b.WriteString(" ")
			b.WriteString(s.Address)
			if s.Properties != "" {
				b.WriteString(" ")
				b.WriteString(s.Properties)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Write atomically replaces path with the rendered model: write to a
// sibling temp file, fsync, rename over the target. Readers (haproxy at
// reload time) always see either the old or the new file, never a partial
// one; failure leaves the prior file untouched (spec.md §4.1, §7).
func (c *Config) Write(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".haproxy-cfg-*")
	if err != nil {
		return maskAny(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.WriteString(c.Render()); err != nil {
		tmp.Close()
		return maskAny(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return maskAny(err)
	}
	if err := tmp.Close(); err != nil {
		return maskAny(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return maskAny(err)
	}
	return nil
}
