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

// Package config loads and validates the declarative input document and
// builds the typed Service records the rest of the control plane runs on.
package config

// Root is the top level declarative document.
type Root struct {
	HAProxy  map[string][]string `yaml:"haproxy"`
	Services map[string]*Service `yaml:"services"`
}

// SchedulerSpec identifies the application on the container platform that
// backs a Service, and which of its endpoints to bind into HAProxy.
type SchedulerSpec struct {
	AppName  string `yaml:"appname"`
	Manifest string `yaml:"manifest"`
	Endpoint string `yaml:"endpoint"`
}

// HAProxySpec carries the per-service HAProxy listen block properties.
type HAProxySpec struct {
	Listen   []string `yaml:"listen"`
	Port     int      `yaml:"port"`
	Server   []string `yaml:"server"`
	HoldConn bool     `yaml:"hold_conns"`
}

// MethodKind is a tagged selector for the elasticity policy a service uses
// to translate an HAProxy measurement into a desired replica count.
type MethodKind string

const (
	MethodConnRate MethodKind = "conn_rate"
	MethodQueue    MethodKind = "queue"
	MethodResponse MethodKind = "response"
)

// ElasticityConfig is the immutable, validated elasticity policy for one
// service. Exactly one of Steps, Breakpoint, Scale is populated, matching
// the method the original selects by field presence.
type ElasticityConfig struct {
	MinServers int         `yaml:"min_servers"`
	MaxServers *int        `yaml:"max_servers"`
	Method     MethodKind  `yaml:"method"`
	Steps      []int       `yaml:"steps,omitempty"`
	Breakpoint *int        `yaml:"breakpoint,omitempty"`
	Scale      *int        `yaml:"scale,omitempty"`
	HoldConns  *HoldConns  `yaml:"hold_conns,omitempty"`
}

// HoldConns is the optional connection-holding (scale-to-zero) policy.
type HoldConns struct {
	Cooldown int `yaml:"cooldown"`
}

// Service is a service's immutable identity as loaded from the declarative
// config: name, scheduler descriptor, haproxy descriptor, optional
// elasticity policy.
type Service struct {
	Name       string            `yaml:"-"`
	Scheduler  SchedulerSpec     `yaml:"treadmill"`
	HAProxy    HAProxySpec       `yaml:"haproxy"`
	Elasticity *ElasticityConfig `yaml:"elasticity,omitempty"`
}

// ProxyListenName is the name of the static shim listen block created for
// a hold_conns service: it owns the user-facing port and forwards to the
// real listen block one port up.
func (s *Service) ProxyListenName() string {
	return s.Name + "_proxy"
}

// HasHoldConns reports whether this service scales to zero and parks
// connections at a shim frontend while a worker warms up.
func (s *Service) HasHoldConns() bool {
	return s.HAProxy.HoldConn
}
