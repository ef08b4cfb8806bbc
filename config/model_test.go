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

package config

import (
	"strings"
	"testing"
)

func TestBuildModelPlainService(t *testing.T) {
	root := &Root{
		Services: map[string]*Service{
			"web": {
				Name:    "web",
				HAProxy: HAProxySpec{Port: 8080, Listen: []string{"mode http"}},
			},
		},
	}
	model := BuildModel(root, "/var/run/haproxy")
	if !model.HasListenBlock("web") {
		t.Fatalf("expected a listen block for web")
	}
	if model.HasListenBlock("web_proxy") {
		t.Fatalf("plain service should not get a _proxy split")
	}
}

func TestBuildModelHoldConnsSplit(t *testing.T) {
	root := &Root{
		Services: map[string]*Service{
			"api": {
				Name: "api",
				HAProxy: HAProxySpec{
					Port:     8080,
					Listen:   []string{"mode http"},
					HoldConn: true,
				},
			},
		},
	}
	model := BuildModel(root, "/var/run/haproxy")
	if !model.HasListenBlock("api_proxy") {
		t.Fatalf("expected a proxy shim listen block")
	}
	if !model.HasListenBlock("api") {
		t.Fatalf("expected the real listen block")
	}
	if !model.ServerExists("api_proxy", "static") {
		t.Fatalf("expected a static server in the proxy shim pointing at the real block")
	}
}

func TestBuildModelCarriesGlobalDirectives(t *testing.T) {
	root := &Root{
		HAProxy:  map[string][]string{"defaults": {"timeout connect 5s"}},
		Services: map[string]*Service{},
	}
	model := BuildModel(root, "/var/run/haproxy")
	rendered := model.Render()
	if !strings.Contains(rendered, "timeout connect 5s") {
		t.Fatalf("expected carried defaults directive in rendered config:\n%s", rendered)
	}
}
