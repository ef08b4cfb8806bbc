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

package haproxy

import (
	"os"
	"strings"
	"testing"
)

type configTest struct {
	Build      func() *Config
	ResultPath string
}

var configTests = []configTest{
	{
		Build: func() *Config {
			return NewConfig("/var/run/haproxy")
		},
		ResultPath: "./testdata/empty.golden",
	},
	{
		Build: func() *Config {
			c := NewConfig("/var/run/haproxy")
			c.AddListenBlock("web", []string{"mode http", "balance roundrobin"}, 8080)
			c.AddServer("web", "i1", "10.0.0.1:9000", []string{"check"})
			c.AddServer("web", "i2", "10.0.0.2:9000", []string{"check", "weight 2"})
			return c
		},
		ResultPath: "./testdata/one_service.golden",
	},
	{
		Build: func() *Config {
			c := NewConfig("/var/run/haproxy")
			baseProps := []string{"mode http"}
			c.AddListenBlock("api", baseProps, 8081)
			c.AddServer("api", "i1", "10.0.0.1:9000", []string{"check"})

			proxyProps := append(append([]string{}, baseProps...), "timeout server 1d")
			c.AddListenBlock("api_proxy", proxyProps, 8080)
			c.AddServer("api_proxy", "static", "127.0.0.1:8081", nil)
			return c
		},
		ResultPath: "./testdata/proxy_split.golden",
	},
}

func TestConfigRender(t *testing.T) {
	updateFixtures := os.Getenv("UPDATE-FIXTURES") == "1"
	for _, test := range configTests {
		result := test.Build().Render()
		if updateFixtures {
			if err := os.WriteFile(test.ResultPath, []byte(result), 0644); err != nil {
				t.Errorf("Cannot update fixture %s: %#v", test.ResultPath, err)
			}
			continue
		}
		expectedRaw, err := os.ReadFile(test.ResultPath)
		if err != nil {
			t.Errorf("Cannot read fixture %s: %#v", test.ResultPath, err)
			continue
		}
		expected := strings.Split(string(expectedRaw), "\n")
		lines := strings.Split(result, "\n")
		for i, line := range lines {
			if i >= len(expected) {
				t.Errorf("%s: unexpected addition: `%s`", test.ResultPath, line)
				break
			} else if expected[i] != line {
				t.Errorf("%s: diff at line %d: expected `%s` got `%s`", test.ResultPath, i, expected[i], line)
				break
			}
		}
	}
}

func TestAddListenBlockCopiesProps(t *testing.T) {
	base := []string{"mode http"}
	c := NewConfig("/var/run/haproxy")
	c.AddListenBlock("a", base, 100)
	c.AddListenBlock("b", base, 200)

	if len(base) != 1 {
		t.Fatalf("caller's props slice was mutated: %v", base)
	}
	servers := c.services["a"].props
	if strings.Contains(strings.Join(servers, ","), "bind *:200") {
		t.Fatalf("service a aliases service b's bind directive: %v", servers)
	}
}

func TestServerLifecycle(t *testing.T) {
	c := NewConfig("/var/run/haproxy")
	if c.ServerExists("web", "i1") {
		t.Fatalf("server exists before listen block is created")
	}
	if err := c.AddServer("web", "i1", "10.0.0.1:9000", nil); !IsUnknownService(err) {
		t.Fatalf("expected UnknownServiceError, got %v", err)
	}

	c.AddListenBlock("web", nil, 8080)
	if err := c.AddServer("web", "i1", "10.0.0.1:9000", []string{"check"}); err != nil {
		t.Fatalf("AddServer failed: %v", err)
	}
	if !c.ServerExists("web", "i1") {
		t.Fatalf("server missing after AddServer")
	}

	servers := c.GetServers("web")
	if len(servers) != 1 || servers["i1"].Address != "10.0.0.1:9000" {
		t.Fatalf("unexpected snapshot: %#v", servers)
	}

	if err := c.DeleteServer("web", "i1"); err != nil {
		t.Fatalf("DeleteServer failed: %v", err)
	}
	if c.ServerExists("web", "i1") {
		t.Fatalf("server still exists after DeleteServer")
	}
	if err := c.DeleteServer("web", "i1"); !IsUnknownServer(err) {
		t.Fatalf("expected UnknownServerError, got %v", err)
	}
}

func TestWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/haproxy.cfg"

	c := NewConfig(dir)
	c.AddListenBlock("web", []string{"mode http"}, 8080)
	if err := c.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".haproxy-cfg-") {
			t.Fatalf("temp file %s leaked after Write", e.Name())
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) != c.Render() {
		t.Fatalf("written file does not match Render() output")
	}
}
