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
	"fmt"

	"github.com/pulcy/elastic-haproxy/haproxy"
)

// BuildModel constructs the initial haproxy.Config model from a loaded
// Root: global directives from root.HAProxy, then one listen block per
// service -- or, for a hold_conns service, the `_proxy` split mandated by
// spec.md §3: a static shim listen block on the user-facing port plus the
// real listen block one port up.
func BuildModel(root *Root, socketDir string) *haproxy.Config {
	model := haproxy.NewConfig(socketDir)
	for section, directives := range root.HAProxy {
		model.AddSection(section, directives...)
	}

	for _, svc := range root.Services {
		if svc.HasHoldConns() {
			buildHoldConnsBlocks(model, svc)
			continue
		}
		model.AddListenBlock(svc.Name, svc.HAProxy.Listen, svc.HAProxy.Port)
	}

	return model
}

// buildHoldConnsBlocks creates the `<name>_proxy` shim (bound to the
// user-facing port, one static server pointing at `<name>`) and the real
// `<name>` block (bound to the user-facing port + 1). The proxy's props
// are a copy of the base listen props plus `timeout server 1d`, per
// spec.md §4.1's aliasing note -- AddListenBlock itself also copies, so
// this is belt-and-braces against the two blocks ever sharing a backing
// array.
func buildHoldConnsBlocks(model *haproxy.Config, svc *Service) {
	proxyProps := append(append([]string{}, svc.HAProxy.Listen...), "timeout server 1d")
	realPort := svc.HAProxy.Port + 1

	model.AddListenBlock(svc.ProxyListenName(), proxyProps, svc.HAProxy.Port)
	model.AddServer(svc.ProxyListenName(), "static", fmt.Sprintf("127.0.0.1:%d", realPort), nil)

	model.AddListenBlock(svc.Name, svc.HAProxy.Listen, realPort)
}
