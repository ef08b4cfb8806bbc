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

package main

import (
	"github.com/mitchellh/go-homedir"
)

const (
	projectName = "elastic-haproxy"
)

const (
	defaultConfigPathTmpl  = "~/.elastic-haproxy/services.yaml"
	defaultHAProxyConfPath = "/data/config/haproxy.cfg"
	defaultHAProxyBinary   = "haproxy"
	defaultSchedulerBinary = "treadmill"

	// defaultSocketDir is spec.md §6's documented --socket default: the
	// admin socket and the pidfile both live under it.
	defaultSocketDir = "/run/haproxy/"
)

const (
	defaultMetricsHost = "0.0.0.0"
	defaultMetricsPort = 8055
)

// defaultLoopTime is the fixed conductor tick period mandated by spec.md
// §4.8's LOOP_TIME.
const defaultLoopTime = 7

// defaultConfigPath expands to a per-user default so a development run
// with no --config flag finds a sensible location; production deploys
// override it with an /etc path.
func defaultConfigPath() string {
	result, err := homedir.Expand(defaultConfigPathTmpl)
	if err != nil {
		Exitf("Cannot expand config path: %#v", err)
	}
	return result
}
