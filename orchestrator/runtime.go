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

package orchestrator

import "time"

// historyCapacity bounds every sliding window this package keeps. The
// original Python used a 15-entry deque (HISTORY_QUEUE); this spec's
// invariant |history| <= 10 supersedes it.
const historyCapacity = 10

// Runtime is the mutable elasticity state for one service, owned
// exclusively by its Orchestrator. It is the typed replacement for the
// original's dict-shaped `service['elasticity']` (history, conn_history,
// pending_servers, curr_servers, down_servers all lived in one mapping
// there).
type Runtime struct {
	// minServers is a mutable working copy of the config's min_servers:
	// hold_conns pins and releases it at runtime, so it cannot live on
	// the immutable config.ElasticityConfig.
	minServers int
	target     int
	pending    int

	history     []int
	connHistory []int

	// healthy is the last-observed set of non-DOWN server instance ids.
	// nil and firstTick==true together mean "never observed" -- distinct
	// from an observed-but-empty set (spec.md §3, §9).
	healthy   map[string]bool
	firstTick bool

	// down mirrors the original's down_servers staging list: instances
	// observed DOWN as of the previous tick. Phase C consults it to
	// deprioritize stopping an instance that just flapped from DOWN back
	// to healthy -- diff<0 selection only ever picks from the current
	// healthy set, so this never affects the pending/target arithmetic,
	// only which healthy instance is chosen first.
	down map[string]bool

	shutoffTime time.Time
}

// newRuntime seeds a Runtime at its config's static floor, per spec.md §3:
// target starts at min_servers, pending at 0, healthy undefined.
func newRuntime(minServers int) *Runtime {
	return &Runtime{
		minServers: minServers,
		target:     minServers,
		firstTick:  true,
	}
}

// pushBounded appends v to history (or connHistory) with FIFO eviction
// once historyCapacity is exceeded, and returns the window's maximum.
func pushBounded(history []int, v int) ([]int, int) {
	history = append(history, v)
	if len(history) > historyCapacity {
		history = history[len(history)-historyCapacity:]
	}
	max := history[0]
	for _, h := range history[1:] {
		if h > max {
			max = h
		}
	}
	return history, max
}
