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
	"github.com/juju/errgo"
)

var (
	// InvalidConfigError is returned when the declarative input fails
	// schema validation or a cross-field check the schema cannot express.
	InvalidConfigError = errgo.New("invalid config")
	maskAny            = errgo.MaskFunc(errgo.Any)
)

// IsInvalidConfig returns true if the given error is (or wraps) InvalidConfigError.
func IsInvalidConfig(err error) bool {
	return errgo.Cause(err) == InvalidConfigError
}
