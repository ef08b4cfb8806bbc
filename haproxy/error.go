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
	"github.com/juju/errgo"
)

var (
	// UnknownServiceError is returned by operations on a service name
	// that has no listen block in the config model.
	UnknownServiceError = errgo.New("unknown service")
	// UnknownServerError is returned when an instance id has no server
	// entry in a service's listen block.
	UnknownServerError = errgo.New("unknown server")
	maskAny             = errgo.MaskFunc(errgo.Any)
)

// IsUnknownService returns true if err is (or wraps) UnknownServiceError.
func IsUnknownService(err error) bool {
	return errgo.Cause(err) == UnknownServiceError
}

// IsUnknownServer returns true if err is (or wraps) UnknownServerError.
func IsUnknownServer(err error) bool {
	return errgo.Cause(err) == UnknownServerError
}
