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
	"os"
	"strings"

	"github.com/juju/errgo"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Load reads, schema-validates and decodes the declarative config file at
// path. On schema failure it returns an error satisfying IsInvalidConfig;
// the caller must refuse to start the loop.
func Load(path string) (*Root, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, maskAny(err)
	}

	// Decode once into a generic document for schema validation...
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, maskAny(err)
	}
	if err := validateSchema(generic); err != nil {
		return nil, err
	}

	// ...and again into the typed structure. Two passes keep the schema
	// validation (which needs a bare map) independent of the Go type's
	// yaml tags.
	var root Root
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, maskAny(err)
	}

	for name, svc := range root.Services {
		svc.Name = name
		// Exactly one scaling policy per elasticity block: a cross-field
		// rule the schema does not express.
		if e := svc.Elasticity; e != nil {
			policies := 0
			for _, set := range []bool{e.Steps != nil, e.Breakpoint != nil, e.Scale != nil} {
				if set {
					policies++
				}
			}
			if policies != 1 {
				return nil, maskAny(errgo.WithCausef(nil, InvalidConfigError, "service %s: exactly one of steps, breakpoint, scale is required", name))
			}
		}
		applyDefaults(svc)
	}

	return &root, nil
}

// validateSchema validates the generic (already yaml.Unmarshal'ed) document
// against schemaDocument. gojsonschema works in terms of JSON-compatible Go
// values, which is exactly what yaml.v3 produces for mappings and scalars.
func validateSchema(doc interface{}) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaDocument)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return maskAny(err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return maskAny(errgo.WithCausef(nil, InvalidConfigError, strings.Join(msgs, "; ")))
	}
	return nil
}

// applyDefaults fills in the defaults spec.md §4.2 names: min_servers
// defaults to 0, max_servers to unbounded, and a hold_conns service is
// forced to a zero static floor (it has no permanently-pinned worker).
func applyDefaults(svc *Service) {
	if svc.Elasticity == nil {
		return
	}
	if svc.HasHoldConns() {
		svc.Elasticity.MinServers = 0
	}
}
