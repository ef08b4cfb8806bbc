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

// schemaDocument is the JSON Schema the declarative input is validated
// against before it is decoded into typed Service records. It mirrors the
// structure the original Python implementation validated with jsonschema,
// with `additionalProperties: false` everywhere so unknown fields are
// rejected rather than silently ignored.
const schemaDocument = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "haproxy": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string"}
      }
    },
    "services": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/service"}
    }
  },
  "definitions": {
    "service": {
      "type": "object",
      "additionalProperties": false,
      "required": ["treadmill", "haproxy"],
      "properties": {
        "treadmill": {
          "type": "object",
          "additionalProperties": false,
          "required": ["appname", "manifest", "endpoint"],
          "properties": {
            "appname": {"type": "string", "minLength": 1},
            "manifest": {"type": "string", "minLength": 1},
            "endpoint": {"type": "string", "minLength": 1}
          }
        },
        "haproxy": {
          "type": "object",
          "additionalProperties": false,
          "required": ["port"],
          "properties": {
            "listen": {"type": "array", "items": {"type": "string"}},
            "port": {"type": "integer", "minimum": 1, "maximum": 65535},
            "server": {"type": "array", "items": {"type": "string"}},
            "hold_conns": {"type": "boolean"}
          }
        },
        "elasticity": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "min_servers": {"type": "integer", "minimum": 0},
            "max_servers": {"type": ["integer", "null"], "minimum": 0},
            "method": {"type": "string", "enum": ["conn_rate", "queue", "response"]},
            "steps": {"type": "array", "items": {"type": "integer"}},
            "breakpoint": {"type": "integer"},
            "scale": {"type": "integer", "minimum": 1},
            "hold_conns": {
              "type": "object",
              "additionalProperties": false,
              "properties": {
                "cooldown": {"type": "integer", "minimum": 0}
              }
            }
          },
          "required": ["method"]
        }
      }
    }
  }
}`
