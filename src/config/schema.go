package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "sources": {"type": "array", "items": {"type": "string"}},
    "fileExtensions": {
      "type": "object",
      "propertyNames": {"enum": ["js", "css", "html", "json", "asset"]},
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "workflows": {
      "type": "object",
      "propertyNames": {"enum": ["js", "css", "html", "json", "asset"]},
      "additionalProperties": {
        "type": "array",
        "maxItems": 2,
        "items": {"type": "array", "items": {"type": "string", "pattern": "^[a-zA-Z]+(:[a-z]+)*$"}}
      }
    },
    "compilers": {"type": "object", "additionalProperties": {"type": "string"}},
    "env": {"type": "array", "items": {"type": "string"}},
    "script": {"type": "string"},
    "server": {
      "type": "object",
      "properties": {
        "command": {"type": "string"},
        "env": {"type": "object", "additionalProperties": {"type": "string"}},
        "reloadPort": {"type": "integer", "minimum": 1, "maximum": 65535}
      },
      "additionalProperties": false
    },
    "build": {"type": "array", "items": {"$ref": "#/definitions/build"}},
    "logging": {
      "type": "object",
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]},
        "sinks": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["type"],
            "properties": {
              "type": {"enum": ["console", "file"]},
              "filename": {"type": "string"},
              "use_stderr": {"type": "boolean"},
              "colorize": {"type": "boolean"}
            }
          }
        }
      }
    }
  },
  "required": ["build"],
  "definitions": {
    "paths": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}, "minItems": 1}
      ]
    },
    "build": {
      "type": "object",
      "properties": {
        "label": {"type": "string"},
        "input": {"$ref": "#/definitions/paths"},
        "output": {"$ref": "#/definitions/paths"},
        "type": {"enum": ["js", "css", "html", "json", "asset"]},
        "bundle": {"type": "boolean"},
        "boilerplate": {"type": "boolean"},
        "bootstrap": {"type": "boolean"},
        "appServer": {"type": "boolean"},
        "watchOnly": {"type": "boolean"},
        "generate": {
          "type": "object",
          "required": ["mode"],
          "properties": {
            "mode": {"enum": ["shared", "pattern"]},
            "pattern": {"type": "string"}
          },
          "additionalProperties": false
        },
        "build": {"type": "array", "items": {"$ref": "#/definitions/build"}}
      },
      "additionalProperties": false
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("assetc.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Validate checks a decoded config document against the config schema.
func Validate(doc *yaml.Node) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	var raw interface{}
	if err := doc.Decode(&raw); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// The validator expects JSON-decoded values.
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}

	if err := s.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
