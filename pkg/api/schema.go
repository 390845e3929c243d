/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/carverauto/ssm/pkg/models"
)

const syncSchemaURL = "ssm://schemas/sync-config.json"

// syncSchema is the shape check applied before a sync body is decoded.
// Semantic checks (regex compilation, templates, column fields) happen in
// the rules package.
const syncSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["canvas_id", "rules"],
  "properties": {
    "canvas_id": {"type": "string", "minLength": 1},
    "rules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "severity"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "enabled": {"type": "boolean"},
          "sources": {"type": "array", "items": {"enum": ["email", "calendar"]}},
          "keyword": {"type": "string"},
          "keywords": {"type": "array", "items": {"type": "string"}},
          "match_all": {"type": "boolean"},
          "sender_contains": {"type": "string"},
          "subject_contains": {"type": "string"},
          "pattern": {"type": "string"},
          "severity": {"enum": ["low", "medium", "high", "critical"]}
        }
      }
    },
    "alert_templates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "severity": {"enum": ["", "low", "medium", "high", "critical"]},
          "title": {"type": "string"},
          "body": {"type": "string"}
        }
      }
    },
    "auto_reply": {
      "type": ["object", "null"],
      "properties": {
        "enabled": {"type": "boolean"},
        "subject": {"type": "string"},
        "body": {"type": "string"},
        "max_per_window": {"type": "integer", "minimum": 0},
        "window_minutes": {"type": "integer", "minimum": 0},
        "severities": {"type": "array", "items": {"enum": ["low", "medium", "high", "critical"]}}
      }
    },
    "spreadsheet_sink": {
      "type": ["object", "null"],
      "properties": {
        "enabled": {"type": "boolean"},
        "sheet_name": {"type": "string"},
        "create_if_missing": {"type": "boolean"},
        "spreadsheet_id": {"type": "string"},
        "tab": {"type": "string"},
        "connection_id": {"type": "string"},
        "columns": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["field"],
            "properties": {"header": {"type": "string"}, "field": {"type": "string"}}
          }
        }
      }
    },
    "polling_settings": {
      "type": "object",
      "properties": {
        "email": {"$ref": "#/$defs/source"},
        "calendar": {"$ref": "#/$defs/source"},
        "interval_minutes": {"type": "integer", "minimum": 0, "maximum": 1440}
      }
    },
    "enable_background_polling": {"type": "boolean"},
    "expected_version": {"type": ["integer", "null"], "minimum": 0}
  },
  "$defs": {
    "source": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "connection_id": {"type": "string"},
        "cursor": {"type": "string"}
      }
    }
  }
}`

var errSchemaCompile = errors.New("compile sync schema")

func compileSyncSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(syncSchema))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSchemaCompile, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(syncSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errSchemaCompile, err)
	}

	schema, err := c.Compile(syncSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSchemaCompile, err)
	}

	return schema, nil
}

// validateBody checks raw JSON against the sync schema and reports the
// first failing location as a validation error.
func validateBody(schema *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &models.ValidationError{Field: "body", Reason: "malformed JSON"}
	}

	if err := schema.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &models.ValidationError{Field: instanceField(verr), Reason: "does not match schema"}
		}

		return &models.ValidationError{Field: "body", Reason: "does not match schema"}
	}

	return nil
}

// instanceField returns the deepest failing instance location, e.g.
// "rules/0/severity".
func instanceField(verr *jsonschema.ValidationError) string {
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	if len(leaf.InstanceLocation) == 0 {
		return "body"
	}

	return strings.Join(leaf.InstanceLocation, "/")
}
