package store

import (
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchemaJSON guards the structure of a versioned task file
// before decoding. A file that fails validation routes to the backup
// recovery path instead of being trusted.
const envelopeSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "records"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "records": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "content", "state", "order", "created_at", "updated_at"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "content": {"type": "string"},
          "state": {"type": "string"},
          "order": {"type": "integer"},
          "tags": {"type": "array", "items": {"type": "string"}},
          "metadata": {"type": "object"},
          "created_at": {"type": "string"},
          "updated_at": {"type": "string"},
          "completed_at": {"type": "string"}
        }
      }
    }
  }
}`

// envelopeSchema is compiled once at init; the schema is a string
// constant, so compilation cannot fail at runtime.
var envelopeSchema = jsonschema.MustCompileString("taskfile.schema.json", envelopeSchemaJSON)
