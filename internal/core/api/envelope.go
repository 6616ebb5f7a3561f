package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Every success response is {success, data, error?}. The envelope and each
// data payload are checked against a schema here so that the store never
// sees an ambiguous shape.
const envelopeSchemaJSON = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "error": {
      "oneOf": [
        {"type": "null"},
        {"type": "string"},
        {"type": "object", "required": ["message"], "properties": {"message": {"type": "string"}}}
      ]
    }
  }
}`

const modelSchemaJSON = `{
  "type": "object",
  "required": ["id", "name", "option_groups"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "option_groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "selection_type", "options"],
        "properties": {
          "id": {"type": "string"},
          "selection_type": {"enum": ["single", "multi", "multiple", "SINGLE", "MULTI", "MULTIPLE"]},
          "min_selections": {"type": "integer", "minimum": 0},
          "max_selections": {"type": ["integer", "null"], "minimum": 0},
          "required": {"type": "boolean"},
          "options": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "name", "base_price"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "base_price": {"type": "number"}
              }
            }
          }
        }
      }
    }
  }
}`

const modelListSchemaJSON = `{
  "type": "array",
  "items": {"$ref": "model.json"}
}`

const validationSchemaJSON = `{
  "type": "object",
  "required": ["is_valid"],
  "properties": {
    "is_valid": {"type": "boolean"},
    "violations": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["message"],
        "properties": {
          "message": {"type": "string"},
          "severity": {"enum": ["critical", "error", "warning", "info", ""]},
          "affected_option_ids": {"type": ["array", "null"], "items": {"type": "string"}}
        }
      }
    }
  }
}`

const pricingSchemaJSON = `{
  "type": "object",
  "required": ["base_price", "total_price"],
  "properties": {
    "base_price": {"type": "number"},
    "total_price": {"type": "number"},
    "adjustments": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["rule_name", "amount"],
        "properties": {
          "rule_name": {"type": "string"},
          "amount": {"type": "number"},
          "percentage": {"type": ["number", "null"]}
        }
      }
    }
  }
}`

const configurationSchemaJSON = `{
  "type": "object",
  "required": ["id", "model_id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "model_id": {"type": "string"},
    "selections": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["option_id", "quantity"],
        "properties": {
          "option_id": {"type": "string"},
          "quantity": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

const authSchemaJSON = `{
  "type": "object",
  "required": ["token"],
  "properties": {
    "token": {"type": "string", "minLength": 1},
    "expires_at": {"type": ["string", "null"]}
  }
}`

const userSchemaJSON = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string"},
    "email": {"type": "string"}
  }
}`

// schemaBase roots the in-memory schema resources so relative $refs resolve
// without touching the filesystem.
const schemaBase = "https://schemas.cpq.local/api/v1/"

// Compiled schemas. Built once; a compile failure is a programming error.
var (
	envelopeSchema      *jsonschema.Schema
	modelSchema         *jsonschema.Schema
	modelListSchema     *jsonschema.Schema
	validationSchema    *jsonschema.Schema
	pricingSchema       *jsonschema.Schema
	configurationSchema *jsonschema.Schema
	authSchema          *jsonschema.Schema
	userSchema          *jsonschema.Schema
)

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	resources := map[string]string{
		"envelope.json":      envelopeSchemaJSON,
		"model.json":         modelSchemaJSON,
		"model-list.json":    modelListSchemaJSON,
		"validation.json":    validationSchemaJSON,
		"pricing.json":       pricingSchemaJSON,
		"configuration.json": configurationSchemaJSON,
		"auth.json":          authSchemaJSON,
		"user.json":          userSchemaJSON,
	}
	for name, schema := range resources {
		if err := c.AddResource(schemaBase+name, bytes.NewReader([]byte(schema))); err != nil {
			panic(fmt.Sprintf("api: add schema %s: %v", name, err))
		}
	}
	envelopeSchema = c.MustCompile(schemaBase + "envelope.json")
	modelSchema = c.MustCompile(schemaBase + "model.json")
	modelListSchema = c.MustCompile(schemaBase + "model-list.json")
	validationSchema = c.MustCompile(schemaBase + "validation.json")
	pricingSchema = c.MustCompile(schemaBase + "pricing.json")
	configurationSchema = c.MustCompile(schemaBase + "configuration.json")
	authSchema = c.MustCompile(schemaBase + "auth.json")
	userSchema = c.MustCompile(schemaBase + "user.json")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// decodeEnvelope validates a 2xx body and unmarshals its data into out.
// shape may be nil for calls whose data is ignored.
func decodeEnvelope(raw []byte, shape *jsonschema.Schema, out any) error {
	generic, err := decodeGeneric(raw)
	if err != nil {
		return malformed("response is not JSON", err)
	}
	if err := envelopeSchema.Validate(generic); err != nil {
		return malformed("response envelope", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return malformed("response envelope", err)
	}
	if !env.Success {
		msg := "request was not successful"
		var body errorBody
		var s string
		switch {
		case json.Unmarshal(env.Error, &body) == nil && body.Message != "":
			msg = body.Message
		case json.Unmarshal(env.Error, &s) == nil && s != "":
			msg = s
		}
		return &Error{Kind: KindUnknown, Message: msg, Code: body.Code, Details: body.Details}
	}

	if shape != nil {
		data := generic.(map[string]any)["data"]
		if err := shape.Validate(data); err != nil {
			return malformed("response data", err)
		}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return malformed("response data", err)
	}
	return nil
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func malformed(what string, err error) *Error {
	return &Error{
		Kind:    KindUnknown,
		Message: fmt.Sprintf("%s: %v", what, err),
		Err:     fmt.Errorf("%w: %s", ErrMalformedResponse, what),
	}
}
