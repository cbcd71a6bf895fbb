package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a document does not match the document schema.
var ErrInvalidDocument = errors.New("invalid document")

// DocumentSchema is the JSON Schema of a persisted canvas document. Node configs stay open: their
// shape depends on the node type and is checked when the config variant is decoded.
const DocumentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"nodes": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"category": {"type": "string"},
					"name": {"type": "string"},
					"icon": {"type": "string"},
					"position": {
						"type": "object",
						"properties": {
							"x": {"type": "number"},
							"y": {"type": "number"}
						}
					},
					"config": {"type": ["object", "null"]}
				}
			}
		},
		"connections": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["id", "from", "to"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"from": {"type": "string", "minLength": 1},
					"to": {"type": "string", "minLength": 1},
					"label": {"type": "string"},
					"transition_id": {"type": ["string", "null"]}
				}
			}
		},
		"canvas_state": {
			"type": ["object", "null"],
			"properties": {
				"zoom": {"type": "number"},
				"pan": {
					"type": "object",
					"properties": {
						"x": {"type": "number"},
						"y": {"type": "number"}
					}
				}
			}
		}
	}
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(DocumentSchema)

// ValidateDocumentSchema checks raw document JSON against DocumentSchema.
func ValidateDocumentSchema(data []byte) error {
	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(errs, "; "))
	}

	return nil
}
