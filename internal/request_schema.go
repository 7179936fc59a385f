package internal

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/propsage/propsage"
)

// Request body schemas, validated before any decoding into typed structs so
// malformed payloads fail with a validation error instead of a zero-value
// surprise deeper in the flow.
var (
	filterRequestSchema = map[string]any{
		"type":                 "object",
		"required":             []any{"data_upload_id", "filter_criteria"},
		"additionalProperties": false,
		"properties": map[string]any{
			"data_upload_id": map[string]any{
				"type":   "string",
				"format": "uuid",
			},
			"filter_criteria": map[string]any{
				"type":          "object",
				"minProperties": 1,
			},
		},
	}

	chartRequestSchema = map[string]any{
		"type":                 "object",
		"required":             []any{"data_upload_id", "chart_type", "x_column", "y_column"},
		"additionalProperties": false,
		"properties": map[string]any{
			"data_upload_id": map[string]any{
				"type":   "string",
				"format": "uuid",
			},
			"chart_type": map[string]any{
				"type": "string",
				"enum": []any{"bar", "line", "pie", "scatter"},
			},
			"x_column": map[string]any{"type": "string", "minLength": 1},
			"y_column": map[string]any{"type": "string", "minLength": 1},
			"group_by": map[string]any{"type": "string"},
		},
	}

	chatRequestSchema = map[string]any{
		"type":                 "object",
		"required":             []any{"message", "session_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"message":    map[string]any{"type": "string", "minLength": 1},
			"session_id": map[string]any{"type": "string", "minLength": 1},
			"location":   map[string]any{"type": "string"},
			"context":    map[string]any{"type": "string"},
		},
	}

	analyzeRequestSchema = map[string]any{
		"type":                 "object",
		"required":             []any{"message", "session_id", "location"},
		"additionalProperties": false,
		"properties": map[string]any{
			"message":    map[string]any{"type": "string", "minLength": 1},
			"session_id": map[string]any{"type": "string", "minLength": 1},
			"location":   map[string]any{"type": "string", "minLength": 1},
		},
	}

	compareRequestSchema = map[string]any{
		"type":                 "object",
		"required":             []any{"locations"},
		"additionalProperties": false,
		"properties": map[string]any{
			"locations": map[string]any{
				"type":     "array",
				"minItems": 2,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
)

// RequestValidator resolves schemas once and validates raw request bodies
// against them.
type RequestValidator struct {
	mu       sync.Mutex
	resolved map[string]*jsonschema.Resolved
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{resolved: make(map[string]*jsonschema.Resolved)}
}

func (v *RequestValidator) ValidateFilterRequest(body []byte) error {
	return v.validate("filter", filterRequestSchema, body)
}

func (v *RequestValidator) ValidateChartRequest(body []byte) error {
	return v.validate("chart", chartRequestSchema, body)
}

func (v *RequestValidator) ValidateChatRequest(body []byte) error {
	return v.validate("chat", chatRequestSchema, body)
}

func (v *RequestValidator) ValidateAnalyzeRequest(body []byte) error {
	return v.validate("analyze", analyzeRequestSchema, body)
}

func (v *RequestValidator) ValidateCompareRequest(body []byte) error {
	return v.validate("compare", compareRequestSchema, body)
}

func (v *RequestValidator) validate(name string, schemaMap map[string]any, body []byte) error {
	resolved, err := v.resolve(name, schemaMap)
	if err != nil {
		return err
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return propsage.NewError(propsage.ErrorTypeValidation,
			propsage.ErrCodeInvalidRequest, "request body is not valid JSON").WithCause(err)
	}
	if err := resolved.Validate(data); err != nil {
		return propsage.NewError(propsage.ErrorTypeValidation,
			propsage.ErrCodeInvalidRequest, err.Error()).WithCause(err)
	}
	return nil
}

func (v *RequestValidator) resolve(name string, schemaMap map[string]any) (*jsonschema.Resolved, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if resolved, ok := v.resolved[name]; ok {
		return resolved, nil
	}

	schemaBytes, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", name, err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolve %s schema: %w", name, err)
	}
	v.resolved[name] = resolved
	return resolved, nil
}
