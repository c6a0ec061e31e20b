package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/evalIA/property-import-service/internal/models"
)

// ErrEmptyResponse is returned when the model sends back no content
var ErrEmptyResponse = errors.New("empty response from model")

var recordsSchema = mustCompileRecordsSchema()

// NormalizeResponse turns any accepted response shape into a list of raw records.
// Accepted: {"properties": [...]}, {"infos": [...]}, a bare array, a single bare object.
func NormalizeResponse(body string) ([]map[string]interface{}, error) {
	cleaned := stripCodeFence(body)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	var v interface{}
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}

	var items []interface{}
	switch val := v.(type) {
	case []interface{}:
		items = val
	case map[string]interface{}:
		items = unwrapEnvelope(val)
	default:
		return nil, fmt.Errorf("unexpected JSON %T, want object or array", v)
	}

	if err := recordsSchema.Validate(items); err != nil {
		return nil, fmt.Errorf("response does not match record schema: %w", err)
	}

	records := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		records = append(records, item.(map[string]interface{}))
	}
	return records, nil
}

func unwrapEnvelope(obj map[string]interface{}) []interface{} {
	for _, key := range []string{"properties", "infos"} {
		if inner, ok := obj[key]; ok {
			switch in := inner.(type) {
			case []interface{}:
				return in
			case map[string]interface{}:
				return []interface{}{in}
			}
		}
	}
	return []interface{}{obj}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeRecord converts one raw record into typed property data
func DecodeRecord(raw map[string]interface{}) models.ExtractedPropertyData {
	return models.NewExtractedPropertyData(raw)
}

// recordSchemaMap describes an array of objects whose numeric fields are numbers
// or numeric strings and whose known fields are never nested objects
func recordSchemaMap() map[string]any {
	props := make(map[string]any)
	for _, name := range models.KnownFieldNames() {
		switch {
		case name == "unitNumbers" || name == "unitRents":
			props[name] = map[string]any{"type": []string{"array", "string", "number", "null"}}
		case models.IsNumericField(name):
			props[name] = map[string]any{"type": []string{"number", "string", "null"}}
		default:
			props[name] = map[string]any{"type": []string{"string", "number", "boolean", "array", "null"}}
		}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":       "object",
			"properties": props,
		},
	}
}

func mustCompileRecordsSchema() *jsonschema.Schema {
	b, err := json.Marshal(recordSchemaMap())
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("records.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile("records.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}
