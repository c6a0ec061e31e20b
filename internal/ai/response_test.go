package ai

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeResponseShapes(t *testing.T) {
	record := `{"address": "45 Rue King, Sherbrooke", "totalValue": "412 500 $", "yearBuilt": 1978}`

	shapes := map[string]string{
		"properties":  `{"properties": [` + record + `]}`,
		"infos":       `{"infos": [` + record + `]}`,
		"bare array":  `[` + record + `]`,
		"bare object": record,
		"fenced":      "```json\n" + `{"properties": [` + record + `]}` + "\n```",
	}

	var want map[string]interface{}
	for name, body := range shapes {
		raw, err := NormalizeResponse(body)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(raw) != 1 {
			t.Fatalf("%s: expected 1 record, got %d", name, len(raw))
		}
		got := DecodeRecord(raw[0]).Map()
		if want == nil {
			want = got
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	if want["totalValue"] != 412500.0 {
		t.Errorf("Expected totalValue coerced to 412500, got %v", want["totalValue"])
	}
}

func TestNormalizeResponseMultiRecord(t *testing.T) {
	raw, err := NormalizeResponse(`{"properties": [{"mlsNumber": "1"}, {"mlsNumber": "2"}, {"mlsNumber": "3"}]}`)
	if err != nil {
		t.Fatalf("NormalizeResponse failed: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(raw))
	}
	if raw[2]["mlsNumber"] != "3" {
		t.Error("Expected records kept in order")
	}

	raw, err = NormalizeResponse(`{"properties": []}`)
	if err != nil || len(raw) != 0 {
		t.Errorf("Expected empty list, got %v, %v", raw, err)
	}
}

func TestNormalizeResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"fence only", "```json\n```"},
		{"truncated", `{"properties": [{"city": "Laval"`},
		{"string", `"Laval"`},
		{"array of strings", `["Laval", "Longueuil"]`},
		{"numeric field as object", `{"price": {"amount": 100}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeResponse(tt.body); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := NormalizeResponse("  "); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}
