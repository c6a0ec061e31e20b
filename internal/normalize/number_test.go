package normalize

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
		ok    bool
	}{
		{"float", 353.2, 353.2, true},
		{"int", 2000, 2000, true},
		{"json number", json.Number("247200"), 247200, true},
		{"comma decimal with unit", "353,2 m²", 353.2, true},
		{"space thousands with currency", "247 200$", 247200, true},
		{"nbsp thousands", "1 250 000 $", 1250000, true},
		{"narrow nbsp thousands", "3 120,55 $", 3120.55, true},
		{"leading currency", "$1,234.50", 1234.5, true},
		{"european grouping", "1.234,50", 1234.5, true},
		{"comma thousands", "247,200", 247200, true},
		{"multiple comma thousands", "1,250,000", 1250000, true},
		{"unit with digit suffix", "353,2 m2", 353.2, true},
		{"percent", "2,5 %", 2.5, true},
		{"negative", "-12.5", -12.5, true},
		{"plus sign", "+300", 300, true},
		{"trailing period", "247 200.", 247200, true},
		{"half room", "4 1/2", 4.5, true},
		{"half room with unit", "3 1/2 pieces", 3.5, true},
		{"unicode half", "5½", 5.5, true},
		{"newline separates numbers", "247 200\n2023", 247200, true},
		{"tab separates numbers", "12\t450", 12, true},
		{"space group needs three digits", "1 2345", 1, true},
		{"two numbers", "3 chambres 2 salles de bain", 3, true},
		{"bare ratio", "1/2", 0, false},
		{"date", "2023/05/01", 0, false},
		{"no digits", "n/a", 0, false},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"infinity", math.Inf(1), 0, false},
		{"nan", math.NaN(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseNumber(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  int
		ok    bool
	}{
		{"year", 1987.0, 1987, true},
		{"string count", "3", 3, true},
		{"half room truncates", "4 1/2", 4, true},
		{"huge", 1e300, 0, false},
		{"huge negative", -1e300, 0, false},
		{"huge string", "1e300", 1, true},
		{"int range edge", float64(math.MaxInt), 0, false},
		{"infinity", math.Inf(-1), 0, false},
		{"not a number", "n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInt(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseInt(%v) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseNumberIdempotent(t *testing.T) {
	inputs := []string{"247 200$", "353,2 m²", "$1,234.50", "12 345,67"}
	for _, in := range inputs {
		first, ok := ParseNumber(in)
		if !ok {
			t.Fatalf("ParseNumber(%q) failed", in)
		}
		second, ok := ParseNumber(first)
		if !ok || second != first {
			t.Errorf("ParseNumber not idempotent for %q: %v then %v", in, first, second)
		}
	}
}

func TestIsBareNumber(t *testing.T) {
	if !IsBareNumber(1.5) || !IsBareNumber(3) {
		t.Error("Expected numeric values to be bare numbers")
	}
	if IsBareNumber("1.5") || IsBareNumber(nil) {
		t.Error("Expected strings and nil not to be bare numbers")
	}
}
