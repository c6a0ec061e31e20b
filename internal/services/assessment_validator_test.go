package services

import (
	"testing"
	"time"

	"github.com/evalIA/property-import-service/internal/models"
)

func TestAssessmentValidator(t *testing.T) {
	v := NewAssessmentValidator()
	v.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		raw       map[string]interface{}
		wantValid bool
		wantCodes []string
	}{
		{
			name:      "consistent assessment",
			raw:       map[string]interface{}{"terrainValue": 100000, "batimentValue": 200000, "totalValue": 300000, "postalCode": "H1H 1H1"},
			wantValid: true,
		},
		{
			name:      "within tolerance",
			raw:       map[string]interface{}{"terrainValue": 100000, "batimentValue": 200000, "totalValue": 305000},
			wantValid: true,
		},
		{
			name:      "assessment mismatch",
			raw:       map[string]interface{}{"terrainValue": 100000, "batimentValue": 200000, "totalValue": 400000},
			wantCodes: []string{"assessment_mismatch"},
		},
		{
			name:      "large change",
			raw:       map[string]interface{}{"totalValue": 400000, "previousTotalValue": 200000},
			wantValid: true,
			wantCodes: []string{"large_assessment_change"},
		},
		{
			name:      "negative tax",
			raw:       map[string]interface{}{"municipalTax": -12},
			wantCodes: []string{"negative_amount"},
		},
		{
			name:      "implausible tax rate",
			raw:       map[string]interface{}{"municipalTax": 20000, "totalValue": 300000},
			wantValid: true,
			wantCodes: []string{"tax_rate_implausible"},
		},
		{
			name:      "years",
			raw:       map[string]interface{}{"yearBuilt": 1450, "municipalTaxYear": 2028},
			wantValid: true,
			wantCodes: []string{"implausible_year", "implausible_year"},
		},
		{
			name:      "dates",
			raw:       map[string]interface{}{"saleDate": "12/03/2024", "evaluationDate": "2024-02-30"},
			wantValid: true,
			wantCodes: []string{"invalid_date", "date_format"},
		},
		{
			name:      "identifiers",
			raw:       map[string]interface{}{"postalCode": "H1H1H1", "matricule": "8041-23"},
			wantValid: true,
			wantCodes: []string{"postal_code_format", "matricule_format"},
		},
		{
			name:      "units",
			raw:       map[string]interface{}{"unitCount": 2, "unitNumbers": []interface{}{"1", "2", "3"}, "unitRents": []interface{}{900, 950}},
			wantValid: true,
			wantCodes: []string{"unit_rent_count_mismatch", "unit_count_mismatch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(models.NewExtractedPropertyData(tt.raw))

			var codes []string
			for _, e := range result.Errors {
				codes = append(codes, e.Code)
			}
			for _, w := range result.Warnings {
				codes = append(codes, w.Code)
			}

			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (codes %v)", result.Valid, tt.wantValid, codes)
			}
			if len(codes) != len(tt.wantCodes) {
				t.Fatalf("Codes = %v, want %v", codes, tt.wantCodes)
			}
			for i := range codes {
				if codes[i] != tt.wantCodes[i] {
					t.Errorf("Codes = %v, want %v", codes, tt.wantCodes)
					break
				}
			}
			if result.NeedsReview != (len(tt.wantCodes) > 0) {
				t.Errorf("NeedsReview = %v", result.NeedsReview)
			}
		})
	}
}

func TestAssessmentMismatchAmounts(t *testing.T) {
	result := NewAssessmentValidator().Validate(models.NewExtractedPropertyData(map[string]interface{}{
		"terrainValue":  100000.126,
		"batimentValue": 200000,
		"totalValue":    400000,
	}))
	if len(result.Errors) != 1 {
		t.Fatalf("Expected one error, got %v", result.Errors)
	}
	if e := result.Errors[0]; e.Expected != 300000.13 || e.Actual != 400000 || e.Field != "totalValue" {
		t.Errorf("Unexpected error %+v", e)
	}
}
