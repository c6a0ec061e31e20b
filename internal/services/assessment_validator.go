package services

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/evalIA/property-import-service/internal/models"
)

// AssessmentValidator cross-checks one extraction. It never blocks the pipeline:
// problems are reported so the reviewer knows what to look at.
type AssessmentValidator struct {
	tolerance float64 // percentage tolerance (0.02 = 2%)
	now       func() time.Time
}

// NewAssessmentValidator creates a new validator with default 2% tolerance
func NewAssessmentValidator() *AssessmentValidator {
	return &AssessmentValidator{tolerance: 0.02, now: time.Now}
}

var (
	canadianPostalRe = regexp.MustCompile(`^[A-Z]\d[A-Z] \d[A-Z]\d$`)
	matriculeRe      = regexp.MustCompile(`^[0-9][0-9 .\-]*$`)
	isoDateRe        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validate performs all cross-validations on extracted data
func (v *AssessmentValidator) Validate(d models.ExtractedPropertyData) *models.ValidationResult {
	result := &models.ValidationResult{
		Valid:    true,
		Errors:   []models.ValidationError{},
		Warnings: []models.ValidationWarning{},
	}

	// 1. Land + building vs total assessed value
	v.validateAssessment(d, result)

	// 2. Roll-over-roll change
	v.validatePreviousAssessment(d, result)

	// 3. Amounts must not be negative
	v.validateAmounts(d, result)

	// 4. Years and dates
	v.validateYears(d, result)

	// 5. Identifiers
	v.validateIdentifiers(d, result)

	// 6. Rent roll coherence
	v.validateUnits(d, result)

	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Errors) > 0 || len(result.Warnings) > 0
	return result
}

func (v *AssessmentValidator) validateAssessment(d models.ExtractedPropertyData, result *models.ValidationResult) {
	if d.TerrainValue == nil || d.BatimentValue == nil || d.TotalValue == nil || *d.TotalValue <= 0 {
		return
	}
	expected := *d.TerrainValue + *d.BatimentValue
	diff := math.Abs(*d.TotalValue - expected)
	if diff > *d.TotalValue*v.tolerance {
		result.Errors = append(result.Errors, models.ValidationError{
			Field:    "totalValue",
			Code:     "assessment_mismatch",
			Expected: round2(expected),
			Actual:   round2(*d.TotalValue),
			Message:  "Total assessed value does not match land + building",
		})
	}
}

func (v *AssessmentValidator) validatePreviousAssessment(d models.ExtractedPropertyData, result *models.ValidationResult) {
	if d.PreviousTotalValue == nil || d.TotalValue == nil || *d.PreviousTotalValue <= 0 {
		return
	}
	change := (*d.TotalValue - *d.PreviousTotalValue) / *d.PreviousTotalValue
	if math.Abs(change) > 0.5 {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:   "previousTotalValue",
			Code:    "large_assessment_change",
			Message: fmt.Sprintf("Assessed value changed by %.0f%% since the previous roll", change*100),
		})
	}
}

func (v *AssessmentValidator) validateAmounts(d models.ExtractedPropertyData, result *models.ValidationResult) {
	amounts := map[string]*float64{
		"price":              d.Price,
		"salePrice":          d.SalePrice,
		"terrainValue":       d.TerrainValue,
		"batimentValue":      d.BatimentValue,
		"totalValue":         d.TotalValue,
		"previousTotalValue": d.PreviousTotalValue,
		"municipalTax":       d.MunicipalTax,
		"schoolTax":          d.SchoolTax,
		"surface":            d.Surface,
		"livingArea":         d.LivingArea,
	}
	for _, name := range slices.Sorted(maps.Keys(amounts)) {
		if p := amounts[name]; p != nil && *p < 0 {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   name,
				Code:    "negative_amount",
				Actual:  round2(*p),
				Message: "Amount cannot be negative",
			})
		}
	}

	if d.MunicipalTax != nil && d.TotalValue != nil && *d.TotalValue > 0 && *d.MunicipalTax > *d.TotalValue*0.05 {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:   "municipalTax",
			Code:    "tax_rate_implausible",
			Message: "Municipal tax exceeds 5% of the assessed value",
		})
	}
}

func (v *AssessmentValidator) validateYears(d models.ExtractedPropertyData, result *models.ValidationResult) {
	maxYear := v.now().Year() + 2
	years := []struct {
		field string
		value *int
		min   int
	}{
		{"yearBuilt", d.YearBuilt, 1600},
		{"municipalTaxYear", d.MunicipalTaxYear, 1990},
		{"schoolTaxYear", d.SchoolTaxYear, 1990},
	}
	for _, y := range years {
		if y.value == nil {
			continue
		}
		if *y.value < y.min || *y.value > maxYear {
			result.Warnings = append(result.Warnings, models.ValidationWarning{
				Field:   y.field,
				Code:    "implausible_year",
				Message: fmt.Sprintf("Year %d is outside %d-%d", *y.value, y.min, maxYear),
			})
		}
	}

	dates := map[string]*string{
		"saleDate":              d.SaleDate,
		"evaluationDate":        d.EvaluationDate,
		"assessmentPeriodStart": d.AssessmentPeriodStart,
	}
	for _, name := range slices.Sorted(maps.Keys(dates)) {
		p := dates[name]
		if p == nil {
			continue
		}
		if !isoDateRe.MatchString(*p) {
			result.Warnings = append(result.Warnings, models.ValidationWarning{
				Field:   name,
				Code:    "date_format",
				Message: "Date is not in YYYY-MM-DD format",
			})
			continue
		}
		if _, err := time.Parse("2006-01-02", *p); err != nil {
			result.Warnings = append(result.Warnings, models.ValidationWarning{
				Field:   name,
				Code:    "invalid_date",
				Message: "Date does not exist",
			})
		}
	}
}

func (v *AssessmentValidator) validateIdentifiers(d models.ExtractedPropertyData, result *models.ValidationResult) {
	if d.PostalCode != nil && !canadianPostalRe.MatchString(*d.PostalCode) {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:   "postalCode",
			Code:    "postal_code_format",
			Message: "Postal code should look like A1A 1A1",
		})
	}
	if d.Matricule != nil {
		m := strings.TrimSpace(*d.Matricule)
		if !matriculeRe.MatchString(m) || countDigits(m) < 10 {
			result.Warnings = append(result.Warnings, models.ValidationWarning{
				Field:   "matricule",
				Code:    "matricule_format",
				Message: "Matricule should contain at least 10 digits",
			})
		}
	}
}

func (v *AssessmentValidator) validateUnits(d models.ExtractedPropertyData, result *models.ValidationResult) {
	if len(d.UnitNumbers) > 0 && len(d.UnitRents) > 0 && len(d.UnitNumbers) != len(d.UnitRents) {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:   "unitRents",
			Code:    "unit_rent_count_mismatch",
			Message: fmt.Sprintf("%d unit numbers but %d rents", len(d.UnitNumbers), len(d.UnitRents)),
		})
	}
	if d.UnitCount != nil && len(d.UnitNumbers) > *d.UnitCount {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:   "unitCount",
			Code:    "unit_count_mismatch",
			Message: "More unit numbers than declared units",
		})
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// round2 rounds to 2 decimal places
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
