package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/models"
	"github.com/evalIA/property-import-service/internal/normalize"
)

// fieldMapping maps extraction field names onto canonical property fields.
// Canonical names map to themselves so mapped output can be mapped again.
var fieldMapping = map[string]string{
	"address":               models.FieldAddress,
	"city":                  models.FieldCity,
	"postalCode":            models.FieldPostalCode,
	"municipality":          models.FieldMunicipality,
	"province":              models.FieldProvince,
	"propertyType":          models.FieldPropertyType,
	"mlsNumber":             models.FieldMLSNumber,
	"price":                 models.FieldAskingPrice,
	"salePrice":             models.FieldSalePrice,
	"saleDate":              models.FieldSaleDate,
	"yearBuilt":             models.FieldYearBuilt,
	"surface":               models.FieldLandArea,
	"livingArea":            models.FieldLivingArea,
	"frontage":              models.FieldFrontage,
	"depth":                 models.FieldDepth,
	"terrainValue":          models.FieldLandValue,
	"batimentValue":         models.FieldBuildingValue,
	"totalValue":            models.FieldAssessedValue,
	"previousTotalValue":    models.FieldPreviousAssessedValue,
	"evaluationDate":        models.FieldAssessmentDate,
	"assessmentPeriodStart": models.FieldAssessmentPeriodStart,
	"matricule":             models.FieldMatricule,
	"lotNumber":             models.FieldLotNumber,
	"cadastre":              models.FieldCadastre,
	"zoning":                models.FieldZoning,
	"zoningUses":            models.FieldZoningUses,
	"municipalTax":          models.FieldMunicipalTax,
	"municipalTaxYear":      models.FieldMunicipalTaxYear,
	"schoolTax":             models.FieldSchoolTax,
	"schoolTaxYear":         models.FieldSchoolTaxYear,
	"rooms":                 models.FieldRooms,
	"bedrooms":              models.FieldBedrooms,
	"bathrooms":             models.FieldBathrooms,
	"powderRooms":           models.FieldPowderRooms,
	"parking":               models.FieldParking,
	"unitCount":             models.FieldUnitCount,
	"unitNumbers":           models.FieldUnitNumbers,
	"unitRents":             models.FieldUnitRents,
	"sellerName":            models.FieldSellerName,
	"buyerName":             models.FieldBuyerName,
	"ownerName":             models.FieldOwnerName,
	"extras":                models.FieldNotes,

	models.FieldAskingPrice:           models.FieldAskingPrice,
	models.FieldLandArea:              models.FieldLandArea,
	models.FieldLandValue:             models.FieldLandValue,
	models.FieldBuildingValue:         models.FieldBuildingValue,
	models.FieldAssessedValue:         models.FieldAssessedValue,
	models.FieldPreviousAssessedValue: models.FieldPreviousAssessedValue,
	models.FieldAssessmentDate:        models.FieldAssessmentDate,
	models.FieldNotes:                 models.FieldNotes,
}

// canonical fields holding a single number
var numericCanonical = map[string]bool{}

func init() {
	for from, to := range fieldMapping {
		if models.IsNumericField(from) && to != models.FieldUnitRents {
			numericCanonical[to] = true
		}
	}
}

// CanonicalField returns the canonical name for an extraction field
func CanonicalField(name string) (string, bool) {
	to, ok := fieldMapping[name]
	return to, ok
}

// IsNumericCanonical reports whether a canonical field holds a single number
func IsNumericCanonical(name string) bool {
	return numericCanonical[name]
}

var postalCodeRe = regexp.MustCompile(`(?i)\b([a-z]\d[a-z])\s?(\d[a-z]\d)\b`)

// SplitAddress finds a Canadian postal code and the city token between the first
// comma and the postal code. Both are empty when no postal code is present.
func SplitAddress(address string) (city, postalCode string) {
	loc := postalCodeRe.FindStringSubmatchIndex(address)
	if loc == nil {
		return "", ""
	}
	postalCode = strings.ToUpper(address[loc[2]:loc[3]] + " " + address[loc[4]:loc[5]])

	comma := strings.Index(address, ",")
	if comma < 0 || comma >= loc[0] {
		return "", postalCode
	}
	between := address[comma+1 : loc[0]]
	for _, part := range strings.Split(between, ",") {
		if part = strings.TrimSpace(part); part != "" {
			city = part
			break
		}
	}
	return city, postalCode
}

// MapToPropertyInput converts one extraction into a partial canonical record
func MapToPropertyInput(ctx context.Context, d models.ExtractedPropertyData) models.PropertyInput {
	out := MapRecord(d.Map())
	if _, ok := out[models.FieldAddress]; ok {
		_, hasCity := out[models.FieldCity]
		_, hasPostal := out[models.FieldPostalCode]
		if !hasCity || !hasPostal {
			logger.Debug(ctx, "mapper.address.partial",
				"has_city", hasCity,
				"has_postal_code", hasPostal,
			)
		}
	}
	return out
}

// MapRecord maps a plain record through the mapping table, skipping nulls and
// unknown keys, enriching city and postal code from the address, and stamping source.
// Mapping an already mapped record returns an equal record.
func MapRecord(raw map[string]interface{}) models.PropertyInput {
	out := make(models.PropertyInput, len(raw)+1)
	for from, v := range raw {
		to, ok := fieldMapping[from]
		if !ok || isEmpty(v) {
			continue
		}
		if isIntegral(to) {
			if n, ok := normalize.ParseInt(v); ok {
				out[to] = n
			}
			continue
		}
		if numericCanonical[to] {
			if n, ok := normalize.ParseNumber(v); ok {
				out[to] = n
			}
			continue
		}
		out[to] = v
	}

	if addr, ok := out[models.FieldAddress].(string); ok {
		city, postal := SplitAddress(addr)
		if _, has := out[models.FieldCity]; !has && city != "" {
			out[models.FieldCity] = city
		}
		if _, has := out[models.FieldPostalCode]; !has && postal != "" {
			out[models.FieldPostalCode] = postal
		}
	}

	out[models.FieldSource] = models.SourceImport
	return out
}

var integralCanonical = map[string]bool{
	models.FieldYearBuilt:        true,
	models.FieldMunicipalTaxYear: true,
	models.FieldSchoolTaxYear:    true,
	models.FieldRooms:            true,
	models.FieldBedrooms:         true,
	models.FieldBathrooms:        true,
	models.FieldPowderRooms:      true,
	models.FieldUnitCount:        true,
}

func isIntegral(field string) bool {
	return integralCanonical[field]
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []float64:
		return len(val) == 0
	case []interface{}:
		return len(val) == 0
	}
	return false
}
