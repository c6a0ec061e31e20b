package models

import "time"

// PropertyInput is a partial canonical property record keyed by canonical field name.
// Absent keys are left unchanged on update and defaulted on create.
type PropertyInput map[string]interface{}

// Property is a stored canonical property record
type Property struct {
	ID        string        `json:"id"`
	Fields    PropertyInput `json:"fields"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// String returns a string field or ""
func (p *Property) String(field string) string {
	if p == nil || p.Fields == nil {
		return ""
	}
	s, _ := p.Fields[field].(string)
	return s
}

// Canonical property fields
const (
	FieldAddress               = "address"
	FieldCity                  = "city"
	FieldPostalCode            = "postalCode"
	FieldMunicipality          = "municipality"
	FieldProvince              = "province"
	FieldPropertyType          = "propertyType"
	FieldMLSNumber             = "mlsNumber"
	FieldAskingPrice           = "askingPrice"
	FieldSalePrice             = "salePrice"
	FieldSaleDate              = "saleDate"
	FieldYearBuilt             = "yearBuilt"
	FieldLandArea              = "landArea"
	FieldLivingArea            = "livingArea"
	FieldFrontage              = "frontage"
	FieldDepth                 = "depth"
	FieldLandValue             = "landValue"
	FieldBuildingValue         = "buildingValue"
	FieldAssessedValue         = "assessedValue"
	FieldPreviousAssessedValue = "previousAssessedValue"
	FieldAssessmentDate        = "assessmentDate"
	FieldAssessmentPeriodStart = "assessmentPeriodStart"
	FieldMatricule             = "matricule"
	FieldLotNumber             = "lotNumber"
	FieldCadastre              = "cadastre"
	FieldZoning                = "zoning"
	FieldZoningUses            = "zoningUses"
	FieldMunicipalTax          = "municipalTax"
	FieldMunicipalTaxYear      = "municipalTaxYear"
	FieldSchoolTax             = "schoolTax"
	FieldSchoolTaxYear         = "schoolTaxYear"
	FieldRooms                 = "rooms"
	FieldBedrooms              = "bedrooms"
	FieldBathrooms             = "bathrooms"
	FieldPowderRooms           = "powderRooms"
	FieldParking               = "parking"
	FieldUnitCount             = "unitCount"
	FieldUnitNumbers           = "unitNumbers"
	FieldUnitRents             = "unitRents"
	FieldSellerName            = "sellerName"
	FieldBuyerName             = "buyerName"
	FieldOwnerName             = "ownerName"
	FieldNotes                 = "notes"
	FieldSource                = "source"
)

// SourceImport marks records produced by the import pipeline
const SourceImport = "import"

// MergeMode is the batch policy for where extractions go
type MergeMode string

const (
	MergeNew      MergeMode = "new"      // One fresh property per extraction
	MergeExisting MergeMode = "existing" // Fold everything into one target property
)

// BatchFile pairs an uploaded file with its document type
type BatchFile struct {
	FileName     string       `json:"fileName"`
	ContentType  string       `json:"contentType,omitempty"`
	DocumentType DocumentType `json:"documentType"`
	Data         []byte       `json:"-"`
}

// BatchFailure records why one batch file did not complete
type BatchFailure struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// BatchProgress is a read-only snapshot of a user's batch run
type BatchProgress struct {
	CurrentFileIndex int            `json:"currentFileIndex"`
	TotalFiles       int            `json:"totalFiles"`
	CompletedFiles   []string       `json:"completedFiles"`
	FailedFiles      []BatchFailure `json:"failedFiles"`
	SessionIDs       []string       `json:"sessionIds"`
	IsProcessing     bool           `json:"isProcessing"`
	Cancelled        bool           `json:"cancelled"`
	MergeMode        MergeMode      `json:"mergeMode,omitempty"`
	TargetID         string         `json:"targetId,omitempty"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
}
