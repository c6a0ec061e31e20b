package models

// DocumentType selects the instruction template and field set for an import
type DocumentType string

const (
	DocMLSListing             DocumentType = "mls_listing"             // Fiche descriptive (Centris/MLS)
	DocRoleFoncier            DocumentType = "role_foncier"            // Role d'evaluation fonciere
	DocRoleTaxe               DocumentType = "role_taxe"               // Compte de taxes municipales
	DocTaxeScolaire           DocumentType = "taxe_scolaire"           // Compte de taxe scolaire
	DocZonage                 DocumentType = "zonage"                  // Certificat / grille de zonage
	DocActeVente              DocumentType = "acte_vente"              // Acte de vente notarie
	DocCertificatLocalisation DocumentType = "certificat_localisation" // Certificat de localisation
	DocPlanCadastre           DocumentType = "plan_cadastre"           // Plan cadastral
	DocAutre                  DocumentType = "autre"                   // General fallback
)

// AllDocumentTypes returns the closed set in display order
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocMLSListing,
		DocRoleFoncier,
		DocRoleTaxe,
		DocTaxeScolaire,
		DocZonage,
		DocActeVente,
		DocCertificatLocalisation,
		DocPlanCadastre,
		DocAutre,
	}
}

// ParseDocumentType validates a raw tag against the closed set
func ParseDocumentType(s string) (DocumentType, bool) {
	for _, dt := range AllDocumentTypes() {
		if string(dt) == s {
			return dt, true
		}
	}
	return "", false
}

// Credentials is the resolved (apiKey, provider, model) triple used for one extraction
type Credentials struct {
	APIKey   string `json:"-"`
	Provider string `json:"provider"`         // "openai", "deepseek", "openrouter", "gemini"
	Model    string `json:"model,omitempty"` // Empty = provider default
}
