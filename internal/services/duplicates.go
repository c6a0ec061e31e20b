package services

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/models"
)

// findDuplicate looks for an existing property with the same matricule, then the same street address
func findDuplicate(d models.ExtractedPropertyData, existing []models.Property) *models.DuplicateProperty {
	if d.Matricule != nil {
		want := digitsOnly(*d.Matricule)
		if want != "" {
			for _, p := range existing {
				if digitsOnly(p.String(models.FieldMatricule)) == want {
					return &models.DuplicateProperty{ID: p.ID, Address: p.String(models.FieldAddress), MatchedOn: "matricule"}
				}
			}
		}
	}
	if d.Address != nil {
		want := streetKey(*d.Address)
		if want != "" {
			for _, p := range existing {
				if streetKey(p.String(models.FieldAddress)) == want {
					return &models.DuplicateProperty{ID: p.ID, Address: p.String(models.FieldAddress), MatchedOn: "address"}
				}
			}
		}
	}
	return nil
}

// streetKey folds the part of an address before the first comma to lower-case
// ASCII words, so "123 Rue Lévis" and "123 rue levis" compare equal
func streetKey(address string) string {
	if i := strings.Index(address, ","); i >= 0 {
		address = address[:i]
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, address)
	if err != nil {
		folded = address
	}
	fields := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (i *Importer) detectDuplicates(ctx context.Context, extractions []models.PropertyExtraction) {
	if i.store == nil {
		return
	}
	existing, err := i.store.GetAll(ctx)
	if err != nil {
		logger.Warn(ctx, "import.duplicates.lookup_failed", "error", err)
		return
	}
	for idx := range extractions {
		extractions[idx].DuplicateProperty = findDuplicate(extractions[idx].ExtractedData, existing)
	}
}
