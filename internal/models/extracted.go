package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/evalIA/property-import-service/internal/normalize"
)

// ExtractedPropertyData is one raw record returned by the LLM.
// Well-known fields are typed; anything else lands in Extra.
type ExtractedPropertyData struct {
	// Location
	Address      *string `json:"address,omitempty"`      // Full civic address
	City         *string `json:"city,omitempty"`         // Ville
	PostalCode   *string `json:"postalCode,omitempty"`   // A1A 1A1
	Municipality *string `json:"municipality,omitempty"` // Municipalite (may differ from postal city)
	Province     *string `json:"province,omitempty"`     // QC, ON...

	// Listing / sale
	PropertyType *string  `json:"propertyType,omitempty"` // Unifamiliale, condo, plex...
	MLSNumber    *string  `json:"mlsNumber,omitempty"`    // No Centris / MLS
	Price        *float64 `json:"price,omitempty"`        // Prix demande
	SalePrice    *float64 `json:"salePrice,omitempty"`    // Prix de vente
	SaleDate     *string  `json:"saleDate,omitempty"`     // YYYY-MM-DD
	YearBuilt    *int     `json:"yearBuilt,omitempty"`    // Annee de construction

	// Dimensions
	Surface    *float64 `json:"surface,omitempty"`    // Superficie du terrain (m²)
	LivingArea *float64 `json:"livingArea,omitempty"` // Superficie habitable (pi²)
	Frontage   *float64 `json:"frontage,omitempty"`   // Front (m)
	Depth      *float64 `json:"depth,omitempty"`      // Profondeur (m)

	// Assessment roll
	TerrainValue          *float64 `json:"terrainValue,omitempty"`          // Valeur du terrain
	BatimentValue         *float64 `json:"batimentValue,omitempty"`         // Valeur du batiment
	TotalValue            *float64 `json:"totalValue,omitempty"`            // Valeur de l'immeuble
	PreviousTotalValue    *float64 `json:"previousTotalValue,omitempty"`    // Valeur au role anterieur
	EvaluationDate        *string  `json:"evaluationDate,omitempty"`        // Date de reference au marche
	AssessmentPeriodStart *string  `json:"assessmentPeriodStart,omitempty"` // Debut du role triennal

	// Identifiers
	Matricule  *string `json:"matricule,omitempty"`  // Matricule / numero de compte
	LotNumber  *string `json:"lotNumber,omitempty"`  // Numero de lot (cadastre du Quebec)
	Cadastre   *string `json:"cadastre,omitempty"`   // Cadastre / circonscription fonciere
	Zoning     *string `json:"zoning,omitempty"`     // Zone (ex: H-123)
	ZoningUses *string `json:"zoningUses,omitempty"` // Usages permis

	// Taxes
	MunicipalTax     *float64 `json:"municipalTax,omitempty"`     // Taxes municipales annuelles
	MunicipalTaxYear *int     `json:"municipalTaxYear,omitempty"` // Annee du compte
	SchoolTax        *float64 `json:"schoolTax,omitempty"`        // Taxe scolaire annuelle
	SchoolTaxYear    *int     `json:"schoolTaxYear,omitempty"`    // Annee scolaire (debut)

	// Rooms
	Rooms       *int    `json:"rooms,omitempty"`       // Nombre de pieces
	Bedrooms    *int    `json:"bedrooms,omitempty"`    // Chambres
	Bathrooms   *int    `json:"bathrooms,omitempty"`   // Salles de bain
	PowderRooms *int    `json:"powderRooms,omitempty"` // Salles d'eau
	Parking     *string `json:"parking,omitempty"`     // Stationnement (free text)

	// Multi-unit
	UnitCount   *int      `json:"unitCount,omitempty"`   // Nombre de logements
	UnitNumbers []string  `json:"unitNumbers,omitempty"` // Numeros de logement
	UnitRents   []float64 `json:"unitRents,omitempty"`   // Loyers mensuels, same order as UnitNumbers

	// Parties
	SellerName *string `json:"sellerName,omitempty"` // Vendeur
	BuyerName  *string `json:"buyerName,omitempty"`  // Acheteur
	OwnerName  *string `json:"ownerName,omitempty"`  // Proprietaire inscrit

	// Free text
	Extras *string `json:"extras,omitempty"` // Inclusions, exclusions, remarks

	// Unrecognized keys
	Extra map[string]interface{} `json:"-"`
}

// Field is one populated (name, value) pair of an extraction
type Field struct {
	Name  string
	Value interface{}
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindInt
	kindStrings
	kindNumbers
)

type fieldSpec struct {
	name  string
	index int
	kind  fieldKind
}

var (
	extractedFields  = buildFieldSpecs()
	extractedByName  = indexFieldSpecs(extractedFields)
	stringPtrType    = reflect.TypeOf((*string)(nil))
	float64PtrType   = reflect.TypeOf((*float64)(nil))
	intPtrType       = reflect.TypeOf((*int)(nil))
	stringSliceType  = reflect.TypeOf([]string(nil))
	float64SliceType = reflect.TypeOf([]float64(nil))
)

func buildFieldSpecs() []fieldSpec {
	t := reflect.TypeOf(ExtractedPropertyData{})
	specs := make([]fieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		var kind fieldKind
		switch f.Type {
		case stringPtrType:
			kind = kindString
		case float64PtrType:
			kind = kindNumber
		case intPtrType:
			kind = kindInt
		case stringSliceType:
			kind = kindStrings
		case float64SliceType:
			kind = kindNumbers
		default:
			panic(fmt.Sprintf("models: unsupported extracted field type %s for %s", f.Type, name))
		}
		specs = append(specs, fieldSpec{name: name, index: i, kind: kind})
	}
	return specs
}

func indexFieldSpecs(specs []fieldSpec) map[string]fieldSpec {
	m := make(map[string]fieldSpec, len(specs))
	for _, s := range specs {
		m[s.name] = s
	}
	return m
}

// KnownFieldNames lists the well-known extraction keys in declaration order
func KnownFieldNames() []string {
	names := make([]string, len(extractedFields))
	for i, s := range extractedFields {
		names[i] = s.name
	}
	return names
}

// IsKnownField reports whether name is a typed field of ExtractedPropertyData
func IsKnownField(name string) bool {
	_, ok := extractedByName[name]
	return ok
}

// IsNumericField reports whether name holds a number (or list of numbers)
func IsNumericField(name string) bool {
	s, ok := extractedByName[name]
	return ok && (s.kind == kindNumber || s.kind == kindInt || s.kind == kindNumbers)
}

// NewExtractedPropertyData builds a record from a decoded JSON object,
// coercing well-known fields to their types. Values that cannot be coerced are dropped.
func NewExtractedPropertyData(raw map[string]interface{}) ExtractedPropertyData {
	var d ExtractedPropertyData
	for k, v := range raw {
		d.Set(k, v)
	}
	return d
}

// Set assigns a value, coercing it for well-known fields.
// Returns false when the value is null or cannot be coerced.
func (d *ExtractedPropertyData) Set(name string, v interface{}) bool {
	if v == nil {
		return false
	}
	spec, ok := extractedByName[name]
	if !ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return false
		}
		if d.Extra == nil {
			d.Extra = make(map[string]interface{})
		}
		d.Extra[name] = v
		return true
	}

	field := reflect.ValueOf(d).Elem().Field(spec.index)
	switch spec.kind {
	case kindString:
		s, ok := coerceString(v)
		if !ok {
			return false
		}
		field.Set(reflect.ValueOf(&s))
	case kindNumber:
		n, ok := normalize.ParseNumber(v)
		if !ok {
			return false
		}
		field.Set(reflect.ValueOf(&n))
	case kindInt:
		i, ok := normalize.ParseInt(v)
		if !ok {
			return false
		}
		field.Set(reflect.ValueOf(&i))
	case kindStrings:
		list := coerceStrings(v)
		if len(list) == 0 {
			return false
		}
		field.Set(reflect.ValueOf(list))
	case kindNumbers:
		list := coerceNumbers(v)
		if len(list) == 0 {
			return false
		}
		field.Set(reflect.ValueOf(list))
	}
	return true
}

// Get returns the dereferenced value of a populated field
func (d ExtractedPropertyData) Get(name string) (interface{}, bool) {
	spec, ok := extractedByName[name]
	if !ok {
		v, found := d.Extra[name]
		return v, found
	}
	field := reflect.ValueOf(d).Field(spec.index)
	if field.IsNil() {
		return nil, false
	}
	if field.Kind() == reflect.Ptr {
		return field.Elem().Interface(), true
	}
	return field.Interface(), true
}

// Fields returns populated fields: well-known ones in declaration order, then Extra keys sorted
func (d ExtractedPropertyData) Fields() []Field {
	var out []Field
	for _, spec := range extractedFields {
		if v, ok := d.Get(spec.name); ok {
			out = append(out, Field{Name: spec.name, Value: v})
		}
	}
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if d.Extra[k] != nil {
			out = append(out, Field{Name: k, Value: d.Extra[k]})
		}
	}
	return out
}

// FieldCount is the number of non-null fields
func (d ExtractedPropertyData) FieldCount() int {
	return len(d.Fields())
}

// Map flattens the record into a plain JSON-style object
func (d ExtractedPropertyData) Map() map[string]interface{} {
	m := make(map[string]interface{})
	for _, f := range d.Fields() {
		m[f.Name] = f.Value
	}
	return m
}

// Clone returns a deep copy
func (d ExtractedPropertyData) Clone() ExtractedPropertyData {
	var c ExtractedPropertyData
	for _, f := range d.Fields() {
		switch v := f.Value.(type) {
		case []string:
			c.Set(f.Name, append([]string(nil), v...))
		case []float64:
			c.Set(f.Name, append([]float64(nil), v...))
		default:
			c.Set(f.Name, v)
		}
	}
	return c
}

func (d ExtractedPropertyData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}

func (d *ExtractedPropertyData) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = NewExtractedPropertyData(raw)
	return nil
}

func coerceString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case []interface{}:
		parts := coerceStrings(val)
		return strings.Join(parts, ", "), len(parts) > 0
	default:
		return "", false
	}
}

func coerceStrings(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := coerceString(item); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := coerceString(v); ok {
			return []string{s}
		}
		return nil
	}
}

func coerceNumbers(v interface{}) []float64 {
	switch val := v.(type) {
	case []float64:
		return val
	case []interface{}:
		out := make([]float64, 0, len(val))
		for _, item := range val {
			if n, ok := normalize.ParseNumber(item); ok {
				out = append(out, n)
			}
		}
		return out
	default:
		if n, ok := normalize.ParseNumber(v); ok {
			return []float64{n}
		}
		return nil
	}
}
