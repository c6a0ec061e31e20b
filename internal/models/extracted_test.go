package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewExtractedPropertyDataCoercion(t *testing.T) {
	raw := map[string]interface{}{
		"address":      " 123 Rue Principale, Longueuil, H1H 1H1 ",
		"surface":      "353,2 m²",
		"terrainValue": "247 200$",
		"yearBuilt":    1987.0,
		"bedrooms":     "3",
		"matricule":    12345678.0,
		"unitNumbers":  []interface{}{"101", 102.0},
		"unitRents":    []interface{}{"1 150 $", 975.0},
		"price":        "N/A",
		"city":         nil,
		"piscine":      true,
	}

	d := NewExtractedPropertyData(raw)

	if d.Address == nil || *d.Address != "123 Rue Principale, Longueuil, H1H 1H1" {
		t.Errorf("Expected trimmed address, got %v", d.Address)
	}
	if d.Surface == nil || *d.Surface != 353.2 {
		t.Errorf("Expected surface 353.2, got %v", d.Surface)
	}
	if d.TerrainValue == nil || *d.TerrainValue != 247200 {
		t.Errorf("Expected terrainValue 247200, got %v", d.TerrainValue)
	}
	if d.YearBuilt == nil || *d.YearBuilt != 1987 {
		t.Errorf("Expected yearBuilt 1987, got %v", d.YearBuilt)
	}
	if d.Bedrooms == nil || *d.Bedrooms != 3 {
		t.Errorf("Expected bedrooms 3, got %v", d.Bedrooms)
	}
	if d.Matricule == nil || *d.Matricule != "12345678" {
		t.Errorf("Expected matricule string, got %v", d.Matricule)
	}
	if !reflect.DeepEqual(d.UnitNumbers, []string{"101", "102"}) {
		t.Errorf("Unexpected unitNumbers %v", d.UnitNumbers)
	}
	if !reflect.DeepEqual(d.UnitRents, []float64{1150, 975}) {
		t.Errorf("Unexpected unitRents %v", d.UnitRents)
	}
	if d.Price != nil {
		t.Errorf("Expected unparseable price to be dropped, got %v", *d.Price)
	}
	if d.City != nil {
		t.Error("Expected null city to stay unset")
	}
	if d.Extra["piscine"] != true {
		t.Errorf("Expected unknown key in Extra, got %v", d.Extra)
	}
}

func TestSetRejectsOutOfRangeIntegers(t *testing.T) {
	d := NewExtractedPropertyData(map[string]interface{}{
		"yearBuilt": 1e300,
		"unitCount": -1e19,
		"rooms":     "4 1/2",
		"bedrooms":  2.9,
	})
	if d.YearBuilt != nil || d.UnitCount != nil {
		t.Errorf("Expected out of range values dropped, got %v %v", d.YearBuilt, d.UnitCount)
	}
	if d.Rooms == nil || *d.Rooms != 4 {
		t.Errorf("Expected 4 rooms from 4 1/2, got %v", d.Rooms)
	}
	if d.Bedrooms == nil || *d.Bedrooms != 2 {
		t.Errorf("Expected bedrooms truncated to 2, got %v", d.Bedrooms)
	}
}

func TestExtractedFieldsOrder(t *testing.T) {
	d := NewExtractedPropertyData(map[string]interface{}{
		"zzz":          "last",
		"schoolTax":    300.0,
		"address":      "1 Rue A, Laval, H7A 1A1",
		"aaa":          "extra first",
		"municipalTax": 2100.0,
	})

	var names []string
	for _, f := range d.Fields() {
		names = append(names, f.Name)
	}
	want := []string{"address", "municipalTax", "schoolTax", "aaa", "zzz"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
	if d.FieldCount() != 5 {
		t.Errorf("Expected 5 fields, got %d", d.FieldCount())
	}
}

func TestExtractedJSONRoundTrip(t *testing.T) {
	d := NewExtractedPropertyData(map[string]interface{}{
		"address":   "1 Rue A",
		"surface":   353.2,
		"bedrooms":  2.0,
		"garage":    "double",
		"unitRents": []interface{}{900.0},
	})

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back ExtractedPropertyData
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(d, back) {
		t.Errorf("Round trip mismatch:\n%+v\n%+v", d, back)
	}
}

func TestKnownFields(t *testing.T) {
	if !IsKnownField("terrainValue") || IsKnownField("piscine") {
		t.Error("IsKnownField mismatch")
	}
	if !IsNumericField("unitRents") || !IsNumericField("yearBuilt") || IsNumericField("address") {
		t.Error("IsNumericField mismatch")
	}
	if len(KnownFieldNames()) < 40 {
		t.Errorf("Expected at least 40 known fields, got %d", len(KnownFieldNames()))
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := &ImportSession{ID: "s1", Status: StatusReview}
	s.Extractions = []PropertyExtraction{{
		ExtractedData: NewExtractedPropertyData(map[string]interface{}{"city": "Laval"}),
	}}

	snap := s.Snapshot()
	snap.Extractions[0].ExtractedData.Set("city", "Longueuil")
	snap.Extractions[0].Action = ActionSkip
	snap.Errors = append(snap.Errors, "x")

	if *s.Extractions[0].ExtractedData.City != "Laval" {
		t.Error("Snapshot shares extracted data with session")
	}
	if s.Extractions[0].Action != ActionUnset || len(s.Errors) != 0 {
		t.Error("Snapshot shares state with session")
	}
}

func TestParseDocumentType(t *testing.T) {
	if dt, ok := ParseDocumentType("role_foncier"); !ok || dt != DocRoleFoncier {
		t.Errorf("Expected role_foncier, got %q %v", dt, ok)
	}
	if _, ok := ParseDocumentType("invoice"); ok {
		t.Error("Expected unknown type to be rejected")
	}
	if len(AllDocumentTypes()) != 9 {
		t.Errorf("Expected 9 document types, got %d", len(AllDocumentTypes()))
	}
}
