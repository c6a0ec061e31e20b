package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evalIA/property-import-service/internal/models"
)

// ErrNotFound is returned when a property id does not exist
var ErrNotFound = errors.New("property not found")

// columns maps canonical property fields to table columns
var columns = map[string]string{
	models.FieldAddress:               "address",
	models.FieldCity:                  "city",
	models.FieldPostalCode:            "postal_code",
	models.FieldMunicipality:          "municipality",
	models.FieldProvince:              "province",
	models.FieldPropertyType:          "property_type",
	models.FieldMLSNumber:             "mls_number",
	models.FieldAskingPrice:           "asking_price",
	models.FieldSalePrice:             "sale_price",
	models.FieldSaleDate:              "sale_date",
	models.FieldYearBuilt:             "year_built",
	models.FieldLandArea:              "land_area",
	models.FieldLivingArea:            "living_area",
	models.FieldFrontage:              "frontage",
	models.FieldDepth:                 "depth",
	models.FieldLandValue:             "land_value",
	models.FieldBuildingValue:         "building_value",
	models.FieldAssessedValue:         "assessed_value",
	models.FieldPreviousAssessedValue: "previous_assessed_value",
	models.FieldAssessmentDate:        "assessment_date",
	models.FieldAssessmentPeriodStart: "assessment_period_start",
	models.FieldMatricule:             "matricule",
	models.FieldLotNumber:             "lot_number",
	models.FieldCadastre:              "cadastre",
	models.FieldZoning:                "zoning",
	models.FieldZoningUses:            "zoning_uses",
	models.FieldMunicipalTax:          "municipal_tax",
	models.FieldMunicipalTaxYear:      "municipal_tax_year",
	models.FieldSchoolTax:             "school_tax",
	models.FieldSchoolTaxYear:         "school_tax_year",
	models.FieldRooms:                 "rooms",
	models.FieldBedrooms:              "bedrooms",
	models.FieldBathrooms:             "bathrooms",
	models.FieldPowderRooms:           "powder_rooms",
	models.FieldParking:               "parking",
	models.FieldUnitCount:             "unit_count",
	models.FieldUnitNumbers:           "unit_numbers",
	models.FieldUnitRents:             "unit_rents",
	models.FieldSellerName:            "seller_name",
	models.FieldBuyerName:             "buyer_name",
	models.FieldOwnerName:             "owner_name",
	models.FieldNotes:                 "notes",
	models.FieldSource:                "source",
}

var fieldsByColumn = invert(columns)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// sortedInput returns the known fields of input in a stable order, with their column names
func sortedInput(input models.PropertyInput) (cols []string, args []interface{}) {
	keys := make([]string, 0, len(input))
	for k := range input {
		if _, ok := columns[k]; ok {
			keys = append(keys, k)
		} else {
			slog.Debug("db.property.unknown_field", "field", k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		cols = append(cols, columns[k])
		args = append(args, input[k])
	}
	return cols, args
}

const selectProperty = `SELECT id::text, created_at, updated_at,
	to_jsonb(p) - 'id' - 'created_at' - 'updated_at'
	FROM properties p`

// buildInsert builds the INSERT for a partial record; absent columns take their defaults
func buildInsert(input models.PropertyInput) (string, []interface{}) {
	cols, args := sortedInput(input)
	if len(cols) == 0 {
		return `INSERT INTO properties DEFAULT VALUES RETURNING id::text, created_at, updated_at`, nil
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO properties (%s) VALUES (%s) RETURNING id::text, created_at, updated_at",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args
}

// buildUpdate builds a dynamic UPDATE touching only the given fields
func buildUpdate(id string, input models.PropertyInput, now time.Time) (string, []interface{}) {
	cols, vals := sortedInput(input)

	sets := []string{}
	args := []interface{}{}
	i := 1
	for idx, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, vals[idx])
		i++
	}

	// Add updated_at
	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, now)
	i++

	// Add property ID as last parameter
	args = append(args, id)

	query := fmt.Sprintf("UPDATE properties SET %s WHERE id = $%d RETURNING id::text",
		strings.Join(sets, ", "), i)
	return query, args
}

// PGStore is the Postgres-backed property store
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store on the given pool
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts a new property
func (s *PGStore) Create(ctx context.Context, input models.PropertyInput) (*models.Property, error) {
	query, args := buildInsert(input)

	p := &models.Property{Fields: copyInput(input)}
	err := s.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	return p, nil
}

// Update sets the given fields on an existing property and returns the stored result
func (s *PGStore) Update(ctx context.Context, id string, input models.PropertyInput) (*models.Property, error) {
	query, args := buildUpdate(id, input, time.Now())

	var updated string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update property %s: %w", id, err)
	}
	return s.Get(ctx, updated)
}

// Get retrieves a single property by ID
func (s *PGStore) Get(ctx context.Context, id string) (*models.Property, error) {
	row := s.pool.QueryRow(ctx, selectProperty+" WHERE id::text = $1", id)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return p, nil
}

// GetAll lists properties, newest first
func (s *PGStore) GetAll(ctx context.Context) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, selectProperty+" ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	return properties, rows.Err()
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var (
		p   models.Property
		raw map[string]interface{}
	)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &raw); err != nil {
		return nil, err
	}
	p.Fields = fieldsFromColumns(raw)
	return &p, nil
}

// fieldsFromColumns converts a row object keyed by column into canonical fields, dropping nulls
func fieldsFromColumns(raw map[string]interface{}) models.PropertyInput {
	fields := make(models.PropertyInput, len(raw))
	for col, v := range raw {
		if v == nil {
			continue
		}
		if field, ok := fieldsByColumn[col]; ok {
			fields[field] = v
		}
	}
	return fields
}

func copyInput(in models.PropertyInput) models.PropertyInput {
	out := make(models.PropertyInput, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
