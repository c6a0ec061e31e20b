package ai

import (
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/evalIA/property-import-service/internal/models"
)

// ScoreValue is the heuristic 0-100 trust score of one extracted value.
// Longer strings score higher; numbers beat free text.
func ScoreValue(v interface{}) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		n := utf8.RuneCountInString(val)
		switch {
		case n > 20:
			return 95
		case n >= 10:
			return 85
		case n >= 5:
			return 75
		case n >= 1:
			return 65
		}
		return 0
	case float64, float32, int, int64, json.Number:
		return 90
	case bool:
		return 85
	default:
		return 70
	}
}

// ScoreRecord scores every populated field of a record, in field order
func ScoreRecord(d models.ExtractedPropertyData) []models.FieldConfidence {
	fields := d.Fields()
	out := make([]models.FieldConfidence, 0, len(fields))
	for _, f := range fields {
		out = append(out, models.FieldConfidence{
			Field:      f.Name,
			Value:      f.Value,
			Confidence: ScoreValue(f.Value),
		})
	}
	return out
}

// AverageConfidence is the mean score rounded to one decimal, 0 for no fields
func AverageConfidence(scores []models.FieldConfidence) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0
	for _, s := range scores {
		total += s.Confidence
	}
	return math.Round(float64(total)/float64(len(scores))*10) / 10
}
