package models

// ValidationError represents a single validation error
type ValidationError struct {
	Field    string  `json:"field"`
	Code     string  `json:"code"`
	Expected float64 `json:"expected,omitempty"`
	Actual   float64 `json:"actual,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of cross-checking one extraction
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needsReview"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
}

// Clone returns a deep copy
func (r *ValidationResult) Clone() *ValidationResult {
	if r == nil {
		return nil
	}
	return &ValidationResult{
		Valid:       r.Valid,
		NeedsReview: r.NeedsReview,
		Errors:      append([]ValidationError{}, r.Errors...),
		Warnings:    append([]ValidationWarning{}, r.Warnings...),
	}
}
