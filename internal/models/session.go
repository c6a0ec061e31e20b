package models

import (
	"sync"
	"time"
)

// SessionStatus is the import session state machine:
// pending -> processing -> review -> completed, with failed reachable from pending or processing
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusReview     SessionStatus = "review"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// ExtractionAction is how a reviewed extraction is resolved
type ExtractionAction string

const (
	ActionUnset  ExtractionAction = ""
	ActionCreate ExtractionAction = "create"
	ActionMerge  ExtractionAction = "merge"
	ActionSkip   ExtractionAction = "skip"
)

// ParseExtractionAction validates a raw action string
func ParseExtractionAction(s string) (ExtractionAction, bool) {
	switch ExtractionAction(s) {
	case ActionCreate, ActionMerge, ActionSkip:
		return ExtractionAction(s), true
	}
	return ActionUnset, false
}

// Session sources
const (
	SourceUpload = "upload"
	SourceBatch  = "batch"
)

// FieldConfidence is the heuristic trust score of one extracted field
type FieldConfidence struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
	Confidence int         `json:"confidence"` // 0-100
}

// DuplicateProperty points at an existing property that looks like the same building
type DuplicateProperty struct {
	ID        string `json:"id"`
	Address   string `json:"address,omitempty"`
	MatchedOn string `json:"matchedOn"` // "matricule" or "address"
}

// PropertyExtraction is one property candidate found in a document
type PropertyExtraction struct {
	ExtractedData     ExtractedPropertyData `json:"extractedData"`
	FieldConfidences  []FieldConfidence     `json:"fieldConfidences"`
	AverageConfidence float64               `json:"averageConfidence"`
	FieldsExtracted   int                   `json:"fieldsExtracted"`
	DuplicateProperty *DuplicateProperty    `json:"duplicateProperty,omitempty"`
	Validation        *ValidationResult     `json:"validation,omitempty"`

	// Resolution
	Action           ExtractionAction `json:"action,omitempty"`
	TargetPropertyID string           `json:"targetPropertyId,omitempty"` // Merge target
	PropertyID       string           `json:"propertyId,omitempty"`       // Created or merged property
	Completed        bool             `json:"completed"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
}

// Resolved reports whether the extraction has been finalized (created, merged or skipped)
func (e *PropertyExtraction) Resolved() bool {
	return e.Completed
}

// ImportSession is the unit of work for one uploaded document.
// DocumentType and file identity never change after creation.
type ImportSession struct {
	mu sync.Mutex

	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	DocumentType DocumentType  `json:"documentType"`
	Source       string        `json:"source"` // "upload" or "batch"
	Status       SessionStatus `json:"status"`

	// File metadata
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType,omitempty"`
	StoragePath string `json:"storagePath,omitempty"` // MinIO object path, if archived

	// Extraction
	TextLength         int                  `json:"textLength"`
	Provider           string               `json:"provider,omitempty"`
	Model              string               `json:"model,omitempty"`
	ExtractionDuration float64              `json:"extractionDuration,omitempty"` // Seconds
	Extractions        []PropertyExtraction `json:"extractions"`

	// Single-record view, populated when the document yields exactly one record
	ExtractedData     *ExtractedPropertyData `json:"extractedData,omitempty"`
	FieldConfidences  []FieldConfidence      `json:"fieldConfidences,omitempty"`
	FieldsExtracted   int                    `json:"fieldsExtracted"`
	AverageConfidence float64                `json:"averageConfidence"`

	Errors      []string   `json:"errors"`
	PropertyIDs []string   `json:"propertyIds"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Lock serializes mutations of a session
func (s *ImportSession) Lock() { s.mu.Lock() }

// Unlock releases the session
func (s *ImportSession) Unlock() { s.mu.Unlock() }

// Snapshot returns a deep copy safe to hand to readers
func (s *ImportSession) Snapshot() *ImportSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &ImportSession{
		ID:                 s.ID,
		UserID:             s.UserID,
		DocumentType:       s.DocumentType,
		Source:             s.Source,
		Status:             s.Status,
		FileName:           s.FileName,
		FileSize:           s.FileSize,
		ContentType:        s.ContentType,
		StoragePath:        s.StoragePath,
		TextLength:         s.TextLength,
		Provider:           s.Provider,
		Model:              s.Model,
		ExtractionDuration: s.ExtractionDuration,
		FieldsExtracted:    s.FieldsExtracted,
		AverageConfidence:  s.AverageConfidence,
		Errors:             append([]string{}, s.Errors...),
		PropertyIDs:        append([]string{}, s.PropertyIDs...),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		CompletedAt:        copyTime(s.CompletedAt),
	}
	c.Extractions = make([]PropertyExtraction, len(s.Extractions))
	for i, e := range s.Extractions {
		e.ExtractedData = e.ExtractedData.Clone()
		e.FieldConfidences = append([]FieldConfidence(nil), e.FieldConfidences...)
		e.CompletedAt = copyTime(e.CompletedAt)
		if e.DuplicateProperty != nil {
			dup := *e.DuplicateProperty
			e.DuplicateProperty = &dup
		}
		if e.Validation != nil {
			e.Validation = e.Validation.Clone()
		}
		c.Extractions[i] = e
	}
	if s.ExtractedData != nil {
		d := s.ExtractedData.Clone()
		c.ExtractedData = &d
	}
	c.FieldConfidences = append([]FieldConfidence(nil), s.FieldConfidences...)
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
