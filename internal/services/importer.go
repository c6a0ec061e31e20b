package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evalIA/property-import-service/internal/ai"
	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/models"
)

// TextExtractor turns a PDF payload into plain text
type TextExtractor interface {
	ExtractText(data []byte) (string, float64, error)
}

// Extractor turns document text into property records
type Extractor interface {
	Extract(ctx context.Context, text string, docType models.DocumentType, creds models.Credentials) ([]models.ExtractedPropertyData, error)
}

// PropertyStore is the property create/update/lookup contract
type PropertyStore interface {
	Create(ctx context.Context, input models.PropertyInput) (*models.Property, error)
	Update(ctx context.Context, id string, input models.PropertyInput) (*models.Property, error)
	Get(ctx context.Context, id string) (*models.Property, error)
	GetAll(ctx context.Context) ([]models.Property, error)
}

// DocumentArchive keeps a copy of uploaded documents and returns where it was stored
type DocumentArchive interface {
	Archive(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

// DocumentFile is one uploaded document
type DocumentFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Importer runs import sessions through text extraction, LLM extraction,
// scoring, validation and finally property creation or merge
type Importer struct {
	text      TextExtractor
	llm       Extractor
	store     PropertyStore
	archive   DocumentArchive
	sessions  *SessionStore
	validator *AssessmentValidator
	minText   int
	now       func() time.Time
}

// NewImporter creates a new importer. minText is the trimmed character floor
// below which extracted text is rejected.
func NewImporter(text TextExtractor, llm Extractor, store PropertyStore, sessions *SessionStore, minText int) *Importer {
	if sessions == nil {
		sessions = NewSessionStore(0)
	}
	return &Importer{
		text:      text,
		llm:       llm,
		store:     store,
		sessions:  sessions,
		validator: NewAssessmentValidator(),
		minText:   minText,
		now:       time.Now,
	}
}

// WithArchive enables archiving of uploaded documents
func (i *Importer) WithArchive(a DocumentArchive) *Importer {
	i.archive = a
	return i
}

// Sessions exposes the session store
func (i *Importer) Sessions() *SessionStore {
	return i.sessions
}

// Store exposes the property store
func (i *Importer) Store() PropertyStore {
	return i.store
}

// ProcessDocument runs one uploaded document up to review. The returned session is
// either in review or failed. An error is returned only for pre-flight rejections
// (missing credentials, unknown document type), in which case no session exists.
func (i *Importer) ProcessDocument(ctx context.Context, userID string, file DocumentFile, docType models.DocumentType, creds models.Credentials) (*models.ImportSession, error) {
	if err := preflight(docType, creds); err != nil {
		return nil, err
	}
	return i.process(ctx, userID, file, docType, creds, models.SourceUpload), nil
}

func preflight(docType models.DocumentType, creds models.Credentials) error {
	if _, ok := models.ParseDocumentType(string(docType)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDocumentType, docType)
	}
	if strings.TrimSpace(creds.APIKey) == "" {
		return &ai.CredentialError{Provider: creds.Provider}
	}
	return nil
}

func (i *Importer) process(ctx context.Context, userID string, file DocumentFile, docType models.DocumentType, creds models.Credentials, source string) *models.ImportSession {
	now := i.now()
	session := &models.ImportSession{
		ID:           uuid.New().String(),
		UserID:       userID,
		DocumentType: docType,
		Source:       source,
		Status:       models.StatusPending,
		FileName:     file.Name,
		FileSize:     int64(len(file.Data)),
		ContentType:  file.ContentType,
		Provider:     creds.Provider,
		Model:        creds.Model,
		Extractions:  []models.PropertyExtraction{},
		Errors:       []string{},
		PropertyIDs:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	i.discardArchived(ctx, i.sessions.Put(session))

	ctx = logger.WithSession(ctx, session.ID)
	start := time.Now()
	logger.Info(ctx, "import.process.start",
		"file", file.Name,
		"size", len(file.Data),
		"document_type", docType,
		"source", source,
	)

	if err := i.run(ctx, session, file, docType, creds); err != nil {
		i.fail(session, err)
		logger.Warn(ctx, "import.process.failed",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return session
	}

	snap := session.Snapshot()
	logger.Info(ctx, "import.process.ok",
		"records", len(snap.Extractions),
		"fields_extracted", snap.FieldsExtracted,
		"average_confidence", snap.AverageConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return session
}

func (i *Importer) run(ctx context.Context, session *models.ImportSession, file DocumentFile, docType models.DocumentType, creds models.Credentials) error {
	if len(file.Data) == 0 {
		return fmt.Errorf("%w: file %q is empty", ErrInput, file.Name)
	}

	i.setStatus(session, models.StatusProcessing)

	if i.archive != nil {
		path, err := i.archive.Archive(ctx, session.UserID, file.Name, file.ContentType, file.Data)
		if err != nil {
			logger.Warn(ctx, "import.archive.failed", "error", err)
		} else {
			session.Lock()
			session.StoragePath = path
			session.Unlock()
		}
	}

	text, duration, err := i.text.ExtractText(file.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInput, err)
	}
	trimmed := strings.TrimSpace(text)
	if n := len([]rune(trimmed)); n < i.minText {
		return fmt.Errorf("%w: extracted text too short (%d characters, minimum %d)", ErrInput, n, i.minText)
	}
	logger.Debug(ctx, "import.text.ok", "text_len", len(trimmed), "duration_s", duration)

	session.Lock()
	session.TextLength = len(trimmed)
	session.Unlock()

	llmStart := time.Now()
	records, err := i.llm.Extract(ctx, trimmed, docType, creds)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no property records found in document")
	}

	extractions := make([]models.PropertyExtraction, len(records))
	var allScores []models.FieldConfidence
	for idx, rec := range records {
		scores := ai.ScoreRecord(rec)
		allScores = append(allScores, scores...)
		extractions[idx] = models.PropertyExtraction{
			ExtractedData:     rec,
			FieldConfidences:  scores,
			AverageConfidence: ai.AverageConfidence(scores),
			FieldsExtracted:   len(scores),
			Validation:        i.validator.Validate(rec),
		}
	}
	i.detectDuplicates(ctx, extractions)

	session.Lock()
	defer session.Unlock()
	session.ExtractionDuration = time.Since(llmStart).Seconds()
	session.Extractions = extractions
	session.FieldsExtracted = len(allScores)
	session.AverageConfidence = ai.AverageConfidence(allScores)
	if len(extractions) == 1 {
		data := extractions[0].ExtractedData.Clone()
		session.ExtractedData = &data
		session.FieldConfidences = extractions[0].FieldConfidences
	}
	session.Status = models.StatusReview
	session.UpdatedAt = i.now()
	return nil
}

func (i *Importer) setStatus(session *models.ImportSession, status models.SessionStatus) {
	session.Lock()
	session.Status = status
	session.UpdatedAt = i.now()
	session.Unlock()
}

func (i *Importer) fail(session *models.ImportSession, err error) {
	session.Lock()
	defer session.Unlock()
	session.Errors = append(session.Errors, err.Error())
	session.Status = models.StatusFailed
	session.UpdatedAt = i.now()
}

// ResolveAction records how a reviewed extraction should be finalized
func (i *Importer) ResolveAction(session *models.ImportSession, index int, action models.ExtractionAction, targetID string) error {
	if _, ok := models.ParseExtractionAction(string(action)); !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInput, action)
	}
	if action == models.ActionMerge && targetID == "" {
		return fmt.Errorf("%w: merge requires a target property", ErrInput)
	}

	session.Lock()
	defer session.Unlock()

	ex, err := reviewExtraction(session, index)
	if err != nil {
		return err
	}
	ex.Action = action
	ex.TargetPropertyID = ""
	if action == models.ActionMerge {
		ex.TargetPropertyID = targetID
	}
	session.UpdatedAt = i.now()
	return nil
}

// reviewExtraction returns the extraction at index if it can still be changed.
// Caller holds the session lock.
func reviewExtraction(session *models.ImportSession, index int) (*models.PropertyExtraction, error) {
	if session.Status == models.StatusCompleted {
		return nil, ErrDuplicateCompletion
	}
	if session.Status != models.StatusReview {
		return nil, fmt.Errorf("%w (status %s)", ErrInvalidState, session.Status)
	}
	if index < 0 || index >= len(session.Extractions) {
		return nil, fmt.Errorf("%w: extraction index %d out of range", ErrInput, index)
	}
	ex := &session.Extractions[index]
	if ex.Completed {
		return nil, ErrDuplicateCompletion
	}
	return ex, nil
}

// CreatePropertyFromImport finalizes one extraction according to its action and
// returns the created or merged property id ("" when skipped). Completing the same
// extraction twice fails with ErrDuplicateCompletion. The session moves to
// completed once every extraction is finalized.
func (i *Importer) CreatePropertyFromImport(ctx context.Context, session *models.ImportSession, index int) (string, error) {
	session.Lock()
	defer session.Unlock()

	ex, err := reviewExtraction(session, index)
	if err != nil {
		return "", err
	}
	ctx = logger.WithSession(ctx, session.ID)

	var propertyID string
	switch ex.Action {
	case models.ActionUnset:
		return "", ErrActionUnresolved
	case models.ActionSkip:
	case models.ActionCreate:
		p, err := i.store.Create(ctx, MapToPropertyInput(ctx, ex.ExtractedData))
		if err != nil {
			session.Errors = append(session.Errors, err.Error())
			return "", fmt.Errorf("failed to create property: %w", err)
		}
		propertyID = p.ID
	case models.ActionMerge:
		if _, err := i.store.Get(ctx, ex.TargetPropertyID); err != nil {
			return "", fmt.Errorf("merge target %s: %w", ex.TargetPropertyID, err)
		}
		p, err := i.store.Update(ctx, ex.TargetPropertyID, MapToPropertyInput(ctx, ex.ExtractedData))
		if err != nil {
			session.Errors = append(session.Errors, err.Error())
			return "", fmt.Errorf("failed to merge into property %s: %w", ex.TargetPropertyID, err)
		}
		propertyID = p.ID
	}

	now := i.now()
	ex.Completed = true
	ex.CompletedAt = &now
	ex.PropertyID = propertyID
	if propertyID != "" {
		session.PropertyIDs = append(session.PropertyIDs, propertyID)
	}
	session.UpdatedAt = now

	done := true
	for _, e := range session.Extractions {
		if !e.Completed {
			done = false
			break
		}
	}
	if done {
		session.Status = models.StatusCompleted
		session.CompletedAt = &now
	}

	logger.Info(ctx, "import.extraction.completed",
		"index", index,
		"action", ex.Action,
		"property_id", propertyID,
		"session_completed", done,
	)
	return propertyID, nil
}

// discardArchived removes the stored documents of evicted sessions
func (i *Importer) discardArchived(ctx context.Context, evicted []*models.ImportSession) {
	for _, snap := range evicted {
		logger.Debug(ctx, "import.session.evicted", "session_id", snap.ID, "status", snap.Status)
		if i.archive == nil || snap.StoragePath == "" {
			continue
		}
		if err := i.archive.Remove(ctx, snap.StoragePath); err != nil {
			logger.Warn(ctx, "import.archive.remove_failed", "path", snap.StoragePath, "error", err)
		}
	}
}

// Session looks up a session owned by userID
func (i *Importer) Session(userID, id string) (*models.ImportSession, error) {
	session, ok := i.sessions.Get(id)
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession drops a finished session and returns its final snapshot.
// Sessions still being processed cannot be deleted.
func (i *Importer) DeleteSession(ctx context.Context, userID, id string) (*models.ImportSession, error) {
	session, err := i.Session(userID, id)
	if err != nil {
		return nil, err
	}
	snap := session.Snapshot()
	if snap.Status == models.StatusPending || snap.Status == models.StatusProcessing {
		return nil, fmt.Errorf("%w (status %s)", ErrInvalidState, snap.Status)
	}
	i.sessions.Delete(id)
	if i.archive != nil && snap.StoragePath != "" {
		if err := i.archive.Remove(ctx, snap.StoragePath); err != nil {
			logger.Warn(ctx, "import.archive.remove_failed", "path", snap.StoragePath, "error", err)
		}
	}
	return snap, nil
}
