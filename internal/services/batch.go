package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/models"
)

// BatchCoordinator runs at most one batch per user, one file at a time
type BatchCoordinator struct {
	importer *Importer
	maxFiles int

	mu   sync.Mutex
	runs map[string]*batchRun
}

type batchRun struct {
	mu        sync.Mutex
	progress  models.BatchProgress
	results   []BatchFileResult
	cancelled bool
	done      chan struct{}
}

// BatchFileResult is the outcome of one file in a batch
type BatchFileResult struct {
	FileName     string
	DocumentType models.DocumentType
	SessionID    string
	Status       models.SessionStatus
	Records      int
	PropertyIDs  []string
	Confidence   float64
	Error        string
}

// NewBatchCoordinator creates a coordinator; maxFiles <= 0 means no limit
func NewBatchCoordinator(importer *Importer, maxFiles int) *BatchCoordinator {
	return &BatchCoordinator{
		importer: importer,
		maxFiles: maxFiles,
		runs:     make(map[string]*batchRun),
	}
}

// StartBatch validates the request and starts processing in the background.
// It returns ErrBatchAlreadyRunning while the user's previous batch is active.
func (b *BatchCoordinator) StartBatch(ctx context.Context, userID string, files []models.BatchFile, mode models.MergeMode, targetID string, creds models.Credentials) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files", ErrInput)
	}
	if b.maxFiles > 0 && len(files) > b.maxFiles {
		return fmt.Errorf("%w: %d files exceeds the limit of %d", ErrInput, len(files), b.maxFiles)
	}
	switch mode {
	case models.MergeNew:
		targetID = ""
	case models.MergeExisting:
		if targetID == "" {
			return fmt.Errorf("%w: merge mode %q requires a target property", ErrInput, mode)
		}
		if _, err := b.importer.store.Get(ctx, targetID); err != nil {
			return fmt.Errorf("merge target %s: %w", targetID, err)
		}
	default:
		return fmt.Errorf("%w: unknown merge mode %q", ErrInput, mode)
	}
	for _, f := range files {
		if err := preflight(f.DocumentType, creds); err != nil {
			return err
		}
	}

	// Freeze the queue
	queue := make([]models.BatchFile, len(files))
	for i, f := range files {
		f.Data = append([]byte(nil), f.Data...)
		queue[i] = f
	}

	b.mu.Lock()
	if prev, ok := b.runs[userID]; ok && prev.running() {
		b.mu.Unlock()
		return ErrBatchAlreadyRunning
	}
	now := time.Now()
	run := &batchRun{
		progress: models.BatchProgress{
			TotalFiles:     len(queue),
			CompletedFiles: []string{},
			FailedFiles:    []models.BatchFailure{},
			SessionIDs:     []string{},
			IsProcessing:   true,
			MergeMode:      mode,
			TargetID:       targetID,
			StartedAt:      &now,
		},
		done: make(chan struct{}),
	}
	b.runs[userID] = run
	b.mu.Unlock()

	bctx := logger.WithUser(context.WithoutCancel(ctx), userID)
	logger.Info(bctx, "batch.start", "files", len(queue), "merge_mode", mode, "target_id", targetID)
	go b.loop(bctx, userID, run, queue, mode, targetID, creds)
	return nil
}

func (b *BatchCoordinator) loop(ctx context.Context, userID string, run *batchRun, queue []models.BatchFile, mode models.MergeMode, targetID string, creds models.Credentials) {
	start := time.Now()
	defer close(run.done)
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "batch.panic", "panic", r)
		}
		run.mu.Lock()
		finished := time.Now()
		run.progress.IsProcessing = false
		run.progress.FinishedAt = &finished
		run.mu.Unlock()

		p := run.snapshot()
		logger.Info(ctx, "batch.done",
			"completed", len(p.CompletedFiles),
			"failed", len(p.FailedFiles),
			"cancelled", p.Cancelled,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}()

	for idx, f := range queue {
		run.mu.Lock()
		if run.cancelled {
			run.progress.Cancelled = true
			run.mu.Unlock()
			logger.Info(ctx, "batch.cancelled", "remaining", len(queue)-idx)
			return
		}
		run.progress.CurrentFileIndex = idx
		run.mu.Unlock()

		result := b.processFile(ctx, userID, f, mode, targetID, creds)

		run.mu.Lock()
		run.results = append(run.results, result)
		if result.SessionID != "" {
			run.progress.SessionIDs = append(run.progress.SessionIDs, result.SessionID)
		}
		if result.Error == "" {
			run.progress.CompletedFiles = append(run.progress.CompletedFiles, f.FileName)
		} else {
			run.progress.FailedFiles = append(run.progress.FailedFiles, models.BatchFailure{FileName: f.FileName, Error: result.Error})
		}
		run.mu.Unlock()

		if result.Error != "" {
			logger.Warn(ctx, "batch.file.failed", "file", f.FileName, "index", idx, "error", result.Error)
		} else {
			logger.Info(ctx, "batch.file.ok", "file", f.FileName, "index", idx, "property_ids", result.PropertyIDs)
		}
	}

	run.mu.Lock()
	run.progress.CurrentFileIndex = len(queue)
	run.mu.Unlock()
}

// processFile imports one file and finalizes every extraction according to the merge mode
func (b *BatchCoordinator) processFile(ctx context.Context, userID string, f models.BatchFile, mode models.MergeMode, targetID string, creds models.Credentials) BatchFileResult {
	result := BatchFileResult{FileName: f.FileName, DocumentType: f.DocumentType}

	session := b.importer.process(ctx, userID, DocumentFile{Name: f.FileName, ContentType: f.ContentType, Data: f.Data}, f.DocumentType, creds, models.SourceBatch)
	result.SessionID = session.ID

	snap := session.Snapshot()
	if snap.Status == models.StatusFailed {
		result.Status = snap.Status
		result.Error = strings.Join(snap.Errors, "; ")
		return result
	}
	result.Records = len(snap.Extractions)
	result.Confidence = snap.AverageConfidence

	action, target := models.ActionCreate, ""
	if mode == models.MergeExisting {
		action, target = models.ActionMerge, targetID
	}

	var errs []error
	for idx := range snap.Extractions {
		if err := b.importer.ResolveAction(session, idx, action, target); err != nil {
			errs = append(errs, err)
			continue
		}
		id, err := b.importer.CreatePropertyFromImport(ctx, session, idx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.PropertyIDs = append(result.PropertyIDs, id)
	}

	result.Status = session.Snapshot().Status
	if err := errors.Join(errs...); err != nil {
		result.Error = err.Error()
	}
	return result
}

// Progress returns a snapshot of the user's latest batch
func (b *BatchCoordinator) Progress(userID string) models.BatchProgress {
	run := b.run(userID)
	if run == nil {
		return models.BatchProgress{
			CompletedFiles: []string{},
			FailedFiles:    []models.BatchFailure{},
			SessionIDs:     []string{},
		}
	}
	return run.snapshot()
}

// Cancel asks the running batch to stop before its next file.
// Returns false when no batch is running.
func (b *BatchCoordinator) Cancel(userID string) bool {
	run := b.run(userID)
	if run == nil || !run.running() {
		return false
	}
	run.mu.Lock()
	run.cancelled = true
	run.mu.Unlock()
	return true
}

// Wait blocks until the user's current batch finishes or ctx is done
func (b *BatchCoordinator) Wait(ctx context.Context, userID string) error {
	run := b.run(userID)
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the per-file outcomes of the user's latest batch
func (b *BatchCoordinator) Results(userID string) []BatchFileResult {
	run := b.run(userID)
	if run == nil {
		return nil
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	out := make([]BatchFileResult, len(run.results))
	for i, r := range run.results {
		r.PropertyIDs = append([]string(nil), r.PropertyIDs...)
		out[i] = r
	}
	return out
}

func (b *BatchCoordinator) run(userID string) *batchRun {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs[userID]
}

func (r *batchRun) running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func (r *batchRun) snapshot() models.BatchProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.progress
	p.CompletedFiles = append([]string{}, p.CompletedFiles...)
	p.FailedFiles = append([]models.BatchFailure{}, p.FailedFiles...)
	p.SessionIDs = append([]string{}, p.SessionIDs...)
	if p.StartedAt != nil {
		t := *p.StartedAt
		p.StartedAt = &t
	}
	if p.FinishedAt != nil {
		t := *p.FinishedAt
		p.FinishedAt = &t
	}
	return p
}
