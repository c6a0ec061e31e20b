package services

import "errors"

var (
	// ErrInput covers unusable uploads: empty files, non-PDF payloads, too little text
	ErrInput = errors.New("invalid input")
	// ErrUnknownDocumentType is returned for a document type outside the closed set
	ErrUnknownDocumentType = errors.New("unknown document type")
	// ErrBatchAlreadyRunning rejects a second batch for the same user
	ErrBatchAlreadyRunning = errors.New("a batch import is already running")
	// ErrDuplicateCompletion rejects completing an extraction twice
	ErrDuplicateCompletion = errors.New("import already completed")
	// ErrActionUnresolved is returned when completing an extraction with no action chosen
	ErrActionUnresolved = errors.New("extraction action not resolved")
	// ErrInvalidState is returned when a session is not awaiting review
	ErrInvalidState = errors.New("session is not in review")
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("import session not found")
)
