package app

import "errors"

var (
	// ErrFileTooLarge rejects uploads above the configured ceiling.
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrNoContent marks uploads from which no text could be extracted.
	ErrNoContent = errors.New("no extractable text content")
	// ErrDocumentNotFound signals a missing document record.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentNotReady rejects chat against a document that has not
	// completed ingestion.
	ErrDocumentNotReady = errors.New("document is not ready for chat")
	// ErrEmptyQuestion rejects blank chat input.
	ErrEmptyQuestion = errors.New("message required")
)
