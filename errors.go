package defectscan

import "errors"

var (
	// ErrDocumentRead is returned when a document cannot be opened or parsed
	// at all. It aborts processing of that document only; remaining documents
	// in a batch continue.
	ErrDocumentRead = errors.New("defectscan: document read failure")

	// ErrDocumentNotFound is returned when a document ID or path does not exist.
	ErrDocumentNotFound = errors.New("defectscan: document not found")

	// ErrUnsupportedFormat is returned for files the configured block stream
	// provider cannot handle.
	ErrUnsupportedFormat = errors.New("defectscan: unsupported document format")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("defectscan: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("defectscan: store is closed")
)
