package documents

import "errors"

var (
	// ErrDocumentNotFound is returned for ids never issued or already swept.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidTransition is returned when deciding a document that already left pending.
	ErrInvalidTransition = errors.New("invalid document transition")
)
