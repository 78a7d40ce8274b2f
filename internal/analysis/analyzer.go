package analysis

import (
	"context"
	"errors"

	"github.com/angelmondragon/docreview-backend/pkg/enums"
)

// ErrEmptyAnalysis is returned when the model answers with no text.
var ErrEmptyAnalysis = errors.New("analysis returned no text")

// Request carries what is known about a document at analysis time.
type Request struct {
	Name      string
	Type      enums.DocumentType
	PageCount int
	Text      string
}

// Analyzer turns a document into an opaque analysis text. Errors are service
// errors: callers keep the document without analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
