package documents

import (
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/enums"
)

// Record is a document in the active set of one review session.
type Record struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	Status     enums.DocumentStatus `json:"status"`
	UploadedAt time.Time            `json:"uploaded_at"`
	DecidedAt  *time.Time           `json:"decided_at,omitempty"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
	Analysis   *string              `json:"analysis,omitempty"`

	Type      enums.DocumentType `json:"type,omitempty"`
	MIMEType  string             `json:"mime_type,omitempty"`
	SizeBytes int64              `json:"size_bytes"`
	PageCount int                `json:"page_count,omitempty"`

	// Text is the extracted content kept for re-analysis. It is never serialized.
	Text string `json:"-"`
}

// Metadata is what upload inspection learned about the file. It never changes after Create.
type Metadata struct {
	Type      enums.DocumentType
	MIMEType  string
	SizeBytes int64
	PageCount int
	Text      string
}

// Expired reports whether the record has left the active set at now.
func (r Record) Expired(now time.Time) bool {
	return r.Status.IsTerminal() && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

func (r Record) clone() Record {
	out := r
	out.DecidedAt = clonePtr(r.DecidedAt)
	out.ExpiresAt = clonePtr(r.ExpiresAt)
	out.Analysis = clonePtr(r.Analysis)
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
