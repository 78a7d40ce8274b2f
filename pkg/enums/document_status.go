package enums

import "fmt"

// DocumentStatus tracks where a document sits in the review lifecycle.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusAuthorized DocumentStatus = "authorized"
	DocumentStatusRejected   DocumentStatus = "rejected"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusPending,
	DocumentStatusAuthorized,
	DocumentStatusRejected,
}

// String returns the literal string for the status.
func (s DocumentStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusAuthorized || s == DocumentStatusRejected
}

// ParseDocumentStatus converts raw input into a DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	for _, candidate := range validDocumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}
