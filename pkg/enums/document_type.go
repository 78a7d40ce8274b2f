package enums

import (
	"fmt"
	"strings"
)

// DocumentType is the accepted upload format.
type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeDOCX DocumentType = "docx"
	DocumentTypeTXT  DocumentType = "txt"
)

var validDocumentTypes = []DocumentType{
	DocumentTypePDF,
	DocumentTypeDOCX,
	DocumentTypeTXT,
}

// String returns the literal string for the type.
func (t DocumentType) String() string {
	return string(t)
}

// IsValid reports whether the type is accepted.
func (t DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType. A leading dot is ignored.
func ParseDocumentType(value string) (DocumentType, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
	for _, candidate := range validDocumentTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
