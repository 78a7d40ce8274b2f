package enums

import "fmt"

// DocumentDecision represents the action a reviewer takes on a pending document.
type DocumentDecision string

const (
	// DocumentDecisionAuthorize moves the document to authorized.
	DocumentDecisionAuthorize DocumentDecision = "authorize"
	// DocumentDecisionReject moves the document to rejected.
	DocumentDecisionReject DocumentDecision = "reject"
)

// ParseDocumentDecision converts raw input into a DocumentDecision.
func ParseDocumentDecision(value string) (DocumentDecision, error) {
	switch DocumentDecision(value) {
	case DocumentDecisionAuthorize, DocumentDecisionReject:
		return DocumentDecision(value), nil
	default:
		return "", fmt.Errorf("invalid document decision %q", value)
	}
}

// Outcome maps the decision onto the terminal status it produces.
func (d DocumentDecision) Outcome() DocumentStatus {
	switch d {
	case DocumentDecisionAuthorize:
		return DocumentStatusAuthorized
	case DocumentDecisionReject:
		return DocumentStatusRejected
	default:
		return ""
	}
}
