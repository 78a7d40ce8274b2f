package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an assistant helping a human reviewer triage uploaded business documents. " +
	"Be concise and factual. Do not invent content that is not in the document."

// BuildPrompt renders the user prompt for one document.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A document named %q of type %s has been uploaded for review.\n", req.Name, req.Type)
	if req.PageCount > 0 {
		fmt.Fprintf(&b, "It has %d pages.\n", req.PageCount)
	}
	b.WriteString("Please provide:\n")
	b.WriteString("1. A brief acknowledgment of the document type.\n")
	b.WriteString("2. A short summary of the content, if any content is included below.\n")
	b.WriteString("3. Standard processing recommendations for the reviewer.\n")

	if text := strings.TrimSpace(req.Text); text != "" {
		b.WriteString("\nDocument content:\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
