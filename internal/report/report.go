// Package report post-processes model answers for display.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// NoIssuesMarker is the phrase that triggers the reassurance message.
const NoIssuesMarker = "No major issues found"

// Reassurance replaces answers that report no major issues.
const Reassurance = "**No critical issues found, but consider improving clarity and legal protections.**"

// Format returns Reassurance when text contains NoIssuesMarker and text
// unchanged otherwise.
func Format(text string) string {
	if strings.Contains(text, NoIssuesMarker) {
		return Reassurance
	}
	return text
}

// Reassured reports whether Format would replace text.
func Reassured(text string) bool {
	return strings.Contains(text, NoIssuesMarker)
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderHTML renders a markdown answer. Raw HTML in the answer is dropped:
// goldmark's default renderer writes an "omitted" comment in its place.
func RenderHTML(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
