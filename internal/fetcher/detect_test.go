package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMarkdownContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/markdown", true},
		{"text/x-markdown", true},
		{"text/markdown; charset=utf-8", true},
		{"text/html", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, isMarkdownContentType(tt.contentType))
		})
	}
}

func TestLooksLikeMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"heading", "# Lease\n\nTerms.", true},
		{"list", "- Rent\n- Deposit", true},
		{"link", "[Terms](https://example.com/terms)", true},
		{"html document", "<!DOCTYPE html><html><body># not md</body></html>", false},
		{"plain prose", "The parties agree as follows.", false},
		{"empty", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeMarkdown(tt.content))
		})
	}
}

func TestMarkdownVariants(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []string
	}{
		{"plain url", "https://example.com/terms", []string{"https://example.com/terms.md"}},
		{"trailing slash", "https://example.com/terms/", []string{"https://example.com/terms.md"}},
		{"github blob", "https://github.com/acme/legal/blob/main/nda.md", []string{"https://raw.githubusercontent.com/acme/legal/main/nda.md"}},
		{"already markdown", "https://example.com/nda.md", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markdownVariants(tt.url))
		})
	}
}

func TestMarkdownTitle(t *testing.T) {
	assert.Equal(t, "Mutual NDA", markdownTitle("Intro\n# Mutual NDA\n## Parties"))
	assert.Empty(t, markdownTitle("## Only a subsection"))
}

func TestHTMLTitle(t *testing.T) {
	assert.Equal(t, "Lease", htmlTitle("<html><head><title> Lease </title></head></html>"))
	assert.Empty(t, htmlTitle("<html><body>No title</body></html>"))
}

func TestHTMLToText(t *testing.T) {
	text, err := htmlToText("<h2>Termination</h2><p>Either party may <em>terminate</em>.</p>")
	assert.NoError(t, err)
	assert.Contains(t, text, "## Termination")
	assert.Contains(t, text, "terminate")
	assert.NotContains(t, text, "<p>")

	text, err = htmlToText("")
	assert.NoError(t, err)
	assert.Empty(t, text)
}
