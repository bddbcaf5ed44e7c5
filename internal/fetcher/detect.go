package fetcher

import (
	"regexp"
	"strings"
)

var (
	headingPattern = regexp.MustCompile(`^#{1,6}\s+\S`)
	listPattern    = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	linkPattern    = regexp.MustCompile(`\[.+?\]\(.+?\)`)
	titlePattern   = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

func isMarkdownContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/markdown") ||
		strings.HasPrefix(ct, "text/x-markdown")
}

func isPlainTextContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "text/plain")
}

func isMarkdownURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasSuffix(lower, ".md") ||
		strings.HasSuffix(lower, ".markdown")
}

// looksLikeMarkdown is a heuristic for bodies served without a useful
// Content-Type.
func looksLikeMarkdown(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || looksLikeHTML(trimmed) {
		return false
	}
	return headingPattern.MatchString(trimmed) ||
		listPattern.MatchString(trimmed) ||
		linkPattern.MatchString(trimmed)
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body")
}

// isMarkdown checks Content-Type, then URL, then the body itself.
func isMarkdown(url, contentType, content string) bool {
	if isMarkdownContentType(contentType) {
		return true
	}
	if isMarkdownURL(url) {
		return true
	}
	return looksLikeMarkdown(content)
}

// markdownVariants returns URLs that may serve the same page as markdown.
// GitHub blob pages map to their raw file; other URLs get a ".md" suffix.
func markdownVariants(url string) []string {
	if strings.Contains(url, "github.com") && strings.Contains(url, "/blob/") {
		raw := strings.Replace(url, "github.com", "raw.githubusercontent.com", 1)
		return []string{strings.Replace(raw, "/blob/", "/", 1)}
	}
	if isMarkdownURL(url) {
		return nil
	}
	return []string{strings.TrimSuffix(url, "/") + ".md"}
}

// markdownTitle returns the first level-one heading.
func markdownTitle(content string) string {
	m := titlePattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
