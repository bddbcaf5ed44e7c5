package fetcher

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// htmlToText converts an HTML page to markdown, which the extractor then
// treats as plain text.
func htmlToText(page string) (string, error) {
	if strings.TrimSpace(page) == "" {
		return "", nil
	}
	text, err := htmltomarkdown.ConvertString(page)
	if err != nil {
		return "", fmt.Errorf("failed to convert html: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// htmlTitle returns the text of the first <title> element.
func htmlTitle(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}

	var title string
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	find(doc)

	return strings.TrimSpace(title)
}
