// Package fetcher pulls a contract published as a web page and turns it into
// text the extractor can read.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mfenderov/contractcheck/pkg/models"
)

var (
	ErrInvalidURL = errors.New("invalid url")
	ErrEmptyPage  = errors.New("page has no text")
)

// Config holds fetcher configuration.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	TryMarkdownFirst bool // prefer a markdown rendition of the page when one exists
}

// Fetcher downloads single pages. Links are never followed.
type Fetcher struct {
	config     Config
	httpClient *http.Client
}

// New creates a Fetcher with the given configuration.
func New(config Config) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "contractcheck/1.0"
	}
	return &Fetcher{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Fetch downloads pageURL and returns its text as a "txt" document.
// Markdown and plain-text responses are kept as they are; HTML is converted
// to markdown.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*models.Document, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, pageURL)
	}

	body, contentType, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if f.config.TryMarkdownFirst && !isMarkdown(pageURL, contentType, body) && !isPlainTextContentType(contentType) {
		if md, mdType, ok := f.tryMarkdownVariants(ctx, pageURL); ok {
			slog.Debug("using markdown variant", "url", pageURL)
			body, contentType = md, mdType
		}
	}

	var title, content string
	switch {
	case isMarkdown(pageURL, contentType, body):
		content = strings.TrimSpace(body)
		title = markdownTitle(content)
	case isPlainTextContentType(contentType):
		content = strings.TrimSpace(body)
	default:
		title = htmlTitle(body)
		content, err = htmlToText(body)
		if err != nil {
			return nil, err
		}
	}

	if content == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPage, pageURL)
	}

	slog.Debug("fetched page", "url", pageURL, "content_type", contentType, "title", title, "chars", len(content))

	return &models.Document{
		ID:        models.GenerateDocumentID(pageURL),
		Source:    pageURL,
		Title:     title,
		Content:   content,
		Format:    "txt",
		FetchedAt: time.Now(),
	}, nil
}

// get visits one page with colly and returns its body and Content-Type.
func (f *Fetcher) get(ctx context.Context, pageURL string) (string, string, error) {
	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(f.config.UserAgent),
	)
	c.SetRequestTimeout(f.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("fetch cancelled", "url", r.URL.String())
			r.Abort()
		}
	})

	var (
		body        string
		contentType string
		received    bool
	)
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		contentType = r.Headers.Get("Content-Type")
		received = true
	})

	if err := c.Visit(pageURL); err != nil {
		return "", "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if !received {
		return "", "", fmt.Errorf("%w: no response from %s", ErrEmptyPage, pageURL)
	}
	return body, contentType, nil
}

func (f *Fetcher) tryMarkdownVariants(ctx context.Context, pageURL string) (string, string, bool) {
	for _, variant := range markdownVariants(pageURL) {
		if ctx.Err() != nil {
			return "", "", false
		}
		if content, contentType, ok := f.tryFetchMarkdown(ctx, variant); ok {
			return content, contentType, true
		}
	}
	return "", "", false
}

func (f *Fetcher) tryFetchMarkdown(ctx context.Context, variantURL string) (string, string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, variantURL, nil)
	if err != nil {
		return "", "", false
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", false
	}

	content := string(data)
	contentType := resp.Header.Get("Content-Type")
	if looksLikeHTML(strings.TrimSpace(content)) || !isMarkdown(variantURL, contentType, content) {
		return "", "", false
	}
	return content, contentType, true
}
