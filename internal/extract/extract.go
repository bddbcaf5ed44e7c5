// Package extract turns an uploaded contract file into plain text.
//
// Every failure is reported as an *Error whose message is the user-facing
// sentinel text ("Error: ..."), so callers can display it verbatim.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind classifies an extraction failure.
type Kind string

const (
	KindNoText      Kind = "no_text"
	KindUnsupported Kind = "unsupported_format"
	KindUnreadable  Kind = "unreadable"
)

var noTextMessages = map[string]string{
	"pdf":  "Error: No text found in PDF.",
	"jpg":  "Error: No text detected in image.",
	"jpeg": "Error: No text detected in image.",
	"png":  "Error: No text detected in image.",
	"docx": "Error: No text found in DOCX.",
	"txt":  "Error: No text found in TXT.",
}

const unsupportedMessage = "Error: Unsupported file format."

// Error is an extraction failure. Error() returns the sentinel message.
type Error struct {
	Kind    Kind
	Format  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError reports whether err is an extraction failure.
func AsError(err error) (*Error, bool) {
	var extractErr *Error
	if errors.As(err, &extractErr) {
		return extractErr, true
	}
	return nil, false
}

// Format returns the lowercase text after the final "." of path.
// A path without a dot is returned whole, which is never a supported format.
func Format(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return strings.ToLower(path[i+1:])
	}
	return strings.ToLower(path)
}

// Supported reports whether format is one Extract handles.
func Supported(format string) bool {
	_, ok := noTextMessages[strings.ToLower(format)]
	return ok
}

// Extractor dispatches on file extension to a format-specific reader.
type Extractor struct {
	pdf       PageReader
	runner    CommandRunner
	tesseract string
	language  string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPDFReader replaces the PDF page reader.
func WithPDFReader(r PageReader) Option {
	return func(e *Extractor) { e.pdf = r }
}

// WithCommandRunner replaces the runner used to invoke the OCR binary.
func WithCommandRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithTesseract sets the OCR binary and language.
func WithTesseract(path, language string) Option {
	return func(e *Extractor) {
		if path != "" {
			e.tesseract = path
		}
		if language != "" {
			e.language = language
		}
	}
}

// New creates an Extractor with the default PDF reader and tesseract OCR.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		pdf:       ledongthucReader{},
		runner:    ExecRunner{},
		tesseract: "tesseract",
		language:  "eng",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the trimmed text of the file at path.
// On failure the error is always an *Error.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	format := Format(path)

	var (
		text string
		err  error
	)
	switch format {
	case "pdf":
		text, err = e.extractPDF(path)
	case "jpg", "jpeg", "png":
		text, err = e.extractImage(ctx, path)
	case "docx":
		text, err = extractDOCX(path)
	case "txt":
		text, err = extractTXT(path)
	default:
		slog.Debug("unsupported format", "path", path, "format", format)
		return "", &Error{Kind: KindUnsupported, Format: format, Message: unsupportedMessage}
	}

	if err != nil {
		slog.Warn("extraction failed", "path", path, "format", format, "error", err)
		return "", &Error{
			Kind:    KindUnreadable,
			Format:  format,
			Message: fmt.Sprintf("Error: Failed to process %s: %v", strings.ToUpper(format), err),
			Err:     err,
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Kind: KindNoText, Format: format, Message: noTextMessages[format]}
	}

	slog.Debug("text extracted", "path", path, "format", format, "chars", len(text))
	return text, nil
}
