package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoDocumentXML = errors.New("word/document.xml not found")

// extractDOCX joins the body paragraphs with newlines.
func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return parseDocumentXML(content)
	}
	return "", errNoDocumentXML
}

// parseDocumentXML walks document.xml in order and returns the text of the
// body-level paragraphs. Runs count when they sit directly in a paragraph or
// in a hyperlink; w:tab becomes a tab and w:br/w:cr a newline.
func parseDocumentXML(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		stack     []string
		lines     []string
		current   strings.Builder
		paraDepth = -1 // stack index of the open body-level w:p
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			stack = append(stack, el.Name.Local)
			switch el.Name.Local {
			case "p":
				if paraDepth < 0 && len(stack) >= 2 && stack[len(stack)-2] == "body" {
					paraDepth = len(stack) - 1
					current.Reset()
				}
			case "tab":
				if inRun(stack, paraDepth) {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inRun(stack, paraDepth) {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return "", fmt.Errorf("failed to parse document.xml: unexpected </%s>", el.Name.Local)
			}
			if len(stack)-1 == paraDepth {
				lines = append(lines, current.String())
				paraDepth = -1
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 && stack[len(stack)-1] == "t" && inRun(stack, paraDepth) {
				current.Write(el)
			}
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("failed to parse document.xml: %w", io.ErrUnexpectedEOF)
	}
	return strings.Join(lines, "\n"), nil
}

// inRun reports whether the innermost element of stack is a child of a run
// that belongs to the paragraph at paraDepth, either directly or through a
// hyperlink.
func inRun(stack []string, paraDepth int) bool {
	if paraDepth < 0 {
		return false
	}
	switch len(stack) - paraDepth {
	case 3: // p > r > t
		return stack[paraDepth+1] == "r"
	case 4: // p > hyperlink > r > t
		return stack[paraDepth+1] == "hyperlink" && stack[paraDepth+2] == "r"
	}
	return false
}
