package extract

import (
	"errors"
	"os"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("file is not valid UTF-8")

func extractTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return string(data), nil
}
