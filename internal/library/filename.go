package library

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameWords = 5

var (
	parenthesized = regexp.MustCompile(`\(.+\)`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
)

// FileName derives a short file name from a book title. Titles of up to five
// words are used whole; longer ones are cut at the first ":" or " - ".
// Parenthesized parts are dropped.
func FileName(bookName string) (string, error) {
	if strings.TrimSpace(bookName) == "" {
		return "", fmt.Errorf("invalid book name %q", bookName)
	}
	name := parenthesized.ReplaceAllString(strings.ToLower(bookName), " ")

	if len(strings.Fields(nonAlnum.ReplaceAllString(name, " "))) > maxNameWords {
		if before, _, ok := strings.Cut(name, ":"); ok && strings.TrimSpace(before) != "" {
			name = before
		} else if before, _, ok := strings.Cut(name, " - "); ok && strings.TrimSpace(before) != "" {
			name = before
		}
	}

	words := strings.Fields(nonAlnum.ReplaceAllString(name, " "))
	if len(words) == 0 {
		return "", fmt.Errorf("book name %q has no usable characters", bookName)
	}
	return strings.Join(words, "-") + docExt, nil
}
