// Package seplink implements the URL contract for Stanford Encyclopedia of
// Philosophy articles. Every article URL accepted by the service must look
// like https://plato.stanford.edu/entries/{entry_id}/ and the entry id is
// always the final non-empty path segment.
package seplink

import (
	"fmt"
	"strings"

	appErr "github.com/sepworks/sepd/internal/pkg/errors"
)

const EntryPrefix = "https://plato.stanford.edu/entries/"

// Validate checks that url points at a SEP article and returns the entry id.
func Validate(url string) (string, error) {
	if !strings.HasPrefix(url, EntryPrefix) {
		return "", fmt.Errorf("%w: url must start with %s", appErr.ErrInvalid, EntryPrefix)
	}
	id := EntryID(url)
	if id == "" || id == "entries" {
		return "", fmt.Errorf("%w: url is missing an entry id", appErr.ErrInvalid)
	}
	return id, nil
}

// EntryID returns the last non-empty path segment of url. Stable across
// re-scrapes of the same article regardless of a trailing slash.
func EntryID(url string) string {
	trimmed := strings.TrimRight(url, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// HumanizeID derives a display title from an entry id when the page itself
// has no title element: separators become spaces, words are title-cased.
func HumanizeID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
