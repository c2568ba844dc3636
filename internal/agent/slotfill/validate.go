package slotfill

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidIdentifier is returned for placeholder, too short or symbol-only identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

const minIdentifierLen = 4

var identifierDenylist = map[string]struct{}{
	"n/a":     {},
	"unknown": {},
	"none":    {},
	"":        {},
}

// ValidateIdentifier trims raw and accepts it unless it is a denylisted
// placeholder, shorter than four characters, or has no letter or digit.
func ValidateIdentifier(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if _, denied := identifierDenylist[strings.ToLower(id)]; denied {
		return "", ErrInvalidIdentifier
	}
	if utf8.RuneCountInString(id) < minIdentifierLen {
		return "", ErrInvalidIdentifier
	}
	if strings.IndexFunc(id, isAlnum) < 0 {
		return "", ErrInvalidIdentifier
	}
	return id, nil
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
