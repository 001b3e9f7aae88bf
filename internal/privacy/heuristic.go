package privacy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest candidate, in characters, still treated as a name.
const MaxNameLength = 60

// NamePredicate decides whether a captured sender is a person's name.
// It receives the candidate with surrounding whitespace already trimmed.
type NamePredicate func(candidate string) bool

// IsProbablePersonName is the default NamePredicate. A candidate qualifies
// when, after trimming, it is non-empty, at most MaxNameLength characters,
// contains no ASCII digit and starts with an uppercase Latin or Cyrillic
// letter. System lines ("вы ушли с маршрута") and aliases (USER_1) fail.
func IsProbablePersonName(candidate string) bool {
	name := trimName(candidate)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return false
	}
	if strings.IndexFunc(name, isASCIIDigit) >= 0 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	return isNameInitial(first)
}

// isASCIIDigit matches 0-9 only, like \d in the patterns.
func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isNameInitial(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'А' && r <= 'Я':
		return true
	case r == 'Ё':
		return true
	}
	return false
}

func isTrimSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

func trimName(s string) string {
	return strings.TrimFunc(s, isTrimSpace)
}
