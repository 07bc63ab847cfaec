package useragent

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// A cases.Caser carries state and must not be shared between goroutines.
var folders = sync.Pool{
	New: func() any {
		c := cases.Fold()
		return &c
	},
}

// Normalize case-folds ua, collapses every whitespace run into a single
// space and trims leading and trailing whitespace. The result is the form
// stored as signature keys, so any string passed to the matcher must go
// through Normalize first.
func Normalize(ua string) string {
	if ua == "" {
		return ""
	}

	if isASCII(ua) {
		return normalizeASCII(ua)
	}

	c := folders.Get().(*cases.Caser)
	folded := c.String(ua)
	folders.Put(c)

	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), " ")
}

// normalizeASCII lower-cases and collapses whitespace in a single pass.
func normalizeASCII(ua string) string {
	var b strings.Builder
	b.Grow(len(ua))

	pendingSpace := false
	for i := 0; i < len(ua); i++ {
		ch := ua[i]
		if isASCIISpace(ch) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		if 'A' <= ch && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isASCIISpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
