package org

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes characters and drops combining marks, so
// "Müller Søn" becomes "Muller Søn". Stroked letters and ligatures do
// not decompose under NFD and are folded separately.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var foldLetters = strings.NewReplacer(
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ł", "l",
)

// Slugify derives a URL-safe slug from an organization name: diacritics
// stripped, lower-cased, every non-alphanumeric run collapsed to a single
// hyphen, leading and trailing hyphens trimmed. Deterministic for a given
// name.
func Slugify(name string) string {
	flattened, _, err := transform.String(stripDiacritics, name)
	if err != nil {
		flattened = name
	}
	flattened = foldLetters.Replace(strings.ToLower(flattened))

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range flattened {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
