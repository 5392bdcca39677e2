// Package normalizers provides attribute normalization functions for matching
package normalizers

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Normalizer)
)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("fold", FoldDiacritics)
	Register("remove_punctuation", RemovePunctuation)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("title", NormalizeTitle)
	Register("name", NormalizeName)
	Register("identifier", NormalizeIdentifier)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := Get(normalizer)
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// FoldDiacritics strips combining marks: "Amélie" becomes "Amelie".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// leadingArticles are dropped from the start of titles.
var leadingArticles = []string{
	"the", "a", "an",
	"le", "la", "les", "l", "un", "une",
	"el", "los", "las",
	"der", "die", "das",
	"il", "lo", "gli",
}

// NormalizeTitle normalizes a work title for matching
// - Lowercase, diacritics folded
// - Punctuation replaced by spaces, whitespace collapsed
// - One leading article removed ("The Matrix" and "Matrix" normalize alike)
func NormalizeTitle(s string) string {
	words := words(FoldDiacritics(strings.ToLower(s)))
	if len(words) > 1 {
		for _, article := range leadingArticles {
			if words[0] == article {
				words = words[1:]
				break
			}
		}
	}
	return strings.Join(words, " ")
}

// NormalizeName normalizes a person's name for matching
// - Lowercase, diacritics folded
// - Remove common suffixes (Jr., Sr., III, etc.)
// - Remove punctuation and extra whitespace
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	suffixes := []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	return strings.Join(words(FoldDiacritics(s)), " ")
}

// NormalizeIdentifier normalizes an external identifier (IMDb, TMDb, ISAN...)
func NormalizeIdentifier(s string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(s) {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// words splits on anything that is not a letter or a digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
