package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "leading article", input: "The Matrix", expected: "matrix"},
		{name: "no article", input: "Matrix", expected: "matrix"},
		{name: "punctuation", input: "Matrix: Reloaded!", expected: "matrix reloaded"},
		{name: "diacritics", input: "Le Fabuleux Destin d'Amélie Poulain", expected: "fabuleux destin d amelie poulain"},
		{name: "article only", input: "The", expected: "the"},
		{name: "extra whitespace", input: "  The   Thing  ", expected: "thing"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple", input: "Keanu Reeves", expected: "keanu reeves"},
		{name: "suffix", input: "Robert Downey Jr.", expected: "robert downey"},
		{name: "accents", input: "Penélope Cruz", expected: "penelope cruz"},
		{name: "punctuation", input: "J.J. Abrams", expected: "j j abrams"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, "tt0133093", Apply(" TT 0133093", "identifier"))
	assert.Equal(t, "unchanged", Apply("unchanged", "does-not-exist"))
	assert.Equal(t, "1999", ApplyChain(" (1999) ", "trim", "digits_only"))

	Register("reverse", func(s string) string {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	})
	fn, ok := Get("reverse")
	assert.True(t, ok)
	assert.Equal(t, "cba", fn("abc"))
}
