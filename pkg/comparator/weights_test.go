package comparator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/matcher/pkg/models"
)

func TestParseWeights_OverlaysDefaults(t *testing.T) {
	doc := []byte(`
[movie.title]
weight = 4.0
method = "string"
normalizer = "title"
identifying = true
blocking = true

[PERSON.nickname]
weight = 1.0
method = "string"
normalizer = "name"
`)

	weights, err := ParseWeights(doc)
	require.NoError(t, err)

	rule, ok := weights.Rule(models.ObjectTypeMovie, "title")
	require.True(t, ok)
	assert.Equal(t, 4.0, rule.Weight)

	_, ok = weights.Rule(models.ObjectTypeMovie, "year")
	assert.True(t, ok, "defaults are kept")

	rule, ok = weights.Rule(models.ObjectTypePerson, "nickname")
	require.True(t, ok)
	assert.Equal(t, "name", rule.Normalizer)

	defaults := DefaultWeights()
	assert.Equal(t, 3.0, defaults[models.ObjectTypeMovie]["title"].Weight, "defaults are not mutated")
}

func TestParseWeights_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown type", doc: "[album.title]\nweight = 1.0\nmethod = \"string\"\n"},
		{name: "unknown method", doc: "[movie.title]\nweight = 1.0\nmethod = \"soundex\"\n"},
		{name: "negative weight", doc: "[movie.title]\nweight = -1.0\nmethod = \"string\"\n"},
		{name: "numeric without max diff", doc: "[movie.rating]\nweight = 1.0\nmethod = \"numeric\"\n"},
		{name: "unknown normalizer in chain", doc: "[movie.isan]\nweight = 1.0\nmethod = \"levenshtein\"\nnormalizer = \"trim,soundex\"\n"},
		{name: "invalid toml", doc: "[movie.title\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWeights([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseWeights_EditDistanceRules(t *testing.T) {
	doc := []byte(`
[movie.isan]
weight = 2.0
method = "levenshtein"
normalizer = "trim,lowercase,alphanumeric"

[person.nickname]
weight = 0.5
method = "jaro"
`)

	weights, err := ParseWeights(doc)
	require.NoError(t, err)

	rule, ok := weights.Rule(models.ObjectTypeMovie, "isan")
	require.True(t, ok)
	assert.Equal(t, MethodLevenshtein, rule.Method)
	assert.Equal(t, []string{"trim", "lowercase", "alphanumeric"}, rule.chain())

	rule, ok = weights.Rule(models.ObjectTypePerson, "nickname")
	require.True(t, ok)
	assert.Equal(t, MethodJaro, rule.Method)
	assert.Empty(t, rule.chain())
}

func TestLoadWeights(t *testing.T) {
	weights, err := LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), weights)

	path := filepath.Join(t.TempDir(), "weights.toml")
	require.NoError(t, os.WriteFile(path, []byte("[serie.year]\nweight = 0.0\nmethod = \"exact\"\n"), 0o644))
	weights, err = LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, weights[models.ObjectTypeSerie]["year"].Weight)

	_, err = LoadWeights(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
