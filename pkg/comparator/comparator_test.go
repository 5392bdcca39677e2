package comparator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/matcher/pkg/countries"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
)

func movie(title string, year int64, platformID int64, extra ...models.Attribute) models.AttributeSet {
	set := models.AttributeSet{
		models.NewStringAttribute("title", title, platformID),
		models.NewIntAttribute("year", year, platformID),
	}
	return append(set, extra...)
}

func TestWeighted_Score(t *testing.T) {
	c := NewWeighted(DefaultWeights(), nil)

	tests := []struct {
		name       string
		a, b       models.AttributeSet
		score      float64
		confidence float64
	}{
		{
			name:       "leading article ignored",
			a:          movie("Matrix", 1999, 1),
			b:          movie("The Matrix", 1999, 2),
			score:      1.0,
			confidence: 1.0,
		},
		{
			name:       "different year",
			a:          movie("The Matrix", 1999, 1),
			b:          movie("The Matrix", 2021, 2),
			score:      0.6,
			confidence: 1.0,
		},
		{
			name:       "conflicting identifiers",
			a:          movie("Matrix", 1999, 1, models.NewStringAttribute("imdb_id", "tt0133093", 1)),
			b:          movie("Matrix", 1999, 2, models.NewStringAttribute("imdb_id", "tt0234215", 2)),
			score:      0.5,
			confidence: 1.0,
		},
		{
			name:       "unknown attributes weigh nothing",
			a:          movie("Heat", 1995, 1, models.NewStringAttribute("tagline", "A Los Angeles crime saga", 1)),
			b:          movie("Heat", 1995, 2, models.NewStringAttribute("tagline", "something else entirely", 2)),
			score:      1.0,
			confidence: 1.0,
		},
		{
			name:       "nothing in common",
			a:          models.AttributeSet{models.NewStringAttribute("title", "Heat", 1)},
			b:          models.AttributeSet{models.NewIntAttribute("year", 1995, 2)},
			score:      0.0,
			confidence: 0.0,
		},
		{
			name:       "partial identifying coverage",
			a:          models.AttributeSet{models.NewStringAttribute("title", "Heat", 1)},
			b:          movie("Heat", 1995, 2),
			score:      1.0,
			confidence: 0.5,
		},
		{
			name: "closest conflicting value wins",
			a:    movie("Heat", 1995, 1),
			b: append(movie("Heat", 1996, 2),
				models.NewIntAttribute("year", 1995, 3)),
			score:      1.0,
			confidence: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Score(models.ObjectTypeMovie, tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.score, result.Score, 0.0001)
			assert.InDelta(t, tt.confidence, result.Confidence, 0.0001)
		})
	}
}

func TestWeighted_Score_Malformed(t *testing.T) {
	c := NewWeighted(DefaultWeights(), nil)

	bad := models.AttributeSet{
		models.NewStringAttribute("title", "Heat", 1),
		{Name: "year", Kind: models.AttributeKindInt, Value: "nineteen ninety-five", PlatformID: 1},
	}
	_, err := c.Score(models.ObjectTypeMovie, bad, movie("Heat", 1995, 2))
	require.Error(t, err)
	assert.True(t, merrors.IsComparatorError(err))

	badDate := models.AttributeSet{models.NewStringAttribute("birth_date", "someday", 1)}
	goodDate := models.AttributeSet{models.NewStringAttribute("birth_date", "1964-09-02", 2)}
	_, err = c.Score(models.ObjectTypePerson, badDate, goodDate)
	assert.True(t, merrors.IsComparatorError(err))
}

func TestWeighted_Score_Person(t *testing.T) {
	c := NewWeighted(DefaultWeights(), nil)

	a := models.AttributeSet{
		models.NewStringAttribute("name", "Keanu Reeves", 1),
		models.NewStringAttribute("birth_date", "1964-09-02", 1),
	}
	b := models.AttributeSet{
		models.NewStringAttribute("name", "KEANU REEVES", 2),
		models.NewStringAttribute("birth_date", "1964-09-02", 2),
	}
	result, err := c.Score(models.ObjectTypePerson, a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)

	b[1] = models.NewStringAttribute("birth_date", "1970-01-01", 2)
	result, err = c.Score(models.ObjectTypePerson, a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, result.Score, 0.0001)
}

func TestWeighted_Country(t *testing.T) {
	table := countries.NewTable([]countries.Country{
		{CCA2: "FR", Name: countries.Name{Common: "France", Official: "French Republic"}, AltSpellings: []string{"FR"}},
	})
	c := NewWeighted(DefaultWeights(), table)

	a := movie("Amélie", 2001, 1, models.NewStringAttribute("country", "France", 1))
	b := movie("Amelie", 2001, 2, models.NewStringAttribute("country", "FR", 2))
	result, err := c.Score(models.ObjectTypeMovie, a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)

	assert.Equal(t, "fr", c.Normalize(models.ObjectTypeMovie, models.NewStringAttribute("country", "french republic", 1)))
}

func TestWeighted_Keys(t *testing.T) {
	c := NewWeighted(DefaultWeights(), nil)
	attrs := models.AttributeSet{
		models.NewStringAttribute("title", "The Matrix", 1),
		models.NewStringAttribute("title", "Matrix", 2),
		models.NewIntAttribute("year", 1999, 1),
		models.NewStringAttribute("imdb_id", " TT0133093", 1),
		models.NewStringAttribute("tagline", "Free your mind", 1),
	}

	identity := c.Keys(models.ObjectTypeMovie, attrs, KeyScopeIdentity)
	assert.Equal(t, []models.MatchKey{
		{Name: "imdb_id", Value: "tt0133093"},
		{Name: "title", Value: "matrix"},
	}, identity)

	neighbours := c.Keys(models.ObjectTypeMovie, attrs, KeyScopeNeighbours)
	assert.Equal(t, []models.MatchKey{
		{Name: "imdb_id", Value: "tt0133093"},
		{Name: "title", Value: "matrix"},
		{Name: "year", Value: "1999"},
	}, neighbours)

	assert.Empty(t, c.Keys(models.ObjectTypeMovie, models.AttributeSet{models.NewStringAttribute("tagline", "x", 1)}, KeyScopeNeighbours))
}

func TestWeighted_EditDistanceMethods(t *testing.T) {
	weights := Weights{
		models.ObjectTypeMovie: {
			"isan":     {Weight: 1, Method: MethodLevenshtein, Normalizer: "trim, lowercase,alphanumeric"},
			"nickname": {Weight: 1, Method: MethodJaro, Normalizer: "lowercase"},
		},
	}
	c := NewWeighted(weights, nil)

	tests := []struct {
		name  string
		attr  string
		a, b  string
		score float64
	}{
		{name: "chain normalizes before comparing", attr: "isan", a: " AB-1234 ", b: "ab1234", score: 1.0},
		{name: "one typo costs one edit", attr: "isan", a: "AB-1234", b: "ab1235", score: 5.0 / 6.0},
		{name: "jaro without prefix bonus", attr: "nickname", a: "MARTHA", b: "marhta", score: 0.9444},
		{name: "empty after normalizing", attr: "isan", a: "--", b: "ab1234", score: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := models.AttributeSet{models.NewStringAttribute(tt.attr, tt.a, 1)}
			b := models.AttributeSet{models.NewStringAttribute(tt.attr, tt.b, 2)}
			result, err := c.Score(models.ObjectTypeMovie, a, b)
			require.NoError(t, err)
			assert.InDelta(t, tt.score, result.Score, 0.0001)
		})
	}

	assert.Equal(t, "ab1234", c.Normalize(models.ObjectTypeMovie, models.NewStringAttribute("isan", " AB-1234 ", 1)))
}
