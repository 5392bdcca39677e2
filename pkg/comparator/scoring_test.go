package comparator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScorer_JaroWinkler(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{name: "identical", a: "matrix", b: "matrix", expected: 1.0},
		{name: "transposition", a: "martha", b: "marhta", expected: 0.961},
		{name: "classic pair", a: "dwayne", b: "duane", expected: 0.84},
		{name: "nothing shared", a: "abc", b: "xyz", expected: 0.0},
		{name: "empty side", a: "", b: "matrix", expected: 0.0},
		{name: "multibyte runes", a: "amélie", b: "amélie", expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.JaroWinkler(tt.a, tt.b), 0.001)
		})
	}
}

func TestScorer_Levenshtein(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 1.0, s.Levenshtein("", ""))
	assert.InDelta(t, 1.0-3.0/7.0, s.Levenshtein("kitten", "sitting"), 0.0001)
	assert.InDelta(t, 0.5, s.Levenshtein("ab", "ac"), 0.0001)
}

func TestScorer_Proximity(t *testing.T) {
	s := NewScorer()

	day := time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, s.DateProximity(day, day, 3))
	assert.InDelta(t, 2.0/3.0, s.DateProximity(day, day.AddDate(0, 0, 1), 3), 0.0001)
	assert.Equal(t, 0.0, s.DateProximity(day, day.AddDate(0, 0, 3), 3))
	assert.Equal(t, 0.0, s.DateProximity(time.Time{}, day, 3))

	assert.Equal(t, 1.0, s.NumericProximity(136, 136, 10))
	assert.InDelta(t, 0.8, s.NumericProximity(136, 138, 10), 0.0001)
	assert.Equal(t, 0.0, s.NumericProximity(100, 150, 10))
	assert.Equal(t, 0.0, s.NumericProximity(1, 2, 0))

	assert.Equal(t, 1.0, s.ExactMatch("TT1", "tt1", false))
	assert.Equal(t, 0.0, s.ExactMatch("TT1", "tt1", true))
}
