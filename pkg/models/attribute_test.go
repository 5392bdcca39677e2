package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttribute_Parsing(t *testing.T) {
	year := NewIntAttribute("year", 1999, 1)
	v, err := year.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(1999), v)

	rating := NewFloatAttribute("rating", 7.5, 1)
	f, err := rating.Float()
	require.NoError(t, err)
	assert.Equal(t, 7.5, f)

	released := NewDateAttribute("release_date", time.Date(1999, 3, 31, 12, 0, 0, 0, time.UTC), 1)
	assert.Equal(t, "1999-03-31", released.Value)
	d, err := released.Date()
	require.NoError(t, err)
	assert.Equal(t, 1999, d.Year())

	partial := NewStringAttribute("release_date", "1999", 1)
	d, err = partial.Date()
	require.NoError(t, err)
	assert.Equal(t, time.January, d.Month())

	bad := NewStringAttribute("year", "nineteen", 1)
	_, err = bad.Int()
	assert.Error(t, err)
	_, err = bad.Float()
	assert.Error(t, err)
	_, err = bad.Date()
	assert.Error(t, err)
}

func TestAttributeSet_Missing(t *testing.T) {
	existing := AttributeSet{
		NewStringAttribute("title", "The Matrix", 1),
		NewIntAttribute("year", 1999, 1),
	}
	incoming := AttributeSet{
		NewStringAttribute("title", "The Matrix", 1), // same fact
		NewStringAttribute("title", "The Matrix", 2), // same value, other platform
		NewIntAttribute("year", 1998, 2),             // conflicting value is kept
		NewIntAttribute("year", 1998, 2),             // duplicate inside the batch
	}

	missing := existing.Missing(incoming)
	require.Len(t, missing, 2)
	assert.Equal(t, int64(2), missing[0].PlatformID)
	assert.Equal(t, "1998", missing[1].Value)
}

func TestAttributeSet_Lookups(t *testing.T) {
	set := AttributeSet{
		NewStringAttribute("title", "Matrix", 1),
		NewStringAttribute("title", "The Matrix", 2),
		NewIntAttribute("year", 1999, 1),
	}
	assert.Len(t, set.ByName("title"), 2)
	assert.True(t, set.Has("year"))
	assert.False(t, set.Has("imdb_id"))
	assert.True(t, set.Contains(NewIntAttribute("year", 1999, 1)))
	assert.False(t, set.Contains(NewIntAttribute("year", 1999, 3)))

	stamped := set.WithPlatform(7)
	for _, a := range stamped {
		assert.Equal(t, int64(7), a.PlatformID)
	}
	assert.Equal(t, int64(1), set[0].PlatformID)
}
