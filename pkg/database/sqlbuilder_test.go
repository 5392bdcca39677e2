package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertBuilder_OnConflict(t *testing.T) {
	query, args := NewInsertBuilder().
		InsertInto("object_links").
		Cols("object_id", "platform_id", "external_id").
		Values(1, 2, "tt0133093").
		OnConflictDoNothing("platform_id", "external_id").
		Returning("id").
		Build()

	assert.Contains(t, query, "INSERT INTO object_links (object_id, platform_id, external_id) VALUES ($1, $2, $3)")
	assert.Contains(t, query, "ON CONFLICT (platform_id, external_id) DO NOTHING")
	assert.Contains(t, query, "RETURNING id")
	assert.Less(t, indexOf(query, "ON CONFLICT"), indexOf(query, "RETURNING"))
	assert.Equal(t, []any{1, 2, "tt0133093"}, args)
}

func TestInsertBuilder_OnConflictUpdate(t *testing.T) {
	query, _ := NewInsertBuilder().
		InsertInto("persons").
		Cols("object_id", "gender").
		Values(1, 2).
		OnConflictUpdate([]string{"object_id"}, "gender").
		Build()

	assert.Contains(t, query, "ON CONFLICT (object_id) DO UPDATE SET gender = EXCLUDED.gender")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
