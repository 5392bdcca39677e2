package models

import "time"

// Platform is an external data source.
type Platform struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CanonicalObject is the deduplicated entity behind one or more platform records.
type CanonicalObject struct {
	ID         int64        `json:"id" db:"id"`
	Type       ObjectType   `json:"type" db:"type"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	Links      []ObjectLink `json:"links,omitempty" db:"-"`
	Attributes AttributeSet `json:"attributes,omitempty" db:"-"`
}

// ObjectLink ties a platform-native identifier to a canonical object.
// (PlatformID, ExternalID) is globally unique.
type ObjectLink struct {
	ID         int64     `json:"id" db:"id"`
	ObjectID   int64     `json:"object_id" db:"object_id"`
	PlatformID int64     `json:"platform_id" db:"platform_id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	WorkMeta   *WorkMeta `json:"work_meta,omitempty" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// WorkMeta carries per-link work information.
type WorkMeta struct {
	OriginalContent *bool `json:"original_content,omitempty" db:"original_content"`
	Rating          *int  `json:"rating,omitempty" db:"rating"`
}

// Episode places an episode object inside a season.
type Episode struct {
	ObjectID int64  `json:"object_id" db:"object_id"`
	SeasonID *int64 `json:"season_id,omitempty" db:"season_id"`
	Number   *int   `json:"number,omitempty" db:"number"`
}

// Season places a season object inside a serie.
type Season struct {
	ObjectID int64  `json:"object_id" db:"object_id"`
	SerieID  *int64 `json:"serie_id,omitempty" db:"serie_id"`
	Number   *int   `json:"number,omitempty" db:"number"`
}

// Role links a person object to a work.
type Role struct {
	PersonID int64    `json:"person_id" db:"person_id"`
	ObjectID int64    `json:"object_id" db:"object_id"`
	Role     RoleType `json:"role" db:"role"`
}

// Person carries person-only data.
type Person struct {
	ObjectID int64  `json:"object_id" db:"object_id"`
	Gender   Gender `json:"gender" db:"gender"`
}

// Edge is a typed edge as written by a scrap run. From is the episode, season or person;
// To is the season, serie or work. Number is set for season_of and serie_of, Role for role.
type Edge struct {
	Kind   RelationKind `json:"kind"`
	FromID int64        `json:"from_id"`
	ToID   int64        `json:"to_id"`
	Number *int         `json:"number,omitempty"`
	Role   *RoleType    `json:"role,omitempty"`
}
