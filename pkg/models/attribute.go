package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AttributeKind is the value type of an attribute.
type AttributeKind string

const (
	AttributeKindString AttributeKind = "string"
	AttributeKindInt    AttributeKind = "int"
	AttributeKindFloat  AttributeKind = "float"
	AttributeKindDate   AttributeKind = "date"
)

var attributeKinds = newEnumTable("attribute kind",
	enumPair[AttributeKind]{AttributeKindString, "string"},
	enumPair[AttributeKind]{AttributeKindInt, "int"},
	enumPair[AttributeKind]{AttributeKindFloat, "float"},
	enumPair[AttributeKind]{AttributeKindDate, "date"},
)

func AttributeKindFromName(name string) (AttributeKind, bool) {
	return attributeKinds.fromName(name)
}

// DateLayout is the canonical encoding of date attribute values.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, time.RFC3339, "2006-01", "2006"}

// Attribute is a typed fact about a canonical object, as reported by one platform.
// Attributes are append-only: conflicting values from different platforms are all kept.
type Attribute struct {
	ID         int64         `json:"id,omitempty" db:"id"`
	ObjectID   int64         `json:"object_id,omitempty" db:"object_id"`
	PlatformID int64         `json:"platform_id" db:"platform_id"`
	Name       string        `json:"name" db:"name" validate:"required"`
	Kind       AttributeKind `json:"kind" db:"kind" validate:"required,oneof=string int float date"`
	Value      string        `json:"value" db:"value"`
	Normalized string        `json:"-" db:"normalized"`
	CreatedAt  time.Time     `json:"created_at,omitempty" db:"created_at"`
}

func NewStringAttribute(name, value string, platformID int64) Attribute {
	return Attribute{Name: name, Kind: AttributeKindString, Value: value, PlatformID: platformID}
}

func NewIntAttribute(name string, value int64, platformID int64) Attribute {
	return Attribute{Name: name, Kind: AttributeKindInt, Value: strconv.FormatInt(value, 10), PlatformID: platformID}
}

func NewFloatAttribute(name string, value float64, platformID int64) Attribute {
	return Attribute{Name: name, Kind: AttributeKindFloat, Value: strconv.FormatFloat(value, 'f', -1, 64), PlatformID: platformID}
}

func NewDateAttribute(name string, value time.Time, platformID int64) Attribute {
	return Attribute{Name: name, Kind: AttributeKindDate, Value: value.UTC().Format(DateLayout), PlatformID: platformID}
}

// Int parses the value as an integer.
func (a Attribute) Int() (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %q is not an integer", a.Name, a.Value)
	}
	return v, nil
}

// Float parses the value as a float. Integer values are accepted.
func (a Attribute) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %q is not a number", a.Name, a.Value)
	}
	return v, nil
}

// Date parses the value as a date. Partial dates (year, year-month) are accepted.
func (a Attribute) Date() (time.Time, error) {
	value := strings.TrimSpace(a.Value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("attribute %s: %q is not a date", a.Name, a.Value)
}

// Fact identifies an attribute independently of its owner and storage identity.
type Fact struct {
	Name       string
	Kind       AttributeKind
	Value      string
	PlatformID int64
}

func (a Attribute) Fact() Fact {
	return Fact{Name: a.Name, Kind: a.Kind, Value: a.Value, PlatformID: a.PlatformID}
}

// AttributeSet is the collection of attributes owned by one object.
type AttributeSet []Attribute

// ByName returns every attribute carrying the given name, in insertion order.
func (s AttributeSet) ByName(name string) []Attribute {
	var out []Attribute
	for _, a := range s {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

func (s AttributeSet) Has(name string) bool {
	for _, a := range s {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Contains reports whether the same fact is already present.
func (s AttributeSet) Contains(a Attribute) bool {
	f := a.Fact()
	for _, existing := range s {
		if existing.Fact() == f {
			return true
		}
	}
	return false
}

// Missing returns the attributes of other that are not present in s, deduplicated.
func (s AttributeSet) Missing(other AttributeSet) AttributeSet {
	seen := make(map[Fact]struct{}, len(s)+len(other))
	for _, a := range s {
		seen[a.Fact()] = struct{}{}
	}
	var out AttributeSet
	for _, a := range other {
		f := a.Fact()
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, a)
	}
	return out
}

// WithPlatform returns a copy of the set stamped with the given provenance.
func (s AttributeSet) WithPlatform(platformID int64) AttributeSet {
	out := make(AttributeSet, len(s))
	for i, a := range s {
		a.PlatformID = platformID
		out[i] = a
	}
	return out
}

// MatchKey is a (name, normalized value) pair used to look up candidate objects.
type MatchKey struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
