package models

import (
	"fmt"
	"strings"
)

// enumTable holds the explicit name <-> variant mapping of a closed enumeration.
type enumTable[T comparable] struct {
	kind   string
	names  map[T]string
	values map[string]T
	order  []T
}

func newEnumTable[T comparable](kind string, pairs ...enumPair[T]) *enumTable[T] {
	t := &enumTable[T]{
		kind:   kind,
		names:  make(map[T]string, len(pairs)),
		values: make(map[string]T, len(pairs)),
	}
	for _, p := range pairs {
		t.names[p.value] = p.name
		t.values[p.name] = p.value
		t.order = append(t.order, p.value)
	}
	return t
}

type enumPair[T comparable] struct {
	value T
	name  string
}

func (t *enumTable[T]) name(v T) (string, bool) {
	n, ok := t.names[v]
	return n, ok
}

// fromName is case-insensitive.
func (t *enumTable[T]) fromName(name string) (T, bool) {
	v, ok := t.values[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

func (t *enumTable[T]) parse(name string) (T, error) {
	v, ok := t.fromName(name)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", t.kind, name)
	}
	return v, nil
}

func (t *enumTable[T]) all() []T {
	out := make([]T, len(t.order))
	copy(out, t.order)
	return out
}
