package models

// ObjectType is the kind of a canonical object. It is assigned once, at creation.
type ObjectType int

const (
	ObjectTypePerson  ObjectType = 1
	ObjectTypeMovie   ObjectType = 2
	ObjectTypeEpisode ObjectType = 3
	ObjectTypeSeason  ObjectType = 4
	ObjectTypeSerie   ObjectType = 5
)

var objectTypes = newEnumTable("object type",
	enumPair[ObjectType]{ObjectTypePerson, "person"},
	enumPair[ObjectType]{ObjectTypeMovie, "movie"},
	enumPair[ObjectType]{ObjectTypeEpisode, "episode"},
	enumPair[ObjectType]{ObjectTypeSeason, "season"},
	enumPair[ObjectType]{ObjectTypeSerie, "serie"},
)

func (t ObjectType) String() string {
	if n, ok := objectTypes.name(t); ok {
		return n
	}
	return "unknown"
}

// Valid reports whether t is one of the declared object types.
func (t ObjectType) Valid() bool {
	_, ok := objectTypes.name(t)
	return ok
}

// ObjectTypeFromName looks up an object type by name, ignoring case.
func ObjectTypeFromName(name string) (ObjectType, bool) {
	return objectTypes.fromName(name)
}

// ObjectTypes returns every object type in declaration order.
func ObjectTypes() []ObjectType {
	return objectTypes.all()
}

func (t ObjectType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ObjectType) UnmarshalText(text []byte) error {
	v, err := objectTypes.parse(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
