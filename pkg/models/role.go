package models

// RoleType qualifies the edge between a person and a work.
type RoleType int

const (
	RoleTypeDirector RoleType = 0
	RoleTypeActor    RoleType = 1
	RoleTypeWriter   RoleType = 2
)

var roleTypes = newEnumTable("role type",
	enumPair[RoleType]{RoleTypeDirector, "director"},
	enumPair[RoleType]{RoleTypeActor, "actor"},
	enumPair[RoleType]{RoleTypeWriter, "writer"},
)

func (r RoleType) String() string {
	if n, ok := roleTypes.name(r); ok {
		return n
	}
	return "unknown"
}

func (r RoleType) Valid() bool {
	_, ok := roleTypes.name(r)
	return ok
}

func RoleTypeFromName(name string) (RoleType, bool) {
	return roleTypes.fromName(name)
}

func (r RoleType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RoleType) UnmarshalText(text []byte) error {
	v, err := roleTypes.parse(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Gender of a person. Values follow ISO/IEC 5218.
type Gender int

const (
	GenderNotKnown      Gender = 0
	GenderMale          Gender = 1
	GenderFemale        Gender = 2
	GenderNotApplicable Gender = 9
)

var genders = newEnumTable("gender",
	enumPair[Gender]{GenderNotKnown, "not_known"},
	enumPair[Gender]{GenderMale, "male"},
	enumPair[Gender]{GenderFemale, "female"},
	enumPair[Gender]{GenderNotApplicable, "not_applicable"},
)

func (g Gender) String() string {
	if n, ok := genders.name(g); ok {
		return n
	}
	return "unknown"
}

func (g Gender) Valid() bool {
	_, ok := genders.name(g)
	return ok
}

func GenderFromName(name string) (Gender, bool) {
	return genders.fromName(name)
}

func (g Gender) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Gender) UnmarshalText(text []byte) error {
	v, err := genders.parse(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
