package models

// TargetType names the kind of content an engagement record points at.
type TargetType string

const (
	TargetEntry   TargetType = "entry"
	TargetComment TargetType = "comment"
	TargetProfile TargetType = "profile"
)

// Valid reports whether t is one of the known target types.
func (t TargetType) Valid() bool {
	switch t {
	case TargetEntry, TargetComment, TargetProfile:
		return true
	}
	return false
}

// Clappable reports whether the clap ledger accepts this target type.
// Profiles can be viewed but not clapped.
func (t TargetType) Clappable() bool {
	return t == TargetEntry || t == TargetComment
}

// ParseTargetType converts a query/path value into a TargetType.
func ParseTargetType(s string) (TargetType, bool) {
	t := TargetType(s)
	return t, t.Valid()
}
