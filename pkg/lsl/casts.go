package lsl

// CastKind classifies a conversion between two tags.
type CastKind uint8

const (
	CastIllegal CastKind = iota
	CastIdentity
	CastImplicit
	CastExplicit
)

var castKindNames = [...]string{"illegal", "identity", "implicit", "explicit"}

func (k CastKind) String() string {
	if int(k) < len(castKindNames) {
		return castKindNames[k]
	}
	return "?"
}

// Allowed reports whether a value may flow through the cast. Explicit casts
// need a source-level cast expression.
func (k CastKind) Allowed(explicit bool) bool {
	switch k {
	case CastIdentity, CastImplicit:
		return true
	case CastExplicit:
		return explicit
	}
	return false
}

// concrete reports whether t is a storable value kind.
func concrete(t Tag) bool {
	return t >= TagBool && t <= TagObject
}

// ClassifyCast returns how a value of type from may become a value of type
// to. Float to integer narrowing is implicit, as the host language defines.
func ClassifyCast(from, to Tag) CastKind {
	if !concrete(from) || !concrete(to) {
		return CastIllegal
	}
	if from == to {
		return CastIdentity
	}
	switch {
	case to == TagObject:
		return CastImplicit
	case from == TagObject:
		return CastExplicit
	case to == TagBool:
		return CastImplicit
	}

	switch from {
	case TagBool:
		switch to {
		case TagInt, TagFloat:
			return CastImplicit
		case TagString, TagList:
			return CastExplicit
		}
	case TagInt:
		switch to {
		case TagFloat:
			return CastImplicit
		case TagString, TagList:
			return CastExplicit
		}
	case TagFloat:
		switch to {
		case TagInt:
			return CastImplicit
		case TagString, TagList:
			return CastExplicit
		}
	case TagString:
		switch to {
		case TagInt, TagFloat, TagKey, TagList, TagVector, TagRotation:
			return CastExplicit
		}
	case TagKey:
		switch to {
		case TagString:
			return CastImplicit
		case TagList:
			return CastExplicit
		}
	case TagList:
		if to == TagString {
			return CastExplicit
		}
	case TagVector, TagRotation:
		switch to {
		case TagString, TagList:
			return CastExplicit
		}
	}
	return CastIllegal
}
