package lsl

import "math"

// Constants are the predefined names a script can reference. A variable
// of the same name shadows them.
var Constants = map[string]Value{
	"TRUE":  Int(1),
	"FALSE": Int(0),

	"PI":         Float(math.Pi),
	"TWO_PI":     Float(2 * math.Pi),
	"PI_BY_TWO":  Float(math.Pi / 2),
	"DEG_TO_RAD": Float(math.Pi / 180),
	"RAD_TO_DEG": Float(180 / math.Pi),
	"SQRT2":      Float(math.Sqrt2),

	"ZERO_VECTOR":   Vector(0, 0, 0),
	"ZERO_ROTATION": Rotation(0, 0, 0, 1),
	"NULL_KEY":      Key(NullKey),
	"EOF":           String("\n\n\n"),

	"PUBLIC_CHANNEL": Int(0),
	"DEBUG_CHANNEL":  Int(0x7FFFFFFF),

	"TYPE_INTEGER":  Int(1),
	"TYPE_FLOAT":    Int(2),
	"TYPE_STRING":   Int(3),
	"TYPE_KEY":      Int(4),
	"TYPE_VECTOR":   Int(5),
	"TYPE_ROTATION": Int(6),
	"TYPE_INVALID":  Int(0),

	"STRING_TRIM_HEAD": Int(1),
	"STRING_TRIM_TAIL": Int(2),
	"STRING_TRIM":      Int(3),

	"LINK_ROOT":         Int(1),
	"LINK_SET":          Int(-1),
	"LINK_ALL_OTHERS":   Int(-2),
	"LINK_ALL_CHILDREN": Int(-3),
	"LINK_THIS":         Int(-4),

	"CHANGED_INVENTORY":    Int(0x1),
	"CHANGED_COLOR":        Int(0x2),
	"CHANGED_SHAPE":        Int(0x4),
	"CHANGED_SCALE":        Int(0x8),
	"CHANGED_TEXTURE":      Int(0x10),
	"CHANGED_LINK":         Int(0x20),
	"CHANGED_ALLOWED_DROP": Int(0x40),
	"CHANGED_OWNER":        Int(0x80),
	"CHANGED_REGION":       Int(0x100),
	"CHANGED_TELEPORT":     Int(0x200),
	"CHANGED_REGION_START": Int(0x400),
	"CHANGED_MEDIA":        Int(0x800),
	"CHANGED_ANIMATION":    Int(0x4000),
	"CHANGED_POSITION":     Int(0x8000),
}

// ListEntryType maps a list element to its TYPE_* code.
func ListEntryType(v Value) int32 {
	switch v.Kind {
	case TagInt, TagBool:
		return 1
	case TagFloat:
		return 2
	case TagString:
		return 3
	case TagKey:
		return 4
	case TagVector:
		return 5
	case TagRotation:
		return 6
	}
	return 0
}
