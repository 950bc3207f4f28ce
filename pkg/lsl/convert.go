package lsl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CastError is a runtime conversion failure.
type CastError struct {
	From Tag
	To   Tag
}

func (e *CastError) Error() string {
	if e.From == TagObject {
		return fmt.Sprintf("undef cannot be cast to %s", e.To)
	}
	return fmt.Sprintf("cannot cast %s to %s", e.From, e.To)
}

// NullKey is the all-zero key.
const NullKey = "00000000-0000-0000-0000-000000000000"

// Convert performs a runtime cast. Any conversion ClassifyCast allows
// (implicitly or explicitly) succeeds, except that undef only converts to
// object.
func Convert(v Value, to Tag) (Value, error) {
	if v.Kind == to {
		return v, nil
	}
	if to == TagObject {
		return v, nil
	}
	if v.IsUndef() {
		return Value{}, &CastError{From: TagObject, To: to}
	}
	if ClassifyCast(v.Kind, to) == CastIllegal {
		return Value{}, &CastError{From: v.Kind, To: to}
	}

	switch to {
	case TagBool:
		return Bool(truth(v)), nil
	case TagInt:
		switch v.Kind {
		case TagBool:
			return Int(v.I), nil
		case TagFloat:
			return Int(FloatToInt(v.F)), nil
		case TagString:
			return Int(ParseInt(v.S)), nil
		}
	case TagFloat:
		switch v.Kind {
		case TagBool, TagInt:
			return Float(float64(v.I)), nil
		case TagString:
			return Float(ParseFloat(v.S)), nil
		}
	case TagString:
		return String(v.String()), nil
	case TagKey:
		return Key(v.S), nil
	case TagList:
		return List(v), nil
	case TagVector:
		c := parseComponents(v.S, 3)
		return Vector(c[0], c[1], c[2]), nil
	case TagRotation:
		c := parseComponents(v.S, 4)
		return Rotation(c[0], c[1], c[2], c[3]), nil
	}
	return Value{}, &CastError{From: v.Kind, To: to}
}

func truth(v Value) bool {
	switch v.Kind {
	case TagBool, TagInt:
		return v.I != 0
	case TagFloat:
		return v.F != 0
	case TagString:
		return v.S != ""
	case TagKey:
		return v.S != "" && v.S != NullKey
	case TagList:
		return len(v.L) > 0
	case TagVector:
		return v.V != [4]float64{}
	case TagRotation:
		return v.V != [4]float64{0, 0, 0, 1}
	case TagArray:
		return v.A.Count() > 0
	}
	return false
}

// FloatToInt truncates toward zero. NaN and out-of-range values give the
// minimum integer.
func FloatToInt(f float64) int32 {
	if math.IsNaN(f) || f >= math.MaxInt32+1 || f <= math.MinInt32-1 {
		return math.MinInt32
	}
	return int32(f)
}

// ParseInt reads a leading decimal or 0x-prefixed hex integer; trailing
// garbage is ignored and an empty prefix yields 0.
func ParseInt(s string) int32 {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	end := 0
	for end < len(s) && digitVal(s[end]) < base {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseUint(s[:end], base, 64)
	if err != nil {
		n = math.MaxUint32
	}
	r := int32(uint32(n))
	if neg {
		r = -r
	}
	return r
}

func digitVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 99
}

// ParseFloat reads the longest leading float literal of s.
func ParseFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n")
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}

// parseComponents parses "<a, b, c>" into n floats. Malformed input gives
// all zeros, or the identity rotation for n == 4.
func parseComponents(s string, n int) []float64 {
	out := make([]float64, n)
	if n == 4 {
		out[3] = 1
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return out
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != n {
		return out
	}
	vals := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out
		}
		vals[i] = f
	}
	return vals
}
