package vm

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/chazu/xmr/pkg/lsl"
)

// ---------------------------------------------------------------------------
// Pure intrinsics
//
// Builtins are keyed by the full signature the compiler resolved, so each
// overload has its own entry. Host intrinsics are not here; they go to the
// instance's Host.
// ---------------------------------------------------------------------------

type builtinFunc func(args []lsl.Value) (lsl.Value, error)

var builtins = map[string]builtinFunc{}

func def(key string, fn builtinFunc) {
	if _, dup := builtins[key]; dup {
		panic("vm: duplicate builtin " + key)
	}
	builtins[key] = fn
}

// lookupBuiltin returns the implementation of a pure intrinsic.
func lookupBuiltin(key string) (builtinFunc, bool) {
	fn, ok := builtins[key]
	return fn, ok
}

func mathf(fn func(float64) float64) builtinFunc {
	return func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Float(fn(a[0].F)), nil
	}
}

func str(s string) lsl.Value { return lsl.String(s) }

func init() {
	// math
	def("llAbs(integer)", func(a []lsl.Value) (lsl.Value, error) {
		if a[0].I < 0 {
			return lsl.Int(-a[0].I), nil
		}
		return a[0], nil
	})
	def("llFabs(float)", mathf(math.Abs))
	def("llFloor(float)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(lsl.FloatToInt(math.Floor(a[0].F))), nil
	})
	def("llCeil(float)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(lsl.FloatToInt(math.Ceil(a[0].F))), nil
	})
	def("llRound(float)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(lsl.FloatToInt(math.Floor(a[0].F + 0.5))), nil
	})
	def("llSqrt(float)", func(a []lsl.Value) (lsl.Value, error) {
		if a[0].F < 0 {
			return lsl.Value{}, errMath
		}
		return lsl.Float(math.Sqrt(a[0].F)), nil
	})
	def("llPow(float,float)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Float(math.Pow(a[0].F, a[1].F)), nil
	})
	def("llSin(float)", mathf(math.Sin))
	def("llCos(float)", mathf(math.Cos))
	def("llTan(float)", mathf(math.Tan))
	def("llAsin(float)", mathf(math.Asin))
	def("llAcos(float)", mathf(math.Acos))
	def("llAtan2(float,float)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Float(math.Atan2(a[0].F, a[1].F)), nil
	})
	def("llLog(float)", mathf(func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return math.Log(x)
	}))
	def("llLog10(float)", mathf(func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return math.Log10(x)
	}))
	def("llFrand(float)", mathf(func(x float64) float64 { return rand.Float64() * x }))
	def("llModPow(integer,integer,integer)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(modPow(a[0].I, a[1].I, a[2].I)), nil
	})

	// vectors and rotations
	def("llVecMag(vector)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Float(magnitude(a[0].V)), nil
	})
	def("llVecNorm(vector)", func(a []lsl.Value) (lsl.Value, error) {
		m := magnitude(a[0].V)
		if m == 0 {
			return lsl.Vector(0, 0, 0), nil
		}
		v := a[0].V
		return lsl.Vector(v[0]/m, v[1]/m, v[2]/m), nil
	})
	def("llVecDist(vector,vector)", func(a []lsl.Value) (lsl.Value, error) {
		u, v := a[0].V, a[1].V
		return lsl.Float(magnitude([4]float64{u[0] - v[0], u[1] - v[1], u[2] - v[2]})), nil
	})
	def("llEuler2Rot(vector)", func(a []lsl.Value) (lsl.Value, error) {
		return rotValue(euler2Rot(a[0].V)), nil
	})
	def("llRot2Euler(rotation)", func(a []lsl.Value) (lsl.Value, error) {
		return vecValue(rot2Euler(a[0].V)), nil
	})
	def("llAxisAngle2Rot(vector,float)", func(a []lsl.Value) (lsl.Value, error) {
		axis, m := a[0].V, magnitude(a[0].V)
		if m == 0 {
			return lsl.Rotation(0, 0, 0, 1), nil
		}
		s, c := math.Sincos(a[1].F / 2)
		return lsl.Rotation(axis[0]/m*s, axis[1]/m*s, axis[2]/m*s, c), nil
	})
	def("llRot2Angle(rotation)", func(a []lsl.Value) (lsl.Value, error) {
		q := normQuat(a[0].V)
		return lsl.Float(2 * math.Acos(math.Max(-1, math.Min(1, q[3])))), nil
	})
	def("llRot2Axis(rotation)", func(a []lsl.Value) (lsl.Value, error) {
		q := normQuat(a[0].V)
		m := magnitude(q)
		if m == 0 {
			return lsl.Vector(0, 0, 0), nil
		}
		return lsl.Vector(q[0]/m, q[1]/m, q[2]/m), nil
	})

	// strings
	def("llStringLength(string)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(int32(utf8.RuneCountInString(a[0].S))), nil
	})
	def("llGetSubString(string,integer,integer)", func(a []lsl.Value) (lsl.Value, error) {
		r := []rune(a[0].S)
		return str(string(slice(r, int(a[1].I), int(a[2].I)))), nil
	})
	def("llDeleteSubString(string,integer,integer)", func(a []lsl.Value) (lsl.Value, error) {
		r := []rune(a[0].S)
		return str(string(cut(r, int(a[1].I), int(a[2].I)))), nil
	})
	def("llInsertString(string,integer,string)", func(a []lsl.Value) (lsl.Value, error) {
		r := []rune(a[0].S)
		pos := int(a[1].I)
		if pos < 0 {
			pos = 0
		}
		if pos > len(r) {
			pos = len(r)
		}
		return str(string(r[:pos]) + a[2].S + string(r[pos:])), nil
	})
	def("llSubStringIndex(string,string)", func(a []lsl.Value) (lsl.Value, error) {
		i := strings.Index(a[0].S, a[1].S)
		if i < 0 {
			return lsl.Int(-1), nil
		}
		return lsl.Int(int32(utf8.RuneCountInString(a[0].S[:i]))), nil
	})
	def("llToUpper(string)", func(a []lsl.Value) (lsl.Value, error) { return str(strings.ToUpper(a[0].S)), nil })
	def("llToLower(string)", func(a []lsl.Value) (lsl.Value, error) { return str(strings.ToLower(a[0].S)), nil })
	def("llStringTrim(string,integer)", func(a []lsl.Value) (lsl.Value, error) {
		s := a[0].S
		if a[1].I&1 != 0 {
			s = strings.TrimLeft(s, " \t\r\n")
		}
		if a[1].I&2 != 0 {
			s = strings.TrimRight(s, " \t\r\n")
		}
		return str(s), nil
	})
	def("llMD5String(string,integer)", func(a []lsl.Value) (lsl.Value, error) {
		sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", a[0].S, a[1].I)))
		return str(hex.EncodeToString(sum[:])), nil
	})
	def("llSHA1String(string)", func(a []lsl.Value) (lsl.Value, error) {
		sum := sha1.Sum([]byte(a[0].S))
		return str(hex.EncodeToString(sum[:])), nil
	})
	def("llStringToBase64(string)", func(a []lsl.Value) (lsl.Value, error) {
		return str(base64.StdEncoding.EncodeToString([]byte(a[0].S))), nil
	})
	def("llBase64ToString(string)", func(a []lsl.Value) (lsl.Value, error) {
		b, err := base64.StdEncoding.DecodeString(a[0].S)
		if err != nil {
			return str(""), nil
		}
		return str(string(b)), nil
	})
	def("llEscapeURL(string)", func(a []lsl.Value) (lsl.Value, error) { return str(escapeURL(a[0].S)), nil })
	def("llUnescapeURL(string)", func(a []lsl.Value) (lsl.Value, error) { return str(unescapeURL(a[0].S)), nil })

	// formatting overloads
	for _, t := range []string{"integer", "float", "vector", "rotation", "key"} {
		def("xmrStr("+t+")", func(a []lsl.Value) (lsl.Value, error) { return str(a[0].String()), nil })
	}

	defineListBuiltins()
}

func modPow(base, exp, mod int32) int32 {
	if mod == 0 || exp < 0 {
		return 0
	}
	m := int64(mod)
	r, b := int64(1)%m, int64(base)%m
	for e := exp; e > 0; e >>= 1 {
		if e&1 != 0 {
			r = r * b % m
		}
		b = b * b % m
	}
	return int32(r)
}

// euler2Rot builds a rotation from x, y and z angles in radians.
func euler2Rot(v [4]float64) [4]float64 {
	ax, aw := math.Sincos(v[0] / 2)
	by, bw := math.Sincos(v[1] / 2)
	cz, cw := math.Sincos(v[2] / 2)
	return [4]float64{
		aw*by*cz + ax*bw*cw,
		aw*by*cw - ax*bw*cz,
		aw*bw*cz + ax*by*cw,
		aw*bw*cw - ax*by*cz,
	}
}

// rot2Euler is the inverse of euler2Rot.
func rot2Euler(q [4]float64) [4]float64 {
	q = normQuat(q)
	x, y, z, w := q[0], q[1], q[2], q[3]
	r02 := 2 * (x*z + y*w)
	r12 := 2 * (y*z - x*w)
	r22 := 1 - 2*(x*x+y*y)
	r01 := 2 * (x*y - z*w)
	r00 := 1 - 2*(y*y+z*z)
	return [4]float64{
		math.Atan2(-r12, r22),
		math.Asin(math.Max(-1, math.Min(1, r02))),
		math.Atan2(-r01, r00),
	}
}

func normQuat(q [4]float64) [4]float64 {
	m := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if m == 0 {
		return [4]float64{0, 0, 0, 1}
	}
	return [4]float64{q[0] / m, q[1] / m, q[2] / m, q[3] / m}
}

// span resolves a start/end pair the way substring and sublist functions
// do: negative indices count from the end, and start > end selects
// everything outside end+1..start-1.
func span(n, start, end int) (lo, hi int, inverted bool) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	return start, end, start > end
}

func clampRange(n, lo, hi int) (int, int) {
	lo = max(lo, 0)
	hi = min(hi, n-1)
	return lo, hi
}

// slice returns elements start..end inclusive.
func slice[T any](s []T, start, end int) []T {
	n := len(s)
	lo, hi, inv := span(n, start, end)
	if !inv {
		lo, hi = clampRange(n, lo, hi)
		if lo > hi {
			return nil
		}
		return append([]T(nil), s[lo:hi+1]...)
	}
	var out []T
	if hi >= 0 {
		out = append(out, s[:min(hi, n-1)+1]...)
	}
	if lo < n {
		out = append(out, s[max(lo, 0):]...)
	}
	return out
}

// cut removes elements start..end inclusive.
func cut[T any](s []T, start, end int) []T {
	n := len(s)
	lo, hi, inv := span(n, start, end)
	if !inv {
		lo, hi = clampRange(n, lo, hi)
		if lo > hi {
			return append([]T(nil), s...)
		}
		out := append([]T(nil), s[:lo]...)
		return append(out, s[hi+1:]...)
	}
	lo, hi = hi+1, lo-1
	lo, hi = clampRange(n, lo, hi)
	if lo > hi {
		return nil
	}
	return append([]T(nil), s[lo:hi+1]...)
}

func escapeURL(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' {
			sb.WriteByte(b)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", b)
	}
	return sb.String()
}

func unescapeURL(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if b, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
				out = append(out, b[0])
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}
