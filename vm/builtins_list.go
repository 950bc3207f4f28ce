package vm

import (
	"strings"

	"github.com/chazu/xmr/pkg/lsl"
)

// listElem returns element i of l, counting from the end when negative.
func listElem(l []lsl.Value, i int32) (lsl.Value, bool) {
	n := int32(len(l))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return lsl.Value{}, false
	}
	return l[i], true
}

// list2 converts an element the way the llList2* family does: missing
// elements and failed conversions give the type's default.
func list2(to lsl.Tag) builtinFunc {
	return func(a []lsl.Value) (lsl.Value, error) {
		e, ok := listElem(a[0].L, a[1].I)
		if !ok {
			return lsl.Default(to), nil
		}
		if to == lsl.TagString || to == lsl.TagKey {
			s := e.String()
			if to == lsl.TagKey {
				return lsl.Key(s), nil
			}
			return lsl.String(s), nil
		}
		if e.Kind == lsl.TagKey {
			e = lsl.String(e.S)
		}
		v, err := lsl.Convert(e, to)
		if err != nil {
			return lsl.Default(to), nil
		}
		return v, nil
	}
}

func defineListBuiltins() {
	def("llGetListLength(list)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(int32(len(a[0].L))), nil
	})
	def("llList2Integer(list,integer)", list2(lsl.TagInt))
	def("llList2Float(list,integer)", list2(lsl.TagFloat))
	def("llList2String(list,integer)", list2(lsl.TagString))
	def("llList2Key(list,integer)", list2(lsl.TagKey))
	def("llList2Vector(list,integer)", list2(lsl.TagVector))
	def("llList2Rot(list,integer)", list2(lsl.TagRotation))
	def("llList2List(list,integer,integer)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.List(slice(a[0].L, int(a[1].I), int(a[2].I))...), nil
	})
	def("llDeleteSubList(list,integer,integer)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.List(cut(a[0].L, int(a[1].I), int(a[2].I))...), nil
	})
	def("llListInsertList(list,list,integer)", func(a []lsl.Value) (lsl.Value, error) {
		dst, src, pos := a[0].L, a[1].L, int(a[2].I)
		if pos < 0 {
			pos += len(dst)
		}
		pos = max(0, min(pos, len(dst)))
		out := make([]lsl.Value, 0, len(dst)+len(src))
		out = append(out, dst[:pos]...)
		out = append(out, src...)
		return lsl.List(append(out, dst[pos:]...)...), nil
	})
	def("llListReplaceList(list,list,integer,integer)", func(a []lsl.Value) (lsl.Value, error) {
		dst, src := a[0].L, a[1].L
		start, end := int(a[2].I), int(a[3].I)
		n := len(dst)
		lo, hi, inv := span(n, start, end)
		if inv {
			// Replacing a wrapped range keeps only the middle, then appends.
			var kept []lsl.Value
			if a, b := max(hi+1, 0), min(lo, n); a < b {
				kept = append(kept, dst[a:b]...)
			}
			return lsl.List(append(kept, src...)...), nil
		}
		lo = max(lo, 0)
		if lo > n {
			lo = n
		}
		out := append([]lsl.Value(nil), dst[:lo]...)
		out = append(out, src...)
		if hi+1 < n {
			out = append(out, dst[max(hi+1, lo):]...)
		}
		return lsl.List(out...), nil
	})
	def("llListFindList(list,list)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.Int(int32(findList(a[0].L, a[1].L))), nil
	})
	def("llGetListEntryType(list,integer)", func(a []lsl.Value) (lsl.Value, error) {
		e, ok := listElem(a[0].L, a[1].I)
		if !ok {
			return lsl.Int(0), nil
		}
		return lsl.Int(lsl.ListEntryType(e)), nil
	})
	def("llList2CSV(list)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.String(joinList(a[0].L, ", ")), nil
	})
	def("llCSV2List(string)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.List(splitCSV(a[0].S)...), nil
	})
	def("llDumpList2String(list,string)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.String(joinList(a[0].L, a[1].S)), nil
	})
	def("llParseString2List(string,list,list)", func(a []lsl.Value) (lsl.Value, error) {
		return lsl.List(parseString(a[0].S, listStrings(a[1].L), listStrings(a[2].L))...), nil
	})
}

func findList(src, test []lsl.Value) int {
	if len(test) == 0 || len(test) > len(src) {
		return -1
	}
outer:
	for i := 0; i+len(test) <= len(src); i++ {
		for j, t := range test {
			if !lsl.Same(src[i+j], t) {
				continue outer
			}
		}
		return i
	}
	return -1
}

func joinList(l []lsl.Value, sep string) string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}

// splitCSV splits on commas outside angle brackets and trims each field.
func splitCSV(s string) []lsl.Value {
	var out []lsl.Value
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, lsl.String(strings.TrimSpace(s[start:i])))
				start = i + 1
			}
		}
	}
	if s == "" {
		return nil
	}
	return append(out, lsl.String(strings.TrimSpace(s[start:])))
}

func listStrings(l []lsl.Value) []string {
	var out []string
	for _, e := range l {
		if s := e.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseString splits s on separators, which are dropped, and spacers,
// which are kept as their own elements. Empty fields are discarded. At
// each position the earliest match wins, separators before spacers.
func parseString(s string, seps, spacers []string) []lsl.Value {
	var out []lsl.Value
	field := 0
	for i := 0; i < len(s); {
		tok, keep := matchAt(s, i, seps, spacers)
		if tok == "" {
			i++
			continue
		}
		if i > field {
			out = append(out, lsl.String(s[field:i]))
		}
		if keep {
			out = append(out, lsl.String(tok))
		}
		i += len(tok)
		field = i
	}
	if field < len(s) {
		out = append(out, lsl.String(s[field:]))
	}
	return out
}

func matchAt(s string, i int, seps, spacers []string) (string, bool) {
	for _, sep := range seps {
		if strings.HasPrefix(s[i:], sep) {
			return sep, false
		}
	}
	for _, sp := range spacers {
		if strings.HasPrefix(s[i:], sp) {
			return sp, true
		}
	}
	return "", false
}
