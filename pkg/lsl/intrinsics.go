package lsl

// Intrinsic is a host-provided function callable from scripts.
type Intrinsic struct {
	Signature
	// Host is set for functions that reach the embedding host (chat,
	// timers, object identity); the rest are pure library functions.
	Host bool
}

func pure(name string, ret Tag, params ...Tag) Intrinsic {
	return Intrinsic{Signature: Signature{Name: name, Params: params, Ret: ret}}
}

func host(name string, ret Tag, params ...Tag) Intrinsic {
	return Intrinsic{Signature: Signature{Name: name, Params: params, Ret: ret}, Host: true}
}

// Intrinsics is the static catalog of callable functions. Overloads share
// a name and differ by parameter types.
var Intrinsics = func() []Intrinsic {
	const (
		none = TagVoid
		i    = TagInt
		f    = TagFloat
		s    = TagString
		k    = TagKey
		l    = TagList
		v    = TagVector
		r    = TagRotation
	)
	return []Intrinsic{
		// math
		pure("llAbs", i, i),
		pure("llFabs", f, f),
		pure("llFloor", i, f),
		pure("llCeil", i, f),
		pure("llRound", i, f),
		pure("llSqrt", f, f),
		pure("llPow", f, f, f),
		pure("llSin", f, f),
		pure("llCos", f, f),
		pure("llTan", f, f),
		pure("llAsin", f, f),
		pure("llAcos", f, f),
		pure("llAtan2", f, f, f),
		pure("llLog", f, f),
		pure("llLog10", f, f),
		pure("llFrand", f, f),
		pure("llModPow", i, i, i, i),

		// vectors and rotations
		pure("llVecMag", f, v),
		pure("llVecNorm", v, v),
		pure("llVecDist", f, v, v),
		pure("llEuler2Rot", r, v),
		pure("llRot2Euler", v, r),
		pure("llAxisAngle2Rot", r, v, f),
		pure("llRot2Angle", f, r),
		pure("llRot2Axis", v, r),

		// strings
		pure("llStringLength", i, s),
		pure("llGetSubString", s, s, i, i),
		pure("llDeleteSubString", s, s, i, i),
		pure("llInsertString", s, s, i, s),
		pure("llSubStringIndex", i, s, s),
		pure("llToUpper", s, s),
		pure("llToLower", s, s),
		pure("llStringTrim", s, s, i),
		pure("llMD5String", s, s, i),
		pure("llSHA1String", s, s),
		pure("llStringToBase64", s, s),
		pure("llBase64ToString", s, s),
		pure("llEscapeURL", s, s),
		pure("llUnescapeURL", s, s),

		// lists
		pure("llGetListLength", i, l),
		pure("llList2Integer", i, l, i),
		pure("llList2Float", f, l, i),
		pure("llList2String", s, l, i),
		pure("llList2Key", k, l, i),
		pure("llList2Vector", v, l, i),
		pure("llList2Rot", r, l, i),
		pure("llList2List", l, l, i, i),
		pure("llDeleteSubList", l, l, i, i),
		pure("llListInsertList", l, l, l, i),
		pure("llListReplaceList", l, l, l, i, i),
		pure("llListFindList", i, l, l),
		pure("llGetListEntryType", i, l, i),
		pure("llList2CSV", s, l),
		pure("llCSV2List", l, s),
		pure("llDumpList2String", s, l, s),
		pure("llParseString2List", l, s, l, l),

		// formatting overloads
		pure("xmrStr", s, i),
		pure("xmrStr", s, f),
		pure("xmrStr", s, v),
		pure("xmrStr", s, r),
		pure("xmrStr", s, k),

		// host
		host("llSay", none, i, s),
		host("llShout", none, i, s),
		host("llWhisper", none, i, s),
		host("llRegionSay", none, i, s),
		host("llOwnerSay", none, s),
		host("llSetText", none, s, v, f),
		host("llSetTimerEvent", none, f),
		host("llListen", i, i, s, k, s),
		host("llListenRemove", none, i),
		host("llMessageLinked", none, i, i, s, k),
		host("llGetKey", k),
		host("llGetOwner", k),
		host("llGetObjectName", s),
		host("llGetTime", f),
		host("llResetTime", none),
		host("llGetUnixTime", i),
		host("llSleep", none, f),
		host("llResetScript", none),
		host("llDie", none),
	}
}()

// IntrinsicIndex groups the catalog for call resolution.
type IntrinsicIndex struct {
	bySig  map[string]Intrinsic
	byName map[string][]Intrinsic
	names  []string
}

// NewIntrinsicIndex indexes a catalog by exact signature and by name.
func NewIntrinsicIndex(catalog []Intrinsic) *IntrinsicIndex {
	ix := &IntrinsicIndex{
		bySig:  make(map[string]Intrinsic, len(catalog)),
		byName: make(map[string][]Intrinsic),
	}
	for _, fn := range catalog {
		ix.bySig[fn.Key()] = fn
		if _, ok := ix.byName[fn.Name]; !ok {
			ix.names = append(ix.names, fn.Name)
		}
		ix.byName[fn.Name] = append(ix.byName[fn.Name], fn)
	}
	return ix
}

// Exact finds the entry whose key is name(args...).
func (ix *IntrinsicIndex) Exact(name string, args []Tag) (Intrinsic, bool) {
	fn, ok := ix.bySig[name+ArgSig(args)]
	return fn, ok
}

// Named returns every overload of name.
func (ix *IntrinsicIndex) Named(name string) []Intrinsic {
	return ix.byName[name]
}

// Names returns the distinct function names, in catalog order.
func (ix *IntrinsicIndex) Names() []string {
	return ix.names
}
