package compiler

import (
	"fmt"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Storage allocation and lexical scopes
// ---------------------------------------------------------------------------

// globalAlloc assigns globals to slots in the per-kind global arrays.
type globalAlloc struct {
	counts objcode.GlobalCounts
	infos  []objcode.GlobalInfo
	byName map[string]*globalVal
}

func newGlobalAlloc() *globalAlloc {
	return &globalAlloc{byName: make(map[string]*globalVal)}
}

func (a *globalAlloc) slot(name string, t lsl.Tag) *globalVal {
	kind, _ := objcode.KindFor(t)
	info := objcode.GlobalInfo{Name: name, Type: t, Kind: kind, Index: a.counts[kind]}
	a.counts[kind]++
	a.infos = append(a.infos, info)
	return &globalVal{info: info}
}

// DeclareGlobal allocates a global. Heap-tracked types also get an
// integer tracker global.
func (a *globalAlloc) DeclareGlobal(name string, t lsl.Tag) (*globalVal, error) {
	if _, dup := a.byName[name]; dup {
		return nil, fmt.Errorf("duplicate global variable %s", name)
	}
	if _, ok := objcode.KindFor(t); !ok {
		return nil, fmt.Errorf("global %s cannot have type %s", name, t)
	}
	gv := a.slot(name, t)
	if t.HeapTracked() {
		gv.heap = a.slot("__heap_"+name, lsl.TagInt)
	}
	a.byName[name] = gv
	return gv, nil
}

// Resolve finds a global by name.
func (a *globalAlloc) Resolve(name string) (*globalVal, bool) {
	gv, ok := a.byName[name]
	return gv, ok
}

// scopeStack is the stack of lexical frames of the function being lowered.
// Frame 0 holds the parameters.
type scopeStack struct {
	frames []map[string]value
}

// PushScope opens a frame.
func (s *scopeStack) PushScope() {
	s.frames = append(s.frames, make(map[string]value))
}

// PopScope closes the innermost frame.
func (s *scopeStack) PopScope() {
	s.frames = s.frames[:len(s.frames)-1]
}

// DeclareLocal makes name visible in the innermost frame. The outermost
// block of a body shares its names with the parameters.
func (s *scopeStack) DeclareLocal(name string, v value) error {
	top := s.frames[len(s.frames)-1]
	if _, dup := top[name]; dup {
		return fmt.Errorf("duplicate variable %s", name)
	}
	if len(s.frames) == 2 {
		if _, dup := s.frames[0][name]; dup {
			return fmt.Errorf("duplicate variable %s", name)
		}
	}
	top[name] = v
	return nil
}

// Resolve looks name up innermost first.
func (s *scopeStack) Resolve(name string) (value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}
