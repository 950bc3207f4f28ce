package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Snapshots
//
// A snapshot captures an instance between two instructions: idle, or
// suspended at a checkpoint. Arrays are reference values, so they are
// written once to a table and values refer to them by position; aliasing
// between globals, locals and the operand stack survives a round trip.
// ---------------------------------------------------------------------------

// ErrProgramMismatch is returned when a snapshot is restored against a
// program other than the one it was taken from.
var ErrProgramMismatch = errors.New("snapshot belongs to a different compilation")

var snapEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapEncMode = em
}

// snapValue is a value with arrays replaced by a 1-based table index.
type snapValue struct {
	Value lsl.Value   `cbor:"1,keyasint"`
	Array int         `cbor:"2,keyasint,omitempty"`
	List  []snapValue `cbor:"3,keyasint,omitempty"`
}

type snapEntry struct {
	Key snapValue `cbor:"1,keyasint"`
	Val snapValue `cbor:"2,keyasint"`
}

type snapFrame struct {
	Method string      `cbor:"1,keyasint"`
	IP     int         `cbor:"2,keyasint"`
	Locals []snapValue `cbor:"3,keyasint"`
	Base   int         `cbor:"4,keyasint"`
}

type snapEvent struct {
	Code lsl.EventCode `cbor:"1,keyasint"`
	Args []snapValue   `cbor:"2,keyasint,omitempty"`
}

// Snapshot is the serialised form of an Instance.
type Snapshot struct {
	ID         uuid.UUID     `cbor:"1,keyasint"`
	CompileID  uuid.UUID     `cbor:"2,keyasint"`
	SourceHash uint64        `cbor:"3,keyasint"`
	State      int           `cbor:"4,keyasint"`
	Fields     []int32       `cbor:"5,keyasint"`
	Globals    [][]snapValue `cbor:"6,keyasint"`
	Frames     []snapFrame   `cbor:"7,keyasint,omitempty"`
	Stack      []snapValue   `cbor:"8,keyasint,omitempty"`
	Args       []snapValue   `cbor:"9,keyasint,omitempty"`
	Queue      []snapEvent   `cbor:"10,keyasint,omitempty"`
	Phase      uint8         `cbor:"11,keyasint"`
	Pending    int           `cbor:"12,keyasint"`
	Dead       bool          `cbor:"13,keyasint,omitempty"`
	Arrays     [][]snapEntry `cbor:"14,keyasint,omitempty"`
}

type arrayTable struct {
	ids    map[*lsl.Array]int
	arrays [][]snapEntry
}

func (t *arrayTable) value(v lsl.Value) snapValue {
	switch v.Kind {
	case lsl.TagArray:
		return snapValue{Value: lsl.Value{Kind: lsl.TagArray}, Array: t.array(v.A)}
	case lsl.TagList:
		sv := snapValue{Value: lsl.Value{Kind: lsl.TagList}, List: make([]snapValue, len(v.L))}
		for i, e := range v.L {
			sv.List[i] = t.value(e)
		}
		return sv
	}
	return snapValue{Value: v}
}

func (t *arrayTable) values(vs []lsl.Value) []snapValue {
	out := make([]snapValue, len(vs))
	for i, v := range vs {
		out[i] = t.value(v)
	}
	return out
}

func (t *arrayTable) array(a *lsl.Array) int {
	if id, ok := t.ids[a]; ok {
		return id
	}
	t.arrays = append(t.arrays, nil)
	id := len(t.arrays)
	t.ids[a] = id
	entries := a.Entries()
	out := make([]snapEntry, len(entries))
	for i, e := range entries {
		out[i] = snapEntry{Key: t.value(e.Key), Val: t.value(e.Value)}
	}
	t.arrays[id-1] = out
	return id
}

// Snapshot captures the instance.
func (in *Instance) Snapshot() *Snapshot {
	t := &arrayTable{ids: make(map[*lsl.Array]int)}
	s := &Snapshot{
		ID:         in.ID,
		CompileID:  in.Program.CompileID,
		SourceHash: in.Program.SourceHash,
		State:      in.state,
		Fields:     append([]int32(nil), in.fields[:]...),
		Globals:    make([][]snapValue, len(in.globals)),
		Phase:      uint8(in.phase),
		Pending:    in.pending,
		Dead:       in.dead,
	}
	for k, g := range in.globals {
		s.Globals[k] = t.values(g)
	}
	for _, f := range in.frames {
		s.Frames = append(s.Frames, snapFrame{Method: f.Method.Name, IP: f.IP, Locals: t.values(f.Locals), Base: f.Base})
	}
	s.Stack = t.values(in.stack)
	s.Args = t.values(in.args)
	for _, ev := range in.queue {
		s.Queue = append(s.Queue, snapEvent{Code: ev.Code, Args: t.values(ev.Args)})
	}
	s.Arrays = t.arrays
	return s
}

// MarshalSnapshot captures the instance as canonical CBOR.
func (in *Instance) MarshalSnapshot() ([]byte, error) {
	return snapEncMode.Marshal(in.Snapshot())
}

// UnmarshalSnapshot decodes a snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

type arrayLoader struct {
	arrays []*lsl.Array
}

func (l *arrayLoader) value(sv snapValue) (lsl.Value, error) {
	switch {
	case sv.Array > 0:
		if sv.Array > len(l.arrays) {
			return lsl.Value{}, fmt.Errorf("array reference %d out of range", sv.Array)
		}
		return lsl.ArrayValue(l.arrays[sv.Array-1]), nil
	case sv.Value.Kind == lsl.TagList:
		elems := make([]lsl.Value, len(sv.List))
		for i, e := range sv.List {
			v, err := l.value(e)
			if err != nil {
				return lsl.Value{}, err
			}
			elems[i] = v
		}
		return lsl.List(elems...), nil
	}
	return sv.Value, nil
}

func (l *arrayLoader) values(svs []snapValue) ([]lsl.Value, error) {
	if svs == nil {
		return nil, nil
	}
	out := make([]lsl.Value, len(svs))
	for i, sv := range svs {
		v, err := l.value(sv)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Restore rebuilds an instance from a snapshot of a compilation of prog.
// Host and Scheduler are not part of the snapshot; the instance gets a
// fresh LogHost and no scheduler.
func Restore(s *Snapshot, prog *objcode.Program, cfg Config) (*Instance, error) {
	if s.CompileID != prog.CompileID {
		return nil, ErrProgramMismatch
	}
	in := NewInstance(prog, cfg)
	in.ID = s.ID
	in.state = s.State
	in.phase = phase(s.Phase)
	in.pending = s.Pending
	in.dead = s.Dead
	if len(s.Fields) != len(in.fields) || len(s.Globals) != len(in.globals) {
		return nil, errors.New("vm: malformed snapshot")
	}
	copy(in.fields[:], s.Fields)

	l := &arrayLoader{arrays: make([]*lsl.Array, len(s.Arrays))}
	for i := range l.arrays {
		l.arrays[i] = lsl.NewArray()
	}
	for i, entries := range s.Arrays {
		for _, e := range entries {
			k, err := l.value(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := l.value(e.Val)
			if err != nil {
				return nil, err
			}
			l.arrays[i].Set(k, v)
		}
	}

	var err error
	for k := range in.globals {
		if len(s.Globals[k]) != prog.Counts[k] {
			return nil, fmt.Errorf("vm: snapshot has %d %s, program has %d", len(s.Globals[k]), objcode.GlobalKind(k), prog.Counts[k])
		}
		if in.globals[k], err = l.values(s.Globals[k]); err != nil {
			return nil, err
		}
	}

	methods := methodsByName(prog)
	in.frames = nil
	for _, sf := range s.Frames {
		m, ok := methods[sf.Method]
		if !ok {
			return nil, fmt.Errorf("vm: snapshot frame names unknown method %s", sf.Method)
		}
		if len(sf.Locals) != m.NumLocals {
			return nil, fmt.Errorf("vm: snapshot frame of %s has %d locals, method has %d", sf.Method, len(sf.Locals), m.NumLocals)
		}
		if sf.IP < 0 || sf.IP >= len(m.Code) {
			return nil, fmt.Errorf("vm: snapshot frame of %s resumes at %d outside its code", sf.Method, sf.IP)
		}
		if sf.Base < 0 || sf.Base > len(s.Stack) {
			return nil, fmt.Errorf("vm: snapshot frame of %s has stack base %d", sf.Method, sf.Base)
		}
		f := &frame{Method: m, IP: sf.IP, Base: sf.Base}
		if f.Locals, err = l.values(sf.Locals); err != nil {
			return nil, err
		}
		in.frames = append(in.frames, f)
	}
	if in.stack, err = l.values(s.Stack); err != nil {
		return nil, err
	}
	if in.args, err = l.values(s.Args); err != nil {
		return nil, err
	}
	in.queue = nil
	for _, se := range s.Queue {
		args, err := l.values(se.Args)
		if err != nil {
			return nil, err
		}
		in.queue = append(in.queue, Event{Code: se.Code, Args: args})
	}
	return in, nil
}

func methodsByName(prog *objcode.Program) map[string]*objcode.Method {
	out := make(map[string]*objcode.Method, len(prog.Functions))
	for name, m := range prog.Functions {
		out[name] = m
	}
	for _, row := range prog.Handlers {
		for _, m := range row {
			if m != nil {
				out[m.Name] = m
			}
		}
	}
	return out
}
