package objcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/xmr/pkg/lsl"
)

const (
	// Magic starts every object file.
	Magic = "XMRObjectCode"
	// Version must match exactly; there is no cross-version compatibility.
	Version uint32 = 7

	handlerPrefix  = "__seh_"
	functionPrefix = "__fun_"
)

// ErrBadMagic is returned for data that is not an object file.
var ErrBadMagic = errors.New("not an XMR object file (bad magic)")

// VersionError is returned when an object file was written by a different
// format version. The script must be recompiled from source.
type VersionError struct {
	Got uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("object version is %d but accept only %d", e.Got, Version)
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("objcode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// HandlerName is the method name of the entry point for event ev in state
// stateIdx.
func HandlerName(stateIdx int, ev lsl.EventCode, state string) string {
	return fmt.Sprintf("%s%d_%d_%s_%s", handlerPrefix, stateIdx, int(ev), state, ev)
}

// FunctionName is the method name of a script-defined function.
func FunctionName(name string) string {
	return functionPrefix + name
}

// ObjectCode is the write-once artifact produced by the compiler.
type ObjectCode struct {
	Counts     GlobalCounts
	States     []string
	Globals    []GlobalInfo
	Methods    []*Method
	CompileID  uuid.UUID
	SourceHash uint64
}

// Marshal writes the container: big-endian header, debug table, CBOR
// method records and the compile trailer.
func (o *ObjectCode) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint32(buf, Version)

	for _, n := range o.Counts {
		buf = binary.BigEndian.AppendUint32(buf, uint32(n))
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(o.States)))
	for _, s := range o.States {
		buf = appendString(buf, s)
	}

	for _, g := range o.Globals {
		if g.Name == "" {
			return nil, fmt.Errorf("global with empty name in debug table")
		}
		buf = appendString(buf, g.Name)
		buf = append(buf, byte(g.Type), byte(g.Kind))
		buf = binary.BigEndian.AppendUint32(buf, uint32(g.Index))
	}
	buf = appendString(buf, "")

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(o.Methods)))
	for _, m := range o.Methods {
		rec, err := cborEncMode.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encoding method %s: %w", m.Name, err)
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(rec)))
		buf = append(buf, rec...)
	}

	buf = append(buf, o.CompileID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, o.SourceHash)
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// reader is a bounds-checked cursor over object file bytes.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int, what string) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of object file reading %s at pos %d", what, r.pos)
	}
	return nil
}

func (r *reader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	r.pos++
	return r.data[r.pos-1], nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) str(what string) (string, error) {
	if err := r.need(2, what); err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(r.data[r.pos:]))
	r.pos += 2
	b, err := r.bytes(n, what)
	return string(b), err
}

// Unmarshal parses an object file. Magic and version are checked before
// anything else is read.
func Unmarshal(data []byte) (*ObjectCode, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	r := &reader{data: data, pos: len(Magic)}
	ver, err := r.u32("version")
	if err != nil {
		return nil, err
	}
	if ver != Version {
		return nil, &VersionError{Got: ver}
	}

	o := &ObjectCode{}
	for k := range o.Counts {
		n, err := r.u32("global counts")
		if err != nil {
			return nil, err
		}
		o.Counts[k] = int(n)
	}

	nStates, err := r.u32("state count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nStates); i++ {
		s, err := r.str(fmt.Sprintf("state %d name", i))
		if err != nil {
			return nil, err
		}
		o.States = append(o.States, s)
	}

	for {
		name, err := r.str("debug table")
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		tag, err := r.u8("debug table")
		if err != nil {
			return nil, err
		}
		kind, err := r.u8("debug table")
		if err != nil {
			return nil, err
		}
		idx, err := r.u32("debug table")
		if err != nil {
			return nil, err
		}
		o.Globals = append(o.Globals, GlobalInfo{Name: name, Type: lsl.Tag(tag), Kind: GlobalKind(kind), Index: int(idx)})
	}

	nMethods, err := r.u32("method count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nMethods); i++ {
		n, err := r.u32(fmt.Sprintf("method %d length", i))
		if err != nil {
			return nil, err
		}
		rec, err := r.bytes(int(n), fmt.Sprintf("method %d", i))
		if err != nil {
			return nil, err
		}
		var m Method
		if err := cbor.Unmarshal(rec, &m); err != nil {
			return nil, fmt.Errorf("objcode: unmarshal method %d: %w", i, err)
		}
		o.Methods = append(o.Methods, &m)
	}

	id, err := r.bytes(16, "compile id")
	if err != nil {
		return nil, err
	}
	copy(o.CompileID[:], id)
	hash, err := r.bytes(8, "source hash")
	if err != nil {
		return nil, err
	}
	o.SourceHash = binary.BigEndian.Uint64(hash)
	return o, nil
}

// Program is a materialized object: the dispatch table plus callable
// functions, ready for the VM.
type Program struct {
	Counts     GlobalCounts
	States     []string
	Globals    []GlobalInfo
	Handlers   [][]*Method // [state][event]
	Functions  map[string]*Method
	CompileID  uuid.UUID
	SourceHash uint64
}

// Handler returns the entry point for (state, event), or nil.
func (p *Program) Handler(state int, ev lsl.EventCode) *Method {
	if state < 0 || state >= len(p.Handlers) || int(ev) < 0 || int(ev) >= len(p.Handlers[state]) {
		return nil
	}
	return p.Handlers[state][ev]
}

// Materialize rebuilds the dispatch table from handler method names. Any
// method not named as a handler is a callable function.
func Materialize(o *ObjectCode) (*Program, error) {
	p := &Program{
		Counts:     o.Counts,
		States:     o.States,
		Globals:    o.Globals,
		Handlers:   make([][]*Method, len(o.States)),
		Functions:  make(map[string]*Method),
		CompileID:  o.CompileID,
		SourceHash: o.SourceHash,
	}
	for i := range p.Handlers {
		p.Handlers[i] = make([]*Method, lsl.EventCount)
	}
	for _, m := range o.Methods {
		if !strings.HasPrefix(m.Name, handlerPrefix) {
			p.Functions[m.Name] = m
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(m.Name, handlerPrefix), "_", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed handler name %q", m.Name)
		}
		si, err1 := strconv.Atoi(parts[0])
		ei, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || si < 0 || si >= len(p.Handlers) || ei < 0 || ei >= lsl.EventCount {
			return nil, fmt.Errorf("handler %q out of range for %d states", m.Name, len(p.Handlers))
		}
		if p.Handlers[si][ei] != nil {
			return nil, fmt.Errorf("duplicate handler %q", m.Name)
		}
		p.Handlers[si][ei] = m
	}
	return p, nil
}

// Load unmarshals and materializes an object file.
func Load(data []byte) (*Program, error) {
	o, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return Materialize(o)
}
