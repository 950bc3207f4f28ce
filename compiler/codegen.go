package compiler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Codegen: lower a script to object code
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("xmr.compiler")

// Compiler lowers one script. It is single-use; the shared, read-only
// state lives in Tables.
type Compiler struct {
	diagSink
	tables  *Tables
	script  *Script
	globals *globalAlloc
	gvars   []*globalVal
	funcs   map[string]*FuncDecl
	infos   map[string]*funcInfo
	states  map[string]int
	methods []*objcode.Method
}

// NewCompiler creates a compiler using the given tables.
func NewCompiler(tables *Tables) *Compiler {
	return &Compiler{
		tables:  tables,
		globals: newGlobalAlloc(),
		funcs:   make(map[string]*FuncDecl),
		infos:   make(map[string]*funcInfo),
		states:  make(map[string]int),
	}
}

// Compile parses and compiles source. On any diagnostic the object is nil.
func Compile(source string, tables *Tables) (*objcode.ObjectCode, Diagnostics) {
	script, diags := Parse(source)
	if len(diags) > 0 {
		log.Infof("parse failed with %d diagnostics", len(diags))
		return nil, diags.Sorted()
	}
	obj, diags := NewCompiler(tables).CompileScript(script)
	if obj != nil {
		obj.SourceHash = xxh3.HashString(source)
	}
	return obj, diags
}

// CompileScript lowers a parsed script. Diagnostics do not stop the pass,
// but if there are any the returned object is nil.
func (c *Compiler) CompileScript(script *Script) (*objcode.ObjectCode, Diagnostics) {
	c.script = script

	c.declareStates()
	c.declareGlobals()
	c.declareFuncs()

	for _, fn := range script.Funcs {
		if c.funcs[fn.Name] == fn {
			c.genFunction(fn)
		}
	}
	for si, st := range script.States {
		c.genState(si, st)
	}

	if len(c.diags) > 0 {
		log.Infof("compile failed with %d diagnostics", len(c.diags))
		return nil, c.diags.Sorted()
	}

	obj := &objcode.ObjectCode{
		Counts:    c.globals.counts,
		Globals:   c.globals.infos,
		Methods:   c.methods,
		CompileID: uuid.New(),
	}
	for _, st := range script.States {
		obj.States = append(obj.States, st.Name)
	}
	log.Infof("compiled %d states, %d methods, %d globals", len(obj.States), len(obj.Methods), len(obj.Globals))
	return obj, nil
}

func (c *Compiler) declareStates() {
	if len(c.script.States) == 0 || c.script.States[0].Name != "default" {
		c.errorAt(Position{Line: 1, Column: 1}, "default state must be first")
	}
	for i, st := range c.script.States {
		if _, dup := c.states[st.Name]; dup {
			c.errorAt(st.Span().Start, "duplicate state %s", st.Name)
			continue
		}
		c.states[st.Name] = i
	}
}

func (c *Compiler) declareGlobals() {
	for _, d := range c.script.Globals {
		gv, err := c.globals.DeclareGlobal(d.Name, d.Type)
		if err != nil {
			c.errorAt(d.Span().Start, "%s", err)
		}
		c.gvars = append(c.gvars, gv)
	}
}

func (c *Compiler) declareFuncs() {
	for _, fn := range c.script.Funcs {
		if _, dup := c.funcs[fn.Name]; dup {
			c.errorAt(fn.Span().Start, "duplicate function %s", fn.Name)
			continue
		}
		c.funcs[fn.Name] = fn
		c.infos[fn.Name] = analyzeFunc(fn.Body, &c.diagSink)
	}
	propagateStateChanges(c.infos)
}

// ---------------------------------------------------------------------------
// Per-function lowering context
// ---------------------------------------------------------------------------

// funcGen lowers one function or handler body into a method.
type funcGen struct {
	c        *Compiler
	b        *objcode.Builder
	info     *funcInfo
	ret      lsl.Tag
	retLabel objcode.Label
	retval   *localVal
	scopes   scopeStack
	locals   map[*VarDecl]*localVal
	tracked  []*localVal
	labels   map[string]objcode.Label
	ntemp    int
}

func (c *Compiler) newFuncGen(b *objcode.Builder, info *funcInfo, ret lsl.Tag) *funcGen {
	g := &funcGen{
		c:      c,
		b:      b,
		info:   info,
		ret:    ret,
		locals: make(map[*VarDecl]*localVal),
		labels: make(map[string]objcode.Label),
	}
	g.retLabel = b.NewLabel()
	for name := range info.labels {
		g.labels[name] = b.NewLabel()
	}
	g.scopes.PushScope()
	return g
}

func (g *funcGen) errorAt(pos Position, format string, args ...interface{}) {
	g.c.errorAt(pos, format, args...)
}

// newTemp allocates a fresh temporary slot.
func (g *funcGen) newTemp(t lsl.Tag) *localVal {
	g.ntemp++
	name := fmt.Sprintf("__tmp%d", g.ntemp)
	return &localVal{slot: g.b.NewLocal(name), t: t, name: name, temp: true}
}

// toTemp copies v into a fresh temporary so later side effects cannot
// change it.
func (g *funcGen) toTemp(v value) value {
	if v.Type() == lsl.TagVoid || isReported(v) {
		return v
	}
	t := g.newTemp(v.Type())
	v.push(g)
	t.storePost(g)
	return t
}

// param declares a parameter or event argument already held in slot.
func (g *funcGen) param(p Param, slot uint16) {
	l := &localVal{slot: slot, t: p.Type, name: p.Name}
	g.track(l)
	if err := g.scopes.DeclareLocal(p.Name, l); err != nil {
		g.errorAt(p.SpanVal.Start, "%s", err)
	}
}

// header charges tracked parameters, gives every local of the body (nested
// blocks included) its slot and default value, and emits the entry
// checkpoint.
func (g *funcGen) header(line int) {
	for _, l := range g.tracked {
		g.onWrite(l, false)
	}
	for _, d := range g.info.locals {
		l := &localVal{slot: g.b.NewLocal(d.Name), t: d.Type, name: d.Name}
		g.locals[d] = l
		g.track(l)
		g.b.EmitU8(objcode.OpDefault, uint8(d.Type))
		l.storePost(g)
		g.onWrite(l, false)
	}
	if g.ret != lsl.TagVoid {
		g.retval = &localVal{slot: g.b.NewLocal("__retval"), t: g.ret, name: "__retval"}
		g.b.EmitU8(objcode.OpDefault, uint8(g.ret))
		g.retval.storePost(g)
	}
	g.checkRun(line)
}

// epilog is the single exit: every return, state change and the end of
// the body arrive here.
func (g *funcGen) epilog() {
	g.b.Mark(g.retLabel)
	g.creditAll()
	if g.retval != nil {
		g.retval.push(g)
	}
	g.b.Emit(objcode.OpRet)
}

func (g *funcGen) checkRun(line int) {
	g.b.EmitU32(objcode.OpCheckRun, uint32(line))
}

func (g *funcGen) finish() {
	m, err := g.b.Finish()
	if err != nil {
		g.errorAt(Position{}, "internal error: %s", err)
		return
	}
	g.c.methods = append(g.c.methods, m)
}

// ---------------------------------------------------------------------------
// Functions and handlers
// ---------------------------------------------------------------------------

func (c *Compiler) genFunction(fn *FuncDecl) {
	params := make([]lsl.Tag, len(fn.Params))
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type
		names[i] = p.Name
	}
	b := objcode.NewBuilder(objcode.FunctionName(fn.Name), params, names, fn.Ret)
	b.SetLine(fn.Span().Start.Line)
	g := c.newFuncGen(b, c.infos[fn.Name], fn.Ret)
	for i, p := range fn.Params {
		g.param(p, uint16(i))
	}
	g.header(fn.Span().Start.Line)
	g.block(fn.Body)
	g.epilog()
	g.finish()
}

func (c *Compiler) genState(si int, st *StateDecl) {
	seen := make(map[string]bool)
	hasEntry := false
	for _, h := range st.Handlers {
		if seen[h.Name] {
			c.errorAt(h.Span().Start, "duplicate handler %s in state %s", h.Name, st.Name)
			continue
		}
		seen[h.Name] = true
		if h.Name == "state_entry" {
			hasEntry = true
		}
		c.genHandler(si, st, h)
	}
	if si == 0 && !hasEntry {
		c.genHandler(si, st, &FuncDecl{SpanVal: st.SpanVal, Name: "state_entry", Body: &Block{SpanVal: st.SpanVal}})
	}
}

// genHandler validates a handler against the event catalog and lowers it.
// Mismatched parameters are reported but lowering goes on with the
// declared types.
func (c *Compiler) genHandler(si int, st *StateDecl, h *FuncDecl) {
	pos := h.Span().Start
	ev, code, ok := c.tables.Event(h.Name)
	name := "__seh_invalid"
	if !ok {
		c.errorAt(pos, "unknown event handler %s", h.Name)
	} else {
		name = objcode.HandlerName(si, code, st.Name)
		if len(h.Params) != len(ev.Params) {
			c.errorAt(pos, "%s(...) supposed to have %d arg(s), not %d", h.Name, len(ev.Params), len(h.Params))
		} else {
			for i, p := range h.Params {
				if p.Type != ev.Params[i] {
					c.errorAt(p.SpanVal.Start, "%s(...) argument %d must be %s, not %s", h.Name, i+1, ev.Params[i], p.Type)
				}
			}
		}
	}

	b := objcode.NewBuilder(name, nil, nil, lsl.TagVoid)
	b.SetLine(pos.Line)
	g := c.newFuncGen(b, analyzeFunc(h.Body, &c.diagSink), lsl.TagVoid)

	// Event arguments leave the scheduler-owned array before anything can
	// suspend.
	for i, p := range h.Params {
		slot := b.NewLocal(p.Name)
		b.EmitU8(objcode.OpLoadEhArg, uint8(i))
		if ok && i < len(ev.Params) && ev.Params[i] != p.Type && lsl.ClassifyCast(ev.Params[i], p.Type).Allowed(true) {
			b.EmitU8(objcode.OpCast, uint8(p.Type))
		}
		b.EmitU16(objcode.OpStoreLocal, slot)
		g.param(p, slot)
	}

	if si == 0 && h.Name == "state_entry" {
		g.globalInit()
	}
	g.header(pos.Line)
	g.block(h.Body)
	g.epilog()
	if ok {
		g.finish()
	}
}

// globalInit emits the one-shot global initialisation guarded by the
// doGblInit instance flag. It resets the quota before charging globals.
func (g *funcGen) globalInit() {
	skip := g.b.NewLabel()
	g.b.EmitU8(objcode.OpLoadInst, objcode.InstDoGblInit)
	g.b.EmitJump(objcode.OpJumpFalse, skip)
	g.b.EmitU8(objcode.OpLoadInst, objcode.InstHeapLimit)
	g.b.EmitU8(objcode.OpStoreInst, objcode.InstHeapLeft)
	for i, d := range g.c.script.Globals {
		gv := g.c.gvars[i]
		if gv == nil {
			continue
		}
		g.b.SetLine(d.Span().Start.Line)
		if d.Init != nil {
			v := g.expr(d.Init)
			gv.storePre(g)
			g.pushAs(v, gv.Type(), false, d.Init.Span().Start)
		} else {
			g.b.EmitU8(objcode.OpDefault, uint8(d.Type))
		}
		gv.storePost(g)
		g.onWrite(gv, false)
	}
	g.b.EmitConst(lsl.Int(0))
	g.b.EmitU8(objcode.OpStoreInst, objcode.InstDoGblInit)
	g.b.Mark(skip)
}

// resolve finds a variable: locals innermost first, then globals.
func (g *funcGen) resolve(name string) (value, bool) {
	if v, ok := g.scopes.Resolve(name); ok {
		return v, true
	}
	if gv, ok := g.c.globals.Resolve(name); ok {
		return gv, true
	}
	return nil, false
}
