package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/xmr/pkg/lsl"
)

// sexpr renders an expression fully parenthesised.
func sexpr(e Expr) string {
	switch n := e.(type) {
	case nil:
		return "<nil>"
	case *IntLit:
		return fmt.Sprint(n.Value)
	case *FloatLit:
		return fmt.Sprint(n.Value)
	case *StringLit:
		return fmt.Sprintf("%q", n.Value)
	case *UndefLit:
		return "undef"
	case *Ident:
		return n.Name
	case *ListLit:
		parts := make([]string, len(n.Elems))
		for i, el := range n.Elems {
			parts[i] = sexpr(el)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *VecLit:
		return fmt.Sprintf("<%s %s %s>", sexpr(n.X), sexpr(n.Y), sexpr(n.Z))
	case *RotLit:
		return fmt.Sprintf("<%s %s %s %s>", sexpr(n.X), sexpr(n.Y), sexpr(n.Z), sexpr(n.S))
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", n.Op, sexpr(n.Left), sexpr(n.Right))
	case *Unary:
		return fmt.Sprintf("(%s %s)", n.Op, sexpr(n.X))
	case *IncDec:
		if n.Prefix {
			return fmt.Sprintf("(pre%s %s)", n.Op, sexpr(n.X))
		}
		return fmt.Sprintf("(post%s %s)", n.Op, sexpr(n.X))
	case *Call:
		parts := []string{n.Name}
		for _, a := range n.Args {
			parts = append(parts, sexpr(a))
		}
		return "(call " + strings.Join(parts, " ") + ")"
	case *MethodCall:
		parts := []string{sexpr(n.Recv), n.Name}
		for _, a := range n.Args {
			parts = append(parts, sexpr(a))
		}
		return "(method " + strings.Join(parts, " ") + ")"
	case *Field:
		return fmt.Sprintf("(. %s %s)", sexpr(n.X), n.Name)
	case *Index:
		return fmt.Sprintf("([] %s %s)", sexpr(n.X), sexpr(n.Sub))
	case *Cast:
		return fmt.Sprintf("(cast %s %s)", n.Type, sexpr(n.X))
	case *TypeTest:
		return fmt.Sprintf("(is %s %s)", sexpr(n.X), spred(n.Pred))
	}
	return fmt.Sprintf("?%T", e)
}

func spred(p TypePred) string {
	switch p := p.(type) {
	case TypeName:
		if p.Undef {
			return "undef"
		}
		return p.Tag.String()
	case NotPred:
		return "!" + spred(p.X)
	case AndPred:
		return "(" + spred(p.Left) + " && " + spred(p.Right) + ")"
	case OrPred:
		return "(" + spred(p.Left) + " || " + spred(p.Right) + ")"
	}
	return "?"
}

func TestParserExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"0x10", "16"},
		{"0xFFFFFFFF", "-1"},
		{"3.5", "3.5"},
		{`"hi"`, `"hi"`},
		{"undef", "undef"},
		{"a + b * c", "(+ a (* b c))"},
		{"a * b + c", "(+ (* a b) c)"},
		{"a - b - c", "(- (- a b) c)"},
		{"a || b && c", "(|| a (&& b c))"},
		{"a | b ^ c & d", "(| a (^ b (& c d)))"},
		{"a == b < c", "(== a (< b c))"},
		{"a < b << c", "(< a (<< b c))"},
		{"a = b = c", "(= a (= b c))"},
		{"a += b * 2", "(+= a (* b 2))"},
		{"-a * b", "(* (- a) b)"},
		{"!a && ~b", "(&& (! a) (~ b))"},
		{"(integer)f + 1", "(+ (cast integer f) 1)"},
		{"(a + b) * c", "(* (+ a b) c)"},
		{"i++ + ++j", "(+ (post++ i) (pre++ j))"},
		{"--i", "(pre-- i)"},
		{"v.x", "(. v x)"},
		{"a[k].x", "(. ([] a k) x)"},
		{"a.index(0)", "(method a index 0)"},
		{"llSay(0, \"x\" + y)", `(call llSay 0 (+ "x" y))`},
		{"f()", "(call f)"},
		{"[1, 2.0, \"s\"]", `[1 2 "s"]`},
		{"[]", "[]"},
		{"<1, 2, 3>", "<1 2 3>"},
		{"<1, 2, 3, 4>", "<1 2 3 4>"},
		{"<a + 1, b * 2, -c>", "<(+ a 1) (* b 2) (- c)>"},
		{"<1, 2, 3> * r", "(* <1 2 3> r)"},
		{"a, b", "(, a b)"},
		{"x is integer", "(is x integer)"},
		{"x is !string && !list", "(is x (!string && !list))"},
		{"x is (vector || rotation)", "(is x (vector || rotation))"},
		{"(x is undef) || y", "(|| (is x undef) y)"},
	}

	for _, tc := range tests {
		p := NewParser(tc.input)
		e := p.ParseExpression()
		if len(p.Diagnostics()) > 0 {
			t.Errorf("parse %q: errors: %v", tc.input, p.Diagnostics())
			continue
		}
		if got := sexpr(e); got != tc.want {
			t.Errorf("parse %q = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParserScript(t *testing.T) {
	src := `
integer count = 1;
string name;

integer add(integer a, integer b) {
    return a + b;
}

log(string msg) {
    llOwnerSay(msg);
}

default {
    state_entry() {
        count = add(count, 2);
        state running;
    }
}

state running {
    touch_start(integer n) {
        @top;
        if (n > 0) { n--; jump top; } else log("done");
    }
}
`
	s, diags := Parse(src)
	if len(diags) > 0 {
		t.Fatalf("Parse errors: %v", diags)
	}
	if len(s.Globals) != 2 {
		t.Fatalf("len(Globals) = %d, want 2", len(s.Globals))
	}
	if g := s.Globals[0]; g.Name != "count" || g.Type != lsl.TagInt || g.Init == nil {
		t.Errorf("Globals[0] = %+v, want integer count with init", g)
	}
	if g := s.Globals[1]; g.Name != "name" || g.Type != lsl.TagString || g.Init != nil {
		t.Errorf("Globals[1] = %+v, want string name without init", g)
	}
	if len(s.Funcs) != 2 {
		t.Fatalf("len(Funcs) = %d, want 2", len(s.Funcs))
	}
	if f := s.Funcs[0]; f.Name != "add" || f.Ret != lsl.TagInt || len(f.Params) != 2 {
		t.Errorf("Funcs[0] = %s %s/%d, want integer add/2", f.Ret, f.Name, len(f.Params))
	}
	if f := s.Funcs[1]; f.Ret != lsl.TagVoid {
		t.Errorf("Funcs[1].Ret = %s, want void", f.Ret)
	}
	if len(s.States) != 2 || s.States[0].Name != "default" || s.States[1].Name != "running" {
		t.Fatalf("States = %v, want default, running", s.States)
	}
	h := s.States[1].Handlers[0]
	if h.Name != "touch_start" || len(h.Params) != 1 {
		t.Errorf("handler = %s/%d, want touch_start/1", h.Name, len(h.Params))
	}
	if _, ok := h.Body.Stmts[0].(*Label); !ok {
		t.Errorf("first statement = %T, want *Label", h.Body.Stmts[0])
	}
	ifs, ok := h.Body.Stmts[1].(*If)
	if !ok {
		t.Fatalf("second statement = %T, want *If", h.Body.Stmts[1])
	}
	if _, ok := ifs.Else.(*ExprStmt); !ok {
		t.Errorf("else = %T, want *ExprStmt", ifs.Else)
	}
	if sc, ok := s.States[0].Handlers[0].Body.Stmts[1].(*StateChange); !ok || sc.Name != "running" {
		t.Errorf("state change = %v, want state running", s.States[0].Handlers[0].Body.Stmts[1])
	}
}

func TestParserStatements(t *testing.T) {
	src := `default { state_entry() {
    integer i;
    for (i = 0, j = 1; i < 10; i++, j++) ;
    while (i) i--;
    do { i++; } while (i < 3);
    foreach (k, v in a) llOwnerSay((string)k);
    state default;
    return;
} }`
	s, diags := Parse(src)
	if len(diags) > 0 {
		t.Fatalf("Parse errors: %v", diags)
	}
	stmts := s.States[0].Handlers[0].Body.Stmts
	want := []string{"*compiler.DeclStmt", "*compiler.For", "*compiler.While", "*compiler.DoWhile", "*compiler.Foreach", "*compiler.StateChange", "*compiler.Return"}
	if len(stmts) != len(want) {
		t.Fatalf("len(stmts) = %d, want %d", len(stmts), len(want))
	}
	for i, w := range want {
		if got := fmt.Sprintf("%T", stmts[i]); got != w {
			t.Errorf("stmts[%d] = %s, want %s", i, got, w)
		}
	}
	f := stmts[1].(*For)
	if got := sexpr(f.Init); got != "(, (= i 0) (= j 1))" {
		t.Errorf("for init = %s", got)
	}
	fe := stmts[4].(*Foreach)
	if sexpr(fe.Key) != "k" || sexpr(fe.Value) != "v" || sexpr(fe.Array) != "a" {
		t.Errorf("foreach = %s, %s in %s", sexpr(fe.Key), sexpr(fe.Value), sexpr(fe.Array))
	}
	if sc := stmts[5].(*StateChange); sc.Name != "default" {
		t.Errorf("state change = %s, want default", sc.Name)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"integer x = ;", "unexpected"},
		{"integer x = 1", "expected ;"},
		{"state foo { }", "missing default state"},
		{"default { state_entry() { x = ; } }", "unexpected"},
		{"default { state_entry() { integer x = 0x; } }", "out of range"},
		{"default { state_entry() { y = <1, 2>; } }", "vector needs 3 components"},
		{"default { state_entry() { y = x is 5; } }", "expected type name"},
		{"default { } state a { } default { }", "default state must be first"},
	}

	for _, tc := range tests {
		_, diags := Parse(tc.input)
		if len(diags) == 0 {
			t.Errorf("Parse(%q): no errors, want %q", tc.input, tc.want)
			continue
		}
		if !strings.Contains(diags.Error(), tc.want) {
			t.Errorf("Parse(%q) errors = %v, want one containing %q", tc.input, diags, tc.want)
		}
	}
}

func TestParserRecovers(t *testing.T) {
	src := `default {
    state_entry() {
        x = ;
        integer y = 1;
        z = ];
    }
}`
	_, diags := Parse(src)
	if len(diags) < 2 {
		t.Fatalf("len(diags) = %d, want at least 2: %v", len(diags), diags)
	}
	if diags[0].Pos.Line != 3 {
		t.Errorf("first error line = %d, want 3", diags[0].Pos.Line)
	}
}
