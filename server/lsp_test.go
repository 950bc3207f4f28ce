package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/xmr/compiler"
)

const doorScript = `integer open;
string label = "door";

toggle(integer how) {
    open = how;
}

default {
    touch_start(integer n) {
        toggle(!open);
        state closed;
    }
}

state closed {
    state_entry() { llOwnerSay(label); }
}
`

func parsed(t *testing.T, src string) *compiler.Script {
	t.Helper()
	script, diags := compiler.Parse(src)
	if len(diags) > 0 {
		t.Fatalf("parse: %v", diags)
	}
	return script
}

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover returned nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	return mc.Value
}

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"llOwn", 0, 5, "llOwn"},
		{"x = llSt", 0, 8, "llSt"},
		{"first\nsecond\nZERO_V", 2, 6, "ZERO_V"},
		{"hello", 0, 0, ""},
		{"", 0, 0, ""},
		{"single line", 5, 0, ""},
		{"f(a.", 0, 4, ""},
	}
	for _, tt := range tests {
		pos := protocol.Position{Line: tt.line, Character: tt.char}
		if got := extractPrefix(tt.text, pos); got != tt.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tt.text, tt.line, tt.char, got, tt.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		char uint32
		want string
	}{
		{"hello world", 3, "hello"},
		{"hello world", 5, "hello"},
		{"hello world", 8, "world"},
		{"llSay(0, NULL_KEY)", 12, "NULL_KEY"},
		{"", 0, ""},
		{"  ", 1, ""},
	}
	for _, tt := range tests {
		pos := protocol.Position{Line: 0, Character: tt.char}
		if got := extractWord(tt.text, pos); got != tt.want {
			t.Errorf("extractWord(%q, %d) = %q, want %q", tt.text, tt.char, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Completion, hover and definition
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) map[string]protocol.CompletionItemKind {
	out := make(map[string]protocol.CompletionItemKind)
	for _, it := range items {
		out[it.Label] = *it.Kind
	}
	return out
}

func TestComplete(t *testing.T) {
	script := parsed(t, doorScript)

	got := labels(complete(script, "llOwner"))
	if got["llOwnerSay"] != protocol.CompletionItemKindFunction {
		t.Errorf("complete(llOwner) = %v, want llOwnerSay as a function", got)
	}

	got = labels(complete(script, "ZERO_"))
	if len(got) != 2 || got["ZERO_VECTOR"] != protocol.CompletionItemKindConstant {
		t.Errorf("complete(ZERO_) = %v, want ZERO_VECTOR and ZERO_ROTATION", got)
	}

	got = labels(complete(script, "touch"))
	if got["touch_start"] != protocol.CompletionItemKindEvent {
		t.Errorf("complete(touch) = %v, want touch_start as an event", got)
	}

	got = labels(complete(script, "to"))
	if got["toggle"] != protocol.CompletionItemKindFunction {
		t.Errorf("complete(to) = %v, want script function toggle", got)
	}

	got = labels(complete(script, "cl"))
	if got["closed"] != protocol.CompletionItemKindModule {
		t.Errorf("complete(cl) = %v, want state closed", got)
	}

	got = labels(complete(nil, "whi"))
	if got["while"] != protocol.CompletionItemKindKeyword {
		t.Errorf("complete(whi) = %v, want keyword while", got)
	}

	if items := complete(nil, "l"); len(items) > maxItems {
		t.Errorf("complete(l) returned %d items, want at most %d", len(items), maxItems)
	}
}

func TestHover(t *testing.T) {
	script := parsed(t, doorScript)

	tests := []struct {
		word string
		want []string
	}{
		{"llOwnerSay", []string{"llOwnerSay(string)", "host function"}},
		{"llStringLength", []string{"integer llStringLength(string)", "library function"}},
		{"PI", []string{"float PI = 3.14159"}},
		{"listen", []string{"listen(integer,string,key,string)"}},
		{"toggle", []string{"toggle(integer how)", "script function"}},
		{"label", []string{"string label", "global variable"}},
		{"closed", []string{"state closed", "1 handlers"}},
	}
	for _, tt := range tests {
		text := hoverText(t, hover(script, tt.word))
		for _, w := range tt.want {
			if !strings.Contains(text, w) {
				t.Errorf("hover(%s) = %q, want it to contain %q", tt.word, text, w)
			}
		}
	}

	if h := hover(script, "XYZNOSUCHTHING99"); h != nil {
		t.Errorf("hover for unknown word = %v, want nil", h)
	}
}

func TestDefinition(t *testing.T) {
	script := parsed(t, doorScript)
	uri := protocol.DocumentUri("file:///door.lsl")

	tests := []struct {
		word string
		line uint32
	}{
		{"open", 0},
		{"label", 1},
		{"toggle", 3},
		{"closed", 14},
	}
	for _, tt := range tests {
		locs := definition(script, uri, tt.word)
		if len(locs) != 1 {
			t.Errorf("definition(%s) = %v, want one location", tt.word, locs)
			continue
		}
		if locs[0].URI != uri || locs[0].Range.Start.Line != tt.line {
			t.Errorf("definition(%s) at %s:%d, want line %d", tt.word, locs[0].URI, locs[0].Range.Start.Line, tt.line)
		}
	}

	if locs := definition(script, uri, "llSay"); locs != nil {
		t.Errorf("definition(llSay) = %v, want none", locs)
	}
	if locs := definition(nil, uri, "open"); locs != nil {
		t.Errorf("definition without a parse = %v, want none", locs)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics through the worker
// ---------------------------------------------------------------------------

func TestWorkerCheck(t *testing.T) {
	w := NewWorker(NewAnalyzer())
	defer w.Stop()
	uri := "file:///door.lsl"

	src := "default {\n    state_entry() {\n        x = 1;\n    }\n}\n"
	result, err := w.Do(func(a *Analyzer) interface{} {
		return a.Check(uri, src)
	})
	if err != nil {
		t.Fatal(err)
	}
	diags := toDiagnostics(src, result.(compiler.Diagnostics))
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one", diags)
	}
	d := diags[0]
	if d.Range.Start.Line != 2 || d.Range.Start.Character != 8 || d.Range.End.Character != 9 {
		t.Errorf("diagnostic range = %+v, want line 2 chars 8-9", d.Range)
	}
	if !strings.Contains(d.Message, "undefined variable x") {
		t.Errorf("diagnostic message = %q", d.Message)
	}

	// A broken edit keeps the last clean parse for navigation.
	result, err = w.Do(func(a *Analyzer) interface{} {
		a.Check(uri, doorScript)
		a.Check(uri, "default {")
		return a.Script(uri)
	})
	if err != nil {
		t.Fatal(err)
	}
	if s := result.(*compiler.Script); s == nil || len(s.States) != 2 {
		t.Errorf("remembered script = %v, want the door script", s)
	}

	result, _ = w.Do(func(a *Analyzer) interface{} {
		return a.Check(uri, doorScript)
	})
	if diags := result.(compiler.Diagnostics); len(diags) != 0 {
		t.Errorf("door script diagnostics = %v", diags)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewWorker(NewAnalyzer())
	defer w.Stop()

	if _, err := w.Do(func(a *Analyzer) interface{} { panic("boom") }); err == nil {
		t.Error("Do should report a panic as an error")
	}
	v, err := w.Do(func(a *Analyzer) interface{} { return 7 })
	if err != nil || v.(int) != 7 {
		t.Errorf("Do after panic = %v, %v, want 7", v, err)
	}

	w.Stop()
	if _, err := w.Do(func(a *Analyzer) interface{} { return nil }); err != ErrStopped {
		t.Errorf("Do after Stop = %v, want ErrStopped", err)
	}
}

func TestDocumentStore(t *testing.T) {
	lsp := &LspServer{docs: make(map[string]string)}
	lsp.docs["file:///a.lsl"] = "default {}"

	if text, ok := lsp.document("file:///a.lsl"); !ok || text != "default {}" {
		t.Errorf("document = %q, %v", text, ok)
	}
	if _, ok := lsp.document("file:///b.lsl"); ok {
		t.Error("unknown document reported present")
	}
}
