// Package server implements a language server for scripts: diagnostics
// from the compiler, plus completion, hover and go-to-definition over the
// intrinsic, event and constant catalogs and the document's own
// declarations.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/xmr/compiler"
	"github.com/chazu/xmr/pkg/lsl"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "xmr-lsp"

var log = commonlog.GetLogger("xmr.lsp")

// LspServer bridges LSP editor features to the compiler via a Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewAnalyzer()),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func(a *Analyzer) interface{} {
		a.Forget(string(uri))
		return nil
	})

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.worker.Do(func(a *Analyzer) interface{} {
		return complete(a.Script(string(uri)), prefix)
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(a *Analyzer) interface{} {
		return hover(a.Script(string(uri)), word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	h := result.(*protocol.Hover)
	if h == nil {
		return nil, nil
	}
	return h, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(a *Analyzer) interface{} {
		return definition(a.Script(string(uri)), uri, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result, nil
}

// --- Catalog-backed logic (called on the worker goroutine) ---

const maxItems = 100

func completionItem(label string, kind protocol.CompletionItemKind, detail string) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:      label,
		Kind:       &kind,
		Detail:     &detail,
		InsertText: &label,
	}
}

// complete offers every name starting with prefix: the script's own
// declarations first, then keywords, intrinsics, constants and events.
func complete(script *compiler.Script, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		items = append(items, completionItem(label, kind, detail))
	}

	if script != nil {
		for _, g := range script.Globals {
			add(g.Name, protocol.CompletionItemKindVariable, g.Type.String())
		}
		for _, fn := range script.Funcs {
			add(fn.Name, protocol.CompletionItemKindFunction, funcSignature(fn))
		}
		for _, st := range script.States {
			add(st.Name, protocol.CompletionItemKindModule, "state")
		}
	}

	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	fns := lsl.NewIntrinsicIndex(lsl.Intrinsics)
	for _, name := range sortedStrings(fns.Names()) {
		overloads := fns.Named(name)
		detail := overloads[0].String()
		if len(overloads) > 1 {
			detail = fmt.Sprintf("%s (+%d overloads)", detail, len(overloads)-1)
		}
		add(name, protocol.CompletionItemKindFunction, detail)
	}

	names := make([]string, 0, len(lsl.Constants))
	for name := range lsl.Constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := lsl.Constants[name]
		add(name, protocol.CompletionItemKindConstant, c.Kind.String()+" "+c.String())
	}

	for _, ev := range lsl.Events {
		add(ev.Name, protocol.CompletionItemKindEvent, "event "+ev.Name+lsl.ArgSig(ev.Params))
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func funcSignature(fn *compiler.FuncDecl) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	sig := fn.Name + "(" + strings.Join(params, ", ") + ")"
	if fn.Ret != lsl.TagVoid {
		sig = fn.Ret.String() + " " + sig
	}
	return sig
}

func markdown(format string, args ...interface{}) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf(format, args...),
		},
	}
}

// hover describes word. Script declarations shadow the catalogs.
func hover(script *compiler.Script, word string) *protocol.Hover {
	if script != nil {
		for _, g := range script.Globals {
			if g.Name == word {
				return markdown("```lsl\n%s %s\n```\n\nglobal variable", g.Type, g.Name)
			}
		}
		for _, fn := range script.Funcs {
			if fn.Name == word {
				return markdown("```lsl\n%s\n```\n\nscript function", funcSignature(fn))
			}
		}
		for _, st := range script.States {
			if st.Name == word {
				return markdown("**state %s**\n\n%d handlers", st.Name, len(st.Handlers))
			}
		}
	}

	if overloads := lsl.NewIntrinsicIndex(lsl.Intrinsics).Named(word); len(overloads) > 0 {
		var b strings.Builder
		b.WriteString("```lsl\n")
		for _, fn := range overloads {
			b.WriteString(fn.String())
			b.WriteString("\n")
		}
		b.WriteString("```\n\n")
		if overloads[0].Host {
			b.WriteString("host function")
		} else {
			b.WriteString("library function")
		}
		return markdown("%s", b.String())
	}

	if c, ok := lsl.Constants[word]; ok {
		return markdown("```lsl\n%s %s = %s\n```", c.Kind, word, c.String())
	}

	if code, ok := lsl.LookupEvent(word); ok {
		ev := lsl.Events[code]
		return markdown("```lsl\n%s%s\n```\n\nevent %d", ev.Name, lsl.ArgSig(ev.Params), int(code))
	}

	return nil
}

// definition locates word among the script's declarations.
func definition(script *compiler.Script, uri protocol.DocumentUri, word string) []protocol.Location {
	if script == nil {
		return nil
	}
	var spans []compiler.Span
	for _, g := range script.Globals {
		if g.Name == word {
			spans = append(spans, g.Span())
		}
	}
	for _, fn := range script.Funcs {
		if fn.Name == word {
			spans = append(spans, fn.Span())
		}
	}
	for _, st := range script.States {
		if st.Name == word {
			spans = append(spans, st.Span())
		}
	}

	var locations []protocol.Location
	for _, sp := range spans {
		locations = append(locations, protocol.Location{
			URI:   uri,
			Range: protocol.Range{Start: toPosition(sp.Start), End: toPosition(sp.End)},
		})
	}
	return locations
}

// --- Diagnostics ---

func toPosition(p compiler.Position) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(max(p.Line-1, 0)),
		Character: protocol.UInteger(max(p.Column-1, 0)),
	}
}

// toDiagnostics converts compiler diagnostics. The compiler reports points,
// so each range runs to the end of the identifier starting there.
func toDiagnostics(text string, diags compiler.Diagnostics) []protocol.Diagnostic {
	lines := strings.Split(text, "\n")
	out := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range diags {
		start := toPosition(d.Pos)
		end := start
		if int(start.Line) < len(lines) {
			line := lines[start.Line]
			for int(end.Character) < len(line) && isIdent(rune(line[end.Character])) {
				end.Character++
			}
		}
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  d.Msg,
		})
	}
	return out
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(a *Analyzer) interface{} {
		return a.Check(string(uri), text)
	})
	if err != nil {
		log.Errorf("checking %s: %s", uri, err)
		return
	}

	diagnostics := toDiagnostics(text, result.(compiler.Diagnostics))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Text extraction helpers ---

func isIdent(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdent(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdent(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdent(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
