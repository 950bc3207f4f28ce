package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/xmr/compiler"
)

// Analyzer holds the compiler tables and the most recent successful parse
// of every open document.
type Analyzer struct {
	tables  *compiler.Tables
	scripts map[string]*compiler.Script
}

// NewAnalyzer creates an Analyzer over the standard tables.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		tables:  compiler.NewTables(),
		scripts: make(map[string]*compiler.Script),
	}
}

// Check compiles text and returns its diagnostics. A clean parse replaces
// the remembered script for uri; a broken one keeps the previous parse so
// definitions still resolve while the user is typing.
func (a *Analyzer) Check(uri, text string) compiler.Diagnostics {
	script, diags := compiler.Parse(text)
	if len(diags) > 0 {
		return diags.Sorted()
	}
	a.scripts[uri] = script
	_, diags = compiler.NewCompiler(a.tables).CompileScript(script)
	return diags
}

// Script returns the last clean parse of uri, or nil.
func (a *Analyzer) Script(uri string) *compiler.Script {
	return a.scripts[uri]
}

// Forget drops everything remembered about uri.
func (a *Analyzer) Forget(uri string) {
	delete(a.scripts, uri)
}

// request is a unit of work to be executed on the analyzer goroutine.
type request struct {
	fn   func(*Analyzer) interface{}
	done chan result
}

type result struct {
	value interface{}
	err   error
}

// Worker serializes all Analyzer access through a single goroutine.
// LSP notifications arrive concurrently; the analyzer's maps are not
// locked.
type Worker struct {
	analyzer *Analyzer
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(a *Analyzer) *Worker {
	w := &Worker{
		analyzer: a,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func(*Analyzer) interface{}) result {
	var res result
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("analyzer panic: %v", r)
			}
		}()
		res.value = fn(w.analyzer)
	}()
	return res
}

// ErrStopped is returned by Do after Stop.
var ErrStopped = errors.New("worker stopped")

// Do submits fn for execution on the analyzer goroutine and blocks until
// it completes.
func (w *Worker) Do(fn func(*Analyzer) interface{}) (interface{}, error) {
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
