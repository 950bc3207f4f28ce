package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/xmr/compiler"
	"github.com/chazu/xmr/objcache"
	"github.com/chazu/xmr/pkg/objcode"
)

var log = commonlog.GetLogger("xmr.xmrc")

// buildOptions controls a batch compile.
type buildOptions struct {
	Listing bool   // collect a disassembly listing
	OutDir  string // "" writes each object next to its source
	Jobs    int
	Cache   string // cache database path, "" for none
}

// result is the outcome of compiling one script.
type result struct {
	Path    string
	Source  string
	Object  *objcode.ObjectCode
	Output  string // object file written
	Cached  bool
	Diags   compiler.Diagnostics
	Listing string
}

// objectPath returns where the object for src goes.
func objectPath(src, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".xmrobj"
	if outDir == "" {
		return filepath.Join(filepath.Dir(src), name)
	}
	return filepath.Join(outDir, name)
}

// compileAll compiles every file, at most opts.Jobs at a time. Compile
// diagnostics are reported per result; the error is for I/O and cache
// failures. Results are in the order of files.
func compileAll(ctx context.Context, files []string, opts buildOptions) ([]*result, error) {
	// Two scripts with the same base name would overwrite each other.
	outputs := make([]string, len(files))
	owner := make(map[string]string)
	for i, path := range files {
		outputs[i] = objectPath(path, opts.OutDir)
		if prev, dup := owner[outputs[i]]; dup {
			return nil, fmt.Errorf("%s and %s both compile to %s", prev, path, outputs[i])
		}
		owner[outputs[i]] = path
	}

	var store *objcache.Store
	if opts.Cache != "" {
		var err error
		store, err = objcache.Open(opts.Cache)
		if err != nil {
			return nil, err
		}
		defer store.Close()
	}
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}

	tables := compiler.NewTables()
	results := make([]*result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := compileFile(path, outputs[i], tables, store, opts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compileFile(path, output string, tables *compiler.Tables, store *objcache.Store, opts buildOptions) (*result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	r := &result{Path: path, Source: string(data)}

	if store != nil {
		obj, hit, err := store.Compile(r.Source, tables)
		var diags compiler.Diagnostics
		switch {
		case err == nil:
			r.Object, r.Cached = obj, hit
		case errors.As(err, &diags):
			r.Diags = diags
			return r, nil
		default:
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		r.Object, r.Diags = compiler.Compile(r.Source, tables)
		if len(r.Diags) > 0 {
			return r, nil
		}
	}

	buf, err := r.Object.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.Output = output
	if err := os.WriteFile(r.Output, buf, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", r.Output, err)
	}
	log.Infof("%s -> %s (%d bytes, cached=%t)", path, r.Output, len(buf), r.Cached)

	if opts.Listing {
		r.Listing = fmt.Sprintf("; %s\n%s", path, r.Object.Disassemble())
	}
	return r, nil
}
