// xmrc compiles scripts to object files and can run them in a local VM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"

	"github.com/chazu/xmr/manifest"
	"github.com/chazu/xmr/server"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	listing := flag.Bool("S", false, "Print a disassembly listing of each compiled script")
	outDir := flag.String("o", "", "Directory for object files (default from xmr.toml, else next to the source)")
	run := flag.Bool("run", false, "Run each compiled script until idle (snapshots go to the cache, if any)")
	cachePath := flag.String("cache", "", "Object cache database (enables the cache)")
	jobs := flag.Int("j", 0, "Parallel compile jobs (default from xmr.toml)")
	verbosity := flag.Int("v", -1, "Log verbosity, 0-5 (default from xmr.toml)")
	logFile := flag.String("log", "", "Log file (default stderr)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: xmrc [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles scripts to object files. With no files, compiles the sources listed in xmr.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  xmrc door.lsl            # Write door.xmrobj\n")
		fmt.Fprintf(os.Stderr, "  xmrc -S door.lsl         # Also print the listing\n")
		fmt.Fprintf(os.Stderr, "  xmrc -run -j 8           # Compile the project and run every script\n")
		fmt.Fprintf(os.Stderr, "  xmrc -lsp                # Serve editors over stdio\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		m = manifest.Default(wd)
	}

	configureLogging(m, *verbosity, *logFile)

	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	opts := buildOptions{
		Listing: *listing,
		OutDir:  *outDir,
		Jobs:    m.Build.Jobs,
		Cache:   *cachePath,
	}
	if *jobs > 0 {
		opts.Jobs = *jobs
	}
	if opts.Cache == "" && m.Cache.Enabled {
		opts.Cache = m.CachePath()
	}
	if opts.OutDir == "" && flag.NArg() == 0 {
		opts.OutDir = m.OutputDir()
	}

	files := flag.Args()
	if len(files) == 0 {
		files, err = m.SourceFiles()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "No scripts to compile")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := compileAll(ctx, files, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	color := useColor(os.Stderr)
	failed := 0
	for _, r := range results {
		if len(r.Diags) > 0 {
			failed++
			printDiagnostics(os.Stderr, r, color)
			continue
		}
		if r.Listing != "" {
			fmt.Print(r.Listing)
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d scripts failed to compile\n", failed, len(results))
		os.Exit(1)
	}

	if *run {
		instances, err := runAll(ctx, results, m.VMConfig(), opts.Jobs, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if opts.Cache != "" {
			if err := saveSnapshots(opts.Cache, instances); err != nil {
				fmt.Fprintf(os.Stderr, "Error saving snapshots: %v\n", err)
				os.Exit(1)
			}
		}
	}
}

// configureLogging applies the -v and -log flags over the manifest's [log]
// section.
func configureLogging(m *manifest.Manifest, verbosity int, logFile string) {
	if verbosity < 0 {
		verbosity = m.Log.Verbosity
	}
	var path *string
	if logFile == "" {
		logFile = m.LogFile()
	}
	if logFile != "" {
		path = &logFile
	}
	commonlog.Configure(verbosity, path)
}
