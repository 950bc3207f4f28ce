package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScriptExt is the extension of script sources.
const ScriptExt = ".lsl"

// SourceFiles resolves the configured sources to script files. Each entry
// may name a file, a directory (its *.lsl files, not recursive) or a glob.
// The result is absolute, sorted and free of duplicates.
func (m *Manifest) SourceFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, src := range m.Project.Sources {
		path := m.abs(src)
		if strings.ContainsAny(src, "*?[") {
			matches, err := filepath.Glob(path)
			if err != nil {
				return nil, fmt.Errorf("bad source pattern %q: %w", src, err)
			}
			for _, p := range matches {
				add(p)
			}
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading source dir %s: %w", path, err)
		}
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ScriptExt {
				add(filepath.Join(path, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
