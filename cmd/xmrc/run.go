package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chazu/xmr/objcache"
	"github.com/chazu/xmr/pkg/objcode"
	"github.com/chazu/xmr/vm"
)

// runAll starts one instance per compiled script and runs them round robin
// until every one is idle. Chat is written to out prefixed with the script
// name. A runtime error is reported and that instance carries on with its
// queue.
func runAll(ctx context.Context, results []*result, cfg vm.Config, jobs int, out io.Writer) ([]*vm.Instance, error) {
	var mu sync.Mutex
	var instances []*vm.Instance
	for _, r := range results {
		prog, err := objcode.Materialize(r.Object)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Path, err)
		}
		in := vm.NewInstance(prog, cfg)
		name := strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path))
		if host, ok := in.Host.(*vm.LogHost); ok {
			host.Name = name
			host.OnChat = func(_ *vm.Instance, msg vm.Message) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "[%s] %s\n", name, msg.Text)
			}
		}
		instances = append(instances, in)
	}

	err := vm.RoundRobin(ctx, jobs, instances...)
	if ctx.Err() != nil {
		return instances, ctx.Err()
	}
	if err != nil {
		errs := []error{err}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			errs = joined.Unwrap()
		}
		for _, e := range errs {
			fmt.Fprintf(out, "runtime error: %v\n", e)
		}
	}
	return instances, nil
}

// saveSnapshots stores the state of every instance in the cache at path.
func saveSnapshots(path string, instances []*vm.Instance) error {
	store, err := objcache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, in := range instances {
		if err := store.SaveSnapshot(in); err != nil {
			return err
		}
	}
	log.Infof("saved %d snapshots to %s", len(instances), path)
	return nil
}
