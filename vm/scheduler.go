package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scheduler decides at every checkpoint whether the running handler
// should be suspended. A suspended instance resumes at the next Step.
type Scheduler interface {
	Yield(in *Instance, line int) bool
}

// Budget suspends a handler after every N checkpoints.
type Budget struct {
	N int

	mu    sync.Mutex
	count map[*Instance]int
}

func (b *Budget) Yield(in *Instance, line int) bool {
	if b.N <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == nil {
		b.count = make(map[*Instance]int)
	}
	b.count[in]++
	if b.count[in] < b.N {
		return false
	}
	delete(b.count, in)
	return true
}

// RoundRobin runs a set of instances, giving each one Step per round until
// all are idle. Instances run in parallel within a round, up to limit at a
// time; each instance is only ever stepped by one goroutine. A runtime error
// aborts only the failing handler, and the errors of all instances are
// returned together once every instance is idle or ctx is done.
func RoundRobin(ctx context.Context, limit int, instances ...*Instance) error {
	var errs []error
	active := append([]*Instance(nil), instances...)
	for len(active) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		idle := make([]bool, len(active))
		failed := make([]error, len(active))
		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		for i, in := range active {
			g.Go(func() error {
				idle[i], failed[i] = in.Step(ctx)
				return nil
			})
		}
		g.Wait()

		next := active[:0]
		for i, in := range active {
			if failed[i] != nil {
				errs = append(errs, fmt.Errorf("instance %s: %w", in.ID, failed[i]))
			}
			if !idle[i] {
				next = append(next, in)
			}
		}
		active = next
	}
	return errors.Join(errs...)
}
