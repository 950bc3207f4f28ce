package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

var log = commonlog.GetLogger("xmr.vm")

// Config holds per-instance limits.
type Config struct {
	// StackSize is the nominal script memory in bytes. Half of it, less the
	// overhead of the global slots, becomes the heap quota.
	StackSize int `toml:"stack-size"`

	// MaxFrames bounds the call depth checked at every checkpoint.
	MaxFrames int `toml:"max-frames"`

	// MaxQueue bounds the number of pending events.
	MaxQueue int `toml:"max-queue"`
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{StackSize: 16384, MaxFrames: 200, MaxQueue: 64}
}

// ErrQueueFull is returned by Post when the event queue is at capacity.
var ErrQueueFull = errors.New("event queue full")

// Event is a queued event with its arguments.
type Event struct {
	Code lsl.EventCode `cbor:"1,keyasint"`
	Args []lsl.Value   `cbor:"2,keyasint,omitempty"`
}

type phase uint8

const (
	phaseIdle    phase = iota
	phaseHandler       // an ordinary handler or state_entry is on the frames
	phaseExit          // state_exit of the state being left
)

// Instance is one running script: its globals, its current state, and the
// frames of the handler in progress. An Instance is not safe for
// concurrent use.
type Instance struct {
	ID        uuid.UUID
	Program   *objcode.Program
	Host      Host
	Scheduler Scheduler

	cfg     Config
	state   int
	fields  [objcode.InstDoGblInit + 1]int32
	globals [objcode.NumGlobalKinds][]lsl.Value
	frames  []*frame
	stack   []lsl.Value
	args    []lsl.Value
	queue   []Event
	phase   phase
	pending int
	dead    bool
}

// NewInstance creates an instance in the default state with state_entry
// queued. The host defaults to a LogHost; a nil Scheduler never suspends.
func NewInstance(prog *objcode.Program, cfg Config) *Instance {
	def := DefaultConfig()
	if cfg.StackSize <= 0 {
		cfg.StackSize = def.StackSize
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = def.MaxFrames
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = def.MaxQueue
	}
	in := &Instance{
		ID:      uuid.New(),
		Program: prog,
		cfg:     cfg,
	}
	in.Host = NewLogHost()
	in.reset()
	return in
}

// reset puts the instance back to a freshly loaded script: default
// globals, the default state, a full quota and state_entry pending.
func (in *Instance) reset() {
	for k := range in.globals {
		n := in.Program.Counts[k]
		in.globals[k] = make([]lsl.Value, n)
		for i := range n {
			in.globals[k][i] = globalDefault(objcode.GlobalKind(k))
		}
	}
	limit := int32(in.Program.Counts.HeapLimit(in.cfg.StackSize))
	clear(in.fields[:])
	in.fields[objcode.InstHeapLimit] = limit
	in.fields[objcode.InstHeapLeft] = limit
	in.fields[objcode.InstDoGblInit] = 1
	in.state = 0
	in.frames = nil
	in.stack = nil
	in.args = nil
	in.queue = []Event{{Code: lsl.EventStateEntry}}
	in.phase = phaseIdle
}

func globalDefault(k objcode.GlobalKind) lsl.Value {
	switch k {
	case objcode.GlobalArrays:
		return lsl.Default(lsl.TagArray)
	case objcode.GlobalFloats:
		return lsl.Default(lsl.TagFloat)
	case objcode.GlobalIntegers:
		return lsl.Default(lsl.TagInt)
	case objcode.GlobalLists:
		return lsl.Default(lsl.TagList)
	case objcode.GlobalRotations:
		return lsl.Default(lsl.TagRotation)
	case objcode.GlobalStrings:
		return lsl.Default(lsl.TagString)
	case objcode.GlobalVectors:
		return lsl.Default(lsl.TagVector)
	}
	return lsl.Undef
}

// Post queues an event. Arguments must match the event's parameter list.
func (in *Instance) Post(ev lsl.EventCode, args ...lsl.Value) error {
	if in.dead {
		return ErrDead
	}
	if int(ev) < 0 || int(ev) >= lsl.EventCount {
		return fmt.Errorf("unknown event code %d", ev)
	}
	params := lsl.Events[ev].Params
	if len(args) != len(params) {
		return fmt.Errorf("%s takes %d argument(s), got %d", ev, len(params), len(args))
	}
	conv := make([]lsl.Value, len(args))
	for i, a := range args {
		v, err := lsl.Convert(a, params[i])
		if err != nil {
			return fmt.Errorf("%s argument %d: %w", ev, i+1, err)
		}
		conv[i] = v
	}
	if len(in.queue) >= in.cfg.MaxQueue {
		return ErrQueueFull
	}
	in.queue = append(in.queue, Event{Code: ev, Args: conv})
	return nil
}

// Step runs handlers until the queue is drained (idle is true), the
// scheduler suspends the instance, or a handler fails. A failed handler is
// abandoned; the next Step goes on with the queue.
func (in *Instance) Step(ctx context.Context) (idle bool, err error) {
	for {
		if in.dead {
			return true, nil
		}
		if in.phase == phaseIdle {
			if len(in.queue) == 0 {
				return true, nil
			}
			ev := in.queue[0]
			in.queue = in.queue[1:]
			if !in.begin(in.Program.Handler(in.state, ev.Code), ev.Args) {
				continue
			}
		}

		suspended, err := in.run(ctx)
		switch {
		case errors.Is(err, errReset):
			log.Infof("instance %s reset", in.ID)
			in.reset()
			continue
		case errors.Is(err, errDie):
			log.Infof("instance %s died", in.ID)
			in.frames, in.stack, in.queue = nil, nil, nil
			in.phase = phaseIdle
			in.dead = true
			return true, nil
		case suspended:
			return false, err
		case err != nil:
			log.Errorf("instance %s: %s", in.ID, err)
			in.unwind()
			in.fields[objcode.InstStateChanged] = 0
			in.phase = phaseIdle
			return false, err
		}
		in.finishHandler()
	}
}

// RunEvent posts ev and steps until the instance is idle, resuming across
// scheduler suspensions.
func (in *Instance) RunEvent(ctx context.Context, ev lsl.EventCode, args ...lsl.Value) error {
	if err := in.Post(ev, args...); err != nil {
		return err
	}
	return in.RunUntilIdle(ctx)
}

// RunUntilIdle steps until the queue is empty.
func (in *Instance) RunUntilIdle(ctx context.Context) error {
	for {
		idle, err := in.Step(ctx)
		if err != nil {
			return err
		}
		if idle {
			return nil
		}
	}
}

// begin enters handler m with args. It reports false when m is nil.
func (in *Instance) begin(m *objcode.Method, args []lsl.Value) bool {
	if m == nil {
		return false
	}
	if in.phase == phaseIdle {
		in.phase = phaseHandler
	}
	in.args = args
	in.frames = append(in.frames[:0], newFrame(m, 0))
	return true
}

// finishHandler runs the state machine after a handler returns: a state
// change runs state_exit of the old state, then switches and runs
// state_entry of the new one, for as long as handlers keep changing state.
func (in *Instance) finishHandler() {
	in.args = nil
	if in.phase == phaseExit {
		in.fields[objcode.InstStateChanged] = 0
		in.enter(in.pending)
		return
	}
	if in.fields[objcode.InstStateChanged] == 0 {
		in.phase = phaseIdle
		return
	}
	in.pending = int(in.fields[objcode.InstStateCode])
	in.fields[objcode.InstStateChanged] = 0
	in.fields[objcode.InstStateCode] = int32(in.state)
	in.phase = phaseExit
	if !in.begin(in.Program.Handler(in.state, lsl.EventStateExit), nil) {
		in.enter(in.pending)
	}
}

// enter switches to state si, discarding queued events, and starts its
// state_entry if it has one.
func (in *Instance) enter(si int) {
	log.Debugf("instance %s: state %s -> %s", in.ID, in.stateName(in.state), in.stateName(si))
	in.state = si
	in.fields[objcode.InstStateCode] = int32(si)
	in.queue = nil
	in.phase = phaseHandler
	if !in.begin(in.Program.Handler(si, lsl.EventStateEntry), nil) {
		in.phase = phaseIdle
	}
}

func (in *Instance) stateName(si int) string {
	if si >= 0 && si < len(in.Program.States) {
		return in.Program.States[si]
	}
	return fmt.Sprintf("#%d", si)
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// State returns the name of the current state.
func (in *Instance) State() string { return in.stateName(in.state) }

// HeapLeft returns the unused part of the quota.
func (in *Instance) HeapLeft() int { return int(in.fields[objcode.InstHeapLeft]) }

// HeapLimit returns the quota.
func (in *Instance) HeapLimit() int { return int(in.fields[objcode.InstHeapLimit]) }

// Dead reports whether the script called llDie.
func (in *Instance) Dead() bool { return in.dead }

// Pending returns the number of queued events.
func (in *Instance) Pending() int { return len(in.queue) }

// Suspended reports whether a handler is in progress.
func (in *Instance) Suspended() bool { return len(in.frames) > 0 }

// Global returns the current value of a named global.
func (in *Instance) Global(name string) (lsl.Value, bool) {
	for _, g := range in.Program.Globals {
		if g.Name == name {
			return in.globals[g.Kind][g.Index], true
		}
	}
	return lsl.Value{}, false
}

// Charged sums the heap trackers of the globals: what the globals
// currently hold against the quota.
func (in *Instance) Charged() int {
	total := 0
	for _, g := range in.Program.Globals {
		if strings.HasPrefix(g.Name, "__heap_") {
			total += int(intOf(in.globals[g.Kind][g.Index]))
		}
	}
	return total
}
