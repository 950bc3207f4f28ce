package vm

import (
	"errors"
	"fmt"
)

// ErrDead is returned for events posted to an instance that called llDie.
var ErrDead = errors.New("instance is dead")

// OutOfHeapError is raised when a heap update takes the instance quota
// below zero.
type OutOfHeapError struct {
	Limit int
	Left  int
	Line  int
}

func (e *OutOfHeapError) Error() string {
	return fmt.Sprintf("out of heap at line %d: limit %d, left %d", e.Line, e.Limit, e.Left)
}

// UndefinedStateError is raised by a state change to a state the script
// does not declare.
type UndefinedStateError struct {
	State string
}

func (e *UndefinedStateError) Error() string {
	return "undefined state " + e.State
}

// OutOfStackError is raised at a checkpoint when the call depth exceeds the
// configured frame limit.
type OutOfStackError struct {
	Depth int
	Line  int
}

func (e *OutOfStackError) Error() string {
	return fmt.Sprintf("out of stack at line %d: %d frames", e.Line, e.Depth)
}

// ScriptError is any other runtime failure of a script: math errors, casts
// from undef, calls to functions the program does not contain.
type ScriptError struct {
	Method string
	Line   int
	Msg    string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Method == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s line %d: %s", e.Method, e.Line, e.Msg)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// mathError is the message scripts see for division by zero and friends.
const mathError = "Math Error"
