package script

import "time"

// Runner drives a single Script to completion, invoking OnOutput for every
// Emit step and OnError once if the script fails. A Runner is used for
// exactly one script; start a new Runner to run another.
type Runner struct {
	OnOutput func([]byte)
	OnError  func(error)

	script   Script
	deadline time.Time
	done     bool
}

// NewRunner returns a Runner ready to drive script.
func NewRunner(script Script, onOutput func([]byte), onError func(error)) *Runner {
	return &Runner{script: script, OnOutput: onOutput, OnError: onError}
}

// Running reports whether the script has neither completed nor failed yet.
func (r *Runner) Running() bool { return !r.done }

// Deadline returns the time the Runner next needs to observe elapse, and
// whether one is currently pending. Callers (the client event loop) use this
// to size a timer; it is only meaningful while Running().
func (r *Runner) Deadline() (time.Time, bool) {
	if r.done || r.deadline.IsZero() {
		return time.Time{}, false
	}
	return r.deadline, true
}

// Interact advances the script exactly one Step, given input read from the
// connection (nil if this call is a bare wake-up rather than new data). A
// script that has already finished is a no-op.
func (r *Runner) Interact(input []byte, now time.Time) {
	if r.done {
		return
	}
	res := r.script.Step(input, now)
	switch res.Kind {
	case Emit:
		r.deadline = time.Time{}
		if r.OnOutput != nil {
			r.OnOutput(res.Output)
		}
	case Wait:
		r.deadline = res.Deadline
	case Done:
		r.done = true
		r.deadline = time.Time{}
	case Fail:
		r.done = true
		r.deadline = time.Time{}
		if r.OnError != nil {
			r.OnError(res.Err)
		}
	}
}
