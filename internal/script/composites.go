package script

import (
	"time"

	"zagreus/internal/wire"
)

// Sequence runs a list of scripts one after another. When the active script
// completes, Sequence immediately advances to the next one and re-presents
// the same input to it before returning control to the caller — so an
// Interact call can cascade through any number of instantaneously-completing
// steps (an Emit or a Wait always stops the cascade and is returned as-is).
// Forwarding the input is safe because a step that actually consumes input to
// decide completion (Expect) only does so by matching, at which point the
// remaining bytes are irrelevant to whichever step follows it in practice
// (Send, Sleep) since neither looks at its input.
func Sequence(scripts ...Script) Script {
	return &sequence{scripts: scripts}
}

type sequence struct {
	scripts []Script
	idx     int
}

func (q *sequence) Step(input []byte, now time.Time) StepResult {
	for {
		if q.idx >= len(q.scripts) {
			return done()
		}
		res := q.scripts[q.idx].Step(input, now)
		if res.Kind != Done {
			return res
		}
		q.idx++
	}
}

// Default timeout for the library composites' Expect steps that are not
// given an explicit one.
const (
	defaultExpectTimeout = 1 * time.Second
)

// SmallComputerMonitor sends the reset command and waits for the monitor
// banner, the common prelude to CPM and Basic. Every Send here carries
// bytes already in their final wire form (wire.Command/wire.Encode), since
// on_output writes what a script emits straight to the socket (see
// internal/client's activation of a Runner).
func SmallComputerMonitor() Script {
	return Sequence(
		Send(wire.Command(wire.ResetCommand)),
		Expect([]byte("Small Computer Monitor - RC2014\r\n*"), 3*time.Second),
	)
}

// CPM boots through the monitor into CP/M and waits for its command prompt.
func CPM() Script {
	return Sequence(
		SmallComputerMonitor(),
		Sleep(300*time.Millisecond),
		Send(wire.Encode([]byte("CPM\n"))),
		Expect([]byte("A>"), 5*time.Second),
	)
}

// Basic boots through the monitor into BASIC, accepts the default memory
// top, and waits for its ready prompt.
func Basic() Script {
	return Sequence(
		SmallComputerMonitor(),
		Send(wire.Encode([]byte("BASIC\n"))),
		Expect([]byte("Memory top? "), defaultExpectTimeout),
		Send(wire.Encode([]byte("\n"))),
		Expect([]byte("Ok"), defaultExpectTimeout),
	)
}
