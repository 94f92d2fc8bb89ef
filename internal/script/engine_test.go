package script

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSend_InvokesOnOutputOnceAndCompletesNextInteract(t *testing.T) {
	var out [][]byte
	failed := false
	r := NewRunner(Send([]byte("hi")), func(b []byte) { out = append(out, b) }, func(error) { failed = true })

	r.Interact(nil, epoch)
	if len(out) != 1 || string(out[0]) != "hi" {
		t.Fatalf("on_output calls = %v, want one call with %q", out, "hi")
	}
	if !r.Running() {
		t.Fatal("send completed on the same Interact call that emitted, want it still running")
	}

	r.Interact(nil, epoch)
	if len(out) != 1 {
		t.Fatalf("on_output invoked again: %v", out)
	}
	if r.Running() {
		t.Fatal("send did not complete on the following Interact(none)")
	}
	if failed {
		t.Fatal("send should never fail")
	}
}

func TestExpect_CompletesAfterExactlyKChunks(t *testing.T) {
	chunks := [][]byte{[]byte("fo"), []byte("o-ba"), []byte("r")}
	r := NewRunner(Expect([]byte("o-bar"), time.Second), func([]byte) {}, func(error) {})

	for i, c := range chunks {
		r.Interact(c, epoch)
		wantDone := i == len(chunks)-1
		if r.Running() == wantDone {
			t.Fatalf("after chunk %d, running=%v want running=%v", i, r.Running(), !wantDone)
		}
	}
}

func TestExpect_TimesOutAfterDeadline(t *testing.T) {
	var gotErr error
	r := NewRunner(Expect([]byte("A>"), 5*time.Second), func([]byte) {}, func(e error) { gotErr = e })

	r.Interact(nil, epoch) // starts the deadline
	if !r.Running() {
		t.Fatal("expect should still be waiting before its deadline")
	}
	r.Interact(nil, epoch.Add(5*time.Second+time.Millisecond))
	if r.Running() {
		t.Fatal("expect should have failed after its deadline elapsed")
	}
	if !errors.Is(gotErr, ErrTimeout) {
		t.Fatalf("on_error = %v, want ErrTimeout", gotErr)
	}
}

func TestSleep_CompletesAfterDurationWithNoCallbacks(t *testing.T) {
	called := false
	r := NewRunner(Sleep(300*time.Millisecond), func([]byte) { called = true }, func(error) { called = true })

	r.Interact(nil, epoch)
	if !r.Running() {
		t.Fatal("sleep should not complete before its duration elapses")
	}
	r.Interact(nil, epoch.Add(300*time.Millisecond))
	if r.Running() {
		t.Fatal("sleep should complete on the first Interact(none) at/after its duration")
	}
	if called {
		t.Fatal("sleep must not invoke on_output or on_error")
	}
}

func TestSequence_CascadesThroughInstantaneousSteps(t *testing.T) {
	var out [][]byte
	seq := Sequence(Send([]byte("a")), Send([]byte("b")))
	r := NewRunner(seq, func(b []byte) { out = append(out, b) }, func(error) {})

	r.Interact(nil, epoch) // emits "a"
	r.Interact(nil, epoch) // "a" done, cascades into "b"'s emit
	r.Interact(nil, epoch) // "b" done, sequence done
	if r.Running() {
		t.Fatal("sequence should be finished")
	}
	if len(out) != 2 || string(out[0]) != "a" || string(out[1]) != "b" {
		t.Fatalf("out = %v, want [a b]", out)
	}
}

func TestCPM_SucceedsAgainstMatchingBanner(t *testing.T) {
	var sent [][]byte
	var failErr error
	r := NewRunner(CPM(), func(b []byte) { sent = append(sent, append([]byte(nil), b...)) }, func(e error) { failErr = e })

	now := epoch
	r.Interact(nil, now) // emits reset command
	r.Interact([]byte("Small Computer Monitor - RC2014\r\n*"), now)
	now = now.Add(300 * time.Millisecond)
	r.Interact(nil, now) // sleep elapses, cascades into send("CPM\n")
	r.Interact([]byte("A>"), now)

	if r.Running() {
		t.Fatalf("cpm should have completed, failErr=%v", failErr)
	}
	if failErr != nil {
		t.Fatalf("cpm failed: %v", failErr)
	}
	if len(sent) != 2 || string(sent[1]) != "CPM\n" {
		t.Fatalf("sent = %v, want [reset-cmd CPM\\n]", sent)
	}
}

func TestCPM_FailsWithTimeoutErrorWhenPromptNeverArrives(t *testing.T) {
	var failErr error
	r := NewRunner(CPM(), func([]byte) {}, func(e error) { failErr = e })

	now := epoch
	r.Interact(nil, now)
	r.Interact([]byte("Small Computer Monitor - RC2014\r\n*"), now)
	now = now.Add(300 * time.Millisecond)
	r.Interact(nil, now)
	r.Interact(nil, now) // "CPM\n" emitted, cascades into expect("A>", 5s) starting its deadline

	r.Interact(nil, now.Add(5*time.Second+time.Millisecond))
	if r.Running() {
		t.Fatal("cpm should have failed")
	}
	if !errors.Is(failErr, ErrTimeout) {
		t.Fatalf("failErr = %v, want ErrTimeout", failErr)
	}
}
