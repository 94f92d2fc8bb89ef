package client

import (
	"bytes"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"zagreus/internal/console"
	"zagreus/internal/script"
	"zagreus/internal/wire"
)

// testHarness wires a Client to an in-memory peer connection and a
// readable/writable fake console, without ever touching real terminal
// modes (Setup/Cleanup are not exercised here; see internal/console's own
// tests for those).
type testHarness struct {
	client    *Client
	peer      net.Conn
	out       *bytes.Buffer
	keyWriter *os.File
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = serverConn.Close() })

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })

	var out bytes.Buffer
	con, err := console.New(r, &out)
	if err != nil {
		t.Fatalf("console.New: %v", err)
	}

	menuKey, err := controlCode('a')
	if err != nil {
		t.Fatalf("controlCode: %v", err)
	}
	c := newClient(clientConn, con, Config{MenuKey: menuKey})
	t.Cleanup(func() { _ = clientConn.Close() })

	return &testHarness{client: c, peer: serverConn, out: &out, keyWriter: w}
}

func readFromPeer(t *testing.T, peer net.Conn, n int, timeout time.Duration) []byte {
	t.Helper()
	buf := make([]byte, n)
	_ = peer.SetReadDeadline(time.Now().Add(timeout))
	got, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	return buf[:got]
}

func TestSendWireEncodes(t *testing.T) {
	h := newTestHarness(t)
	done := make(chan []byte, 1)
	go func() { done <- readFromPeer(t, h.peer, 16, time.Second) }()
	h.client.Send([]byte{0xFF, 'x'})
	got := <-done
	want := wire.Encode([]byte{0xFF, 'x'})
	if !bytes.Equal(got, want) {
		t.Fatalf("peer got %v, want %v", got, want)
	}
}

func TestSendCommandWritesTwoByteFrame(t *testing.T) {
	h := newTestHarness(t)
	done := make(chan []byte, 1)
	go func() { done <- readFromPeer(t, h.peer, 16, time.Second) }()
	h.client.SendCommand(wire.ResetCommand)
	got := <-done
	want := wire.Command(wire.ResetCommand)
	if !bytes.Equal(got, want) {
		t.Fatalf("peer got %v, want %v", got, want)
	}
}

func TestHandleKeySetsMenuLatchOnMenuKey(t *testing.T) {
	h := newTestHarness(t)
	h.client.handleKey(h.client.menuKey)
	h.client.mu.Lock()
	inMenu := h.client.inMenu
	h.client.mu.Unlock()
	if !inMenu {
		t.Fatalf("expected in_menu latch to be set after menu key")
	}
}

func TestHandleKeySendsOrdinaryKeyVerbatim(t *testing.T) {
	h := newTestHarness(t)
	done := make(chan []byte, 1)
	go func() { done <- readFromPeer(t, h.peer, 16, time.Second) }()
	h.client.handleKey('q')
	got := <-done
	if !bytes.Equal(got, wire.Encode([]byte{'q'})) {
		t.Fatalf("peer got %v, want encoded 'q'", got)
	}
}

func TestHandleKeyDoubledMenuKeySendsLiteral(t *testing.T) {
	h := newTestHarness(t)
	h.client.mu.Lock()
	h.client.inMenu = true
	h.client.mu.Unlock()

	done := make(chan []byte, 1)
	go func() { done <- readFromPeer(t, h.peer, 16, time.Second) }()
	h.client.handleMenuKey(h.client.menuKey)
	got := <-done
	if !bytes.Equal(got, wire.Encode([]byte{h.client.menuKey})) {
		t.Fatalf("peer got %v, want encoded literal menu key", got)
	}
}

func TestHandleMenuKeyExitStopsClient(t *testing.T) {
	h := newTestHarness(t)
	h.client.handleMenuKey('x')
	if h.client.isRunning() {
		t.Fatalf("expected client to stop after menu exit key")
	}
}

func TestHandleMenuKeyClearWritesCapability(t *testing.T) {
	h := newTestHarness(t)
	h.client.handleMenuKey('l')
	if h.out.Len() == 0 {
		t.Fatalf("expected clear capability to be written to console")
	}
}

func TestHandleMenuKeyStartsResetScript(t *testing.T) {
	h := newTestHarness(t)
	done := make(chan []byte, 1)
	go func() { done <- readFromPeer(t, h.peer, 16, time.Second) }()
	h.client.handleMenuKey('r')
	h.client.interactScript(nil, time.Now())
	got := <-done
	// The script's on_output hands over an already wire-framed command; it
	// must hit the socket unmodified, NOT re-encoded (wire.Encode would
	// double the sentinel and turn the reset command into literal data).
	want := wire.Command(wire.ResetCommand)
	if !bytes.Equal(got, want) {
		t.Fatalf("peer got %v, want small-computer-monitor's reset command %v", got, want)
	}
	if h.client.activeRunner() == nil {
		t.Fatalf("expected an active script runner after starting the reset script")
	}
}

// TestScriptOutputIsNotReencoded drives the CPM script through its first two
// emits over the client's real output path (not a raw recorder, per the
// engine's own unit tests) and asserts the bytes landing on the wire are
// exactly the script's pre-framed output -- guarding against on_output
// running data that is already wire-encoded back through Client.Send's
// encoder.
func TestScriptOutputIsNotReencoded(t *testing.T) {
	h := newTestHarness(t)

	var mu sync.Mutex
	var onWire []byte
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		buf := make([]byte, 256)
		for {
			n, err := h.peer.Read(buf)
			if n > 0 {
				mu.Lock()
				onWire = append(onWire, buf[:n]...)
				mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	h.client.startScript("cpm", script.CPM())
	now := time.Now()
	h.client.interactScript(nil, now)                              // emits reset command
	h.client.interactScript([]byte("Small Computer Monitor - RC2014\r\n*"), now) // reset done, sleep starts
	now = now.Add(300 * time.Millisecond)
	h.client.interactScript(nil, now) // sleep elapses, emits "CPM\n"

	_ = h.peer.Close()
	<-readerDone

	want := append(append([]byte{}, wire.Command(wire.ResetCommand)...), wire.Encode([]byte("CPM\n"))...)
	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(onWire, want) {
		t.Fatalf("bytes on wire = %v, want %v (no double-encoding of the reset command)", onWire, want)
	}
}

func TestHandleMenuKeyUnrecognizedIsSilentlyConsumed(t *testing.T) {
	h := newTestHarness(t)
	h.client.handleMenuKey('9')
	if h.client.activeRunner() != nil {
		t.Fatalf("unrecognized menu key must not start a script")
	}
	if !h.client.isRunning() {
		t.Fatalf("unrecognized menu key must not stop the client")
	}
}

func TestInteractScriptRetiresOnCompletion(t *testing.T) {
	h := newTestHarness(t)
	// Drain the reset-command write the script emits so its Runner isn't
	// blocked on a synchronous Send to an unread net.Pipe.
	go func() { _, _ = h.peer.Read(make([]byte, 16)) }()
	h.client.handleMenuKey('r')

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.client.interactScript([]byte("Small Computer Monitor - RC2014\r\n*"), time.Now())
		if h.client.activeRunner() == nil {
			return
		}
	}
	t.Fatalf("expected small_computer_monitor script to complete on banner match")
}
