package wire

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x00},
		{Esc},
		{Esc, Esc},
		[]byte("hello\r\n"),
		{0x00, Esc, 0x01, Esc, Esc, 0x02},
	}
	for _, x := range cases {
		segs, dangling := Decode(Encode(x))
		if dangling {
			t.Fatalf("Encode(%v) left a dangling Esc", x)
		}
		if len(x) == 0 {
			if len(segs) != 0 {
				t.Fatalf("Decode(Encode(%v)) = %v, want no segments", x, segs)
			}
			continue
		}
		if len(segs) != 1 || segs[0].IsCommand || !bytes.Equal(segs[0].Data, x) {
			t.Fatalf("Decode(Encode(%v)) = %v, want [{false %v}]", x, segs, x)
		}
	}
}

func TestEncodeDecode_RandomRoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		n := i % 37
		x := make([]byte, n)
		_, _ = rand.Read(x)
		segs, dangling := Decode(Encode(x))
		if dangling {
			t.Fatalf("dangling esc for input %v", x)
		}
		if n == 0 {
			continue
		}
		if len(segs) != 1 || !bytes.Equal(segs[0].Data, x) {
			t.Fatalf("round trip failed for %v: got %v", x, segs)
		}
	}
}

func TestCommand_Decode(t *testing.T) {
	for c := 0; c < 256; c++ {
		if byte(c) == Esc {
			continue
		}
		segs, dangling := Decode(Command(byte(c)))
		if dangling {
			t.Fatalf("command(%x) left a dangling esc", c)
		}
		if len(segs) != 1 || !segs[0].IsCommand || len(segs[0].Data) != 1 || segs[0].Data[0] != byte(c) {
			t.Fatalf("Decode(Command(%x)) = %v, want single command segment", c, segs)
		}
	}
}

func TestDecode_MixedStream(t *testing.T) {
	buf := append(append([]byte("AB"), Command(ResetCommand)...), []byte("CD")...)
	segs, dangling := Decode(buf)
	if dangling {
		t.Fatal("unexpected dangling esc")
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %v", len(segs), segs)
	}
	if segs[0].IsCommand || string(segs[0].Data) != "AB" {
		t.Fatalf("segment 0 = %v", segs[0])
	}
	if !segs[1].IsCommand || segs[1].Data[0] != ResetCommand {
		t.Fatalf("segment 1 = %v", segs[1])
	}
	if segs[2].IsCommand || string(segs[2].Data) != "CD" {
		t.Fatalf("segment 2 = %v", segs[2])
	}
}

func TestDecode_EmptySegmentsSuppressed(t *testing.T) {
	// Two commands back to back with nothing between them should not produce
	// an empty data segment.
	buf := append(Command('x'), Command('y')...)
	segs, _ := Decode(buf)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2: %v", len(segs), segs)
	}
}

func TestDecoder_BuffersTrailingEscAcrossReads(t *testing.T) {
	var d Decoder
	first := d.Feed([]byte{'a', 'b', Esc})
	if len(first) != 1 || string(first[0].Data) != "ab" {
		t.Fatalf("first feed = %v", first)
	}
	// The dangling Esc plus Esc forms an escaped literal 0xFF.
	second := d.Feed([]byte{Esc, 'c'})
	if len(second) != 1 || second[0].IsCommand || !bytes.Equal(second[0].Data, []byte{Esc, 'c'}) {
		t.Fatalf("second feed = %v", second)
	}
}

func TestDecoder_BuffersTrailingEscThenCommand(t *testing.T) {
	var d Decoder
	d.Feed([]byte{'x', Esc})
	segs := d.Feed([]byte{ResetCommand})
	if len(segs) != 1 || !segs[0].IsCommand || segs[0].Data[0] != ResetCommand {
		t.Fatalf("segs = %v", segs)
	}
}

func FuzzDecodeNeverPanics(f *testing.F) {
	f.Add([]byte{Esc})
	f.Add([]byte{Esc, Esc, 'x', Esc, ResetCommand})
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(data)
		var d Decoder
		_ = d.Feed(data)
	})
}

func FuzzEncodeDecodeRoundTrip(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte{Esc, 0, Esc})
	f.Fuzz(func(t *testing.T, data []byte) {
		segs, dangling := Decode(Encode(data))
		if dangling {
			t.Fatalf("Encode output left dangling esc for %v", data)
		}
		if len(data) == 0 {
			return
		}
		if len(segs) != 1 || segs[0].IsCommand || !bytes.Equal(segs[0].Data, data) {
			t.Fatalf("round trip broke for %v: got %v", data, segs)
		}
	})
}
