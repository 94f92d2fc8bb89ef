// Package wire implements the escape-framed byte protocol shared by the
// zagreus server and client sockets: a single reserved sentinel byte (Esc,
// 0xFF) introduces a two-byte in-band command frame, and a literal 0xFF in
// the data payload is escaped as two consecutive 0xFF bytes. The codec is
// stateless per buffer and total: every byte sequence decodes without error.
package wire

// Esc is the reserved sentinel byte that introduces an in-band command frame.
const Esc byte = 0xFF

// ResetCommand is the only command byte currently defined: client-to-server,
// it asks the server to pulse the device reset line.
const ResetCommand byte = 'r'

// Segment is one element of a decoded stream: either a literal data chunk
// (IsCommand == false) or a single in-band command byte (IsCommand == true,
// Data holds exactly that one byte).
type Segment struct {
	IsCommand bool
	Data      []byte
}

// Encode escapes every occurrence of Esc in payload as Esc,Esc. Pure and
// total; Decode is its left inverse: for a non-empty x, Decode(Encode(x))
// yields exactly []Segment{{false, x}} and no dangling Esc (an empty x
// yields no segments).
func Encode(payload []byte) []byte {
	n := 0
	for _, b := range payload {
		if b == Esc {
			n++
		}
	}
	if n == 0 {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out
	}
	out := make([]byte, 0, len(payload)+n)
	for _, b := range payload {
		out = append(out, b)
		if b == Esc {
			out = append(out, Esc)
		}
	}
	return out
}

// Command returns the two-byte wire encoding of an in-band command.
func Command(c byte) []byte {
	return []byte{Esc, c}
}

// Decode splits a single buffer into an ordered sequence of segments. A
// trailing lone Esc byte at the end of buf (no following byte) is reported
// via the second return value so the caller can re-present it on the next
// read — this is required for correctness across TCP segment boundaries; see
// Decoder for the stateful version that does this automatically.
func Decode(buf []byte) (segs []Segment, danglingEsc bool) {
	var lit []byte
	flushLit := func() {
		if len(lit) > 0 {
			segs = append(segs, Segment{Data: lit})
			lit = nil
		}
	}
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if b != Esc {
			lit = append(lit, b)
			continue
		}
		if i+1 >= len(buf) {
			danglingEsc = true
			break
		}
		next := buf[i+1]
		i++
		if next == Esc {
			lit = append(lit, Esc)
			continue
		}
		flushLit()
		segs = append(segs, Segment{IsCommand: true, Data: []byte{next}})
	}
	flushLit()
	return segs, danglingEsc
}

// Decoder is the stateful counterpart of Decode: a dangling trailing Esc byte
// at the end of one Feed call is buffered and prefixed onto the next, so a
// command or escaped-0xFF pair split across two socket reads decodes
// correctly. Zero value is ready to use.
type Decoder struct {
	pending bool
}

// Feed decodes buf, accounting for a trailing Esc byte buffered from a
// previous call.
func (d *Decoder) Feed(buf []byte) []Segment {
	if d.pending {
		extended := make([]byte, 0, len(buf)+1)
		extended = append(extended, Esc)
		extended = append(extended, buf...)
		buf = extended
		d.pending = false
	}
	segs, dangling := Decode(buf)
	d.pending = dangling
	return segs
}
