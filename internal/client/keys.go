package client

import (
	"fmt"
	"strings"
)

// tableLower, tableUpper and tableNames mirror the ASCII control-code table
// from https://www.windmill.co.uk/ascii-control-codes.html: index i holds
// the lowercase/uppercase/display character whose Ctrl-chord produces
// control code i (0..31).
const (
	tableLower = "2abcdefghijklmnopqrstuvwxyz[\\]6-"
	tableUpper = "@ABCDEFGHIJKLMNOPQRSTUVWXYZ{|}^_"
	tableNames = "@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_"
)

// controlCode returns the control byte (0..31) produced by Ctrl-c, where c
// is given in either its lowercase or uppercase chord form (e.g. 'a' or
// 'A' both yield 0x01).
func controlCode(c byte) (byte, error) {
	if i := strings.IndexByte(tableLower, c); i >= 0 {
		return byte(i), nil
	}
	if i := strings.IndexByte(tableUpper, c); i >= 0 {
		return byte(i), nil
	}
	return 0, fmt.Errorf("client: control code not found: ^%c", c)
}

// baseKey normalizes a raw key byte to the letter used for menu dispatch:
// control codes below 32 map to their base (lowercase) chord letter,
// everything else is lowercased as-is.
func baseKey(c byte) byte {
	if int(c) < len(tableLower) {
		return tableLower[c]
	}
	return toLowerByte(c)
}

// prettyKey renders a key byte for display: "C-x" for control codes,
// otherwise the uppercased character.
func prettyKey(c byte) string {
	if int(c) < len(tableNames) {
		return "C-" + string(tableNames[c])
	}
	return strings.ToUpper(string(c))
}

func toLowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}
