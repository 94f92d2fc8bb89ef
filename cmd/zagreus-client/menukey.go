package main

import (
	"fmt"
	"strings"
)

// parseMenuKey accepts either a literal single character (e.g. "x") or a
// control chord spelled "C-<letter>" (e.g. "C-A"), matching the pretty form
// internal/client's help screen prints for the chosen menu key.
func parseMenuKey(s string) (byte, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	upper := strings.ToUpper(s)
	if len(upper) == 3 && upper[0] == 'C' && upper[1] == '-' {
		letter := upper[2]
		if letter < 'A' || letter > '_' {
			return 0, fmt.Errorf("control chord letter out of range: %q", s)
		}
		return letter & 0x1F, nil
	}
	return 0, fmt.Errorf("expected a single character or a C-<letter> chord, got %q", s)
}
