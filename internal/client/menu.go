package client

import (
	"fmt"
	"strings"

	"zagreus/internal/metrics"
	"zagreus/internal/script"
)

// menuBinding is one entry of the menu dispatch table (spec.md §4.5.1).
type menuBinding struct {
	letters string
	help    string
}

var menuBindings = []menuBinding{
	{"r", "run small computer monitor script"},
	{"l", "clear screen"},
	{"c", "run cpm script"},
	{"b", "run basic script"},
	{"xq", "exit"},
	{"h?", "help"},
}

// handleMenuKey dispatches the key following a menu-key press, mirroring
// Z80Client.handle_menu_key's pressed() closure from the reference client:
// each candidate binding is tried in order, and the same base-letter
// matching is used whether the key came in raw or as a control chord.
func (c *Client) handleMenuKey(raw byte) {
	key := baseKey(raw)

	switch {
	case matches(key, "r"):
		metrics.IncScriptStart("small_computer_monitor")
		c.startScript("small_computer_monitor", script.SmallComputerMonitor())
	case matches(key, "l"):
		_, _ = c.console.Write([]byte(c.console.ClearCapability()))
	case matches(key, "c"):
		metrics.IncScriptStart("cpm")
		c.startScript("cpm", script.CPM())
	case matches(key, "b"):
		metrics.IncScriptStart("basic")
		c.startScript("basic", script.Basic())
	case matches(key, "xq"):
		c.Stop()
	case matches(key, string(baseKey(c.menuKey))):
		// doubled menu key: send the literal byte through.
		c.Send([]byte{c.menuKey})
	case matches(key, "h?"):
		c.showHelp()
	default:
		// unrecognized keys are silently consumed (spec.md §4.5.1).
	}
}

func matches(key byte, letters string) bool {
	return strings.IndexByte(letters, key) >= 0
}

// showHelp brackets the console into cooked mode, lists every binding, and
// restores raw mode on return.
func (c *Client) showHelp() {
	restore, _ := c.console.CookedBracket()
	defer func() { _ = restore() }()

	menu := prettyKey(c.menuKey)
	_, _ = c.console.Write([]byte("====\n"))
	for _, b := range menuBindings {
		_, _ = c.console.Write([]byte(fmt.Sprintf("%s %s\t%s\n", menu, strings.ToUpper(b.letters[:1]), b.help)))
	}
	_, _ = c.console.Write([]byte(fmt.Sprintf("%s %s\tsend literal %s\n", menu, menu, menu)))
	_, _ = c.console.Write([]byte("====\n"))
}

// translateServerFormFeed replaces a lone form-feed byte with the
// terminal's clear-screen capability, the client-side analogue of the
// server's newline translation (spec.md §4.5).
func (c *Client) translateServerFormFeed(data []byte) []byte {
	if !containsByte(data, 0x0C) {
		return data
	}
	clear := []byte(c.console.ClearCapability())
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b == 0x0C {
			out = append(out, clear...)
			continue
		}
		out = append(out, b)
	}
	return out
}

func containsByte(data []byte, b byte) bool {
	for _, x := range data {
		if x == b {
			return true
		}
	}
	return false
}
