package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Rawcodes are Windows virtual-key codes, which is what gohook reports there.
var specialKeys = map[string][]uint16{
	"ctrl":      {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":       {164, 165}, // VK_LMENU, VK_RMENU
	"shift":     {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":       {91, 92},   // VK_LWIN, VK_RWIN
	"space":     {32},
	"enter":     {13},
	"esc":       {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pagedown":  {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

var aliases = map[string]string{
	"control": "ctrl",
	"win":     "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"option":  "alt",
	"return":  "enter",
	"escape":  "esc",
	"del":     "delete",
	"ins":     "insert",
	"pgup":    "pageup",
	"pgdn":    "pagedown",
}

// parseHotkey normalizes "Ctrl+Alt+Q" and "<alt>+r" styles to key names.
func parseHotkey(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		part = strings.TrimSuffix(strings.TrimPrefix(part, "<"), ">")
		// pynput-style side variants: <ctrl_l>, <alt_gr>
		if i := strings.IndexByte(part, '_'); i > 0 {
			part = part[:i]
		}
		if a, ok := aliases[part]; ok {
			part = a
		}
		if part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

func keyNameToRawcodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		name = a
	}
	if codes, ok := specialKeys[name]; ok {
		return codes
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	if strings.HasPrefix(name, "f") {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)} // VK_F1 = 112
		}
	}
	return nil
}

// Display renders a combo for menus and tooltips, e.g. "<alt>+r" as "Alt+R".
func Display(combo string) string {
	keys := parseHotkey(combo)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		switch {
		case k == "cmd":
			out = append(out, "Win")
		case len(k) == 1:
			out = append(out, strings.ToUpper(k))
		default:
			out = append(out, strings.ToUpper(k[:1])+k[1:])
		}
	}
	return strings.Join(out, "+")
}

// Validate reports whether every key of combo can be matched.
func Validate(combo string) error {
	keys := parseHotkey(combo)
	if len(keys) == 0 {
		return fmt.Errorf("hotkey %q has no keys", combo)
	}
	for _, k := range keys {
		if keyNameToRawcodes(k) == nil {
			return fmt.Errorf("hotkey %q: unknown key %q", combo, k)
		}
	}
	return nil
}
